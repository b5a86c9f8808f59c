package schema

import (
	"encoding/json"
)

// JSONSchema describes the expected extraction document for the given target keys.
// Every property is nullable: null means "not mentioned in the conversation".
// Unknown keys are skipped.
func (s *Schema) JSONSchema(targets []string) map[string]any {
	properties := map[string]any{}
	for _, key := range targets {
		f, ok := s.Field(key)
		if !ok {
			continue
		}
		prop := map[string]any{}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		switch f.Kind {
		case KindBool:
			prop["type"] = []string{"boolean", "string", "null"}
			prop["enum"] = []any{true, false, True, False, nil}
		case KindEnum:
			prop["type"] = []string{"string", "null"}
			enum := make([]any, 0, len(f.Allowed)+1)
			for _, v := range f.Allowed {
				enum = append(enum, v)
			}
			prop["enum"] = append(enum, nil)
		default:
			// whole numbers are accepted for ports and similar free-form answers
			prop["type"] = []string{"string", "integer", "null"}
			if f.Pattern != "" {
				prop["pattern"] = f.Pattern
			}
		}
		properties[key] = prop
	}
	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": true,
	}
}

// JSONSchemaString is JSONSchema rendered as indented JSON for prompts.
func (s *Schema) JSONSchemaString(targets []string) string {
	bytes, err := json.MarshalIndent(s.JSONSchema(targets), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(bytes)
}
