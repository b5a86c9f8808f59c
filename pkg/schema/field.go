package schema

import (
	"github.com/samber/lo"
)

// Kind is the value domain of a configuration decision.
type Kind string

const (
	KindEnum   Kind = "enum"
	KindBool   Kind = "bool"
	KindString Kind = "string"
)

const (
	True  = "true"
	False = "false"
)

// Condition holds when the governing field Key is applicable, resolved and its value is one of In.
type Condition struct {
	Key string   `json:"key" yaml:"key"`
	In  []string `json:"in" yaml:"in"`
}

// When is a shorthand for declaring a Condition.
func When(key string, in ...string) Condition {
	return Condition{Key: key, In: in}
}

// Field is one named decision point of the configuration.
type Field struct {
	Key     string   `json:"key" yaml:"key"`
	Kind    Kind     `json:"kind" yaml:"kind"`
	Allowed []string `json:"allowed,omitempty" yaml:"allowed,omitempty"` // enum only
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"` // string only, RE2
	Default *string  `json:"default,omitempty" yaml:"default,omitempty"`

	// Requires must all hold; when RequiresAny is non-empty at least one of them must hold as well.
	Requires    []Condition `json:"requires,omitempty" yaml:"requires,omitempty"`
	RequiresAny []Condition `json:"requiresAny,omitempty" yaml:"requiresAny,omitempty"`

	Question    string `json:"question" yaml:"question"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Secret      bool   `json:"secret,omitempty" yaml:"secret,omitempty"`
}

// AllowedValues returns the closed value set of enum and bool fields, nil for free strings.
func (f Field) AllowedValues() []string {
	switch f.Kind {
	case KindBool:
		return []string{True, False}
	case KindEnum:
		return append([]string(nil), f.Allowed...)
	default:
		return nil
	}
}

// Governors returns the keys this field's applicability depends on, without duplicates.
func (f Field) Governors() []string {
	keys := make([]string, 0, len(f.Requires)+len(f.RequiresAny))
	for _, c := range f.Requires {
		keys = append(keys, c.Key)
	}
	for _, c := range f.RequiresAny {
		keys = append(keys, c.Key)
	}
	return lo.Uniq(keys)
}

func (f Field) IsGated() bool {
	return len(f.Requires) > 0 || len(f.RequiresAny) > 0
}

func (f Field) HasDefault() bool {
	return f.Default != nil
}

// DisplayValue masks secret values for prompts and logs.
func (f Field) DisplayValue(value string) string {
	if f.Secret && value != "" {
		return "********"
	}
	return value
}
