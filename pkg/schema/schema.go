package schema

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Schema is an immutable, validated, ordered set of fields.
// Declaration order is the order questions are asked and bindings are rendered in.
type Schema struct {
	fields     []Field
	index      map[string]int
	patterns   map[string]*regexp.Regexp
	dependents map[string][]string
}

// New validates the declaration and returns a Schema, or a *SchemaError.
func New(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields:     make([]Field, 0, len(fields)),
		index:      make(map[string]int, len(fields)),
		patterns:   make(map[string]*regexp.Regexp),
		dependents: make(map[string][]string),
	}

	for _, f := range fields {
		if strings.TrimSpace(f.Key) == "" {
			return nil, &SchemaError{Reason: "field key must not be empty"}
		}
		if _, exists := s.index[f.Key]; exists {
			return nil, &SchemaError{Key: f.Key, Reason: "duplicate field key"}
		}
		switch f.Kind {
		case KindEnum:
			if len(f.Allowed) == 0 {
				return nil, &SchemaError{Key: f.Key, Reason: "enum field declares no allowed values"}
			}
			if len(lo.Uniq(f.Allowed)) != len(f.Allowed) {
				return nil, &SchemaError{Key: f.Key, Reason: "enum field declares duplicate allowed values"}
			}
		case KindBool:
		case KindString:
			if f.Pattern != "" {
				re, err := regexp.Compile(f.Pattern)
				if err != nil {
					return nil, &SchemaError{Key: f.Key, Reason: fmt.Sprintf("invalid pattern: %v", err)}
				}
				s.patterns[f.Key] = re
			}
		default:
			return nil, &SchemaError{Key: f.Key, Reason: fmt.Sprintf("unknown kind %q", f.Kind)}
		}
		s.index[f.Key] = len(s.fields)
		s.fields = append(s.fields, f)
	}

	for _, f := range s.fields {
		for _, c := range append(append([]Condition{}, f.Requires...), f.RequiresAny...) {
			governor, found := s.Field(c.Key)
			if !found {
				return nil, &SchemaError{Key: f.Key, Reason: fmt.Sprintf("condition references unknown field %q", c.Key)}
			}
			if len(c.In) == 0 {
				return nil, &SchemaError{Key: f.Key, Reason: fmt.Sprintf("condition on %q lists no values", c.Key)}
			}
			if allowed := governor.AllowedValues(); allowed != nil {
				for _, v := range c.In {
					if !lo.Contains(allowed, v) {
						return nil, &SchemaError{Key: f.Key, Reason: fmt.Sprintf("condition value %q is not allowed for %q", v, c.Key)}
					}
				}
			}
		}
		for _, governor := range f.Governors() {
			s.dependents[governor] = append(s.dependents[governor], f.Key)
		}
		if f.Default != nil {
			if _, err := s.Validate(f.Key, *f.Default); err != nil {
				return nil, &SchemaError{Key: f.Key, Reason: fmt.Sprintf("default is invalid: %v", err)}
			}
		}
	}

	if cycle := s.findCycle(); cycle != nil {
		return nil, &SchemaError{Key: cycle[0], Reason: "dependency cycle detected", Cycle: cycle}
	}

	return s, nil
}

// MustNew is New for statically declared schemas.
func MustNew(fields ...Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// findCycle runs a DFS over field -> governor edges and returns the first cycle found.
func (s *Schema) findCycle() []string {
	const (
		unvisited = iota
		inStack
		done
	)
	state := make(map[string]int, len(s.fields))
	var stack []string

	var visit func(key string) []string
	visit = func(key string) []string {
		state[key] = inStack
		stack = append(stack, key)
		f := s.fields[s.index[key]]
		for _, governor := range f.Governors() {
			switch state[governor] {
			case inStack:
				start := lo.IndexOf(stack, governor)
				return append(append([]string{}, stack[start:]...), governor)
			case unvisited:
				if cycle := visit(governor); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[key] = done
		return nil
	}

	for _, f := range s.fields {
		if state[f.Key] == unvisited {
			if cycle := visit(f.Key); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

func (s *Schema) Keys() []string {
	return lo.Map(s.fields, func(f Field, _ int) string { return f.Key })
}

func (s *Schema) Field(key string) (Field, bool) {
	i, ok := s.index[key]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Index returns the declaration index of key, or -1.
func (s *Schema) Index(key string) int {
	if i, ok := s.index[key]; ok {
		return i
	}
	return -1
}

// DependentsOf returns every field whose applicability depends, directly or
// transitively, on key. Result is in declaration order.
func (s *Schema) DependentsOf(key string) []Field {
	seen := map[string]bool{}
	queue := append([]string{}, s.dependents[key]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		queue = append(queue, s.dependents[next]...)
	}
	return lo.Filter(s.fields, func(f Field, _ int) bool { return seen[f.Key] })
}

// IsApplicable reports whether every dependency precondition of key holds against record.
// A condition only holds when its governing field is itself applicable and resolved.
func (s *Schema) IsApplicable(key string, record Record) bool {
	f, ok := s.Field(key)
	if !ok {
		return false
	}
	for _, c := range f.Requires {
		if !s.holds(c, record) {
			return false
		}
	}
	if len(f.RequiresAny) == 0 {
		return true
	}
	return lo.SomeBy(f.RequiresAny, func(c Condition) bool { return s.holds(c, record) })
}

func (s *Schema) holds(c Condition, record Record) bool {
	value, resolved := record[c.Key]
	if !resolved || !lo.Contains(c.In, value) {
		return false
	}
	return s.IsApplicable(c.Key, record)
}

// Applicable returns the fields applicable against record, in declaration order.
func (s *Schema) Applicable(record Record) []Field {
	return lo.Filter(s.fields, func(f Field, _ int) bool { return s.IsApplicable(f.Key, record) })
}

// Validate checks raw against the domain of key and returns its canonical string form.
// Values are never coerced across kinds: an enum only accepts one of its exact values.
func (s *Schema) Validate(key string, raw any) (string, error) {
	f, ok := s.Field(key)
	if !ok {
		return "", &ValueError{Key: key, Value: raw, Reason: "unknown field"}
	}

	switch f.Kind {
	case KindBool:
		switch v := raw.(type) {
		case bool:
			return strconv.FormatBool(v), nil
		case string:
			if v == True || v == False {
				return v, nil
			}
		}
		return "", &ValueError{Key: key, Value: raw, Reason: "expected a boolean"}

	case KindEnum:
		v, isString := raw.(string)
		if !isString {
			return "", &ValueError{Key: key, Value: raw, Reason: "expected one of " + strings.Join(f.Allowed, ", ")}
		}
		if !lo.Contains(f.Allowed, v) {
			return "", &ValueError{Key: key, Value: raw, Reason: "expected one of " + strings.Join(f.Allowed, ", ")}
		}
		return v, nil

	default:
		var v string
		switch typed := raw.(type) {
		case string:
			v = strings.TrimSpace(typed)
		case float64:
			if typed != math.Trunc(typed) {
				return "", &ValueError{Key: key, Value: raw, Reason: "expected a string"}
			}
			v = strconv.FormatFloat(typed, 'f', -1, 64)
		case int:
			v = strconv.Itoa(typed)
		default:
			return "", &ValueError{Key: key, Value: raw, Reason: "expected a string"}
		}
		if re, hasPattern := s.patterns[key]; hasPattern && !re.MatchString(v) {
			return "", &ValueError{Key: key, Value: raw, Reason: fmt.Sprintf("does not match %s", f.Pattern)}
		}
		return v, nil
	}
}

// Default returns the declared default of key.
func (s *Schema) Default(key string) (string, bool) {
	f, ok := s.Field(key)
	if !ok || f.Default == nil {
		return "", false
	}
	return *f.Default, true
}

// WithDefaults returns a copy of the schema whose defaults are replaced by overrides.
// Overrides are validated like declared defaults; a gated field may receive one too.
func (s *Schema) WithDefaults(overrides map[string]string) (*Schema, error) {
	fields := s.Fields()
	for key, value := range overrides {
		i, ok := s.index[key]
		if !ok {
			return nil, &SchemaError{Key: key, Reason: "default override for unknown field"}
		}
		if _, err := s.Validate(key, value); err != nil {
			return nil, &SchemaError{Key: key, Reason: fmt.Sprintf("default override is invalid: %v", err)}
		}
		v := value
		fields[i].Default = &v
	}
	return New(fields...)
}
