package schema

import (
	"fmt"
	"strings"
)

// SchemaError reports a malformed schema declaration. It is raised once, at construction.
type SchemaError struct {
	Key    string
	Reason string
	Cycle  []string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("invalid configuration schema")
	if e.Key != "" {
		b.WriteString(fmt.Sprintf(": field %q", e.Key))
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if len(e.Cycle) > 0 {
		b.WriteString(" (" + strings.Join(e.Cycle, " -> ") + ")")
	}
	return b.String()
}

// ValueError reports a value that does not belong to a field's domain.
type ValueError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid value %v for %q: %s", e.Value, e.Key, e.Reason)
}
