package extraction

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrModelUnavailable is returned when the model could not be reached within the retry budget.
var ErrModelUnavailable = errors.New("language model unavailable")

// ExtractionError reports a value the model produced for Key that is outside the field's
// domain, or output that could not be parsed at all. The field stays unresolved.
type ExtractionError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ExtractionError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("could not extract %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("could not extract %q from %v: %s", e.Key, e.Value, e.Reason)
}
