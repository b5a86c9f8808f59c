package dialogue

import (
	"fmt"

	"github.com/pkg/errors"
)

// AbortKind distinguishes why a session ended without a record.
type AbortKind string

const (
	AbortedByUser       AbortKind = "aborted-by-user"
	AbortedByExtraction AbortKind = "aborted-by-extraction-failure"
)

// ErrNotAwaitingInput is returned when an answer arrives outside AWAITING_INPUT.
var ErrNotAwaitingInput = errors.New("session is not awaiting input")

// AbortError is the reported reason of an ABORTED session.
type AbortError struct {
	Kind   AbortKind
	Key    string // field being asked when the session ended, if any
	Reason string
	Err    error
}

func (e *AbortError) Error() string {
	msg := string(e.Kind)
	if e.Key != "" {
		msg += fmt.Sprintf(" while resolving %q", e.Key)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *AbortError) Unwrap() error {
	return e.Err
}
