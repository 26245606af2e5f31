package replay

import (
	"errors"
	"fmt"

	"github.com/virtbench/virtbench/internal/session"
)

// MismatchError reports a call that diverged from the recorded log: the
// wrong operation kind, the wrong command text, or any call after the
// log ended. The cursor does not advance on a mismatch, so a corrected
// retry is checked against the same entry.
type MismatchError struct {
	// Index is the log position the call was checked against.
	Index int

	// ExpectedKind and ExpectedCommand describe the recorded entry.
	// Both are zero when the log was already exhausted.
	ExpectedKind    session.Kind
	ExpectedCommand string

	ActualKind    session.Kind
	ActualCommand string
}

func (e *MismatchError) Error() string {
	if e.Exhausted() {
		return fmt.Sprintf("replay: log exhausted at entry %d: unexpected %s %q",
			e.Index, e.ActualKind, e.ActualCommand)
	}
	return fmt.Sprintf("replay: entry %d: expected %s %q, got %s %q",
		e.Index, e.ExpectedKind, e.ExpectedCommand, e.ActualKind, e.ActualCommand)
}

// Exhausted reports whether the call arrived after the last recorded
// entry was consumed.
func (e *MismatchError) Exhausted() bool {
	return e.ExpectedKind == ""
}

// AsMismatchError unwraps err looking for a MismatchError.
func AsMismatchError(err error) (*MismatchError, bool) {
	var me *MismatchError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}
