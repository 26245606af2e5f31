package profile

import (
	"errors"
	"fmt"
)

// ProfileError reports a problem with a profile document: an unreadable
// file, a schema violation, or a rule that fails to compile. It is raised
// at load or build time, never during dispatch.
type ProfileError struct {
	Profile string // profile name or path
	Detail  string // what went wrong
	Err     error  // underlying cause, when any
}

func (e *ProfileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("profile %s: %s: %v", e.Profile, e.Detail, e.Err)
	}
	return fmt.Sprintf("profile %s: %s", e.Profile, e.Detail)
}

func (e *ProfileError) Unwrap() error { return e.Err }

// AsProfileError extracts a *ProfileError from an error chain.
func AsProfileError(err error) (*ProfileError, bool) {
	var pe *ProfileError
	ok := errors.As(err, &pe)
	return pe, ok
}
