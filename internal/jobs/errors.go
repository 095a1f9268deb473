package jobs

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for status or output queries against an unknown
// job id.
var ErrNotFound = errors.New("jobs: unknown job id")

// ValidationError rejects a submission before any worker starts or network
// call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
