// Package attendance implements the capture-and-reconciliation pipeline:
// matching detected faces against enrolled students, the session state
// machine, and the ledger that merges face, QR and manual marks into one
// authoritative record per student and day.
package attendance

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or unacceptable input: wrong embedding
// width, malformed QR payloads, unknown or inactive students. It is surfaced
// to the caller and never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrDetectorFailure marks a total pipeline fault from the external face
// detector (unreadable image, service down). A session hitting it is marked
// failed; marks already committed for other faces are not rolled back.
var ErrDetectorFailure = errors.New("face detector failure")
