package document

import "errors"

// Closed error taxonomy for the store. Callers dispatch with errors.Is;
// anything else is a backing-store failure.
var (
	ErrNotFound     = errors.New("document not found")
	ErrForbidden    = errors.New("owner token mismatch")
	ErrTooLarge     = errors.New("content exceeds size limit")
	ErrInvalidInput = errors.New("invalid input")
)
