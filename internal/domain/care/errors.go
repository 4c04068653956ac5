package care

import "errors"

var (
	// ErrInvalidInterval is returned for a non-positive interval. Callers reject the
	// input; it is never coerced into a valid value.
	ErrInvalidInterval   = errors.New("interval days must be a positive integer")
	ErrUnknownActionKind = errors.New("unknown care action kind")

	// ErrUnknownSubject marks a subject that vanished or was never visible to the caller.
	ErrUnknownSubject = errors.New("unknown care subject")

	ErrSubjectNotFound = errors.New("care subject not found")
	ErrCycleNotFound   = errors.New("care cycle not found")
	ErrSubjectInactive = errors.New("care subject is inactive")
)
