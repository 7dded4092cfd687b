package domain

import "errors"

// Error kinds shared across the engine. Callers branch with errors.Is; the
// wrapped message carries the specifics.
var (
	// ErrValidation covers malformed input: unbalanced legs, out-of-range
	// commission rates, non-positive amounts, empty account ids.
	ErrValidation = errors.New("validation failed")

	// ErrOverflow marks arithmetic that would exceed the representable range.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrNotFound marks references to unknown accounts or records.
	ErrNotFound = errors.New("not found")

	// ErrLockUnavailable means another instance holds the cluster lock.
	// Benign: the caller skips its run.
	ErrLockUnavailable = errors.New("lock unavailable")
)
