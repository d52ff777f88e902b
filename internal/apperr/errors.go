package apperr

import "errors"

var (
	// ErrValidation marks caller-supplied input that fails a precondition.
	// Recoverable by the caller, never retried automatically.
	ErrValidation = errors.New("validation failed")

	// ErrProvider marks a network or provider failure in an embedding or
	// generation call. Batches are all-or-nothing: partial provider results
	// are never usable.
	ErrProvider = errors.New("provider failure")

	// ErrNotFound marks a missing source, deck or card.
	ErrNotFound = errors.New("not found")

	// ErrBadShape marks generative output that does not parse into the
	// expected card shape. Internal only: the generation pipeline degrades
	// it to an empty result instead of surfacing it.
	ErrBadShape = errors.New("shape mismatch")
)
