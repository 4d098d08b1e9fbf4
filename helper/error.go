package helper

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine error taxonomy. Callers match them with
// errors.Is after unwrapping the operation context added by NewError.
var (
	// ErrValidation marks malformed input (wrong embedding dimension,
	// empty content, invalid index type). Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrStoreUnavailable marks a persistence backend that is unreachable
	// or erroring. Retry policy is the caller's responsibility.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEmbeddingUnavailable marks an embedding provider that returned no
	// result or errored. Fatal to the call that needed the embedding.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)

// Error wraps an underlying error with the operation that failed.
type Error struct {
	Operation string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with the name of the failing operation.
func NewError(operation string, err error) error {
	return &Error{Operation: operation, Err: err}
}

// NewValidationError wraps err as a validation failure for operation.
func NewValidationError(operation string, err error) error {
	return NewError(operation, fmt.Errorf("%w: %w", ErrValidation, err))
}

// NewStoreError wraps a storage-layer err for operation so callers can
// detect backend unavailability with errors.Is(err, ErrStoreUnavailable).
func NewStoreError(operation string, err error) error {
	return NewError(operation, fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
}

// NewEmbeddingError wraps an embedding provider err for operation.
func NewEmbeddingError(operation string, err error) error {
	return NewError(operation, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err))
}
