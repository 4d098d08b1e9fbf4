package helper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	t.Run("Error message contains operation and cause", func(t *testing.T) {
		err := NewError("upsert entity", errors.New("connection refused"))

		assert.EqualError(t, err, "upsert entity: connection refused")
	})

	t.Run("Unwrap returns the cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewError("query", cause)

		assert.ErrorIs(t, err, cause, "Expected wrapped cause to be matchable with errors.Is")
	})
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("NewValidationError matches ErrValidation", func(t *testing.T) {
		err := NewValidationError("embedding dimension validation", errors.New("expected 384, got 3"))

		assert.ErrorIs(t, err, ErrValidation)
		assert.NotErrorIs(t, err, ErrStoreUnavailable)
	})

	t.Run("NewStoreError matches ErrStoreUnavailable", func(t *testing.T) {
		err := NewStoreError("query", errors.New("connection refused"))

		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.NotErrorIs(t, err, ErrValidation)
	})

	t.Run("NewEmbeddingError matches ErrEmbeddingUnavailable", func(t *testing.T) {
		err := NewEmbeddingError("embed", errors.New("provider returned no embedding"))

		assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	})

	t.Run("Cause stays reachable through the sentinel wrapping", func(t *testing.T) {
		cause := errors.New("dial tcp: connection refused")
		err := NewStoreError("query", cause)

		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "query")
		assert.Contains(t, err.Error(), "connection refused")
	})
}
