package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Format(t *testing.T) {
	e := NewAPIError("anthropic", 429, "too many requests")
	assert.Contains(t, e.Error(), "anthropic")
	assert.Contains(t, e.Error(), "429")

	e.Err = errors.New("inner")
	assert.Contains(t, e.Error(), "inner")
	assert.Equal(t, e.Err, errors.Unwrap(e))
}

func TestValidationError_IsInvalidInput(t *testing.T) {
	e := NewValidationError("prompt", "must not be empty")
	assert.True(t, errors.Is(e, ErrInvalidInput))
	assert.Equal(t, "prompt: must not be empty", e.Error())

	wrapped := fmt.Errorf("generate: %w", e)
	assert.True(t, errors.Is(wrapped, ErrInvalidInput))
}
