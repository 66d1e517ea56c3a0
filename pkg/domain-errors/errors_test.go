package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errCause = errors.New("cause")

func TestCodes(t *testing.T) {
	t.Run("wrap keeps the cause reachable", func(t *testing.T) {
		err := Wrap(errCause, CodeValidation, "bad field")
		assert.ErrorIs(t, err, errCause)
		assert.True(t, HasCode(err, CodeValidation))
		assert.Equal(t, "bad field: cause", err.Error())
	})

	t.Run("nested codes are all visible", func(t *testing.T) {
		inner := New(CodeConflict, "row moved")
		outer := Wrap(inner, CodeInternal, "write failed")
		assert.True(t, HasCode(outer, CodeConflict))
		assert.True(t, HasCode(outer, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(outer))
	})

	t.Run("fmt wrapping does not hide the code", func(t *testing.T) {
		err := fmt.Errorf("context: %w", New(CodeNotFound, "missing"))
		assert.True(t, HasCode(err, CodeNotFound))
		assert.True(t, IsCoded(err))
	})

	t.Run("plain errors default to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errCause))
		assert.False(t, HasCode(errCause, CodeInternal))
		assert.False(t, IsCoded(errCause))
	})
}
