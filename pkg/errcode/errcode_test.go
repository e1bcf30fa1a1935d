package errcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	wrapped := ErrUnavailable.Wrap(errors.New("connection refused"))
	assert.True(t, errors.Is(wrapped, ErrUnavailable))
	assert.False(t, errors.Is(wrapped, ErrTargetNotFound))

	detailed := ErrFileTooLarge.WithDetail("%s exceeds %d bytes", "brochure.pdf", 1024)
	assert.True(t, errors.Is(detailed, ErrFileTooLarge))
	assert.Contains(t, detailed.Msg, "brochure.pdf")

	outer := fmt.Errorf("append: %w", detailed)
	assert.True(t, errors.Is(outer, ErrFileTooLarge))
}

func TestError_WrapNil(t *testing.T) {
	assert.Same(t, ErrEmptyMessage, ErrEmptyMessage.Wrap(nil))
}
