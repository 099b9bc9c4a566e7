package prompt

import (
	"errors"
	"fmt"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
)

func TestWrapError(t *testing.T) {
	assert.NoError(t, wrapError(nil))
	assert.ErrorIs(t, wrapError(promptui.ErrInterrupt), ErrAborted)
	assert.ErrorIs(t, wrapError(fmt.Errorf("run: %w", promptui.ErrAbort)), ErrAborted)

	other := errors.New("tty closed")
	assert.Same(t, other, wrapError(other))
	assert.False(t, IsAborted(other))
}
