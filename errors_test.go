package coop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcome_StringCoversAllValues(t *testing.T) {
	assert.Equal(t, "won", Won.String())
	assert.Equal(t, "killed", Killed.String())
	assert.Equal(t, "timed-out", TimedOut.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}

func TestPanicError_ErrorMessageIncludesValue(t *testing.T) {
	err := PanicError{Value: "boom"}
	assert.Contains(t, err.Error(), "boom")
}

func TestPanicError_UnwrapReturnsNilForNonErrorValue(t *testing.T) {
	err := PanicError{Value: "boom"}
	assert.Nil(t, err.Unwrap())
}

func TestPanicError_UnwrapReturnsUnderlyingError(t *testing.T) {
	cause := errors.New("root cause")
	err := PanicError{Value: cause}
	assert.ErrorIs(t, err, cause)
}

func TestWrapError_PreservesCauseChain(t *testing.T) {
	wrapped := WrapError("submit failed", ErrShutdown)
	assert.ErrorIs(t, wrapped, ErrShutdown)
	assert.Contains(t, wrapped.Error(), "submit failed")
}
