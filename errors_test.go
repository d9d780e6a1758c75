package gatesched

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardHandler_PropagatesReturnedError(t *testing.T) {
	sentinel := errors.New("boom")
	err := guardHandler(func() error { return sentinel })
	require.ErrorIs(t, err, sentinel)
}

func TestGuardHandler_RecoversPanicWithError(t *testing.T) {
	sentinel := errors.New("panic-error")
	err := guardHandler(func() error { panic(sentinel) })
	require.ErrorIs(t, err, sentinel)
}

func TestGuardHandler_RecoversPanicWithNonError(t *testing.T) {
	err := guardHandler(func() error { panic("raw string panic") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw string panic")
}

func TestGuardHandler_NilOnSuccess(t *testing.T) {
	err := guardHandler(func() error { return nil })
	assert.NoError(t, err)
}

func TestHandlerError_IsMatchesByCode(t *testing.T) {
	cause := errors.New("cause")
	err := &HandlerError{Code: ErrErrorHandlerFailure, Cause: cause}

	assert.True(t, errors.Is(err, &HandlerError{Code: ErrErrorHandlerFailure}))
	assert.False(t, errors.Is(err, &HandlerError{Code: ErrReleaseTimeoutHandlerFailure}))
	assert.True(t, errors.Is(err, cause))
}

func TestDiscardedError_IsMatchesByReason(t *testing.T) {
	err := &DiscardedError{Reason: DiscardTimeoutReached}

	assert.True(t, errors.Is(err, &DiscardedError{Reason: DiscardTimeoutReached}))
	assert.False(t, errors.Is(err, &DiscardedError{Reason: DiscardForced}))
	assert.True(t, errors.Is(err, &DiscardedError{}))
}
