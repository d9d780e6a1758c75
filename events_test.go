package gatesched

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTarget_OnEmitOff(t *testing.T) {
	target := NewEventTarget()

	var mu sync.Mutex
	var seen []string
	id := target.On("ping", func(e *Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Detail().(string))
	})

	target.emit(NewEvent("ping", "one"))
	target.emit(NewEvent("ping", "two"))

	mu.Lock()
	assert.Equal(t, []string{"one", "two"}, seen)
	mu.Unlock()

	require.True(t, target.Off("ping", id))
	target.emit(NewEvent("ping", "three"))

	mu.Lock()
	assert.Equal(t, []string{"one", "two"}, seen)
	mu.Unlock()
}

func TestEventTarget_OffUnknownListenerReturnsFalse(t *testing.T) {
	target := NewEventTarget()
	assert.False(t, target.Off("ping", 999))
}

func TestEventTarget_HasListeners(t *testing.T) {
	target := NewEventTarget()
	assert.False(t, target.HasListeners("ping"))
	target.On("ping", func(*Event) {})
	assert.True(t, target.HasListeners("ping"))
}

func TestEventTarget_ListenerCanRegisterDuringEmit(t *testing.T) {
	target := NewEventTarget()
	var nested bool
	target.On("ping", func(e *Event) {
		target.On("ping", func(*Event) { nested = true })
	})

	target.emit(NewEvent("ping", nil))
	assert.False(t, nested, "listener added mid-emit should not run for the emit that added it")

	target.emit(NewEvent("ping", nil))
	assert.True(t, nested)
}
