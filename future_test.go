package gatesched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_WaitBlocksUntilResolved(t *testing.T) {
	f := newFuture[int]()

	done := make(chan Settled[int], 1)
	go func() {
		settled, err := f.Wait(context.Background())
		require.NoError(t, err)
		done <- settled
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before the future was resolved")
	case <-time.After(20 * time.Millisecond):
	}

	f.resolve(Settled[int]{Fulfilled: true, Value: 42})

	settled := <-done
	assert.True(t, settled.Fulfilled)
	assert.Equal(t, 42, settled.Value)
}

func TestFuture_WaitRespectsContextCancellation(t *testing.T) {
	f := newFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFuture_ResultAfterDone(t *testing.T) {
	f := newFuture[string]()
	f.resolve(Settled[string]{Fulfilled: false, Reason: assert.AnError})

	<-f.Done()
	settled := f.Result()
	assert.False(t, settled.Fulfilled)
	assert.ErrorIs(t, settled.Reason, assert.AnError)
}
