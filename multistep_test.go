package gatesched

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiStep_BuildsOneGatePerStep(t *testing.T) {
	m := NewMultiStep([]int{1, 2, 3})
	require.Len(t, m.Gates(), 3)

	assert.False(t, m.IsStepLockLimitReached(0))
	assert.False(t, m.IsStepLockLimitReached(1))
	assert.False(t, m.IsStepLockLimitReached(2))
	assert.False(t, m.IsStepLockLimitReached(-1))
	assert.False(t, m.IsStepLockLimitReached(3))
}

func TestMultiStep_IsStepLockLimitReached(t *testing.T) {
	m := NewMultiStep([]int{1})
	release, ok := m.Gates()[0].TryAcquire()
	require.True(t, ok)
	assert.True(t, m.IsStepLockLimitReached(0))

	release()
	assert.False(t, m.IsStepLockLimitReached(0))
}

func TestMultiStep_RunAcquiresGatesInCallableOrder(t *testing.T) {
	m := NewMultiStep([]int{1, 1})

	f := RunStep[string](m, func(gates []*Gate, args ...any) (string, error) {
		rel0, ok := gates[0].TryAcquire()
		if !ok {
			return "", assert.AnError
		}
		defer rel0()

		rel1, ok := gates[1].TryAcquire()
		if !ok {
			return "", assert.AnError
		}
		defer rel1()

		return "ok", nil
	})

	settled, err := f.Wait(context.Background())
	require.NoError(t, err)
	require.True(t, settled.Fulfilled)
	assert.Equal(t, "ok", settled.Value)
}

func TestMultiStep_ReleaseAllForcesEveryGate(t *testing.T) {
	m := NewMultiStep([]int{1, 1})
	_, ok0 := m.Gates()[0].TryAcquire()
	_, ok1 := m.Gates()[1].TryAcquire()
	require.True(t, ok0)
	require.True(t, ok1)

	m.ReleaseAll()

	assert.True(t, m.Gates()[0].IsAvailable())
	assert.True(t, m.Gates()[1].IsAvailable())
}

func TestMultiStep_RunManyStepsPreservesOrder(t *testing.T) {
	m := NewMultiStep([]int{2})

	jobs := []StepJob[int]{
		{Task: func(gates []*Gate, args ...any) (int, error) { return 1, nil }},
		{Task: func(gates []*Gate, args ...any) (int, error) { return 2, nil }},
	}
	agg := RunManySteps(m, jobs)

	settled, err := agg.Wait(context.Background())
	require.NoError(t, err)
	require.True(t, settled.Fulfilled)
	require.Len(t, settled.Value, 2)
	assert.Equal(t, 1, settled.Value[0].Value)
	assert.Equal(t, 2, settled.Value[1].Value)
}

func TestMultiStep_RunForEachSteps(t *testing.T) {
	m := NewMultiStep([]int{1})
	entities := []string{"x", "y", "z"}

	agg := RunForEachSteps[string, string](m, entities, func(gates []*Gate, entity string) (string, error) {
		return entity + "!", nil
	})

	settled, err := agg.Wait(context.Background())
	require.NoError(t, err)
	require.True(t, settled.Fulfilled)
	require.Len(t, settled.Value, 3)
	assert.Equal(t, "x!", settled.Value[0].Value)
	assert.Equal(t, "y!", settled.Value[1].Value)
	assert.Equal(t, "z!", settled.Value[2].Value)
}

func TestMultiStep_StepTaskPanicIsConvertedToRejection(t *testing.T) {
	m := NewMultiStep([]int{1})
	f := RunStep[string](m, func(gates []*Gate, args ...any) (string, error) { panic("boom") })

	settled, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, settled.Fulfilled)
	require.Error(t, settled.Reason)
	assert.Contains(t, settled.Reason.Error(), "boom")
}
