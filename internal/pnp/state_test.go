package pnp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harryfoxfox/safe-sub000/internal/kernel"
)

func TestTransition_StartDevice(t *testing.T) {
	next, action := Transition(NotStarted, kernel.MnStartDevice)
	assert.Equal(t, Started, next)
	assert.Equal(t, ActionPassDownSync, action)
}

func TestTransition_StopAndCancelStop(t *testing.T) {
	next, action := Transition(Started, kernel.MnQueryStopDevice)
	assert.Equal(t, StopPending, next)
	assert.Equal(t, ActionPassDownAsync, action)

	next, action = Transition(StopPending, kernel.MnCancelStopDevice)
	assert.Equal(t, Started, next)
	assert.Equal(t, ActionPassDownAsync, action)

	next, _ = Transition(StopPending, kernel.MnStopDevice)
	assert.Equal(t, Stopped, next)
}

func TestTransition_RemoveQueryAndCancel(t *testing.T) {
	next, action := Transition(Started, kernel.MnQueryRemoveDevice)
	assert.Equal(t, RemovePending, next)
	assert.Equal(t, ActionPassDownAsync, action)

	next, action = Transition(RemovePending, kernel.MnCancelRemoveDevice)
	assert.Equal(t, Started, next)
	assert.Equal(t, ActionPassDownAsync, action)
}

func TestTransition_SurpriseRemovalFromAnyState(t *testing.T) {
	for _, s := range []State{NotStarted, Started, StopPending, Stopped, RemovePending} {
		next, action := Transition(s, kernel.MnSurpriseRemoval)
		assert.Equal(t, SurpriseRemovePending, next)
		assert.Equal(t, ActionPassDownAsync, action)
	}
}

func TestTransition_RemoveDeviceAlwaysReleasesAndWaits(t *testing.T) {
	for _, s := range []State{NotStarted, Started, StopPending, Stopped, RemovePending, SurpriseRemovePending} {
		next, action := Transition(s, kernel.MnRemoveDevice)
		assert.Equal(t, Deleted, next)
		assert.Equal(t, ActionReleaseAndWaitThenPassDown, action)
	}
}

func TestTransition_UnmatchedCombinationPassesThroughUnchanged(t *testing.T) {
	next, action := Transition(Stopped, kernel.MnStartDevice)
	assert.Equal(t, Stopped, next)
	assert.Equal(t, ActionPassDownAsync, action)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Started", Started.String())
	assert.Equal(t, "Unknown", State(99).String())
}
