package behavior

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/state"
)

func adjusted(at float64, p *sim.ScalingPolicy, ok bool) *sim.ModelAdjusted {
	return &sim.ModelAdjusted{Timing: sim.Timing{At: at}, Policy: p, Successful: ok}
}

func TestEffectlessAbortion_UnchangedGroups_Abort(t *testing.T) {
	h := newHarness(t, requested(0, nil), requested(0, nil))
	a, err := NewEffectlessAbortion(h.run, nil)
	require.NoError(t, err)
	require.True(t, a.Active())
	a.attach(h.loop)

	// GIVEN two initial adjustments, one failing and one leaving sizes unchanged
	h.loop.Schedule(adjusted(0, h.a.ScaleIn, false))
	h.loop.Schedule(adjusted(0, h.a.ScaleIn, true))
	h.runUntil(t, 10)

	// THEN the run is aborted once the second was applied
	require.Len(t, h.initiated, 1)
	assert.Nil(t, h.initiated[0].Trigger)
	assert.Equal(t, []state.ReasonToLeave{state.ReasonAborted}, h.run.Builder.Reasons())
}

func TestEffectlessAbortion_ChangedGroup_Continues(t *testing.T) {
	h := newHarness(t, requested(0, nil))
	a, err := NewEffectlessAbortion(h.run, nil)
	require.NoError(t, err)
	a.attach(h.loop)
	h.a.Shrink()

	h.loop.Schedule(adjusted(0, h.a.ScaleIn, true))
	h.runUntil(t, 10)

	assert.Empty(t, h.initiated)
}

func TestEffectlessAbortion_LateInitialAdjustment_Fails(t *testing.T) {
	h := newHarness(t, requested(0, nil), requested(0, nil))
	a, err := NewEffectlessAbortion(h.run, nil)
	require.NoError(t, err)
	a.attach(h.loop)

	h.loop.Schedule(adjusted(0, h.a.ScaleIn, true))
	h.loop.Schedule(adjusted(1, h.a.ScaleIn, true))

	assert.Error(t, h.loop.Run(10))
}

func TestEffectlessAbortion_InactiveWithoutInitialAdjustments(t *testing.T) {
	h := newHarness(t)
	a, err := NewEffectlessAbortion(h.run, nil)
	require.NoError(t, err)
	assert.False(t, a.Active())

	a.attach(h.loop)
	h.loop.Schedule(adjusted(0, h.a.ScaleIn, true))
	h.runUntil(t, 10)
	assert.Empty(t, h.initiated)
}
