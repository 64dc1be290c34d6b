package behavior

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/snapshot-sim/sim/state"
	"github.com/inference-sim/snapshot-sim/sim/trace"
)

func installCloseness(t *testing.T, h *harness, p Parameters) *ClosenessTrigger {
	t.Helper()
	c, err := NewClosenessTrigger(h.run, p)
	require.NoError(t, err)
	c.attach(h.loop)
	return c
}

func TestNewClosenessTrigger_SensitivityRange(t *testing.T) {
	h := newHarness(t)
	h.withObjective()
	for _, s := range []float64{-0.1, 1.5} {
		_, err := NewClosenessTrigger(h.run, Parameters{"sensitivity": s})
		assert.ErrorIs(t, err, ErrInvalidParameter, "sensitivity %g", s)
	}
	for _, s := range []float64{0, 1} {
		_, err := NewClosenessTrigger(h.run, Parameters{"sensitivity": s})
		assert.NoError(t, err, "sensitivity %g", s)
	}
}

func TestClosenessTrigger_InactiveWithoutObjectives(t *testing.T) {
	h := newHarness(t)
	c := installCloseness(t, h, nil)
	assert.False(t, c.Active())
}

// TestClosenessTrigger_ShrunkUpperBound verifies inclusive comparison against
// shrunk soft bounds: soft 2..8 with sensitivity 0.5 gives 3.5..6.5.
func TestClosenessTrigger_ShrunkUpperBound(t *testing.T) {
	h := newHarness(t)
	h.withObjective()
	installCloseness(t, h, Parameters{"sensitivity": 0.5})

	h.measure(1, 6.4)
	h.measure(2, 6.5)
	h.runUntil(t, 10)

	require.Len(t, h.initiated, 1)
	assert.Equal(t, 2.0, h.initiated[0].Time())
	assert.Equal(t, []state.ReasonToLeave{state.ReasonClosenessToSLO}, h.run.Builder.Reasons())
}

// TestClosenessTrigger_FiresOnce verifies that checks are disabled after the
// first violation.
func TestClosenessTrigger_FiresOnce(t *testing.T) {
	h := newHarness(t)
	h.withObjective()
	installCloseness(t, h, nil)

	h.measure(1, 9)
	h.measure(2, 9)
	h.measure(3, 0.5)
	h.runUntil(t, 10)

	assert.Len(t, h.initiated, 1)
}

func TestClosenessTrigger_LowerBound_MinimalArchitecture(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(h *harness)
		wantSnapshot bool
	}{
		{"two servers", func(h *harness) {}, true},
		{"single server", func(h *harness) { h.a.Shrink() }, false},
		{"single server above min 0", func(h *harness) { h.a.Shrink(); h.a.Constrain(0, 3) }, true},
		{"two servers at min 2", func(h *harness) { h.a.Constrain(2, 3) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.withObjective()
			tt.setup(h)
			installCloseness(t, h, nil)

			h.measure(1, 2)
			h.runUntil(t, 10)

			assert.Equal(t, tt.wantSnapshot, len(h.initiated) == 1)
		})
	}
}

func TestClosenessTrigger_MinimalArchitecture_UpperStillFires(t *testing.T) {
	h := newHarness(t)
	h.withObjective()
	h.a.Shrink()
	installCloseness(t, h, nil)

	h.measure(1, 1.5)
	h.measure(2, 8)
	h.runUntil(t, 10)

	require.Len(t, h.initiated, 1)
	assert.Equal(t, 2.0, h.initiated[0].Time())
	assert.Equal(t, []trace.Outcome{trace.OutcomeSuppressed, trace.OutcomeTriggered}, h.outcomes(KeySLOCloseness))
}

func TestClosenessTrigger_ActivationDelay(t *testing.T) {
	h := newHarness(t)
	h.withObjective()
	installCloseness(t, h, Parameters{"activationDelay": 5})

	h.measure(4, 9)
	h.measure(5, 9)
	h.runUntil(t, 10)

	require.Len(t, h.initiated, 1)
	assert.Equal(t, 5.0, h.initiated[0].Time())
}

func TestClosenessTrigger_SingleEndedObjective(t *testing.T) {
	h := newHarness(t)
	o := h.withObjective()
	o.Lower = nil
	installCloseness(t, h, nil)

	h.measure(1, 0)
	h.runUntil(t, 10)
	assert.Empty(t, h.initiated)
}

// TestHardAbortion_Idempotent verifies that two hard violations in the same
// run schedule exactly one snapshot.
func TestHardAbortion_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.withObjective()
	a, err := NewHardAbortion(h.run, nil)
	require.NoError(t, err)
	require.True(t, a.Active())
	a.attach(h.loop)

	h.measure(1, 11)
	h.measure(2, 12)
	h.runUntil(t, 10)

	assert.Len(t, h.initiated, 1)
	assert.Equal(t, []state.ReasonToLeave{state.ReasonAborted}, h.run.Builder.Reasons())
}

func TestHardAbortion_IgnoresSoftBand(t *testing.T) {
	h := newHarness(t)
	h.withObjective()
	h.a.Shrink()
	a, err := NewHardAbortion(h.run, nil)
	require.NoError(t, err)
	a.attach(h.loop)

	h.measure(1, 9)   // between soft and hard upper limits
	h.measure(2, 1.5) // between hard and soft lower limits
	h.measure(3, 0.5) // below the hard lower limit, on a minimal architecture
	h.runUntil(t, 10)

	require.Len(t, h.initiated, 1)
	assert.Equal(t, 3.0, h.initiated[0].Time())
}
