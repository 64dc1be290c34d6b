package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOffset_ComposesAcrossRuns verifies offset composition:
// GIVEN an event passed at t=3 in a run snapshotted at t=10
// WHEN the resumed run is snapshotted again at t=4
// THEN the second offset equals the sum of both run-relative offsets.
func TestOffset_ComposesAcrossRuns(t *testing.T) {
	first := Offset(10, 3)
	assert.Equal(t, 7.0, first)

	// resumed at -first
	second := Offset(4, -first)
	assert.Equal(t, 11.0, second)
	assert.Equal(t, (10.0-3.0)+4.0, second)
}

func TestRebase_CopiesInsteadOfMutating(t *testing.T) {
	user := &User{ID: "u1"}
	think := &ClosedWorkloadUserInitiated{Timing: Timing{At: 15, After: 5}, User: user, ThinkTime: 5}

	rebased := Rebase(think, 12)

	cw, ok := rebased.(*ClosedWorkloadUserInitiated)
	require.True(t, ok)
	assert.NotSame(t, think, cw)
	assert.Equal(t, 3.0, cw.ThinkTime)
	assert.Equal(t, 3.0, cw.Time())
	assert.Same(t, user, cw.User)
	// original unchanged
	assert.Equal(t, 5.0, think.ThinkTime)
	assert.Equal(t, 15.0, think.Time())
}

func TestRebase_InterArrival_RemainingDelay(t *testing.T) {
	ev := &InterArrivalUserInitiated{Timing: Timing{At: 20, After: 20}, InterArrival: 20}
	out := Rebase(ev, 18).(*InterArrivalUserInitiated)
	assert.Equal(t, 2.0, out.InterArrival)
	assert.Equal(t, 20.0, ev.InterArrival)
}

func TestRebase_PastStartMarker_NegativeTime(t *testing.T) {
	start := &ModelElement{ID: "start", Kind: KindStart}
	ev := &UsageModelPassedElement{Timing: Timing{At: 2}, Element: start, Kind: KindStart}
	out := Rebase(ev, 9)
	assert.Equal(t, -7.0, out.Time())
	assert.Equal(t, 2.0, ev.Time())
}

func TestIsAbortion(t *testing.T) {
	assert.True(t, IsAbortion(&JobAborted{}))
	assert.True(t, IsAbortion(&UserAborted{}))
	assert.True(t, IsAbortion(&ResourceDemandRequestAborted{}))
	assert.False(t, IsAbortion(&JobFinished{}))
	assert.True(t, IsSnapshotControl(&SnapshotTaken{}))
	assert.False(t, IsSnapshotControl(&ModelAdjusted{}))
	assert.Equal(t, "ModelAdjustmentRequested", EventName(&ModelAdjustmentRequested{}))
}
