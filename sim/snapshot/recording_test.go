package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/internal/testutil"
)

// psResource stands in for a processor-sharing resource: it normalizes job
// demand on entry and, when a probe arrives, serves every job by served units.
type psResource struct {
	rate   float64
	served float64
	jobs   []*sim.Job
}

func (r *psResource) handle(ev sim.Event) ([]sim.Event, error) {
	ji, ok := ev.(*sim.JobInitiated)
	if !ok {
		return nil, nil
	}
	if ji.Job.ID == FakeID {
		for _, j := range r.jobs {
			j.Demand -= r.served
		}
		return []sim.Event{&sim.JobAborted{Job: ji.Job}}, nil
	}
	ji.Job.Demand = ji.Job.Demand / r.rate
	r.jobs = append(r.jobs, ji.Job)
	return nil, nil
}

func TestRecordingBehavior_SnapshotChain(t *testing.T) {
	a := testutil.NewArchitecture(t)
	loop := sim.NewLoop()
	res := &psResource{rate: 2, served: 1}
	loop.Subscribe(res.handle)
	b := NewRecordingBehavior(loop, nil)

	var finished *sim.SnapshotFinished
	loop.Subscribe(func(ev sim.Event) ([]sim.Event, error) {
		if sf, ok := ev.(*sim.SnapshotFinished); ok {
			finished = sf
			loop.Stop()
		}
		return nil, nil
	})

	trigger := &sim.ModelAdjustmentRequested{Timing: sim.Timing{At: 5}, Policy: a.ScaleOut}
	loop.Schedule(&sim.JobInitiated{Timing: sim.Timing{At: 1}, Job: a.Job("ps", sim.ProcessorSharing, 10, nil)})
	loop.Schedule(&sim.SnapshotInitiated{Timing: sim.Timing{At: 5}, Trigger: trigger})
	loop.Schedule(&sim.SnapshotInitiated{Timing: sim.Timing{At: 5}})

	require.NoError(t, loop.Run(100))
	require.NotNil(t, finished)

	snap := finished.Snapshot
	// probe served 1 of 5 normalized units: 10 * 4/5
	testutil.AssertFloat64Equal(t, "ps demand", 8, testutil.FindJobInitiated(t, snap.Events(), "ps").Job.Demand, 1e-9)
	require.Len(t, snap.Adjustments(), 1)
	assert.Same(t, a.ScaleOut, snap.Adjustments()[0].Policy)
	assert.Empty(t, b.Recorder().FCFSRecords())
	// the probe's abortion never reaches subscribers
	assert.Equal(t, 1, loop.Aborted)
}

func TestRecordingBehavior_CalculatorTracking(t *testing.T) {
	a := testutil.NewArchitecture(t)
	loop := sim.NewLoop()
	b := NewRecordingBehavior(loop, nil)
	_, ctx := a.User("u1")

	loop.Schedule(&sim.UsageModelPassedElement{Timing: sim.Timing{At: 1}, Element: a.Start, Kind: sim.KindStart, Context: ctx})
	require.NoError(t, loop.Run(10))
	assert.Len(t, b.Recorder().OpenCalculators(), 1)

	loop.Schedule(&sim.UsageModelPassedElement{Timing: sim.Timing{At: 2}, Element: a.Stop, Kind: sim.KindStop, Context: ctx})
	require.NoError(t, loop.Run(10))
	assert.Empty(t, b.Recorder().OpenCalculators())
}
