package behavior

import (
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/state"
	"github.com/inference-sim/snapshot-sim/sim/trace"
)

// SnapshotRecorder receives the shape of the finished snapshot.
type SnapshotRecorder interface {
	RecordSnapshot(record trace.SnapshotRecord)
}

// RunEndUpdater stores the finished snapshot and the run duration in the
// builder and stops the loop. A run ending without any other reason ends
// because its interval elapsed.
type RunEndUpdater struct {
	run  *Run
	done bool
}

// NewRunEndUpdater creates the updater of run.
func NewRunEndUpdater(run *Run) *RunEndUpdater {
	return &RunEndUpdater{run: run}
}

func (u *RunEndUpdater) attach(loop *sim.Loop) {
	loop.Subscribe(u.onSnapshotFinished)
}

func (u *RunEndUpdater) onSnapshotFinished(ev sim.Event) ([]sim.Event, error) {
	fin, ok := ev.(*sim.SnapshotFinished)
	if !ok || u.done {
		return nil, nil
	}
	u.done = true
	now := u.run.Loop.CurrentTime()
	b := u.run.Builder
	b.SetSnapshot(fin.Snapshot)
	b.SetDuration(now)
	if len(b.Reasons()) == 0 {
		b.AddReasonToLeave(state.ReasonInterval)
	}
	if r, ok := u.run.Decisions.(SnapshotRecorder); ok && fin.Snapshot != nil {
		r.RecordSnapshot(trace.SnapshotRecord{
			Clock:          now,
			Events:         len(fin.Snapshot.Events()),
			Adjustments:    len(fin.Snapshot.Adjustments()),
			AdjustorStates: len(fin.Snapshot.AdjustorStates()),
		})
	}
	logrus.Infof("[t=%g] run %s ended: %v", now, b.ID(), b.Reasons())
	u.run.Loop.Stop()
	return nil, nil
}

// ScheduleIntervalEnd requests the snapshot ending a run that reached its
// maximum duration.
func ScheduleIntervalEnd(loop *sim.Loop, maxDuration float64) {
	loop.Schedule(&sim.SnapshotInitiated{Timing: sim.Timing{At: maxDuration}})
}
