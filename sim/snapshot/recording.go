package snapshot

import (
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/snapshot-sim/sim"
)

// RecordingBehavior feeds the recorder from the loop and drives the snapshot
// chain SnapshotInitiated → SnapshotTaken → SnapshotFinished.
type RecordingBehavior struct {
	recorder *Recorder
	camera   *Camera

	taken    bool
	finished bool
}

// NewRecordingBehavior creates the behaviour and its camera for the given loop.
func NewRecordingBehavior(loop *sim.Loop, states sim.AdjustorStates) *RecordingBehavior {
	rec := NewRecorder()
	b := &RecordingBehavior{
		recorder: rec,
		camera:   NewCamera(loop, rec, states),
	}
	loop.OnPreIntercept(b.preIntercept)
	loop.Subscribe(b.handle)
	loop.OnPostIntercept(b.postIntercept)
	return b
}

// Recorder returns the recorder fed by this behaviour.
func (b *RecordingBehavior) Recorder() *Recorder { return b.recorder }

// Camera returns the camera taking this run's snapshot.
func (b *RecordingBehavior) Camera() *Camera { return b.camera }

func (b *RecordingBehavior) preIntercept(ev sim.Event) sim.Interception {
	switch e := ev.(type) {
	case *sim.JobInitiated:
		b.recorder.OnJobEntering(e)
	case *sim.JobAborted:
		// probe jobs only exist to make resources update their jobs
		if IsFake(e) {
			return sim.Abort
		}
	}
	return sim.Proceed
}

func (b *RecordingBehavior) postIntercept(ev sim.Event) {
	if e, ok := ev.(*sim.JobInitiated); ok {
		b.recorder.OnJobEntered(e)
	}
}

func (b *RecordingBehavior) handle(ev sim.Event) ([]sim.Event, error) {
	switch e := ev.(type) {
	case *sim.UsageModelPassedElement:
		switch e.Kind {
		case sim.KindStart:
			b.recorder.OnCalculatorOpened(e)
		case sim.KindStop:
			b.recorder.OnCalculatorClosed(e)
		}
	case *sim.SEFFModelPassedElement:
		switch e.Kind {
		case sim.KindStartAction:
			b.recorder.OnCalculatorOpened(e)
		case sim.KindStopAction:
			b.recorder.OnCalculatorClosed(e)
		}
	case *sim.JobFinished:
		b.recorder.OnJobLeft(e)
	case *sim.JobAborted:
		b.recorder.RemoveForAbortedJob(e)
	case *sim.UserAborted:
		b.recorder.RemoveOpenCalculatorsForUser(e.User)
	case *sim.SnapshotInitiated:
		return b.onSnapshotInitiated(e), nil
	case *sim.SnapshotTaken:
		return b.onSnapshotTaken(e)
	}
	return nil, nil
}

// onSnapshotInitiated schedules one probe job per processor-sharing resource,
// forcing it to update the remaining demand of its jobs, followed by SnapshotTaken.
func (b *RecordingBehavior) onSnapshotInitiated(ev *sim.SnapshotInitiated) []sim.Event {
	if b.taken {
		if ev.Trigger != nil && !b.finished {
			b.camera.AddEvent(ev.Trigger)
		}
		return nil
	}
	b.taken = true

	var out []sim.Event
	resources := make(map[*sim.ModelElement]bool)
	for _, rec := range b.recorder.ProcSharingRecords() {
		res := rec.Job.Resource
		if res == nil || resources[res] {
			continue
		}
		resources[res] = true
		out = append(out, &sim.JobInitiated{Job: &sim.Job{
			ID:         FakeID,
			Discipline: sim.ProcessorSharing,
			Resource:   res,
		}})
	}
	logrus.Debugf("[t=%g] snapshot initiated, %d probe jobs", ev.Time(), len(out))
	return append(out, &sim.SnapshotTaken{Trigger: ev.Trigger})
}

func (b *RecordingBehavior) onSnapshotTaken(ev *sim.SnapshotTaken) ([]sim.Event, error) {
	if b.finished {
		return nil, nil
	}
	b.finished = true
	if ev.Trigger != nil {
		b.camera.AddEvent(ev.Trigger)
	}
	snap, err := b.camera.TakeSnapshot()
	if err != nil {
		return nil, err
	}
	return []sim.Event{&sim.SnapshotFinished{Snapshot: snap}}, nil
}
