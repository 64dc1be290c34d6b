package snapshot

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/snapshot-sim/sim"
)

// ErrInconsistentState reports that the recorder and the engine disagree about
// in-flight work. No snapshot is produced when it occurs.
var ErrInconsistentState = errors.New("inconsistent simulation state")

// Camera assembles snapshots from the engine's pending events, the recorder
// and the policy adjustor states.
type Camera struct {
	engine   sim.Engine
	recorder *Recorder
	states   sim.AdjustorStates
	injected []sim.Event
}

// NewCamera creates a camera. states may be nil when no policy is adjusted.
func NewCamera(engine sim.Engine, recorder *Recorder, states sim.AdjustorStates) *Camera {
	return &Camera{engine: engine, recorder: recorder, states: states}
}

// AddEvent injects an event into the next snapshot, typically the event that
// caused the snapshot so it is redelivered when the next run resumes.
func (c *Camera) AddEvent(ev sim.Event) {
	c.injected = append(c.injected, ev)
}

// TakeSnapshot assembles the snapshot of the current instant.
func (c *Camera) TakeSnapshot() (*sim.Snapshot, error) {
	now := c.engine.CurrentTime()
	pending := c.engine.ScheduledEvents()

	// Same-instant abortions may not have been delivered yet; apply them
	// before anything is derived from the recorder.
	aborted := c.reconcileAbortions(pending)

	inService := make(map[*sim.Job]sim.Event)
	for _, ev := range pending {
		switch e := ev.(type) {
		case *sim.JobProgressed:
			inService[e.Job] = e
		case *sim.JobFinished:
			inService[e.Job] = e
		}
	}

	collected := make([]sim.Event, 0, len(pending)+len(c.injected))
	collected = append(collected, c.injected...)
	collected = append(collected, scheduledAdjustments(pending)...)
	for _, ev := range pending {
		if skipPending(ev, now, aborted) {
			continue
		}
		collected = append(collected, ev)
	}

	fcfs, err := c.reinsertFCFS(now, inService)
	if err != nil {
		return nil, err
	}
	collected = append(collected, fcfs...)
	collected = append(collected, c.reinsertProcSharing(now)...)
	collected = append(collected, c.recorder.OpenCalculators()...)

	seen := make(map[sim.Event]bool, len(collected))
	events := make([]sim.Event, 0, len(collected))
	for _, ev := range collected {
		if seen[ev] || IsFake(ev) {
			continue
		}
		seen[ev] = true
		events = append(events, sim.Rebase(ev, now))
	}

	var states []sim.PolicyAdjustorState
	if c.states != nil {
		for _, st := range c.states.AdjustorStates() {
			states = append(states, st.OffsetBy(now))
		}
	}

	snap := sim.NewSnapshot(events, states)
	logrus.Infof("[t=%g] snapshot taken: %d events, %d adjustments, %d adjustor states",
		now, len(snap.Events()), len(snap.Adjustments()), len(states))
	return snap, nil
}

// reconcileAbortions applies pending abortions to the recorder and returns the
// set of aborted jobs.
func (c *Camera) reconcileAbortions(pending []sim.Event) map[*sim.Job]bool {
	aborted := make(map[*sim.Job]bool)
	for _, ev := range pending {
		switch e := ev.(type) {
		case *sim.JobAborted:
			if IsFake(e) || e.Job == nil {
				continue
			}
			aborted[e.Job] = true
			c.recorder.RemoveForAbortedJob(e)
			c.recorder.RemoveOpenCalculatorsForUser(e.Job.Owner())
		case *sim.UserAborted:
			c.recorder.RemoveOpenCalculatorsForUser(e.User)
			c.recorder.RemoveJobsWhere(func(j *sim.Job) bool {
				if j.Owner() == e.User {
					aborted[j] = true
					return true
				}
				return false
			})
		case *sim.ResourceDemandRequestAborted:
			if e.Request == nil {
				continue
			}
			c.recorder.RemoveOpenCalculatorsForUser(e.Request.User)
			c.recorder.RemoveJobsWhere(func(j *sim.Job) bool {
				if j.Request == e.Request {
					aborted[j] = true
					return true
				}
				return false
			})
		}
	}
	if len(aborted) > 0 {
		logrus.Debugf("reconciled %d aborted jobs before snapshot", len(aborted))
	}
	return aborted
}

// scheduledAdjustments returns the adjustment requests wrapped into pending
// snapshot events, which would otherwise be lost with them.
func scheduledAdjustments(pending []sim.Event) []sim.Event {
	var out []sim.Event
	for _, ev := range pending {
		var trigger sim.Event
		switch e := ev.(type) {
		case *sim.SnapshotInitiated:
			trigger = e.Trigger
		case *sim.SnapshotTaken:
			trigger = e.Trigger
		}
		if adj, ok := trigger.(*sim.ModelAdjustmentRequested); ok {
			out = append(out, adj)
		}
	}
	return out
}

// skipPending reports whether a pending event must not be carried into the
// snapshot. Requests of simulation-time triggered policies that are not yet
// due are rescheduled from the policy's trigger time by the next run.
func skipPending(ev sim.Event, now float64, aborted map[*sim.Job]bool) bool {
	if sim.IsAbortion(ev) || sim.IsSnapshotControl(ev) || IsFake(ev) {
		return true
	}
	switch e := ev.(type) {
	case *sim.JobProgressed, *sim.JobFinished:
		// superseded by the reinsertion events
		return true
	case *sim.JobInitiated:
		return aborted[e.Job]
	case *sim.ModelAdjustmentRequested:
		return e.Policy != nil && e.Policy.SimulationTimeTriggered && e.Time() >= now
	}
	return false
}

func reinsert(now float64, job *sim.Job, demand float64) *sim.JobInitiated {
	return &sim.JobInitiated{Timing: sim.Timing{At: now}, Job: job.WithDemand(demand)}
}

// reinsertFCFS creates the events that put queued FCFS and linking jobs back
// into their resources. Resources normalize the demand of inserted jobs, so
// the remaining demand is denormalized with the job's requested/normalized factor.
func (c *Camera) reinsertFCFS(now float64, inService map[*sim.Job]sim.Event) ([]sim.Event, error) {
	var out []sim.Event
	for _, rec := range c.recorder.FCFSRecords() {
		switch ev, served := inService[rec.Job]; {
		case rec.Normalized == 0:
			if rec.Job.Demand != 0 {
				return nil, fmt.Errorf("%w: job %s has normalized demand 0 but demand %g",
					ErrInconsistentState, rec.Job.ID, rec.Job.Demand)
			}
			out = append(out, reinsert(now, rec.Job, 0))
		case served:
			// the event time equals the remaining normalized demand
			remaining := ev.Time() - now
			out = append(out, reinsert(now, rec.Job, remaining*(rec.Requested/rec.Normalized)))
		default:
			out = append(out, reinsert(now, rec.Job, rec.Requested))
		}
	}
	return out, nil
}

// reinsertProcSharing creates the events that put jobs back into their
// processor-sharing resources with the requested demand reduced by the share
// already served.
func (c *Camera) reinsertProcSharing(now float64) []sim.Event {
	var out []sim.Event
	for _, rec := range c.recorder.ProcSharingRecords() {
		ratio := 0.0
		if rec.Normalized != 0 {
			ratio = rec.Current() / rec.Normalized
		}
		out = append(out, reinsert(now, rec.Job, rec.Requested*ratio))
	}
	return out
}
