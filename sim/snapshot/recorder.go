// Package snapshot captures the in-flight state of a run: the recorder tracks
// what the engine cannot reconstruct by itself, the camera assembles an
// offset, restartable sim.Snapshot from it.
package snapshot

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/snapshot-sim/sim"
)

// FakeID is the job id of probe jobs used to force resource updates.
const FakeID = "fakeID"

// IsFake reports whether ev is a probe job event.
func IsFake(ev sim.Event) bool {
	switch e := ev.(type) {
	case *sim.JobInitiated:
		return e.Job != nil && e.Job.ID == FakeID
	case *sim.JobAborted:
		return e.Job != nil && e.Job.ID == FakeID
	case *sim.JobProgressed:
		return e.Job != nil && e.Job.ID == FakeID
	case *sim.JobFinished:
		return e.Job != nil && e.Job.ID == FakeID
	}
	return false
}

// RecordedJob binds a job to the demands needed to denormalize it later.
type RecordedJob struct {
	Job        *sim.Job
	Requested  float64 // demand before the resource normalized it
	Normalized float64 // demand right after normalization
	seq        int
}

// Current returns the job's current remaining (normalized) demand.
func (r *RecordedJob) Current() float64 {
	return r.Job.Demand
}

type calculatorKey struct {
	owner any // *sim.User for usage calculators, *sim.Request for SEFF calculators
	scope *sim.ModelElement
}

type openCalculator struct {
	start sim.Event
	seq   int
}

// Recorder tracks queued jobs and open response-time calculators.
type Recorder struct {
	jobs        map[*sim.Job]*RecordedJob
	calculators map[calculatorKey]openCalculator
	seq         int
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		jobs:        make(map[*sim.Job]*RecordedJob),
		calculators: make(map[calculatorKey]openCalculator),
	}
}

// OnJobEntering creates the record of a job before its resource processed the
// JobInitiated event, capturing the requested demand.
func (r *Recorder) OnJobEntering(ev *sim.JobInitiated) {
	if ev.Job == nil || ev.Job.ID == FakeID {
		return
	}
	r.seq++
	r.jobs[ev.Job] = &RecordedJob{Job: ev.Job, Requested: ev.Job.Demand, seq: r.seq}
}

// OnJobEntered updates the record after the resource normalized the demand.
func (r *Recorder) OnJobEntered(ev *sim.JobInitiated) {
	rec, ok := r.jobs[ev.Job]
	if !ok {
		return
	}
	rec.Normalized = ev.Job.Demand
}

// OnJobLeft removes the record of a finished job.
func (r *Recorder) OnJobLeft(ev *sim.JobFinished) {
	delete(r.jobs, ev.Job)
}

// RemoveForAbortedJob removes the record of an aborted job.
func (r *Recorder) RemoveForAbortedJob(ev *sim.JobAborted) {
	delete(r.jobs, ev.Job)
}

// RemoveJobsWhere removes every job record matching pred.
func (r *Recorder) RemoveJobsWhere(pred func(*sim.Job) bool) {
	for job := range r.jobs {
		if pred(job) {
			delete(r.jobs, job)
		}
	}
}

func calculatorKeyOf(ev sim.Event) (calculatorKey, bool) {
	switch e := ev.(type) {
	case *sim.UsageModelPassedElement:
		if e.Context == nil || e.Element == nil {
			return calculatorKey{}, false
		}
		return calculatorKey{owner: e.Context.User, scope: e.Element.Parent}, true
	case *sim.SEFFModelPassedElement:
		if e.Request == nil || e.Element == nil {
			return calculatorKey{}, false
		}
		return calculatorKey{owner: e.Request, scope: e.Element.Parent}, true
	}
	return calculatorKey{}, false
}

// OnCalculatorOpened records the start marker event of a usage scenario or a SEFF.
func (r *Recorder) OnCalculatorOpened(ev sim.Event) {
	key, ok := calculatorKeyOf(ev)
	if !ok {
		return
	}
	r.seq++
	r.calculators[key] = openCalculator{start: ev, seq: r.seq}
}

// OnCalculatorClosed removes the calculator a stop marker event closes.
func (r *Recorder) OnCalculatorClosed(ev sim.Event) {
	key, ok := calculatorKeyOf(ev)
	if !ok {
		return
	}
	if _, open := r.calculators[key]; !open {
		logrus.Debugf("closing calculator that was never opened: %s", sim.EventName(ev))
	}
	delete(r.calculators, key)
}

// RemoveOpenCalculatorsForUser drops every calculator opened by or on behalf of user.
func (r *Recorder) RemoveOpenCalculatorsForUser(user *sim.User) {
	if user == nil {
		return
	}
	for key := range r.calculators {
		switch owner := key.owner.(type) {
		case *sim.User:
			if owner == user {
				delete(r.calculators, key)
			}
		case *sim.Request:
			if owner.User == user {
				delete(r.calculators, key)
			}
		}
	}
}

func (r *Recorder) records(match func(sim.Discipline) bool) []*RecordedJob {
	out := make([]*RecordedJob, 0)
	for _, rec := range r.jobs {
		if match(rec.Job.Discipline) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// FCFSRecords returns the records of jobs at FCFS and linking resources.
func (r *Recorder) FCFSRecords() []*RecordedJob {
	return r.records(func(d sim.Discipline) bool { return d == sim.FCFS || d == sim.Linking })
}

// ProcSharingRecords returns the records of jobs at processor-sharing resources.
func (r *Recorder) ProcSharingRecords() []*RecordedJob {
	return r.records(func(d sim.Discipline) bool { return d == sim.ProcessorSharing })
}

// OpenCalculators returns the start events of all open calculators.
func (r *Recorder) OpenCalculators() []sim.Event {
	open := make([]openCalculator, 0, len(r.calculators))
	for _, c := range r.calculators {
		open = append(open, c)
	}
	sort.Slice(open, func(i, j int) bool { return open[i].seq < open[j].seq })
	out := make([]sim.Event, len(open))
	for i, c := range open {
		out[i] = c.start
	}
	return out
}
