package sim

import "fmt"

// Event is implemented by every simulation event variant. The set of variants
// is closed; dispatch with a type switch.
//
// Time is the absolute scheduled time within the current run. Delay is the
// delay relative to the instant the event was published.
type Event interface {
	Time() float64
	Delay() float64
	setTime(float64)
	event()
}

// Timing carries the scheduling fields shared by all events.
type Timing struct {
	At    float64
	After float64
}

func (t *Timing) Time() float64      { return t.At }
func (t *Timing) Delay() float64     { return t.After }
func (t *Timing) setTime(at float64) { t.At = at }
func (*Timing) event()               {}

// UsageModelPassedElement signals a user passing a usage-model element.
// Kind reifies the element type the event is parameterized with.
type UsageModelPassedElement struct {
	Timing
	Element *ModelElement
	Kind    ElementKind
	Context *BehaviorContext
}

// SEFFModelPassedElement signals a request passing a SEFF action.
// Kind reifies the action type the event is parameterized with.
type SEFFModelPassedElement struct {
	Timing
	Element *ModelElement
	Kind    ElementKind
	Request *Request
}

// JobInitiated inserts a job into its resource.
type JobInitiated struct {
	Timing
	Job *Job
}

// JobProgressed signals a processor-sharing or FCFS service step of a job.
// For FCFS resources its time equals the remaining normalized demand.
type JobProgressed struct {
	Timing
	Job *Job
}

// JobFinished signals a job leaving its resource.
type JobFinished struct {
	Timing
	Job *Job
}

// JobAborted removes a job from its resource without completing it.
type JobAborted struct {
	Timing
	Job *Job
}

// ClosedWorkloadUserInitiated starts a closed-workload user after its think time.
type ClosedWorkloadUserInitiated struct {
	Timing
	User      *User
	Context   *BehaviorContext
	ThinkTime float64
}

// InterArrivalUserInitiated starts an open-workload user after the inter-arrival delay.
type InterArrivalUserInitiated struct {
	Timing
	User         *User
	Context      *BehaviorContext
	InterArrival float64
}

// UserAborted cancels everything a user is currently doing.
type UserAborted struct {
	Timing
	User *User
}

// ResourceDemandRequestAborted cancels the resource demand of a request.
type ResourceDemandRequestAborted struct {
	Timing
	Request *Request
}

// ModelAdjustmentRequested asks for a scaling policy to be enacted.
type ModelAdjustmentRequested struct {
	Timing
	Policy *ScalingPolicy
}

// ModelAdjusted reports the outcome of an enacted scaling policy.
type ModelAdjusted struct {
	Timing
	Policy     *ScalingPolicy
	Successful bool
}

// MeasurementUpdated carries an aggregated measurement value.
type MeasurementUpdated struct {
	Timing
	Point *MeasuringPoint
	Value float64
}

// SnapshotInitiated requests a snapshot. Trigger is the event that caused the
// request and is redelivered when the next run resumes, nil if none.
type SnapshotInitiated struct {
	Timing
	Trigger Event
}

// SnapshotTaken is published once probe jobs forced every resource to update
// its state; the snapshot is assembled when it is delivered.
type SnapshotTaken struct {
	Timing
	Trigger Event
}

// SnapshotFinished carries the assembled snapshot and ends the run.
type SnapshotFinished struct {
	Timing
	Snapshot *Snapshot
}

// IsAbortion reports whether the event cancels in-flight work.
func IsAbortion(ev Event) bool {
	switch ev.(type) {
	case *JobAborted, *UserAborted, *ResourceDemandRequestAborted:
		return true
	}
	return false
}

// IsSnapshotControl reports whether the event belongs to the snapshot chain.
func IsSnapshotControl(ev Event) bool {
	switch ev.(type) {
	case *SnapshotInitiated, *SnapshotTaken, *SnapshotFinished:
		return true
	}
	return false
}

// EventName returns the canonical type name of an event.
func EventName(ev Event) string {
	switch ev.(type) {
	case *UsageModelPassedElement:
		return "UsageModelPassedElement"
	case *SEFFModelPassedElement:
		return "SEFFModelPassedElement"
	case *JobInitiated:
		return "JobInitiated"
	case *JobProgressed:
		return "JobProgressed"
	case *JobFinished:
		return "JobFinished"
	case *JobAborted:
		return "JobAborted"
	case *ClosedWorkloadUserInitiated:
		return "ClosedWorkloadUserInitiated"
	case *InterArrivalUserInitiated:
		return "InterArrivalUserInitiated"
	case *UserAborted:
		return "UserAborted"
	case *ResourceDemandRequestAborted:
		return "ResourceDemandRequestAborted"
	case *ModelAdjustmentRequested:
		return "ModelAdjustmentRequested"
	case *ModelAdjusted:
		return "ModelAdjusted"
	case *MeasurementUpdated:
		return "MeasurementUpdated"
	case *SnapshotInitiated:
		return "SnapshotInitiated"
	case *SnapshotTaken:
		return "SnapshotTaken"
	case *SnapshotFinished:
		return "SnapshotFinished"
	}
	return fmt.Sprintf("%T", ev)
}

// Offset returns how long before snapshotTime an event happened. Events carried
// over from an earlier run already hold a negative time, so offsets compose
// additively across runs.
func Offset(snapshotTime, eventTime float64) float64 {
	if eventTime < 0 {
		return -(eventTime - snapshotTime)
	}
	return snapshotTime - eventTime
}

// Rebase returns a shallow copy of ev whose time is expressed relative to the
// instant now. Delay-carrying user events get their remaining delay recomputed
// on the copy; the original event is never modified.
func Rebase(ev Event, now float64) Event {
	at := -Offset(now, ev.Time())
	switch e := ev.(type) {
	case *UsageModelPassedElement:
		cp := *e
		cp.At = at
		return &cp
	case *SEFFModelPassedElement:
		cp := *e
		cp.At = at
		return &cp
	case *JobInitiated:
		cp := *e
		cp.At = at
		return &cp
	case *JobProgressed:
		cp := *e
		cp.At = at
		return &cp
	case *JobFinished:
		cp := *e
		cp.At = at
		return &cp
	case *JobAborted:
		cp := *e
		cp.At = at
		return &cp
	case *ClosedWorkloadUserInitiated:
		return &ClosedWorkloadUserInitiated{
			Timing:    Timing{At: at, After: at},
			User:      e.User,
			Context:   e.Context,
			ThinkTime: at,
		}
	case *InterArrivalUserInitiated:
		return &InterArrivalUserInitiated{
			Timing:       Timing{At: at, After: at},
			User:         e.User,
			Context:      e.Context,
			InterArrival: at,
		}
	case *UserAborted:
		cp := *e
		cp.At = at
		return &cp
	case *ResourceDemandRequestAborted:
		cp := *e
		cp.At = at
		return &cp
	case *ModelAdjustmentRequested:
		cp := *e
		cp.At = at
		return &cp
	case *ModelAdjusted:
		cp := *e
		cp.At = at
		return &cp
	case *MeasurementUpdated:
		cp := *e
		cp.At = at
		return &cp
	case *SnapshotInitiated:
		cp := *e
		cp.At = at
		return &cp
	case *SnapshotTaken:
		cp := *e
		cp.At = at
		return &cp
	case *SnapshotFinished:
		cp := *e
		cp.At = at
		return &cp
	}
	panic(fmt.Sprintf("sim: unknown event type %T", ev))
}
