package behavior

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/slo"
	"github.com/inference-sim/snapshot-sim/sim/state"
	"github.com/inference-sim/snapshot-sim/sim/trace"
)

// Injector receives events to include in the run's snapshot.
type Injector interface {
	AddEvent(ev sim.Event)
}

// Run is everything the detectors of one run share. It is owned by the
// loop's goroutine.
type Run struct {
	Loop    *sim.Loop
	Builder *state.Builder
	Catalog *sim.Catalog
	SLOs    *slo.Repository // may be nil
	// Initial are the adjustment requests injected at run start.
	Initial []*sim.ModelAdjustmentRequested
	// Injector receives adjustment requests held back once a snapshot was
	// requested; usually the run's camera.
	Injector  Injector
	Decisions trace.DecisionRecorder // may be nil
}

func (r *Run) isInitial(ev *sim.ModelAdjustmentRequested) bool {
	for _, init := range r.Initial {
		if init == ev {
			return true
		}
	}
	return false
}

func (r *Run) groups() []*sim.TargetGroup {
	if r.Catalog == nil {
		return nil
	}
	return r.Catalog.TargetGroups()
}

// initiate ends the run: it records the reason and requests a snapshot at
// the current instant.
func (r *Run) initiate(reason state.ReasonToLeave, trigger sim.Event) {
	r.Builder.AddReasonToLeave(reason)
	r.Loop.Publish(&sim.SnapshotInitiated{Trigger: trigger})
	logrus.Debugf("[t=%g] snapshot initiated: %s", r.Loop.CurrentTime(), reason)
}

func (r *Run) record(detector string, ev sim.Event, outcome trace.Outcome, reason, subject string) {
	if r.Decisions == nil {
		return
	}
	r.Decisions.RecordDecision(trace.DecisionRecord{
		Detector: detector,
		Clock:    r.Loop.CurrentTime(),
		Event:    sim.EventName(ev),
		Outcome:  outcome,
		Reason:   reason,
		Subject:  subject,
	})
}

// Detector is an installed snapshot detector.
type Detector interface {
	Key() string
	Active() bool
}

// Install creates every detector for the run, attaches the active ones to
// its loop and attaches the run-end updater.
func Install(run *Run, params BehaviorParameters) ([]Detector, error) {
	if run.Loop == nil || run.Builder == nil {
		return nil, fmt.Errorf("run needs a loop and a state builder")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	reactive, err := NewReactiveTrigger(run, params.For(KeyReactiveReconfiguration))
	if err != nil {
		return nil, err
	}
	effectless, err := NewEffectlessAbortion(run, params.For(KeyEffectlessAdjustment))
	if err != nil {
		return nil, err
	}
	closeness, err := NewClosenessTrigger(run, params.For(KeySLOCloseness))
	if err != nil {
		return nil, err
	}
	hard, err := NewHardAbortion(run, params.For(KeySLOHardAbortion))
	if err != nil {
		return nil, err
	}

	detectors := []Detector{reactive, effectless, closeness, hard}
	reactive.attach(run.Loop)
	effectless.attach(run.Loop)
	closeness.attach(run.Loop)
	hard.attach(run.Loop)
	NewRunEndUpdater(run).attach(run.Loop)

	for _, d := range detectors {
		logrus.Infof("detector %s: active=%v", d.Key(), d.Active())
	}
	return detectors, nil
}
