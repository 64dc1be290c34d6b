package behavior

import (
	"fmt"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/slo"
	"github.com/inference-sim/snapshot-sim/sim/state"
	"github.com/inference-sim/snapshot-sim/sim/trace"
)

const (
	paramSensitivity     = "sensitivity"
	paramActivationDelay = "activationDelay"
)

type boundCheck struct {
	objective *slo.Objective
	bounds    slo.Bounds
}

// ClosenessTrigger ends the run when a measurement comes close to an SLO
// limit. Bounds are derived once from the soft limits and shrunk towards
// their center by the sensitivity. Lower-bound violations are ignored while
// the measured container sits in a minimally scaled target group. After the
// first violation the trigger is disabled for the rest of the run.
type ClosenessTrigger struct {
	run             *Run
	active          bool
	sensitivity     float64
	activationDelay float64

	checks map[*sim.MeasuringPoint][]boundCheck
}

// NewClosenessTrigger configures the trigger. A sensitivity outside [0,1]
// is rejected. The trigger is inactive without objectives.
func NewClosenessTrigger(run *Run, p Parameters) (*ClosenessTrigger, error) {
	active, err := p.Active()
	if err != nil {
		return nil, err
	}
	sensitivity, err := p.Float(paramSensitivity, 0)
	if err != nil {
		return nil, err
	}
	if sensitivity < 0 || sensitivity > 1 {
		return nil, fmt.Errorf("%w: %s must be in [0,1], got %g", ErrInvalidParameter, paramSensitivity, sensitivity)
	}
	delay, err := p.Float(paramActivationDelay, 0)
	if err != nil {
		return nil, err
	}
	t := &ClosenessTrigger{
		run:             run,
		active:          active && run.SLOs.Len() > 0,
		sensitivity:     sensitivity,
		activationDelay: delay,
		checks:          make(map[*sim.MeasuringPoint][]boundCheck),
	}
	if run.SLOs != nil {
		for _, o := range run.SLOs.Objectives {
			b, ok := o.SoftBounds()
			if !ok {
				continue
			}
			t.checks[o.Point] = append(t.checks[o.Point], boundCheck{objective: o, bounds: b.Shrink(sensitivity)})
		}
	}
	return t, nil
}

func (t *ClosenessTrigger) Key() string  { return KeySLOCloseness }
func (t *ClosenessTrigger) Active() bool { return t.active }

func (t *ClosenessTrigger) attach(loop *sim.Loop) {
	if t.active {
		loop.Subscribe(t.onMeasurementUpdated)
	}
}

func (t *ClosenessTrigger) onMeasurementUpdated(ev sim.Event) ([]sim.Event, error) {
	mu, ok := ev.(*sim.MeasurementUpdated)
	if !ok || len(t.checks) == 0 {
		return nil, nil
	}
	checks := t.checks[mu.Point]
	if len(checks) == 0 {
		return nil, nil
	}
	if mu.Time() < t.activationDelay {
		t.run.record(t.Key(), mu, trace.OutcomeSuppressed, "activation delay", mu.Point.ID)
		return nil, nil
	}
	for _, c := range checks {
		upper := c.bounds.ViolatesUpper(mu.Value)
		lower := c.bounds.ViolatesLower(mu.Value)
		if lower && slo.IsMinimal(mu.Point.Container, t.run.groups()) {
			t.run.record(t.Key(), mu, trace.OutcomeSuppressed, "minimal architecture", mu.Point.ID)
			lower = false
		}
		if !upper && !lower {
			continue
		}
		// checks are cleared, never re-armed, for the rest of the run
		t.checks = nil
		t.run.initiate(state.ReasonClosenessToSLO, nil)
		t.run.record(t.Key(), mu, trace.OutcomeTriggered, string(state.ReasonClosenessToSLO), c.objective.ID)
		return nil, nil
	}
	return nil, nil
}

// HardAbortion aborts the run the first time a measurement crosses a hard
// SLO threshold. There is no minimal-architecture exception.
type HardAbortion struct {
	run    *Run
	active bool
	fired  bool

	objectives map[*sim.MeasuringPoint][]*slo.Objective
}

// NewHardAbortion configures the abortion. It is inactive without objectives.
func NewHardAbortion(run *Run, p Parameters) (*HardAbortion, error) {
	active, err := p.Active()
	if err != nil {
		return nil, err
	}
	a := &HardAbortion{
		run:        run,
		active:     active && run.SLOs.Len() > 0,
		objectives: make(map[*sim.MeasuringPoint][]*slo.Objective),
	}
	if run.SLOs != nil {
		for _, o := range run.SLOs.Objectives {
			a.objectives[o.Point] = append(a.objectives[o.Point], o)
		}
	}
	return a, nil
}

func (a *HardAbortion) Key() string  { return KeySLOHardAbortion }
func (a *HardAbortion) Active() bool { return a.active }

func (a *HardAbortion) attach(loop *sim.Loop) {
	if a.active {
		loop.Subscribe(a.onMeasurementUpdated)
	}
}

func (a *HardAbortion) onMeasurementUpdated(ev sim.Event) ([]sim.Event, error) {
	mu, ok := ev.(*sim.MeasurementUpdated)
	if !ok || a.fired {
		return nil, nil
	}
	for _, o := range a.objectives[mu.Point] {
		if o.HardViolated(mu.Value) {
			a.fired = true
			a.run.initiate(state.ReasonAborted, nil)
			a.run.record(a.Key(), mu, trace.OutcomeTriggered, string(state.ReasonAborted), o.ID)
			return nil, nil
		}
	}
	return nil, nil
}
