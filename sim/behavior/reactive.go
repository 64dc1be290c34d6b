package behavior

import (
	"fmt"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/state"
	"github.com/inference-sim/snapshot-sim/sim/trace"
)

const (
	paramDoDrop       = "doDrop"
	paramDropInterval = "dropInterval"
)

// ReactiveTrigger ends the run on the first adjustment requested by a
// scaling policy during the run. The request is aborted so that the
// architecture is unchanged when the snapshot is taken, and is redelivered
// at the start of the next run.
type ReactiveTrigger struct {
	run          *Run
	active       bool
	doDrop       bool
	dropInterval float64

	fired bool
}

// NewReactiveTrigger configures the trigger from its parameter block.
func NewReactiveTrigger(run *Run, p Parameters) (*ReactiveTrigger, error) {
	active, err := p.Active()
	if err != nil {
		return nil, err
	}
	doDrop, err := p.Bool(paramDoDrop, true)
	if err != nil {
		return nil, err
	}
	dropInterval, err := p.Float(paramDropInterval, 0)
	if err != nil {
		return nil, err
	}
	if dropInterval < 0 {
		return nil, fmt.Errorf("%w: %s must not be negative, got %g", ErrInvalidParameter, paramDropInterval, dropInterval)
	}
	return &ReactiveTrigger{
		run:          run,
		active:       active,
		doDrop:       doDrop,
		dropInterval: dropInterval,
	}, nil
}

func (t *ReactiveTrigger) Key() string  { return KeyReactiveReconfiguration }
func (t *ReactiveTrigger) Active() bool { return t.active }

func (t *ReactiveTrigger) attach(loop *sim.Loop) {
	if t.active {
		loop.OnPreIntercept(t.preIntercept)
	}
}

func (t *ReactiveTrigger) preIntercept(ev sim.Event) sim.Interception {
	req, ok := ev.(*sim.ModelAdjustmentRequested)
	if !ok || t.run.isInitial(req) {
		return sim.Proceed
	}
	subject := ""
	if req.Policy != nil {
		subject = req.Policy.ID
	}

	if req.Time() < t.dropInterval {
		t.run.record(t.Key(), req, trace.OutcomeSuppressed, "drop interval", subject)
		return sim.Abort
	}
	if t.isDrop(req.Policy) {
		t.run.record(t.Key(), req, trace.OutcomeDropped, "scale-in on minimal target group", subject)
		return sim.Abort
	}
	if t.fired {
		// one snapshot per run: later requests wait for the next run
		if t.run.Injector != nil {
			t.run.Injector.AddEvent(req)
		}
		t.run.record(t.Key(), req, trace.OutcomeDeferred, string(state.ReasonReactiveReconfiguration), subject)
		return sim.Abort
	}
	t.fired = true
	t.run.initiate(state.ReasonReactiveReconfiguration, req)
	t.run.record(t.Key(), req, trace.OutcomeTriggered, string(state.ReasonReactiveReconfiguration), subject)
	return sim.Abort
}

// isDrop reports whether the policy is a scale-in on an already minimal
// target group.
func (t *ReactiveTrigger) isDrop(p *sim.ScalingPolicy) bool {
	return t.doDrop && p != nil && p.IsScaleIn() && p.TargetGroup != nil && p.TargetGroup.IsMinimal()
}
