package behavior

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/state"
	"github.com/inference-sim/snapshot-sim/sim/trace"
)

// EffectlessAbortion aborts a run whose initial adjustments left every
// target group at its initial size. Only sizes are compared: replacing one
// element by another counts as no change.
type EffectlessAbortion struct {
	run    *Run
	active bool

	initial map[*sim.TargetGroup]int
	applied int
}

// NewEffectlessAbortion records the target group sizes at run start. It is
// only active when the run starts with adjustments and the architecture has
// target groups.
func NewEffectlessAbortion(run *Run, p Parameters) (*EffectlessAbortion, error) {
	active, err := p.Active()
	if err != nil {
		return nil, err
	}
	a := &EffectlessAbortion{run: run, initial: make(map[*sim.TargetGroup]int)}
	for _, g := range run.groups() {
		a.initial[g] = g.Len()
	}
	a.active = active && len(run.Initial) > 0 && len(a.initial) > 0
	return a, nil
}

func (a *EffectlessAbortion) Key() string  { return KeyEffectlessAdjustment }
func (a *EffectlessAbortion) Active() bool { return a.active }

func (a *EffectlessAbortion) attach(loop *sim.Loop) {
	if a.active {
		loop.Subscribe(a.onModelAdjusted)
	}
}

// onModelAdjusted counts applied adjustments, successful or not. The initial
// adjustments are enacted at time zero, before any reactive one.
func (a *EffectlessAbortion) onModelAdjusted(ev sim.Event) ([]sim.Event, error) {
	adjusted, ok := ev.(*sim.ModelAdjusted)
	if !ok {
		return nil, nil
	}
	a.applied++
	if adjusted.Time() > 0 && a.applied <= len(a.run.Initial) {
		return nil, fmt.Errorf("adjustment %d of %d from the run start applied at %g", a.applied, len(a.run.Initial), adjusted.Time())
	}
	if a.applied != len(a.run.Initial) {
		return nil, nil
	}
	for g, size := range a.initial {
		if g.Len() != size {
			logrus.Debugf("target group %s changed size %d → %d", g.ID, size, g.Len())
			return nil, nil
		}
	}
	a.run.initiate(state.ReasonAborted, nil)
	a.run.record(a.Key(), adjusted, trace.OutcomeTriggered, string(state.ReasonAborted), "")
	return nil, nil
}
