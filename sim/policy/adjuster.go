// Package policy enacts scaling policies on their target groups.
package policy

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/snapshot-sim/sim"
)

// Adjuster decides whether a policy can be enacted at a time and enacts it.
// accounted is set for enactments the adjustor state already records, such
// as the adjustments a run starts with.
type Adjuster interface {
	Adjust(p *sim.ScalingPolicy, at float64, accounted bool) (enacted bool, reason string)
}

// Frozen never changes the architecture. Every request is reported as
// unsuccessful.
type Frozen struct{}

func (f *Frozen) Adjust(_ *sim.ScalingPolicy, _ float64, _ bool) (bool, string) {
	return false, "architecture is frozen"
}

// GroupAdjuster resizes target groups within their size constraints and
// honours cooldown constraints through the adjustor states.
type GroupAdjuster struct {
	states   *sim.AdjustorStateStore
	replicas map[*sim.TargetGroup]int
}

// NewGroupAdjuster creates an adjuster updating the given states.
func NewGroupAdjuster(states *sim.AdjustorStateStore) *GroupAdjuster {
	return &GroupAdjuster{states: states, replicas: make(map[*sim.TargetGroup]int)}
}

// Adjust enacts p at time at. It fails while the policy cools down and when
// the group would leave its size constraint. Accounted enactments skip the
// cooldown check and leave the adjustor state untouched.
func (g *GroupAdjuster) Adjust(p *sim.ScalingPolicy, at float64, accounted bool) (bool, string) {
	tg := p.TargetGroup
	if tg == nil {
		return false, "policy has no target group"
	}
	st, ok := g.states.Get(p)
	if !ok {
		st = sim.NewPolicyAdjustorState(p)
	}
	if !accounted && st.InCooldown(at) {
		return false, fmt.Sprintf("cooling down until %g", st.CooldownEnd)
	}

	size := tg.Len()
	target := targetSize(p, size)
	switch {
	case tg.Size == nil:
		target = max(1, target)
	case tg.Size.Max > 0:
		target = max(tg.Size.Min, min(tg.Size.Max, target))
	default:
		target = max(tg.Size.Min, target)
	}
	if target == size {
		return false, fmt.Sprintf("target group %s stays at %d", tg.ID, size)
	}
	for tg.Len() < target {
		g.addReplica(tg)
	}
	if tg.Len() > target {
		tg.Elements = tg.Elements[:target]
	}
	if !accounted {
		g.states.Put(st.Enacted(at))
	}
	logrus.Debugf("[t=%g] %s: target group %s %d → %d", at, p.ID, tg.ID, size, tg.Len())
	return true, ""
}

func targetSize(p *sim.ScalingPolicy, size int) int {
	switch p.Adjustment {
	case sim.AbsoluteAdjustment:
		return p.StepValue
	case sim.RelativeAdjustment:
		return size + int(math.Round(float64(size)*float64(p.StepValue)/100))
	default:
		return size + p.StepValue
	}
}

// addReplica adds a copy of the group's unit, or of its last element when
// the group has no unit.
func (g *GroupAdjuster) addReplica(tg *sim.TargetGroup) {
	template := tg.Unit
	if template == nil && tg.Len() > 0 {
		template = tg.Elements[tg.Len()-1]
	}
	g.replicas[tg]++
	replica := &sim.ModelElement{ID: fmt.Sprintf("%s-replica-%d", tg.ID, g.replicas[tg]), Kind: sim.KindResourceContainer}
	if template != nil {
		replica.Kind = template.Kind
		replica.Resource = template.Resource
		replica.Parent = template.Parent
	}
	tg.Elements = append(tg.Elements, replica)
}

// Attach subscribes a to loop. Every ModelAdjustmentRequested is answered
// with a ModelAdjusted event. The initial requests were accounted for when
// the run was prepared.
func Attach(loop *sim.Loop, a Adjuster, initial ...*sim.ModelAdjustmentRequested) {
	accounted := make(map[*sim.ModelAdjustmentRequested]bool, len(initial))
	for _, req := range initial {
		accounted[req] = true
	}
	loop.Subscribe(func(ev sim.Event) ([]sim.Event, error) {
		req, ok := ev.(*sim.ModelAdjustmentRequested)
		if !ok || req.Policy == nil {
			return nil, nil
		}
		enacted, reason := a.Adjust(req.Policy, loop.CurrentTime(), accounted[req])
		if !enacted {
			logrus.Debugf("[t=%g] %s not enacted: %s", loop.CurrentTime(), req.Policy.ID, reason)
		}
		return []sim.Event{&sim.ModelAdjusted{Policy: req.Policy, Successful: enacted}}, nil
	})
}

// NewAdjuster creates an adjuster by name.
// Valid names: "groups", "frozen".
func NewAdjuster(name string, states *sim.AdjustorStateStore) Adjuster {
	switch name {
	case "groups":
		return NewGroupAdjuster(states)
	case "frozen":
		return &Frozen{}
	default:
		panic(fmt.Sprintf("unknown adjuster %q; valid adjusters: [groups, frozen]", name))
	}
}
