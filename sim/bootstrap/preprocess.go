package bootstrap

import (
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/snapshot-sim/sim"
)

// Initializer is everything a run starts with.
type Initializer struct {
	// Adjustments are enacted at time 0, in order.
	Adjustments []*sim.ModelAdjustmentRequested
	// Events are the carried-over events of the parent's snapshot.
	Events []sim.Event
	States []sim.PolicyAdjustorState
}

// Prepare builds the initializer of a run resuming snap and enacting the
// incoming policies at start. The adjustor state of every incoming policy
// records an enactment at time 0; policies without a state get a fresh one.
// snap may be nil for the first run.
func Prepare(snap *sim.Snapshot, incoming []*sim.ScalingPolicy) *Initializer {
	init := &Initializer{}
	for _, p := range incoming {
		init.Adjustments = append(init.Adjustments, &sim.ModelAdjustmentRequested{Policy: p})
	}

	isIncoming := make(map[*sim.ScalingPolicy]bool, len(incoming))
	for _, p := range incoming {
		isIncoming[p] = true
	}
	known := make(map[*sim.ScalingPolicy]bool)
	if snap != nil {
		init.Events = snap.Events()
		for _, st := range snap.AdjustorStates() {
			known[st.Policy] = true
			if isIncoming[st.Policy] {
				st = st.Enacted(0)
			}
			init.States = append(init.States, st)
		}
	}
	for _, p := range incoming {
		if known[p] {
			continue
		}
		known[p] = true
		init.States = append(init.States, sim.NewPolicyAdjustorState(p).Enacted(0))
	}
	return init
}

// Apply schedules the initializer on loop and stores its adjustor states.
// Carried-over events keep their times relative to the snapshot instant.
func (i *Initializer) Apply(loop *sim.Loop, store *sim.AdjustorStateStore) {
	for _, adj := range i.Adjustments {
		loop.Schedule(adj)
	}
	for _, ev := range i.Events {
		loop.Schedule(ev)
	}
	for _, st := range i.States {
		store.Put(st)
	}
	logrus.Infof("run initialised: %d adjustments, %d events, %d adjustor states",
		len(i.Adjustments), len(i.Events), len(i.States))
}

// DeactivateTimeTriggered deactivates the incoming policies triggered by
// simulation time: they are enacted explicitly at run start instead.
func DeactivateTimeTriggered(incoming []*sim.ScalingPolicy) []*sim.ScalingPolicy {
	var deactivated []*sim.ScalingPolicy
	for _, p := range incoming {
		if p.SimulationTimeTriggered && p.Active {
			p.Active = false
			deactivated = append(deactivated, p)
		}
	}
	return deactivated
}

// ReduceTriggerTime moves the trigger time of active simulation-time
// triggered policies back by elapsed, the time simulated before the run
// starts. Policies whose trigger time already passed are deactivated and
// returned.
func ReduceTriggerTime(policies []*sim.ScalingPolicy, elapsed float64) []*sim.ScalingPolicy {
	var deactivated []*sim.ScalingPolicy
	for _, p := range policies {
		if !p.Active || !p.SimulationTimeTriggered {
			continue
		}
		if p.TriggerTime < elapsed {
			p.Active = false
			deactivated = append(deactivated, p)
			logrus.Debugf("policy %s deactivated: trigger time %g passed", p.ID, p.TriggerTime)
			continue
		}
		p.TriggerTime -= elapsed
		logrus.Debugf("policy %s: trigger time reduced by %g to %g", p.ID, elapsed, p.TriggerTime)
	}
	return deactivated
}

// TimeTriggered returns the adjustment requests of the active
// simulation-time triggered policies, at their trigger times.
func TimeTriggered(policies []*sim.ScalingPolicy) []*sim.ModelAdjustmentRequested {
	var out []*sim.ModelAdjustmentRequested
	for _, p := range policies {
		if p.Active && p.SimulationTimeTriggered {
			out = append(out, &sim.ModelAdjustmentRequested{Timing: sim.Timing{At: p.TriggerTime}, Policy: p})
		}
	}
	return out
}
