package behavior

import (
	"testing"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/internal/testutil"
	"github.com/inference-sim/snapshot-sim/sim/slo"
	"github.com/inference-sim/snapshot-sim/sim/state"
	"github.com/inference-sim/snapshot-sim/sim/trace"
)

type injected struct{ events []sim.Event }

func (i *injected) AddEvent(ev sim.Event) { i.events = append(i.events, ev) }

type harness struct {
	a        *testutil.Architecture
	loop     *sim.Loop
	run      *Run
	injected *injected
	trace    *trace.SimulationTrace

	initiated []*sim.SnapshotInitiated
	delivered []sim.Event
}

func newHarness(t *testing.T, initial ...*sim.ModelAdjustmentRequested) *harness {
	t.Helper()
	a := testutil.NewArchitecture(t)
	h := &harness{
		a:        a,
		loop:     sim.NewLoop(),
		injected: &injected{},
		trace:    trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions}),
	}
	h.run = &Run{
		Loop:      h.loop,
		Builder:   state.NewBuilder("", 0),
		Catalog:   a.Catalog,
		Initial:   initial,
		Injector:  h.injected,
		Decisions: h.trace,
	}
	h.loop.Subscribe(func(ev sim.Event) ([]sim.Event, error) {
		h.delivered = append(h.delivered, ev)
		if si, ok := ev.(*sim.SnapshotInitiated); ok {
			h.initiated = append(h.initiated, si)
		}
		return nil, nil
	})
	return h
}

func ptr(f float64) *float64 { return &f }

// withObjective adds an objective on the fixture measuring point with
// lower hard 1 / soft 2 and upper soft 8 / hard 10.
func (h *harness) withObjective() *slo.Objective {
	o := &slo.Objective{
		ID:    "rt",
		Point: h.a.Point,
		Lower: &slo.Threshold{Hard: 1, Soft: ptr(2)},
		Upper: &slo.Threshold{Hard: 10, Soft: ptr(8)},
	}
	h.run.SLOs = &slo.Repository{Objectives: []*slo.Objective{o}}
	return o
}

func (h *harness) measure(at, value float64) {
	h.loop.Schedule(&sim.MeasurementUpdated{Timing: sim.Timing{At: at}, Point: h.a.Point, Value: value})
}

func (h *harness) runUntil(t *testing.T, horizon float64) {
	t.Helper()
	if err := h.loop.Run(horizon); err != nil {
		t.Fatalf("loop failed: %v", err)
	}
}

func (h *harness) outcomes(detector string) []trace.Outcome {
	var out []trace.Outcome
	for _, d := range h.trace.Decisions {
		if d.Detector == detector {
			out = append(out, d.Outcome)
		}
	}
	return out
}
