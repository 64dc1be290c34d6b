// Package metrics exports run counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/state"
	"github.com/inference-sim/snapshot-sim/sim/trace"
)

// Collector counts the events, detector decisions and snapshots of runs.
type Collector struct {
	Events         *prometheus.CounterVec
	Decisions      *prometheus.CounterVec
	Snapshots      prometheus.Counter
	SnapshotEvents prometheus.Gauge
	RunEndReasons  *prometheus.CounterVec
}

// NewCollector creates the collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_sim_events_delivered_total", Help: "Events delivered by the loop",
		}, []string{"type"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_sim_decisions_total", Help: "Detector decisions",
		}, []string{"detector", "outcome"}),
		Snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapshot_sim_snapshots_total", Help: "Snapshots assembled",
		}),
		SnapshotEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snapshot_sim_snapshot_events", Help: "Events carried by the last snapshot",
		}),
		RunEndReasons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_sim_run_end_reasons_total", Help: "Reasons runs ended for",
		}, []string{"reason"}),
	}
	reg.MustRegister(c.Events, c.Decisions, c.Snapshots, c.SnapshotEvents, c.RunEndReasons)
	return c
}

// Attach counts the events delivered by loop.
func (c *Collector) Attach(loop *sim.Loop) {
	loop.OnPostIntercept(func(ev sim.Event) {
		c.Events.WithLabelValues(sim.EventName(ev)).Inc()
	})
}

// RecordDecision counts a detector decision.
func (c *Collector) RecordDecision(record trace.DecisionRecord) {
	c.Decisions.WithLabelValues(record.Detector, string(record.Outcome)).Inc()
}

// RecordSnapshot counts an assembled snapshot.
func (c *Collector) RecordSnapshot(record trace.SnapshotRecord) {
	c.Snapshots.Inc()
	c.SnapshotEvents.Set(float64(record.Events + record.Adjustments))
}

// ObserveReasons counts the reasons a run ended for.
func (c *Collector) ObserveReasons(reasons []state.ReasonToLeave) {
	for _, r := range reasons {
		c.RunEndReasons.WithLabelValues(string(r)).Inc()
	}
}
