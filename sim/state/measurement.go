package state

import (
	"github.com/inference-sim/snapshot-sim/sim"
)

// Sample is one measurement value at a simulation time.
type Sample struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// Series holds the samples of one measuring point, in delivery order.
type Series struct {
	MeasuringPoint string   `json:"measuringPoint"`
	Metric         string   `json:"metric"`
	Samples        []Sample `json:"samples"`
}

// MeasurementSet is the measurement series of a run, ordered by first sample.
type MeasurementSet struct {
	Series []*Series `json:"series"`
}

// Len returns the number of series.
func (m *MeasurementSet) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Series)
}

// Find returns the series of a measuring point.
func (m *MeasurementSet) Find(pointID string) (*Series, bool) {
	if m == nil {
		return nil, false
	}
	for _, s := range m.Series {
		if s.MeasuringPoint == pointID {
			return s, true
		}
	}
	return nil, false
}

// SeriesCollector records every MeasurementUpdated event delivered by a loop.
type SeriesCollector struct {
	set   MeasurementSet
	index map[string]*Series
}

// NewSeriesCollector creates an empty collector.
func NewSeriesCollector() *SeriesCollector {
	return &SeriesCollector{index: make(map[string]*Series)}
}

// Attach subscribes the collector to loop.
func (c *SeriesCollector) Attach(loop *sim.Loop) {
	loop.Subscribe(func(ev sim.Event) ([]sim.Event, error) {
		if mu, ok := ev.(*sim.MeasurementUpdated); ok {
			c.Observe(mu)
		}
		return nil, nil
	})
}

// Observe records one measurement.
func (c *SeriesCollector) Observe(mu *sim.MeasurementUpdated) {
	if mu.Point == nil {
		return
	}
	s, ok := c.index[mu.Point.ID]
	if !ok {
		s = &Series{MeasuringPoint: mu.Point.ID, Metric: mu.Point.Metric}
		c.index[mu.Point.ID] = s
		c.set.Series = append(c.set.Series, s)
	}
	s.Samples = append(s.Samples, Sample{Time: mu.Time(), Value: mu.Value})
}

// Measurements returns the collected series.
func (c *SeriesCollector) Measurements() *MeasurementSet {
	return &c.set
}
