package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/snapshot-sim/sim"
)

// MeasurementFeed is a YAML list of aggregated measurements delivered during
// a run. Times are relative to the start of the run.
type MeasurementFeed struct {
	Measurements []MeasurementSpec `yaml:"measurements"`
}

// MeasurementSpec is one aggregated measurement.
type MeasurementSpec struct {
	Time           float64 `yaml:"time"`
	MeasuringPoint string  `yaml:"measuring_point"`
	Value          float64 `yaml:"value"`
}

// loadMeasurementFeed reads a feed and resolves its measuring points.
func loadMeasurementFeed(path string, catalog *sim.Catalog) ([]*sim.MeasurementUpdated, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading measurement feed: %w", err)
	}
	var feed MeasurementFeed
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing measurement feed: %w", err)
	}
	events := make([]*sim.MeasurementUpdated, 0, len(feed.Measurements))
	for i, m := range feed.Measurements {
		mp, ok := catalog.MeasuringPoint(m.MeasuringPoint)
		if !ok {
			return nil, fmt.Errorf("measurement %d: unknown measuring point %q", i, m.MeasuringPoint)
		}
		if m.Time < 0 {
			return nil, fmt.Errorf("measurement %d: negative time %g", i, m.Time)
		}
		events = append(events, &sim.MeasurementUpdated{Timing: sim.Timing{At: m.Time}, Point: mp, Value: m.Value})
	}
	return events, nil
}
