// Package testutil provides shared test infrastructure for the snapshot
// simulator: a small architecture fixture, a scripted engine and assertion helpers
// used across the sim/ sub-package tests.
package testutil

import (
	"math"
	"testing"

	"github.com/inference-sim/snapshot-sim/sim"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// Engine is a scripted sim.Engine.
type Engine struct {
	Now     float64
	Pending []sim.Event
}

func (e *Engine) CurrentTime() float64         { return e.Now }
func (e *Engine) ScheduledEvents() []sim.Event { return append([]sim.Event(nil), e.Pending...) }

// FindJobInitiated returns the JobInitiated event for the job with the given id.
func FindJobInitiated(t *testing.T, events []sim.Event, jobID string) *sim.JobInitiated {
	t.Helper()
	for _, ev := range events {
		if ji, ok := ev.(*sim.JobInitiated); ok && ji.Job.ID == jobID {
			return ji
		}
	}
	t.Fatalf("no JobInitiated for job %q", jobID)
	return nil
}
