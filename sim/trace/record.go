// Package trace provides decision-trace recording for snapshot detectors.
// This package has no dependencies on sim/ or its sub-packages (it stores pure data types).
package trace

// Outcome is what a detector did with an observed event.
type Outcome string

const (
	// OutcomeTriggered means the detector requested a snapshot.
	OutcomeTriggered Outcome = "triggered"
	// OutcomeDropped means an adjustment was discarded without ending the run.
	OutcomeDropped Outcome = "dropped"
	// OutcomeSuppressed means the observed event was blocked or ignored by a guard
	// (drop interval, activation delay, minimal architecture).
	OutcomeSuppressed Outcome = "suppressed"
	// OutcomeDeferred means an adjustment was held back for the next run
	// because a snapshot was already requested.
	OutcomeDeferred Outcome = "deferred"
)

// DecisionRecord captures a single detector decision.
type DecisionRecord struct {
	Detector string
	Clock    float64
	Event    string // canonical type name of the observed event
	Outcome  Outcome
	Reason   string // run-end reason or guard description
	Subject  string // policy or measuring point id, if any
}

// SnapshotRecord captures the shape of an assembled snapshot.
type SnapshotRecord struct {
	Clock          float64
	Events         int
	Adjustments    int
	AdjustorStates int
}
