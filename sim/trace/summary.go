package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions  int
	TriggeredCount  int
	DroppedCount    int
	SuppressedCount int
	DeferredCount   int
	Snapshots       int
	MeanEvents      float64        // mean number of events per snapshot
	ByDetector      map[string]int // detector key → count of decisions
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		ByDetector: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Decisions)
	for _, d := range st.Decisions {
		summary.ByDetector[d.Detector]++
		switch d.Outcome {
		case OutcomeTriggered:
			summary.TriggeredCount++
		case OutcomeDropped:
			summary.DroppedCount++
		case OutcomeSuppressed:
			summary.SuppressedCount++
		case OutcomeDeferred:
			summary.DeferredCount++
		}
	}

	summary.Snapshots = len(st.Snapshots)
	if len(st.Snapshots) > 0 {
		total := 0
		for _, s := range st.Snapshots {
			total += s.Events
		}
		summary.MeanEvents = float64(total) / float64(len(st.Snapshots))
	}

	return summary
}
