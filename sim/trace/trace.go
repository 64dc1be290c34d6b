package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures all detector decisions and snapshots.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// DecisionRecorder receives detector decisions.
type DecisionRecorder interface {
	RecordDecision(record DecisionRecord)
}

// SimulationTrace collects decision records during a run.
type SimulationTrace struct {
	Config    TraceConfig
	Decisions []DecisionRecord
	Snapshots []SnapshotRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:    config,
		Decisions: make([]DecisionRecord, 0),
		Snapshots: make([]SnapshotRecord, 0),
	}
}

func (st *SimulationTrace) enabled() bool {
	return st != nil && st.Config.Level == TraceLevelDecisions
}

// RecordDecision appends a detector decision record.
func (st *SimulationTrace) RecordDecision(record DecisionRecord) {
	if !st.enabled() {
		return
	}
	st.Decisions = append(st.Decisions, record)
}

// RecordSnapshot appends a snapshot record.
func (st *SimulationTrace) RecordSnapshot(record SnapshotRecord) {
	if !st.enabled() {
		return
	}
	st.Snapshots = append(st.Snapshots, record)
}

type tee []DecisionRecorder

func (t tee) RecordDecision(record DecisionRecord) {
	for _, r := range t {
		r.RecordDecision(record)
	}
}

// RecordSnapshot forwards the record to every member that records snapshots.
func (t tee) RecordSnapshot(record SnapshotRecord) {
	for _, r := range t {
		if sr, ok := r.(interface{ RecordSnapshot(SnapshotRecord) }); ok {
			sr.RecordSnapshot(record)
		}
	}
}

// Tee returns a recorder forwarding every decision to all non-nil recorders.
// Snapshot records reach the members that accept them.
func Tee(recorders ...DecisionRecorder) DecisionRecorder {
	out := make(tee, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
