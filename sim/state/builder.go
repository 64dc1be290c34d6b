package state

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/snapshot-sim/sim"
)

var (
	// ErrIncompleteBuilder reports a build attempted before every required
	// field was set.
	ErrIncompleteBuilder = errors.New("incomplete run state builder")
	// ErrAlreadyBuilt reports a second build of the same state.
	ErrAlreadyBuilt = errors.New("run state already built")
)

// UtilityScorer rates the outcome of a run. It is supplied by the optimiser
// driving the runs.
type UtilityScorer interface {
	Utility(result *ResultState) (float64, error)
}

// UtilityFunc adapts a function to UtilityScorer.
type UtilityFunc func(result *ResultState) (float64, error)

func (f UtilityFunc) Utility(result *ResultState) (float64, error) { return f(result) }

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithScorer sets the scorer computing the result's utility.
func WithScorer(s UtilityScorer) BuilderOption {
	return func(b *Builder) { b.scorer = s }
}

// WithID overrides the generated run id.
func WithID(id string) BuilderOption {
	return func(b *Builder) { b.id = id }
}

// Builder accumulates the outcome of one run. A Builder is not reusable
// across runs: each build succeeds at most once.
type Builder struct {
	id        string
	parentID  string
	startTime float64
	scorer    UtilityScorer

	duration     float64
	durationSet  bool
	snapshot     *sim.Snapshot
	measurements *MeasurementSet
	reasons      []ReasonToLeave

	resultBuilt bool
	initBuilt   bool
}

// NewBuilder creates the builder of a run started at startTime by the run
// parentID (empty for the first run).
func NewBuilder(parentID string, startTime float64, opts ...BuilderOption) *Builder {
	b := &Builder{id: uuid.NewString(), parentID: parentID, startTime: startTime}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ID returns the id of the run.
func (b *Builder) ID() string { return b.id }

// SetDuration records how long the run lasted.
func (b *Builder) SetDuration(d float64) {
	b.duration = d
	b.durationSet = true
}

// SetSnapshot records the snapshot the run ended with.
func (b *Builder) SetSnapshot(s *sim.Snapshot) { b.snapshot = s }

// SetMeasurements records the run's measurement series.
func (b *Builder) SetMeasurements(m *MeasurementSet) { b.measurements = m }

// AddReasonToLeave records why the run ended. Adding a reason twice has no
// effect.
func (b *Builder) AddReasonToLeave(r ReasonToLeave) {
	if b.HasReason(r) {
		return
	}
	logrus.Debugf("run %s: reason to leave %s", b.id, r)
	b.reasons = append(b.reasons, r)
}

// HasReason reports whether r was recorded.
func (b *Builder) HasReason(r ReasonToLeave) bool {
	for _, known := range b.reasons {
		if known == r {
			return true
		}
	}
	return false
}

// Reasons returns the recorded reasons in insertion order.
func (b *Builder) Reasons() []ReasonToLeave {
	return append([]ReasonToLeave(nil), b.reasons...)
}

func (b *Builder) checkInit() error {
	if !b.durationSet || b.duration < 0 {
		return fmt.Errorf("%w: duration not set or negative", ErrIncompleteBuilder)
	}
	if b.snapshot == nil {
		return fmt.Errorf("%w: snapshot not set", ErrIncompleteBuilder)
	}
	return nil
}

// BuildResultState builds the result of the run. It requires a non-negative
// duration, a snapshot, the measurements and at least one reason to leave.
func (b *Builder) BuildResultState() (*ResultState, error) {
	if b.resultBuilt {
		return nil, ErrAlreadyBuilt
	}
	if len(b.reasons) == 0 {
		return nil, fmt.Errorf("%w: no reason to leave", ErrIncompleteBuilder)
	}
	if err := b.checkInit(); err != nil {
		return nil, err
	}
	if b.measurements == nil {
		return nil, fmt.Errorf("%w: measurements not set", ErrIncompleteBuilder)
	}
	r := &ResultState{
		ParentID:          b.parentID,
		ID:                b.id,
		StartTime:         b.startTime,
		Duration:          b.duration,
		ReasonsToLeave:    b.Reasons(),
		MeasurementSeries: b.measurements,
		OutgoingPolicyIDs: b.snapshot.PolicyIDs(),
	}
	if b.scorer != nil {
		u, err := b.scorer.Utility(r)
		if err != nil {
			return nil, fmt.Errorf("scoring run %s: %w", b.id, err)
		}
		r.Utility = &u
	}
	b.resultBuilt = true
	return r, nil
}

// BuildInitState builds the state the next run starts from. It requires a
// non-negative duration and a snapshot.
func (b *Builder) BuildInitState() (*InitState, error) {
	if b.initBuilt {
		return nil, ErrAlreadyBuilt
	}
	if err := b.checkInit(); err != nil {
		return nil, err
	}
	b.initBuilt = true
	return &InitState{
		ID:          b.id,
		PointInTime: b.startTime + b.duration,
		Snapshot:    b.snapshot,
	}, nil
}
