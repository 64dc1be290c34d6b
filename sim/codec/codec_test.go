package codec

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/internal/testutil"
)

func repositoryFor(a *testutil.Architecture) *Repository {
	return NewRepository(a.Catalog.Objects()...)
}

func roundTrip(t *testing.T, repo *Repository, s *sim.Snapshot) (*sim.Snapshot, string) {
	t.Helper()
	data, err := NewEncoder(repo).EncodeSnapshot(s)
	require.NoError(t, err)
	decoded, err := NewDecoder(repo).DecodeSnapshot(data)
	require.NoError(t, err)
	return decoded, string(data)
}

// TestCodec_RoundTrip_PreservesCycleIdentity verifies cycle-safe decoding:
// GIVEN a snapshot whose behaviour context and wrapper reference each other
// WHEN it is encoded and decoded
// THEN the decoded context and wrapper are identical objects pointing at each other.
func TestCodec_RoundTrip_PreservesCycleIdentity(t *testing.T) {
	a := testutil.NewArchitecture(t)
	_, ctx := a.User("u1")
	require.Same(t, ctx, ctx.Wrapper.Context)
	s := sim.NewSnapshot([]sim.Event{
		&sim.UsageModelPassedElement{Timing: sim.Timing{At: -3}, Element: a.Start, Kind: sim.KindStart, Context: ctx},
		&sim.ClosedWorkloadUserInitiated{Timing: sim.Timing{At: 2, After: 2}, User: ctx.User, Context: ctx, ThinkTime: 2},
	}, nil)

	decoded, _ := roundTrip(t, repositoryFor(a), s)

	events := decoded.Events()
	require.Len(t, events, 2)
	passed := events[0].(*sim.UsageModelPassedElement)
	think := events[1].(*sim.ClosedWorkloadUserInitiated)
	assert.NotSame(t, ctx, passed.Context)
	assert.Same(t, passed.Context, passed.Context.Wrapper.Context)
	assert.Same(t, passed.Context, think.Context)
	assert.Same(t, passed.Context.User, think.User)
	assert.Same(t, a.Start, passed.Element)
	assert.Equal(t, sim.KindStart, passed.Kind)
	assert.Equal(t, -3.0, passed.Time())
	assert.Equal(t, 2.0, think.ThinkTime)
}

// TestCodec_ReferenceEconomy verifies that a job shared by two events is
// written in full once and as a bare reference the second time.
func TestCodec_ReferenceEconomy(t *testing.T) {
	a := testutil.NewArchitecture(t)
	job := a.Job("j1", sim.FCFS, 6, nil)
	s := sim.NewSnapshot([]sim.Event{
		&sim.JobInitiated{Job: job},
		&sim.JobProgressed{Timing: sim.Timing{At: 3}, Job: job},
	}, nil)

	data, err := NewEncoder(repositoryFor(a)).EncodeSnapshot(s)
	require.NoError(t, err)

	var doc struct {
		Events []map[string]json.RawMessage `json:"events"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Events, 2)
	assert.True(t, strings.HasPrefix(string(doc.Events[0]["job"]), "{"), "first occurrence carries the payload")
	assert.Equal(t, `"Job-1"`, string(doc.Events[1]["job"]))
	assert.Equal(t, 1, strings.Count(string(data), `"demand"`))

	decoded, err := NewDecoder(repositoryFor(a)).DecodeSnapshot(data)
	require.NoError(t, err)
	evs := decoded.Events()
	assert.Same(t, evs[0].(*sim.JobInitiated).Job, evs[1].(*sim.JobProgressed).Job)
}

func TestCodec_RoundTrip_AllEventKindsAndStates(t *testing.T) {
	a := testutil.NewArchitecture(t)
	u, ctx := a.User("u1")
	req := a.Request("r1", u, ctx)
	job := a.Job("j1", sim.ProcessorSharing, 4, req)

	st := sim.NewPolicyAdjustorState(a.ScaleIn).Enacted(2).OffsetBy(5)
	s := sim.NewSnapshot([]sim.Event{
		&sim.ModelAdjustmentRequested{Policy: a.ScaleOut},
		&sim.SEFFModelPassedElement{Timing: sim.Timing{At: -1}, Element: a.StartAction, Kind: sim.KindStartAction, Request: req},
		&sim.JobInitiated{Job: job},
		&sim.InterArrivalUserInitiated{Timing: sim.Timing{At: 4, After: 4}, User: u, Context: ctx, InterArrival: 4},
		&sim.ModelAdjusted{Timing: sim.Timing{At: 1}, Policy: a.ScaleIn, Successful: true},
		&sim.MeasurementUpdated{Timing: sim.Timing{At: 1}, Point: a.Point, Value: 0.7},
		&sim.ModelAdjustmentRequested{Policy: a.ScaleIn},
	}, []sim.PolicyAdjustorState{st})

	decoded, _ := roundTrip(t, repositoryFor(a), s)

	require.Len(t, decoded.Events(), 5)
	assert.Equal(t, []string{"scaleOut", "scaleIn"}, decoded.PolicyIDs())

	seff := decoded.Events()[0].(*sim.SEFFModelPassedElement)
	ji := decoded.Events()[1].(*sim.JobInitiated)
	assert.Same(t, seff.Request, ji.Job.Request)
	assert.Same(t, a.CPU, ji.Job.Resource)
	assert.Equal(t, sim.ProcessorSharing, ji.Job.Discipline)
	assert.Equal(t, 4.0, ji.Job.Demand)
	assert.True(t, decoded.Events()[3].(*sim.ModelAdjusted).Successful)
	assert.Same(t, a.Point, decoded.Events()[4].(*sim.MeasurementUpdated).Point)

	states := decoded.AdjustorStates()
	require.Len(t, states, 1)
	assert.Equal(t, st, states[0])
}

func TestRepository_References(t *testing.T) {
	a := testutil.NewArchitecture(t)
	repo := repositoryFor(a)

	ref, err := repo.Reference(a.ScaleIn)
	require.NoError(t, err)
	assert.Equal(t, "default.spd#scaleIn", ref)

	resolved, err := repo.Resolve(ref)
	require.NoError(t, err)
	assert.Same(t, a.ScaleIn, resolved)

	// full locators resolve too
	resolved, err = repo.Resolve(testutil.SPDURI + "#scaleIn")
	require.NoError(t, err)
	assert.Same(t, a.ScaleIn, resolved)
}

func TestRepository_NonFileAndClashingResources_UseFullLocator(t *testing.T) {
	platform := &sim.ModelElement{ID: "x", Kind: sim.KindStart, Resource: "platform:/resource/p/a.usagemodel"}
	clash1 := &sim.ModelElement{ID: "y", Kind: sim.KindStart, Resource: "file:/one/a.usagemodel"}
	clash2 := &sim.ModelElement{ID: "z", Kind: sim.KindStart, Resource: "file:/two/a.usagemodel"}
	repo := NewRepository(platform, clash1, clash2)

	ref, err := repo.Reference(platform)
	require.NoError(t, err)
	assert.Equal(t, "platform:/resource/p/a.usagemodel#x", ref)

	ref, err = repo.Reference(clash2)
	require.NoError(t, err)
	assert.Equal(t, "file:/two/a.usagemodel#z", ref)

	_, err = repo.Resolve("a.usagemodel#y")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestRepository_Resolve_Errors(t *testing.T) {
	a := testutil.NewArchitecture(t)
	repo := repositoryFor(a)
	for _, ref := range []string{"default.spd", "#scaleIn", "unknown.spd#scaleIn", "default.spd#nope"} {
		_, err := repo.Resolve(ref)
		assert.ErrorIs(t, err, ErrMalformed, ref)
	}
}

func TestEncoder_UnresourcedElement_TypedError(t *testing.T) {
	a := testutil.NewArchitecture(t)
	loose := &sim.ModelElement{ID: "loose", Kind: sim.KindProcessingResource}
	job := &sim.Job{ID: "j", Discipline: sim.FCFS, Resource: loose}
	s := sim.NewSnapshot([]sim.Event{&sim.JobInitiated{Job: job}}, nil)

	_, err := NewEncoder(repositoryFor(a)).EncodeSnapshot(s)

	var writeErr *ModelElementWriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Same(t, loose, writeErr.Object)
}

// TestEncoder_SkipUnencodable_RollsBackReferences verifies that a skipped
// event does not leave dangling references behind.
func TestEncoder_SkipUnencodable_RollsBackReferences(t *testing.T) {
	a := testutil.NewArchitecture(t)
	u := &sim.User{ID: "u1"}
	loose := &sim.ModelElement{ID: "loose", Kind: sim.KindUsageScenario}
	// the user is first written inside the skipped event, before the
	// unresourced scenario fails it
	badCtx := sim.NewBehaviorContext("bad", u, loose, loose)
	bad := &sim.ClosedWorkloadUserInitiated{User: u, Context: badCtx}
	good := &sim.UserAborted{User: u}
	s := sim.NewSnapshot([]sim.Event{bad, good}, nil)

	enc := NewEncoder(repositoryFor(a), WithSkipUnencodable())
	data, err := enc.EncodeSnapshot(s)
	require.NoError(t, err)
	assert.Equal(t, 1, enc.Skipped)

	decoded, err := NewDecoder(repositoryFor(a)).DecodeSnapshot(data)
	require.NoError(t, err)
	require.Len(t, decoded.Events(), 1)
	got := decoded.Events()[0].(*sim.UserAborted)
	assert.Equal(t, "u1", got.User.ID)
}

func TestEncoder_SnapshotControlEvents_Unsupported(t *testing.T) {
	s := sim.NewSnapshot([]sim.Event{&sim.SnapshotInitiated{}}, nil)
	_, err := NewEncoder(NewRepository(), WithSkipUnencodable()).EncodeSnapshot(s)
	var unsupported *UnsupportedTypeError
	assert.True(t, errors.As(err, &unsupported))
}

func TestDecoder_MalformedDocuments(t *testing.T) {
	a := testutil.NewArchitecture(t)
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"wrong root type", `{"type":"Other"}`},
		{"unknown event", `{"type":"Snapshot","events":[{"type":"Teleported","time":0,"delay":0}]}`},
		{"unknown reference", `{"type":"Snapshot","events":[{"type":"UserAborted","time":0,"delay":0,"user":"User-9"}]}`},
		{"reference type mismatch", `{"type":"Snapshot","events":[
			{"type":"UserAborted","time":0,"delay":0,"user":{"type":"User","refId":"User-1","id":"u"}},
			{"type":"JobAborted","time":0,"delay":0,"job":"User-1"}]}`},
		{"duplicate refId", `{"type":"Snapshot","events":[
			{"type":"UserAborted","time":0,"delay":0,"user":{"type":"User","refId":"User-1","id":"u"}},
			{"type":"UserAborted","time":0,"delay":0,"user":{"type":"User","refId":"User-1","id":"v"}}]}`},
		{"token mismatch", `{"type":"Snapshot","events":[
			{"type":"UsageModelPassedElement","time":0,"delay":0,"genericTypeToken":"Stop","element":"default.usagemodel#start","context":null}]}`},
		{"missing time", `{"type":"Snapshot","events":[{"type":"UserAborted","delay":0,"user":null}]}`},
		{"non-adjustment in adjustments", `{"type":"Snapshot","adjustments":[{"type":"UserAborted","time":0,"delay":0,"user":null}]}`},
		{"job event without job", `{"type":"Snapshot","events":[{"type":"JobAborted","time":0,"delay":0,"job":null}]}`},
		{"unknown discipline", `{"type":"Snapshot","events":[{"type":"JobInitiated","time":0,"delay":0,
			"job":{"type":"Job","refId":"Job-1","id":"j","demand":1,"discipline":"lifo","resource":null,"request":null}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(repositoryFor(a)).DecodeSnapshot([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
