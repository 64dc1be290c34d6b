package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/codec"
	"github.com/inference-sim/snapshot-sim/sim/state"
)

// segmentConfig writes the catalog into dir and returns a config running
// from scratch into dir/name.
func segmentConfig(t *testing.T, dir, name string) RunConfig {
	t.Helper()
	cfg := defaultRunConfig()
	cfg.Catalog = writeTestFile(t, dir, "catalog.yaml", testCatalog)
	cfg.OutputDir = filepath.Join(dir, name)
	return cfg
}

func readResult(t *testing.T, dir string) *state.ResultState {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, state.ResultFileName))
	require.NoError(t, err)
	result, err := state.DecodeResult(data)
	require.NoError(t, err)
	return result
}

func TestRunSegment_HardViolation_ThenChainedSegment(t *testing.T) {
	dir := t.TempDir()

	// GIVEN a first segment whose second measurement violates the hard bound
	first := segmentConfig(t, dir, "seg1")
	first.SLO = writeTestFile(t, dir, "slo.yaml", testSLO)
	first.Behavior = writeTestFile(t, dir, "behavior.yaml", "slo-closeness:\n  active: false\n")
	first.Measurements = writeTestFile(t, dir, "feed.yaml", `
measurements:
  - {time: 5, measuring_point: mp1, value: 3}
  - {time: 12, measuring_point: mp1, value: 11}
  - {time: 40, measuring_point: mp1, value: 4}
`)
	first.TraceLevel = "decisions"
	first.MetricsFile = filepath.Join(dir, "metrics.prom")

	// WHEN it runs
	r1, err := runSegment(context.Background(), first)
	require.NoError(t, err)

	// THEN it ends at the violation and writes both documents
	assert.Equal(t, []state.ReasonToLeave{state.ReasonAborted}, r1.ReasonsToLeave)
	assert.Equal(t, 12.0, r1.Duration)
	assert.Equal(t, "", r1.ParentID)
	onDisk := readResult(t, first.OutputDir)
	assert.Equal(t, r1.ID, onDisk.ID)
	series, ok := onDisk.MeasurementSeries.Find("mp1")
	require.True(t, ok)
	assert.Len(t, series.Samples, 2)
	metrics, err := os.ReadFile(first.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "snapshot_sim_run_end_reasons_total")

	// AND the pending measurement is carried over, relative to the snapshot
	catalog, err := sim.ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)
	doc, err := state.LoadInit(filepath.Join(first.OutputDir, state.InitFileName),
		codec.NewDecoder(codec.NewRepository(catalog.Objects()...)))
	require.NoError(t, err)
	assert.Equal(t, r1.ID, doc.ID)
	assert.Equal(t, 12.0, doc.PointInTime)
	var carried []*sim.MeasurementUpdated
	for _, ev := range doc.Snapshot.Events() {
		if mu, ok := ev.(*sim.MeasurementUpdated); ok {
			carried = append(carried, mu)
		}
	}
	require.Len(t, carried, 1)
	assert.Equal(t, 28.0, carried[0].Time())

	// WHEN a second segment resumes it enacting scaleOut at start
	second := segmentConfig(t, dir, "seg2")
	second.Init = filepath.Join(first.OutputDir, state.InitFileName)
	second.OtherInit = writeTestFile(t, dir, "other.json", `{"incomingPolicyIds": ["scaleOut"]}`)
	second.MaxDuration = 20
	r2, err := runSegment(context.Background(), second)
	require.NoError(t, err)

	// THEN it is linked to its parent and runs the full interval
	assert.Equal(t, r1.ID, r2.ParentID)
	assert.Equal(t, 12.0, r2.StartTime)
	assert.Equal(t, 20.0, r2.Duration)
	assert.Equal(t, []state.ReasonToLeave{state.ReasonInterval}, r2.ReasonsToLeave)
	assert.NotEqual(t, r1.ID, r2.ID)
}

func TestRunSegment_EffectlessStartAdjustment(t *testing.T) {
	dir := t.TempDir()

	// GIVEN a group at its minimum and scaleIn enacted at start
	cfg := segmentConfig(t, dir, "seg")
	cfg.OtherInit = writeTestFile(t, dir, "other.json", `{"incomingPolicyIds": ["scaleIn"]}`)

	// WHEN the segment runs
	result, err := runSegment(context.Background(), cfg)

	// THEN the unchanged architecture aborts it immediately
	require.NoError(t, err)
	assert.Equal(t, []state.ReasonToLeave{state.ReasonAborted}, result.ReasonsToLeave)
	assert.Equal(t, 0.0, result.Duration)
}

// withPolicy returns the test catalog with one more policy.
func withPolicy(policy string) string {
	return strings.Replace(testCatalog, "policies:\n", "policies:\n"+policy, 1)
}

func TestRunSegment_StartAdjustmentStartingCooldown(t *testing.T) {
	dir := t.TempDir()

	// GIVEN a policy whose every enactment starts a cooldown, enacted at start
	cfg := segmentConfig(t, dir, "seg")
	cfg.Catalog = writeTestFile(t, dir, "cooldown.yaml", withPolicy(`  - id: scaleOutOnce
    resource: file:/models/default.spd
    target_group: tg1
    step_value: 1
    cooldown:
      time: 10
      max_operations: 0
`))
	cfg.OtherInit = writeTestFile(t, dir, "other.json", `{"incomingPolicyIds": ["scaleOutOnce"]}`)
	cfg.MaxDuration = 5

	// WHEN the segment runs
	result, err := runSegment(context.Background(), cfg)

	// THEN the adjustment is applied and the run lasts its interval
	require.NoError(t, err)
	assert.Equal(t, []state.ReasonToLeave{state.ReasonInterval}, result.ReasonsToLeave)
	assert.Equal(t, 5.0, result.Duration)
}

func TestRunSegment_TimeTriggeredPolicyAcrossSegments(t *testing.T) {
	dir := t.TempDir()
	timed := withPolicy(`  - id: scheduledScaleOut
    resource: file:/models/default.spd
    target_group: tg1
    step_value: 1
    simulation_time_triggered: true
    trigger_time: 30
`)

	// GIVEN a policy triggered at 30 and a first segment ending at 20
	first := segmentConfig(t, dir, "seg1")
	first.Catalog = writeTestFile(t, dir, "timed.yaml", timed)
	first.MaxDuration = 20
	r1, err := runSegment(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, []state.ReasonToLeave{state.ReasonInterval}, r1.ReasonsToLeave)

	// WHEN the second segment resumes at 20
	second := segmentConfig(t, dir, "seg2")
	second.Catalog = first.Catalog
	second.Init = filepath.Join(first.OutputDir, state.InitFileName)
	r2, err := runSegment(context.Background(), second)
	require.NoError(t, err)

	// THEN the trigger fires 10 into it and ends it reactively
	assert.Equal(t, []state.ReasonToLeave{state.ReasonReactiveReconfiguration}, r2.ReasonsToLeave)
	assert.Equal(t, 10.0, r2.Duration)
	assert.Equal(t, []string{"scheduledScaleOut"}, r2.OutgoingPolicyIDs)

	// WHEN a third segment enacts the policy at start
	third := segmentConfig(t, dir, "seg3")
	third.Catalog = first.Catalog
	third.Init = filepath.Join(second.OutputDir, state.InitFileName)
	third.OtherInit = writeTestFile(t, dir, "other.json", `{"incomingPolicyIds": ["scheduledScaleOut"]}`)
	third.MaxDuration = 15
	r3, err := runSegment(context.Background(), third)
	require.NoError(t, err)

	// THEN the policy does not fire again
	assert.Equal(t, 30.0, r3.StartTime)
	assert.Equal(t, []state.ReasonToLeave{state.ReasonInterval}, r3.ReasonsToLeave)
	assert.Equal(t, 15.0, r3.Duration)

	// WHEN a segment starts after the trigger time without enacting it
	late := segmentConfig(t, dir, "seg4")
	late.Catalog = first.Catalog
	late.Init = filepath.Join(third.OutputDir, state.InitFileName)
	late.MaxDuration = 5
	r4, err := runSegment(context.Background(), late)
	require.NoError(t, err)

	// THEN the passed trigger is deactivated
	assert.Equal(t, []state.ReasonToLeave{state.ReasonInterval}, r4.ReasonsToLeave)
}

func TestRunSegment_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("unknown incoming policy", func(t *testing.T) {
		cfg := segmentConfig(t, dir, "a")
		cfg.OtherInit = writeTestFile(t, dir, "bad.json", `{"incomingPolicyIds": ["nope"]}`)
		_, err := runSegment(context.Background(), cfg)
		assert.Error(t, err)
	})

	t.Run("invalid trace level", func(t *testing.T) {
		cfg := segmentConfig(t, dir, "b")
		cfg.TraceLevel = "verbose"
		_, err := runSegment(context.Background(), cfg)
		assert.ErrorContains(t, err, "trace level")
	})

	t.Run("invalid detector parameter", func(t *testing.T) {
		cfg := segmentConfig(t, dir, "c")
		cfg.Behavior = writeTestFile(t, dir, "bad.yaml", "slo-closeness:\n  sensitivity: 3\n")
		_, err := runSegment(context.Background(), cfg)
		assert.Error(t, err)
	})
}

func TestInspectAndParams(t *testing.T) {
	dir := t.TempDir()
	cfg := segmentConfig(t, dir, "seg")
	cfg.MaxDuration = 10
	_, err := runSegment(context.Background(), cfg)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, inspectInit(&out, filepath.Join(cfg.OutputDir, state.InitFileName), cfg.Catalog))
	assert.Contains(t, out.String(), "=== Snapshot")

	out.Reset()
	require.NoError(t, writeOtherInit(&out, cfg.Catalog, "", []string{"scaleOut"}))
	assert.Contains(t, out.String(), `"scaleOut"`)

	assert.Error(t, writeOtherInit(&out, cfg.Catalog, "", []string{"nope"}))
}
