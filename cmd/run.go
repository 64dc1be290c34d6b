package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/behavior"
	"github.com/inference-sim/snapshot-sim/sim/bootstrap"
	"github.com/inference-sim/snapshot-sim/sim/codec"
	"github.com/inference-sim/snapshot-sim/sim/metrics"
	"github.com/inference-sim/snapshot-sim/sim/policy"
	"github.com/inference-sim/snapshot-sim/sim/slo"
	"github.com/inference-sim/snapshot-sim/sim/snapshot"
	"github.com/inference-sim/snapshot-sim/sim/state"
	"github.com/inference-sim/snapshot-sim/sim/trace"
)

var (
	configPath string    // Run configuration file
	runFlags   RunConfig // Flag values overriding the configuration file
)

// runCmd simulates one segment: it resumes from an init document, runs
// until a detector or the interval ends it and writes the next documents.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation segment",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := defaultRunConfig()
		if configPath != "" {
			var err error
			if cfg, err = loadRunConfig(configPath); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		applyFlagOverrides(cmd, &cfg)

		result, err := runSegment(context.Background(), cfg)
		if err != nil {
			logrus.Fatalf("Run failed: %v", err)
		}
		fmt.Printf("run %s ended after %g: %v\n", result.ID, result.Duration, result.ReasonsToLeave)
	},
}

// applyFlagOverrides copies the explicitly set flags into cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg *RunConfig) {
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("catalog", func() { cfg.Catalog = runFlags.Catalog })
	set("slo", func() { cfg.SLO = runFlags.SLO })
	set("behavior", func() { cfg.Behavior = runFlags.Behavior })
	set("init", func() { cfg.Init = runFlags.Init })
	set("other-init", func() { cfg.OtherInit = runFlags.OtherInit })
	set("measurements", func() { cfg.Measurements = runFlags.Measurements })
	set("max-duration", func() { cfg.MaxDuration = runFlags.MaxDuration })
	set("output-dir", func() { cfg.OutputDir = runFlags.OutputDir })
	set("adjuster", func() { cfg.Adjuster = runFlags.Adjuster })
	set("trace-level", func() { cfg.TraceLevel = runFlags.TraceLevel })
	set("skip-unencodable", func() { cfg.SkipUnencodable = runFlags.SkipUnencodable })
	set("metrics-file", func() { cfg.MetricsFile = runFlags.MetricsFile })
}

// runSegment runs one segment described by cfg and writes its documents.
func runSegment(ctx context.Context, cfg RunConfig) (*state.ResultState, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if !trace.IsValidTraceLevel(cfg.TraceLevel) {
		return nil, fmt.Errorf("unknown trace level %q", cfg.TraceLevel)
	}
	catalog, err := sim.LoadCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	repo := codec.NewRepository(catalog.Objects()...)

	var slos *slo.Repository
	if cfg.SLO != "" {
		if slos, err = slo.Load(cfg.SLO, catalog); err != nil {
			return nil, err
		}
	}

	other := &bootstrap.OtherInit{}
	if cfg.OtherInit != "" {
		if other, err = bootstrap.LoadOtherInit(cfg.OtherInit, catalog); err != nil {
			return nil, err
		}
	}
	params := other.BehaviorParameters
	if cfg.Behavior != "" {
		fromFile, err := behavior.LoadParameters(cfg.Behavior)
		if err != nil {
			return nil, err
		}
		params = mergeParameters(params, fromFile)
	}

	parentID, startTime := "", 0.0
	var snap *sim.Snapshot
	if cfg.Init != "" {
		doc, err := state.LoadInit(cfg.Init, codec.NewDecoder(repo))
		if err != nil {
			return nil, err
		}
		parentID, startTime, snap = doc.ID, doc.PointInTime, doc.Snapshot
	}

	// Catalog trigger times count from the start of the first run.
	for _, p := range bootstrap.ReduceTriggerTime(catalog.Policies(), startTime) {
		logrus.Infof("policy %s triggered before %g and is deactivated", p.ID, startTime)
	}
	for _, p := range bootstrap.DeactivateTimeTriggered(other.IncomingPolicies) {
		logrus.Infof("policy %s is enacted at start and deactivated", p.ID)
	}
	initializer := bootstrap.Prepare(snap, other.IncomingPolicies)

	loop := sim.NewLoop()
	store := sim.NewAdjustorStateStore()
	initializer.Apply(loop, store)
	for _, req := range bootstrap.TimeTriggered(catalog.Policies()) {
		loop.Schedule(req)
	}
	recording := snapshot.NewRecordingBehavior(loop, store)
	policy.Attach(loop, policy.NewAdjuster(cfg.Adjuster, store), initializer.Adjustments...)
	series := state.NewSeriesCollector()
	series.Attach(loop)

	if cfg.Measurements != "" {
		feed, err := loadMeasurementFeed(cfg.Measurements, catalog)
		if err != nil {
			return nil, err
		}
		for _, ev := range feed {
			loop.Schedule(ev)
		}
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	collector.Attach(loop)
	tr := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevel(cfg.TraceLevel)})

	builder := state.NewBuilder(parentID, startTime)
	run := &behavior.Run{
		Loop:      loop,
		Builder:   builder,
		Catalog:   catalog,
		SLOs:      slos,
		Initial:   initializer.Adjustments,
		Injector:  recording.Camera(),
		Decisions: trace.Tee(tr, collector),
	}
	if _, err := behavior.Install(run, params); err != nil {
		return nil, err
	}
	behavior.ScheduleIntervalEnd(loop, cfg.MaxDuration)

	logrus.Infof("Starting run %s (parent %q) at %g, max duration %g", builder.ID(), parentID, startTime, cfg.MaxDuration)
	if err := loop.Run(cfg.MaxDuration); err != nil {
		return nil, err
	}

	builder.SetMeasurements(series.Measurements())
	result, err := builder.BuildResultState()
	if err != nil {
		return nil, err
	}
	initState, err := builder.BuildInitState()
	if err != nil {
		return nil, err
	}
	collector.ObserveReasons(result.ReasonsToLeave)
	if s := trace.Summarize(tr); s.TotalDecisions > 0 {
		logrus.Infof("Decisions: %d triggered, %d dropped, %d suppressed, %d deferred",
			s.TriggeredCount, s.DroppedCount, s.SuppressedCount, s.DeferredCount)
	}

	var opts []codec.Option
	if cfg.SkipUnencodable {
		opts = append(opts, codec.WithSkipUnencodable())
	}
	if err := state.WriteRunDocuments(ctx, cfg.OutputDir, initState, result, codec.NewEncoder(repo, opts...)); err != nil {
		return nil, err
	}
	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, reg); err != nil {
			return nil, fmt.Errorf("writing metrics: %w", err)
		}
	}
	return result, nil
}

// mergeParameters overlays the parameter blocks of override on base.
func mergeParameters(base, override behavior.BehaviorParameters) behavior.BehaviorParameters {
	out := make(behavior.BehaviorParameters, len(base)+len(override))
	for key, p := range base {
		out[key] = behavior.Parameters{}
		for name, v := range p {
			out[key][name] = v
		}
	}
	for key, p := range override {
		if out[key] == nil {
			out[key] = behavior.Parameters{}
		}
		for name, v := range p {
			out[key][name] = v
		}
	}
	return out
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Run configuration YAML; flags override its values")
	runCmd.Flags().StringVar(&runFlags.Catalog, "catalog", "", "Model catalog YAML")
	runCmd.Flags().StringVar(&runFlags.SLO, "slo", "", "Service-level objectives YAML")
	runCmd.Flags().StringVar(&runFlags.Behavior, "behavior", "", "Detector parameters YAML")
	runCmd.Flags().StringVar(&runFlags.Init, "init", "", "Init document of the parent run")
	runCmd.Flags().StringVar(&runFlags.OtherInit, "other-init", "", "Bootstrap parameters document (incoming policies, detector parameters)")
	runCmd.Flags().StringVar(&runFlags.Measurements, "measurements", "", "Measurement feed YAML")
	runCmd.Flags().Float64Var(&runFlags.MaxDuration, "max-duration", 100, "Maximum duration of the segment")
	runCmd.Flags().StringVar(&runFlags.OutputDir, "output-dir", "out", "Directory receiving init.json and result.json")
	runCmd.Flags().StringVar(&runFlags.Adjuster, "adjuster", "groups", "Architecture adjuster (groups, frozen)")
	runCmd.Flags().StringVar(&runFlags.TraceLevel, "trace-level", "none", "Decision trace level (none, decisions)")
	runCmd.Flags().BoolVar(&runFlags.SkipUnencodable, "skip-unencodable", false, "Drop unencodable events from the snapshot instead of failing")
	runCmd.Flags().StringVar(&runFlags.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
}
