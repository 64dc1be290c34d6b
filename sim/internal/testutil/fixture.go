package testutil

import (
	"testing"

	"github.com/inference-sim/snapshot-sim/sim"
)

const (
	UsageModelURI  = "file:/models/default.usagemodel"
	RepositoryURI  = "file:/models/default.repository"
	EnvironmentURI = "file:/models/default.resourceenvironment"
	SPDURI         = "file:/models/default.spd"
	MonitorURI     = "file:/models/default.monitorrepository"
	SLOURI         = "file:/models/default.slo"
)

// Architecture is a small model with one usage scenario, one SEFF, two
// servers in a target group and a measuring point on the first server.
type Architecture struct {
	Catalog *sim.Catalog

	Scenario, Start, Stop           *sim.ModelElement
	SEFF, StartAction, StopAction   *sim.ModelElement
	Server1, Server2, CPU, HDD, LAN *sim.ModelElement
	Group                           *sim.TargetGroup
	ScaleIn, ScaleOut               *sim.ScalingPolicy
	Point                           *sim.MeasuringPoint
}

// NewArchitecture builds the fixture architecture. The target group holds
// both servers and has no size constraint.
func NewArchitecture(t *testing.T) *Architecture {
	t.Helper()
	file := sim.CatalogFile{
		Elements: []sim.ElementSpec{
			{ID: "scenario", Kind: sim.KindUsageScenario, Resource: UsageModelURI},
			{ID: "start", Kind: sim.KindStart, Resource: UsageModelURI, Parent: "scenario"},
			{ID: "stop", Kind: sim.KindStop, Resource: UsageModelURI, Parent: "scenario"},
			{ID: "seff", Kind: sim.KindSEFF, Resource: RepositoryURI},
			{ID: "startAction", Kind: sim.KindStartAction, Resource: RepositoryURI, Parent: "seff"},
			{ID: "stopAction", Kind: sim.KindStopAction, Resource: RepositoryURI, Parent: "seff"},
			{ID: "server1", Kind: sim.KindResourceContainer, Resource: EnvironmentURI},
			{ID: "server2", Kind: sim.KindResourceContainer, Resource: EnvironmentURI},
			{ID: "cpu", Kind: sim.KindProcessingResource, Resource: EnvironmentURI, Parent: "server1"},
			{ID: "hdd", Kind: sim.KindProcessingResource, Resource: EnvironmentURI, Parent: "server1"},
			{ID: "lan", Kind: sim.KindLinkingResource, Resource: EnvironmentURI},
		},
		TargetGroups: []sim.TargetGroupSpec{
			{ID: "tg", Resource: SPDURI, Unit: "server1", Elements: []string{"server1", "server2"}},
		},
		Policies: []sim.PolicySpec{
			{ID: "scaleIn", Resource: SPDURI, TargetGroup: "tg", Adjustment: sim.StepAdjustment, StepValue: -1},
			{ID: "scaleOut", Resource: SPDURI, TargetGroup: "tg", Adjustment: sim.StepAdjustment, StepValue: 1},
		},
		MeasuringPoints: []sim.MeasuringPointSpec{
			{ID: "mp", Resource: MonitorURI, Metric: "responseTime", Container: "server1"},
		},
	}
	c, err := sim.NewCatalog(file)
	if err != nil {
		t.Fatalf("building fixture catalog: %v", err)
	}
	a := &Architecture{Catalog: c}
	el := func(id string) *sim.ModelElement {
		e, ok := c.Element(id)
		if !ok {
			t.Fatalf("fixture element %q missing", id)
		}
		return e
	}
	a.Scenario, a.Start, a.Stop = el("scenario"), el("start"), el("stop")
	a.SEFF, a.StartAction, a.StopAction = el("seff"), el("startAction"), el("stopAction")
	a.Server1, a.Server2, a.CPU, a.HDD, a.LAN = el("server1"), el("server2"), el("cpu"), el("hdd"), el("lan")
	a.Group, _ = c.TargetGroup("tg")
	a.ScaleIn, _ = c.Policy("scaleIn")
	a.ScaleOut, _ = c.Policy("scaleOut")
	a.Point, _ = c.MeasuringPoint("mp")
	return a
}

// Shrink removes the second server from the target group.
func (a *Architecture) Shrink() {
	a.Group.Elements = []*sim.ModelElement{a.Server1}
}

// Constrain sets a size constraint on the target group.
func (a *Architecture) Constrain(min, max int) {
	a.Group.Size = &sim.SizeConstraint{Min: min, Max: max}
}

// User creates a user with a behaviour context in the fixture scenario.
func (a *Architecture) User(id string) (*sim.User, *sim.BehaviorContext) {
	u := &sim.User{ID: id}
	return u, sim.NewBehaviorContext(id+"/ctx", u, a.Scenario, a.Scenario)
}

// Request creates a request issued by the user.
func (a *Architecture) Request(id string, u *sim.User, ctx *sim.BehaviorContext) *sim.Request {
	return &sim.Request{ID: id, User: u, Context: ctx}
}

// Job creates a job of the given discipline on the matching fixture resource.
func (a *Architecture) Job(id string, d sim.Discipline, demand float64, req *sim.Request) *sim.Job {
	res := a.HDD
	switch d {
	case sim.ProcessorSharing:
		res = a.CPU
	case sim.Linking:
		res = a.LAN
	}
	return &sim.Job{ID: id, Demand: demand, Discipline: d, Resource: res, Request: req}
}
