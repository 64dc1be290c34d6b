package sim

import (
	"fmt"
	"path"
	"strings"
)

// ModelObject is an object owned by an externally loaded architecture model.
// Model objects are never serialized by value; they are referenced by the
// locator of the resource that contains them plus their fragment id.
type ModelObject interface {
	// ModelID returns the fragment identifying the object inside its resource.
	ModelID() string
	// ResourceURI returns the locator of the containing resource, or "" if the
	// object is not contained in any resource.
	ResourceURI() string
}

// Locator returns the full external locator "<resource>#<fragment>" of a model object.
func Locator(o ModelObject) string {
	return o.ResourceURI() + "#" + o.ModelID()
}

// ResourceFileName returns the file name of a "file:" resource locator, or ""
// if the locator does not point to a file.
func ResourceFileName(uri string) string {
	if !strings.HasPrefix(uri, "file:") {
		return ""
	}
	return path.Base(strings.TrimPrefix(uri, "file:"))
}

// ElementKind names the concrete type of a model element.
type ElementKind string

const (
	KindStart              ElementKind = "Start"
	KindStop               ElementKind = "Stop"
	KindEntryLevelCall     ElementKind = "EntryLevelSystemCall"
	KindDelay              ElementKind = "Delay"
	KindStartAction        ElementKind = "StartAction"
	KindStopAction         ElementKind = "StopAction"
	KindExternalCall       ElementKind = "ExternalCallAction"
	KindInternalAction     ElementKind = "InternalAction"
	KindUsageScenario      ElementKind = "UsageScenario"
	KindSEFF               ElementKind = "ResourceDemandingSEFF"
	KindResourceContainer  ElementKind = "ResourceContainer"
	KindProcessingResource ElementKind = "ProcessingResource"
	KindLinkingResource    ElementKind = "LinkingResource"
)

// ValidElementKinds is the set of recognized element kinds.
var ValidElementKinds = map[ElementKind]bool{
	KindStart: true, KindStop: true, KindEntryLevelCall: true, KindDelay: true,
	KindStartAction: true, KindStopAction: true, KindExternalCall: true, KindInternalAction: true,
	KindUsageScenario: true, KindSEFF: true, KindResourceContainer: true,
	KindProcessingResource: true, KindLinkingResource: true,
}

// ModelElement is an architecture model element: a usage step, a SEFF action,
// a resource container or a processing resource.
type ModelElement struct {
	ID       string
	Kind     ElementKind
	Resource string
	// Parent is the enclosing behaviour (scenario or SEFF) for steps and actions,
	// and the resource container for processing resources.
	Parent *ModelElement
}

func (e *ModelElement) ModelID() string     { return e.ID }
func (e *ModelElement) ResourceURI() string { return e.Resource }

func (e *ModelElement) String() string {
	return fmt.Sprintf("%s[%s]", e.Kind, e.ID)
}

// MeasuringPoint identifies where a measurement is taken.
type MeasuringPoint struct {
	ID       string
	Resource string
	Metric   string
	// Container is the resource container the measured element is deployed on.
	// Nil for measuring points not bound to a container.
	Container *ModelElement
}

func (m *MeasuringPoint) ModelID() string     { return m.ID }
func (m *MeasuringPoint) ResourceURI() string { return m.Resource }

// SizeConstraint bounds the number of elements of a target group.
type SizeConstraint struct {
	Min int
	Max int // 0 when unbounded above
}

// TargetGroup is the set of architecture elements a scaling policy grows or shrinks.
type TargetGroup struct {
	ID       string
	Resource string
	Unit     *ModelElement
	Elements []*ModelElement
	Size     *SizeConstraint // nil when the group carries no size constraint
}

func (g *TargetGroup) ModelID() string     { return g.ID }
func (g *TargetGroup) ResourceURI() string { return g.Resource }

// Len returns the current number of elements in the group.
func (g *TargetGroup) Len() int {
	return len(g.Elements)
}

// Contains reports whether the element is a member of the group.
func (g *TargetGroup) Contains(e *ModelElement) bool {
	for _, member := range g.Elements {
		if member == e {
			return true
		}
	}
	return false
}

// IsMinimal reports whether the group cannot be scaled in any further: its size
// is at or below the constraint's minimum, or at most one element when no
// constraint exists.
func (g *TargetGroup) IsMinimal() bool {
	if g.Size != nil {
		return g.Len() <= g.Size.Min
	}
	return g.Len() <= 1
}

// AdjustmentType describes how a policy changes its target group.
type AdjustmentType string

const (
	StepAdjustment     AdjustmentType = "step"
	AbsoluteAdjustment AdjustmentType = "absolute"
	RelativeAdjustment AdjustmentType = "relative"
)

// CooldownConstraint limits how often a policy may be enacted.
type CooldownConstraint struct {
	CooldownTime         float64
	MaxScalingOperations int
}

// ScalingPolicy is an elasticity rule that adjusts a target group.
type ScalingPolicy struct {
	ID          string
	Resource    string
	Name        string
	TargetGroup *TargetGroup
	Adjustment  AdjustmentType
	StepValue   int
	Cooldown    *CooldownConstraint // nil when the policy has no cooldown constraint
	// SimulationTimeTriggered marks policies fired by the simulation clock
	// rather than by measurements, at TriggerTime.
	SimulationTimeTriggered bool
	TriggerTime             float64 // relative to the start of the current run
	Active                  bool
}

func (p *ScalingPolicy) ModelID() string     { return p.ID }
func (p *ScalingPolicy) ResourceURI() string { return p.Resource }

// IsScaleIn reports whether the policy is a step adjustment that removes elements.
func (p *ScalingPolicy) IsScaleIn() bool {
	return p.Adjustment == StepAdjustment && p.StepValue < 0
}
