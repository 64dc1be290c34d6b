package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the YAML description of the model objects a run refers to.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type CatalogFile struct {
	Elements        []ElementSpec        `yaml:"elements"`
	TargetGroups    []TargetGroupSpec    `yaml:"target_groups"`
	Policies        []PolicySpec         `yaml:"policies"`
	MeasuringPoints []MeasuringPointSpec `yaml:"measuring_points"`
}

// ElementSpec describes a model element.
type ElementSpec struct {
	ID       string      `yaml:"id"`
	Kind     ElementKind `yaml:"kind"`
	Resource string      `yaml:"resource"`
	Parent   string      `yaml:"parent"`
}

// TargetGroupSpec describes a target group. Min and Max are nil when the group
// has no size constraint.
type TargetGroupSpec struct {
	ID       string   `yaml:"id"`
	Resource string   `yaml:"resource"`
	Unit     string   `yaml:"unit"`
	Elements []string `yaml:"elements"`
	Min      *int     `yaml:"min"`
	Max      *int     `yaml:"max"`
}

// CooldownSpec describes a cooldown constraint.
type CooldownSpec struct {
	Time          float64 `yaml:"time"`
	MaxOperations int     `yaml:"max_operations"`
}

// PolicySpec describes a scaling policy.
type PolicySpec struct {
	ID                      string         `yaml:"id"`
	Resource                string         `yaml:"resource"`
	Name                    string         `yaml:"name"`
	TargetGroup             string         `yaml:"target_group"`
	Adjustment              AdjustmentType `yaml:"adjustment"`
	StepValue               int            `yaml:"step_value"`
	Cooldown                *CooldownSpec  `yaml:"cooldown"`
	SimulationTimeTriggered bool           `yaml:"simulation_time_triggered"`
	TriggerTime             *float64       `yaml:"trigger_time"`
	Active                  *bool          `yaml:"active"`
}

// MeasuringPointSpec describes a measuring point.
type MeasuringPointSpec struct {
	ID        string `yaml:"id"`
	Resource  string `yaml:"resource"`
	Metric    string `yaml:"metric"`
	Container string `yaml:"container"`
}

// ValidAdjustmentTypes is the set of recognized adjustment types.
var ValidAdjustmentTypes = map[AdjustmentType]bool{"": true, StepAdjustment: true, AbsoluteAdjustment: true, RelativeAdjustment: true}

// Catalog resolves the model objects of an architecture by id.
type Catalog struct {
	elements map[string]*ModelElement
	groups   map[string]*TargetGroup
	policies map[string]*ScalingPolicy
	points   map[string]*MeasuringPoint
	objects  []ModelObject // in declaration order
}

// PolicyResolver resolves scaling policies by id.
type PolicyResolver interface {
	Policy(id string) (*ScalingPolicy, bool)
}

// LoadCatalog reads and parses a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses a YAML catalog with strict field checking and links
// all references.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file CatalogFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return NewCatalog(file)
}

// NewCatalog builds a catalog from its file description.
func NewCatalog(file CatalogFile) (*Catalog, error) {
	c := &Catalog{
		elements: make(map[string]*ModelElement),
		groups:   make(map[string]*TargetGroup),
		policies: make(map[string]*ScalingPolicy),
		points:   make(map[string]*MeasuringPoint),
	}
	for _, es := range file.Elements {
		if es.ID == "" {
			return nil, fmt.Errorf("element without id")
		}
		if _, dup := c.elements[es.ID]; dup {
			return nil, fmt.Errorf("duplicate element %q", es.ID)
		}
		if !ValidElementKinds[es.Kind] {
			return nil, fmt.Errorf("element %q: unknown kind %q", es.ID, es.Kind)
		}
		e := &ModelElement{ID: es.ID, Kind: es.Kind, Resource: es.Resource}
		c.elements[es.ID] = e
		c.objects = append(c.objects, e)
	}
	for _, es := range file.Elements {
		if es.Parent == "" {
			continue
		}
		parent, ok := c.elements[es.Parent]
		if !ok {
			return nil, fmt.Errorf("element %q: unknown parent %q", es.ID, es.Parent)
		}
		c.elements[es.ID].Parent = parent
	}
	for _, gs := range file.TargetGroups {
		if _, dup := c.groups[gs.ID]; dup {
			return nil, fmt.Errorf("duplicate target group %q", gs.ID)
		}
		g := &TargetGroup{ID: gs.ID, Resource: gs.Resource}
		if gs.Unit != "" {
			unit, ok := c.elements[gs.Unit]
			if !ok {
				return nil, fmt.Errorf("target group %q: unknown unit %q", gs.ID, gs.Unit)
			}
			g.Unit = unit
		}
		for _, id := range gs.Elements {
			e, ok := c.elements[id]
			if !ok {
				return nil, fmt.Errorf("target group %q: unknown element %q", gs.ID, id)
			}
			g.Elements = append(g.Elements, e)
		}
		if gs.Min != nil || gs.Max != nil {
			g.Size = &SizeConstraint{}
			if gs.Min != nil {
				g.Size.Min = *gs.Min
			}
			if gs.Max != nil {
				g.Size.Max = *gs.Max
			}
			if g.Size.Min < 0 || (gs.Max != nil && g.Size.Max < g.Size.Min) {
				return nil, fmt.Errorf("target group %q: invalid size constraint min=%d max=%d", gs.ID, g.Size.Min, g.Size.Max)
			}
		}
		c.groups[gs.ID] = g
		c.objects = append(c.objects, g)
	}
	for _, ps := range file.Policies {
		if _, dup := c.policies[ps.ID]; dup {
			return nil, fmt.Errorf("duplicate policy %q", ps.ID)
		}
		if !ValidAdjustmentTypes[ps.Adjustment] {
			return nil, fmt.Errorf("policy %q: unknown adjustment type %q", ps.ID, ps.Adjustment)
		}
		g, ok := c.groups[ps.TargetGroup]
		if !ok {
			return nil, fmt.Errorf("policy %q: unknown target group %q", ps.ID, ps.TargetGroup)
		}
		p := &ScalingPolicy{
			ID:                      ps.ID,
			Resource:                ps.Resource,
			Name:                    ps.Name,
			TargetGroup:             g,
			Adjustment:              ps.Adjustment,
			StepValue:               ps.StepValue,
			SimulationTimeTriggered: ps.SimulationTimeTriggered,
			Active:                  ps.Active == nil || *ps.Active,
		}
		if ps.SimulationTimeTriggered {
			if ps.TriggerTime == nil || *ps.TriggerTime < 0 {
				return nil, fmt.Errorf("policy %q: simulation-time triggered policy needs a non-negative trigger_time", ps.ID)
			}
			p.TriggerTime = *ps.TriggerTime
		} else if ps.TriggerTime != nil {
			return nil, fmt.Errorf("policy %q: trigger_time requires simulation_time_triggered", ps.ID)
		}
		if p.Adjustment == "" {
			p.Adjustment = StepAdjustment
		}
		if ps.Cooldown != nil {
			if ps.Cooldown.Time < 0 || ps.Cooldown.MaxOperations < 0 {
				return nil, fmt.Errorf("policy %q: cooldown values must be non-negative", ps.ID)
			}
			p.Cooldown = &CooldownConstraint{CooldownTime: ps.Cooldown.Time, MaxScalingOperations: ps.Cooldown.MaxOperations}
		}
		c.policies[ps.ID] = p
		c.objects = append(c.objects, p)
	}
	for _, ms := range file.MeasuringPoints {
		if _, dup := c.points[ms.ID]; dup {
			return nil, fmt.Errorf("duplicate measuring point %q", ms.ID)
		}
		mp := &MeasuringPoint{ID: ms.ID, Resource: ms.Resource, Metric: ms.Metric}
		if ms.Container != "" {
			container, ok := c.elements[ms.Container]
			if !ok {
				return nil, fmt.Errorf("measuring point %q: unknown container %q", ms.ID, ms.Container)
			}
			mp.Container = container
		}
		c.points[ms.ID] = mp
		c.objects = append(c.objects, mp)
	}
	return c, nil
}

// Element returns the model element with the given id.
func (c *Catalog) Element(id string) (*ModelElement, bool) {
	e, ok := c.elements[id]
	return e, ok
}

// TargetGroup returns the target group with the given id.
func (c *Catalog) TargetGroup(id string) (*TargetGroup, bool) {
	g, ok := c.groups[id]
	return g, ok
}

// Policy returns the scaling policy with the given id.
func (c *Catalog) Policy(id string) (*ScalingPolicy, bool) {
	p, ok := c.policies[id]
	return p, ok
}

// MeasuringPoint returns the measuring point with the given id.
func (c *Catalog) MeasuringPoint(id string) (*MeasuringPoint, bool) {
	mp, ok := c.points[id]
	return mp, ok
}

// Objects returns every model object of the catalog in declaration order.
func (c *Catalog) Objects() []ModelObject {
	return append([]ModelObject(nil), c.objects...)
}

// TargetGroups returns all target groups in declaration order.
func (c *Catalog) TargetGroups() []*TargetGroup {
	var out []*TargetGroup
	for _, o := range c.objects {
		if g, ok := o.(*TargetGroup); ok {
			out = append(out, g)
		}
	}
	return out
}

// Policies returns all scaling policies in declaration order.
func (c *Catalog) Policies() []*ScalingPolicy {
	var out []*ScalingPolicy
	for _, o := range c.objects {
		if p, ok := o.(*ScalingPolicy); ok {
			out = append(out, p)
		}
	}
	return out
}

// GroupsContaining returns the target groups having e as a member.
func (c *Catalog) GroupsContaining(e *ModelElement) []*TargetGroup {
	var out []*TargetGroup
	for _, g := range c.TargetGroups() {
		if g.Contains(e) {
			out = append(out, g)
		}
	}
	return out
}
