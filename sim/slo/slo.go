// Package slo holds service-level objectives and the bound derivation used
// by the SLO-based snapshot detectors.
package slo

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/snapshot-sim/sim"
)

// Threshold is one side of an objective. Soft is the fuzzy limit inside the
// hard one; nil when the threshold is crisp.
type Threshold struct {
	Hard float64
	Soft *float64
}

// Limit returns the soft limit when defined, the hard limit otherwise.
func (t *Threshold) Limit() float64 {
	if t.Soft != nil {
		return *t.Soft
	}
	return t.Hard
}

// Objective bounds the values measured at a measuring point.
type Objective struct {
	ID    string
	Point *sim.MeasuringPoint
	Lower *Threshold // nil when unbounded below
	Upper *Threshold // nil when unbounded above
}

// Repository is the set of objectives of an architecture.
type Repository struct {
	Objectives []*Objective
}

// Len returns the number of objectives; nil repositories are empty.
func (r *Repository) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Objectives)
}

// Bounds is a pair of limits a measurement must stay within.
type Bounds struct {
	Lower float64
	Upper float64
	// SingleEnded bounds only have an upper limit; the lower one is never violated.
	SingleEnded bool
}

// Shrink moves both limits towards the center by sensitivity*(upper-lower)/2.
func (b Bounds) Shrink(sensitivity float64) Bounds {
	margin := sensitivity * (b.Upper - b.Lower) / 2
	return Bounds{Lower: b.Lower + margin, Upper: b.Upper - margin, SingleEnded: b.SingleEnded}
}

// ViolatesLower reports whether value is at or below the lower limit.
func (b Bounds) ViolatesLower(value float64) bool {
	return !b.SingleEnded && value <= b.Lower
}

// ViolatesUpper reports whether value is at or above the upper limit.
func (b Bounds) ViolatesUpper(value float64) bool {
	return value >= b.Upper
}

// SoftBounds derives the closeness bounds of an objective. Objectives without
// an upper threshold yield false.
func (o *Objective) SoftBounds() (Bounds, bool) {
	if o.Upper == nil {
		return Bounds{}, false
	}
	if o.Lower == nil {
		return Bounds{Lower: 0, Upper: o.Upper.Limit(), SingleEnded: true}, true
	}
	return Bounds{Lower: o.Lower.Limit(), Upper: o.Upper.Limit()}, true
}

// HardViolated reports whether value lies beyond a hard threshold.
func (o *Objective) HardViolated(value float64) bool {
	if o.Lower != nil && value < o.Lower.Hard {
		return true
	}
	return o.Upper != nil && value > o.Upper.Hard
}

// IsMinimal reports whether the container is in a minimally scaled target group.
// With several matching groups, all of them must be minimal. A container in no
// group is not minimal.
func IsMinimal(container *sim.ModelElement, groups []*sim.TargetGroup) bool {
	if container == nil {
		return false
	}
	matched := 0
	for _, g := range groups {
		if !g.Contains(container) {
			continue
		}
		matched++
		if !g.IsMinimal() {
			return false
		}
	}
	return matched > 0
}

// File is the YAML description of an SLO repository.
type File struct {
	Objectives []ObjectiveSpec `yaml:"objectives"`
}

// ThresholdSpec describes a threshold.
type ThresholdSpec struct {
	Hard float64  `yaml:"hard"`
	Soft *float64 `yaml:"soft"`
}

// ObjectiveSpec describes an objective on a measuring point of the catalog.
type ObjectiveSpec struct {
	ID             string         `yaml:"id"`
	MeasuringPoint string         `yaml:"measuring_point"`
	Lower          *ThresholdSpec `yaml:"lower"`
	Upper          *ThresholdSpec `yaml:"upper"`
}

// Load reads a YAML SLO file and resolves measuring points in the catalog.
func Load(path string, catalog *sim.Catalog) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading slo file: %w", err)
	}
	return Parse(data, catalog)
}

// Parse parses a YAML SLO description with strict field checking.
func Parse(data []byte, catalog *sim.Catalog) (*Repository, error) {
	var file File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing slo file: %w", err)
	}
	repo := &Repository{}
	for _, spec := range file.Objectives {
		mp, ok := catalog.MeasuringPoint(spec.MeasuringPoint)
		if !ok {
			return nil, fmt.Errorf("objective %q: unknown measuring point %q", spec.ID, spec.MeasuringPoint)
		}
		o := &Objective{ID: spec.ID, Point: mp, Lower: threshold(spec.Lower), Upper: threshold(spec.Upper)}
		if o.Lower != nil && o.Upper != nil && o.Lower.Hard > o.Upper.Hard {
			return nil, fmt.Errorf("objective %q: lower threshold %g above upper threshold %g", spec.ID, o.Lower.Hard, o.Upper.Hard)
		}
		repo.Objectives = append(repo.Objectives, o)
	}
	return repo, nil
}

func threshold(spec *ThresholdSpec) *Threshold {
	if spec == nil {
		return nil
	}
	return &Threshold{Hard: spec.Hard, Soft: spec.Soft}
}
