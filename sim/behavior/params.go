// Package behavior holds the detectors deciding when a run ends: the
// reactive-reconfiguration trigger, the effectless-adjustment abortion, the
// SLO-closeness trigger and the hard-SLO abortion, plus the updater storing
// the finished snapshot in the run's state builder.
package behavior

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalidParameter reports a detector parameter of the wrong type or out of range.
var ErrInvalidParameter = errors.New("invalid behavior parameter")

// Detector keys used in behaviour parameter blocks.
const (
	KeyReactiveReconfiguration = "reactive-reconfiguration"
	KeyEffectlessAdjustment    = "effectless-adjustment"
	KeySLOCloseness            = "slo-closeness"
	KeySLOHardAbortion         = "slo-hard-abortion"
)

const paramActive = "active"

// knownParameters lists the parameter names accepted per detector.
var knownParameters = map[string][]string{
	KeyReactiveReconfiguration: {paramActive, paramDoDrop, paramDropInterval},
	KeyEffectlessAdjustment:    {paramActive},
	KeySLOCloseness:            {paramActive, paramSensitivity, paramActivationDelay},
	KeySLOHardAbortion:         {paramActive},
}

// Parameters is the configuration block of one detector.
type Parameters map[string]any

// Active reports the "active" flag; a missing flag means active.
func (p Parameters) Active() (bool, error) {
	return p.Bool(paramActive, true)
}

// Bool returns the named boolean parameter, or def when it is absent.
func (p Parameters) Bool(name string, def bool) (bool, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean, got %T", ErrInvalidParameter, name, v)
	}
	return b, nil
}

// Float returns the named numeric parameter, or def when it is absent.
func (p Parameters) Float(name string, def float64) (float64, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidParameter, name, v)
}

// BehaviorParameters maps detector keys to their configuration blocks. A
// missing block leaves the detector active with default parameters.
type BehaviorParameters map[string]Parameters

// For returns the block of a detector, empty when none is configured.
func (bp BehaviorParameters) For(key string) Parameters {
	if p, ok := bp[key]; ok && p != nil {
		return p
	}
	return Parameters{}
}

// Validate rejects unknown detector keys and parameter names.
func (bp BehaviorParameters) Validate() error {
	keys := make([]string, 0, len(bp))
	for k := range bp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		allowed, ok := knownParameters[key]
		if !ok {
			return fmt.Errorf("%w: unknown detector %q", ErrInvalidParameter, key)
		}
		for name := range bp[key] {
			if !contains(allowed, name) {
				return fmt.Errorf("%w: unknown parameter %q for %s", ErrInvalidParameter, name, key)
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// LoadParameters reads behaviour parameters from a YAML file.
func LoadParameters(path string) (BehaviorParameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading behavior parameters: %w", err)
	}
	return ParseParameters(data)
}

// ParseParameters decodes and validates YAML behaviour parameters.
func ParseParameters(data []byte) (BehaviorParameters, error) {
	var bp BehaviorParameters
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&bp); err != nil {
		return nil, fmt.Errorf("parsing behavior parameters: %w", err)
	}
	if err := bp.Validate(); err != nil {
		return nil, err
	}
	return bp, nil
}
