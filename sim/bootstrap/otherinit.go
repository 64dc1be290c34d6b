// Package bootstrap prepares a run from the documents left by its parent:
// the decoded snapshot, the policies to enact at start and the behaviour
// parameters of the detectors.
package bootstrap

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/behavior"
)

// ErrUnknownPolicy reports an incoming policy id missing from the catalog.
var ErrUnknownPolicy = errors.New("unknown scaling policy")

// OtherInitDocument is the wire form of the run bootstrap parameters.
type OtherInitDocument struct {
	IncomingPolicyIDs  []string                    `json:"incomingPolicyIds"`
	BehaviorParameters behavior.BehaviorParameters `json:"behaviorParameters"`
}

// OtherInit holds the resolved bootstrap parameters.
type OtherInit struct {
	IncomingPolicies   []*sim.ScalingPolicy
	BehaviorParameters behavior.BehaviorParameters
}

// DecodeOtherInit reads the bootstrap parameters and resolves the incoming
// policy ids. An id the resolver does not know is an error.
func DecodeOtherInit(r io.Reader, resolver sim.PolicyResolver) (*OtherInit, error) {
	var doc OtherInitDocument
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding other-init document: %w", err)
	}
	if err := doc.BehaviorParameters.Validate(); err != nil {
		return nil, err
	}
	out := &OtherInit{BehaviorParameters: doc.BehaviorParameters}
	for _, id := range doc.IncomingPolicyIDs {
		p, ok := resolver.Policy(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, id)
		}
		out.IncomingPolicies = append(out.IncomingPolicies, p)
	}
	return out, nil
}

// LoadOtherInit reads the bootstrap parameters at path.
func LoadOtherInit(path string, resolver sim.PolicyResolver) (*OtherInit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening other-init document: %w", err)
	}
	defer f.Close()
	return DecodeOtherInit(f, resolver)
}

// EncodeOtherInit writes the bootstrap parameters.
func EncodeOtherInit(o *OtherInit) ([]byte, error) {
	doc := OtherInitDocument{
		IncomingPolicyIDs:  make([]string, 0, len(o.IncomingPolicies)),
		BehaviorParameters: o.BehaviorParameters,
	}
	for _, p := range o.IncomingPolicies {
		doc.IncomingPolicyIDs = append(doc.IncomingPolicyIDs, p.ID)
	}
	return json.MarshalIndent(doc, "", "  ")
}
