// Package state builds the persisted outcome of a run: the init state the
// next run starts from and the result state describing how this run ended.
package state

import "fmt"

// ReasonToLeave names why a run ended.
type ReasonToLeave string

const (
	ReasonInterval                ReasonToLeave = "interval"
	ReasonReactiveReconfiguration ReasonToLeave = "reactiveReconfiguration"
	ReasonClosenessToSLO          ReasonToLeave = "closenessToSLO"
	ReasonAborted                 ReasonToLeave = "aborted"
)

var validReasons = map[ReasonToLeave]bool{
	ReasonInterval:                true,
	ReasonReactiveReconfiguration: true,
	ReasonClosenessToSLO:          true,
	ReasonAborted:                 true,
}

// IsValidReason reports whether r is a known reason.
func IsValidReason(r ReasonToLeave) bool { return validReasons[r] }

// UnmarshalText rejects unknown reasons.
func (r *ReasonToLeave) UnmarshalText(b []byte) error {
	v := ReasonToLeave(b)
	if !validReasons[v] {
		return fmt.Errorf("unknown reason to leave %q", string(b))
	}
	*r = v
	return nil
}
