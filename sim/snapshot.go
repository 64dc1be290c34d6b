package sim

// Snapshot is the immutable, restartable image of a run's in-flight state.
// Pending adjustment requests are kept apart from the other events, in order.
type Snapshot struct {
	events      []Event
	adjustments []*ModelAdjustmentRequested
	states      []PolicyAdjustorState
}

// NewSnapshot creates a snapshot. Adjustment requests contained in events are
// moved to the ordered adjustment list; duplicates (by identity) are dropped.
func NewSnapshot(events []Event, states []PolicyAdjustorState) *Snapshot {
	s := &Snapshot{
		events:      make([]Event, 0, len(events)),
		adjustments: make([]*ModelAdjustmentRequested, 0),
		states:      append([]PolicyAdjustorState(nil), states...),
	}
	seen := make(map[Event]bool, len(events))
	for _, ev := range events {
		if seen[ev] {
			continue
		}
		seen[ev] = true
		if adj, ok := ev.(*ModelAdjustmentRequested); ok {
			s.adjustments = append(s.adjustments, adj)
			continue
		}
		s.events = append(s.events, ev)
	}
	return s
}

// Events returns the pending non-adjustment events.
func (s *Snapshot) Events() []Event {
	return append([]Event(nil), s.events...)
}

// Adjustments returns the pending adjustment requests in order.
func (s *Snapshot) Adjustments() []*ModelAdjustmentRequested {
	return append([]*ModelAdjustmentRequested(nil), s.adjustments...)
}

// AdjustorStates returns the offset policy adjustor states.
func (s *Snapshot) AdjustorStates() []PolicyAdjustorState {
	return append([]PolicyAdjustorState(nil), s.states...)
}

// PolicyIDs returns the ids of the policies of the pending adjustments, in order.
func (s *Snapshot) PolicyIDs() []string {
	ids := make([]string, 0, len(s.adjustments))
	for _, adj := range s.adjustments {
		ids = append(ids, adj.Policy.ID)
	}
	return ids
}
