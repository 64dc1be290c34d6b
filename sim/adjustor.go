package sim

// TargetGroupState records the most recent policy enacted on a target group.
type TargetGroupState struct {
	TargetGroup   *TargetGroup
	LastPolicy    *ScalingPolicy // nil when no policy has been enacted yet
	LastEnactment float64
}

// PolicyAdjustorState is the per-policy state of the adjustment logic. It is a
// value type: updates produce a new value and the previous one stays valid.
type PolicyAdjustorState struct {
	Policy                *ScalingPolicy
	LatestAdjustment      float64
	CooldownEnd           float64 // 0 when no cooldown is running
	AdjustmentsInCooldown int
	TargetGroup           TargetGroupState
}

// NewPolicyAdjustorState creates the initial state of a policy.
func NewPolicyAdjustorState(policy *ScalingPolicy) PolicyAdjustorState {
	return PolicyAdjustorState{
		Policy:      policy,
		TargetGroup: TargetGroupState{TargetGroup: policy.TargetGroup},
	}
}

// OffsetBy returns a copy whose times are expressed relative to the instant now.
func (s PolicyAdjustorState) OffsetBy(now float64) PolicyAdjustorState {
	s.LatestAdjustment = s.LatestAdjustment - now
	if s.CooldownEnd > 0 {
		s.CooldownEnd = s.CooldownEnd - now
	} else {
		s.CooldownEnd = 0
	}
	s.TargetGroup.LastEnactment = s.TargetGroup.LastEnactment - now
	return s
}

// Enacted returns the state after the policy was enacted at time at. A policy
// with a cooldown constraint counts enactments until MaxScalingOperations is
// reached, then starts a new cooldown window.
func (s PolicyAdjustorState) Enacted(at float64) PolicyAdjustorState {
	if c := s.Policy.Cooldown; c != nil {
		if s.AdjustmentsInCooldown < c.MaxScalingOperations {
			s.AdjustmentsInCooldown++
		} else {
			s.AdjustmentsInCooldown = 0
			s.CooldownEnd = at + c.CooldownTime
		}
	}
	s.LatestAdjustment = at
	s.TargetGroup.LastPolicy = s.Policy
	s.TargetGroup.LastEnactment = at
	return s
}

// InCooldown reports whether the policy may not be enacted at time at.
func (s PolicyAdjustorState) InCooldown(at float64) bool {
	return s.CooldownEnd > 0 && at < s.CooldownEnd
}

// AdjustorStates is the source of the current policy adjustor states.
type AdjustorStates interface {
	AdjustorStates() []PolicyAdjustorState
}

// AdjustorStateStore keeps the adjustor state of every policy, in policy
// registration order.
type AdjustorStateStore struct {
	order  []*ScalingPolicy
	states map[*ScalingPolicy]PolicyAdjustorState
}

// NewAdjustorStateStore creates a store holding the given states.
func NewAdjustorStateStore(states ...PolicyAdjustorState) *AdjustorStateStore {
	s := &AdjustorStateStore{states: make(map[*ScalingPolicy]PolicyAdjustorState)}
	for _, st := range states {
		s.Put(st)
	}
	return s
}

// Put replaces the state of st.Policy.
func (s *AdjustorStateStore) Put(st PolicyAdjustorState) {
	if _, ok := s.states[st.Policy]; !ok {
		s.order = append(s.order, st.Policy)
	}
	s.states[st.Policy] = st
}

// Get returns the state of a policy.
func (s *AdjustorStateStore) Get(p *ScalingPolicy) (PolicyAdjustorState, bool) {
	st, ok := s.states[p]
	return st, ok
}

// AdjustorStates returns all states in registration order.
func (s *AdjustorStateStore) AdjustorStates() []PolicyAdjustorState {
	out := make([]PolicyAdjustorState, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, s.states[p])
	}
	return out
}
