package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/snapshot-sim/sim"
)

// Option configures an Encoder.
type Option func(*Encoder)

// WithSkipUnencodable makes the encoder drop, and log, any event or adjustor
// state referencing a model object that cannot be written instead of failing.
func WithSkipUnencodable() Option {
	return func(e *Encoder) { e.skip = true }
}

// Encoder writes snapshots. An Encoder is not safe for concurrent use.
type Encoder struct {
	repo *Repository
	skip bool

	refs     map[any]string
	counters map[string]int
	added    []any

	// Skipped counts the values dropped by the last EncodeSnapshot call.
	Skipped int
}

// NewEncoder creates an encoder writing model references through repo.
func NewEncoder(repo *Repository, opts ...Option) *Encoder {
	e := &Encoder{repo: repo}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Encoder) reset() {
	e.refs = make(map[any]string)
	e.counters = make(map[string]int)
	e.added = nil
	e.Skipped = 0
}

// EncodeSnapshot writes s as a JSON document. Entity references are scoped to
// the document.
func (e *Encoder) EncodeSnapshot(s *sim.Snapshot) (json.RawMessage, error) {
	e.reset()

	events := make([]any, 0)
	for _, ev := range s.Events() {
		obj, err := e.guarded(func() (any, error) { return e.encodeEvent(ev) })
		if err != nil {
			return nil, err
		}
		if obj != nil {
			events = append(events, obj)
		}
	}
	adjustments := make([]any, 0)
	for _, adj := range s.Adjustments() {
		obj, err := e.guarded(func() (any, error) { return e.encodeEvent(adj) })
		if err != nil {
			return nil, err
		}
		if obj != nil {
			adjustments = append(adjustments, obj)
		}
	}
	states := make([]any, 0)
	for _, st := range s.AdjustorStates() {
		obj, err := e.guarded(func() (any, error) { return e.encodeState(st) })
		if err != nil {
			return nil, err
		}
		if obj != nil {
			states = append(states, obj)
		}
	}

	return json.Marshal(map[string]any{
		"type":           "Snapshot",
		"events":         events,
		"adjustments":    adjustments,
		"adjustorStates": states,
	})
}

// guarded runs encode and, when it fails on an unwritable model object and
// skipping is enabled, forgets every entity first written by it so that no
// later reference points into the dropped payload.
func (e *Encoder) guarded(encode func() (any, error)) (any, error) {
	mark := len(e.added)
	obj, err := encode()
	if err == nil {
		return obj, nil
	}
	var writeErr *ModelElementWriteError
	if !e.skip || !errors.As(err, &writeErr) {
		return nil, err
	}
	for _, ent := range e.added[mark:] {
		delete(e.refs, ent)
	}
	e.added = e.added[:mark]
	e.Skipped++
	logrus.Warnf("skipping value in snapshot: %v", err)
	return nil, nil
}

func (e *Encoder) ref(o sim.ModelObject) (any, error) {
	return e.repo.Reference(o)
}

func (e *Encoder) element(el *sim.ModelElement) (any, error) {
	if el == nil {
		return nil, nil
	}
	return e.ref(el)
}

func (e *Encoder) policy(p *sim.ScalingPolicy) (any, error) {
	if p == nil {
		return nil, nil
	}
	return e.ref(p)
}

func (e *Encoder) group(g *sim.TargetGroup) (any, error) {
	if g == nil {
		return nil, nil
	}
	return e.ref(g)
}

func (e *Encoder) point(mp *sim.MeasuringPoint) (any, error) {
	if mp == nil {
		return nil, nil
	}
	return e.ref(mp)
}

// fields fills obj in order, stopping at the first error.
func fields(obj map[string]any, pairs ...field) error {
	for _, p := range pairs {
		v, err := p.value()
		if err != nil {
			return err
		}
		obj[p.name] = v
	}
	return nil
}

type field struct {
	name  string
	value func() (any, error)
}

func plain(name string, v any) field {
	return field{name: name, value: func() (any, error) { return v, nil }}
}

func (e *Encoder) encodeEvent(ev sim.Event) (map[string]any, error) {
	obj := map[string]any{
		"type":  sim.EventName(ev),
		"time":  ev.Time(),
		"delay": ev.Delay(),
	}
	var err error
	switch v := ev.(type) {
	case *sim.UsageModelPassedElement:
		err = fields(obj,
			plain("genericTypeToken", string(v.Kind)),
			field{"element", func() (any, error) { return e.element(v.Element) }},
			field{"context", func() (any, error) { return e.entity(v.Context) }})
	case *sim.SEFFModelPassedElement:
		err = fields(obj,
			plain("genericTypeToken", string(v.Kind)),
			field{"element", func() (any, error) { return e.element(v.Element) }},
			field{"request", func() (any, error) { return e.entity(v.Request) }})
	case *sim.JobInitiated:
		err = fields(obj, field{"job", func() (any, error) { return e.entity(v.Job) }})
	case *sim.JobProgressed:
		err = fields(obj, field{"job", func() (any, error) { return e.entity(v.Job) }})
	case *sim.JobFinished:
		err = fields(obj, field{"job", func() (any, error) { return e.entity(v.Job) }})
	case *sim.JobAborted:
		err = fields(obj, field{"job", func() (any, error) { return e.entity(v.Job) }})
	case *sim.ClosedWorkloadUserInitiated:
		err = fields(obj,
			plain("thinkTime", v.ThinkTime),
			field{"user", func() (any, error) { return e.entity(v.User) }},
			field{"context", func() (any, error) { return e.entity(v.Context) }})
	case *sim.InterArrivalUserInitiated:
		err = fields(obj,
			plain("interArrival", v.InterArrival),
			field{"user", func() (any, error) { return e.entity(v.User) }},
			field{"context", func() (any, error) { return e.entity(v.Context) }})
	case *sim.UserAborted:
		err = fields(obj, field{"user", func() (any, error) { return e.entity(v.User) }})
	case *sim.ResourceDemandRequestAborted:
		err = fields(obj, field{"request", func() (any, error) { return e.entity(v.Request) }})
	case *sim.ModelAdjustmentRequested:
		err = fields(obj, field{"policy", func() (any, error) { return e.policy(v.Policy) }})
	case *sim.ModelAdjusted:
		err = fields(obj,
			plain("successful", v.Successful),
			field{"policy", func() (any, error) { return e.policy(v.Policy) }})
	case *sim.MeasurementUpdated:
		err = fields(obj,
			plain("value", v.Value),
			field{"measuringPoint", func() (any, error) { return e.point(v.Point) }})
	default:
		return nil, &UnsupportedTypeError{Type: sim.EventName(ev)}
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func entityName(v any) string {
	switch v.(type) {
	case *sim.User:
		return "User"
	case *sim.BehaviorContext:
		return "BehaviorContext"
	case *sim.BehaviorWrapper:
		return "BehaviorWrapper"
	case *sim.Request:
		return "Request"
	case *sim.Job:
		return "Job"
	}
	return ""
}

func isNilEntity(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case *sim.User:
		return x == nil
	case *sim.BehaviorContext:
		return x == nil
	case *sim.BehaviorWrapper:
		return x == nil
	case *sim.Request:
		return x == nil
	case *sim.Job:
		return x == nil
	}
	return false
}

// entity writes a shared entity in full the first time it is met and as its
// refId afterwards. The refId is registered before the payload is written so
// that cycles back to the entity become references.
func (e *Encoder) entity(v any) (any, error) {
	if isNilEntity(v) {
		return nil, nil
	}
	if id, ok := e.refs[v]; ok {
		return id, nil
	}
	typ := entityName(v)
	if typ == "" {
		return nil, &UnsupportedTypeError{Type: fmt.Sprintf("%T", v)}
	}
	e.counters[typ]++
	id := fmt.Sprintf("%s-%d", typ, e.counters[typ])
	e.refs[v] = id
	e.added = append(e.added, v)

	obj := map[string]any{"type": typ, "refId": id}
	var err error
	switch x := v.(type) {
	case *sim.User:
		obj["id"] = x.ID
	case *sim.BehaviorContext:
		err = fields(obj,
			plain("id", x.ID),
			field{"user", func() (any, error) { return e.entity(x.User) }},
			field{"scenario", func() (any, error) { return e.element(x.Scenario) }},
			field{"wrapper", func() (any, error) { return e.entity(x.Wrapper) }})
	case *sim.BehaviorWrapper:
		err = fields(obj,
			plain("id", x.ID),
			field{"behavior", func() (any, error) { return e.element(x.Behavior) }},
			field{"context", func() (any, error) { return e.entity(x.Context) }})
	case *sim.Request:
		err = fields(obj,
			plain("id", x.ID),
			field{"user", func() (any, error) { return e.entity(x.User) }},
			field{"context", func() (any, error) { return e.entity(x.Context) }})
	case *sim.Job:
		err = fields(obj,
			plain("id", x.ID),
			plain("demand", x.Demand),
			plain("discipline", string(x.Discipline)),
			field{"resource", func() (any, error) { return e.element(x.Resource) }},
			field{"request", func() (any, error) { return e.entity(x.Request) }})
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (e *Encoder) encodeState(st sim.PolicyAdjustorState) (map[string]any, error) {
	tgs := map[string]any{
		"type":          "TargetGroupState",
		"lastEnactment": st.TargetGroup.LastEnactment,
	}
	if err := fields(tgs,
		field{"targetGroup", func() (any, error) { return e.group(st.TargetGroup.TargetGroup) }},
		field{"lastPolicy", func() (any, error) { return e.policy(st.TargetGroup.LastPolicy) }}); err != nil {
		return nil, err
	}
	obj := map[string]any{
		"type":                  "PolicyAdjustorState",
		"latestAdjustment":      st.LatestAdjustment,
		"cooldownEnd":           st.CooldownEnd,
		"adjustmentsInCooldown": st.AdjustmentsInCooldown,
		"targetGroupState":      tgs,
	}
	if err := fields(obj, field{"policy", func() (any, error) { return e.policy(st.Policy) }}); err != nil {
		return nil, err
	}
	return obj, nil
}
