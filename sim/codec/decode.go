package codec

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/inference-sim/snapshot-sim/sim"
)

// Decoder reads snapshots written by an Encoder. A Decoder is not safe for
// concurrent use.
type Decoder struct {
	repo *Repository
	refs map[string]any
}

// NewDecoder creates a decoder resolving model references through repo.
func NewDecoder(repo *Repository) *Decoder {
	return &Decoder{repo: repo}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// DecodeSnapshot reads a snapshot document. Entities sharing a refId decode
// to the same object, including cyclic references.
func (d *Decoder) DecodeSnapshot(data []byte) (*sim.Snapshot, error) {
	d.refs = make(map[string]any)

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	doc, err := object(raw, "Snapshot")
	if err != nil {
		return nil, err
	}

	var events []sim.Event
	evs, err := list(doc, "events")
	if err != nil {
		return nil, err
	}
	for _, v := range evs {
		ev, err := d.decodeEvent(v)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	adjs, err := list(doc, "adjustments")
	if err != nil {
		return nil, err
	}
	for _, v := range adjs {
		ev, err := d.decodeEvent(v)
		if err != nil {
			return nil, err
		}
		if _, ok := ev.(*sim.ModelAdjustmentRequested); !ok {
			return nil, malformed("adjustment list holds %s", sim.EventName(ev))
		}
		events = append(events, ev)
	}
	var states []sim.PolicyAdjustorState
	sts, err := list(doc, "adjustorStates")
	if err != nil {
		return nil, err
	}
	for _, v := range sts {
		st, err := d.decodeState(v)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return sim.NewSnapshot(events, states), nil
}

// object checks that v is an object of the given type.
func object(v any, typ string) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, malformed("expected %s object, got %T", typ, v)
	}
	if got, _ := obj["type"].(string); got != typ {
		return nil, malformed("expected type %s, got %q", typ, obj["type"])
	}
	return obj, nil
}

func list(obj map[string]any, name string) ([]any, error) {
	v, ok := obj[name]
	if !ok || v == nil {
		return nil, nil
	}
	l, ok := v.([]any)
	if !ok {
		return nil, malformed("field %q is not a list", name)
	}
	return l, nil
}

func number(obj map[string]any, name string) (float64, error) {
	f, ok := obj[name].(float64)
	if !ok {
		return 0, malformed("%v: field %q is not a number", obj["type"], name)
	}
	return f, nil
}

func integer(obj map[string]any, name string) (int, error) {
	f, err := number(obj, name)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, malformed("%v: field %q is not an integer", obj["type"], name)
	}
	return int(f), nil
}

func text(obj map[string]any, name string) (string, error) {
	s, ok := obj[name].(string)
	if !ok {
		return "", malformed("%v: field %q is not a string", obj["type"], name)
	}
	return s, nil
}

func flag(obj map[string]any, name string) (bool, error) {
	b, ok := obj[name].(bool)
	if !ok {
		return false, malformed("%v: field %q is not a boolean", obj["type"], name)
	}
	return b, nil
}

// resolve returns the model object referenced by v, or nil for null.
func (d *Decoder) resolve(v any) (sim.ModelObject, error) {
	if v == nil {
		return nil, nil
	}
	ref, ok := v.(string)
	if !ok {
		return nil, malformed("model reference is %T, not a string", v)
	}
	return d.repo.Resolve(ref)
}

func (d *Decoder) element(v any) (*sim.ModelElement, error) {
	o, err := d.resolve(v)
	if err != nil || o == nil {
		return nil, err
	}
	el, ok := o.(*sim.ModelElement)
	if !ok {
		return nil, malformed("reference %v is a %T, not a model element", v, o)
	}
	return el, nil
}

func (d *Decoder) policy(v any) (*sim.ScalingPolicy, error) {
	o, err := d.resolve(v)
	if err != nil || o == nil {
		return nil, err
	}
	p, ok := o.(*sim.ScalingPolicy)
	if !ok {
		return nil, malformed("reference %v is a %T, not a scaling policy", v, o)
	}
	return p, nil
}

func (d *Decoder) group(v any) (*sim.TargetGroup, error) {
	o, err := d.resolve(v)
	if err != nil || o == nil {
		return nil, err
	}
	g, ok := o.(*sim.TargetGroup)
	if !ok {
		return nil, malformed("reference %v is a %T, not a target group", v, o)
	}
	return g, nil
}

func (d *Decoder) point(v any) (*sim.MeasuringPoint, error) {
	o, err := d.resolve(v)
	if err != nil || o == nil {
		return nil, err
	}
	mp, ok := o.(*sim.MeasuringPoint)
	if !ok {
		return nil, malformed("reference %v is a %T, not a measuring point", v, o)
	}
	return mp, nil
}

// lookup returns the already decoded entity v refers to, or the object to
// decode when v holds a full payload. Both results are nil for null.
func (d *Decoder) lookup(v any, typ string) (any, map[string]any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil, nil
	case string:
		ent, ok := d.refs[x]
		if !ok {
			return nil, nil, malformed("unknown reference %q", x)
		}
		if entityName(ent) != typ {
			return nil, nil, malformed("reference %q is a %s, expected %s", x, entityName(ent), typ)
		}
		return ent, nil, nil
	case map[string]any:
		obj, err := object(x, typ)
		if err != nil {
			return nil, nil, err
		}
		id, err := text(obj, "refId")
		if err != nil {
			return nil, nil, err
		}
		if _, dup := d.refs[id]; dup {
			return nil, nil, malformed("reference %q defined twice", id)
		}
		return nil, obj, nil
	}
	return nil, nil, malformed("expected %s, got %T", typ, v)
}

func (d *Decoder) user(v any) (*sim.User, error) {
	ent, obj, err := d.lookup(v, "User")
	if err != nil || obj == nil {
		u, _ := ent.(*sim.User)
		return u, err
	}
	u := &sim.User{}
	d.refs[obj["refId"].(string)] = u
	if u.ID, err = text(obj, "id"); err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Decoder) context(v any) (*sim.BehaviorContext, error) {
	ent, obj, err := d.lookup(v, "BehaviorContext")
	if err != nil || obj == nil {
		c, _ := ent.(*sim.BehaviorContext)
		return c, err
	}
	c := &sim.BehaviorContext{}
	d.refs[obj["refId"].(string)] = c
	if c.ID, err = text(obj, "id"); err != nil {
		return nil, err
	}
	if c.User, err = d.user(obj["user"]); err != nil {
		return nil, err
	}
	if c.Scenario, err = d.element(obj["scenario"]); err != nil {
		return nil, err
	}
	if c.Wrapper, err = d.wrapper(obj["wrapper"]); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *Decoder) wrapper(v any) (*sim.BehaviorWrapper, error) {
	ent, obj, err := d.lookup(v, "BehaviorWrapper")
	if err != nil || obj == nil {
		w, _ := ent.(*sim.BehaviorWrapper)
		return w, err
	}
	w := &sim.BehaviorWrapper{}
	d.refs[obj["refId"].(string)] = w
	if w.ID, err = text(obj, "id"); err != nil {
		return nil, err
	}
	if w.Behavior, err = d.element(obj["behavior"]); err != nil {
		return nil, err
	}
	if w.Context, err = d.context(obj["context"]); err != nil {
		return nil, err
	}
	return w, nil
}

func (d *Decoder) request(v any) (*sim.Request, error) {
	ent, obj, err := d.lookup(v, "Request")
	if err != nil || obj == nil {
		r, _ := ent.(*sim.Request)
		return r, err
	}
	r := &sim.Request{}
	d.refs[obj["refId"].(string)] = r
	if r.ID, err = text(obj, "id"); err != nil {
		return nil, err
	}
	if r.User, err = d.user(obj["user"]); err != nil {
		return nil, err
	}
	if r.Context, err = d.context(obj["context"]); err != nil {
		return nil, err
	}
	return r, nil
}

func (d *Decoder) job(v any) (*sim.Job, error) {
	ent, obj, err := d.lookup(v, "Job")
	if err != nil || obj == nil {
		j, _ := ent.(*sim.Job)
		return j, err
	}
	j := &sim.Job{}
	d.refs[obj["refId"].(string)] = j
	if j.ID, err = text(obj, "id"); err != nil {
		return nil, err
	}
	if j.Demand, err = number(obj, "demand"); err != nil {
		return nil, err
	}
	discipline, err := text(obj, "discipline")
	if err != nil {
		return nil, err
	}
	j.Discipline = sim.Discipline(discipline)
	if !sim.ValidDisciplines[j.Discipline] {
		return nil, malformed("job %q: unknown discipline %q", j.ID, discipline)
	}
	if j.Resource, err = d.element(obj["resource"]); err != nil {
		return nil, err
	}
	if j.Request, err = d.request(obj["request"]); err != nil {
		return nil, err
	}
	return j, nil
}

// eventJob decodes the job a job event is about; it may not be null.
func (d *Decoder) eventJob(obj map[string]any) (*sim.Job, error) {
	j, err := d.job(obj["job"])
	if err == nil && j == nil {
		return nil, malformed("%s without job", obj["type"])
	}
	return j, err
}

// token decodes the reified element type of a generic event and checks it
// against the element it carries.
func token(obj map[string]any, el *sim.ModelElement) (sim.ElementKind, error) {
	s, err := text(obj, "genericTypeToken")
	if err != nil {
		return "", err
	}
	kind := sim.ElementKind(s)
	if !sim.ValidElementKinds[kind] {
		return "", malformed("unknown generic type token %q", s)
	}
	if el != nil && el.Kind != kind {
		return "", malformed("generic type token %q does not match element %s", s, el)
	}
	return kind, nil
}

func (d *Decoder) decodeEvent(v any) (sim.Event, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, malformed("expected event object, got %T", v)
	}
	typ, err := text(obj, "type")
	if err != nil {
		return nil, err
	}
	var timing sim.Timing
	if timing.At, err = number(obj, "time"); err != nil {
		return nil, err
	}
	if timing.After, err = number(obj, "delay"); err != nil {
		return nil, err
	}

	switch typ {
	case "UsageModelPassedElement":
		ev := &sim.UsageModelPassedElement{Timing: timing}
		if ev.Element, err = d.element(obj["element"]); err != nil {
			return nil, err
		}
		if ev.Kind, err = token(obj, ev.Element); err != nil {
			return nil, err
		}
		if ev.Context, err = d.context(obj["context"]); err != nil {
			return nil, err
		}
		return ev, nil
	case "SEFFModelPassedElement":
		ev := &sim.SEFFModelPassedElement{Timing: timing}
		if ev.Element, err = d.element(obj["element"]); err != nil {
			return nil, err
		}
		if ev.Kind, err = token(obj, ev.Element); err != nil {
			return nil, err
		}
		if ev.Request, err = d.request(obj["request"]); err != nil {
			return nil, err
		}
		return ev, nil
	case "JobInitiated":
		job, err := d.eventJob(obj)
		return &sim.JobInitiated{Timing: timing, Job: job}, err
	case "JobProgressed":
		job, err := d.eventJob(obj)
		return &sim.JobProgressed{Timing: timing, Job: job}, err
	case "JobFinished":
		job, err := d.eventJob(obj)
		return &sim.JobFinished{Timing: timing, Job: job}, err
	case "JobAborted":
		job, err := d.eventJob(obj)
		return &sim.JobAborted{Timing: timing, Job: job}, err
	case "ClosedWorkloadUserInitiated":
		ev := &sim.ClosedWorkloadUserInitiated{Timing: timing}
		if ev.ThinkTime, err = number(obj, "thinkTime"); err != nil {
			return nil, err
		}
		if ev.User, err = d.user(obj["user"]); err != nil {
			return nil, err
		}
		if ev.Context, err = d.context(obj["context"]); err != nil {
			return nil, err
		}
		return ev, nil
	case "InterArrivalUserInitiated":
		ev := &sim.InterArrivalUserInitiated{Timing: timing}
		if ev.InterArrival, err = number(obj, "interArrival"); err != nil {
			return nil, err
		}
		if ev.User, err = d.user(obj["user"]); err != nil {
			return nil, err
		}
		if ev.Context, err = d.context(obj["context"]); err != nil {
			return nil, err
		}
		return ev, nil
	case "UserAborted":
		user, err := d.user(obj["user"])
		return &sim.UserAborted{Timing: timing, User: user}, err
	case "ResourceDemandRequestAborted":
		req, err := d.request(obj["request"])
		return &sim.ResourceDemandRequestAborted{Timing: timing, Request: req}, err
	case "ModelAdjustmentRequested":
		p, err := d.policy(obj["policy"])
		return &sim.ModelAdjustmentRequested{Timing: timing, Policy: p}, err
	case "ModelAdjusted":
		ev := &sim.ModelAdjusted{Timing: timing}
		if ev.Successful, err = flag(obj, "successful"); err != nil {
			return nil, err
		}
		if ev.Policy, err = d.policy(obj["policy"]); err != nil {
			return nil, err
		}
		return ev, nil
	case "MeasurementUpdated":
		ev := &sim.MeasurementUpdated{Timing: timing}
		if ev.Value, err = number(obj, "value"); err != nil {
			return nil, err
		}
		if ev.Point, err = d.point(obj["measuringPoint"]); err != nil {
			return nil, err
		}
		return ev, nil
	}
	return nil, malformed("unknown event type %q", typ)
}

func (d *Decoder) decodeState(v any) (sim.PolicyAdjustorState, error) {
	var st sim.PolicyAdjustorState
	obj, err := object(v, "PolicyAdjustorState")
	if err != nil {
		return st, err
	}
	if st.Policy, err = d.policy(obj["policy"]); err != nil {
		return st, err
	}
	if st.Policy == nil {
		return st, malformed("adjustor state without policy")
	}
	if st.LatestAdjustment, err = number(obj, "latestAdjustment"); err != nil {
		return st, err
	}
	if st.CooldownEnd, err = number(obj, "cooldownEnd"); err != nil {
		return st, err
	}
	if st.AdjustmentsInCooldown, err = integer(obj, "adjustmentsInCooldown"); err != nil {
		return st, err
	}
	tgs, err := object(obj["targetGroupState"], "TargetGroupState")
	if err != nil {
		return st, err
	}
	if st.TargetGroup.TargetGroup, err = d.group(tgs["targetGroup"]); err != nil {
		return st, err
	}
	if st.TargetGroup.LastPolicy, err = d.policy(tgs["lastPolicy"]); err != nil {
		return st, err
	}
	if st.TargetGroup.LastEnactment, err = number(tgs, "lastEnactment"); err != nil {
		return st, err
	}
	return st, nil
}
