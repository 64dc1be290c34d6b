// Package codec serializes snapshots to JSON. Events and value records are
// written as {"type": ..., ...}; shared entities carry a refId, are written in
// full once and as a bare refId string afterwards; model objects are written
// as "<file>#<fragment>" references resolved through a Repository.
package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/inference-sim/snapshot-sim/sim"
)

// ErrMalformed reports a document that cannot be decoded: unknown types or
// references, type mismatches, missing fields.
var ErrMalformed = errors.New("malformed snapshot document")

// ModelElementWriteError reports a model object that cannot be referenced.
type ModelElementWriteError struct {
	Object sim.ModelObject
	Reason string
}

func (e *ModelElementWriteError) Error() string {
	return fmt.Sprintf("cannot write reference to model object %q: %s", e.Object.ModelID(), e.Reason)
}

// UnsupportedTypeError reports a value the codec has no encoding for.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported type %s", e.Type)
}

// Repository resolves model object references. Resources are identified by
// their file name when it is unique among the known resources.
type Repository struct {
	objects map[string]sim.ModelObject // full locator → object
	files   map[string]string          // file name → resource uri
	clashes map[string]bool            // file names shared by several resources
}

// NewRepository creates a repository holding the given objects.
func NewRepository(objects ...sim.ModelObject) *Repository {
	r := &Repository{
		objects: make(map[string]sim.ModelObject),
		files:   make(map[string]string),
		clashes: make(map[string]bool),
	}
	for _, o := range objects {
		r.Add(o)
	}
	return r
}

// Add registers a model object. Objects without a resource are ignored.
func (r *Repository) Add(o sim.ModelObject) {
	uri := o.ResourceURI()
	if uri == "" {
		return
	}
	r.objects[sim.Locator(o)] = o
	name := sim.ResourceFileName(uri)
	if name == "" {
		return
	}
	if known, ok := r.files[name]; ok && known != uri {
		r.clashes[name] = true
		return
	}
	r.files[name] = uri
}

// Reference returns the reference written for o: "<file>#<fragment>" when
// the resource is a uniquely named file, the full locator otherwise.
func (r *Repository) Reference(o sim.ModelObject) (string, error) {
	uri := o.ResourceURI()
	if uri == "" {
		return "", &ModelElementWriteError{Object: o, Reason: "object is not contained in a resource"}
	}
	if name := sim.ResourceFileName(uri); name != "" && r.files[name] == uri && !r.clashes[name] {
		return name + "#" + o.ModelID(), nil
	}
	return sim.Locator(o), nil
}

// Resolve returns the model object a reference points to.
func (r *Repository) Resolve(ref string) (sim.ModelObject, error) {
	i := strings.LastIndex(ref, "#")
	if i < 0 {
		return nil, fmt.Errorf("%w: model reference %q has no fragment", ErrMalformed, ref)
	}
	head, fragment := ref[:i], ref[i+1:]
	if head == "" {
		return nil, fmt.Errorf("%w: model reference %q has an empty file name", ErrMalformed, ref)
	}
	uri := head
	if !strings.Contains(head, ":") {
		known, ok := r.files[head]
		if !ok || r.clashes[head] {
			return nil, fmt.Errorf("%w: no unique resource named %q", ErrMalformed, head)
		}
		uri = known
	}
	o, ok := r.objects[uri+"#"+fragment]
	if !ok {
		return nil, fmt.Errorf("%w: unknown model object %q", ErrMalformed, ref)
	}
	return o, nil
}
