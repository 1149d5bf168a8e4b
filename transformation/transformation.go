// Package transformation implements the pure value-mapper plugin kind
// (§4.3): named Field→Field functions, each with a handle_list policy
// governing whether the runtime distributes a list input element-wise or
// hands the whole list to the callback.
package transformation

import (
	"strings"
	"sync"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/field"
)

// CreateFunc builds a transformation instance's private data from its
// parameter string.
type CreateFunc func(ar *arena.Arena, param string) (instanceData any, err error)

// ExecuteFunc maps input to a new field. Must be pure with respect to
// input (never mutate it) and must return a non-nil field; a nil result is
// surfaced by the caller as EINVAL.
type ExecuteFunc func(ar *arena.Arena, instanceData any, param string, input *field.Field) (*field.Field, error)

// DestroyFunc releases a transformation instance's private data.
type DestroyFunc func(instanceData any)

// Transformation is one named pure value mapper.
type Transformation struct {
	name       string
	handleList bool
	create     CreateFunc
	execute    ExecuteFunc
	destroy    DestroyFunc
}

// Name returns the transformation's registered name.
func (tr *Transformation) Name() string { return tr.name }

// HandleList reports whether this transformation receives list inputs
// whole (true) or element-wise (false, the runtime distributes and
// reassembles).
func (tr *Transformation) HandleList() bool { return tr.handleList }

// Registry is the engine-level table of registered transformations.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Transformation
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Transformation)}
}

// Register installs a new transformation under name, subject to the same
// reserved-namespace and no-duplicates rules as operator.Registry.Register.
func (r *Registry) Register(name string, handleList bool, create CreateFunc, execute ExecuteFunc, destroy DestroyFunc) (*Transformation, error) {
	if name == "" {
		return nil, rerrors.EINVAL("Transformation.Register", "empty transformation name")
	}
	if strings.HasPrefix(name, "@") {
		return nil, rerrors.EINVAL("Transformation.Register", "transformation name reserved for rule DSL: "+name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return nil, rerrors.EINVAL("Transformation.Register", "transformation already registered: "+name)
	}

	tr := &Transformation{name: name, handleList: handleList, create: create, execute: execute, destroy: destroy}
	r.byName[name] = tr
	return tr, nil
}

// Lookup returns the registered transformation for name, if any.
func (r *Registry) Lookup(name string) (*Transformation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tr, ok := r.byName[name]
	return tr, ok
}

// Instance binds a parameter string and create-produced data to a borrowed
// Transformation reference.
type Instance struct {
	transformation *Transformation
	param          string
	data           any
}

// Transformation returns the instance's underlying transformation
// definition.
func (inst *Instance) Transformation() *Transformation { return inst.transformation }

// CreateInstance invokes the named transformation's create hook and
// registers its destroy hook as an arena cleanup.
func (r *Registry) CreateInstance(ar *arena.Arena, name, param string) (*Instance, error) {
	tr, ok := r.Lookup(name)
	if !ok {
		return nil, rerrors.ENOENT("Transformation.CreateInstance", "unregistered transformation: "+name)
	}

	inst := &Instance{transformation: tr, param: param}
	if tr.create != nil {
		data, err := tr.create(ar, param)
		if err != nil {
			return nil, err
		}
		inst.data = data
	}
	if tr.destroy != nil {
		tr := tr
		inst := inst
		ar.OnRelease(func() { tr.destroy(inst.data) })
	}
	return inst, nil
}

// Apply evaluates the instance against input, honoring its
// transformation's handle_list policy: a false policy applied to a static
// list distributes the call element-wise and reassembles a list of
// identical shape and order; a dynamic list or handle_list == true passes
// input through to the callback directly. A nil execute callback on the
// underlying transformation is the identity function.
func (inst *Instance) Apply(ar *arena.Arena, input *field.Field) (*field.Field, error) {
	tr := inst.transformation
	if !tr.handleList && input.Type() == field.TypeList && !input.IsDynamic() {
		children, _ := input.List()
		out := make([]*field.Field, 0, len(children))
		for _, child := range children {
			mapped, err := inst.apply1(ar, child)
			if err != nil {
				return nil, err
			}
			out = append(out, mapped)
		}
		return field.NewList(input.Name(), out), nil
	}
	return inst.apply1(ar, input)
}

func (inst *Instance) apply1(ar *arena.Arena, input *field.Field) (*field.Field, error) {
	tr := inst.transformation
	if tr.execute == nil {
		return input, nil
	}
	out, err := tr.execute(ar, inst.data, inst.param, input)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, rerrors.EINVAL("TransformationInstance.Apply", "transformation "+tr.name+" returned a nil field")
	}
	return out, nil
}
