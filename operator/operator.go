// Package operator implements the predicate plugin kind (§4.4): named
// registration of value-testing callbacks, plus per-rule instances whose
// lifetime is tied to an arena.
package operator

import (
	"strings"
	"sync"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/field"
)

// Capability is a bitflag describing in which rule phases/modes an operator
// may run.
type Capability uint32

const (
	CapabilityPhaseRequestHeader Capability = 1 << iota
	CapabilityPhaseRequestBody
	CapabilityPhaseResponseHeader
	CapabilityPhaseResponseBody
	CapabilityPhaseLogging
	// CapabilityPhaseStream marks an operator usable against streamed body
	// bytes rather than a fully-buffered field value.
	CapabilityPhaseStream
)

// CreateFunc builds an operator instance's private data from its parameter
// string. A nil CreateFunc means the instance carries no data.
type CreateFunc func(ar *arena.Arena, param string) (instanceData any, err error)

// ExecuteFunc evaluates the operator against input, returning a truthy
// integer result (0 or 1) and optionally a capture field to record. A nil
// ExecuteFunc is a permissible no-op: the instance always reports
// result = 1.
type ExecuteFunc func(instanceData any, param string, input *field.Field) (result int, capture *field.Field, err error)

// DestroyFunc releases an operator instance's private data. Invoked as an
// arena cleanup; never called directly by callers.
type DestroyFunc func(instanceData any)

// Operator is one named predicate plugin.
type Operator struct {
	name         string
	capabilities Capability
	create       CreateFunc
	execute      ExecuteFunc
	destroy      DestroyFunc
}

// Name returns the operator's registered name.
func (op *Operator) Name() string { return op.name }

// Capabilities returns the operator's capability bitflags.
func (op *Operator) Capabilities() Capability { return op.capabilities }

// Registry is the engine-level table of registered operators, shared across
// every transaction's worker.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Operator
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Operator)}
}

// Register installs a new operator under name. Names beginning with "@" are
// reserved for the rule DSL's grammar layer and rejected; a duplicate name
// is EINVAL (operators use a case-sensitive namespace, unlike vars).
func (r *Registry) Register(name string, capabilities Capability, create CreateFunc, execute ExecuteFunc, destroy DestroyFunc) (*Operator, error) {
	if name == "" {
		return nil, rerrors.EINVAL("Operator.Register", "empty operator name")
	}
	if strings.HasPrefix(name, "@") {
		return nil, rerrors.EINVAL("Operator.Register", "operator name reserved for rule DSL: "+name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return nil, rerrors.EINVAL("Operator.Register", "operator already registered: "+name)
	}

	op := &Operator{name: name, capabilities: capabilities, create: create, execute: execute, destroy: destroy}
	r.byName[name] = op
	return op, nil
}

// Lookup returns the registered operator for name, if any.
func (r *Registry) Lookup(name string) (*Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.byName[name]
	return op, ok
}

// Names returns every registered operator name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}

// Instance binds a parameter string and create-produced data to a borrowed
// Operator reference. Its lifetime is exactly that of the arena it was
// created in.
type Instance struct {
	operator *Operator
	param    string
	data     any
}

// Operator returns the instance's underlying operator definition.
func (inst *Instance) Operator() *Operator { return inst.operator }

// CreateInstance validates requiredCapabilities against the named
// operator's declared capabilities (ENOTIMPL if the operator can't satisfy
// them), invokes its create hook, and registers its destroy hook as an
// arena cleanup so the caller never has to call it explicitly.
func (r *Registry) CreateInstance(ar *arena.Arena, name, param string, requiredCapabilities Capability) (*Instance, error) {
	op, ok := r.Lookup(name)
	if !ok {
		return nil, rerrors.ENOENT("Operator.CreateInstance", "unregistered operator: "+name)
	}
	if requiredCapabilities&^op.capabilities != 0 {
		return nil, rerrors.ENOTIMPL("Operator.CreateInstance", "operator "+name+" lacks a required capability")
	}

	inst := &Instance{operator: op, param: param}
	if op.create != nil {
		data, err := op.create(ar, param)
		if err != nil {
			return nil, err
		}
		inst.data = data
	}
	if op.destroy != nil {
		op := op
		inst := inst
		ar.OnRelease(func() { op.destroy(inst.data) })
	}
	return inst, nil
}

// Execute evaluates the instance against input. A nil Execute callback on
// the underlying operator is a no-op that always reports result = 1.
func (inst *Instance) Execute(input *field.Field) (result int, capture *field.Field, err error) {
	if inst.operator.execute == nil {
		return 1, nil, nil
	}
	return inst.operator.execute(inst.data, inst.param, input)
}

// StreamRegistry is the engine-level table of registered stream operators
// (§4.4: stream operators live in a parallel hash - same API as Registry,
// but its own independent name-to-Operator map, so a name registered in
// Registry does not collide with the same name registered here and vice
// versa). Stream operators are the ones CapabilityPhaseStream describes:
// evaluated against streamed body chunks rather than a fully-buffered
// field, one StreamRegistry entry per chunk-processing pass.
type StreamRegistry struct {
	mu     sync.RWMutex
	byName map[string]*Operator
}

// NewStreamRegistry builds an empty stream-operator registry.
func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{byName: make(map[string]*Operator)}
}

// Register installs a new stream operator under name, independent of
// whatever is registered under the same name in a (non-stream) Registry.
func (r *StreamRegistry) Register(name string, capabilities Capability, create CreateFunc, execute ExecuteFunc, destroy DestroyFunc) (*Operator, error) {
	if name == "" {
		return nil, rerrors.EINVAL("StreamOperator.Register", "empty stream operator name")
	}
	if strings.HasPrefix(name, "@") {
		return nil, rerrors.EINVAL("StreamOperator.Register", "operator name reserved for rule DSL: "+name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return nil, rerrors.EINVAL("StreamOperator.Register", "stream operator already registered: "+name)
	}

	op := &Operator{name: name, capabilities: capabilities, create: create, execute: execute, destroy: destroy}
	r.byName[name] = op
	return op, nil
}

// Lookup returns the registered stream operator for name, if any.
func (r *StreamRegistry) Lookup(name string) (*Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.byName[name]
	return op, ok
}

// Names returns every registered stream operator name.
func (r *StreamRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}

// CreateInstance validates requiredCapabilities against the named stream
// operator's declared capabilities, invokes its create hook, and registers
// its destroy hook as an arena cleanup, exactly as Registry.CreateInstance
// does against the non-stream hash.
func (r *StreamRegistry) CreateInstance(ar *arena.Arena, name, param string, requiredCapabilities Capability) (*Instance, error) {
	op, ok := r.Lookup(name)
	if !ok {
		return nil, rerrors.ENOENT("StreamOperator.CreateInstance", "unregistered stream operator: "+name)
	}
	if requiredCapabilities&^op.capabilities != 0 {
		return nil, rerrors.ENOTIMPL("StreamOperator.CreateInstance", "stream operator "+name+" lacks a required capability")
	}

	inst := &Instance{operator: op, param: param}
	if op.create != nil {
		data, err := op.create(ar, param)
		if err != nil {
			return nil, err
		}
		inst.data = data
	}
	if op.destroy != nil {
		op := op
		inst := inst
		ar.OnRelease(func() { op.destroy(inst.data) })
	}
	return inst, nil
}
