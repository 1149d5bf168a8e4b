// Package streamprocessor implements the type-tag-indexed streaming
// processor registry (§4.7): named byte-stream processors, grouped by
// MIME-like type tags, with per-transaction instances whose lifetime is
// tied to an arena. Chain runs a type tag's processors over a chunk; choosing
// which type tag's chain to run on which request/response body bytes is the
// caller's (pipeline orchestrator's) responsibility.
package streamprocessor

import (
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
)

// CreateFunc builds a stream processor instance's private data.
type CreateFunc func(ar *arena.Arena) (instanceData any, err error)

// ExecuteFunc consumes one chunk of body bytes, returning how many bytes it
// consumed. A nil ExecuteFunc means "pass everything through untouched".
type ExecuteFunc func(instanceData any, chunk []byte) (consumed int, err error)

// DestroyFunc releases a stream processor instance's private data.
type DestroyFunc func(instanceData any)

// Def is one named stream processor definition, tagged with the MIME-like
// type strings it applies to (e.g. "application/json", "multipart/*").
type Def struct {
	name    string
	types   []string
	create  CreateFunc
	execute ExecuteFunc
	destroy DestroyFunc
}

// Name returns the def's registered name.
func (d *Def) Name() string { return d.name }

// Types returns the type tags this def is registered under.
func (d *Def) Types() []string { return d.types }

// Registry indexes Defs by name, and secondarily by type tag.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Def
	byType map[string][]*Def
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Def),
		byType: make(map[string][]*Def),
	}
}

// Register installs a new def under name, indexed under each of types.
// A duplicate name, or a name beginning with "@", is EINVAL.
func (r *Registry) Register(name string, types []string, create CreateFunc, execute ExecuteFunc, destroy DestroyFunc) (*Def, error) {
	if name == "" {
		return nil, rerrors.EINVAL("StreamProcessor.Register", "empty stream processor name")
	}
	if name[0] == '@' {
		return nil, rerrors.EINVAL("StreamProcessor.Register", "stream processor name reserved for rule DSL: "+name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return nil, rerrors.EINVAL("StreamProcessor.Register", "stream processor already registered: "+name)
	}

	def := &Def{name: name, types: types, create: create, execute: execute, destroy: destroy}
	r.byName[name] = def
	for _, t := range types {
		r.byType[t] = append(r.byType[t], def)
	}
	return def, nil
}

// Lookup returns the registered def for name, if any.
func (r *Registry) Lookup(name string) (*Def, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byName[name]
	return def, ok
}

// NamesForType returns the ordered list of def names registered under
// type tag t.
func (r *Registry) NamesForType(t string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := r.byType[t]
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.name
	}
	return out
}

// Instance binds create-produced data to a borrowed Def reference.
type Instance struct {
	def  *Def
	data any
}

// Def returns the instance's underlying definition.
func (inst *Instance) Def() *Def { return inst.def }

// CreateInstance invokes the named def's create hook and registers its
// destroy hook as an arena cleanup, for an arena scoped to one transaction.
func (r *Registry) CreateInstance(ar *arena.Arena, name string) (*Instance, error) {
	def, ok := r.Lookup(name)
	if !ok {
		return nil, rerrors.ENOENT("StreamProcessor.CreateInstance", "unregistered stream processor: "+name)
	}

	inst := &Instance{def: def}
	if def.create != nil {
		data, err := def.create(ar)
		if err != nil {
			return nil, err
		}
		inst.data = data
	}
	if def.destroy != nil {
		def := def
		inst := inst
		ar.OnRelease(func() { def.destroy(inst.data) })
	}
	return inst, nil
}

// Execute feeds one chunk of body bytes through the instance. A nil
// Execute callback on the underlying def passes every byte through.
func (inst *Instance) Execute(chunk []byte) (consumed int, err error) {
	if inst.def.execute == nil {
		return len(chunk), nil
	}
	return inst.def.execute(inst.data, chunk)
}

// Chain binds the per-type sequence of stream processor instances a body
// scan runs through for one transaction, in NamesForType order.
type Chain struct {
	typeTag   string
	instances []*Instance
	errs      *multierror.Error
}

// CreateChain instantiates every def registered under typeTag, in
// NamesForType order. A def whose create hook fails is skipped rather than
// aborting the whole chain; every such failure is aggregated, and the
// first one is also returned directly so a caller uninterested in the
// full list can still fail fast.
func (r *Registry) CreateChain(ar *arena.Arena, typeTag string) (*Chain, error) {
	r.mu.RLock()
	defs := append([]*Def(nil), r.byType[typeTag]...)
	r.mu.RUnlock()

	chain := &Chain{typeTag: typeTag}
	var firstErr error
	for _, def := range defs {
		inst, err := r.CreateInstance(ar, def.name)
		if err != nil {
			chain.errs = multierror.Append(chain.errs, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		chain.instances = append(chain.instances, inst)
	}
	return chain, firstErr
}

// Execute feeds chunk through every instance in the chain in turn,
// continuing past a failing processor so the remaining ones still see the
// chunk. It returns the last successful processor's consumed count
// (len(chunk) if none succeeded) alongside the first error encountered, if
// any; Errors exposes the full set.
func (c *Chain) Execute(chunk []byte) (consumed int, err error) {
	consumed = len(chunk)
	var firstErr error
	for _, inst := range c.instances {
		n, execErr := inst.Execute(chunk)
		if execErr != nil {
			c.errs = multierror.Append(c.errs, execErr)
			if firstErr == nil {
				firstErr = execErr
			}
			continue
		}
		consumed = n
	}
	return consumed, firstErr
}

// Errors returns every failure accumulated across CreateChain and any
// Execute calls made on this chain so far, or nil if none occurred.
func (c *Chain) Errors() error {
	if c.errs == nil {
		return nil
	}
	return c.errs.ErrorOrNil()
}

// Len returns the number of processors successfully instantiated in the
// chain.
func (c *Chain) Len() int { return len(c.instances) }
