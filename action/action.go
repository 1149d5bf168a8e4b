// Package action implements the side-effect plugin kind (§4.4): same
// registry/instance shape as operator, but execute takes a rule-execution
// Context rather than a value/capture pair and returns only a status.
package action

import (
	"strings"
	"sync"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/vars"
)

// Context is the rule-execution context an action runs against: the
// transaction's var store plus whatever the enclosing rule engine stamps in
// (transaction ID here; a host engine can extend this by closing over more
// state in its own action create/execute callbacks, since CreateFunc and
// ExecuteFunc receive Context by pointer).
type Context struct {
	Store *vars.Store
	TxID  string
}

// CreateFunc builds an action instance's private data from its parameter
// string.
type CreateFunc func(ar *arena.Arena, param string) (instanceData any, err error)

// ExecuteFunc runs the action's side effect. A nil ExecuteFunc is a
// permissible no-op that always reports success.
type ExecuteFunc func(instanceData any, param string, ctx *Context) error

// DestroyFunc releases an action instance's private data.
type DestroyFunc func(instanceData any)

// Action is one named side-effect plugin. Actions carry no capability
// bitflags — unlike operators, they are not phase-gated at the plugin
// level.
type Action struct {
	name    string
	create  CreateFunc
	execute ExecuteFunc
	destroy DestroyFunc
}

// Name returns the action's registered name.
func (a *Action) Name() string { return a.name }

// Registry is the engine-level table of registered actions.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Action
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Action)}
}

// Register installs a new action under name, subject to the same
// reserved-namespace and no-duplicates rules as operator.Registry.Register.
func (r *Registry) Register(name string, create CreateFunc, execute ExecuteFunc, destroy DestroyFunc) (*Action, error) {
	if name == "" {
		return nil, rerrors.EINVAL("Action.Register", "empty action name")
	}
	if strings.HasPrefix(name, "@") {
		return nil, rerrors.EINVAL("Action.Register", "action name reserved for rule DSL: "+name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return nil, rerrors.EINVAL("Action.Register", "action already registered: "+name)
	}

	a := &Action{name: name, create: create, execute: execute, destroy: destroy}
	r.byName[name] = a
	return a, nil
}

// Lookup returns the registered action for name, if any.
func (r *Registry) Lookup(name string) (*Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

// Instance binds a parameter string and create-produced data to a borrowed
// Action reference.
type Instance struct {
	action *Action
	param  string
	data   any
}

// Action returns the instance's underlying action definition.
func (inst *Instance) Action() *Action { return inst.action }

// CreateInstance invokes the named action's create hook and registers its
// destroy hook as an arena cleanup.
func (r *Registry) CreateInstance(ar *arena.Arena, name, param string) (*Instance, error) {
	a, ok := r.Lookup(name)
	if !ok {
		return nil, rerrors.ENOENT("Action.CreateInstance", "unregistered action: "+name)
	}

	inst := &Instance{action: a, param: param}
	if a.create != nil {
		data, err := a.create(ar, param)
		if err != nil {
			return nil, err
		}
		inst.data = data
	}
	if a.destroy != nil {
		a := a
		inst := inst
		ar.OnRelease(func() { a.destroy(inst.data) })
	}
	return inst, nil
}

// Execute runs the instance's side effect against ctx. A nil Execute
// callback on the underlying action is a no-op that always succeeds.
func (inst *Instance) Execute(ctx *Context) error {
	if inst.action.execute == nil {
		return nil
	}
	return inst.action.execute(inst.data, inst.param, ctx)
}
