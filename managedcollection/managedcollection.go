// Package managedcollection implements the persistence/selection mechanism
// for named lists (§4.6): a chain of registered handlers, each offering a
// (selection, populate, persist) triple, tried in registration order until
// one accepts a collection name. Concrete handlers backed by Redis and
// PostgreSQL live alongside this core mechanism (redis.go, postgres.go);
// scheduler.go drives persist_all on a cron schedule.
package managedcollection

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/field"
	"github.com/ironbee-oss/rulecore/vars"
)

// SelectionFunc decides whether its handler owns the collection named name,
// given the rule-author-supplied params string. Returning (false, nil, nil)
// means "not mine, try the next handler".
type SelectionFunc func(name string, params string) (accept bool, handlerData any, err error)

// PopulateFunc fills target (an empty, freshly-initialized list field bound
// to name in store) with the handler's data for this transaction. ctx
// bounds whatever blocking I/O the handler performs (e.g. a Redis round
// trip).
type PopulateFunc func(ctx context.Context, ar *arena.Arena, handlerData any, name string, params string, store *vars.Store, target *field.Field) error

// PersistFunc writes target's current contents back to the handler's
// backing store at transaction end.
type PersistFunc func(ctx context.Context, ar *arena.Arena, handlerData any, name string, store *vars.Store, target *field.Field) error

// Handler is one named persistence/selection backend.
type Handler struct {
	name      string
	selection SelectionFunc
	populate  PopulateFunc
	persist   PersistFunc
}

// Name returns the handler's identifying name (e.g. "redis", "postgres").
func (h *Handler) Name() string { return h.name }

// Engine is the ordered chain of registered handlers, shared across every
// transaction.
type Engine struct {
	mu       sync.Mutex
	handlers []*Handler
}

// NewEngine builds an empty handler chain.
func NewEngine() *Engine {
	return &Engine{}
}

// Register appends a new handler to the chain, in registration order.
func (e *Engine) Register(name string, selection SelectionFunc, populate PopulateFunc, persist PersistFunc) (*Handler, error) {
	if name == "" {
		return nil, rerrors.EINVAL("ManagedCollection.Register", "empty handler name")
	}
	h := &Handler{name: name, selection: selection, populate: populate, persist: persist}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
	return h, nil
}

// Collection is a named list bound to the handler that accepted it, plus
// that handler's opaque selection-time data.
type Collection struct {
	name        string
	params      string
	handler     *Handler
	handlerData any
	source      *vars.Source // set once Populate binds it to a store
}

// Name returns the collection's var name.
func (c *Collection) Name() string { return c.name }

// Handler returns the handler that accepted this collection.
func (c *Collection) Handler() *Handler { return c.handler }

// Select consults each registered handler's selection callback in order;
// the first to accept wins. ENOENT if none accept.
func (e *Engine) Select(name, params string) (*Collection, error) {
	e.mu.Lock()
	handlers := append([]*Handler(nil), e.handlers...)
	e.mu.Unlock()

	for _, h := range handlers {
		accept, data, err := h.selection(name, params)
		if err != nil {
			return nil, err
		}
		if accept {
			return &Collection{name: name, params: params, handler: h, handlerData: data}, nil
		}
	}
	return nil, rerrors.ENOENT("ManagedCollection.Select", "no handler accepted collection: "+name)
}

// TX tracks the managed collections populated during one transaction, for
// a later PersistAll call.
type TX struct {
	Store       *vars.Store
	instances   []*Collection
	persistErrs *multierror.Error
}

// NewTX wraps store as a transaction-scoped persistence tracker.
func NewTX(store *vars.Store) *TX {
	return &TX{Store: store}
}

// Populate initializes coll's list field in tx.Store, invokes the owning
// handler's populate callback, and records the instance for later
// persistence.
func (tx *TX) Populate(ctx context.Context, ar *arena.Arena, coll *Collection) error {
	source, err := tx.Store.Config().Acquire(ar, coll.name)
	if err != nil {
		return err
	}
	target, err := source.Initialize(tx.Store, field.TypeList)
	if err != nil {
		return err
	}
	coll.source = source

	if coll.handler.populate != nil {
		if err := coll.handler.populate(ctx, ar, coll.handlerData, coll.name, coll.params, tx.Store, target); err != nil {
			return err
		}
	}
	tx.instances = append(tx.instances, coll)
	return nil
}

// PersistAll invokes every recorded instance's handler persist callback.
// The first failure is remembered and returned, but every instance still
// gets a chance to persist. The full set of failures is available
// afterward via PersistErrors.
func (tx *TX) PersistAll(ctx context.Context, ar *arena.Arena) error {
	var firstErr error
	tx.persistErrs = nil
	for _, coll := range tx.instances {
		if coll.handler.persist == nil || coll.source == nil {
			continue
		}
		target, err := coll.source.Get(tx.Store)
		if err != nil {
			tx.persistErrs = multierror.Append(tx.persistErrs, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := coll.handler.persist(ctx, ar, coll.handlerData, coll.name, tx.Store, target); err != nil {
			tx.persistErrs = multierror.Append(tx.persistErrs, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// PersistErrors returns every failure from the most recent PersistAll call,
// wrapped in a multierror.Error for callers that want the full audit trail
// rather than just the first failure PersistAll returns.
func (tx *TX) PersistErrors() error {
	if tx.persistErrs == nil {
		return nil
	}
	return tx.persistErrs.ErrorOrNil()
}
