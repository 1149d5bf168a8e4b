// Package arena implements the core's scoped memory-manager abstraction:
// a bump-allocator stand-in with cleanup registration, used in place of the
// reference implementation's pool allocator. Every mutable object elsewhere
// in the module is carved out of an Arena; arenas form a strict tree and a
// child's release runs its registered cleanups in reverse-registration
// order, exactly as the C core's ib_mm_t/ib_mpool_t pairing does.
package arena

import (
	"sync"

	"github.com/google/uuid"
)

// Cleanup is a destructor registered against an Arena. It runs exactly once,
// on the arena's Release, even if Release is called multiple times.
type Cleanup func()

// Arena is a scoped allocation/cleanup context. The zero value is not
// usable; construct one with New or a parent's NewChild.
type Arena struct {
	mu       sync.Mutex
	id       string
	parent   *Arena
	children []*Arena
	cleanups []Cleanup
	released bool
}

// New creates a root arena with no parent.
func New() *Arena {
	return &Arena{id: uuid.NewString()}
}

// ID returns the arena's identifier, useful for log correlation across a
// transaction's lifetime.
func (a *Arena) ID() string {
	return a.id
}

// NewChild creates a child arena. Releasing the parent releases every child
// first (in reverse order of creation), mirroring the source's pool tree.
func (a *Arena) NewChild() *Arena {
	child := &Arena{id: uuid.NewString(), parent: a}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		// A released arena should never be asked for children; return an
		// already-released child, so any cleanup later registered on it
		// runs immediately (see OnRelease).
		child.released = true
		return child
	}
	a.children = append(a.children, child)
	return child
}

// OnRelease registers a cleanup to run when this arena is released. Cleanups
// run in reverse-registration order (LIFO), matching the destructor
// ordering guarantee of the reference pool allocator. Registering on an
// already-released arena runs the cleanup immediately.
func (a *Arena) OnRelease(fn Cleanup) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		fn()
		return
	}
	a.cleanups = append(a.cleanups, fn)
	a.mu.Unlock()
}

// Release tears the arena down: child arenas release first (most-recently
// created first), then this arena's own cleanups run in reverse-registration
// order. Release is idempotent; calling it twice is a no-op the second time.
func (a *Arena) Release() {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return
	}
	a.released = true
	children := a.children
	a.children = nil
	cleanups := a.cleanups
	a.cleanups = nil
	a.mu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Release()
	}
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// Released reports whether Release has already run.
func (a *Arena) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}
