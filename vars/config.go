package vars

import (
	"sync"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
)

// foldKey canonicalizes a var name for case-insensitive lookup. Var names in
// practice are ASCII (REMOTE_ADDR, ARGS, REQUEST_HEADERS:...), so a plain
// ASCII fold is sufficient and avoids the locale surprises of strings.ToLower
// on non-ASCII input.
func foldKey(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}

// Config is the per-engine registry of known var names (§2 VarConfig). A
// name registered here gets a stable array slot, letting VarStore keep an
// O(1)-indexed fast path alongside the always-available hashed fallback.
type Config struct {
	mu        sync.Mutex
	byName    map[string]*Source
	nextIndex int
}

// NewConfig creates an empty registry.
func NewConfig() *Config {
	return &Config{byName: make(map[string]*Source)}
}

// Register binds name to a new indexed Source with the given validity
// window. finalPhase must be PhaseNone or >= initialPhase. Registering the
// same name twice is EEXIST; registration is expected to happen once, at
// module-load time, before any VarStore is built from this Config.
func (c *Config) Register(name string, initialPhase, finalPhase Phase) (*Source, error) {
	if name == "" {
		return nil, rerrors.EINVAL("VarConfig.Register", "empty var name")
	}
	if finalPhase != PhaseNone && finalPhase < initialPhase {
		return nil, rerrors.EINVAL("VarConfig.Register", "final_phase precedes initial_phase")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := foldKey(name)
	if _, exists := c.byName[key]; exists {
		return nil, rerrors.EEXIST("VarConfig.Register", "var already registered: "+name)
	}

	src := &Source{
		config:       c,
		name:         name,
		initialPhase: initialPhase,
		finalPhase:   finalPhase,
		indexed:      true,
		index:        c.nextIndex,
	}
	c.byName[key] = src
	c.nextIndex++
	return src, nil
}

// Lookup returns the registered Source for name, if any, without falling
// back to an unindexed alias.
func (c *Config) Lookup(name string) (*Source, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, ok := c.byName[foldKey(name)]
	return src, ok
}

// Acquire resolves name to a Source: the registered one if present,
// otherwise — when ar is non-nil — a fresh unindexed Source aliasing the
// caller's name (e.g. a dynamically-named collection entry coined by a rule
// author, such as "TX:my_counter"). A nil arena with an unregistered name is
// ENOENT: unindexed sources are deliberately opt-in, since every one of them
// costs a hashed-map lookup rather than an array index on every access.
func (c *Config) Acquire(ar *arena.Arena, name string) (*Source, error) {
	if src, ok := c.Lookup(name); ok {
		return src, nil
	}
	if ar == nil {
		return nil, rerrors.ENOENT("VarConfig.Acquire", "unregistered var: "+name)
	}
	return &Source{config: c, name: name, finalPhase: PhaseNone}, nil
}

// NextIndex reports the number of indexed slots a VarStore built from this
// Config must reserve.
func (c *Config) NextIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextIndex
}

// Names returns every registered name, for diagnostics/introspection.
func (c *Config) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.byName))
	for _, src := range c.byName {
		out = append(out, src.name)
	}
	return out
}
