package vars

import "github.com/ironbee-oss/rulecore/field"

// Store is one transaction's (or connection's, or whatever scope the
// caller chooses) bag of live var values (§2 VarStore): an array of indexed
// slots sized to its Config at construction time, plus a hashed fallback
// for unindexed sources.
type Store struct {
	config *Config
	byName map[string]*field.Field
	array  []*field.Field
}

// NewStore allocates a Store sized for config's currently-registered
// sources. config must not gain new Register calls after this point for any
// Store built from it — see Config.Register's doc comment.
func NewStore(config *Config) *Store {
	return &Store{
		config: config,
		byName: make(map[string]*field.Field),
		array:  make([]*field.Field, config.NextIndex()),
	}
}

// Config returns the Config this Store was built from.
func (st *Store) Config() *Config { return st.config }
