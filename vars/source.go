package vars

import (
	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/field"
)

// Source is a handle to one named var slot. It is config-scoped: the same
// Source must never be used against a Store built from a different Config
// (Get/Set/Initialize/Append all check this and return EINVAL otherwise).
type Source struct {
	config       *Config
	name         string
	initialPhase Phase
	finalPhase   Phase
	indexed      bool
	index        int
}

// Name returns the var's registered (or aliased) name.
func (s *Source) Name() string { return s.name }

// InitialPhase returns the phase at which this var's value first becomes
// meaningful.
func (s *Source) InitialPhase() Phase { return s.initialPhase }

// FinalPhase returns the phase after which this var's value no longer
// changes, or PhaseNone if it may change for the life of the transaction.
func (s *Source) FinalPhase() Phase { return s.finalPhase }

// IsIndexed reports whether this Source has a Config-assigned array slot.
func (s *Source) IsIndexed() bool { return s.indexed }

func (s *Source) checkConfig(store *Store) error {
	if s.config != store.config {
		return rerrors.EINVAL("VarSource", "source and store belong to different configs")
	}
	return nil
}

// Get fetches the current field bound to this source in store, or ENOENT if
// unset.
func (s *Source) Get(store *Store) (*field.Field, error) {
	if err := s.checkConfig(store); err != nil {
		return nil, err
	}
	if s.indexed {
		f := store.array[s.index]
		if f == nil {
			return nil, rerrors.ENOENT("VarSource.Get", "unset var: "+s.name)
		}
		return f, nil
	}
	f, ok := store.byName[foldKey(s.name)]
	if !ok {
		return nil, rerrors.ENOENT("VarSource.Get", "unset var: "+s.name)
	}
	return f, nil
}

// Set binds f to this source in store, replacing any previous value. Setting
// f to nil unsets the slot. f is renamed to match the source (Target.Set's
// filtered push and Capture.SetItem also rename the fields they store).
func (s *Source) Set(store *Store, f *field.Field) error {
	if err := s.checkConfig(store); err != nil {
		return err
	}
	key := foldKey(s.name)
	if f == nil {
		delete(store.byName, key)
		if s.indexed {
			store.array[s.index] = nil
		}
		return nil
	}
	f.SetName(s.name)
	store.byName[key] = f
	if s.indexed {
		store.array[s.index] = f
	}
	return nil
}

// Initialize materializes the typed-default value for t in this source's
// slot and returns it. Used to stand up an empty collection before the
// first Append.
func (s *Source) Initialize(store *Store, t field.Type) (*field.Field, error) {
	f := field.NewDefault(s.name, t)
	if err := s.Set(store, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Append pushes child onto this source's list value, initializing an empty
// list first if the slot is unset. EINCOMPAT if the existing value is not a
// (static) list.
func (s *Source) Append(store *Store, child *field.Field) error {
	f, err := s.Get(store)
	if err != nil {
		if !rerrors.HasKind(err, rerrors.KindENOENT) {
			return err
		}
		f, err = s.Initialize(store, field.TypeList)
		if err != nil {
			return err
		}
	}
	if f.Type() != field.TypeList || f.IsDynamic() {
		return rerrors.EINCOMPAT("VarSource.Append", "target var is not a static list: "+s.name)
	}
	f.Append(child)
	return nil
}
