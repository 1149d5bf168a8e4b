package vars

import (
	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/field"
)

// Target composes a Source with an optional filter (§4.1 VarTarget). The
// filter comes in one of two forms: a static Filter fixed at construction,
// or a filterExpand evaluated fresh against the Store on every Get/Set (so
// a filter string like "REQUEST_HEADERS:%{TX:header_name}" can depend on
// other vars). The two are mutually exclusive.
type Target struct {
	source       *Source
	filter       *Filter
	filterExpand *Expand
}

// NewTarget builds a target with no filter: Get returns the source's value
// wrapped as a one-element list (or its children directly, if it is itself
// a list).
func NewTarget(source *Source) *Target {
	return &Target{source: source}
}

// NewTargetWithFilter builds a target with a filter fixed at construction
// time.
func NewTargetWithFilter(source *Source, filter *Filter) *Target {
	return &Target{source: source, filter: filter}
}

// NewTargetWithExpand builds a target whose filter string is computed by
// evaluating expand against the Store at access time.
func NewTargetWithExpand(source *Source, expand *Expand) *Target {
	return &Target{source: source, filterExpand: expand}
}

// SourceName returns the underlying source's name.
func (t *Target) SourceName() string { return t.source.Name() }

// Source returns the underlying Source.
func (t *Target) Source() *Source { return t.source }

// resolve returns the effective, frozen filter for one operation: nil if
// this target carries no filter, otherwise a *Filter built either from the
// static filter or by evaluating filterExpand against store exactly once.
func (t *Target) resolve(store *Store) (*Filter, error) {
	if t.filter != nil {
		return t.filter, nil
	}
	if t.filterExpand != nil {
		s, err := t.filterExpand.Execute(store)
		if err != nil {
			return nil, err
		}
		return NewFilter(s), nil
	}
	return nil, nil
}

// Type reports the type Get would observe: TypeList whenever a filter is
// present (filtering always yields a list of matches), otherwise the
// underlying source field's own type.
func (t *Target) Type(store *Store) (field.Type, error) {
	if t.filter != nil || t.filterExpand != nil {
		return field.TypeList, nil
	}
	f, err := t.source.Get(store)
	if err != nil {
		return field.TypeUnknown, err
	}
	return f.Type(), nil
}

// Get resolves the target against store (§4.1 target_get):
//   - with a filter, applies it to the source field;
//   - without one, returns the source field's children directly if it is
//     itself a list, else wraps it as a one-element list.
func (t *Target) Get(store *Store) ([]*field.Field, error) {
	flt, err := t.resolve(store)
	if err != nil {
		return nil, err
	}
	f, err := t.source.Get(store)
	if err != nil {
		return nil, err
	}
	if flt != nil {
		return flt.Apply(f)
	}
	if f.Type() == field.TypeList {
		if f.IsDynamic() {
			return f.DynamicGet("")
		}
		children, _ := f.List()
		return children, nil
	}
	return []*field.Field{f}, nil
}

// Set pushes f into the target (§4.1 target_set). Without a filter, this is
// a plain Source.Set. With one, f is appended as a new child of the
// underlying (static) list field, relabeled to the filter string;
// initializing that list first if the source is currently unset.
func (t *Target) Set(store *Store, f *field.Field) error {
	flt, err := t.resolve(store)
	if err != nil {
		return err
	}
	if flt == nil {
		return t.source.Set(store, f)
	}

	target, err := t.source.Get(store)
	if err != nil {
		if !rerrors.HasKind(err, rerrors.KindENOENT) {
			return err
		}
		target, err = t.source.Initialize(store, field.TypeList)
		if err != nil {
			return err
		}
	}
	if target.IsDynamic() {
		return rerrors.EINVAL("VarTarget.Set", "cannot set into a dynamic field via filter")
	}
	if target.Type() != field.TypeList {
		return rerrors.EINVAL("VarTarget.Set", "target field is not a list")
	}
	f.SetName(flt.String())
	target.Append(f)
	return nil
}

// RemoveAndSet removes every child currently matching this target's filter,
// then sets f in their place, using the SAME resolved filter for both steps
// (the filter is frozen once, even if it is expand-derived) so the two
// halves can never disagree about which children are "the old value".
func (t *Target) RemoveAndSet(store *Store, f *field.Field) error {
	flt, err := t.resolve(store)
	if err != nil {
		return err
	}
	frozen := &Target{source: t.source, filter: flt}

	if flt != nil {
		target, err := t.source.Get(store)
		if err != nil && !rerrors.HasKind(err, rerrors.KindENOENT) {
			return err
		}
		if err == nil {
			if _, rerr := flt.Remove(target); rerr != nil && !rerrors.HasKind(rerr, rerrors.KindENOENT) {
				return rerr
			}
		}
	}
	return frozen.Set(store, f)
}
