package vars

import (
	"strings"

	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/field"
)

// Filter selects a subset of a list field's children by name (§4.1
// VarFilter). Comparison is case-insensitive and whole-string, never a
// substring match.
type Filter struct {
	name string
}

// NewFilter builds a filter matching children named name (case-insensitive).
func NewFilter(name string) *Filter {
	return &Filter{name: name}
}

// String returns the filter's match string.
func (flt *Filter) String() string { return flt.name }

// Apply evaluates the filter against target, which must be either a static
// list field (matched by child name) or a dynamic field (whose getter is
// invoked with the filter string as subkey).
func (flt *Filter) Apply(target *field.Field) ([]*field.Field, error) {
	if target.IsDynamic() {
		fields, err := target.DynamicGet(flt.name)
		if err != nil {
			return nil, rerrors.Wrap(rerrors.KindEOTHER, "VarFilter.Apply", "dynamic getter failed", err)
		}
		return fields, nil
	}
	children, ok := target.List()
	if !ok {
		return nil, rerrors.EINVAL("VarFilter.Apply", "target is not a list field")
	}
	var out []*field.Field
	for _, c := range children {
		if strings.EqualFold(c.Name(), flt.name) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Remove deletes every child of target (a static list) matching the filter,
// returning the removed children. ENOENT if nothing matched. Dynamic fields
// have no remove path: there is nothing stored to remove.
func (flt *Filter) Remove(target *field.Field) ([]*field.Field, error) {
	if target.IsDynamic() {
		return nil, rerrors.EINVAL("VarFilter.Remove", "cannot remove from a dynamic field")
	}
	if _, ok := target.List(); !ok {
		return nil, rerrors.EINVAL("VarFilter.Remove", "target is not a list field")
	}
	removed := target.RemoveChildrenMatching(func(c *field.Field) bool {
		return strings.EqualFold(c.Name(), flt.name)
	})
	if len(removed) == 0 {
		return nil, rerrors.ENOENT("VarFilter.Remove", "no children matched filter: "+flt.name)
	}
	return removed, nil
}
