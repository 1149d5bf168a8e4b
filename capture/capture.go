// Package capture implements the bounded indexed sub-collection (§4.5) used
// to record operator match results: ten addressable slots, "0".."9", backed
// by a single VarSource whose value is a list field.
package capture

import (
	"strconv"

	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/field"
	"github.com/ironbee-oss/rulecore/vars"
)

// MaxSlots is the number of addressable capture slots.
const MaxSlots = 10

// Capture wraps a VarSource whose field value is the list of currently-set
// capture children.
type Capture struct {
	source *vars.Source
}

// New wraps source as a Capture. source is typically acquired/registered
// under a caller-chosen collection name, conventionally "CAPTURE".
func New(source *vars.Source) *Capture {
	return &Capture{source: source}
}

func slotName(n int) (string, error) {
	if n < 0 || n >= MaxSlots {
		return "", rerrors.EINVAL("Capture", "slot index out of range: "+strconv.Itoa(n))
	}
	return strconv.Itoa(n), nil
}

// FormatSlotName renders n as a capture slot name for display purposes
// (e.g. log formatting), without erroring on an out-of-range index the way
// SetItem/Get do: an out-of-range n renders as "??" rather than a digit.
func FormatSlotName(n int) string {
	name, err := slotName(n)
	if err != nil {
		return "??"
	}
	return name
}

// SetItem removes any existing child named n, then — if f is non-nil —
// relabels f to "n" and appends it. Passing a nil f clears slot n without
// replacing it.
func (c *Capture) SetItem(store *vars.Store, n int, f *field.Field) error {
	name, err := slotName(n)
	if err != nil {
		return err
	}

	list, err := c.list(store)
	if err != nil {
		if !rerrors.HasKind(err, rerrors.KindENOENT) {
			return err
		}
		list, err = c.source.Initialize(store, field.TypeList)
		if err != nil {
			return err
		}
	}

	list.RemoveChildrenMatching(func(child *field.Field) bool { return child.Name() == name })
	if f != nil {
		f.SetName(name)
		list.Append(f)
	}
	return nil
}

// Get returns the field currently bound to slot n, or ENOENT if unset.
func (c *Capture) Get(store *vars.Store, n int) (*field.Field, error) {
	name, err := slotName(n)
	if err != nil {
		return nil, err
	}
	list, err := c.list(store)
	if err != nil {
		return nil, err
	}
	children, _ := list.List()
	for _, child := range children {
		if child.Name() == name {
			return child, nil
		}
	}
	return nil, rerrors.ENOENT("Capture.Get", "slot not set: "+name)
}

// Clear empties every currently-set slot.
func (c *Capture) Clear(store *vars.Store) error {
	list, err := c.list(store)
	if err != nil {
		if rerrors.HasKind(err, rerrors.KindENOENT) {
			return nil
		}
		return err
	}
	list.Clear()
	return nil
}

func (c *Capture) list(store *vars.Store) (*field.Field, error) {
	return c.source.Get(store)
}
