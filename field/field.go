// Package field implements the core's dynamically-typed value cell (§3
// Field of the rule-engine data model): a tagged union of scalar kinds plus
// a list kind, with an orthogonal "dynamic" mode whose list value is
// computed on demand from a caller-supplied subkey rather than stored.
package field

import (
	"strconv"
	"time"

	rerrors "github.com/ironbee-oss/rulecore/errors"
)

// Type tags the variant a Field currently holds.
type Type int

const (
	// TypeUnknown is the zero value; no Field should ever carry it once
	// constructed through one of the New* functions.
	TypeUnknown Type = iota
	// TypeInt holds a signed integer, stringified as unsigned decimal
	// (see Stringify).
	TypeInt
	// TypeFloat holds an IEEE double.
	TypeFloat
	// TypeTime holds an absolute point in time.
	TypeTime
	// TypeNulString holds a string that is conceptually NUL-terminated;
	// Go's string type already carries an explicit length so this variant
	// differs from TypeByteString only in provenance, not representation.
	TypeNulString
	// TypeByteString holds an opaque byte string.
	TypeByteString
	// TypeList holds a list of child Fields, or (if Dynamic) a getter
	// that computes one on demand.
	TypeList
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeTime:
		return "TIME"
	case TypeNulString:
		return "NULSTRING"
	case TypeByteString:
		return "BYTESTRING"
	case TypeList:
		return "LIST"
	default:
		return "UNKNOWN"
	}
}

// DynamicGetter computes a dynamic list field's children from a subkey.
// An empty subkey means "the field's entire dynamic value".
type DynamicGetter func(subkey string) ([]*Field, error)

// Field is a tagged value cell. The zero value is not meaningful; build one
// with the New* constructors.
//
// Invariant: a dynamic Field always has Type() == TypeList; the stored-list
// and dynamic-getter branches are mutually exclusive.
type Field struct {
	name string
	typ  Type

	i    int64
	f    float64
	tm   time.Time
	s    string
	list []*Field

	dynamic DynamicGetter
}

// Name returns the field's current name. Names are mutated only by
// VarSource.Set, VarTarget.Set's relabel-on-push, and Capture.SetItem's
// relabel to the slot name.
func (fd *Field) Name() string { return fd.name }

// SetName rewrites the field's name in place. Its callers are the vars
// package (on VarSource.Set and on VarTarget.Set's relabel-and-push write
// path) and the capture package (relabeling a field to its slot name).
func (fd *Field) SetName(name string) { fd.name = name }

// Type returns the field's variant tag.
func (fd *Field) Type() Type { return fd.typ }

// IsDynamic reports whether this is a dynamic list field.
func (fd *Field) IsDynamic() bool { return fd.typ == TypeList && fd.dynamic != nil }

// NewInt creates a signed-integer field.
func NewInt(name string, v int64) *Field {
	return &Field{name: name, typ: TypeInt, i: v}
}

// NewFloat creates a float field.
func NewFloat(name string, v float64) *Field {
	return &Field{name: name, typ: TypeFloat, f: v}
}

// NewTime creates a time field.
func NewTime(name string, v time.Time) *Field {
	return &Field{name: name, typ: TypeTime, tm: v}
}

// NewNulString creates a NUL-string field.
func NewNulString(name string, v string) *Field {
	return &Field{name: name, typ: TypeNulString, s: v}
}

// NewByteString creates a byte-string field.
func NewByteString(name string, v string) *Field {
	return &Field{name: name, typ: TypeByteString, s: v}
}

// NewList creates a static list field. The children slice is taken by
// reference; callers must not mutate it after passing it in without also
// going through Append/SetList.
func NewList(name string, children []*Field) *Field {
	return &Field{name: name, typ: TypeList, list: children}
}

// NewDynamicList creates a dynamic list field backed by getter.
func NewDynamicList(name string, getter DynamicGetter) *Field {
	return &Field{name: name, typ: TypeList, dynamic: getter}
}

// NewDefault creates the typed-default value for t: 0, 0.0, the zero time,
// empty string, or an empty list. Used by VarSource.Initialize to
// materialize a slot before the first Append.
func NewDefault(name string, t Type) *Field {
	switch t {
	case TypeInt:
		return NewInt(name, 0)
	case TypeFloat:
		return NewFloat(name, 0)
	case TypeTime:
		return NewTime(name, time.Time{})
	case TypeNulString:
		return NewNulString(name, "")
	case TypeByteString:
		return NewByteString(name, "")
	case TypeList:
		return NewList(name, nil)
	default:
		return NewList(name, nil)
	}
}

// Int returns the field's integer value, or (0, false) if not TypeInt.
func (fd *Field) Int() (int64, bool) {
	if fd.typ != TypeInt {
		return 0, false
	}
	return fd.i, true
}

// Float returns the field's float value, or (0, false) if not TypeFloat.
func (fd *Field) Float() (float64, bool) {
	if fd.typ != TypeFloat {
		return 0, false
	}
	return fd.f, true
}

// Time returns the field's time value, or (zero, false) if not TypeTime.
func (fd *Field) Time() (time.Time, bool) {
	if fd.typ != TypeTime {
		return time.Time{}, false
	}
	return fd.tm, true
}

// String returns the field's raw string payload for TypeNulString or
// TypeByteString, or ("", false) otherwise.
func (fd *Field) String() (string, bool) {
	if fd.typ != TypeNulString && fd.typ != TypeByteString {
		return "", false
	}
	return fd.s, true
}

// List returns a static list field's children. Calling List on a dynamic
// field returns (nil, false); use DynamicGet instead.
func (fd *Field) List() ([]*Field, bool) {
	if fd.typ != TypeList || fd.dynamic != nil {
		return nil, false
	}
	return fd.list, true
}

// DynamicGet evaluates a dynamic field's getter against subkey. Calling
// DynamicGet on a non-dynamic field returns an error.
func (fd *Field) DynamicGet(subkey string) ([]*Field, error) {
	if !fd.IsDynamic() {
		return nil, rerrors.EINVAL("Field.DynamicGet", "field is not dynamic")
	}
	return fd.dynamic(subkey)
}

// Append pushes child onto a static list field's children. Appending to a
// dynamic field is rejected by the caller (vars.Source.Append), not here;
// Field.Append assumes it has already been validated as a static list.
func (fd *Field) Append(child *Field) {
	fd.list = append(fd.list, child)
}

// RemoveChildrenMatching removes every child for which match returns true,
// returning the removed children in original order.
func (fd *Field) RemoveChildrenMatching(match func(*Field) bool) []*Field {
	var removed []*Field
	kept := fd.list[:0]
	for _, c := range fd.list {
		if match(c) {
			removed = append(removed, c)
		} else {
			kept = append(kept, c)
		}
	}
	fd.list = kept
	return removed
}

// Clear empties a static list field's children.
func (fd *Field) Clear() {
	fd.list = nil
}

// Stringify renders a scalar field's value per the target-expansion
// stringification table: bytestring/NUL-string emit raw bytes, integers
// render via an unsigned decimal (mirroring the source's %PRIu64, even
// though the in-memory representation is signed), floats render via the
// shortest round-trippable decimal (the Go analogue of the source's
// %Lf long-double formatting; see DESIGN.md). List and dynamic fields are
// not handled here — the caller (vars.Expand) is responsible for the
// list-join and UNSUPPORTED/ERROR literals of §3/§6.
func (fd *Field) Stringify() (string, bool) {
	switch fd.typ {
	case TypeByteString, TypeNulString:
		return fd.s, true
	case TypeInt:
		return strconv.FormatUint(uint64(fd.i), 10), true
	case TypeFloat:
		return strconv.FormatFloat(fd.f, 'f', -1, 64), true
	default:
		return "", false
	}
}
