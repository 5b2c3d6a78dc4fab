// SPDX-License-Identifier: MPL-2.0

package cfgtree

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

const (
	// KindString is a string scalar.
	KindString Kind = iota + 1
	// KindBool is a boolean scalar.
	KindBool
	// KindNumber is a numeric scalar kept in its literal form.
	KindNumber
	// KindNull is the JSON null literal.
	KindNull
	// KindMap is an ordered mapping of string keys to values.
	KindMap
	// KindList is an ordered sequence of values.
	KindList
)

// ErrUnsupportedValue is returned when a Go value has no cfgtree representation.
var ErrUnsupportedValue = errors.New("unsupported config value")

type (
	// Kind identifies the variant held by a Value.
	Kind int

	// Value is one node of a configuration tree. The set of implementations is
	// closed: String, Bool, Number, Null, *Map and List.
	Value interface {
		Kind() Kind
		sealed()
	}

	// String is a string scalar.
	String string

	// Bool is a boolean scalar.
	Bool bool

	// Number is a numeric scalar. The literal text is preserved so that
	// integers and floats print the way they were written.
	Number json.Number

	// Null is the JSON null literal.
	Null struct{}

	// List is an ordered sequence of values.
	List []Value

	// UnsupportedValueError is returned by FromAny for Go values that have no
	// configuration tree representation.
	UnsupportedValueError struct {
		Type string
	}
)

// Kind implements Value.
func (String) Kind() Kind { return KindString }

// Kind implements Value.
func (Bool) Kind() Kind { return KindBool }

// Kind implements Value.
func (Number) Kind() Kind { return KindNumber }

// Kind implements Value.
func (Null) Kind() Kind { return KindNull }

// Kind implements Value.
func (List) Kind() Kind { return KindList }

func (String) sealed() {}
func (Bool) sealed()   {}
func (Number) sealed() {}
func (Null) sealed()   {}
func (List) sealed()   {}

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindNull:
		return "null"
	case KindMap:
		return "mapping"
	case KindList:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Int returns the number as an int.
func (n Number) Int() (int, error) {
	i, err := json.Number(n).Int64()
	if err != nil {
		return 0, err
	}
	return int(i), nil
}

// Error implements the error interface.
func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("unsupported config value of type %s", e.Type)
}

// Unwrap returns ErrUnsupportedValue so callers can use errors.Is for programmatic detection.
func (e *UnsupportedValueError) Unwrap() error { return ErrUnsupportedValue }

// Clone returns a deep copy of v. Scalars are immutable and returned as is.
func Clone(v Value) Value {
	switch t := v.(type) {
	case *Map:
		return t.Clone()
	case List:
		out := make(List, len(t))
		for i, item := range t {
			out[i] = Clone(item)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether a and b hold the same tree. Map key order is ignored;
// list order is significant.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch at := a.(type) {
	case *Map:
		bt := b.(*Map)
		if at.Len() != bt.Len() {
			return false
		}
		for _, k := range at.Keys() {
			bv, ok := bt.Get(k)
			if !ok {
				return false
			}
			av, _ := at.Get(k)
			if !Equal(av, bv) {
				return false
			}
		}
		return true
	case List:
		bt := b.(List)
		if len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !Equal(at[i], bt[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// FromAny converts plain Go data (as produced by encoding/json into any, or
// written as literals in tests) into a Value. Map keys are inserted in sorted
// order because Go maps carry no order of their own.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return Clone(t), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Number(fmt.Sprintf("%d", t)), nil
	case int64:
		return Number(fmt.Sprintf("%d", t)), nil
	case float64:
		return Number(json.Number(fmt.Sprintf("%v", t))), nil
	case json.Number:
		return Number(t), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return nil, err
			}
			m.Set(k, v)
		}
		return m, nil
	case []any:
		out := make(List, 0, len(t))
		for _, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case []string:
		out := make(List, 0, len(t))
		for _, item := range t {
			out = append(out, String(item))
		}
		return out, nil
	default:
		return nil, &UnsupportedValueError{Type: fmt.Sprintf("%T", x)}
	}
}

// MustFromAny is FromAny for literals known to be valid. It panics on error.
func MustFromAny(x any) Value {
	v, err := FromAny(x)
	if err != nil {
		panic(err)
	}
	return v
}

// MustMap is MustFromAny for map literals.
func MustMap(x map[string]any) *Map {
	return MustFromAny(x).(*Map)
}

// ToAny converts v back into plain Go data suitable for encoding/json.
func ToAny(v Value) any {
	switch t := v.(type) {
	case String:
		return string(t)
	case Bool:
		return bool(t)
	case Number:
		return json.Number(t)
	case Null:
		return nil
	case *Map:
		out := make(map[string]any, t.Len())
		for _, k := range t.Keys() {
			item, _ := t.Get(k)
			out[k] = ToAny(item)
		}
		return out
	case List:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = ToAny(item)
		}
		return out
	default:
		return nil
	}
}
