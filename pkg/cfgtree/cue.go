// SPDX-License-Identifier: MPL-2.0

package cfgtree

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/token"
)

// FromCUE converts a concrete CUE value into a Value. Struct fields are
// visited in declaration order, which for data compiled from a JSON document
// is the order the keys appear in the file.
func FromCUE(v cue.Value) (Value, error) {
	switch v.IncompleteKind() {
	case cue.StructKind:
		it, err := v.Fields()
		if err != nil {
			return nil, err
		}
		m := NewMap()
		for it.Next() {
			item, err := FromCUE(it.Value())
			if err != nil {
				return nil, err
			}
			m.Set(it.Selector().Unquoted(), item)
		}
		return m, nil
	case cue.ListKind:
		it, err := v.List()
		if err != nil {
			return nil, err
		}
		var out List
		for it.Next() {
			item, err := FromCUE(it.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		if out == nil {
			out = List{}
		}
		return out, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, err
		}
		return Bool(b), nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		if lit, ok := numberLiteral(v); ok {
			return Number(lit), nil
		}
		raw, err := v.MarshalJSON()
		if err != nil {
			return nil, err
		}
		return Number(string(raw)), nil
	case cue.NullKind:
		return Null{}, nil
	default:
		return nil, &UnsupportedValueError{Type: fmt.Sprintf("cue %s", v.IncompleteKind())}
	}
}

// numberLiteral returns the number as written in the document, so 1e400
// does not come back as 1E+400. Computed numbers and CUE-only forms such as
// 0x10 or 1Ki report false.
func numberLiteral(v cue.Value) (string, bool) {
	src := v.Source()
	sign := ""
	if u, ok := src.(*ast.UnaryExpr); ok && (u.Op == token.SUB || u.Op == token.ADD) {
		if u.Op == token.SUB {
			sign = "-"
		}
		src = u.X
	}
	lit, ok := src.(*ast.BasicLit)
	if !ok || (lit.Kind != token.INT && lit.Kind != token.FLOAT) {
		return "", false
	}
	text := sign + lit.Value
	var n json.Number
	if err := json.Unmarshal([]byte(text), &n); err != nil {
		return "", false
	}
	return text, true
}
