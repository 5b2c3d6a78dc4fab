// SPDX-License-Identifier: MPL-2.0

// Package render substitutes $NAME and ${NAME} placeholders in configuration
// values.
//
// Only strings are rewritten. Mappings and lists are walked recursively with
// their order preserved and booleans pass through. Any other value kind is
// rejected, as is a reference to a variable that is not defined. $$ produces
// a literal dollar sign.
package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rongoro/dev/pkg/cfgtree"
)

var (
	// ErrUndefinedVariable is the sentinel error wrapped by UndefinedVariableError.
	ErrUndefinedVariable = errors.New("undefined template variable")
	// ErrUnsupportedValueType is the sentinel error wrapped by UnsupportedValueTypeError.
	ErrUnsupportedValueType = errors.New("unsupported config value type")
	// ErrInvalidPlaceholder is the sentinel error wrapped by InvalidPlaceholderError.
	ErrInvalidPlaceholder = errors.New("invalid placeholder")
)

type (
	// Vars maps variable names to their values.
	Vars map[string]string

	// UndefinedVariableError reports a placeholder naming an unknown variable.
	UndefinedVariableError struct {
		Name  string
		Field string
	}

	// UnsupportedValueTypeError reports a value kind the renderer cannot handle.
	UnsupportedValueTypeError struct {
		Kind  cfgtree.Kind
		Field string
	}

	// InvalidPlaceholderError reports a $ that does not start a valid placeholder.
	InvalidPlaceholderError struct {
		Text   string
		Offset int
		Field  string
	}
)

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("undefined template variable $%s%s", e.Name, fieldSuffix(e.Field))
}

// Unwrap returns ErrUndefinedVariable so callers can use errors.Is for programmatic detection.
func (e *UndefinedVariableError) Unwrap() error { return ErrUndefinedVariable }

// Error implements the error interface.
func (e *UnsupportedValueTypeError) Error() string {
	return fmt.Sprintf("unsupported config value type %s%s", e.Kind, fieldSuffix(e.Field))
}

// Unwrap returns ErrUnsupportedValueType so callers can use errors.Is for programmatic detection.
func (e *UnsupportedValueTypeError) Unwrap() error { return ErrUnsupportedValueType }

// Error implements the error interface.
func (e *InvalidPlaceholderError) Error() string {
	return fmt.Sprintf("invalid placeholder at offset %d in %q%s", e.Offset, e.Text, fieldSuffix(e.Field))
}

// Unwrap returns ErrInvalidPlaceholder so callers can use errors.Is for programmatic detection.
func (e *InvalidPlaceholderError) Unwrap() error { return ErrInvalidPlaceholder }

func fieldSuffix(field string) string {
	if field == "" {
		return ""
	}
	return " (at " + field + ")"
}

// Render returns a copy of v with every string substituted. v is not modified.
func Render(v cfgtree.Value, vars Vars) (cfgtree.Value, error) {
	return render(v, vars, "")
}

// Map is Render for mappings.
func Map(m *cfgtree.Map, vars Vars) (*cfgtree.Map, error) {
	out, err := render(m, vars, "")
	if err != nil {
		return nil, err
	}
	return out.(*cfgtree.Map), nil
}

func render(v cfgtree.Value, vars Vars, field string) (cfgtree.Value, error) {
	switch t := v.(type) {
	case cfgtree.String:
		s, err := expand(string(t), vars)
		if err != nil {
			return nil, withField(err, field)
		}
		return cfgtree.String(s), nil
	case cfgtree.Bool:
		return t, nil
	case *cfgtree.Map:
		out := cfgtree.NewMap()
		for _, k := range t.Keys() {
			item, _ := t.Get(k)
			r, err := render(item, vars, join(field, k))
			if err != nil {
				return nil, err
			}
			out.Set(k, r)
		}
		return out, nil
	case cfgtree.List:
		out := make(cfgtree.List, len(t))
		for i, item := range t {
			r, err := render(item, vars, fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case nil:
		return nil, &UnsupportedValueTypeError{Field: field}
	default:
		return nil, &UnsupportedValueTypeError{Kind: v.Kind(), Field: field}
	}
}

// String substitutes the placeholders in s.
func String(s string, vars Vars) (string, error) {
	return expand(s, vars)
}

func join(field, key string) string {
	if field == "" {
		return key
	}
	return field + "." + key
}

func withField(err error, field string) error {
	var uv *UndefinedVariableError
	if errors.As(err, &uv) {
		uv.Field = field
		return uv
	}
	var ip *InvalidPlaceholderError
	if errors.As(err, &ip) {
		ip.Field = field
		return ip
	}
	return err
}

func expand(s string, vars Vars) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}

		if i+1 >= len(s) {
			return "", &InvalidPlaceholderError{Text: s, Offset: i}
		}

		var name string
		next := i + 1
		switch {
		case s[next] == '$':
			b.WriteByte('$')
			i += 2
			continue
		case s[next] == '{':
			end := strings.IndexByte(s[next:], '}')
			if end < 0 {
				return "", &InvalidPlaceholderError{Text: s, Offset: i}
			}
			name = s[next+1 : next+end]
			if !isIdentifier(name) {
				return "", &InvalidPlaceholderError{Text: s, Offset: i}
			}
			i = next + end + 1
		default:
			j := next
			for j < len(s) && isIdentByte(s[j], j == next) {
				j++
			}
			if j == next {
				return "", &InvalidPlaceholderError{Text: s, Offset: i}
			}
			name = s[next:j]
			i = j
		}

		val, ok := vars[name]
		if !ok {
			return "", &UndefinedVariableError{Name: name}
		}
		b.WriteString(val)
	}
	return b.String(), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i], i == 0) {
			return false
		}
	}
	return true
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return !first
	default:
		return false
	}
}
