// SPDX-License-Identifier: MPL-2.0

package cfgtree

import (
	"slices"
	"testing"

	"cuelang.org/go/cue/cuecontext"
)

func TestFromCUE_KeepsDocumentOrder(t *testing.T) {
	t.Parallel()

	src := `{"zulu": "z", "alpha": {"inner": [1, "two", true, null]}, "mike": false, "pi": 3.5}`
	v := cuecontext.New().CompileString(src)
	if v.Err() != nil {
		t.Fatalf("compile: %v", v.Err())
	}

	got, err := FromCUE(v)
	if err != nil {
		t.Fatalf("FromCUE() error = %v", err)
	}
	m, ok := got.(*Map)
	if !ok {
		t.Fatalf("FromCUE() kind = %s, want mapping", got.Kind())
	}
	if keys, want := m.Keys(), []string{"zulu", "alpha", "mike", "pi"}; !slices.Equal(keys, want) {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}

	want := MustFromAny(map[string]any{
		"zulu":  "z",
		"alpha": map[string]any{"inner": []any{1, "two", true, nil}},
		"mike":  false,
		"pi":    3.5,
	})
	if !Equal(got, want) {
		t.Errorf("FromCUE() = %v, want %v", ToAny(got), ToAny(want))
	}
}

func TestFromCUE_EmptyList(t *testing.T) {
	t.Parallel()

	v := cuecontext.New().CompileString(`{"ports": []}`)
	got, err := FromCUE(v)
	if err != nil {
		t.Fatalf("FromCUE() error = %v", err)
	}
	ports, _ := got.(*Map).Get("ports")
	if l, ok := ports.(List); !ok || len(l) != 0 {
		t.Errorf("ports = %#v, want empty list", ports)
	}
}

func TestFromCUE_KeepsNumberLiterals(t *testing.T) {
	t.Parallel()

	v := cuecontext.New().CompileString(`{"big": 1e400, "neg": -7, "exp": 2.5E-3, "int": 10}`)
	if v.Err() != nil {
		t.Fatalf("compile: %v", v.Err())
	}
	got, err := FromCUE(v)
	if err != nil {
		t.Fatalf("FromCUE() error = %v", err)
	}

	m := got.(*Map)
	for key, want := range map[string]Number{"big": "1e400", "neg": "-7", "exp": "2.5E-3", "int": "10"} {
		if n, _ := m.Get(key); n != want {
			t.Errorf("FromCUE()[%s] = %v, want %s", key, n, want)
		}
	}

	out, err := Encode(got, "")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if want := `{"big":1e400,"exp":2.5E-3,"int":10,"neg":-7}` + "\n"; string(out) != want {
		t.Errorf("Encode() = %s, want %s", out, want)
	}
}
