// SPDX-License-Identifier: MPL-2.0

package cfgtree

import "testing"

func TestMerge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		override map[string]any
		defaults map[string]any
		want     map[string]any
	}{
		{
			name:     "both empty",
			override: map[string]any{},
			defaults: map[string]any{},
			want:     map[string]any{},
		},
		{
			name:     "no defaults",
			override: map[string]any{"foo": "bar"},
			defaults: map[string]any{},
			want:     map[string]any{"foo": "bar"},
		},
		{
			name:     "default key kept",
			override: map[string]any{"foo": "bar"},
			defaults: map[string]any{"default": "baz"},
			want:     map[string]any{"foo": "bar", "default": "baz"},
		},
		{
			name:     "nested override wins",
			override: map[string]any{"foo": "bar", "baz": map[string]any{"test": "one"}},
			defaults: map[string]any{"baz": map[string]any{"test": "two"}},
			want:     map[string]any{"foo": "bar", "baz": map[string]any{"test": "one"}},
		},
		{
			name:     "nested mappings merge recursively",
			override: map[string]any{"foo": "bar", "baz": map[string]any{"test": "one"}},
			defaults: map[string]any{"baz": map[string]any{"test": "two", "test2": "two"}},
			want:     map[string]any{"foo": "bar", "baz": map[string]any{"test": "one", "test2": "two"}},
		},
		{
			name:     "scalar replaces mapping",
			override: map[string]any{"commands": "none"},
			defaults: map[string]any{"commands": map[string]any{"build": "make"}},
			want:     map[string]any{"commands": "none"},
		},
		{
			name:     "mapping replaces scalar",
			override: map[string]any{"runtime": map[string]any{"name": "host"}},
			defaults: map[string]any{"runtime": "host"},
			want:     map[string]any{"runtime": map[string]any{"name": "host"}},
		},
		{
			name:     "lists are not merged",
			override: map[string]any{"ports": []any{"80"}},
			defaults: map[string]any{"ports": []any{"443", "8080"}},
			want:     map[string]any{"ports": []any{"80"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Merge(MustMap(tt.override), MustMap(tt.defaults))
			if !Equal(got, MustMap(tt.want)) {
				t.Errorf("Merge() = %v, want %v", ToAny(got), tt.want)
			}
		})
	}
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()

	x := MustMap(map[string]any{
		"runtime":  "host",
		"commands": map[string]any{"build": "make", "test": "make test"},
		"flags":    []any{true, "x"},
	})
	if got := Merge(x, x); !Equal(got, x) {
		t.Errorf("Merge(x, x) = %v, want %v", ToAny(got), ToAny(x))
	}
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	t.Parallel()

	defaults := MustMap(map[string]any{"commands": map[string]any{"build": "make"}})
	override := MustMap(map[string]any{"commands": map[string]any{"test": "make test"}})

	got := Merge(override, defaults)
	cmds, _ := got.GetMap("commands")
	cmds.Set("build", String("changed"))

	orig, _ := defaults.GetMap("commands")
	if s, _ := orig.GetString("build"); s != "make" {
		t.Errorf("defaults mutated through merge result: build = %q", s)
	}
	if override.Len() != 1 {
		t.Errorf("override mutated: %v", ToAny(override))
	}
}

func TestMerge_NilOverride(t *testing.T) {
	t.Parallel()

	defaults := MustMap(map[string]any{"runtime": "host"})
	if got := Merge(nil, defaults); !Equal(got, defaults) {
		t.Errorf("Merge(nil, defaults) = %v", ToAny(got))
	}
}
