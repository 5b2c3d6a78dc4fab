// SPDX-License-Identifier: MPL-2.0

package cfgtree

// Merge overlays override on top of a deep copy of defaults and returns the
// result. Neither argument is modified.
//
// For a key present in both where both values are mappings, the mappings are
// merged recursively. For every other collision the override value wins
// outright, including a mapping replacing a scalar and the reverse. Keys
// present only in defaults are kept untouched.
func Merge(override, defaults *Map) *Map {
	out := defaults.Clone()
	if override == nil {
		return out
	}
	for _, k := range override.keys {
		ov := override.values[k]
		if om, ok := ov.(*Map); ok {
			if dm, ok := out.GetMap(k); ok {
				out.Set(k, Merge(om, dm))
				continue
			}
		}
		out.Set(k, Clone(ov))
	}
	return out
}
