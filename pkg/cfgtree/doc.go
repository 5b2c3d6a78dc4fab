// SPDX-License-Identifier: MPL-2.0

// Package cfgtree models the JSON-like configuration trees read from DEV_ROOT and
// DEV_PROJECT files.
//
// A Value is a closed sum type: String, Bool, Number, Null, *Map and List. Maps keep
// insertion order so a decoded file round-trips deterministically, while Encode
// emits keys sorted for stable user-facing output. Merge implements the
// project-over-defaults deep merge used by project lookup.
package cfgtree
