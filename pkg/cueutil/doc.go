// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates JSON-with-comments documents against embedded CUE
// schemas.
//
// The tree files (DEV_ROOT, DEV_PROJECT) and the tool's config.cue all go
// through the same flow:
//
//  1. Strip comments and trailing commas (JSONC only)
//  2. Compile the embedded schema and the user data
//  3. Unify the data with the schema definition and validate it
//
// The caller receives the compiled user value, not the unified one, so field
// order follows the document rather than the schema.
package cueutil
