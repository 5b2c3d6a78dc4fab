// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// An ActionableError records the operation that failed, the resource involved
// and suggestions for fixing it. It may also point at an Issue: a Markdown
// guidance page from the catalog that the CLI renders with glamour.
package issue
