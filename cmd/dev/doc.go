// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands for dev.
//
// The commands are thin: they resolve the tree directory and tool
// configuration, call into internal/project and internal/runtime, and turn
// failures into actionable errors with a process exit code.
package cmd
