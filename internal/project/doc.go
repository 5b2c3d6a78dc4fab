// SPDX-License-Identifier: MPL-2.0

// Package project resolves projects declared in DEV_PROJECT manifests and
// runs their commands.
//
// A project's effective configuration is its manifest entry deep-merged over
// the tree's project defaults. Running a command renders the project's
// runtime spec and the command string with the project's template variables
// and hands both to the runtime dispatcher. Nothing is cached between calls.
package project
