// SPDX-License-Identifier: MPL-2.0

// Package platform detects application sandboxes that hide host binaries,
// such as a container engine CLI, from the current process.
package platform
