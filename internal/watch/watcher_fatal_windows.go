// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import "syscall"

// fatalErrnos leave ReadDirectoryChangesW unusable: too many open files,
// an invalid handle, or not enough memory.
var fatalErrnos = []syscall.Errno{4, 6, 8}
