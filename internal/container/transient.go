// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// IsTransientError reports whether err is a container engine failure that may
// succeed on retry: the generic engine error exit code 125, rootless Podman
// races, and daemon connection hiccups.
//
// Context cancellation and deadline errors are never transient.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 125 {
		return true
	}

	errStr := err.Error()
	for _, marker := range []string{
		"ping_group_range",
		"OCI runtime error",
		"connection refused",
		"connection timed out",
		"error creating overlay mount",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
