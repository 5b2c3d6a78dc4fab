// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"os"
	"sync"
)

// Sandbox type constants.
const (
	// SandboxNone indicates no sandbox environment detected.
	SandboxNone SandboxType = ""
	// SandboxFlatpak indicates a Flatpak sandbox environment.
	SandboxFlatpak SandboxType = "flatpak"
)

// flatpakInfo exists inside every Flatpak sandbox.
const flatpakInfo = "/.flatpak-info"

// detectOnce caches the sandbox detection result for the lifetime of the
// process. detectSandboxFrom must not panic: sync.OnceValue re-panics on
// every later call.
var detectOnce = sync.OnceValue(func() SandboxType {
	return detectSandboxFrom(statFile)
})

// SandboxType identifies the type of application sandbox, if any.
type SandboxType string

// DetectSandbox returns the sandbox the current process runs in. The result
// is cached after the first call.
func DetectSandbox() SandboxType {
	return detectOnce()
}

// HostCommand returns the program and arguments that run name with args on
// the host from inside st. Outside a sandbox they are returned unchanged.
func HostCommand(st SandboxType, name string, args ...string) (string, []string) {
	switch st {
	case SandboxFlatpak:
		return "flatpak-spawn", append([]string{"--host", name}, args...)
	default:
		return name, args
	}
}

// detectSandboxFrom performs detection with an injectable stat function so
// tests do not depend on the machine they run on.
func detectSandboxFrom(statFile func(string) error) SandboxType {
	if err := statFile(flatpakInfo); err == nil {
		return SandboxFlatpak
	}
	return SandboxNone
}

func statFile(path string) error {
	_, err := os.Stat(path)
	return err
}
