// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"os"
	"slices"
	"strings"
)

// PodmanEngine implements Engine using the Podman CLI.
type PodmanEngine struct {
	*BaseCLIEngine
}

// selinuxEnforcePath is a variable so tests can point it at a fixture.
var selinuxEnforcePath = "/sys/fs/selinux/enforce"

// NewPodmanEngine creates a new Podman engine bound to the podman binary on PATH.
// Runs keep the invoking user's id mapping (--userns=keep-id) so files written
// to bind mounts stay owned by that user, and volume mounts get the :z label
// when SELinux is enforcing.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	path := lookupBinary("podman")

	allOpts := append([]BaseCLIEngineOption{
		WithName(string(EngineTypePodman)),
		WithVolumeFormatter(addSELinuxLabel),
		WithRunArgsTransformer(injectKeepID),
	}, opts...)

	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, allOpts...),
	}
}

// Name returns the engine name.
func (e *PodmanEngine) Name() string {
	return string(EngineTypePodman)
}

// Available checks that podman answers a version query.
func (e *PodmanEngine) Available(ctx context.Context) bool {
	if e.BinaryPath() == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, AvailableTimeout)
	defer cancel()
	cmd := e.CreateCommand(ctx, "version", "--format", "{{.Version}}")
	return cmd.Run() == nil
}

// injectKeepID inserts --userns=keep-id right after the run subcommand.
func injectKeepID(args []string) []string {
	if len(args) == 0 || args[0] != "run" || slices.Contains(args, "--userns=keep-id") {
		return args
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0], "--userns=keep-id")
	return append(out, args[1:]...)
}

func isSELinuxEnabled() bool {
	data, err := os.ReadFile(selinuxEnforcePath)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

// addSELinuxLabel formats mount, adding the shared :z label when SELinux is
// enforcing and the mount carries no label of its own.
func addSELinuxLabel(mount VolumeMount) string {
	if mount.SELinux == SELinuxLabelNone && isSELinuxEnabled() {
		mount.SELinux = SELinuxLabelShared
	}
	return FormatVolumeMount(mount)
}
