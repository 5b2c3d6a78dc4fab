// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rongoro/dev/internal/issue"
	"github.com/rongoro/dev/pkg/platform"
)

const (
	// PortProtocolTCP is the TCP transport protocol for port mappings.
	PortProtocolTCP PortProtocol = "tcp"
	// PortProtocolUDP is the UDP transport protocol for port mappings.
	PortProtocolUDP PortProtocol = "udp"

	// SELinuxLabelNone means no SELinux label is applied to volume mounts.
	SELinuxLabelNone SELinuxLabel = ""
	// SELinuxLabelShared allows sharing the volume between containers.
	SELinuxLabelShared SELinuxLabel = "z"
	// SELinuxLabelPrivate restricts the volume to a single container.
	SELinuxLabelPrivate SELinuxLabel = "Z"

	imageListAttempts = 3
	imageListBackoff  = 200 * time.Millisecond
)

var (
	// ErrInvalidPortProtocol is the sentinel error wrapped by InvalidPortProtocolError.
	ErrInvalidPortProtocol = errors.New("invalid port protocol")

	// ErrInvalidPortMapping is returned for malformed or out-of-range port mappings.
	ErrInvalidPortMapping = errors.New("invalid port mapping")

	// ErrInvalidVolumeMount is returned for volume mounts with empty paths or unknown labels.
	ErrInvalidVolumeMount = errors.New("invalid volume mount")

	// ErrInvalidBuildOptions is returned when a build has no context directory or tag.
	ErrInvalidBuildOptions = errors.New("invalid build options")
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// VolumeFormatFunc formats a volume mount for the -v flag. Podman uses it
	// to add SELinux labels.
	VolumeFormatFunc func(mount VolumeMount) string

	// RunArgsTransformer modifies run arguments after they're built.
	// Used by Podman to inject --userns=keep-id for rootless compatibility.
	RunArgsTransformer func(args []string) []string

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides the implementation shared by CLI-based engines.
	// Docker and Podman engines embed it and only add probing and
	// engine-specific argument tweaks.
	BaseCLIEngine struct {
		name               string
		binaryPath         string
		execCommand        ExecCommandFunc
		volumeFormatter    VolumeFormatFunc
		runArgsTransformer RunArgsTransformer
		sandbox            platform.SandboxType
	}

	// BuildOptions describes an image build.
	BuildOptions struct {
		// ContextDir is the build context directory.
		ContextDir string
		// Dockerfile is the path to the Dockerfile, relative to ContextDir.
		// Empty means the engine default (ContextDir/Dockerfile).
		Dockerfile string
		// Tag is the image tag.
		Tag string
		// BuildArgs are build-time variables.
		BuildArgs map[string]string
		// NoCache disables the build cache.
		NoCache bool
	}

	// RunOptions describes a container run.
	RunOptions struct {
		Image   string
		Command []string
		// WorkDir is the working directory inside the container.
		WorkDir string
		Env     map[string]string
		Volumes []VolumeMount
		Ports   []PortMapping
		// Remove automatically removes the container after exit.
		Remove bool
		// Name is the container name, used later to kill it.
		Name string
		// User is passed to --user, typically "uid:gid".
		User        string
		Interactive bool
		TTY         bool
	}

	// Image is one row of the engine's image list.
	Image struct {
		Repository string
		Tag        string
		ID         string
	}

	// PortProtocol represents a network transport protocol for port mappings.
	// The zero value ("") is valid and means "default to tcp".
	PortProtocol string

	// InvalidPortProtocolError is returned when a PortProtocol is not a recognized protocol.
	InvalidPortProtocolError struct {
		Value PortProtocol
	}

	// SELinuxLabel represents an SELinux volume labeling option.
	SELinuxLabel string

	// NetworkPort is a TCP/UDP port number. Valid ports are non-zero.
	NetworkPort uint16

	// VolumeMount is a bind mount from the host into the container.
	VolumeMount struct {
		HostPath      string
		ContainerPath string
		ReadOnly      bool
		SELinux       SELinuxLabel
	}

	// PortMapping publishes ContainerPort on HostPort.
	PortMapping struct {
		HostPort      NetworkPort
		ContainerPort NetworkPort
		Protocol      PortProtocol
	}
)

// Error implements the error interface.
func (e *InvalidPortProtocolError) Error() string {
	return fmt.Sprintf("invalid port protocol %q (valid: tcp, udp)", e.Value)
}

// Unwrap returns ErrInvalidPortProtocol so callers can use errors.Is for programmatic detection.
func (e *InvalidPortProtocolError) Unwrap() error { return ErrInvalidPortProtocol }

// Validate returns nil if the PortProtocol is empty, tcp or udp.
func (p PortProtocol) Validate() error {
	switch p {
	case "", PortProtocolTCP, PortProtocolUDP:
		return nil
	default:
		return &InvalidPortProtocolError{Value: p}
	}
}

// String returns the decimal port number.
func (p NetworkPort) String() string { return strconv.Itoa(int(p)) }

// Validate returns an error for a mount with an empty path or an unknown label.
func (v VolumeMount) Validate() error {
	switch {
	case strings.TrimSpace(v.HostPath) == "":
		return fmt.Errorf("%w: empty host path", ErrInvalidVolumeMount)
	case strings.TrimSpace(v.ContainerPath) == "":
		return fmt.Errorf("%w: empty container path", ErrInvalidVolumeMount)
	}
	switch v.SELinux {
	case SELinuxLabelNone, SELinuxLabelShared, SELinuxLabelPrivate:
		return nil
	default:
		return fmt.Errorf("%w: unknown SELinux label %q", ErrInvalidVolumeMount, string(v.SELinux))
	}
}

// String returns the mount in host:container[:options] form.
func (v VolumeMount) String() string {
	return FormatVolumeMount(v)
}

// Validate returns an error when either port is zero or the protocol is unknown.
func (p PortMapping) Validate() error {
	if p.HostPort == 0 || p.ContainerPort == 0 {
		return fmt.Errorf("%w: ports must be in 1-65535, got %d:%d", ErrInvalidPortMapping, p.HostPort, p.ContainerPort)
	}
	return p.Protocol.Validate()
}

// String returns the mapping in the -p flag format.
func (p PortMapping) String() string {
	return FormatPortMapping(p)
}

// Validate returns an error when the context directory or tag is missing.
func (o BuildOptions) Validate() error {
	if o.ContextDir == "" {
		return fmt.Errorf("%w: no build context directory", ErrInvalidBuildOptions)
	}
	if o.Tag == "" {
		return fmt.Errorf("%w: no image tag", ErrInvalidBuildOptions)
	}
	return nil
}

// Matches reports whether ref names this image. ref may be a bare repository
// or repository:tag. Podman's implicit localhost/ prefix is ignored.
func (i Image) Matches(ref string) bool {
	for _, repo := range []string{i.Repository, strings.TrimPrefix(i.Repository, "localhost/")} {
		if repo == ref || repo+":"+i.Tag == ref {
			return true
		}
	}
	return false
}

// --- Option Functions ---

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithBinaryPath overrides the engine binary found on PATH.
func WithBinaryPath(path string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.binaryPath = path
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithVolumeFormatter sets a custom volume formatter function.
func WithVolumeFormatter(fn VolumeFormatFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.volumeFormatter = fn
	}
}

// WithRunArgsTransformer sets a custom run args transformer.
func WithRunArgsTransformer(fn RunArgsTransformer) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.runArgsTransformer = fn
	}
}

// WithSandbox sets the application sandbox the engine CLI is spawned from.
// Commands leave a sandbox through its host spawn helper.
func WithSandbox(st platform.SandboxType) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.sandbox = st
	}
}

// --- Constructor ---

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:         binaryPath,
		execCommand:        exec.CommandContext,
		volumeFormatter:    FormatVolumeMount,
		runArgsTransformer: func(args []string) []string { return args },
		sandbox:            platform.DetectSandbox(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the engine name used in error messages.
func (e *BaseCLIEngine) Name() string {
	return e.name
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// --- Argument Builders ---

// BuildArgs constructs arguments for a container build command.
//
// Generated command: <binary> build [options] <context>
func (e *BaseCLIEngine) BuildArgs(opts BuildOptions) []string {
	args := []string{"build"}

	if opts.Dockerfile != "" {
		dockerfilePath := opts.Dockerfile
		if !filepath.IsAbs(dockerfilePath) && opts.ContextDir != "" {
			dockerfilePath = filepath.Join(opts.ContextDir, dockerfilePath)
		}
		args = append(args, "-f", dockerfilePath)
	}

	if opts.Tag != "" {
		args = append(args, "-t", opts.Tag)
	}

	if opts.NoCache {
		args = append(args, "--no-cache")
	}

	keys := make([]string, 0, len(opts.BuildArgs))
	for k := range opts.BuildArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--build-arg", k+"="+opts.BuildArgs[k])
	}

	return append(args, opts.ContextDir)
}

// RunArgs constructs arguments for a container run command.
//
// Generated command: <binary> run [options] <image> [command...]
func (e *BaseCLIEngine) RunArgs(opts RunOptions) []string {
	args := []string{"run"}

	if opts.Remove {
		args = append(args, "--rm")
	}

	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}

	if opts.User != "" {
		args = append(args, "--user", opts.User)
	}

	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}

	if opts.Interactive {
		args = append(args, "-i")
	}

	if opts.TTY {
		args = append(args, "-t")
	}

	envKeys := make([]string, 0, len(opts.Env))
	for k := range opts.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	for _, k := range envKeys {
		args = append(args, "-e", k+"="+opts.Env[k])
	}

	for _, v := range opts.Volumes {
		args = append(args, "-v", e.volumeFormatter(v))
	}

	for _, p := range opts.Ports {
		args = append(args, "-p", FormatPortMapping(p))
	}

	args = append(args, opts.Image)
	args = append(args, opts.Command...)

	return e.runArgsTransformer(args)
}

// RemoveImageArgs constructs arguments for an image remove command.
func (e *BaseCLIEngine) RemoveImageArgs(image string, force bool) []string {
	args := []string{"rmi"}
	if force {
		args = append(args, "-f")
	}
	return append(args, image)
}

// KillArgs constructs arguments for a container kill command.
func (e *BaseCLIEngine) KillArgs(name string) []string {
	return []string{"kill", name}
}

// --- Command Execution ---

// RunCommandCombined executes a command and returns combined stdout/stderr.
func (e *BaseCLIEngine) RunCommandCombined(ctx context.Context, args ...string) ([]byte, error) {
	cmd := e.CreateCommand(ctx, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}
	return out, nil
}

// RunCommandWithOutput executes a command with stdout captured to a buffer.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}

	return out.String(), nil
}

// CreateCommand creates an exec.Cmd for the given arguments.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	name, args := platform.HostCommand(e.sandbox, e.binaryPath, args...)
	return e.execCommand(ctx, name, args...)
}

// lookupBinary finds name on PATH. Inside a sandbox the bare name is kept
// so the host resolves it.
func lookupBinary(name string) string {
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	if platform.DetectSandbox() != platform.SandboxNone {
		return name
	}
	return ""
}

// --- Maintenance Operations ---

// Images lists local images by running "<binary> images" and reading the
// repository, tag and ID columns of every row after the header. Transient
// engine failures are retried.
func (e *BaseCLIEngine) Images(ctx context.Context) ([]Image, error) {
	var out string
	err := retryTransient(ctx, imageListAttempts, imageListBackoff, IsTransientError, func() error {
		var runErr error
		out, runErr = e.RunCommandWithOutput(ctx, "images")
		return runErr
	})
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("list container images").
			WithResource(e.name).
			WithSuggestion("Check that the " + e.name + " daemon is running (try: " + e.name + " info)").
			Wrap(err).
			BuildError()
	}
	return ParseImageList(out), nil
}

// ImageExists reports whether image appears in the local image list.
func (e *BaseCLIEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	images, err := e.Images(ctx)
	if err != nil {
		return false, err
	}
	for _, img := range images {
		if img.Matches(image) {
			return true, nil
		}
	}
	return false, nil
}

// RemoveImage removes a local image.
func (e *BaseCLIEngine) RemoveImage(ctx context.Context, image string, force bool) error {
	if out, err := e.RunCommandCombined(ctx, e.RemoveImageArgs(image, force)...); err != nil {
		return issue.NewErrorContext().
			WithOperation("remove container image").
			WithResource(image).
			WithSuggestion("Stop containers still using the image, or retry with force").
			Wrap(fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))).
			BuildError()
	}
	return nil
}

// Kill forcibly stops the named container.
func (e *BaseCLIEngine) Kill(ctx context.Context, name string) error {
	if out, err := e.RunCommandCombined(ctx, e.KillArgs(name)...); err != nil {
		return fmt.Errorf("kill container %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ParseImageList parses the tabular output of "<engine> images". The first
// line is a header and is skipped.
func ParseImageList(out string) []Image {
	var images []Image
	sc := bufio.NewScanner(strings.NewReader(out))
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		img := Image{Repository: fields[0]}
		if len(fields) > 1 {
			img.Tag = fields[1]
		}
		if len(fields) > 2 {
			img.ID = fields[2]
		}
		images = append(images, img)
	}
	return images
}

// --- Formatting ---

// FormatVolumeMount formats a volume mount for the -v flag.
func FormatVolumeMount(mount VolumeMount) string {
	result := mount.HostPath + ":" + mount.ContainerPath

	var options []string
	if mount.ReadOnly {
		options = append(options, "ro")
	}
	if mount.SELinux != SELinuxLabelNone {
		options = append(options, string(mount.SELinux))
	}
	if len(options) > 0 {
		result += ":" + strings.Join(options, ",")
	}
	return result
}

// FormatPortMapping formats a port mapping as a string for -p flag.
func FormatPortMapping(mapping PortMapping) string {
	result := fmt.Sprintf("%d:%d", mapping.HostPort, mapping.ContainerPort)
	if mapping.Protocol != "" && mapping.Protocol != PortProtocolTCP {
		result += "/" + string(mapping.Protocol)
	}
	return result
}

// ParsePortMapping parses a port mapping string in "hostPort:containerPort[/protocol]" format.
func ParsePortMapping(portStr string) (PortMapping, error) {
	mapping := PortMapping{}

	hostPart, containerPart, ok := strings.Cut(portStr, ":")
	if !ok {
		return mapping, fmt.Errorf("%w: %q must contain ':' separator", ErrInvalidPortMapping, portStr)
	}

	hostPort, err := strconv.ParseUint(hostPart, 10, 16)
	if err != nil {
		return mapping, fmt.Errorf("%w: host port %q: %w", ErrInvalidPortMapping, hostPart, err)
	}
	mapping.HostPort = NetworkPort(hostPort)

	portPart, protocol, _ := strings.Cut(containerPart, "/")
	containerPort, err := strconv.ParseUint(portPart, 10, 16)
	if err != nil {
		return mapping, fmt.Errorf("%w: container port %q: %w", ErrInvalidPortMapping, portPart, err)
	}
	mapping.ContainerPort = NetworkPort(containerPort)
	mapping.Protocol = PortProtocol(protocol)

	if err := mapping.Validate(); err != nil {
		return mapping, err
	}
	return mapping, nil
}

// ParseNetworkPort parses a port number in 1-65535.
func ParseNetworkPort(s string) (NetworkPort, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: port %q must be in 1-65535", ErrInvalidPortMapping, s)
	}
	return NetworkPort(n), nil
}
