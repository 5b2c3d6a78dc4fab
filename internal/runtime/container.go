// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rongoro/dev/internal/container"
	"github.com/rongoro/dev/pkg/cfgtree"
)

const (
	// DefaultContainerName names containers when neither the runtime nor the
	// tool configuration sets one.
	DefaultContainerName = "dev-tree-container"
	// DefaultWorkingDir is where the project is mounted inside the container.
	DefaultWorkingDir = "/project"
	// DefaultKillTimeout bounds the kill issued after an interrupt.
	DefaultKillTimeout = 10 * time.Second
)

var (
	// ErrMissingImageName is the sentinel error wrapped by MissingImageNameError.
	ErrMissingImageName = errors.New("runtime has no image_name")
	// ErrInterrupted is the sentinel error wrapped by InterruptedError.
	ErrInterrupted = errors.New("interrupted")
	// ErrSetupFailed is the sentinel error wrapped by SetupFailedError.
	ErrSetupFailed = errors.New("runtime setup failed")
	// ErrInvalidExposePort is returned for unusable expose_ports entries.
	ErrInvalidExposePort = errors.New("invalid expose_ports entry")

	terminateSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
)

type (
	// MissingImageNameError is returned when a container runtime has no
	// image_name key.
	MissingImageNameError struct {
		Provider string
	}

	// InterruptedError is returned when a terminating signal arrived while a
	// container was running. Err is the failure of the run itself, if any.
	InterruptedError struct {
		Signal    os.Signal
		Container string
		Err       error
	}

	// SetupFailedError is returned when an image build exits successfully but
	// the image cannot be found afterwards.
	SetupFailedError struct {
		Image  string
		Output []string
	}

	// ContainerBackend runs commands inside containers through a docker or
	// podman CLI.
	ContainerBackend struct {
		provider   string
		engineType container.EngineType
		engineOpts []container.BaseCLIEngineOption

		strict     bool
		engineOnce sync.Once
		engine     container.Engine
		engineErr  error

		local       *LocalBackend
		findPorts   PortFinder
		notify      func(chan<- os.Signal, ...os.Signal)
		stopNotify  func(chan<- os.Signal)
		user        string
		defaultName string
		defaultDir  string
		killTimeout time.Duration
	}

	// ContainerOption configures a ContainerBackend.
	ContainerOption func(*ContainerBackend)
)

// Error implements the error interface.
func (e *MissingImageNameError) Error() string {
	return fmt.Sprintf("%s runtime config has no %q key", e.Provider, KeyImageName)
}

// Unwrap returns ErrMissingImageName so callers can use errors.Is for programmatic detection.
func (e *MissingImageNameError) Unwrap() error { return ErrMissingImageName }

// Error implements the error interface.
func (e *InterruptedError) Error() string {
	msg := fmt.Sprintf("interrupted by %v, killed container %s", e.Signal, e.Container)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrInterrupted and the run's own error.
func (e *InterruptedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInterrupted}
	}
	return []error{ErrInterrupted, e.Err}
}

// Error implements the error interface.
func (e *SetupFailedError) Error() string {
	last := ""
	if len(e.Output) > 0 {
		last = e.Output[len(e.Output)-1]
	}
	return fmt.Sprintf("image %s not found after build (last output line: %q)", e.Image, last)
}

// Unwrap returns ErrSetupFailed so callers can use errors.Is for programmatic detection.
func (e *SetupFailedError) Unwrap() error { return ErrSetupFailed }

// WithEngine sets the engine directly instead of detecting it on first use.
func WithEngine(e container.Engine) ContainerOption {
	return func(b *ContainerBackend) {
		b.engineOnce.Do(func() { b.engine = e })
	}
}

// WithStrictEngine makes the backend use exactly its engine type, without
// falling back to the other engine when that binary is unavailable.
func WithStrictEngine() ContainerOption {
	return func(b *ContainerBackend) {
		b.strict = true
	}
}

// WithEngineOptions passes options to the engine created on first use.
func WithEngineOptions(opts ...container.BaseCLIEngineOption) ContainerOption {
	return func(b *ContainerBackend) {
		b.engineOpts = append(b.engineOpts, opts...)
	}
}

// WithLocalBackend sets the backend used to stream engine output.
func WithLocalBackend(l *LocalBackend) ContainerOption {
	return func(b *ContainerBackend) {
		b.local = l
	}
}

// WithPortFinder replaces FindOpenPorts.
func WithPortFinder(f PortFinder) ContainerOption {
	return func(b *ContainerBackend) {
		b.findPorts = f
	}
}

// WithSignalNotify replaces signal.Notify and signal.Stop.
func WithSignalNotify(notify func(chan<- os.Signal, ...os.Signal), stop func(chan<- os.Signal)) ContainerOption {
	return func(b *ContainerBackend) {
		b.notify = notify
		b.stopNotify = stop
	}
}

// WithUser sets the --user value (default: the invoking uid:gid).
func WithUser(user string) ContainerOption {
	return func(b *ContainerBackend) {
		b.user = user
	}
}

// WithContainerDefaults sets the container name and working directory used
// when the runtime config does not set them. Empty values keep the defaults.
func WithContainerDefaults(name, workingDir string) ContainerOption {
	return func(b *ContainerBackend) {
		if name != "" {
			b.defaultName = name
		}
		if workingDir != "" {
			b.defaultDir = workingDir
		}
	}
}

// WithKillTimeout bounds the kill issued after an interrupt.
func WithKillTimeout(d time.Duration) ContainerOption {
	return func(b *ContainerBackend) {
		if d > 0 {
			b.killTimeout = d
		}
	}
}

// NewContainerBackend creates the backend registered under provider, which
// drives the given engine type.
func NewContainerBackend(provider string, engineType container.EngineType, opts ...ContainerOption) *ContainerBackend {
	b := &ContainerBackend{
		provider:    provider,
		engineType:  engineType,
		findPorts:   NewPortFinder(DefaultPortProbeTimeout),
		notify:      signal.Notify,
		stopNotify:  signal.Stop,
		user:        currentUser(),
		defaultName: DefaultContainerName,
		defaultDir:  DefaultWorkingDir,
		killTimeout: DefaultKillTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.local == nil {
		b.local = NewLocalBackend()
	}
	return b
}

// Name implements Backend.
func (b *ContainerBackend) Name() string { return b.provider }

// Engine returns the engine, detecting it on first use. Unless the backend
// is strict, the preferred engine falls back to the other one when its
// binary is unavailable.
func (b *ContainerBackend) Engine(ctx context.Context) (container.Engine, error) {
	b.engineOnce.Do(func() {
		if b.strict {
			b.engine, b.engineErr = container.NewEngineStrict(ctx, b.engineType, b.engineOpts...)
			return
		}
		b.engine, b.engineErr = container.NewEngine(ctx, b.engineType, b.engineOpts...)
		if b.engineErr == nil && b.engine.Name() != string(b.engineType) {
			slog.Warn("container engine not available, using fallback",
				"preferred", b.engineType, "engine", b.engine.Name())
		}
	})
	return b.engine, b.engineErr
}

// IsReady implements Backend: the runtime is ready when its image exists.
func (b *ContainerBackend) IsReady(ctx context.Context, cfg *cfgtree.Map) (bool, error) {
	image, err := b.imageName(cfg)
	if err != nil {
		return false, err
	}
	eng, err := b.Engine(ctx)
	if err != nil {
		return false, err
	}
	return eng.ImageExists(ctx, image)
}

// Setup implements Backend by building image_name from the context at cwd,
// honoring the runtime's dockerfile, build_args and no_cache keys.
// The build succeeds when its last line reports the tag, or, for engines
// that do not print that line, when the image is listed afterwards.
func (b *ContainerBackend) Setup(ctx context.Context, cfg *cfgtree.Map) error {
	image, err := b.imageName(cfg)
	if err != nil {
		return err
	}
	eng, err := b.Engine(ctx)
	if err != nil {
		return err
	}

	cwd, _ := cfg.GetString(KeyCwd)
	opts := container.BuildOptions{ContextDir: cwd, Tag: image}
	opts.Dockerfile, _ = cfg.GetString(KeyDockerfile)
	opts.NoCache, _ = cfg.GetBool(KeyNoCache)
	if args, ok := cfg.GetMap(KeyBuildArgs); ok {
		opts.BuildArgs = envMap(args)
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	verbose, _ := cfg.GetBool(KeyVerbose)
	slog.Info("building runtime image", "engine", eng.Name(), "image", image, "context", cwd)
	lines, err := b.local.stream(eng.CreateCommand(ctx, eng.BuildArgs(opts)...), verbose)
	if err != nil {
		return err
	}

	if len(lines) > 0 && strings.HasPrefix(lines[len(lines)-1], "Successfully tagged "+image) {
		return nil
	}
	exists, err := eng.ImageExists(ctx, image)
	if err != nil {
		return err
	}
	if !exists {
		return &SetupFailedError{Image: image, Output: lines}
	}
	return nil
}

// RunCommand implements Backend. The runtime's cwd is mounted at its
// workingdir, requested ports are published on free host ports, and the
// container runs as the invoking user under a fixed name with the runtime's
// env. With tty set the container gets an interactive terminal, backed by a
// pty on the host side. If a terminating signal arrives during the run, the
// container is killed by name.
func (b *ContainerBackend) RunCommand(ctx context.Context, cfg *cfgtree.Map, argv []string) ([]string, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	image, err := b.imageName(cfg)
	if err != nil {
		return nil, err
	}
	eng, err := b.Engine(ctx)
	if err != nil {
		return nil, err
	}

	ports, err := b.portMappings(ctx, cfg)
	if err != nil {
		return nil, err
	}

	workDir := b.defaultDir
	if wd, ok := cfg.GetString(KeyWorkingDir); ok && wd != "" {
		workDir = wd
	}
	name := b.defaultName
	if n, ok := cfg.GetString(KeyContainerName); ok && n != "" {
		name = n
	}

	opts := container.RunOptions{
		Image:   image,
		Command: argv,
		WorkDir: workDir,
		Ports:   ports,
		Remove:  true,
		Name:    name,
		User:    b.user,
	}
	if cwd, ok := cfg.GetString(KeyCwd); ok && cwd != "" {
		opts.Volumes = []container.VolumeMount{{HostPath: cwd, ContainerPath: workDir}}
	}
	if env, ok := cfg.GetMap(KeyEnv); ok && env.Len() > 0 {
		opts.Env = envMap(env)
	}
	tty, _ := cfg.GetBool(KeyTTY)
	opts.Interactive, opts.TTY = tty, tty
	for _, p := range ports {
		slog.Info("publishing container port", "container_port", p.ContainerPort, "host_port", p.HostPort)
	}

	verbose, _ := cfg.GetBool(KeyVerbose)
	cmd := eng.CreateCommand(ctx, eng.RunArgs(opts)...)

	var lines []string
	sig := b.withKillOnSignal(ctx, eng, name, func() {
		if tty {
			lines, err = b.local.runPTY(cmd, verbose)
			return
		}
		lines, err = b.local.stream(cmd, verbose)
	})
	if sig != nil {
		return nil, &InterruptedError{Signal: sig, Container: name, Err: err}
	}
	return lines, err
}

// withKillOnSignal runs fn with a handler for terminating signals installed.
// If a signal arrives, the named container is killed before the signal is
// returned. The handler is removed when fn returns.
func (b *ContainerBackend) withKillOnSignal(ctx context.Context, eng container.Engine, name string, fn func()) os.Signal {
	sigCh := make(chan os.Signal, 1)
	b.notify(sigCh, terminateSignals...)
	defer b.stopNotify(sigCh)

	done := make(chan struct{})
	received := make(chan os.Signal, 1)
	go func() {
		select {
		case sig := <-sigCh:
			slog.Warn("received signal, killing container", "signal", sig, "container", name)
			killCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.killTimeout)
			defer cancel()
			if err := eng.Kill(killCtx, name); err != nil {
				slog.Warn("failed to kill container", "container", name, "error", err)
			}
			received <- sig
		case <-done:
			received <- nil
		}
	}()

	fn()
	close(done)
	return <-received
}

// Images lists the engine's local images.
func (b *ContainerBackend) Images(ctx context.Context) ([]container.Image, error) {
	eng, err := b.Engine(ctx)
	if err != nil {
		return nil, err
	}
	return eng.Images(ctx)
}

// RemoveImage removes a local image.
func (b *ContainerBackend) RemoveImage(ctx context.Context, image string) error {
	eng, err := b.Engine(ctx)
	if err != nil {
		return err
	}
	return eng.RemoveImage(ctx, image, false)
}

func (b *ContainerBackend) imageName(cfg *cfgtree.Map) (string, error) {
	image, ok := cfg.GetString(KeyImageName)
	if !ok || image == "" {
		return "", &MissingImageNameError{Provider: b.provider}
	}
	return image, nil
}

// portMappings publishes every extra_runtime_config.expose_ports entry.
// An entry of the form "host:container[/proto]" is published as given.
// Otherwise the search for a free host port of the entry's protocol starts
// at the container port itself and skips host ports already claimed by this
// run. Privileged host ports the user cannot bind are skipped as well.
func (b *ContainerBackend) portMappings(ctx context.Context, cfg *cfgtree.Map) ([]container.PortMapping, error) {
	extra, ok := cfg.GetMap(KeyExtraRuntimeConfig)
	if !ok {
		return nil, nil
	}
	raw, ok := extra.Get(KeyExposePorts)
	if !ok {
		return nil, nil
	}
	list, ok := raw.(cfgtree.List)
	if !ok {
		list = cfgtree.List{raw}
	}

	claimed := make(map[string]bool)
	mappings := make([]container.PortMapping, 0, len(list))
	for _, item := range list {
		mapping, pinned, err := parseExposePort(item)
		if err != nil {
			return nil, err
		}
		network := string(container.PortProtocolTCP)
		if mapping.Protocol == container.PortProtocolUDP {
			network = string(container.PortProtocolUDP)
		}

		if pinned {
			claimed[network+"/"+mapping.HostPort.String()] = true
			mappings = append(mappings, mapping)
			continue
		}

		start := int(mapping.ContainerPort)
		for {
			found, err := b.findPorts(ctx, network, start, 1)
			if err != nil {
				return nil, err
			}
			key := network + "/" + strconv.Itoa(found[0])
			if !claimed[key] {
				claimed[key] = true
				mapping.HostPort = container.NetworkPort(found[0])
				mappings = append(mappings, mapping)
				break
			}
			start = found[0] + 1
			if start > MaxPort {
				return nil, &PortRangeExhaustedError{Start: int(mapping.ContainerPort), Count: 1}
			}
		}
	}
	return mappings, nil
}

// parseExposePort accepts 8080, "8080", "8080/udp" or a pinned
// "9000:8080[/udp]". Only the pinned form sets HostPort.
func parseExposePort(v cfgtree.Value) (mapping container.PortMapping, pinned bool, err error) {
	var text string
	switch t := v.(type) {
	case cfgtree.String:
		text = strings.TrimSpace(string(t))
	case cfgtree.Number:
		text = string(t)
	default:
		return mapping, false, fmt.Errorf("%w: %s value", ErrInvalidExposePort, v.Kind())
	}

	if strings.Contains(text, ":") {
		mapping, err = container.ParsePortMapping(text)
		if err != nil {
			return mapping, false, fmt.Errorf("%w: %w", ErrInvalidExposePort, err)
		}
		return mapping, true, nil
	}

	portText, proto, _ := strings.Cut(text, "/")
	port, err := container.ParseNetworkPort(portText)
	if err != nil {
		return mapping, false, fmt.Errorf("%w: %w", ErrInvalidExposePort, err)
	}
	mapping = container.PortMapping{ContainerPort: port, Protocol: container.PortProtocol(proto)}
	if err := mapping.Protocol.Validate(); err != nil {
		return mapping, false, fmt.Errorf("%w: %w", ErrInvalidExposePort, err)
	}
	return mapping, false, nil
}

// envMap returns the string values of env. Other values are skipped with a
// warning, as for the local backend.
func envMap(env *cfgtree.Map) map[string]string {
	out := make(map[string]string, env.Len())
	for _, kv := range envList(env) {
		k, v, _ := strings.Cut(kv, "=")
		out[k] = v
	}
	return out
}

func currentUser() string {
	uid, gid := os.Getuid(), os.Getgid()
	if uid < 0 || gid < 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", uid, gid)
}
