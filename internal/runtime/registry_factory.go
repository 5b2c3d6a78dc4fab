// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"io"
	"slices"

	"github.com/rongoro/dev/internal/config"
	"github.com/rongoro/dev/internal/container"
)

// BuildRegistryOptions configures runtime registry construction.
type BuildRegistryOptions struct {
	// Config controls container defaults and the engine behind the
	// "container" provider. Nil means config.DefaultConfig().
	Config *config.Config
	// Echo receives the output of verbose runs. Nil means os.Stdout.
	Echo io.Writer
	// EngineOptions are passed to every container engine.
	EngineOptions []container.BaseCLIEngineOption
}

// BuildRegistry creates the registry of built-in backends: local, docker,
// podman and container. The docker and podman providers use exactly that
// engine; container prefers the configured engine and falls back to the
// other one. Engines are detected lazily, so building the registry never
// runs an engine binary.
func BuildRegistry(opts BuildRegistryOptions) *Registry {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var localOpts []LocalOption
	if opts.Echo != nil {
		localOpts = append(localOpts, WithEcho(opts.Echo))
	}
	local := NewLocalBackend(localOpts...)

	common := []ContainerOption{
		WithLocalBackend(local),
		WithPortFinder(NewPortFinder(cfg.Container.PortProbeTimeout)),
		WithContainerDefaults(cfg.Container.Name, cfg.Container.WorkingDir),
		WithKillTimeout(cfg.Container.KillTimeout),
		WithEngineOptions(opts.EngineOptions...),
	}

	reg := NewRegistry()
	reg.Register(local)
	strict := append(slices.Clone(common), WithStrictEngine())
	reg.Register(NewContainerBackend(ProviderDocker, container.EngineTypeDocker, strict...))
	reg.Register(NewContainerBackend(ProviderPodman, container.EngineTypePodman, strict...))
	reg.Register(NewContainerBackend(ProviderContainer, container.EngineType(cfg.ContainerEngine), common...))
	return reg
}
