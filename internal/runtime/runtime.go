// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rongoro/dev/pkg/cfgtree"
)

// Provider keys of the built-in backends.
const (
	ProviderLocal     = "local"
	ProviderDocker    = "docker"
	ProviderPodman    = "podman"
	// ProviderContainer uses the engine chosen in the tool configuration.
	ProviderContainer = "container"
)

// Keys read from a rendered runtime configuration.
const (
	KeyProvider           = "provider"
	KeyProject            = "project"
	KeyCwd                = "cwd"
	KeyVerbose            = "verbose"
	KeyEnv                = "env"
	KeyTTY                = "tty"
	KeyImageName          = "image_name"
	KeyWorkingDir         = "workingdir"
	KeyContainerName      = "container_name"
	KeyExtraRuntimeConfig = "extra_runtime_config"
	KeyExposePorts        = "expose_ports"
	KeyDockerfile         = "dockerfile"
	KeyBuildArgs          = "build_args"
	KeyNoCache            = "no_cache"
)

// ErrUnknownProvider is the sentinel error wrapped by UnknownProviderError.
var ErrUnknownProvider = errors.New("unknown runtime provider")

type (
	// Backend executes commands for one provider.
	Backend interface {
		// Name returns the provider key the backend is registered under.
		Name() string
		// IsReady reports whether the runtime can run commands without setup.
		IsReady(ctx context.Context, cfg *cfgtree.Map) (bool, error)
		// Setup provisions whatever the runtime needs (e.g. builds its image).
		Setup(ctx context.Context, cfg *cfgtree.Map) error
		// RunCommand runs argv and returns the trimmed output lines.
		RunCommand(ctx context.Context, cfg *cfgtree.Map, argv []string) ([]string, error)
	}

	// Registry maps provider keys to backends. It is filled once at startup
	// and only read afterwards.
	Registry struct {
		backends map[string]Backend
	}

	// UnknownProviderError is returned when a runtime has no provider key or
	// names one that is not registered.
	UnknownProviderError struct {
		// Provider is empty when the key is missing.
		Provider string
		Known    []string
	}
)

// Error implements the error interface.
func (e *UnknownProviderError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("runtime config has no %q key (known providers: %s)", KeyProvider, strings.Join(e.Known, ", "))
	}
	return fmt.Sprintf("unknown runtime provider %q (known providers: %s)", e.Provider, strings.Join(e.Known, ", "))
}

// Unwrap returns ErrUnknownProvider so callers can use errors.Is for programmatic detection.
func (e *UnknownProviderError) Unwrap() error { return ErrUnknownProvider }

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds a backend under its Name, replacing any previous one.
func (r *Registry) Register(b Backend) {
	r.backends[b.Name()] = b
}

// Get returns the backend registered under provider.
func (r *Registry) Get(provider string) (Backend, error) {
	b, ok := r.backends[provider]
	if !ok || provider == "" {
		return nil, &UnknownProviderError{Provider: provider, Known: r.Providers()}
	}
	return b, nil
}

// For returns the backend selected by cfg's provider key.
func (r *Registry) For(cfg *cfgtree.Map) (Backend, error) {
	provider, ok := cfg.GetString(KeyProvider)
	if !ok {
		return nil, &UnknownProviderError{Known: r.Providers()}
	}
	return r.Get(provider)
}

// Providers returns the registered provider keys in sorted order.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
