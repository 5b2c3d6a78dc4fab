// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rongoro/dev/pkg/cfgtree"
)

type (
	// ProjectBuilder runs the build command of a project. The dispatcher uses
	// it to provision runtimes that are backed by a project of the tree.
	ProjectBuilder interface {
		BuildProject(ctx context.Context, root, project string) error
	}

	// Dispatcher selects a backend for a rendered runtime configuration and
	// runs commands through it.
	Dispatcher struct {
		registry *Registry
		builder  ProjectBuilder
	}
)

// NewDispatcher creates a dispatcher over registry. builder may be nil, in
// which case runtimes that are not ready are used as is.
func NewDispatcher(registry *Registry, builder ProjectBuilder) *Dispatcher {
	return &Dispatcher{registry: registry, builder: builder}
}

// Run executes argv in the runtime described by cfg. When the backend is not
// ready and cfg names a backing project, that project is built first.
func (d *Dispatcher) Run(ctx context.Context, root string, cfg *cfgtree.Map, argv []string) ([]string, error) {
	backend, err := d.registry.For(cfg)
	if err != nil {
		return nil, err
	}

	ready, err := backend.IsReady(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if !ready {
		if project, ok := cfg.GetString(KeyProject); ok && project != "" && d.builder != nil {
			slog.Info("runtime not ready, building backing project", "provider", backend.Name(), "project", project)
			if err := d.builder.BuildProject(ctx, root, project); err != nil {
				return nil, fmt.Errorf("build runtime project %s: %w", project, err)
			}
		} else {
			slog.Debug("runtime not ready and has no backing project", "provider", backend.Name())
		}
	}

	return backend.RunCommand(ctx, cfg, argv)
}

// Setup provisions the runtime described by cfg.
func (d *Dispatcher) Setup(ctx context.Context, cfg *cfgtree.Map) error {
	backend, err := d.registry.For(cfg)
	if err != nil {
		return err
	}
	return backend.Setup(ctx, cfg)
}
