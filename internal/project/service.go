// SPDX-License-Identifier: MPL-2.0

package project

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rongoro/dev/internal/render"
	"github.com/rongoro/dev/internal/runtime"
	"github.com/rongoro/dev/pkg/cfgtree"
)

// BuildCommand is the command run to provision a runtime backed by a project.
const BuildCommand = "build"

type (
	// RunOptions tunes a single command run.
	RunOptions struct {
		// Verbose, when non-nil, overrides the runtime's verbose setting.
		Verbose *bool
	}

	// Service runs project commands through a runtime dispatcher. It
	// provisions runtimes that are backed by projects of the same tree by
	// running their build command.
	Service struct {
		dispatcher *runtime.Dispatcher
	}
)

// NewService creates a service dispatching to the backends in registry.
func NewService(registry *runtime.Registry) *Service {
	s := &Service{}
	s.dispatcher = runtime.NewDispatcher(registry, s)
	return s
}

// Run resolves the project raw relative to dir and runs its command named
// command. All lookup and rendering happens before anything is executed.
func (s *Service) Run(ctx context.Context, dir, raw, command string, opts RunOptions) ([]string, error) {
	p, err := Lookup(dir, raw)
	if err != nil {
		return nil, err
	}
	tmpl, err := p.Command(command)
	if err != nil {
		return nil, err
	}

	cfg, vars, err := p.RenderedRuntime()
	if err != nil {
		return nil, err
	}
	line, err := render.String(tmpl, vars)
	if err != nil {
		return nil, fmt.Errorf("render command %q of %s: %w", command, p.Path, err)
	}

	if opts.Verbose != nil {
		cfg.Set(runtime.KeyVerbose, cfgtree.Bool(*opts.Verbose))
	}
	if extra, ok := extraRuntimeConfig(p.Config, command); ok {
		cfg.Set(runtime.KeyExtraRuntimeConfig, extra)
	}

	argv, err := runtime.SplitCommand(line)
	if err != nil {
		return nil, fmt.Errorf("command %q of %s: %w", command, p.Path, err)
	}

	slog.Debug("running project command", "project", p.Path.String(), "command", command, "argv", argv)
	return s.dispatcher.Run(ctx, p.Path.Root, cfg, argv)
}

// BuildProject runs the build command of project. It implements
// runtime.ProjectBuilder; project is resolved relative to root.
func (s *Service) BuildProject(ctx context.Context, root, project string) error {
	_, err := s.Run(ctx, root, project, BuildCommand, RunOptions{})
	return err
}

// Setup provisions the runtime of the project raw, for example by building
// its container image.
func (s *Service) Setup(ctx context.Context, dir, raw string) error {
	p, err := Lookup(dir, raw)
	if err != nil {
		return err
	}
	cfg, _, err := p.RenderedRuntime()
	if err != nil {
		return err
	}
	return s.dispatcher.Setup(ctx, cfg)
}

// extraRuntimeConfig returns a copy of the per-command runtime settings
// declared under commands_runtime_config.
func extraRuntimeConfig(cfg *cfgtree.Map, command string) (*cfgtree.Map, bool) {
	all, ok := cfg.GetMap(KeyCommandsRuntimeConfig)
	if !ok {
		return nil, false
	}
	extra, ok := all.GetMap(command)
	if !ok {
		return nil, false
	}
	return extra.Clone(), true
}
