// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"

	"github.com/rongoro/dev/internal/config"
	"github.com/rongoro/dev/internal/project"
	"github.com/rongoro/dev/internal/runtime"
)

type (
	// RegistryFactory builds the runtime backends for one invocation. echo
	// receives the live output of verbose runs.
	RegistryFactory func(cfg *config.Config, echo io.Writer) *runtime.Registry

	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every command handler receives the App and
	// reaches configuration and backends through it.
	App struct {
		Config   config.Provider
		Registry RegistryFactory
		stdout   io.Writer
		stderr   io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config   config.Provider
		Registry RegistryFactory
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// globalFlags holds the persistent flags of the root command.
	globalFlags struct {
		tree       string
		configFile string
		engine     string
		verbose    bool
	}

	// session is the state resolved once per invocation before a command
	// runs.
	session struct {
		app   *App
		flags globalFlags
		cfg   *config.Config
		// cfgPath is the tool configuration file that was read, if any.
		cfgPath string
	}
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:   deps.Config,
		Registry: deps.Registry,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Registry == nil {
		app.Registry = defaultRegistry
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

func defaultRegistry(cfg *config.Config, echo io.Writer) *runtime.Registry {
	return runtime.BuildRegistry(runtime.BuildRegistryOptions{Config: cfg, Echo: echo})
}

// load resolves the tool configuration and installs the logger.
func (s *session) load(ctx context.Context) error {
	cfg, path, err := s.app.Config.LoadWithPath(ctx, config.LoadOptions{ConfigFilePath: s.flags.configFile})
	if err != nil {
		return err
	}
	if s.flags.engine != "" {
		engine := config.ContainerEngine(s.flags.engine)
		if err := engine.Validate(); err != nil {
			return wrapError(err, "select container engine", "--engine")
		}
		cfg.ContainerEngine = engine
	}
	s.cfg, s.cfgPath = cfg, path

	level := cfg.Log.Level.String()
	if s.flags.verbose {
		level = string(config.LogLevelDebug)
	}
	slog.SetDefault(newLogger(s.app.stderr, level))
	return nil
}

// dir returns the directory project paths are resolved against.
func (s *session) dir() (string, error) {
	if s.flags.tree != "" {
		return s.flags.tree, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return wd, nil
}

// registry builds the backends, echoing live output to out.
func (s *session) registry(out io.Writer) *runtime.Registry {
	cfg := s.cfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return s.app.Registry(cfg, out)
}

// service builds a project service over a fresh registry.
func (s *session) service(out io.Writer) *project.Service {
	return project.NewService(s.registry(out))
}

// newLogger returns a slog logger backed by a charmbracelet/log handler.
// Unknown levels fall back to info.
func newLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:  lvl,
		Prefix: "dev",
	})
	return slog.New(handler)
}
