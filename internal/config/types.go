// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ContainerEnginePodman uses Podman as the container runtime.
	ContainerEnginePodman ContainerEngine = "podman"
	// ContainerEngineDocker uses Docker as the container runtime.
	ContainerEngineDocker ContainerEngine = "docker"

	// LogLevelDebug enables debug logging.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default log level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn only reports warnings and errors.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError only reports errors.
	LogLevelError LogLevel = "error"

	// DefaultContainerName is the name given to containers started by the
	// container backend when the runtime does not set container_name.
	DefaultContainerName = "dev-tree-container"
	// DefaultWorkingDir is the in-container mount point of the project when
	// the runtime does not set workingdir.
	DefaultWorkingDir = "/project"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ContainerEngine specifies which container runtime to prefer.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// LogLevel is the minimum level written by the CLI logger.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidConfigError collects every field error of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the tool configuration. It is independent from the tree
	// configuration found in DEV_ROOT.
	Config struct {
		// ContainerEngine is the engine used when a runtime's provider does
		// not name one explicitly.
		ContainerEngine ContainerEngine `json:"container_engine" mapstructure:"container_engine" toml:"container_engine"`
		// Container configures the container backend.
		Container ContainerConfig `json:"container" mapstructure:"container" toml:"container"`
		// Log configures CLI logging.
		Log LogConfig `json:"log" mapstructure:"log" toml:"log"`
	}

	// ContainerConfig configures the container backend.
	ContainerConfig struct {
		// Name is the default container name.
		Name string `json:"name" mapstructure:"name" toml:"name"`
		// WorkingDir is the default in-container project directory.
		WorkingDir string `json:"working_dir" mapstructure:"working_dir" toml:"working_dir"`
		// PortProbeTimeout bounds each listen attempt while searching for
		// free host ports.
		PortProbeTimeout time.Duration `json:"port_probe_timeout" mapstructure:"port_probe_timeout" toml:"port_probe_timeout"`
		// KillTimeout bounds the engine kill issued when a run is interrupted.
		KillTimeout time.Duration `json:"kill_timeout" mapstructure:"kill_timeout" toml:"kill_timeout"`
	}

	// LogConfig configures CLI logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level" toml:"level"`
	}
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		ContainerEngine: ContainerEngineDocker,
		Container: ContainerConfig{
			Name:             DefaultContainerName,
			WorkingDir:       DefaultWorkingDir,
			PortProbeTimeout: 500 * time.Millisecond,
			KillTimeout:      10 * time.Second,
		},
		Log: LogConfig{Level: LogLevelInfo},
	}
}

// Error implements the error interface.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: %s, %s)", e.Value, ContainerEngineDocker, ContainerEnginePodman)
}

// Unwrap returns ErrInvalidContainerEngine so callers can use errors.Is for programmatic detection.
func (e *InvalidContainerEngineError) Unwrap() error { return ErrInvalidContainerEngine }

// Validate returns nil if the engine is docker or podman.
func (c ContainerEngine) Validate() error {
	switch c {
	case ContainerEngineDocker, ContainerEnginePodman:
		return nil
	default:
		return &InvalidContainerEngineError{Value: c}
	}
}

// String returns the string representation of the ContainerEngine.
func (c ContainerEngine) String() string { return string(c) }

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel so callers can use errors.Is for programmatic detection.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Validate returns nil if the level is one of the known levels.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig followed by the field errors, so errors.Is
// matches both the sentinel and each field's own sentinel.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Validate checks every field and returns an *InvalidConfigError listing
// all problems, or nil.
func (c *Config) Validate() error {
	var errs []error
	if err := c.ContainerEngine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Log.Level.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Container.Name) == "" {
		errs = append(errs, errors.New("container.name must not be empty"))
	}
	if !strings.HasPrefix(c.Container.WorkingDir, "/") {
		errs = append(errs, fmt.Errorf("container.working_dir %q must be an absolute path", c.Container.WorkingDir))
	}
	if c.Container.PortProbeTimeout <= 0 {
		errs = append(errs, errors.New("container.port_probe_timeout must be positive"))
	}
	if c.Container.KillTimeout <= 0 {
		errs = append(errs, errors.New("container.kill_timeout must be positive"))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}
