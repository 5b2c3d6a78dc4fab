// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// AvailableTimeout bounds the version call that probes an engine.
const AvailableTimeout = 5 * time.Second

const (
	// EngineTypePodman selects the Podman CLI.
	EngineTypePodman EngineType = "podman"
	// EngineTypeDocker selects the Docker CLI.
	EngineTypeDocker EngineType = "docker"
)

var (
	// ErrEngineNotAvailable is the sentinel error wrapped by EngineNotAvailableError.
	ErrEngineNotAvailable = errors.New("container engine not available")

	// ErrInvalidEngineType is returned by NewEngine for an unknown engine type.
	ErrInvalidEngineType = errors.New("invalid container engine type")
)

type (
	// Engine is the set of container operations the runtime layer needs.
	Engine interface {
		// Name returns the engine name (docker or podman).
		Name() string
		// Available reports whether the engine binary exists and responds
		// within AvailableTimeout.
		Available(ctx context.Context) bool
		// BinaryPath returns the resolved path of the engine binary.
		BinaryPath() string

		// BuildArgs returns the arguments of a build invocation.
		BuildArgs(opts BuildOptions) []string
		// RunArgs returns the arguments of a run invocation.
		RunArgs(opts RunOptions) []string
		// CreateCommand creates an exec.Cmd running the engine binary with args.
		CreateCommand(ctx context.Context, args ...string) *exec.Cmd

		// Images lists the locally available images.
		Images(ctx context.Context) ([]Image, error)
		// ImageExists reports whether image is available locally.
		ImageExists(ctx context.Context, image string) (bool, error)
		// RemoveImage removes a local image.
		RemoveImage(ctx context.Context, image string, force bool) error
		// Kill forcibly stops the named container.
		Kill(ctx context.Context, name string) error
	}

	// EngineType identifies the container engine type.
	EngineType string

	// EngineNotAvailableError is returned when no usable engine binary exists.
	EngineNotAvailableError struct {
		Engine EngineType
		Reason string
	}
)

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrEngineNotAvailable so callers can use errors.Is for programmatic detection.
func (e *EngineNotAvailableError) Unwrap() error { return ErrEngineNotAvailable }

// String returns the engine type name.
func (t EngineType) String() string { return string(t) }

// Validate returns an error when t is not a supported engine.
func (t EngineType) Validate() error {
	switch t {
	case EngineTypeDocker, EngineTypePodman:
		return nil
	default:
		return fmt.Errorf("%w: %q (valid: docker, podman)", ErrInvalidEngineType, string(t))
	}
}

// NewEngine returns the preferred engine, falling back to the other one when
// the preferred binary is not available.
func NewEngine(ctx context.Context, preferred EngineType, opts ...BaseCLIEngineOption) (Engine, error) {
	var primary, fallback Engine
	switch preferred {
	case EngineTypePodman:
		primary, fallback = NewPodmanEngine(opts...), NewDockerEngine(opts...)
	case EngineTypeDocker:
		primary, fallback = NewDockerEngine(opts...), NewPodmanEngine(opts...)
	default:
		return nil, preferred.Validate()
	}

	if primary.Available(ctx) {
		return primary, nil
	}
	if fallback.Available(ctx) {
		return fallback, nil
	}
	return nil, &EngineNotAvailableError{
		Engine: preferred,
		Reason: fmt.Sprintf("%s is not installed or not accessible, and %s fallback is also not available",
			primary.Name(), fallback.Name()),
	}
}

// NewEngineStrict returns the requested engine without fallback, or an
// EngineNotAvailableError when its binary is missing or does not respond.
func NewEngineStrict(ctx context.Context, typ EngineType, opts ...BaseCLIEngineOption) (Engine, error) {
	var e Engine
	switch typ {
	case EngineTypeDocker:
		e = NewDockerEngine(opts...)
	case EngineTypePodman:
		e = NewPodmanEngine(opts...)
	default:
		return nil, typ.Validate()
	}
	if !e.Available(ctx) {
		return nil, &EngineNotAvailableError{
			Engine: typ,
			Reason: fmt.Sprintf("%s is not installed or not accessible", e.Name()),
		}
	}
	return e, nil
}
