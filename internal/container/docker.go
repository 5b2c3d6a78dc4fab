// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
)

// DockerEngine implements Engine using the Docker CLI.
type DockerEngine struct {
	*BaseCLIEngine
}

// NewDockerEngine creates a new Docker engine bound to the docker binary on PATH.
func NewDockerEngine(opts ...BaseCLIEngineOption) *DockerEngine {
	path := lookupBinary("docker")
	allOpts := append([]BaseCLIEngineOption{WithName(string(EngineTypeDocker))}, opts...)
	return &DockerEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, allOpts...),
	}
}

// Name returns the engine name.
func (e *DockerEngine) Name() string {
	return string(EngineTypeDocker)
}

// Available checks that the docker client can reach a daemon.
func (e *DockerEngine) Available(ctx context.Context) bool {
	if e.BinaryPath() == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, AvailableTimeout)
	defer cancel()
	cmd := e.CreateCommand(ctx, "version", "--format", "{{.Server.Version}}")
	return cmd.Run() == nil
}
