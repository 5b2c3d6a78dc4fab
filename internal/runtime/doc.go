// SPDX-License-Identifier: MPL-2.0

// Package runtime dispatches project commands to execution backends.
//
// A runtime is a rendered configuration mapping whose "provider" key selects a
// Backend from a Registry. Two backends are provided:
//   - local: runs the command as a host process, streaming merged
//     stdout/stderr byte by byte and returning the trimmed output lines
//   - container (docker, podman): builds images, publishes free host ports
//     and runs the command inside a named container that is killed if the
//     CLI receives a terminating signal
//
// The Dispatcher adds one behavior on top of the backends: when a backend
// reports that a runtime is not ready and the runtime names a "project", that
// project's build command is run first through a ProjectBuilder.
package runtime
