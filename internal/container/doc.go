// SPDX-License-Identifier: MPL-2.0

// Package container drives container engines (Docker and Podman) through
// their command-line interfaces.
//
// Engines only build argument lists and run short maintenance commands
// (images, rmi, kill). Long-running build and run invocations are created
// with CreateCommand and streamed by the caller.
package container
