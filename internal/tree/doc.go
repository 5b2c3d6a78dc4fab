// SPDX-License-Identifier: MPL-2.0

// Package tree locates the root of a managed development tree and loads its
// global configuration.
//
// The root is the nearest ancestor directory holding a DEV_ROOT marker file.
// The marker is a JSON document (comments and trailing commas allowed) with a
// registry of named runtimes and the defaults every project manifest entry is
// merged over:
//
//	{
//	  "version": "1",
//	  "runtimes": {
//	    "host": {"provider": "local", "cwd": "$CWD"},
//	  },
//	  "project_defaults": {"runtime": "host"},
//	}
//
// An empty marker file is accepted and behaves like "{}".
package tree
