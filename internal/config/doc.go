// SPDX-License-Identifier: MPL-2.0

// Package config handles the dev tool configuration using Viper with CUE or
// TOML as the file format.
//
// Configuration is loaded from $XDG_CONFIG_HOME/dev/config.cue (or
// config.toml; ~/Library/Application Support/dev on macOS, $DEV_CONFIG_DIR
// when set). Both formats are validated against the embedded CUE schema
// (config_schema.cue). DEV_* environment variables override file values, e.g.
// DEV_CONTAINER_NAME for container.name.
//
// This is not the tree configuration: runtimes and project defaults live in
// the DEV_ROOT file of each tree (see internal/tree).
package config
