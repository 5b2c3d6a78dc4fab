// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os"
	"sync/atomic"
)

// ConfigDirEnv names the environment variable that replaces the platform
// config directory, for CI machines and containers without a usable home.
const ConfigDirEnv = "DEV_CONFIG_DIR"

var configDirOverride atomic.Pointer[string]

// OverrideConfigDir makes ConfigDir return dir, ahead of ConfigDirEnv, until
// the returned function is called. Tests use it because os.UserHomeDir does
// not follow HOME on every platform.
func OverrideConfigDir(dir string) (restore func()) {
	prev := configDirOverride.Swap(&dir)
	return func() { configDirOverride.Store(prev) }
}

// overriddenConfigDir returns the directory forced by OverrideConfigDir or
// ConfigDirEnv, if any.
func overriddenConfigDir() (string, bool) {
	if dir := configDirOverride.Load(); dir != nil && *dir != "" {
		return *dir, true
	}
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir, true
	}
	return "", false
}
