// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rongoro/dev/internal/issue"
	"github.com/rongoro/dev/internal/testutil"
	"github.com/rongoro/dev/pkg/cueutil"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.ContainerEngine != ContainerEngineDocker {
		t.Errorf("ContainerEngine = %q, want %q", cfg.ContainerEngine, ContainerEngineDocker)
	}
	if cfg.Container.Name != "dev-tree-container" {
		t.Errorf("Container.Name = %q, want dev-tree-container", cfg.Container.Name)
	}
	if cfg.Container.WorkingDir != "/project" {
		t.Errorf("Container.WorkingDir = %q, want /project", cfg.Container.WorkingDir)
	}
	if cfg.Log.Level != LogLevelInfo {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := NewProvider().LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want empty", path)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("LoadWithPath() = %+v, want defaults", cfg)
	}
}

func TestLoad_Files(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files map[string]string
		want  func(*Config)
	}{
		{
			name: "cue",
			files: map[string]string{
				"config.cue": `
container_engine: "podman"
container: {
	name:         "my-box"
	kill_timeout: "3s"
}
`,
			},
			want: func(c *Config) {
				c.ContainerEngine = ContainerEnginePodman
				c.Container.Name = "my-box"
				c.Container.KillTimeout = 3 * time.Second
			},
		},
		{
			name: "toml",
			files: map[string]string{
				"config.toml": `
[container]
working_dir = "/src"
port_probe_timeout = "250ms"

[log]
level = "debug"
`,
			},
			want: func(c *Config) {
				c.Container.WorkingDir = "/src"
				c.Container.PortProbeTimeout = 250 * time.Millisecond
				c.Log.Level = LogLevelDebug
			},
		},
		{
			name: "cue preferred over toml",
			files: map[string]string{
				"config.cue":  `log: level: "warn"`,
				"config.toml": "[log]\nlevel = \"error\"\n",
			},
			want: func(c *Config) { c.Log.Level = LogLevelWarn },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := testutil.WriteTree(t, tt.files)
			cfg, _, err := NewProvider().LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: dir})
			if err != nil {
				t.Fatalf("LoadWithPath() error = %v", err)
			}

			want := DefaultConfig()
			tt.want(want)
			if *cfg != *want {
				t.Errorf("LoadWithPath() = %+v, want %+v", cfg, want)
			}
		})
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteTree(t, map[string]string{"custom.cue": `container: name: "explicit"`})
	path := filepath.Join(dir, "custom.cue")

	cfg, resolved, err := NewProvider().LoadWithPath(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Container.Name != "explicit" {
		t.Errorf("Container.Name = %q, want explicit", cfg.Container.Name)
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue"),
	})
	if err == nil {
		t.Fatal("Load() should fail for a missing explicit file")
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("error should be *issue.ActionableError, got %T", err)
	}
	if ae.IssueID != issue.ConfigLoadFailedId {
		t.Errorf("IssueID = %d, want %d", ae.IssueID, issue.ConfigLoadFailedId)
	}
}

func TestLoad_InvalidFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		files   map[string]string
		wantMsg string
	}{
		{
			name:    "unknown engine",
			files:   map[string]string{"config.cue": `container_engine: "lxc"`},
			wantMsg: "container_engine",
		},
		{
			name:    "unknown field",
			files:   map[string]string{"config.cue": `colour: "red"`},
			wantMsg: "colour",
		},
		{
			name:    "relative working dir",
			files:   map[string]string{"config.toml": "[container]\nworking_dir = \"src\"\n"},
			wantMsg: "working_dir",
		},
		{
			name:    "toml syntax",
			files:   map[string]string{"config.toml": "[container\n"},
			wantMsg: "config.toml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := testutil.WriteTree(t, tt.files)
			_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !errors.Is(err, cueutil.ErrInvalidDocument) {
				t.Errorf("error should wrap cueutil.ErrInvalidDocument, got: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DEV_CONTAINER_NAME", "from-env")
	t.Setenv("DEV_CONTAINER_KILL_TIMEOUT", "42s")

	dir := testutil.WriteTree(t, map[string]string{"config.cue": `container: name: "from-file"`})
	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Container.Name != "from-env" {
		t.Errorf("Container.Name = %q, want from-env", cfg.Container.Name)
	}
	if cfg.Container.KillTimeout != 42*time.Second {
		t.Errorf("Container.KillTimeout = %v, want 42s", cfg.Container.KillTimeout)
	}
}

func TestLoad_EnvInvalid(t *testing.T) {
	t.Setenv("DEV_LOG_LEVEL", "chatty")

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("Load() error = %v, want ErrInvalidLogLevel", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantErrs int
	}{
		{name: "defaults", mutate: func(*Config) {}, wantErrs: 0},
		{name: "bad engine", mutate: func(c *Config) { c.ContainerEngine = "lxc" }, wantErrs: 1},
		{name: "blank name", mutate: func(c *Config) { c.Container.Name = "  " }, wantErrs: 1},
		{
			name: "several",
			mutate: func(c *Config) {
				c.Container.WorkingDir = "project"
				c.Container.KillTimeout = 0
				c.Log.Level = "loud"
			},
			wantErrs: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErrs == 0 {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}

			var cfgErr *InvalidConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error should be *InvalidConfigError, got %T", err)
			}
			if len(cfgErr.FieldErrors) != tt.wantErrs {
				t.Errorf("len(FieldErrors) = %d, want %d (%v)", len(cfgErr.FieldErrors), tt.wantErrs, cfgErr)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Error("error should wrap ErrInvalidConfig")
			}
		})
	}
}

func TestGenerateCUE_LoadsBack(t *testing.T) {
	t.Parallel()

	want := DefaultConfig()
	want.ContainerEngine = ContainerEnginePodman
	want.Container.PortProbeTimeout = 2 * time.Second

	dir := testutil.WriteTree(t, map[string]string{"config.cue": GenerateCUE(want)})
	got, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *got != *want {
		t.Errorf("Load(GenerateCUE()) = %+v, want %+v", got, want)
	}
}

func TestConfigDir_Override(t *testing.T) {
	fromEnv, forced := t.TempDir(), t.TempDir()
	t.Setenv(ConfigDirEnv, fromEnv)

	if got, err := ConfigDir(); err != nil || got != fromEnv {
		t.Errorf("ConfigDir() = %q, %v, want %q from %s", got, err, fromEnv, ConfigDirEnv)
	}

	restore := OverrideConfigDir(forced)
	if got, err := ConfigDir(); err != nil || got != forced {
		t.Errorf("ConfigDir() = %q, %v, want override %q", got, err, forced)
	}
	restore()

	if got, _ := ConfigDir(); got != fromEnv {
		t.Errorf("ConfigDir() after restore = %q, want %q", got, fromEnv)
	}
}

func TestConfigDir_XDG(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping environment-dependent test in short mode")
	}
	t.Setenv(ConfigDirEnv, "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	got, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if got != filepath.Join("/tmp/xdg", "dev") && !strings.HasSuffix(got, filepath.Join("Application Support", "dev")) {
		t.Errorf("ConfigDir() = %q", got)
	}
}
