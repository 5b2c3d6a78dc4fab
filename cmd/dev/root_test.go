// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rongoro/dev/internal/config"
	"github.com/rongoro/dev/internal/issue"
	"github.com/rongoro/dev/internal/project"
	"github.com/rongoro/dev/internal/runtime"
	"github.com/rongoro/dev/internal/testutil"
	"github.com/rongoro/dev/internal/tree"
)

// staticConfig serves the default configuration without touching the
// user's config directory.
type staticConfig struct{}

func (c staticConfig) Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error) {
	cfg, _, err := c.LoadWithPath(ctx, opts)
	return cfg, err
}

func (staticConfig) LoadWithPath(context.Context, config.LoadOptions) (*config.Config, string, error) {
	return config.DefaultConfig(), "", nil
}

func newCLITree(t *testing.T) string {
	t.Helper()
	return testutil.WriteTree(t, map[string]string{
		tree.MarkerFile: `{
  "runtimes": {"host": {"provider": "local", "cwd": "$CWD"}},
  "project_defaults": {"runtime": "host", "commands": {"test": "echo TEST NOT IMPLEMENTED"}},
}`,
		"runtimes/" + project.ManifestFile: `{
  "test_runtime": {"path": "test_runtime", "commands": {"build": "docker build -t test_runtime ."}},
}`,
		"runtimes/test_runtime/Dockerfile": "FROM alpine:latest\n",
		"world/example.com/" + project.ManifestFile: `{
  "project_foo": {"path": "project_foo", "commands": {"build": "echo foo", "fail": "sh -c 'echo partial; exit 3'"}},
  "project_bar_verbose": {"path": "project_bar"},
}`,
		"world/example.com/project_foo/.keep": "",
		"world/example.com/project_bar/.keep": "",
	})
}

// runCLI executes the root command with args and returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := NewApp(Dependencies{Config: staticConfig{}, Stdout: &out, Stderr: io.Discard})
	root := NewRootCommand(app)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2026-01-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2026-01-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("built from source", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got, want := getVersionString(), "dev (built from source)"; got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})
}

func TestPrintConfig(t *testing.T) {
	t.Parallel()

	root := newCLITree(t)
	got, err := runCLI(t, "-C", root, "print_config", "//runtimes:test_runtime")
	if err != nil {
		t.Fatalf("print_config error = %v", err)
	}

	want := `{
    "commands": {
        "build": "docker build -t test_runtime .",
        "test": "echo TEST NOT IMPLEMENTED"
    },
    "path": "test_runtime",
    "runtime": "host"
}
`
	if got != want {
		t.Errorf("print_config output =\n%s\nwant\n%s", got, want)
	}
}

func TestProjectCommands(t *testing.T) {
	t.Parallel()

	root := newCLITree(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"build prints captured output", []string{"build", "//world/example.com:project_foo", "-o"}, "foo\n"},
		{"build is quiet by default", []string{"build", "//world/example.com:project_foo"}, ""},
		{"test streams output", []string{"test", "//world/example.com:project_bar_verbose"}, "TEST NOT IMPLEMENTED\n"},
		{"run with live output", []string{"run", "//world/example.com:project_foo", "build", "--live"}, "foo\n"},
		{"list_commands", []string{"list_commands", "//world/example.com:project_foo"}, "build\nfail\ntest\n"},
		{"list_projects", []string{"list_projects", "//world/example.com"}, ":project_bar_verbose\n:project_foo\n"},
		{"findroot", []string{"findroot"}, root + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := runCLI(t, append([]string{"-C", root}, tt.args...)...)
			if err != nil {
				t.Fatalf("%v error = %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("%v output = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestRelativePaths(t *testing.T) {
	t.Parallel()

	root := newCLITree(t)
	world := filepath.Join(root, "world")

	got, err := runCLI(t, "-C", world, "build", "example.com:project_foo", "-o")
	if err != nil {
		t.Fatalf("build error = %v", err)
	}
	if got != "foo\n" {
		t.Errorf("build output = %q, want %q", got, "foo\n")
	}

	got, err = runCLI(t, "-C", filepath.Join(world, "example.com"), "list_projects")
	if err != nil {
		t.Fatalf("list_projects error = %v", err)
	}
	if got != ":project_bar_verbose\n:project_foo\n" {
		t.Errorf("list_projects output = %q", got)
	}
}

func TestListRuntimes(t *testing.T) {
	t.Parallel()

	root := newCLITree(t)
	got, err := runCLI(t, "-C", root, "list_runtimes")
	if err != nil {
		t.Fatalf("list_runtimes error = %v", err)
	}
	if !strings.HasPrefix(got, "host\t") || !strings.Contains(got, "local") {
		t.Errorf("list_runtimes output = %q", got)
	}
}

func TestCommandFailureExitCode(t *testing.T) {
	t.Parallel()

	root := newCLITree(t)
	_, err := runCLI(t, "-C", root, "run", "//world/example.com:project_foo", "fail")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("run error = %v, want ExitError", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("ExitError.Code = %d, want 3", exitErr.Code)
	}
	if !errors.Is(err, runtime.ErrCommandFailed) {
		t.Errorf("run error = %v, want ErrCommandFailed in chain", err)
	}
	if entry := issue.IssueFor(err); entry == nil || entry.Id() != issue.CommandFailedId {
		t.Errorf("IssueFor() = %v, want CommandFailedId", entry)
	}

	var buf bytes.Buffer
	renderFailure(&buf, err, "notty")
	if !strings.Contains(buf.String(), "partial") {
		t.Errorf("renderFailure() = %q, want captured output", buf.String())
	}
}

func TestResolutionErrors(t *testing.T) {
	t.Parallel()

	root := newCLITree(t)

	tests := []struct {
		name   string
		args   []string
		wantID issue.Id
	}{
		{"unknown project", []string{"-C", root, "build", "//world/example.com:nope"}, issue.ProjectNotFoundId},
		{"unknown command", []string{"-C", root, "run", "//world/example.com:project_foo", "deploy"}, issue.CommandNotFoundId},
		{"missing manifest", []string{"-C", root, "list_projects", "//nowhere"}, issue.ManifestNotFoundId},
		{"malformed path", []string{"-C", root, "print_config", "//world/example.com"}, issue.ProjectPathInvalidId},
		{"no tree", []string{"-C", t.TempDir(), "findroot"}, issue.RootNotFoundId},
		{"unknown provider", []string{"-C", root, "images", "nope"}, issue.ProviderNotFoundId},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := runCLI(t, tt.args...)
			if err == nil {
				t.Fatalf("%v succeeded, want an error", tt.args)
			}
			entry := issue.IssueFor(err)
			if entry == nil || entry.Id() != tt.wantID {
				t.Errorf("IssueFor(%v) = %v, want id %d", err, entry, tt.wantID)
			}
			var exitErr *ExitError
			if errors.As(err, &exitErr) {
				t.Errorf("resolution error carries an exit code: %v", err)
			}
		})
	}
}

func TestImages_NonContainerProvider(t *testing.T) {
	t.Parallel()

	root := newCLITree(t)
	if _, err := runCLI(t, "-C", root, "images", runtime.ProviderLocal); err == nil {
		t.Error("images local succeeded, want an error")
	}
}

func TestEngineFlag(t *testing.T) {
	t.Parallel()

	root := newCLITree(t)

	if _, err := runCLI(t, "-C", root, "--engine", "lxc", "findroot"); !errors.Is(err, config.ErrInvalidContainerEngine) {
		t.Errorf("--engine lxc error = %v, want ErrInvalidContainerEngine", err)
	}

	got, err := runCLI(t, "-C", root, "--engine", "podman", "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(got, "podman") {
		t.Errorf("config show output = %q, want the engine override", got)
	}
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	got, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"container_engine", "docker", config.DefaultContainerName, "(using defaults)"} {
		if !strings.Contains(got, want) {
			t.Errorf("config show output missing %q:\n%s", want, got)
		}
	}
}

func TestConfigDump(t *testing.T) {
	t.Parallel()

	got, err := runCLI(t, "config", "dump")
	if err != nil {
		t.Fatalf("config dump error = %v", err)
	}
	if !strings.Contains(got, `container_engine: "docker"`) {
		t.Errorf("config dump output = %q", got)
	}
}

func TestWatch_RunsInitiallyAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	root := newCLITree(t)

	var out bytes.Buffer
	app := NewApp(Dependencies{Config: staticConfig{}, Stdout: &out, Stderr: io.Discard})
	cli := NewRootCommand(app)
	cli.SetArgs([]string{"-C", root, "watch", "//world/example.com:project_foo", "build"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := cli.ExecuteContext(ctx); err != nil {
		t.Fatalf("watch error = %v", err)
	}
	if out.String() != "foo\n" {
		t.Errorf("watch output = %q, want %q", out.String(), "foo\n")
	}
}

func TestWatch_UnknownCommand(t *testing.T) {
	t.Parallel()

	root := newCLITree(t)
	_, err := runCLI(t, "-C", root, "watch", "//world/example.com:project_foo", "deploy")
	if !errors.Is(err, project.ErrUnknownCommand) {
		t.Errorf("watch error = %v, want ErrUnknownCommand", err)
	}
}

func TestBuildDirIgnore(t *testing.T) {
	t.Parallel()

	root := filepath.FromSlash("/tree")
	tests := []struct {
		name     string
		src      string
		buildDir string
		want     []string
	}{
		{"tree root project", root, filepath.Join(root, "build", "p"), []string{"build/p/**"}},
		{"nested project", filepath.Join(root, "a"), filepath.Join(root, "build", "a", "p"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := buildDirIgnore(tt.src, tt.buildDir)
			if len(got) != len(tt.want) || (len(got) == 1 && got[0] != tt.want[0]) {
				t.Errorf("buildDirIgnore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"root", tree.ErrRootNotFound, issue.RootNotFoundId},
		{"wrapped runtime", &tree.UnknownRuntimeError{Name: "x"}, issue.RuntimeNotFoundId},
		{"no runtime", project.ErrNoRuntime, issue.RuntimeNotFoundId},
		{"template", runtime.ErrInvalidCommand, issue.TemplateErrorId},
		{"image name", &runtime.MissingImageNameError{Provider: "docker"}, issue.ImageNameMissingId},
		{"ports", runtime.ErrPortRangeExhausted, issue.PortRangeExhaustedId},
		{"unrelated", errors.New("boom"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrapError_KeepsExistingIssue(t *testing.T) {
	t.Parallel()

	inner := issue.NewErrorContext().
		WithOperation("load configuration").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(errors.New("bad")).
		BuildError()

	err := wrapError(inner, "run build", "//a:b")
	if err != inner {
		t.Errorf("wrapError() = %v, want the original error", err)
	}
	if wrapError(nil, "x", "y") != nil {
		t.Error("wrapError(nil) != nil")
	}
}
