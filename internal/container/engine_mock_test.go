// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/rongoro/dev/pkg/platform"
)

type (
	// MockCommandRecorder captures arguments passed to exec.Command for verification.
	// It uses the TestHelperProcess pattern to simulate command execution.
	MockCommandRecorder struct {
		mu sync.Mutex
		// Invocations records each call to the mock exec.Command
		Invocations []MockInvocation
		// ExitCode is the exit code to return (0 = success)
		ExitCode int
		// Stdout is the output to write to stdout
		Stdout string
		// Stderr is the output to write to stderr
		Stderr string
		// FailOn makes matching invocations exit 1 regardless of ExitCode
		FailOn func(name string, args []string) bool
	}

	// MockInvocation represents a single invocation of exec.Command.
	MockInvocation struct {
		// Name is the command name (e.g., "docker", "podman")
		Name string
		// Args are the arguments passed to the command
		Args []string
	}
)

// NewMockCommandRecorder creates a new recorder with default settings (success, no output).
func NewMockCommandRecorder() *MockCommandRecorder {
	return &MockCommandRecorder{}
}

// ExecCommand returns an ExecCommandFunc that records invocations and runs TestHelperProcess.
func (m *MockCommandRecorder) ExecCommand() ExecCommandFunc {
	return func(_ context.Context, name string, args ...string) *exec.Cmd {
		m.mu.Lock()
		m.Invocations = append(m.Invocations, MockInvocation{Name: name, Args: slices.Clone(args)})
		exitCode := m.ExitCode
		if m.FailOn != nil && m.FailOn(name, args) {
			exitCode = 1
		}
		stdout, stderr := m.Stdout, m.Stderr
		m.mu.Unlock()

		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.Command(os.Args[0], cs...) //nolint:gosec,noctx // test helper process
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("GO_HELPER_EXIT_CODE=%d", exitCode),
			"GO_HELPER_STDOUT=" + stdout,
			"GO_HELPER_STDERR=" + stderr,
		}
		return cmd
	}
}

// LastArgs returns the arguments from the most recent invocation.
func (m *MockCommandRecorder) LastArgs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Invocations) == 0 {
		return nil
	}
	return m.Invocations[len(m.Invocations)-1].Args
}

// AssertInvocationCount verifies the number of command invocations.
func (m *MockCommandRecorder) AssertInvocationCount(t *testing.T, expected int) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Invocations) != expected {
		t.Errorf("expected %d invocations, got %d", expected, len(m.Invocations))
	}
}

// AssertLastArgs verifies the exact argument list of the most recent invocation.
func (m *MockCommandRecorder) AssertLastArgs(t *testing.T, expected ...string) {
	t.Helper()
	if got := m.LastArgs(); !slices.Equal(got, expected) {
		t.Errorf("args = %v, want %v", got, expected)
	}
}

// TestHelperProcess is used by the mock to simulate command execution.
// It reads configuration from environment variables and outputs accordingly.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	if stdout := os.Getenv("GO_HELPER_STDOUT"); stdout != "" {
		fmt.Fprint(os.Stdout, stdout)
	}
	if stderr := os.Getenv("GO_HELPER_STDERR"); stderr != "" {
		fmt.Fprint(os.Stderr, stderr)
	}

	exitCode := 0
	if code := os.Getenv("GO_HELPER_EXIT_CODE"); code != "" {
		fmt.Sscanf(code, "%d", &exitCode)
	}
	os.Exit(exitCode)
}

func newMockDocker(t *testing.T, stdout string, exitCode int) (*DockerEngine, *MockCommandRecorder) {
	t.Helper()
	rec := NewMockCommandRecorder()
	rec.Stdout = stdout
	rec.ExitCode = exitCode
	return NewDockerEngine(
		WithBinaryPath("/usr/bin/docker"),
		WithExecCommand(rec.ExecCommand()),
		WithSandbox(platform.SandboxNone),
	), rec
}

func TestCreateCommand_Sandboxed(t *testing.T) {
	t.Parallel()

	rec := NewMockCommandRecorder()
	e := NewDockerEngine(
		WithBinaryPath("docker"),
		WithExecCommand(rec.ExecCommand()),
		WithSandbox(platform.SandboxFlatpak),
	)
	if err := e.CreateCommand(context.Background(), "images").Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	inv := rec.Invocations[0]
	if inv.Name != "flatpak-spawn" {
		t.Errorf("command = %q, want flatpak-spawn", inv.Name)
	}
	if want := []string{"--host", "docker", "images"}; !slices.Equal(inv.Args, want) {
		t.Errorf("args = %v, want %v", inv.Args, want)
	}
}

func TestMockCommandRecorder_Output(t *testing.T) {
	t.Parallel()

	rec := NewMockCommandRecorder()
	rec.Stdout = "version 1.0.0"
	cmd := rec.ExecCommand()(context.Background(), "docker", "version")
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(string(out)) != "version 1.0.0" {
		t.Errorf("stdout = %q, want %q", out, "version 1.0.0")
	}
	rec.AssertInvocationCount(t, 1)
	rec.AssertLastArgs(t, "version")
}
