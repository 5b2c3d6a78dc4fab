// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/rongoro/dev/pkg/cfgtree"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestLocalBackend_RunCommand(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	tests := []struct {
		name string
		cfg  map[string]any
		argv []string
		want []string
	}{
		{
			name: "echo",
			cfg:  map[string]any{"provider": "local"},
			argv: []string{"echo", "Test Success!"},
			want: []string{"Test Success!"},
		},
		{
			name: "lines are trimmed",
			cfg:  map[string]any{"provider": "local"},
			argv: []string{"sh", "-c", "printf '  one  \\n\\ttwo\\r\\nthree'"},
			want: []string{"one", "two", "three"},
		},
		{
			name: "stderr is merged",
			cfg:  map[string]any{"provider": "local"},
			argv: []string{"sh", "-c", "echo out; echo err >&2"},
			want: []string{"out", "err"},
		},
		{
			name: "env is added",
			cfg:  map[string]any{"provider": "local", "env": map[string]any{"DEV_TEST_VALUE": "hello"}},
			argv: []string{"sh", "-c", "echo $DEV_TEST_VALUE"},
			want: []string{"hello"},
		},
		{
			name: "no output",
			cfg:  map[string]any{"provider": "local"},
			argv: []string{"true"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var echo bytes.Buffer
			b := NewLocalBackend(WithEcho(&echo))
			got, err := b.RunCommand(context.Background(), cfgtree.MustMap(tt.cfg), tt.argv)
			if err != nil {
				t.Fatalf("RunCommand() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("RunCommand() = %q, want %q", got, tt.want)
			}
			if echo.Len() != 0 {
				t.Errorf("non-verbose run echoed %q", echo.String())
			}
		})
	}
}

func TestLocalBackend_Cwd(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	b := NewLocalBackend(WithEcho(&bytes.Buffer{}))
	got, err := b.RunCommand(context.Background(), cfgtree.MustMap(map[string]any{"cwd": dir}), []string{"pwd", "-P"})
	if err != nil {
		t.Fatalf("RunCommand() error = %v", err)
	}
	if len(got) != 1 || got[0] != dir {
		t.Errorf("RunCommand(pwd) = %q, want [%q]", got, dir)
	}
}

func TestLocalBackend_VerboseEchoes(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	var echo bytes.Buffer
	b := NewLocalBackend(WithEcho(&echo))
	cfg := cfgtree.MustMap(map[string]any{"verbose": true})

	got, err := b.RunCommand(context.Background(), cfg, []string{"sh", "-c", "echo ' a '; echo b"})
	if err != nil {
		t.Fatalf("RunCommand() error = %v", err)
	}
	if echo.String() != " a \nb\n" {
		t.Errorf("echo = %q, want %q", echo.String(), " a \nb\n")
	}
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("RunCommand() = %q, want [a b]", got)
	}
}

func TestLocalBackend_CommandFailed(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	b := NewLocalBackend(WithEcho(&bytes.Buffer{}))
	argv := []string{"sh", "-c", "echo partial; exit 3"}
	_, err := b.RunCommand(context.Background(), cfgtree.NewMap(), argv)
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("RunCommand() error = %v, want ErrCommandFailed", err)
	}

	var failed *CommandFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("error should be *CommandFailedError, got %T", err)
	}
	if failed.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", failed.ExitCode)
	}
	if !slices.Equal(failed.Output, []string{"partial"}) {
		t.Errorf("Output = %q, want [partial]", failed.Output)
	}
	if !slices.Equal(failed.Argv, argv) {
		t.Errorf("Argv = %q, want %q", failed.Argv, argv)
	}
	if !strings.Contains(err.Error(), "status 3") {
		t.Errorf("Error() = %q, should mention the status", err.Error())
	}
}

func TestLocalBackend_StartFailure(t *testing.T) {
	t.Parallel()

	b := NewLocalBackend()
	_, err := b.RunCommand(context.Background(), cfgtree.NewMap(), []string{"dev-test-no-such-binary"})
	if err == nil {
		t.Fatal("RunCommand() should fail for a missing binary")
	}
	if errors.Is(err, ErrCommandFailed) {
		t.Error("a missing binary is not a CommandFailedError")
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("error should wrap exec.ErrNotFound, got %v", err)
	}
}

func TestLocalBackend_EmptyArgv(t *testing.T) {
	t.Parallel()

	if _, err := NewLocalBackend().RunCommand(context.Background(), cfgtree.NewMap(), nil); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("RunCommand(nil) error = %v, want ErrEmptyCommand", err)
	}
}

func TestLocalBackend_TTY(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	b := NewLocalBackend(WithEcho(&bytes.Buffer{}))
	cfg := cfgtree.MustMap(map[string]any{"tty": true})

	got, err := b.RunCommand(context.Background(), cfg, []string{"sh", "-c", "if [ -t 1 ]; then echo tty; else echo pipe; fi"})
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	if !slices.Equal(got, []string{"tty"}) {
		t.Errorf("RunCommand() = %q, want [tty]", got)
	}
}

func TestCollectLines(t *testing.T) {
	t.Parallel()

	var echo bytes.Buffer
	got, err := collectLines(strings.NewReader("a\n\n  b  \nc"), &echo)
	if err != nil {
		t.Fatalf("collectLines() error = %v", err)
	}
	if !slices.Equal(got, []string{"a", "", "b", "c"}) {
		t.Errorf("collectLines() = %q", got)
	}
	if echo.String() != "a\n\n  b  \nc" {
		t.Errorf("echo = %q", echo.String())
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code        ExitCode
		wantValid   bool
		wantProcess int
	}{
		{code: 0, wantValid: true, wantProcess: 1},
		{code: 3, wantValid: true, wantProcess: 3},
		{code: 255, wantValid: true, wantProcess: 255},
		{code: -1, wantValid: false, wantProcess: 1},
		{code: 256, wantValid: false, wantProcess: 1},
	}

	for _, tt := range tests {
		err := tt.code.Validate()
		if (err == nil) != tt.wantValid {
			t.Errorf("ExitCode(%d).Validate() = %v, want valid=%v", tt.code, err, tt.wantValid)
		}
		if err != nil && !errors.Is(err, ErrInvalidExitCode) {
			t.Errorf("ExitCode(%d).Validate() should wrap ErrInvalidExitCode", tt.code)
		}
		if got := tt.code.ProcessExitCode(); got != tt.wantProcess {
			t.Errorf("ExitCode(%d).ProcessExitCode() = %d, want %d", tt.code, got, tt.wantProcess)
		}
	}
}
