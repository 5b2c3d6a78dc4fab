// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/creack/pty"

	"github.com/rongoro/dev/pkg/cfgtree"
)

// ErrCommandFailed is the sentinel error wrapped by CommandFailedError.
var ErrCommandFailed = errors.New("command failed")

type (
	// CommandFailedError is returned when a command exits with a non-zero
	// status. Output holds the trimmed lines produced before it exited.
	CommandFailedError struct {
		ExitCode ExitCode
		Argv     []string
		Output   []string
	}

	// LocalBackend runs commands as host processes.
	LocalBackend struct {
		echo io.Writer
	}

	// LocalOption configures a LocalBackend.
	LocalOption func(*LocalBackend)
)

// Error implements the error interface.
func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("command %q exited with status %d", strings.Join(e.Argv, " "), e.ExitCode)
}

// Unwrap returns ErrCommandFailed so callers can use errors.Is for programmatic detection.
func (e *CommandFailedError) Unwrap() error { return ErrCommandFailed }

// WithEcho sets where verbose runs echo output as it arrives (default os.Stdout).
func WithEcho(w io.Writer) LocalOption {
	return func(b *LocalBackend) {
		b.echo = w
	}
}

// NewLocalBackend creates the local backend.
func NewLocalBackend(opts ...LocalOption) *LocalBackend {
	b := &LocalBackend{echo: os.Stdout}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements Backend.
func (b *LocalBackend) Name() string { return ProviderLocal }

// IsReady implements Backend. The host is always ready.
func (b *LocalBackend) IsReady(context.Context, *cfgtree.Map) (bool, error) { return true, nil }

// Setup implements Backend. There is nothing to provision.
func (b *LocalBackend) Setup(context.Context, *cfgtree.Map) error { return nil }

// RunCommand implements Backend. The process runs in cfg's cwd with cfg's
// env added to the inherited environment. stderr is merged into stdout.
func (b *LocalBackend) RunCommand(ctx context.Context, cfg *cfgtree.Map, argv []string) ([]string, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if cwd, ok := cfg.GetString(KeyCwd); ok && cwd != "" {
		cmd.Dir = cwd
	}
	if env, ok := cfg.GetMap(KeyEnv); ok && env.Len() > 0 {
		cmd.Env = append(os.Environ(), envList(env)...)
	}

	verbose, _ := cfg.GetBool(KeyVerbose)
	if tty, _ := cfg.GetBool(KeyTTY); tty {
		return b.runPTY(cmd, verbose)
	}
	return b.stream(cmd, verbose)
}

// stream starts cmd with stderr merged into stdout and collects its output
// lines, echoing every byte when verbose is set.
func (b *LocalBackend) stream(cmd *exec.Cmd, verbose bool) ([]string, error) {
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	slog.Debug("running command", "argv", cmd.Args, "dir", cmd.Dir)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Args[0], err)
	}

	lines, readErr := collectLines(out, b.echoWriter(verbose))
	return finish(cmd, lines, readErr)
}

// runPTY runs cmd attached to a pseudo-terminal so that programs which
// only draw progress output on a terminal still do.
func (b *LocalBackend) runPTY(cmd *exec.Cmd, verbose bool) ([]string, error) {
	slog.Debug("running command on a pty", "argv", cmd.Args, "dir", cmd.Dir)
	tty, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Args[0], err)
	}
	defer func() { _ = tty.Close() }()

	lines, readErr := collectLines(tty, b.echoWriter(verbose))
	// Linux reports EIO on the pty master once the child side is closed.
	if errors.Is(readErr, syscall.EIO) {
		readErr = nil
	}
	return finish(cmd, lines, readErr)
}

func (b *LocalBackend) echoWriter(verbose bool) io.Writer {
	if !verbose || b.echo == nil {
		return nil
	}
	return b.echo
}

func finish(cmd *exec.Cmd, lines []string, readErr error) ([]string, error) {
	waitErr := cmd.Wait()
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return nil, &CommandFailedError{
				ExitCode: ExitCode(exitErr.ExitCode()),
				Argv:     cmd.Args,
				Output:   lines,
			}
		}
		return nil, fmt.Errorf("wait for %s: %w", cmd.Args[0], waitErr)
	}
	if readErr != nil {
		return nil, fmt.Errorf("read output of %s: %w", cmd.Args[0], readErr)
	}
	return lines, nil
}

// collectLines reads r one byte at a time so echo sees output as soon as it
// is produced. Each line is returned with surrounding whitespace trimmed.
func collectLines(r io.Reader, echo io.Writer) ([]string, error) {
	br := bufio.NewReader(r)
	var (
		lines []string
		line  strings.Builder
	)
	for {
		c, err := br.ReadByte()
		if err != nil {
			if line.Len() > 0 {
				lines = append(lines, strings.TrimSpace(line.String()))
			}
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return lines, err
		}
		if echo != nil {
			if _, werr := echo.Write([]byte{c}); werr != nil {
				echo = nil
			}
		}
		if c == '\n' {
			lines = append(lines, strings.TrimSpace(line.String()))
			line.Reset()
			continue
		}
		line.WriteByte(c)
	}
}

func envList(env *cfgtree.Map) []string {
	keys := env.SortedKeys()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := env.GetString(k)
		if !ok {
			slog.Warn("ignoring non-string env value", "key", k)
			continue
		}
		out = append(out, k+"="+v)
	}
	return out
}
