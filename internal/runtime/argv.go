// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

var (
	// ErrInvalidCommand is the sentinel error wrapped by InvalidCommandError.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrEmptyCommand is returned when a command splits into no words.
	ErrEmptyCommand = errors.New("empty command")
)

// InvalidCommandError is returned when a command string cannot be split into
// an argument vector.
type InvalidCommandError struct {
	Command string
	Reason  string
}

// Error implements the error interface.
func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid command %q: %s", e.Command, e.Reason)
}

// Unwrap returns ErrInvalidCommand so callers can use errors.Is for programmatic detection.
func (e *InvalidCommandError) Unwrap() error { return ErrInvalidCommand }

// SplitCommand splits command into words the way a POSIX shell would,
// honoring single quotes, double quotes and backslash escapes. Commands are
// not run through a shell: operators such as ">" or "&&", "$NAME" references
// and globs are kept as literal text, so `sh -c "echo $HOME"` yields the
// three words sh, -c and "echo $HOME".
func SplitCommand(command string) ([]string, error) {
	var words []*syntax.Word
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	err := parser.Words(strings.NewReader(literalize(command)), func(w *syntax.Word) bool {
		words = append(words, w)
		return true
	})
	if err != nil {
		return nil, &InvalidCommandError{Command: command, Reason: err.Error()}
	}

	argv, err := expand.Fields(&expand.Config{}, words...)
	if err != nil {
		return nil, &InvalidCommandError{Command: command, Reason: err.Error()}
	}
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	return argv, nil
}

// literalize backslash-escapes every character the shell would treat as an
// operator or expansion, leaving quoting and existing escapes intact. Inside
// double quotes only '$' and '`' are special.
func literalize(command string) string {
	var b strings.Builder
	var single, dbl, escaped bool
	b.Grow(len(command) + len(command)/4)
	for _, r := range command {
		switch {
		case escaped:
			escaped = false
		case single:
			single = r != '\''
		case r == '\\':
			escaped = true
		case dbl:
			if r == '"' {
				dbl = false
			} else if r == '$' || r == '`' {
				b.WriteByte('\\')
			}
		case r == '\'':
			single = true
		case r == '"':
			dbl = true
		case strings.ContainsRune(shellMeta, r):
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// shellMeta lists the characters that are special outside quotes.
const shellMeta = ";&|<>()$`#~*?[]{}!"
