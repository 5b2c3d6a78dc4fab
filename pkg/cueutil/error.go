// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// ErrInvalidDocument is the sentinel error wrapped by DocumentError.
var ErrInvalidDocument = errors.New("invalid document")

// DocumentError reports schema or syntax problems found in one document.
// Each problem is rendered as "<json-path>: <message>".
type DocumentError struct {
	File     string
	Problems []string
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s: %s", e.File, e.Problems[0])
	}
	return fmt.Sprintf("%s: validation failed:\n  %s", e.File, strings.Join(e.Problems, "\n  "))
}

// Unwrap returns ErrInvalidDocument so callers can use errors.Is for programmatic detection.
func (e *DocumentError) Unwrap() error { return ErrInvalidDocument }

// FormatError converts a CUE error into a DocumentError whose problems carry
// JSON-path prefixes, for example:
//
//	DEV_ROOT: runtimes.base.provider: incomplete value string
//	config.cue: container_engine: 2 errors in empty disjunction
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	cueErrs := cueerrors.Errors(err)
	if len(cueErrs) == 0 {
		return &DocumentError{File: filePath, Problems: []string{err.Error()}}
	}

	problems := make([]string, 0, len(cueErrs))
	for _, e := range cueErrs {
		pathStr := formatPath(cueerrors.Path(e))
		msg := e.Error()

		// CUE sometimes repeats the path at the start of the message.
		if pathStr != "" && strings.HasPrefix(msg, pathStr) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, pathStr), ":"))
		}

		if pathStr != "" {
			problems = append(problems, pathStr+": "+msg)
		} else {
			problems = append(problems, msg)
		}
	}
	return &DocumentError{File: filePath, Problems: problems}
}

// formatPath converts a CUE error path (["runtimes", "base", "ports", "0"])
// into JSON-path notation (runtimes.base.ports[0]).
func formatPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			b.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			b.WriteString(".")
		}
		b.WriteString(part)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize returns an error when data exceeds maxSize bytes.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return &DocumentError{
			File:     filename,
			Problems: []string{fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", len(data), maxSize)},
		}
	}
	return nil
}
