// SPDX-License-Identifier: MPL-2.0

// Package projpath parses symbolic project paths of the form //dir/path:name.
package projpath

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rongoro/dev/internal/tree"
)

// Prefix marks a path as relative to the tree root.
const Prefix = "//"

var (
	// ErrMalformedPath is the sentinel error wrapped by MalformedPathError.
	ErrMalformedPath = errors.New("bad project path")
	// ErrMissingProjectName is returned when a project name is required but absent.
	ErrMissingProjectName = errors.New("project name required")
	// ErrUnexpectedProjectName is returned when a directory was expected but
	// the path names a project.
	ErrUnexpectedProjectName = errors.New("project should not be specified")

	pathPattern = regexp.MustCompile(`^//([^:]*)(:[A-Za-z0-9_-]+)?$`)
)

type (
	// Path is a resolved project path.
	Path struct {
		// Root is the tree root the path was resolved against.
		Root string
		// Rel is the slash-separated directory relative to Root ("" for the root itself).
		Rel string
		// Dir is the absolute directory holding the project manifest.
		Dir string
		// Name is the project name, empty when the path addresses a directory.
		Name string
	}

	// MalformedPathError is returned when a path does not match the
	// //dir[:name] grammar or escapes the tree.
	MalformedPathError struct {
		Path   string
		Reason string
	}

	// NameError reports a project name that is missing or present when it
	// should not be. It wraps ErrMissingProjectName or ErrUnexpectedProjectName.
	NameError struct {
		Path string
		err  error
	}
)

// Error implements the error interface.
func (e *MalformedPathError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("bad project path %q", e.Path)
	}
	return fmt.Sprintf("bad project path %q: %s", e.Path, e.Reason)
}

// Unwrap returns ErrMalformedPath so callers can use errors.Is for programmatic detection.
func (e *MalformedPathError) Unwrap() error { return ErrMalformedPath }

// Error implements the error interface.
func (e *NameError) Error() string {
	return fmt.Sprintf("%s: %q", e.err, e.Path)
}

// Unwrap returns the underlying sentinel.
func (e *NameError) Unwrap() error { return e.err }

// String returns the canonical //rel[:name] form.
func (p Path) String() string {
	if p.Name == "" {
		return Prefix + p.Rel
	}
	return Prefix + p.Rel + ":" + p.Name
}

// Parse resolves raw against the tree containing dir.
//
// A raw path starting with // is relative to the tree root. Any other path is
// a filesystem path (optionally followed by :name) relative to dir; it is
// resolved, checked to lie inside the tree and rewritten to the // form.
//
// When requireName is true the path must name a project, otherwise it must
// not.
func Parse(dir, raw string, requireName bool) (Path, error) {
	if !strings.HasPrefix(raw, Prefix) {
		canonical, err := canonicalize(dir, raw)
		if err != nil {
			return Path{}, err
		}
		raw = canonical
	}

	m := pathPattern.FindStringSubmatch(raw)
	if m == nil {
		return Path{}, &MalformedPathError{Path: raw}
	}

	rel := path.Clean(m[1])
	switch {
	case rel == "." || rel == "/":
		rel = ""
	case rel == ".." || strings.HasPrefix(rel, "../") || strings.HasPrefix(rel, "/"):
		return Path{}, &MalformedPathError{Path: raw, Reason: "path leaves the tree"}
	}
	name := strings.TrimPrefix(m[2], ":")

	if requireName && name == "" {
		return Path{}, &NameError{Path: raw, err: ErrMissingProjectName}
	}
	if !requireName && name != "" {
		return Path{}, &NameError{Path: raw, err: ErrUnexpectedProjectName}
	}

	root, err := tree.FindRoot(dir)
	if err != nil {
		return Path{}, err
	}

	return Path{
		Root: root,
		Rel:  rel,
		Dir:  filepath.Join(root, filepath.FromSlash(rel)),
		Name: name,
	}, nil
}

// canonicalize rewrites a filesystem path[:name] relative to dir into the
// //rel[:name] form.
func canonicalize(dir, raw string) (string, error) {
	fsPath, suffix := raw, ""
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		fsPath, suffix = raw[:i], raw[i:]
	}
	if fsPath == "" {
		fsPath = "."
	}
	if !filepath.IsAbs(fsPath) {
		fsPath = filepath.Join(dir, fsPath)
	}

	abs, err := realpath(fsPath)
	if err != nil {
		return "", err
	}
	root, err := tree.FindRoot(dir)
	if err != nil {
		return "", err
	}
	root, err = realpath(root)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &MalformedPathError{Path: raw, Reason: "outside the tree rooted at " + root}
	}
	if rel == "." {
		rel = ""
	}
	return Prefix + filepath.ToSlash(rel) + suffix, nil
}

// realpath returns the absolute, symlink-free form of p. Paths that do not
// exist yet are only made absolute.
func realpath(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return filepath.Abs(p)
}
