// SPDX-License-Identifier: MPL-2.0

package tree

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rongoro/dev/pkg/cfgtree"
	"github.com/rongoro/dev/pkg/cueutil"
)

//go:embed schema.cue
var rootSchema []byte

// ErrUnknownRuntime is the sentinel error wrapped by UnknownRuntimeError.
var ErrUnknownRuntime = errors.New("unknown runtime")

type (
	// Global is the parsed contents of a tree's marker file. It is a value
	// snapshot: accessors return copies and nothing is cached across loads.
	Global struct {
		// Root is the absolute tree root directory.
		Root    string
		Version string

		runtimes *cfgtree.Map
		defaults *cfgtree.Map
	}

	// UnknownRuntimeError is returned when a runtime name is not registered
	// in the marker file.
	UnknownRuntimeError struct {
		Name string
	}
)

// Error implements the error interface.
func (e *UnknownRuntimeError) Error() string {
	return fmt.Sprintf("unknown runtime %q", e.Name)
}

// Unwrap returns ErrUnknownRuntime so callers can use errors.Is for programmatic detection.
func (e *UnknownRuntimeError) Unwrap() error { return ErrUnknownRuntime }

// Load locates the root above dir and parses its marker file.
func Load(dir string) (*Global, error) {
	root, err := FindRoot(dir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(root, MarkerFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := cueutil.ValidateJSONC(rootSchema, data, "#Root", cueutil.WithFilename(path))
	if err != nil {
		return nil, err
	}
	v, err := cfgtree.FromCUE(doc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	m, ok := v.(*cfgtree.Map)
	if !ok {
		return nil, fmt.Errorf("%s: expected an object, got %s", path, v.Kind())
	}

	g := &Global{Root: root, runtimes: cfgtree.NewMap(), defaults: cfgtree.NewMap()}
	g.Version, _ = m.GetString("version")
	if rt, ok := m.GetMap("runtimes"); ok {
		g.runtimes = rt
	}
	if d, ok := m.GetMap("project_defaults"); ok {
		g.defaults = d
	}

	slog.Debug("loaded tree config", "root", root, "runtimes", g.runtimes.Len())
	return g, nil
}

// RuntimeNames returns the registered runtime names sorted lexicographically.
func (g *Global) RuntimeNames() []string {
	return g.runtimes.SortedKeys()
}

// Runtime returns a copy of the named runtime spec.
func (g *Global) Runtime(name string) (*cfgtree.Map, error) {
	spec, ok := g.runtimes.GetMap(name)
	if !ok {
		return nil, &UnknownRuntimeError{Name: name}
	}
	return spec.Clone(), nil
}

// ProjectDefaults returns a copy of the project defaults.
func (g *Global) ProjectDefaults() *cfgtree.Map {
	return g.defaults.Clone()
}
