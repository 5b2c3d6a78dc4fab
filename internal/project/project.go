// SPDX-License-Identifier: MPL-2.0

package project

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rongoro/dev/internal/projpath"
	"github.com/rongoro/dev/internal/render"
	"github.com/rongoro/dev/internal/runtime"
	"github.com/rongoro/dev/internal/tree"
	"github.com/rongoro/dev/pkg/cfgtree"
	"github.com/rongoro/dev/pkg/cueutil"
)

// ManifestFile is the name of the per-directory project manifest.
const ManifestFile = "DEV_PROJECT"

// BuildDirName is the directory under the tree root that holds per-project
// build output.
const BuildDirName = "build"

// Configuration keys of a project entry. KeyWatch lists glob patterns,
// relative to the project's source directory, whose changes re-run a watched
// command.
const (
	KeyPath                  = "path"
	KeyRuntime               = "runtime"
	KeyCommands              = "commands"
	KeyCommandsRuntimeConfig = "commands_runtime_config"
	KeyWatch                 = "watch"
)

// Template variable names.
const (
	VarCWD         = "CWD"
	VarBuildDir    = "BUILDDIR"
	VarProjName    = "PROJNAME"
	VarWorkingDir  = "WORKINGDIR"
	VarProjectPath = "PROJECTPATH"
	VarRoot        = "ROOT"
)

//go:embed schema.cue
var manifestSchema []byte

var (
	// ErrManifestNotFound is the sentinel error wrapped by ManifestNotFoundError.
	ErrManifestNotFound = errors.New("project manifest not found")
	// ErrProjectNotFound is the sentinel error wrapped by ProjectNotFoundError.
	ErrProjectNotFound = errors.New("project not found")
	// ErrUnknownCommand is the sentinel error wrapped by UnknownCommandError.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNoRuntime is returned when a project resolves to no runtime name.
	ErrNoRuntime = errors.New("project has no runtime")
)

type (
	// Project is a resolved project: where it lives and its merged,
	// unrendered configuration.
	Project struct {
		Path   projpath.Path
		Config *cfgtree.Map
		Global *tree.Global
	}

	// ManifestNotFoundError reports a directory without a manifest.
	ManifestNotFoundError struct {
		Dir string
	}

	// ProjectNotFoundError reports a name missing from a manifest.
	ProjectNotFoundError struct {
		Path  string
		Known []string
	}

	// UnknownCommandError reports a command the project does not declare.
	UnknownCommandError struct {
		Project string
		Command string
		Known   []string
	}
)

// Error implements the error interface.
func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("no %s in %s", ManifestFile, e.Dir)
}

// Unwrap returns ErrManifestNotFound so callers can use errors.Is for programmatic detection.
func (e *ManifestNotFoundError) Unwrap() error { return ErrManifestNotFound }

// Error implements the error interface.
func (e *ProjectNotFoundError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("project %s not found", e.Path)
	}
	return fmt.Sprintf("project %s not found (available: %s)", e.Path, strings.Join(e.Known, ", "))
}

// Unwrap returns ErrProjectNotFound so callers can use errors.Is for programmatic detection.
func (e *ProjectNotFoundError) Unwrap() error { return ErrProjectNotFound }

// Error implements the error interface.
func (e *UnknownCommandError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("project %s has no commands (asked for %q)", e.Project, e.Command)
	}
	return fmt.Sprintf("project %s has no command %q (available: %s)", e.Project, e.Command, strings.Join(e.Known, ", "))
}

// Unwrap returns ErrUnknownCommand so callers can use errors.Is for programmatic detection.
func (e *UnknownCommandError) Unwrap() error { return ErrUnknownCommand }

// LoadManifest reads and validates the manifest in dir.
func LoadManifest(dir string) (*cfgtree.Map, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ManifestNotFoundError{Dir: dir}
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := cueutil.ValidateJSONC(manifestSchema, data, "#Manifest", cueutil.WithFilename(path))
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
	return m, nil
}

// Lookup resolves raw relative to dir and returns the project with its
// manifest entry merged over the tree's project defaults.
func Lookup(dir, raw string) (*Project, error) {
	p, err := projpath.Parse(dir, raw, true)
	if err != nil {
		return nil, err
	}
	global, err := tree.Load(p.Root)
	if err != nil {
		return nil, err
	}
	manifest, err := LoadManifest(p.Dir)
	if err != nil {
		return nil, err
	}
	entry, ok := manifest.GetMap(p.Name)
	if !ok {
		return nil, &ProjectNotFoundError{Path: p.String(), Known: prefixed(manifest.SortedKeys())}
	}

	return &Project{
		Path:   p,
		Config: cfgtree.Merge(entry, global.ProjectDefaults()),
		Global: global,
	}, nil
}

// ListProjects returns the projects declared in the directory named by raw,
// sorted and prefixed with ':'.
func ListProjects(dir, raw string) ([]string, error) {
	p, err := projpath.Parse(dir, raw, false)
	if err != nil {
		return nil, err
	}
	manifest, err := LoadManifest(p.Dir)
	if err != nil {
		return nil, err
	}
	return prefixed(manifest.SortedKeys()), nil
}

// Commands returns the commands mapping of cfg, or an empty mapping.
func Commands(cfg *cfgtree.Map) *cfgtree.Map {
	if cfg != nil {
		if cmds, ok := cfg.GetMap(KeyCommands); ok {
			return cmds
		}
	}
	return cfgtree.NewMap()
}

// Commands returns the project's commands.
func (p *Project) Commands() *cfgtree.Map {
	return Commands(p.Config)
}

// Command returns the unrendered command string named name.
func (p *Project) Command(name string) (string, error) {
	cmds := p.Commands()
	v, ok := cmds.Get(name)
	if !ok {
		return "", &UnknownCommandError{Project: p.Path.String(), Command: name, Known: cmds.SortedKeys()}
	}
	s, ok := v.(cfgtree.String)
	if !ok {
		return "", fmt.Errorf("project %s: command %q is a %s, want a string", p.Path, name, v.Kind())
	}
	return string(s), nil
}

// RuntimeName returns the name of the runtime the project runs in.
func (p *Project) RuntimeName() (string, error) {
	name, ok := p.Config.GetString(KeyRuntime)
	if !ok || name == "" {
		return "", fmt.Errorf("project %s: %w", p.Path, ErrNoRuntime)
	}
	return name, nil
}

// RuntimeSpec returns a copy of the project's unrendered runtime spec.
func (p *Project) RuntimeSpec() (*cfgtree.Map, error) {
	name, err := p.RuntimeName()
	if err != nil {
		return nil, err
	}
	return p.Global.Runtime(name)
}

// WatchPatterns returns the project's watch patterns, if any.
func (p *Project) WatchPatterns() ([]string, error) {
	v, ok := p.Config.Get(KeyWatch)
	if !ok {
		return nil, nil
	}
	list, ok := v.(cfgtree.List)
	if !ok {
		return nil, fmt.Errorf("project %s: %s is a %s, want a list of globs", p.Path, KeyWatch, v.Kind())
	}
	patterns := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(cfgtree.String)
		if !ok {
			return nil, fmt.Errorf("project %s: %s[%d] is a %s, want a string", p.Path, KeyWatch, i, item.Kind())
		}
		patterns = append(patterns, string(s))
	}
	return patterns, nil
}

// CWD returns the project's source directory: the manifest directory joined
// with the project's path key, with symlinks resolved when it exists.
func (p *Project) CWD() string {
	dir := p.Path.Dir
	if rel, ok := p.Config.GetString(KeyPath); ok && rel != "" {
		if filepath.IsAbs(rel) {
			dir = filepath.Clean(rel)
		} else {
			dir = filepath.Join(dir, rel)
		}
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved
	}
	return dir
}

// BuildDir returns the project's build output directory.
func (p *Project) BuildDir() string {
	return filepath.Join(p.Path.Root, BuildDirName, filepath.FromSlash(p.Path.Rel), p.Path.Name)
}

// TemplateVars returns the variables available to the project's runtime spec
// and commands. spec is the unrendered runtime spec; its workingdir, when
// set, is itself rendered and becomes WORKINGDIR.
func (p *Project) TemplateVars(spec *cfgtree.Map) (render.Vars, error) {
	cwd := p.CWD()
	vars := render.Vars{
		VarCWD:         cwd,
		VarBuildDir:    p.BuildDir(),
		VarProjName:    p.Path.Name,
		VarProjectPath: p.Path.String(),
		VarRoot:        p.Path.Root,
	}

	vars[VarWorkingDir] = cwd
	if spec != nil {
		if wd, ok := spec.GetString(runtime.KeyWorkingDir); ok {
			delete(vars, VarWorkingDir)
			rendered, err := render.String(wd, vars)
			if err != nil {
				return nil, fmt.Errorf("render %s: %w", runtime.KeyWorkingDir, err)
			}
			vars[VarWorkingDir] = rendered
		}
	}
	return vars, nil
}

// RenderedRuntime returns the project's runtime spec rendered with its
// template variables, along with the variables used.
func (p *Project) RenderedRuntime() (*cfgtree.Map, render.Vars, error) {
	spec, err := p.RuntimeSpec()
	if err != nil {
		return nil, nil, err
	}
	vars, err := p.TemplateVars(spec)
	if err != nil {
		return nil, nil, err
	}
	rendered, err := render.Map(spec, vars)
	if err != nil {
		return nil, nil, fmt.Errorf("render runtime for %s: %w", p.Path, err)
	}
	return rendered, vars, nil
}

func prefixed(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = ":" + n
	}
	return out
}
