// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int //nolint:revive // matches the catalog naming used across the CLI

const (
	RootNotFoundId Id = iota + 1
	ProjectPathInvalidId
	ManifestNotFoundId
	ProjectNotFoundId
	CommandNotFoundId
	RuntimeNotFoundId
	ProviderNotFoundId
	TemplateErrorId
	InvalidDocumentId
	ContainerEngineNotFoundId
	ImageNameMissingId
	PortRangeExhaustedId
	CommandFailedId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string //nolint:revive // matches the catalog naming used across the CLI

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id { //nolint:revive // matches the catalog naming used across the CLI
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the full guidance page, including the "See also" list.
func (i *Issue) Markdown() string {
	var b strings.Builder
	b.WriteString(string(i.mdMsg))
	if len(i.extLinks) > 0 {
		b.WriteString("\n\n## See also\n")
		for _, link := range i.extLinks {
			b.WriteString("- <" + string(link) + ">\n")
		}
	}
	return b.String()
}

// Render renders the guidance page for a terminal using the given glamour
// style ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	rootNotFoundIssue = &Issue{
		id: RootNotFoundId,
		mdMsg: `
# Not inside a development tree!

No ` + "`DEV_ROOT`" + ` file was found in the current directory or any of its parents.

## Things you can try:
- Change into a directory of the tree, or point at it explicitly:
~~~
$ dev -C /path/to/tree list_projects //
~~~

- Create the marker at the top of the tree:
~~~json
{
  "version": "1",
  "runtimes": {
    "host": {"provider": "local", "cwd": "$CWD"}
  },
  "project_defaults": {"runtime": "host"}
}
~~~`,
	}

	projectPathInvalidIssue = &Issue{
		id: ProjectPathInvalidId,
		mdMsg: `
# Bad project path!

Project paths look like ` + "`//dir/sub:name`" + `: a directory relative to the tree root,
followed by a project name made of letters, digits, ` + "`_`" + ` and ` + "`-`" + `.

## Things you can try:
- Commands that act on one project need the ` + "`:name`" + ` suffix:
~~~
$ dev build //world/example.com:project_foo
~~~

- ` + "`list_projects`" + ` takes a directory only:
~~~
$ dev list_projects //world/example.com
~~~`,
	}

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# No project manifest!

The directory exists but has no ` + "`DEV_PROJECT`" + ` file declaring projects.

## Example manifest:
~~~json
{
  "project_foo": {
    "path": "project_foo",
    "commands": {"build": "make -C $CWD", "test": "make -C $CWD test"}
  }
}
~~~`,
	}

	projectNotFoundIssue = &Issue{
		id: ProjectNotFoundId,
		mdMsg: `
# Project not declared!

The manifest in that directory does not declare a project with this name.

## Things you can try:
- List the declared projects:
~~~
$ dev list_projects //world/example.com
~~~`,
	}

	commandNotFoundIssue = &Issue{
		id: CommandNotFoundId,
		mdMsg: `
# Command not declared!

The project (merged with the tree's ` + "`project_defaults`" + `) has no such command.

## Things you can try:
- List the commands the project declares:
~~~
$ dev list_commands //world/example.com:project_foo
~~~`,
	}

	runtimeNotFoundIssue = &Issue{
		id: RuntimeNotFoundId,
		mdMsg: `
# Unknown runtime!

The project's ` + "`runtime`" + ` does not name an entry of ` + "`runtimes`" + ` in ` + "`DEV_ROOT`" + `.

## Things you can try:
- List the runtimes the tree defines:
~~~
$ dev list_runtimes
~~~`,
	}

	providerNotFoundIssue = &Issue{
		id: ProviderNotFoundId,
		mdMsg: `
# Unknown runtime provider!

Every runtime needs a ` + "`provider`" + ` naming a backend. Supported providers:

- ` + "`local`" + ` runs commands as host processes
- ` + "`docker`" + ` runs commands in a Docker container
- ` + "`podman`" + ` runs commands in a Podman container`,
	}

	templateErrorIssue = &Issue{
		id: TemplateErrorId,
		mdMsg: `
# Template substitution failed!

Runtime settings and commands may reference these variables as ` + "`$NAME`" + ` or ` + "`${NAME}`" + `:

| Variable | Value |
|---|---|
| CWD | project directory |
| BUILDDIR | build/<dir>/<project> under the tree root |
| PROJNAME | project name |
| PROJECTPATH | //dir:project |
| ROOT | tree root |
| WORKINGDIR | runtime working directory, defaults to CWD |

Write ` + "`$$`" + ` for a literal dollar sign. Only strings, booleans, mappings and
lists may appear in runtime settings.`,
	}

	invalidDocumentIssue = &Issue{
		id: InvalidDocumentId,
		mdMsg: `
# Invalid configuration file!

` + "`DEV_ROOT`" + ` and ` + "`DEV_PROJECT`" + ` are JSON documents. Comments and trailing
commas are accepted. Each error above names the offending field.`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# No container engine available!

Neither ` + "`docker`" + ` nor ` + "`podman`" + ` could be reached.

## Things you can try:
- Start the Docker daemon, or install Podman
- Pick the engine explicitly:
~~~
$ dev --engine podman build //runtimes:base
~~~`,
		extLinks: []HttpLink{
			"https://docs.docker.com/engine/install/",
			"https://podman.io/docs/installation",
		},
	}

	imageNameMissingIssue = &Issue{
		id: ImageNameMissingId,
		mdMsg: `
# Container runtime without an image!

Container runtimes must set ` + "`image_name`" + `:

~~~json
"base": {"provider": "docker", "image_name": "base", "project": "//runtimes:base"}
~~~`,
	}

	portRangeExhaustedIssue = &Issue{
		id: PortRangeExhaustedId,
		mdMsg: `
# No free local ports!

Every port from the scan start up to 65535 is in use, so the container's
` + "`expose_ports`" + ` could not be published.

## Things you can try:
- Stop containers left over from earlier runs:
~~~
$ docker ps
~~~`,
	}

	commandFailedIssue = &Issue{
		id: CommandFailedId,
		mdMsg: `
# Command failed!

The command ran but exited with a non-zero status. Its output is shown above.

## Things you can try:
- Re-run with live output:
~~~
$ dev test //world/example.com:project_foo
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load tool configuration!

The user configuration (` + "`config.cue`" + ` or ` + "`config.toml`" + ` in the dev config
directory) could not be read.

## Example config.cue:
~~~cue
container_engine: "podman"
container: {
	name: "dev-tree-container"
	working_dir: "/project"
}
log: level: "info"
~~~`,
	}

	issues = map[Id]*Issue{
		rootNotFoundIssue.Id():            rootNotFoundIssue,
		projectPathInvalidIssue.Id():      projectPathInvalidIssue,
		manifestNotFoundIssue.Id():        manifestNotFoundIssue,
		projectNotFoundIssue.Id():         projectNotFoundIssue,
		commandNotFoundIssue.Id():         commandNotFoundIssue,
		runtimeNotFoundIssue.Id():         runtimeNotFoundIssue,
		providerNotFoundIssue.Id():        providerNotFoundIssue,
		templateErrorIssue.Id():           templateErrorIssue,
		invalidDocumentIssue.Id():         invalidDocumentIssue,
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		imageNameMissingIssue.Id():        imageNameMissingIssue,
		portRangeExhaustedIssue.Id():      portRangeExhaustedIssue,
		commandFailedIssue.Id():           commandFailedIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	values := maps.Values(issues)
	sort.Slice(values, func(a, b int) bool { return values[a].id < values[b].id })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
