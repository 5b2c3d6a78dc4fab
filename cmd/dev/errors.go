// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rongoro/dev/internal/config"
	"github.com/rongoro/dev/internal/container"
	"github.com/rongoro/dev/internal/issue"
	"github.com/rongoro/dev/internal/project"
	"github.com/rongoro/dev/internal/projpath"
	"github.com/rongoro/dev/internal/render"
	"github.com/rongoro/dev/internal/runtime"
	"github.com/rongoro/dev/internal/tree"
	"github.com/rongoro/dev/pkg/cueutil"
)

// issueRule links error sentinels to a catalog entry and a one-line hint.
type issueRule struct {
	sentinels  []error
	id         issue.Id
	suggestion string
}

var issueRules = []issueRule{
	{
		sentinels:  []error{runtime.ErrCommandFailed, runtime.ErrSetupFailed},
		id:         issue.CommandFailedId,
		suggestion: "Re-run with the runtime's verbose setting to watch the output live",
	},
	{
		sentinels:  []error{tree.ErrRootNotFound},
		id:         issue.RootNotFoundId,
		suggestion: "Create a DEV_ROOT file at the top of the tree or pass --tree",
	},
	{
		sentinels:  []error{projpath.ErrMalformedPath, projpath.ErrMissingProjectName, projpath.ErrUnexpectedProjectName},
		id:         issue.ProjectPathInvalidId,
		suggestion: "Project paths look like //dir/sub:name",
	},
	{
		sentinels:  []error{project.ErrManifestNotFound},
		id:         issue.ManifestNotFoundId,
		suggestion: "Add a " + project.ManifestFile + " file to the directory",
	},
	{
		sentinels:  []error{project.ErrProjectNotFound},
		id:         issue.ProjectNotFoundId,
		suggestion: "Run 'dev list_projects <dir>' to see declared projects",
	},
	{
		sentinels:  []error{project.ErrUnknownCommand},
		id:         issue.CommandNotFoundId,
		suggestion: "Run 'dev list_commands <path>' to see the project's commands",
	},
	{
		sentinels:  []error{tree.ErrUnknownRuntime, project.ErrNoRuntime},
		id:         issue.RuntimeNotFoundId,
		suggestion: "Run 'dev list_runtimes' to see the runtimes declared in DEV_ROOT",
	},
	{
		sentinels: []error{runtime.ErrUnknownProvider},
		id:        issue.ProviderNotFoundId,
	},
	{
		sentinels: []error{
			render.ErrUndefinedVariable, render.ErrUnsupportedValueType, render.ErrInvalidPlaceholder,
			runtime.ErrInvalidCommand, runtime.ErrEmptyCommand,
		},
		id: issue.TemplateErrorId,
	},
	{
		sentinels: []error{cueutil.ErrInvalidDocument},
		id:        issue.InvalidDocumentId,
	},
	{
		sentinels:  []error{container.ErrEngineNotAvailable},
		id:         issue.ContainerEngineNotFoundId,
		suggestion: "Install docker or podman, or pick the other one with --engine",
	},
	{
		sentinels: []error{runtime.ErrMissingImageName},
		id:        issue.ImageNameMissingId,
	},
	{
		sentinels: []error{runtime.ErrPortRangeExhausted},
		id:        issue.PortRangeExhaustedId,
	},
	{
		sentinels: []error{config.ErrInvalidConfig, config.ErrInvalidContainerEngine, config.ErrInvalidLogLevel},
		id:        issue.ConfigLoadFailedId,
	},
}

// classifyError returns the catalog entry id matching err, or 0.
func classifyError(err error) issue.Id {
	for _, rule := range issueRules {
		for _, sentinel := range rule.sentinels {
			if errors.Is(err, sentinel) {
				return rule.id
			}
		}
	}
	return 0
}

// wrapError turns err into an actionable error for the CLI. Command failures
// additionally carry the exit code to leave the process with. Errors that
// already link to a catalog entry are returned as is.
func wrapError(err error, operation, resource string) error {
	if err == nil {
		return nil
	}
	if issue.IssueFor(err) != nil {
		return withExitCode(err)
	}

	ctx := issue.NewErrorContext().
		WithOperation(operation).
		WithResource(resource).
		Wrap(err)
	if id := classifyError(err); id != 0 {
		ctx = ctx.WithIssue(id)
		for _, rule := range issueRules {
			if rule.id == id && rule.suggestion != "" {
				ctx = ctx.WithSuggestion(rule.suggestion)
			}
		}
	}
	return withExitCode(ctx.BuildError())
}

// ExitError carries the exit code of a failed project command to Execute,
// which exits with it once the failure is rendered.
type ExitError struct {
	Code runtime.ExitCode
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// withExitCode wraps err in an ExitError when a project command failed.
func withExitCode(err error) error {
	var failed *runtime.CommandFailedError
	if errors.As(err, &failed) {
		return &ExitError{Code: failed.ExitCode, Err: err}
	}
	return err
}

// renderFailure writes the captured output of a failed command, the hints
// attached to err and the catalog guidance linked to it.
func renderFailure(w io.Writer, err error, style string) {
	var failed *runtime.CommandFailedError
	if errors.As(err, &failed) && len(failed.Output) > 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("Output of the failed command:"))
		for _, line := range failed.Output {
			fmt.Fprintln(w, VerboseStyle.Render("  "+line))
		}
	}

	for _, hint := range issue.Suggestions(err) {
		fmt.Fprintln(w, WarningStyle.Render("  • "+hint))
	}

	entry := issue.IssueFor(err)
	if entry == nil {
		return
	}
	rendered, renderErr := entry.Render(style)
	if renderErr != nil {
		slog.Warn("failed to render issue catalog entry", "issueID", entry.Id(), "error", renderErr)
		return
	}
	fmt.Fprint(w, rendered)
}
