// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the dev command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	s := &session{app: app}

	rootCmd := &cobra.Command{
		Use:   "dev",
		Short: "Run project commands across a development tree",
		Long: TitleStyle.Render("dev") + SubtitleStyle.Render(" - run project commands across a development tree") + `

A tree is the directory holding a DEV_ROOT file. Directories below it declare
projects in DEV_PROJECT files, and every project runs its commands in one of
the runtimes declared in DEV_ROOT: on the host or inside a docker or podman
container.

Projects are addressed as //dir/sub:name from the tree root, or relative to
the current directory as dir/sub:name.

` + SubtitleStyle.Render("Examples:") + `
  dev build //world/example.com:project_foo     Run the project's build command
  dev run //tools:lint check                     Run any declared command
  dev print_config //runtimes:test_runtime       Show the merged configuration
  dev list_projects //world/example.com          List projects of a directory`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.load(cmd.Context())
		},
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&s.flags.tree, "tree", "C", "", "resolve project paths from this directory instead of the current one")
	flags.BoolVarP(&s.flags.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&s.flags.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/dev/config.cue)")
	flags.StringVar(&s.flags.engine, "engine", "", "container engine for the 'container' provider (docker or podman)")

	rootCmd.AddCommand(
		newPrintConfigCommand(s),
		newBuildCommand(s),
		newTestCommand(s),
		newRunCommand(s),
		newSetupCommand(s),
		newListCommandsCommand(s),
		newListProjectsCommand(s),
		newListRuntimesCommand(s),
		newFindRootCommand(s),
		newImagesCommand(s),
		newRmImageCommand(s),
		newWatchCommand(s),
		newConfigCommand(s),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the code of the failed command, if
// any. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)

	err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err == nil {
		return
	}

	renderFailure(app.stderr, err, "dark")
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code.ProcessExitCode())
	}
	os.Exit(1)
}
