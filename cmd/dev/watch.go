// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rongoro/dev/internal/project"
	"github.com/rongoro/dev/internal/watch"
)

func newWatchCommand(s *session) *cobra.Command {
	var (
		patterns []string
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <path> <command>",
		Short: "Re-run a project command whenever its sources change",
		Long: `Run a project command, then run it again every time a file in the
project's source directory changes. Files are selected with --pattern, or the
project's "watch" list when no pattern is given; without either every file
counts. The project's build directory is never watched.

The command runs with live output. Failures are reported and watching goes on
until interrupted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, command := args[0], args[1]
			dir, err := s.dir()
			if err != nil {
				return err
			}
			p, err := project.Lookup(dir, raw)
			if err != nil {
				return wrapError(err, "look up project", raw)
			}
			if _, err := p.Command(command); err != nil {
				return wrapError(err, "watch "+command, raw)
			}
			if len(patterns) == 0 {
				if patterns, err = p.WatchPatterns(); err != nil {
					return wrapError(err, "read watch patterns", raw)
				}
			}

			svc := s.service(cmd.OutOrStdout())
			verbose := true
			run := func(ctx context.Context) {
				if _, err := svc.Run(ctx, dir, raw, command, project.RunOptions{Verbose: &verbose}); err != nil && ctx.Err() == nil {
					fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error:"), wrapError(err, "run "+command, raw))
				}
			}

			cwd := p.CWD()
			w, err := watch.New(watch.Config{
				Root:     cwd,
				Patterns: patterns,
				Ignore:   buildDirIgnore(cwd, p.BuildDir()),
				Debounce: debounce,
				OnChange: func(ctx context.Context, changed []string) error {
					fmt.Fprintln(cmd.ErrOrStderr(), SubtitleStyle.Render(fmt.Sprintf("%d file(s) changed, running %s", len(changed), command)))
					run(ctx)
					return nil
				},
			})
			if err != nil {
				return wrapError(err, "watch", cwd)
			}

			run(cmd.Context())
			fmt.Fprintln(cmd.ErrOrStderr(), SubtitleStyle.Render("watching "+cwd))
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().StringArrayVarP(&patterns, "pattern", "p", nil, "glob of files that trigger a re-run, relative to the project (repeatable)")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before re-running")
	return cmd
}

// buildDirIgnore returns an ignore pattern for buildDir when it lies inside
// root.
func buildDirIgnore(root, buildDir string) []string {
	rel, err := filepath.Rel(root, buildDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	return []string{filepath.ToSlash(rel) + "/**"}
}
