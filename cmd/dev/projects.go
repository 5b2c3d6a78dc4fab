// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rongoro/dev/internal/project"
	"github.com/rongoro/dev/internal/runtime"
	"github.com/rongoro/dev/internal/tree"
	"github.com/rongoro/dev/pkg/cfgtree"
)

// printConfigIndent matches the indentation of the original tool's output.
const printConfigIndent = "    "

// runFlags are shared by the commands that execute a project command.
type runFlags struct {
	printOutput bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.printOutput, "print-output", "o", false, "print the captured output after the command succeeds")
}

func newPrintConfigCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "print_config <path>",
		Short: "Print a project's merged configuration as JSON",
		Long: `Print the project's configuration merged over the tree's project
defaults, before template variables are substituted. Keys are sorted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := s.dir()
			if err != nil {
				return err
			}
			p, err := project.Lookup(dir, args[0])
			if err != nil {
				return wrapError(err, "look up project", args[0])
			}
			data, err := cfgtree.Encode(p.Config, printConfigIndent)
			if err != nil {
				return fmt.Errorf("encode config of %s: %w", p.Path, err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newBuildCommand(s *session) *cobra.Command {
	var rf runFlags
	cmd := &cobra.Command{
		Use:   "build <path>",
		Short: "Run a project's build command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runProject(cmd, args[0], project.BuildCommand, project.RunOptions{}, rf)
		},
	}
	rf.register(cmd)
	return cmd
}

func newTestCommand(s *session) *cobra.Command {
	var rf runFlags
	cmd := &cobra.Command{
		Use:   "test <path>",
		Short: "Run a project's test command with live output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose := true
			return s.runProject(cmd, args[0], "test", project.RunOptions{Verbose: &verbose}, rf)
		},
	}
	rf.register(cmd)
	return cmd
}

func newRunCommand(s *session) *cobra.Command {
	var (
		rf      runFlags
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "run <path> <command>",
		Short: "Run any command declared by a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := project.RunOptions{}
			if cmd.Flags().Changed("live") {
				opts.Verbose = &verbose
			}
			return s.runProject(cmd, args[0], args[1], opts, rf)
		},
	}
	rf.register(cmd)
	cmd.Flags().BoolVar(&verbose, "live", false, "override the runtime's verbose setting")
	return cmd
}

func newSetupCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "setup <path>",
		Short: "Provision a project's runtime, e.g. build its container image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := s.dir()
			if err != nil {
				return err
			}
			if err := s.service(cmd.OutOrStdout()).Setup(cmd.Context(), dir, args[0]); err != nil {
				return wrapError(err, "set up runtime", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("runtime ready for "+args[0]))
			return nil
		},
	}
}

func newListCommandsCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list_commands <path>",
		Short: "List the commands a project declares",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := s.dir()
			if err != nil {
				return err
			}
			p, err := project.Lookup(dir, args[0])
			if err != nil {
				return wrapError(err, "look up project", args[0])
			}
			return printLines(cmd.OutOrStdout(), p.Commands().SortedKeys())
		},
	}
}

func newListProjectsCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list_projects [dir]",
		Short: "List the projects declared in a directory",
		Long: `List the projects declared in the DEV_PROJECT file of a directory,
given as //dir or relative to the current directory (default ".").`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := s.dir()
			if err != nil {
				return err
			}
			target := "."
			if len(args) == 1 {
				target = args[0]
			}
			names, err := project.ListProjects(dir, target)
			if err != nil {
				return wrapError(err, "list projects", target)
			}
			return printLines(cmd.OutOrStdout(), names)
		},
	}
}

func newListRuntimesCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list_runtimes",
		Short: "List the runtimes declared in DEV_ROOT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := s.dir()
			if err != nil {
				return err
			}
			g, err := tree.Load(dir)
			if err != nil {
				return wrapError(err, "load tree configuration", dir)
			}
			out := cmd.OutOrStdout()
			for _, name := range g.RuntimeNames() {
				spec, err := g.Runtime(name)
				if err != nil {
					return err
				}
				provider, _ := spec.GetString(runtime.KeyProvider)
				fmt.Fprintf(out, "%s\t%s\n", name, SubtitleStyle.Render(provider))
			}
			return nil
		},
	}
}

func newFindRootCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "findroot",
		Short: "Print the root of the tree containing the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := s.dir()
			if err != nil {
				return err
			}
			root, err := tree.FindRoot(dir)
			if err != nil {
				return wrapError(err, "find tree root", dir)
			}
			fmt.Fprintln(cmd.OutOrStdout(), root)
			return nil
		},
	}
}

// runProject runs command of the project raw, streaming live output to the
// command's stdout.
func (s *session) runProject(cmd *cobra.Command, raw, command string, opts project.RunOptions, rf runFlags) error {
	dir, err := s.dir()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	lines, err := s.service(out).Run(cmd.Context(), dir, raw, command, opts)
	if err != nil {
		return wrapError(err, "run "+command, raw)
	}
	if rf.printOutput {
		return printLines(out, lines)
	}
	return nil
}

func printLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
