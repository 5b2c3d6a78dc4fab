// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rongoro/dev/internal/config"
)

// newConfigCommand creates the `dev config` command tree.
func newConfigCommand(s *session) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect dev's own configuration",
		Long: `Inspect dev's own configuration.

Configuration is read from (first match wins):
  - the file given with --config
  - $XDG_CONFIG_HOME/dev/config.cue or config.toml
    (~/Library/Application Support/dev on macOS)

Every key can be overridden with a DEV_ environment variable, e.g.
DEV_CONTAINER_ENGINE=podman or DEV_LOG_LEVEL=debug.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			keyStyle, valueStyle := CmdStyle, SuccessStyle

			fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
			fmt.Fprintln(out)
			if s.cfgPath != "" {
				fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), s.cfgPath)
			} else {
				fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
			}
			fmt.Fprintln(out)

			cfg := s.cfg
			rows := [][2]string{
				{"container_engine", cfg.ContainerEngine.String()},
				{"container.name", cfg.Container.Name},
				{"container.working_dir", cfg.Container.WorkingDir},
				{"container.port_probe_timeout", cfg.Container.PortProbeTimeout.String()},
				{"container.kill_timeout", cfg.Container.KillTimeout.String()},
				{"log.level", cfg.Log.Level.String()},
			}
			for _, row := range rows {
				fmt.Fprintf(out, "%s: %s\n", keyStyle.Render(row[0]), valueStyle.Render(row[1]))
			}
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(s.cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the default configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(dir, config.ConfigFileName+".cue"))
			return nil
		},
	})

	return cfgCmd
}
