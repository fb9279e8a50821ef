package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opentask/taskin/internal/config"
)

func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show merged configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := yaml.Marshal(a.cfg)
				if err != nil {
					return fmt.Errorf("marshaling config: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "# Merged configuration (defaults + global + project + environment)")
				fmt.Fprint(out, string(data))
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show configuration file paths",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Global:  %s\n", config.GlobalPath())
				fmt.Fprintf(out, "Project: %s\n", config.ProjectPath(a.root))
			},
		},
	)
	return cmd
}

func versionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taskin %s\n", a.version)
		},
	}
}
