// Package cli is the taskin command tree. Commands stay thin: they load
// the configuration, build the components they need and print results.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/opentask/taskin/internal/config"
)

// app carries what every command needs once the root has loaded.
type app struct {
	version string
	root    string
	debug   bool
	cfg     *config.Config
	logger  *log.Logger
	stderr  io.Writer
}

// newRootCmd builds the full command tree. Log output goes to stderr.
func newRootCmd(version string, stderr io.Writer) *cobra.Command {
	a := &app{version: version, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "taskin",
		Short: "Markdown task lifecycle, linting, metrics and live sync",
		Long: `taskin manages task documents (task-NNN-title.md) in a project directory.

It moves tasks through their lifecycle, validates and repairs their metadata,
reports metrics from the task list and git history, and serves live updates
to connected clients over WebSocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.root, "root", "", "Project root (default: nearest directory with .taskin or .git)")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	for _, c := range lifecycleCmds(a) {
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(
		listCmd(a),
		newCmd(a),
		lintCmd(a),
		statsCmd(a),
		serveCmd(a),
		mcpCmd(a),
		configCmd(a),
		versionCmd(a),
	)
	rootCmd.Version = version
	return rootCmd
}

// load resolves the project root, reads the configuration and builds the
// root logger.
func (a *app) load(cmd *cobra.Command) error {
	if a.root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		a.root = config.FindProjectRoot(cwd)
	}

	cfg, err := config.Load(a.root)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Debug = true
	}
	a.cfg = cfg

	a.logger = log.NewWithOptions(a.stderr, log.Options{ReportTimestamp: true, Prefix: "taskin"})
	if cfg.Debug {
		a.logger.SetLevel(log.DebugLevel)
	}
	a.logger.Debug("configuration loaded", "root", a.root, "tasks", cfg.TasksPath(a.root))
	return nil
}

// Execute runs the command line and returns the first error.
func Execute(version string) error {
	rootCmd := newRootCmd(version, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		return err
	}
	return nil
}
