package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opentask/taskin/internal/taskdoc"
)

// errLintFailed makes the process exit non-zero after a lint report.
var errLintFailed = errors.New("lint found errors")

func lintCmd(a *app) *cobra.Command {
	var fix, asJSON bool
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Validate every task document (optionally fixing metadata first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := a.fileStore()
			if err != nil {
				return err
			}
			result, err := fs.Lint(cmd.Context(), fix)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				printLint(cmd, result)
			}
			if !result.Valid {
				return fmt.Errorf("%w: %d error(s)", errLintFailed, result.ErrorCount)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Repair metadata before validating")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func printLint(cmd *cobra.Command, r taskdoc.LintResult) {
	out := cmd.OutOrStdout()
	for _, is := range r.Issues {
		loc := is.Source
		if is.Line > 0 {
			loc = fmt.Sprintf("%s:%d", is.Source, is.Line)
		}
		fmt.Fprintf(out, "%s %s %s\n", mutedStyle.Render(loc), renderSeverity(is.Severity), is.Message)
		if is.Suggestion != "" {
			fmt.Fprintf(out, "    %s\n", mutedStyle.Render("→ "+is.Suggestion))
		}
	}

	summary := fmt.Sprintf("%d file(s), %d error(s), %d warning(s), %d info", r.Files, r.ErrorCount, r.WarningCount, r.InfoCount)
	if r.Fixed > 0 {
		summary += fmt.Sprintf(", %d fixed", r.Fixed)
	}
	if r.Valid {
		fmt.Fprintln(out, okStyle.Render("✓"), summary)
	} else {
		fmt.Fprintln(out, errorStyle.Render("✗"), summary)
	}
}
