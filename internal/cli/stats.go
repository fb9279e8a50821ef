package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/opentask/taskin/internal/metrics"
)

func statsCmd(a *app) *cobra.Command {
	var user, period, taskID, format string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show team, user or task metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := metrics.ParsePeriod(period)
			if err != nil {
				return err
			}
			switch format {
			case "text", "json", "csv":
			default:
				return fmt.Errorf("unknown format %q: must be one of: text, json, csv", format)
			}

			fs, err := a.fileStore()
			if err != nil {
				return err
			}
			reg, err := a.registry()
			if err != nil {
				return err
			}
			opts := []metrics.Option{
				metrics.WithRegistry(reg),
				metrics.WithLogger(a.logger.WithPrefix("metrics")),
			}
			if git := a.analyzer(); git.IsValidRepository(cmd.Context()) {
				opts = append(opts, metrics.WithHistory(git))
			} else {
				a.logger.Debug("not a git repository, code metrics disabled", "root", a.root)
			}
			if j, err := a.openJournal(); err != nil {
				a.logger.Warn("transition journal unavailable", "err", err)
			} else {
				defer j.Close()
				opts = append(opts, metrics.WithTimeline(j))
			}
			calc := metrics.NewCalculator(fs, opts...)

			var report any
			switch {
			case taskID != "":
				report, err = calc.Task(cmd.Context(), taskID)
			case user != "":
				report, err = calc.User(cmd.Context(), user, p)
			default:
				report, err = calc.Team(cmd.Context(), p)
			}
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), format, report)
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Report for one person (id, name, email or alias)")
	cmd.Flags().StringVarP(&period, "period", "p", string(metrics.PeriodMonth), "day, week, month, quarter, year or all")
	cmd.Flags().StringVar(&taskID, "task", "", "Report for one task")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "text, json or csv")
	return cmd
}

func writeReport(w io.Writer, format string, report any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(csvRows(report)); err != nil {
			return err
		}
		return cw.Error()
	}
	return writeText(w, report)
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

// csvRows flattens a report into metric,value rows (team reports add one
// row per contributor; task reports one row per transition).
func csvRows(report any) [][]string {
	rows := [][]string{{"metric", "value"}}
	add := func(k, v string) { rows = append(rows, []string{k, v}) }
	counts := func(c metrics.TaskCounts) {
		add("tasks_total", itoa(c.Total))
		add("tasks_completed", itoa(c.Completed))
		add("tasks_in_progress", itoa(c.InProgress))
		add("tasks_pending", itoa(c.Pending))
		add("tasks_blocked", itoa(c.Blocked))
		add("completion_rate", ftoa(c.CompletionRate))
	}
	code := func(c metrics.CodeMetrics) {
		add("commits", itoa(c.Commits))
		add("lines_added", itoa(c.LinesAdded))
		add("lines_removed", itoa(c.LinesRemoved))
		add("net_change", itoa(c.NetChange))
		add("characters", itoa(c.Characters))
		add("files_changed", itoa(c.FilesChanged))
	}

	switch r := report.(type) {
	case *metrics.UserMetrics:
		add("user", r.User.ID)
		add("period", string(r.Period))
		counts(r.Tasks)
		for _, k := range sortedKeys(r.Types) {
			add("type:"+string(k), itoa(r.Types[k]))
		}
		code(r.Code)
		add("longest_streak", itoa(r.Temporal.LongestStreak))
		add("trend", string(r.Temporal.Trend))
		add("average_completion_hours", ftoa(r.AverageCompletionHours))
	case *metrics.TeamMetrics:
		add("period", string(r.Period))
		counts(r.Tasks)
		code(r.Code)
		for _, c := range r.Contributors {
			add("contributor:"+c.User.ID+":commits", itoa(c.Commits))
			add("contributor:"+c.User.ID+":tasks_completed", itoa(c.TasksCompleted))
		}
	case *metrics.TaskMetrics:
		add("task", r.Task.ID)
		add("status", string(r.Task.Status))
		add("duration_hours", ftoa(r.DurationHours))
		code(r.Code)
		for _, e := range r.History {
			add("transition:"+e.At.Format(time.RFC3339), string(e.From)+"->"+string(e.To))
		}
	}
	return rows
}

func writeText(w io.Writer, report any) error {
	line := func(label string, value any) {
		fmt.Fprintf(w, "  %-22s %v\n", mutedStyle.Render(label), value)
	}
	counts := func(c metrics.TaskCounts) {
		line("Tasks", c.Total)
		line("Completed", c.Completed)
		line("In progress", c.InProgress)
		line("Pending", c.Pending)
		line("Completion rate", fmt.Sprintf("%.0f%%", c.CompletionRate*100))
	}
	code := func(c metrics.CodeMetrics) {
		line("Commits", c.Commits)
		line("Lines", fmt.Sprintf("+%d / -%d (net %d)", c.LinesAdded, c.LinesRemoved, c.NetChange))
		line("Files changed", c.FilesChanged)
	}

	switch r := report.(type) {
	case *metrics.UserMetrics:
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s (%s)", r.User.Name, r.Period)))
		counts(r.Tasks)
		for _, k := range sortedKeys(r.Types) {
			line("Type "+string(k), r.Types[k])
		}
		code(r.Code)
		line("Characters (approx.)", r.Code.Characters)
		line("Longest streak", fmt.Sprintf("%d day(s)", r.Temporal.LongestStreak))
		line("Trend", r.Temporal.Trend)
		if r.AverageCompletionHours > 0 {
			line("Avg. completion", fmt.Sprintf("%.1fh", r.AverageCompletionHours))
		}
	case *metrics.TeamMetrics:
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Team (%s)", r.Period)))
		counts(r.Tasks)
		for _, k := range sortedKeys(r.Status) {
			line("Status "+string(k), r.Status[k])
		}
		code(r.Code)
		if len(r.Contributors) > 0 {
			fmt.Fprintln(w, headerStyle.Render("Contributors"))
			for _, c := range r.Contributors {
				fmt.Fprintf(w, "  %-22s %d commit(s), %d task(s) done\n", c.User.Name, c.Commits, c.TasksCompleted)
			}
		}
	case *metrics.TaskMetrics:
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Task %s: %s", r.Task.ID, r.Task.Title)))
		line("Status", renderStatus(r.Task.Status))
		if r.Assignee != "" {
			line("Assignee", r.Assignee)
		}
		if r.Started != nil {
			line("Started", r.Started.Format(time.RFC3339))
		}
		if r.Finished != nil {
			line("Finished", r.Finished.Format(time.RFC3339))
		}
		if r.DurationHours > 0 {
			line("Duration", fmt.Sprintf("%.1fh", r.DurationHours))
		}
		code(r.Code)
		for _, e := range r.History {
			fmt.Fprintf(w, "  %s %s → %s\n", mutedStyle.Render(e.At.Format(time.RFC3339)), e.From, e.To)
		}
	default:
		return fmt.Errorf("unsupported report %T", report)
	}
	return nil
}

// sortedKeys is used for deterministic map output.
func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
