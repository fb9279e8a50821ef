package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opentask/taskin/internal/lifecycle"
	"github.com/opentask/taskin/internal/task"
	"github.com/opentask/taskin/internal/taskstore"
)

// transitionDef describes one lifecycle command.
type transitionDef struct {
	use    string
	short  string
	action string
	done   string
}

var transitionDefs = []transitionDef{
	{"start", "Start a task (pending or blocked to in-progress)", lifecycle.ActionStart, "started"},
	{"resume", "Resume a paused task", lifecycle.ActionStart, "resumed"},
	{"finish", "Finish a task (any status to done)", lifecycle.ActionFinish, "finished"},
	{"pause", "Return a task to pending", lifecycle.ActionPause, "paused"},
	{"block", "Mark a task blocked", lifecycle.ActionBlock, "blocked"},
	{"unblock", "Return a blocked task to pending", lifecycle.ActionUnblock, "unblocked"},
}

func lifecycleCmds(a *app) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(transitionDefs))
	for _, def := range transitionDefs {
		cmds = append(cmds, transitionCmd(a, def))
	}
	return cmds
}

func transitionCmd(a *app, def transitionDef) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   def.use + " <task-id>",
		Short: def.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeStore, err := a.storage(ctx, remote)
			if err != nil {
				return err
			}
			defer closeStore()

			m, closeJournal := a.manager(store, !remote)
			defer closeJournal()

			t, err := m.Do(ctx, def.action, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s task %s: %s (%s)\n",
				okStyle.Render(strings.ToUpper(def.done[:1])+def.done[1:]), t.ID, t.Title, renderStatus(t.Status))
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Apply through the sync server instead of the local directory")
	return cmd
}

func listCmd(a *app) *cobra.Command {
	var (
		status, typ    string
		asJSON, remote bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeStore, err := a.storage(ctx, remote)
			if err != nil {
				return err
			}
			defer closeStore()

			tasks, err := filterTasks(ctx, store, status, typ)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No tasks."))
				return nil
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-5s %-12s %-9s %s", "ID", "STATUS", "TYPE", "TITLE")))
			for _, t := range tasks {
				// Pad before styling: escape codes break width formatting.
				st := renderStatus(t.Status) + strings.Repeat(" ", max(0, 12-len(t.Status)))
				fmt.Fprintf(out, "%-5s %s %-9s %s\n", t.ID, st, t.Type, t.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only tasks with this status")
	cmd.Flags().StringVar(&typ, "type", "", "Only tasks of this type")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().BoolVar(&remote, "remote", false, "Read from the sync server instead of the local directory")
	return cmd
}

func filterTasks(ctx context.Context, store task.Storage, status, typ string) ([]task.Task, error) {
	var wantStatus task.Status
	if status != "" {
		s, err := task.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		wantStatus = s
	}
	var wantType task.Type
	if typ != "" {
		t, err := task.ParseType(typ)
		if err != nil {
			return nil, err
		}
		wantType = t
	}

	all, err := store.GetAllTasks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]task.Task, 0, len(all))
	for _, t := range all {
		if wantStatus != "" && t.Status != wantStatus {
			continue
		}
		if wantType != "" && t.Type != wantType {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func newCmd(a *app) *cobra.Command {
	var (
		typ, assignee, description string
		items                      []string
	)
	cmd := &cobra.Command{
		Use:   "new <title>",
		Short: "Create a task document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tt, err := task.ParseType(typ)
			if err != nil {
				return err
			}
			fs, err := a.fileStore()
			if err != nil {
				return err
			}
			t, err := fs.CreateTask(cmd.Context(), taskstore.CreateOptions{
				Title:       strings.Join(args, " "),
				Type:        tt,
				Assignee:    assignee,
				Description: description,
				Items:       items,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s task %s: %s\n  %s\n",
				okStyle.Render("Created"), t.ID, t.Title, mutedStyle.Render(t.FilePath))
			return nil
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", string(task.TypeFeat), "Task type (feat, fix, refactor, docs, test, chore)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Assignee")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description text")
	cmd.Flags().StringArrayVar(&items, "item", nil, "Checklist item (repeatable)")
	return cmd
}
