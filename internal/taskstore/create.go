package taskstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opentask/taskin/internal/task"
	"github.com/opentask/taskin/internal/taskdoc"
)

// CreateOptions describes a new task document.
type CreateOptions struct {
	Title       string
	Type        task.Type
	Assignee    string
	Description string
	Items       []string
}

// CreateTask writes a new pending task document with the next free
// sequence number and returns its record.
func (fs *FileStore) CreateTask(ctx context.Context, opts CreateOptions) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return nil, fmt.Errorf("task title is required")
	}
	if opts.Type == "" {
		opts.Type = task.TypeFeat
	}
	if err := task.ValidateType(opts.Type); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating task directory: %w", err)
	}
	files, err := fs.listFiles()
	if err != nil {
		return nil, err
	}
	next := 1
	if n := len(files); n > 0 {
		next = files[n-1].num + 1
	}

	id := task.FormatID(next)
	name := fmt.Sprintf("task-%s-%s.md", id, task.Slugify(title))
	path := filepath.Join(fs.dir, name)

	content := taskdoc.Render(taskdoc.NewDocument{
		Number:      id,
		Title:       title,
		Status:      string(task.StatusPending),
		Type:        string(opts.Type),
		Assignee:    opts.Assignee,
		Description: opts.Description,
		Items:       opts.Items,
	}, fs.locale)

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("task file %s already exists", name)
	}
	if err := writeFile(path, content); err != nil {
		return nil, fmt.Errorf("writing task %s: %w", id, err)
	}
	fs.logger.Info("task created", "id", id, "path", path)

	return fs.readTask(taskFile{id: id, num: next, path: path})
}
