// Package taskstore implements task.Storage over a directory of task
// documents named task-NNN-title.md.
package taskstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/natefinch/atomic"

	"github.com/opentask/taskin/internal/task"
	"github.com/opentask/taskin/internal/taskdoc"
)

// taskFileName matches task documents and captures their sequence number.
var taskFileName = regexp.MustCompile(`^task-(\d+)-.*\.md$`)

// FileStore implements task.Storage using the local filesystem. It takes
// no lock on the directory: concurrent external edits are last-write-wins.
type FileStore struct {
	dir    string
	parser *taskdoc.Parser
	locale taskdoc.Locale
	policy taskdoc.Policy
	logger *log.Logger
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLocale sets the locale used for labels written into new lines and
// new documents.
func WithLocale(loc taskdoc.Locale) Option {
	return func(fs *FileStore) { fs.locale = loc }
}

// WithPolicy sets the validation policy used by Lint.
func WithPolicy(p taskdoc.Policy) Option {
	return func(fs *FileStore) { fs.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(fs *FileStore) { fs.logger = l }
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string, opts ...Option) *FileStore {
	fs := &FileStore{
		dir:    dir,
		parser: taskdoc.DefaultParser,
		locale: taskdoc.English,
		policy: taskdoc.DefaultPolicy(),
		logger: log.NewWithOptions(io.Discard, log.Options{Prefix: "taskstore"}),
	}
	for _, o := range opts {
		o(fs)
	}
	return fs
}

// Dir returns the task directory.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// taskFile is one document found in the directory.
type taskFile struct {
	id   string
	num  int
	path string
}

// listFiles returns the task documents sorted by sequence number. A missing
// directory yields no files.
func (fs *FileStore) listFiles() ([]taskFile, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading task directory: %w", err)
	}

	var files []taskFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := taskFileName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		files = append(files, taskFile{id: m[1], num: n, path: filepath.Join(fs.dir, e.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].num < files[j].num })
	return files, nil
}

// GetAllTasks loads every task document in the directory.
func (fs *FileStore) GetAllTasks(ctx context.Context) ([]task.Task, error) {
	files, err := fs.listFiles()
	if err != nil {
		return nil, err
	}

	tasks := make([]task.Task, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := fs.readTask(f)
		if err != nil {
			fs.logger.Warn("skipping unreadable task", "path", f.path, "err", err)
			continue
		}
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

// FindTask loads the task whose sequence number matches id.
func (fs *FileStore) FindTask(ctx context.Context, id string) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := fs.locate(id)
	if err != nil {
		return nil, err
	}
	return fs.readTask(f)
}

func (fs *FileStore) locate(id string) (taskFile, error) {
	files, err := fs.listFiles()
	if err != nil {
		return taskFile{}, err
	}
	for _, f := range files {
		if task.SameID(f.id, id) {
			return f, nil
		}
	}
	return taskFile{}, task.NotFound(id)
}

// UpdateTask writes the task's status back into the inline header of its
// document. Type and assignee are written only when they differ from what
// the document already yields, so the fallback values of a load never
// overwrite or invent metadata. Other fields are not persisted.
func (fs *FileStore) UpdateTask(ctx context.Context, t *task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := task.ValidateStatus(t.Status); err != nil {
		return err
	}

	f, err := fs.locate(t.ID)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("reading task %s: %w", t.ID, err)
	}
	content := string(data)

	current := fs.toTask(f, content, time.Time{})
	values := map[taskdoc.Field]string{taskdoc.FieldStatus: string(t.Status)}
	if t.Type != "" {
		if err := task.ValidateType(t.Type); err != nil {
			return err
		}
		if t.Type != current.Type {
			values[taskdoc.FieldType] = string(t.Type)
		}
	}
	if a := strings.TrimSpace(t.Assignee); a != "" && a != strings.TrimSpace(current.Assignee) {
		values[taskdoc.FieldAssignee] = a
	}

	loc := taskdoc.DetectLocale(content)
	updated := fs.parser.SetFields(content, values, loc)
	if updated == content {
		return nil
	}
	if err := writeFile(f.path, updated); err != nil {
		return fmt.Errorf("writing task %s: %w", t.ID, err)
	}
	fs.logger.Debug("task updated", "id", t.ID, "status", t.Status, "path", f.path)
	return nil
}

func (fs *FileStore) readTask(f taskFile) (*task.Task, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, task.NotFound(f.id)
		}
		return nil, fmt.Errorf("reading task %s: %w", f.id, err)
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return nil, fmt.Errorf("stat task %s: %w", f.id, err)
	}
	return fs.toTask(f, string(data), info.ModTime()), nil
}

// toTask builds a record from a document. Missing or unknown values fall
// back to pending and feat; Lint reports them.
func (fs *FileStore) toTask(f taskFile, content string, modTime time.Time) *task.Task {
	md := fs.parser.Extract(content)

	status, err := task.ParseStatus(md.Status)
	if err != nil {
		status = task.StatusPending
	}
	typ, err := task.ParseType(md.Type)
	if err != nil {
		typ = task.TypeFeat
	}
	title := md.Title
	if title == "" {
		title = strings.TrimSuffix(strings.TrimPrefix(filepath.Base(f.path), "task-"+f.id+"-"), ".md")
	}

	return &task.Task{
		ID:         f.id,
		Title:      title,
		Status:     status,
		Type:       typ,
		Assignee:   md.Assignee,
		ModifiedAt: modTime,
		FilePath:   f.path,
		Content:    content,
	}
}

// writeFile replaces path atomically.
func writeFile(path, content string) error {
	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return err
	}
	// atomic.WriteFile does not set permissions on new files.
	return os.Chmod(path, 0o644)
}
