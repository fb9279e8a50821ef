// Package metrics computes user, team and task statistics from the task
// store, the git history and the transition journal.
//
// Only a missing git executable aborts a computation. Absent history,
// a missing journal, or a repository without commits yield zero values.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/opentask/taskin/internal/gitlog"
	"github.com/opentask/taskin/internal/journal"
	"github.com/opentask/taskin/internal/task"
	"github.com/opentask/taskin/internal/users"
)

// charsPerLine approximates the characters typed per changed line.
const charsPerLine = 40

// History is the subset of gitlog.Analyzer the calculator reads.
type History interface {
	Commits(ctx context.Context, opts gitlog.CommitOptions) ([]gitlog.Commit, error)
	FileHistory(ctx context.Context, path string, opts gitlog.CommitOptions) ([]gitlog.Commit, error)
	Authors(ctx context.Context) ([]gitlog.Author, error)
}

// Timeline is the subset of journal.Journal the calculator reads.
type Timeline interface {
	History(taskID string) ([]journal.Entry, error)
	Spans() (map[string]journal.Span, error)
}

// TaskCounts summarizes task statuses.
type TaskCounts struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	InProgress     int     `json:"inProgress"`
	Pending        int     `json:"pending"`
	Blocked        int     `json:"blocked"`
	CompletionRate float64 `json:"completionRate"`
}

func (c *TaskCounts) add(s task.Status) {
	c.Total++
	switch s {
	case task.StatusDone:
		c.Completed++
	case task.StatusInProgress:
		c.InProgress++
	case task.StatusPending:
		c.Pending++
	case task.StatusBlocked:
		c.Blocked++
	}
	c.CompletionRate = float64(c.Completed) / float64(c.Total)
}

// CodeMetrics aggregates commit statistics.
type CodeMetrics struct {
	Commits      int `json:"commits"`
	LinesAdded   int `json:"linesAdded"`
	LinesRemoved int `json:"linesRemoved"`
	NetChange    int `json:"netChange"`
	Characters   int `json:"characters"`
	FilesChanged int `json:"filesChanged"`
}

func (c *CodeMetrics) add(cm gitlog.Commit) {
	c.Commits++
	c.LinesAdded += cm.LinesAdded
	c.LinesRemoved += cm.LinesRemoved
	c.NetChange = c.LinesAdded - c.LinesRemoved
	c.Characters = (c.LinesAdded + c.LinesRemoved) * charsPerLine
	c.FilesChanged += cm.FilesChanged
}

// Trend compares the newer half of a window with the older half.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendStable     Trend = "stable"
	TrendDecreasing Trend = "decreasing"
)

// Temporal describes when commits happen.
type Temporal struct {
	ByDayOfWeek   map[string]int `json:"byDayOfWeek"`
	ByTimeOfDay   map[string]int `json:"byTimeOfDay"`
	LongestStreak int            `json:"longestStreak"`
	Trend         Trend          `json:"trend"`
}

// UserMetrics is the report for one person.
type UserMetrics struct {
	User                   users.User        `json:"user"`
	Period                 Period            `json:"period"`
	Tasks                  TaskCounts        `json:"tasks"`
	Types                  map[task.Type]int `json:"types"`
	Code                   CodeMetrics       `json:"code"`
	Temporal               Temporal          `json:"temporal"`
	AverageCompletionHours float64           `json:"averageCompletionHours"`
}

// Contributor is one author in the team report.
type Contributor struct {
	User           users.User `json:"user"`
	Commits        int        `json:"commits"`
	TasksCompleted int        `json:"tasksCompleted"`
}

// TeamMetrics is the report for the whole project.
type TeamMetrics struct {
	Period       Period              `json:"period"`
	Tasks        TaskCounts          `json:"tasks"`
	Status       map[task.Status]int `json:"status"`
	Code         CodeMetrics         `json:"code"`
	Contributors []Contributor       `json:"contributors"`
}

// TaskMetrics is the report for one task.
type TaskMetrics struct {
	Task          task.Summary    `json:"task"`
	Assignee      string          `json:"assignee,omitempty"`
	History       []journal.Entry `json:"history"`
	Started       *time.Time      `json:"started,omitempty"`
	Finished      *time.Time      `json:"finished,omitempty"`
	DurationHours float64         `json:"durationHours"`
	Commits       []gitlog.Commit `json:"commits"`
	Code          CodeMetrics     `json:"code"`
}

// Calculator computes reports. Git history and journal are optional.
type Calculator struct {
	store    task.Storage
	history  History
	timeline Timeline
	registry *users.Registry
	logger   *log.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithHistory sets the git history source.
func WithHistory(h History) Option { return func(c *Calculator) { c.history = h } }

// WithTimeline sets the transition journal.
func WithTimeline(t Timeline) Option { return func(c *Calculator) { c.timeline = t } }

// WithRegistry sets the user registry.
func WithRegistry(r *users.Registry) Option { return func(c *Calculator) { c.registry = r } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(c *Calculator) { c.logger = l } }

// NewCalculator creates a calculator over store.
func NewCalculator(store task.Storage, opts ...Option) *Calculator {
	c := &Calculator{
		store:    store,
		registry: users.New(nil),
		logger:   log.NewWithOptions(io.Discard, log.Options{Prefix: "metrics"}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// commits returns the commits of the period, or none without history.
func (c *Calculator) commits(ctx context.Context, p Period, now time.Time) ([]gitlog.Commit, error) {
	if c.history == nil {
		return nil, nil
	}
	cs, err := c.history.Commits(ctx, gitlog.CommitOptions{Since: p.gitSince(now)})
	if err != nil {
		return nil, fmt.Errorf("reading commits: %w", err)
	}
	return cs, nil
}

func (c *Calculator) spans() map[string]journal.Span {
	if c.timeline == nil {
		return nil
	}
	spans, err := c.timeline.Spans()
	if err != nil {
		c.logger.Warn("journal unavailable", "err", err)
		return nil
	}
	return spans
}

// User computes the report for the person named by who.
func (c *Calculator) User(ctx context.Context, who string, p Period) (*UserMetrics, error) {
	now := timeNow()
	u := c.registry.Resolve(who)

	all, err := c.store.GetAllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	m := &UserMetrics{User: u, Period: p, Types: make(map[task.Type]int)}

	spans := c.spans()
	var total time.Duration
	var timed int
	for _, t := range all {
		if !u.Matches(t.Assignee) {
			continue
		}
		m.Tasks.add(t.Status)
		m.Types[t.Type]++
		if t.Status != task.StatusDone {
			continue
		}
		if d := spans[task.NormalizeID(t.ID)].Duration(); d > 0 {
			total += d
			timed++
		}
	}
	if timed > 0 {
		m.AverageCompletionHours = (total / time.Duration(timed)).Hours()
	}

	commits, err := c.commits(ctx, p, now)
	if err != nil {
		return nil, err
	}
	var mine []gitlog.Commit
	for _, cm := range commits {
		if authoredBy(cm, u) {
			mine = append(mine, cm)
			m.Code.add(cm)
		}
	}
	m.Temporal = temporal(mine, p.Start(now), now)
	return m, nil
}

func authoredBy(cm gitlog.Commit, u users.User) bool {
	for _, name := range cm.Authors() {
		if u.Matches(name) {
			return true
		}
	}
	return false
}

// Team computes the project-wide report.
func (c *Calculator) Team(ctx context.Context, p Period) (*TeamMetrics, error) {
	now := timeNow()
	all, err := c.store.GetAllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	m := &TeamMetrics{Period: p, Status: make(map[task.Status]int), Contributors: []Contributor{}}
	for _, t := range all {
		m.Tasks.add(t.Status)
		m.Status[t.Status]++
	}

	commits, err := c.commits(ctx, p, now)
	if err != nil {
		return nil, err
	}
	for _, cm := range commits {
		m.Code.add(cm)
	}

	if c.history == nil {
		return m, nil
	}
	authors, err := c.history.Authors(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading authors: %w", err)
	}
	byID := make(map[string]int)
	for _, a := range authors {
		u, ok := c.registry.Find(a.Name)
		if !ok {
			u, ok = c.registry.Find(a.Email)
		}
		if !ok {
			u = c.registry.Resolve(a.Name)
		}
		if i, ok := byID[u.ID]; ok {
			m.Contributors[i].Commits += a.Commits
			continue
		}
		byID[u.ID] = len(m.Contributors)
		m.Contributors = append(m.Contributors, Contributor{User: u, Commits: a.Commits})
	}
	for i := range m.Contributors {
		for _, t := range all {
			if t.Status == task.StatusDone && m.Contributors[i].User.Matches(t.Assignee) {
				m.Contributors[i].TasksCompleted++
			}
		}
	}
	sort.SliceStable(m.Contributors, func(i, j int) bool {
		return m.Contributors[i].Commits > m.Contributors[j].Commits
	})
	return m, nil
}

// Task computes the report for one task.
func (c *Calculator) Task(ctx context.Context, id string) (*TaskMetrics, error) {
	t, err := c.store.FindTask(ctx, id)
	if err != nil {
		return nil, err
	}
	m := &TaskMetrics{Task: t.Summary(), Assignee: t.Assignee, History: []journal.Entry{}, Commits: []gitlog.Commit{}}

	if c.timeline != nil {
		hist, err := c.timeline.History(t.ID)
		if err != nil {
			c.logger.Warn("journal unavailable", "task", t.ID, "err", err)
		} else if hist != nil {
			m.History = hist
		}
		if span, ok := c.spans()[task.NormalizeID(t.ID)]; ok {
			if !span.Started.IsZero() {
				m.Started = &span.Started
			}
			if !span.Finished.IsZero() {
				m.Finished = &span.Finished
			}
			m.DurationHours = span.Duration().Hours()
		}
	}

	if c.history != nil && t.FilePath != "" {
		commits, err := c.history.FileHistory(ctx, t.FilePath, gitlog.CommitOptions{})
		if err != nil {
			return nil, fmt.Errorf("reading task history: %w", err)
		}
		for _, cm := range commits {
			m.Code.add(cm)
		}
		if commits != nil {
			m.Commits = commits
		}
	}
	return m, nil
}

// IsToolUnavailable reports whether err aborted a computation because git
// is missing.
func IsToolUnavailable(err error) bool {
	return errors.Is(err, gitlog.ErrToolUnavailable)
}
