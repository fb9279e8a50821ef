// Package journal keeps an append-only record of task status transitions
// in SQLite. It observes the lifecycle manager and answers timing queries
// for metrics (when a task was first started, when it was last finished).
package journal

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/opentask/taskin/internal/lifecycle"
	"github.com/opentask/taskin/internal/task"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// FileName is the database file created inside Config.DataDir.
const FileName = "journal.db"

// timeLayout is fixed-width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Config holds journal configuration.
type Config struct {
	DataDir string
	Logger  *log.Logger
}

// DefaultConfig stores the journal under .taskin in the working directory.
func DefaultConfig() Config {
	return Config{DataDir: ".taskin"}
}

// Entry is one recorded transition.
type Entry struct {
	ID     int64       `json:"id"`
	TaskID string      `json:"taskId"`
	Action string      `json:"action"`
	From   task.Status `json:"from"`
	To     task.Status `json:"to"`
	At     time.Time   `json:"at"`
}

// Span is the working window of one task.
type Span struct {
	TaskID   string    `json:"taskId"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Duration returns Finished - Started, or zero when either is unknown.
func (s Span) Duration() time.Duration {
	if s.Started.IsZero() || s.Finished.IsZero() || s.Finished.Before(s.Started) {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// Journal is the SQLite-backed transition log.
type Journal struct {
	db     *sql.DB
	logger *log.Logger
}

// New opens (creating if needed) the journal database and runs migrations.
func New(cfg Config) (*Journal, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(cfg.DataDir, FileName))
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: pragma %q: %w", p, err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{Prefix: "journal"})
	}
	j := &Journal{db: db, logger: logger}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: migration: %w", err)
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transitions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id     TEXT NOT NULL,
			action      TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status   TEXT NOT NULL,
			at          TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_transitions_task ON transitions(task_id, at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record appends a transition.
func (j *Journal) Record(tr lifecycle.Transition) error {
	_, err := j.db.Exec(
		`INSERT INTO transitions (task_id, action, from_status, to_status, at) VALUES (?, ?, ?, ?, ?)`,
		task.NormalizeID(tr.TaskID), tr.Action, string(tr.From), string(tr.To), tr.At.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("journal: record %s %s: %w", tr.Action, tr.TaskID, err)
	}
	return nil
}

// OnTransition implements lifecycle.Observer. Failures are logged and
// swallowed: the transition itself has already been persisted.
func (j *Journal) OnTransition(tr lifecycle.Transition, _ *task.Task) {
	if err := j.Record(tr); err != nil {
		j.logger.Warn("journal write failed", "task", tr.TaskID, "action", tr.Action, "err", err)
	}
}

// History returns the transitions of one task, oldest first.
func (j *Journal) History(taskID string) ([]Entry, error) {
	rows, err := j.db.Query(
		`SELECT id, task_id, action, from_status, to_status, at FROM transitions WHERE task_id = ? ORDER BY at, id`,
		task.NormalizeID(taskID),
	)
	if err != nil {
		return nil, fmt.Errorf("journal: history %s: %w", taskID, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			from, to string
			at       string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Action, &from, &to, &at); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.From, e.To = task.Status(from), task.Status(to)
		e.At, _ = time.Parse(timeLayout, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Spans returns, per task, the first time it entered in-progress and the
// last time it entered done.
func (j *Journal) Spans() (map[string]Span, error) {
	rows, err := j.db.Query(`
		SELECT task_id,
		       MIN(CASE WHEN to_status = 'in-progress' THEN at END),
		       MAX(CASE WHEN to_status = 'done' THEN at END)
		FROM transitions
		GROUP BY task_id`)
	if err != nil {
		return nil, fmt.Errorf("journal: spans: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Span)
	for rows.Next() {
		var (
			id                string
			started, finished sql.NullString
		)
		if err := rows.Scan(&id, &started, &finished); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		s := Span{TaskID: id}
		if started.Valid {
			s.Started, _ = time.Parse(timeLayout, started.String)
		}
		if finished.Valid {
			s.Finished, _ = time.Parse(timeLayout, finished.String)
		}
		out[id] = s
	}
	return out, rows.Err()
}

// Span returns the working window of one task. ok is false when the task
// has no recorded transitions.
func (j *Journal) Span(taskID string) (Span, bool, error) {
	spans, err := j.Spans()
	if err != nil {
		return Span{}, false, err
	}
	s, ok := spans[task.NormalizeID(taskID)]
	return s, ok, nil
}
