package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opentask/taskin/internal/lifecycle"
	"github.com/opentask/taskin/internal/task"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func at(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func TestNew_CreatesDBFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", ".taskin")
	j, err := New(Config{DataDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer j.Close()
	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestRecordAndHistory(t *testing.T) {
	j := newTestJournal(t)
	trs := []lifecycle.Transition{
		{TaskID: "001", Action: lifecycle.ActionStart, From: task.StatusPending, To: task.StatusInProgress, At: at(9, 0)},
		{TaskID: "002", Action: lifecycle.ActionStart, From: task.StatusPending, To: task.StatusInProgress, At: at(9, 5)},
		{TaskID: "001", Action: lifecycle.ActionFinish, From: task.StatusInProgress, To: task.StatusDone, At: at(11, 0)},
	}
	for _, tr := range trs {
		if err := j.Record(tr); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	hist, err := j.History("task-001")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(hist))
	}
	if hist[0].Action != lifecycle.ActionStart || hist[1].To != task.StatusDone {
		t.Errorf("history = %+v", hist)
	}
	if !hist[1].At.Equal(at(11, 0)) {
		t.Errorf("At = %v, want %v", hist[1].At, at(11, 0))
	}
}

func TestSpans(t *testing.T) {
	j := newTestJournal(t)
	record := func(id string, to task.Status, when time.Time) {
		t.Helper()
		if err := j.Record(lifecycle.Transition{TaskID: id, Action: "x", To: to, At: when}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	record("001", task.StatusInProgress, at(9, 0))
	record("001", task.StatusPending, at(10, 0))
	record("001", task.StatusInProgress, at(10, 30))
	record("001", task.StatusDone, at(12, 0))
	record("001", task.StatusDone, at(12, 15))
	record("002", task.StatusInProgress, at(9, 0))

	span, ok, err := j.Span("001")
	if err != nil || !ok {
		t.Fatalf("Span = %v, %v", ok, err)
	}
	if !span.Started.Equal(at(9, 0)) || !span.Finished.Equal(at(12, 15)) {
		t.Errorf("span = %+v", span)
	}
	if span.Duration() != 3*time.Hour+15*time.Minute {
		t.Errorf("Duration = %v, want 3h15m", span.Duration())
	}

	open, _, _ := j.Span("002")
	if open.Duration() != 0 {
		t.Errorf("unfinished Duration = %v, want 0", open.Duration())
	}
	if _, ok, _ := j.Span("003"); ok {
		t.Error("Span(003) ok = true for an unknown task")
	}
}

func TestSpans_SubsecondOrdering(t *testing.T) {
	j := newTestJournal(t)
	base := at(9, 0)
	_ = j.Record(lifecycle.Transition{TaskID: "001", To: task.StatusDone, At: base})
	_ = j.Record(lifecycle.Transition{TaskID: "001", To: task.StatusDone, At: base.Add(500 * time.Millisecond)})
	span, _, _ := j.Span("001")
	if !span.Finished.Equal(base.Add(500 * time.Millisecond)) {
		t.Errorf("Finished = %v, want the later sub-second timestamp", span.Finished)
	}
}

// memStore is a one-task storage used to drive the manager.
type memStore struct{ t task.Task }

func (s *memStore) FindTask(context.Context, string) (*task.Task, error) { c := s.t; return &c, nil }
func (s *memStore) GetAllTasks(context.Context) ([]task.Task, error)    { return []task.Task{s.t}, nil }
func (s *memStore) UpdateTask(_ context.Context, t *task.Task) error    { s.t = *t; return nil }

func TestOnTransition_ObservesManager(t *testing.T) {
	j := newTestJournal(t)
	m := lifecycle.NewManager(&memStore{t: task.Task{ID: "007", Status: task.StatusPending}})
	m.AddObserver(j)

	ctx := context.Background()
	if _, err := m.Start(ctx, "007"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.Finish(ctx, "007"); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	hist, err := j.History("007")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 || hist[0].From != task.StatusPending || hist[1].To != task.StatusDone {
		t.Errorf("history = %+v", hist)
	}
}
