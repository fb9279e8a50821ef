// Package lifecycle enforces the task state machine:
//
//	pending ──start──▶ in-progress ──finish──▶ done
//	   ▲                    │
//	   └───────pause────────┘
//
// blocked is a side state entered with Block from anything but done and
// left with Unblock (back to pending) or Start. Finish and Pause accept any
// status.
//
// The manager never touches files or sockets itself; every read and write
// goes through the injected task.Storage.
package lifecycle

import (
	"context"

	"github.com/opentask/taskin/internal/task"
)

// Action names, as used in transition records and error messages.
const (
	ActionStart   = "start"
	ActionFinish  = "finish"
	ActionPause   = "pause"
	ActionBlock   = "block"
	ActionUnblock = "unblock"
)

// Manager applies lifecycle transitions through a task.Storage.
type Manager struct {
	store     task.Storage
	observers []Observer
}

// NewManager creates a manager over store.
func NewManager(store task.Storage) *Manager {
	return &Manager{store: store}
}

// AddObserver registers an observer notified after each persisted
// transition. Not safe to call concurrently with transitions.
func (m *Manager) AddObserver(o Observer) {
	m.observers = append(m.observers, o)
}

// Start moves a task to in-progress. It rejects tasks already in progress
// or done.
func (m *Manager) Start(ctx context.Context, id string) (*task.Task, error) {
	return m.apply(ctx, id, ActionStart, func(s task.Status) (task.Status, error) {
		switch s {
		case task.StatusInProgress:
			return "", task.ErrAlreadyInProgress
		case task.StatusDone:
			return "", task.ErrAlreadyDone
		}
		return task.StatusInProgress, nil
	})
}

// Resume is Start under the name used after a pause.
func (m *Manager) Resume(ctx context.Context, id string) (*task.Task, error) {
	return m.Start(ctx, id)
}

// Finish moves a task to done from any status, including done.
func (m *Manager) Finish(ctx context.Context, id string) (*task.Task, error) {
	return m.apply(ctx, id, ActionFinish, func(task.Status) (task.Status, error) {
		return task.StatusDone, nil
	})
}

// Pause returns a task to pending from any status.
func (m *Manager) Pause(ctx context.Context, id string) (*task.Task, error) {
	return m.apply(ctx, id, ActionPause, func(task.Status) (task.Status, error) {
		return task.StatusPending, nil
	})
}

// Block marks a task blocked. Blocking a blocked task is accepted; a done
// task cannot be blocked.
func (m *Manager) Block(ctx context.Context, id string) (*task.Task, error) {
	return m.apply(ctx, id, ActionBlock, func(s task.Status) (task.Status, error) {
		if s == task.StatusDone {
			return "", task.ErrAlreadyDone
		}
		return task.StatusBlocked, nil
	})
}

// Unblock returns a blocked task to pending.
func (m *Manager) Unblock(ctx context.Context, id string) (*task.Task, error) {
	return m.apply(ctx, id, ActionUnblock, func(s task.Status) (task.Status, error) {
		if s != task.StatusBlocked {
			return "", task.ErrNotBlocked
		}
		return task.StatusPending, nil
	})
}

// Do dispatches a transition by action name.
func (m *Manager) Do(ctx context.Context, action, id string) (*task.Task, error) {
	switch action {
	case ActionStart:
		return m.Start(ctx, id)
	case ActionFinish:
		return m.Finish(ctx, id)
	case ActionPause:
		return m.Pause(ctx, id)
	case ActionBlock:
		return m.Block(ctx, id)
	case ActionUnblock:
		return m.Unblock(ctx, id)
	}
	return nil, &task.TransitionError{ID: id, Action: action, Err: task.ErrInvalidTransition}
}

// apply loads the task, asks next for the target status, writes the task
// back exactly once and notifies observers.
func (m *Manager) apply(ctx context.Context, id, action string, next func(task.Status) (task.Status, error)) (*task.Task, error) {
	current, err := m.store.FindTask(ctx, id)
	if err != nil {
		return nil, err
	}

	to, err := next(current.Status)
	if err != nil {
		return nil, &task.TransitionError{ID: current.ID, Action: action, Status: current.Status, Err: err}
	}

	updated := current.Clone()
	updated.Status = to
	if err := m.store.UpdateTask(ctx, updated); err != nil {
		return nil, err
	}

	notifyObservers(m.observers, Transition{
		TaskID: updated.ID,
		Action: action,
		From:   current.Status,
		To:     to,
		At:     timeNow().UTC(),
	}, updated)
	return updated, nil
}
