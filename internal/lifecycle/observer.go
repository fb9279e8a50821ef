package lifecycle

import (
	"time"

	"github.com/opentask/taskin/internal/task"
)

// Transition records one successful status change.
type Transition struct {
	TaskID string
	Action string
	From   task.Status
	To     task.Status
	At     time.Time
}

// Observer is notified after a transition has been persisted.
// It's an optional dependency: the manager works fine without one.
type Observer interface {
	OnTransition(tr Transition, t *task.Task)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(tr Transition, t *task.Task)

func (f ObserverFunc) OnTransition(tr Transition, t *task.Task) { f(tr, t) }

// notifyObservers is a nil-safe fan-out helper.
func notifyObservers(obs []Observer, tr Transition, t *task.Task) {
	for _, o := range obs {
		if o != nil {
			o.OnTransition(tr, t)
		}
	}
}
