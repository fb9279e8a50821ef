package syncclient

import (
	"context"
	"time"

	"github.com/opentask/taskin/internal/syncproto"
	"github.com/opentask/taskin/internal/task"
)

func (c *Cache) handle(msg syncproto.Message) {
	switch msg.Type {
	case syncproto.TypeTasks:
		tasks, err := msg.Tasks()
		if err != nil {
			c.logger.Debug("bad task list", "err", err)
			return
		}
		c.mu.Lock()
		c.tasks = tasks
		c.generation++
		c.mu.Unlock()
		c.logger.Debug("tasks received", "count", len(tasks))

	case syncproto.TypeTaskFound, syncproto.TypeTaskUpdated, syncproto.TypeTaskCreated:
		if msg.IsNull() {
			return
		}
		t, err := msg.Task()
		if err != nil {
			c.logger.Debug("bad task payload", "type", msg.Type, "err", err)
			return
		}
		c.mu.Lock()
		c.upsertLocked(*t)
		c.mu.Unlock()

	case syncproto.TypeTaskDeleted:
		var ref struct {
			ID     string `json:"id"`
			TaskID string `json:"taskId"`
		}
		if err := msg.Decode(&ref); err != nil {
			return
		}
		id := ref.ID
		if id == "" {
			id = ref.TaskID
		}
		c.mu.Lock()
		kept := c.tasks[:0]
		for _, t := range c.tasks {
			if !task.SameID(t.ID, id) {
				kept = append(kept, t)
			}
		}
		c.tasks = kept
		c.mu.Unlock()

	case syncproto.TypeError:
		var ep syncproto.ErrorPayload
		_ = msg.Decode(&ep)
		if ep.Message == "" {
			ep.Message = "unknown error"
		}
		c.mu.Lock()
		c.lastErr = ep.Message
		c.mu.Unlock()
		c.logger.Warn("server error", "message", ep.Message, "request", msg.RequestID)

	case syncproto.TypePong:
		c.mu.Lock()
		c.lastPong = timeNow()
		c.mu.Unlock()

	default:
		c.logger.Debug("unknown message type", "type", msg.Type)
	}
}

func (c *Cache) upsertLocked(t task.Task) {
	for i := range c.tasks {
		if task.SameID(c.tasks[i].ID, t.ID) {
			c.tasks[i] = t
			return
		}
	}
	c.tasks = append(c.tasks, t)
}

func (c *Cache) lookup(id string) (*task.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.tasks {
		if task.SameID(c.tasks[i].ID, id) {
			return c.tasks[i].Clone(), true
		}
	}
	return nil, false
}

// Tasks returns a copy of the cached list.
func (c *Cache) Tasks() []task.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]task.Task{}, c.tasks...)
}

// FindTask returns the cached task. On a miss it asks the server and
// checks the cache again after ResponseDelay.
func (c *Cache) FindTask(ctx context.Context, id string) (*task.Task, error) {
	if t, ok := c.lookup(id); ok {
		return t, nil
	}
	if err := c.send(syncproto.TypeFind, syncproto.TaskRef{TaskID: id}); err != nil {
		return nil, task.NotFound(id)
	}

	timer := time.NewTimer(c.cfg.ResponseDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	if t, ok := c.lookup(id); ok {
		return t, nil
	}
	return nil, task.NotFound(id)
}

// GetAllTasks returns the cached list. When the cache is empty and a
// connection is open it requests the list and waits up to RequestTimeout
// for it.
func (c *Cache) GetAllTasks(ctx context.Context) ([]task.Task, error) {
	c.mu.Lock()
	have := len(c.tasks) > 0
	gen := c.generation
	c.mu.Unlock()
	if have {
		return c.Tasks(), nil
	}
	if err := c.send(syncproto.TypeList, nil); err != nil {
		return c.Tasks(), nil
	}

	deadline := time.NewTimer(c.cfg.RequestTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(c.cfg.PollInterval)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return c.Tasks(), nil
		case <-poll.C:
			c.mu.Lock()
			done := c.generation != gen || len(c.tasks) > 0
			c.mu.Unlock()
			if done {
				return c.Tasks(), nil
			}
		}
	}
}

// UpdateTask applies t to the cache and sends it to the server, which
// persists it and broadcasts task:updated.
func (c *Cache) UpdateTask(_ context.Context, t *task.Task) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	c.mu.Lock()
	for i := range c.tasks {
		if task.SameID(c.tasks[i].ID, t.ID) {
			c.tasks[i] = *t.Clone()
		}
	}
	c.mu.Unlock()
	return c.send(syncproto.TypeUpdate, t)
}

var _ task.Storage = (*Cache)(nil)
