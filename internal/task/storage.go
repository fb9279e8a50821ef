package task

import "context"

// Storage is the capability the lifecycle manager and the sync server
// operate on. The file-backed store and the remote client cache both
// implement it; callers pick one at construction time.
//
// FindTask returns an error wrapping ErrNotFound when no task matches id.
type Storage interface {
	FindTask(ctx context.Context, id string) (*Task, error)
	GetAllTasks(ctx context.Context) ([]Task, error)
	UpdateTask(ctx context.Context, t *Task) error
}
