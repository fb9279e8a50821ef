package cli

import (
	"context"
	"fmt"

	"github.com/opentask/taskin/internal/gitlog"
	"github.com/opentask/taskin/internal/journal"
	"github.com/opentask/taskin/internal/lifecycle"
	"github.com/opentask/taskin/internal/syncclient"
	"github.com/opentask/taskin/internal/task"
	"github.com/opentask/taskin/internal/taskdoc"
	"github.com/opentask/taskin/internal/taskstore"
	"github.com/opentask/taskin/internal/users"
)

func noop() {}

// fileStore builds the task directory store from the configuration.
func (a *app) fileStore() (*taskstore.FileStore, error) {
	loc, err := taskdoc.LookupLocale(a.cfg.Locale)
	if err != nil {
		return nil, err
	}
	return taskstore.NewFileStore(a.cfg.TasksPath(a.root),
		taskstore.WithLocale(loc),
		taskstore.WithPolicy(taskdoc.Policy{RequireType: a.cfg.RequireType}),
		taskstore.WithLogger(a.logger.WithPrefix("store")),
	), nil
}

// remoteStore connects a client cache to the configured sync server.
func (a *app) remoteStore(ctx context.Context) (*syncclient.Cache, error) {
	cfg := syncclient.DefaultConfig(a.cfg.Client.URL)
	cfg.ReconnectDelay = a.cfg.Client.ReconnectDelay
	cfg.MaxReconnectAttempts = a.cfg.Client.MaxReconnectAttempts
	cfg.Logger = a.logger.WithPrefix("client")

	c := syncclient.New(cfg)
	if err := c.Connect(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// storage returns the task storage for a command: the local directory,
// or the sync server when remote is set.
func (a *app) storage(ctx context.Context, remote bool) (task.Storage, func(), error) {
	if remote {
		c, err := a.remoteStore(ctx)
		if err != nil {
			return nil, noop, err
		}
		return c, func() { _ = c.Close() }, nil
	}
	fs, err := a.fileStore()
	if err != nil {
		return nil, noop, err
	}
	return fs, noop, nil
}

// openJournal opens the transition journal. Callers treat a failure as
// non-fatal.
func (a *app) openJournal() (*journal.Journal, error) {
	return journal.New(journal.Config{
		DataDir: a.cfg.DataPath(a.root),
		Logger:  a.logger.WithPrefix("journal"),
	})
}

// manager builds a lifecycle manager over store and, when record is set,
// attaches the journal as an observer. The returned cleanup closes the
// journal and is always non-nil.
func (a *app) manager(store task.Storage, record bool) (*lifecycle.Manager, func()) {
	m := lifecycle.NewManager(store)
	if !record {
		return m, noop
	}
	j, err := a.openJournal()
	if err != nil {
		a.logger.Warn("transition journal disabled", "err", err)
		return m, noop
	}
	m.AddObserver(j)
	return m, func() {
		if err := j.Close(); err != nil {
			a.logger.Warn("journal close", "err", err)
		}
	}
}

func (a *app) analyzer() *gitlog.Analyzer {
	return gitlog.NewAnalyzer(a.root,
		gitlog.WithRunner(gitlog.ExecRunner{Binary: a.cfg.Git.Binary, MaxOutput: a.cfg.Git.MaxOutputBytes}),
		gitlog.WithTimeout(a.cfg.Git.Timeout),
		gitlog.WithLogger(a.logger.WithPrefix("git")),
	)
}

func (a *app) registry() (*users.Registry, error) {
	r, err := users.Load(a.cfg.UsersPath(a.root))
	if err != nil {
		return nil, fmt.Errorf("loading user registry: %w", err)
	}
	return r, nil
}
