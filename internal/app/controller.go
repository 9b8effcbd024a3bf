// Package app wires the local store, selection and dialog sessions to the
// remote collection. It is the only place that writes local task state.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"todolist/internal/connectivity"
	"todolist/internal/dialog"
	"todolist/internal/logging"
	"todolist/internal/projection"
	"todolist/internal/remote"
	"todolist/internal/selection"
	"todolist/internal/store"
	"todolist/internal/task"
)

// ErrInvalidTask is returned by Commit when the session fails validation.
// The session stays open with its field errors set.
var ErrInvalidTask = errors.New("invalid task")

// Controller owns the local mirror of the collection and turns user intents
// into remote calls. Local state only changes when a snapshot arrives.
type Controller struct {
	sync      *remote.Sync
	store     *store.KeyedStore
	selection *selection.Set
	logger    *log.Logger

	mu             sync.Mutex
	rows           []projection.Row
	rowListeners   []func([]projection.Row)
	errListeners   []func(error)
	sub            *remote.Subscription
	clearOnRefresh bool

	ready     chan struct{}
	readyOnce sync.Once
}

// New returns a controller over s. The caller keeps ownership of s.
func New(s *remote.Sync, logger *log.Logger) *Controller {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Controller{
		sync:      s,
		store:     store.New(),
		selection: selection.New(),
		logger:    logger,
		ready:     make(chan struct{}),
	}
}

// OnRows registers fn to receive the projected rows after every snapshot.
// fn runs on the remote dispatcher goroutine.
func (c *Controller) OnRows(fn func([]projection.Row)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rowListeners = append(c.rowListeners, fn)
}

// OnError registers fn to receive every remote failure.
func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errListeners = append(c.errListeners, fn)
}

// Start consults checker once and, when online, subscribes to the whole
// collection. When offline it returns an error wrapping
// connectivity.ErrOffline and the remote is never touched.
func (c *Controller) Start(ctx context.Context, checker connectivity.Checker) error {
	if checker == nil {
		checker = connectivity.Always{}
	}
	if err := checker.Check(ctx); err != nil {
		if !errors.Is(err, connectivity.ErrOffline) {
			err = fmt.Errorf("%w: %v", connectivity.ErrOffline, err)
		}
		c.logger.Warn("remote unreachable", "err", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return nil
	}
	c.sub = c.sync.SubscribeAll(c.apply, c.report)
	return nil
}

// WaitReady blocks until the first snapshot has been applied.
func (c *Controller) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends the subscription. Pending remote calls keep running; use
// remote.Sync.Wait to flush them.
func (c *Controller) Stop() {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// Rows returns the rows projected from the last snapshot.
func (c *Controller) Rows() []projection.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]projection.Row(nil), c.rows...)
}

// Lookup returns the locally mirrored record at key.
func (c *Controller) Lookup(key string) (task.Record, error) {
	return c.store.Get(key)
}

// Add writes a new task under the next key. The row appears once the
// resulting snapshot arrives.
func (c *Controller) Add(description string, priority task.Priority) (string, error) {
	key, err := c.store.NextKey()
	if err != nil {
		return "", err
	}
	c.sync.Write(key, task.NewRecord(description, priority), c.report)
	c.logger.Info("adding task", "key", key, "priority", priority)
	return key, nil
}

// Update rewrites the description and priority of key on the remote only.
func (c *Controller) Update(key, description string, priority task.Priority) {
	c.sync.Update(key, description, priority, c.report)
	c.logger.Info("updating task", "key", key, "priority", priority)
}

// OpenAdd starts an add session.
func (c *Controller) OpenAdd() *dialog.Session {
	return dialog.NewAdd()
}

// OpenEdit starts an edit session for key and fetches the stored record to
// prefill it. onLoaded runs on the dispatcher goroutine once the fetch
// settles; found is false when the key no longer exists. A session closed
// before the fetch returns is left untouched.
func (c *Controller) OpenEdit(key string, onLoaded func(s *dialog.Session, found bool)) *dialog.Session {
	s := dialog.NewEdit(key)
	c.sync.FetchOnce(key,
		func(rec task.Record, found bool) {
			if !found {
				c.logger.Debug("edit target missing", "key", key)
			} else if !s.Prefill(rec) {
				c.logger.Debug("dropping prefill for closed session", "key", key)
				return
			}
			if onLoaded != nil {
				onLoaded(s, found)
			}
		},
		func(err error) {
			c.report(err)
			if onLoaded != nil && s.IsOpen() {
				onLoaded(s, false)
			}
		},
	)
	return s
}

// Commit validates s and issues the matching remote write. It returns the
// key written to.
func (c *Controller) Commit(s *dialog.Session) (string, error) {
	rec, ok := s.Submit()
	if !ok {
		errs := s.Errors()
		switch {
		case errs.Title != "" && errs.Priority != "":
			return "", fmt.Errorf("%w: %s; %s", ErrInvalidTask, errs.Title, errs.Priority)
		case errs.Title != "":
			return "", fmt.Errorf("%w: %s", ErrInvalidTask, errs.Title)
		case errs.Priority != "":
			return "", fmt.Errorf("%w: %s", ErrInvalidTask, errs.Priority)
		}
		return "", fmt.Errorf("%w: dialog is not open", ErrInvalidTask)
	}

	if s.Mode() == dialog.ModeEdit {
		c.Update(s.Key(), rec.Description, rec.Priority)
		return s.Key(), nil
	}
	return c.Add(rec.Description, rec.Priority)
}

// Toggle flips key in the deletion selection and reports whether it is
// now selected.
func (c *Controller) Toggle(key string) bool {
	return c.selection.Toggle(key)
}

// IsSelected reports whether key is marked for deletion.
func (c *Controller) IsSelected(key string) bool {
	return c.selection.Contains(key)
}

// Selected returns the keys marked for deletion, in the order they were marked.
func (c *Controller) Selected() []string {
	return c.selection.Members()
}

// DeleteSelected deletes every selected key. The selection is cleared by the
// next snapshot. It returns how many deletes were issued.
func (c *Controller) DeleteSelected() int {
	keys := c.selection.Members()
	if len(keys) == 0 {
		return 0
	}
	c.mu.Lock()
	c.clearOnRefresh = true
	c.mu.Unlock()

	c.sync.DeleteMany(keys, c.report)
	c.logger.Info("deleting tasks", "count", len(keys))
	return len(keys)
}

// apply installs a snapshot. It runs on the dispatcher goroutine.
func (c *Controller) apply(entries []task.Entry) {
	c.store.ReplaceAll(entries)
	rows := projection.Project(c.store)

	c.mu.Lock()
	if c.clearOnRefresh {
		c.selection.Clear()
		c.clearOnRefresh = false
	}
	c.rows = rows
	listeners := slices.Clone(c.rowListeners)
	c.mu.Unlock()

	c.readyOnce.Do(func() { close(c.ready) })
	c.logger.Debug("snapshot applied", "tasks", len(rows), "version", c.store.Version())

	for _, fn := range listeners {
		fn(rows)
	}
}

func (c *Controller) report(err error) {
	c.mu.Lock()
	listeners := slices.Clone(c.errListeners)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(err)
	}
}
