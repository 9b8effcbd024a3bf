// Package remote exposes the remote task collection through callbacks.
//
// Calls never block on the network. Every result, snapshot and error is
// delivered on one dispatcher goroutine owned by Sync, in the order the
// results arrive, so callers can treat callbacks as a single control thread.
package remote

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"todolist/internal/logging"
	"todolist/internal/service"
	"todolist/internal/task"
)

const (
	// DefaultTimeout bounds each one-shot remote call.
	DefaultTimeout = 10 * time.Second

	// DefaultDeleteConcurrency caps parallel deletes in DeleteMany.
	DefaultDeleteConcurrency = 4
)

// Option configures a Sync.
type Option func(*Sync)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Sync) { s.timeout = d }
}

// WithDeleteConcurrency sets how many deletes DeleteMany runs at once.
func WithDeleteConcurrency(n int) Option {
	return func(s *Sync) {
		if n > 0 {
			s.deleteLimit = n
		}
	}
}

// Sync wraps a service.Service with fire-and-forget calls and serial callbacks.
type Sync struct {
	svc         service.Service
	logger      *log.Logger
	timeout     time.Duration
	deleteLimit int

	ctx    context.Context
	cancel context.CancelFunc
	q      *queue

	mu     sync.Mutex
	idle   *sync.Cond
	active int
	closed bool
}

// New returns a Sync over svc. The caller keeps ownership of svc.
func New(svc service.Service, logger *log.Logger, opts ...Option) *Sync {
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sync{
		svc:         svc,
		logger:      logger,
		timeout:     DefaultTimeout,
		deleteLimit: DefaultDeleteConcurrency,
		ctx:         ctx,
		cancel:      cancel,
		q:           newQueue(),
	}
	s.idle = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscription is the handle returned by SubscribeAll.
type Subscription struct {
	stopped atomic.Bool

	mu    sync.Mutex
	inner service.Subscription
}

// Unsubscribe stops delivery. Snapshots already queued but not yet
// delivered are dropped. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s.stopped.Swap(true) {
		return
	}
	s.mu.Lock()
	inner := s.inner
	s.inner = nil
	s.mu.Unlock()
	if inner != nil {
		inner.Unsubscribe()
	}
}

// Active reports whether Unsubscribe has not been called yet.
func (s *Subscription) Active() bool {
	return !s.stopped.Load()
}

func (s *Subscription) attach(inner service.Subscription) {
	s.mu.Lock()
	if s.stopped.Load() {
		s.mu.Unlock()
		inner.Unsubscribe()
		return
	}
	s.inner = inner
	s.mu.Unlock()
}

// SubscribeAll registers a persistent listener on the whole collection.
// onChange receives every snapshot. onError receives failures, which never
// end the subscription.
func (s *Sync) SubscribeAll(onChange func([]task.Entry), onError func(error)) *Subscription {
	sub := &Subscription{}
	if !s.begin() {
		sub.stopped.Store(true)
		return sub
	}
	go func() {
		defer s.end()
		inner, err := s.svc.Subscribe(s.ctx,
			func(entries []task.Entry) {
				s.deliver(func() {
					if sub.Active() {
						onChange(entries)
					}
				})
			},
			func(err error) {
				s.deliver(func() {
					if sub.Active() {
						s.fail(onError, &Error{Op: "subscribe", Err: err})
					}
				})
			},
		)
		if err != nil {
			s.deliver(func() { s.fail(onError, &Error{Op: "subscribe", Err: err}) })
			return
		}
		sub.attach(inner)
		s.logger.Debug("subscribed")
	}()
	return sub
}

// FetchOnce reads a single record. onResult gets found=false when the key
// does not exist.
func (s *Sync) FetchOnce(key string, onResult func(rec task.Record, found bool), onError func(error)) {
	s.call(func(ctx context.Context) {
		rec, found, err := s.svc.Get(ctx, key)
		if err != nil {
			s.deliver(func() { s.fail(onError, &Error{Op: "fetch", Key: key, Err: err}) })
			return
		}
		s.deliver(func() { onResult(rec, found) })
	})
}

// Write upserts the full record at key.
func (s *Sync) Write(key string, rec task.Record, onError func(error)) {
	s.call(func(ctx context.Context) {
		if err := s.svc.Set(ctx, key, rec); err != nil {
			s.deliver(func() { s.fail(onError, &Error{Op: "write", Key: key, Err: err}) })
			return
		}
		s.logger.Debug("wrote task", "key", key, "priority", rec.Priority)
	})
}

// Update writes the description and priority fields at key.
func (s *Sync) Update(key, description string, priority task.Priority, onError func(error)) {
	s.call(func(ctx context.Context) {
		if err := s.svc.Update(ctx, key, description, priority); err != nil {
			s.deliver(func() { s.fail(onError, &Error{Op: "update", Key: key, Err: err}) })
			return
		}
		s.logger.Debug("updated task", "key", key, "priority", priority)
	})
}

// DeleteMany removes every key independently. A failure on one key is
// reported through onError and does not stop the others; nothing is rolled back.
func (s *Sync) DeleteMany(keys []string, onError func(error)) {
	if len(keys) == 0 {
		return
	}
	keys = append([]string(nil), keys...)
	s.call(func(ctx context.Context) {
		var g errgroup.Group
		g.SetLimit(s.deleteLimit)
		for _, key := range keys {
			g.Go(func() error {
				callCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
				defer cancel()
				if err := s.svc.Delete(callCtx, key); err != nil {
					s.deliver(func() { s.fail(onError, &Error{Op: "delete", Key: key, Err: err}) })
					return nil
				}
				s.logger.Debug("deleted task", "key", key)
				return nil
			})
		}
		_ = g.Wait()
	})
}

// Wait blocks until no remote call is in flight and every callback they
// produced has been delivered.
func (s *Sync) Wait() {
	for {
		s.mu.Lock()
		for s.active > 0 {
			s.idle.Wait()
		}
		s.mu.Unlock()

		s.q.flush()

		s.mu.Lock()
		done := s.active == 0
		s.mu.Unlock()
		if done {
			return
		}
	}
}

// Close cancels in-flight calls and stops the dispatcher once queued
// callbacks have run. It must not be called from inside a callback.
func (s *Sync) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.mu.Lock()
	for s.active > 0 {
		s.idle.Wait()
	}
	s.mu.Unlock()
	s.q.close()
}

// call runs fn on its own goroutine with a per-call timeout.
func (s *Sync) call(fn func(ctx context.Context)) {
	if !s.begin() {
		return
	}
	go func() {
		defer s.end()
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
		fn(ctx)
	}()
}

func (s *Sync) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.active++
	return true
}

func (s *Sync) end() {
	s.mu.Lock()
	s.active--
	if s.active == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

func (s *Sync) deliver(fn func()) {
	if !s.q.post(fn) {
		s.logger.Debug("dropping callback after close")
	}
}

func (s *Sync) fail(onError func(error), err *Error) {
	s.logger.Warn("remote call failed", "op", err.Op, "key", err.Key, "err", err.Err)
	if onError != nil {
		onError(err)
	}
}
