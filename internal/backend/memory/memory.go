// Package memory implements service.Service with an in-process collection.
package memory

import (
	"context"
	"errors"
	"sync"

	"todolist/internal/service"
	"todolist/internal/task"
)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("memory store closed")

// Store is an in-process realtime collection. Every subscriber receives the
// full snapshot on subscribe and after each change that alters the contents.
type Store struct {
	mu      sync.Mutex
	records map[string]task.Record
	feeds   map[*service.Feed]struct{}
	closed  bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]task.Record),
		feeds:   make(map[*service.Feed]struct{}),
	}
}

// Seed installs entries without notifying subscribers. Intended for setup.
func (s *Store) Seed(entries ...task.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.records[e.Key] = e.Record
	}
}

// Snapshot returns the current contents in collection order.
func (s *Store) Snapshot() []task.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe implements service.Service.
func (s *Store) Subscribe(ctx context.Context, onChange func([]task.Entry), onError func(error)) (service.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	feed := service.NewFeed(onChange)
	s.feeds[feed] = struct{}{}
	feed.Push(s.snapshotLocked())

	var once sync.Once
	remove := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.feeds, feed)
			s.mu.Unlock()
			feed.Stop()
		})
	}
	stop := context.AfterFunc(ctx, remove)
	return service.SubscriptionFunc(func() {
		stop()
		remove()
	}), nil
}

// Get implements service.Service.
func (s *Store) Get(ctx context.Context, key string) (task.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return task.Record{}, false, ErrClosed
	}
	rec, ok := s.records[key]
	return rec, ok, nil
}

// Set implements service.Service.
func (s *Store) Set(ctx context.Context, key string, rec task.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if old, ok := s.records[key]; ok && old == rec {
		return nil
	}
	s.records[key] = rec
	s.publishLocked()
	return nil
}

// Update implements service.Service.
func (s *Store) Update(ctx context.Context, key, description string, priority task.Priority) error {
	return s.Set(ctx, key, task.NewRecord(description, priority))
}

// Delete implements service.Service.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.records[key]; !ok {
		return nil
	}
	delete(s.records, key)
	s.publishLocked()
	return nil
}

// Close stops all subscriptions. Later calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for feed := range s.feeds {
		feed.Stop()
	}
	s.feeds = nil
	return nil
}

func (s *Store) snapshotLocked() []task.Entry {
	entries := make([]task.Entry, 0, len(s.records))
	for k, rec := range s.records {
		entries = append(entries, task.Entry{Key: k, Record: rec})
	}
	task.SortEntries(entries)
	return entries
}

func (s *Store) publishLocked() {
	if len(s.feeds) == 0 {
		return
	}
	snapshot := s.snapshotLocked()
	for feed := range s.feeds {
		feed.Push(snapshot)
	}
}
