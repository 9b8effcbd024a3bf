// Package sqlite implements service.Service over a local sqlite database.
//
// Changes made by other processes are picked up by polling PRAGMA
// data_version on a dedicated connection; local writes notify at once.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"todolist/internal/logging"
	"todolist/internal/service"
	"todolist/internal/task"
)

// DefaultPollInterval is how often the watcher checks for outside changes.
const DefaultPollInterval = 500 * time.Millisecond

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("sqlite store closed")

// Option configures a Store.
type Option func(*Store)

// WithPollInterval sets the data_version polling period.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

type subscriber struct {
	feed    *service.Feed
	onError func(error)
}

// Store is a sqlite-backed task collection.
type Store struct {
	db           *sql.DB
	watch        *sql.Conn
	logger       *log.Logger
	pollInterval time.Duration

	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	last    []task.Entry
	version int64
	closed  bool

	notify chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open opens (creating if needed) the database at path and starts the
// change watcher.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}

	watch, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:           db,
		watch:        watch,
		logger:       logging.Discard(),
		pollInterval: DefaultPollInterval,
		subs:         make(map[*subscriber]struct{}),
		notify:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.version, err = s.dataVersion(ctx); err != nil {
		_ = s.watch.Close()
		_ = db.Close()
		return nil, err
	}
	if s.last, err = s.list(ctx); err != nil {
		_ = s.watch.Close()
		_ = db.Close()
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(watchCtx)

	s.logger.Debug("opened sqlite store", "path", path, "tasks", len(s.last))
	return s, nil
}

// dsn applies the pragmas to every pooled connection.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			key TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			priority INTEGER NOT NULL CHECK (priority BETWEEN 0 AND 3)
		);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe implements service.Service.
func (s *Store) Subscribe(ctx context.Context, onChange func([]task.Entry), onError func(error)) (service.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	sub := &subscriber{feed: service.NewFeed(onChange), onError: onError}
	s.subs[sub] = struct{}{}
	sub.feed.Push(s.last)

	var once sync.Once
	remove := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
			sub.feed.Stop()
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
	if s.isClosed() {
		return task.Record{}, false, ErrClosed
	}
	var rec task.Record
	err := s.db.QueryRowContext(ctx,
		`SELECT description, priority FROM tasks WHERE key = ?`, key,
	).Scan(&rec.Description, &rec.Priority)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Record{}, false, nil
	}
	if err != nil {
		return task.Record{}, false, err
	}
	return rec, true, nil
}

// Set implements service.Service.
func (s *Store) Set(ctx context.Context, key string, rec task.Record) error {
	if s.isClosed() {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (key, description, priority) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET description = excluded.description, priority = excluded.priority`,
		key, rec.Description, int(rec.Priority))
	if err != nil {
		return err
	}
	s.poke()
	return nil
}

// Update implements service.Service.
func (s *Store) Update(ctx context.Context, key, description string, priority task.Priority) error {
	if s.isClosed() {
		return ErrClosed
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET description = ?, priority = ? WHERE key = ?`,
		description, int(priority), key)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return s.Set(ctx, key, task.NewRecord(description, priority))
	}
	s.poke()
	return nil
}

// Delete implements service.Service.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s.isClosed() {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE key = ?`, key); err != nil {
		return err
	}
	s.poke()
	return nil
}

// Close stops the watcher, ends all subscriptions and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for sub := range s.subs {
		sub.feed.Stop()
	}
	s.subs = nil
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return errors.Join(s.watch.Close(), s.db.Close())
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) poke() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Store) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
			s.refresh(ctx, true)
		case <-ticker.C:
			s.refresh(ctx, false)
		}
	}
}

// refresh publishes a new snapshot when the contents changed. Unless
// forced, it first checks data_version and skips the query when no other
// connection has committed.
func (s *Store) refresh(ctx context.Context, force bool) {
	v, err := s.dataVersion(ctx)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.mu.Lock()
	changed := v != s.version
	s.version = v
	s.mu.Unlock()
	if !changed && !force {
		return
	}

	entries, err := s.list(ctx)
	if err != nil {
		s.fail(ctx, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Equal(entries, s.last) {
		return
	}
	s.last = entries
	for sub := range s.subs {
		sub.feed.Push(entries)
	}
	s.logger.Debug("published snapshot", "tasks", len(entries), "subscribers", len(s.subs))
}

func (s *Store) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Warn("sqlite watch failed", "err", err)
	s.mu.Lock()
	handlers := make([]func(error), 0, len(s.subs))
	for sub := range s.subs {
		if sub.onError != nil {
			handlers = append(handlers, sub.onError)
		}
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(err)
	}
}

func (s *Store) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.watch.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v)
	return v, err
}

func (s *Store) list(ctx context.Context) ([]task.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, description, priority FROM tasks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []task.Entry
	for rows.Next() {
		var e task.Entry
		if err := rows.Scan(&e.Key, &e.Record.Description, &e.Record.Priority); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	task.SortEntries(entries)
	return entries, nil
}
