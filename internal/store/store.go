// Package store holds the local, ordered mirror of the remote task collection.
package store

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"todolist/internal/task"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidKeyFormat is returned by NextKey when the last key is not a
	// decimal integer or has no representable successor.
	ErrInvalidKeyFormat = errors.New("invalid key format")
)

// KeyedStore is an ordered mapping from key to record. Its order is the
// display order. Contents only change through ReplaceAll.
type KeyedStore struct {
	mu      sync.RWMutex
	entries []task.Entry
	index   map[string]int
	version uint64
}

// New returns an empty store.
func New() *KeyedStore {
	return &KeyedStore{index: make(map[string]int)}
}

// ReplaceAll discards the current contents and installs entries in the given
// order. Duplicate keys keep their first position and the last record.
func (s *KeyedStore) ReplaceAll(entries []task.Entry) {
	next := make([]task.Entry, 0, len(entries))
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		if i, ok := index[e.Key]; ok {
			next[i].Record = e.Record
			continue
		}
		index[e.Key] = len(next)
		next = append(next, e)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = next
	s.index = index
	s.version++
}

// Get returns the record stored under key.
func (s *KeyedStore) Get(key string) (task.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[key]
	if !ok {
		return task.Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return s.entries[i].Record, nil
}

// Entries returns a copy of the contents in display order.
func (s *KeyedStore) Entries() []task.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]task.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Keys returns the keys in display order.
func (s *KeyedStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, len(s.entries))
	for i, e := range s.entries {
		keys[i] = e.Key
	}
	return keys
}

// Len returns the number of entries.
func (s *KeyedStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Version counts ReplaceAll calls. It lets readers tell whether a refresh
// happened since they last looked.
func (s *KeyedStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// NextKey returns the key the next added task should be written under.
func (s *KeyedStore) NextKey() (string, error) {
	return NextKey(s.Keys())
}

// NextKey applies the key-generation policy to keys in display order:
// "0" for an empty sequence, otherwise the last key plus one.
//
// Keys are assumed to be contiguous decimal integers that are never reused.
// Deleting from the middle and then adding can therefore reuse a key.
func NextKey(keys []string) (string, error) {
	if len(keys) == 0 {
		return "0", nil
	}
	last := keys[len(keys)-1]
	n, err := strconv.Atoi(last)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidKeyFormat, last)
	}
	if n == math.MaxInt {
		return "", fmt.Errorf("%w: %q has no successor", ErrInvalidKeyFormat, last)
	}
	return strconv.Itoa(n + 1), nil
}
