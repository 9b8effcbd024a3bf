// Package selection tracks task keys marked for batch deletion.
package selection

import "sync"

// Set is an insertion-ordered set of keys. It does not check keys against
// the store; a key that has since disappeared is simply ignored downstream.
type Set struct {
	mu    sync.Mutex
	keys  []string
	index map[string]struct{}
}

// New returns an empty selection.
func New() *Set {
	return &Set{index: make(map[string]struct{})}
}

// Toggle adds key if absent and removes it if present.
// It returns true when key is selected afterwards.
func (s *Set) Toggle(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[key]; ok {
		delete(s.index, key)
		for i, k := range s.keys {
			if k == key {
				s.keys = append(s.keys[:i], s.keys[i+1:]...)
				break
			}
		}
		return false
	}
	s.index[key] = struct{}{}
	s.keys = append(s.keys, key)
	return true
}

// Contains reports whether key is selected.
func (s *Set) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[key]
	return ok
}

// Clear empties the selection.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = nil
	s.index = make(map[string]struct{})
}

// Members returns the selected keys in the order they were selected.
func (s *Set) Members() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of selected keys.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
