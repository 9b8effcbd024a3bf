// Package task defines the task record stored in the remote collection.
package task

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Priority is the three-level task priority. Zero means no priority was chosen.
type Priority int

// Priority levels as persisted in the collection.
const (
	PriorityNone   Priority = 0
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 2
	PriorityLow    Priority = 3
)

// Valid reports whether p is one of the persisted priority values (0-3).
func (p Priority) Valid() bool {
	return p >= PriorityNone && p <= PriorityLow
}

// String returns the lowercase priority name.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	case PriorityNone:
		return "none"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority parses a priority name ("high", "medium", "low") or its
// numeric form ("1", "2", "3"). Matching is case-insensitive.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "h", "1":
		return PriorityHigh, nil
	case "medium", "med", "m", "2":
		return PriorityMedium, nil
	case "low", "l", "3":
		return PriorityLow, nil
	}
	return PriorityNone, fmt.Errorf("invalid priority: %s", s)
}

// PriorityFromSelection maps the three priority checkboxes to a level.
// High wins over medium, medium over low; nothing selected yields PriorityNone.
func PriorityFromSelection(high, medium, low bool) Priority {
	switch {
	case high:
		return PriorityHigh
	case medium:
		return PriorityMedium
	case low:
		return PriorityLow
	default:
		return PriorityNone
	}
}

// Record is one task as stored under Tasks/<key>.
// Records are values; an edit produces a new Record.
type Record struct {
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

// NewRecord returns a Record with the given fields.
func NewRecord(description string, priority Priority) Record {
	return Record{Description: description, Priority: priority}
}

// Entry pairs a record with the key it lives under.
type Entry struct {
	Key    string
	Record Record
}

// CompareKeys orders keys the way the collection returns its children:
// keys that parse as integers come first in numeric order, all other keys
// follow in lexicographic order.
func CompareKeys(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return strings.Compare(a, b)
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// SortEntries sorts entries in place by CompareKeys.
func SortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return CompareKeys(a.Key, b.Key)
	})
}
