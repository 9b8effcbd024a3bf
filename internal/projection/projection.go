// Package projection derives display rows from the task store.
package projection

import (
	"todolist/internal/store"
	"todolist/internal/task"
)

// Color is a presentation color name.
type Color string

// Priority colors.
const (
	ColorNone  Color = ""
	ColorRed   Color = "red"
	ColorBlue  Color = "blue"
	ColorGreen Color = "green"
)

// ColorFor maps a priority to its color: high is red, medium is blue,
// low is green. PriorityNone (and anything unknown) has no color.
func ColorFor(p task.Priority) (Color, bool) {
	switch p {
	case task.PriorityHigh:
		return ColorRed, true
	case task.PriorityMedium:
		return ColorBlue, true
	case task.PriorityLow:
		return ColorGreen, true
	default:
		return ColorNone, false
	}
}

// Row is one display-ready list item.
type Row struct {
	Key    string
	Record task.Record
	Color  Color
}

// Project returns the store's entries as rows, in store order.
func Project(s *store.KeyedStore) []Row {
	return FromEntries(s.Entries())
}

// FromEntries converts entries to rows without reordering them.
func FromEntries(entries []task.Entry) []Row {
	rows := make([]Row, len(entries))
	for i, e := range entries {
		color, _ := ColorFor(e.Record.Priority)
		rows[i] = Row{Key: e.Key, Record: e.Record, Color: color}
	}
	return rows
}
