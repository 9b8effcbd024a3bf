package output

import (
	"bytes"
	"testing"

	"todolist/internal/projection"
	"todolist/internal/task"
	"todolist/internal/testutil"
)

func TestFormatRows(t *testing.T) {
	var buf bytes.Buffer
	st := NewStyles(&buf)

	rows := projection.FromEntries([]task.Entry{
		{Key: "0", Record: task.NewRecord("Buy milk", task.PriorityHigh)},
		{Key: "1", Record: task.NewRecord("Walk\ndog", task.PriorityMedium)},
		{Key: "2", Record: task.NewRecord("  ", task.PriorityNone)},
		{Key: "10", Record: task.NewRecord("Call mom", task.PriorityLow)},
	})
	FormatRows(&buf, st, rows)

	testutil.GoldenString(t, "rows", buf.String())
}

func TestFormatRows_Empty(t *testing.T) {
	var buf bytes.Buffer
	FormatRows(&buf, NewStyles(&buf), nil)

	if got := buf.String(); got != EmptyMessage+"\n" {
		t.Errorf("expected %q, got %q", EmptyMessage+"\n", got)
	}
}

func TestFormatRecord(t *testing.T) {
	var buf bytes.Buffer
	FormatRecord(&buf, NewStyles(&buf), "7", task.NewRecord("Pay rent", task.PriorityMedium))

	testutil.GoldenString(t, "record", buf.String())
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Buy milk", "Buy milk"},
		{"a\r\nb", "a  b"},
		{"", "(untitled)"},
		{" \t ", "(untitled)"},
	}
	for _, tt := range tests {
		if got := normalizeTitle(tt.in); got != tt.want {
			t.Errorf("normalizeTitle(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
