package task

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPriorityFromSelection(t *testing.T) {
	tests := []struct {
		high, medium, low bool
		want              Priority
	}{
		{false, false, false, PriorityNone},
		{true, false, false, PriorityHigh},
		{false, true, false, PriorityMedium},
		{false, false, true, PriorityLow},
		{true, true, false, PriorityHigh},
		{true, false, true, PriorityHigh},
		{true, true, true, PriorityHigh},
		{false, true, true, PriorityMedium},
	}

	for _, tt := range tests {
		got := PriorityFromSelection(tt.high, tt.medium, tt.low)
		if got != tt.want {
			t.Errorf("PriorityFromSelection(%v, %v, %v) = %d, want %d", tt.high, tt.medium, tt.low, got, tt.want)
		}
	}
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]Priority{
		"high":   PriorityHigh,
		"HIGH":   PriorityHigh,
		"m":      PriorityMedium,
		"3":      PriorityLow,
		" low ":  PriorityLow,
		"medium": PriorityMedium,
	} {
		got, err := ParsePriority(in)
		if err != nil {
			t.Errorf("ParsePriority(%q): unexpected error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParsePriority(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParsePriority("urgent"); err == nil {
		t.Error("expected error for unknown priority")
	}
}

func TestPriorityValid(t *testing.T) {
	if !PriorityNone.Valid() || !PriorityLow.Valid() {
		t.Error("expected 0 and 3 to be valid")
	}
	if Priority(4).Valid() || Priority(-1).Valid() {
		t.Error("expected 4 and -1 to be invalid")
	}
}

func TestSortEntries_NumericKeysFirst(t *testing.T) {
	entries := []Entry{
		{Key: "b"},
		{Key: "10"},
		{Key: "2"},
		{Key: "a"},
		{Key: "0"},
	}
	SortEntries(entries)

	var got []string
	for _, e := range entries {
		got = append(got, e.Key)
	}
	want := []string{"0", "2", "10", "a", "b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}
