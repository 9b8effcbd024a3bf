package dialog

import (
	"testing"

	"todolist/internal/task"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		description  string
		high, medium bool
		low          bool
		want         Errors
	}{
		{"valid", "Buy milk", true, false, false, Errors{}},
		{"missing title", "", false, true, false, Errors{Title: MsgTitleRequired}},
		{"blank title", "   ", false, false, true, Errors{Title: MsgTitleRequired}},
		{"missing priority", "Buy milk", false, false, false, Errors{Priority: MsgPriorityRequired}},
		{"both missing", "", false, false, false, Errors{Title: MsgTitleRequired, Priority: MsgPriorityRequired}},
		{"two priorities", "x", true, true, false, Errors{Priority: MsgPriorityRequired}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.description, tt.high, tt.medium, tt.low)
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestSubmit_InvalidStaysOpenWithBothErrors(t *testing.T) {
	s := NewAdd()
	if _, ok := s.Submit(); ok {
		t.Fatal("expected submit to fail")
	}
	if s.State() != StateOpen {
		t.Errorf("expected StateOpen, got %v", s.State())
	}
	errs := s.Errors()
	if errs.Title != MsgTitleRequired || errs.Priority != MsgPriorityRequired {
		t.Errorf("expected both errors, got %+v", errs)
	}
}

func TestEditingClearsErrors(t *testing.T) {
	s := NewAdd()
	s.Submit()

	s.SetDescription("Buy milk")
	if s.Errors().Title != "" {
		t.Errorf("expected title error cleared, got %q", s.Errors().Title)
	}
	if s.Errors().Priority == "" {
		t.Error("expected priority error to remain")
	}

	s.SetChecked(task.PriorityLow, true)
	if s.Errors().Any() {
		t.Errorf("expected no errors, got %+v", s.Errors())
	}
}

func TestSetChecked_MutuallyExclusive(t *testing.T) {
	s := NewAdd()
	s.SetChecked(task.PriorityHigh, true)
	s.SetChecked(task.PriorityLow, true)

	high, medium, low := s.Selection()
	if high || medium || !low {
		t.Errorf("expected only low, got high=%v medium=%v low=%v", high, medium, low)
	}

	s.SetChecked(task.PriorityLow, false)
	if s.Priority() != task.PriorityNone {
		t.Errorf("expected no priority, got %v", s.Priority())
	}
}

func TestCycle(t *testing.T) {
	s := NewAdd()
	want := []task.Priority{task.PriorityHigh, task.PriorityMedium, task.PriorityLow, task.PriorityHigh}
	for _, w := range want {
		s.Cycle()
		if s.Priority() != w {
			t.Errorf("expected %v, got %v", w, s.Priority())
		}
	}
}

func TestSubmit_Valid(t *testing.T) {
	s := NewAdd()
	s.SetDescription("Buy milk")
	s.SetChecked(task.PriorityHigh, true)

	rec, ok := s.Submit()
	if !ok {
		t.Fatalf("expected submit to succeed, errors %+v", s.Errors())
	}
	if rec != task.NewRecord("Buy milk", task.PriorityHigh) {
		t.Errorf("unexpected record %+v", rec)
	}
	if s.State() != StateClosed {
		t.Errorf("expected StateClosed, got %v", s.State())
	}
	if _, ok := s.Submit(); ok {
		t.Error("expected second submit on closed session to fail")
	}
}

func TestPrefill(t *testing.T) {
	s := NewEdit("3")
	if !s.Prefill(task.NewRecord("Walk dog", task.PriorityMedium)) {
		t.Fatal("expected prefill to apply")
	}
	if s.Description() != "Walk dog" || s.Priority() != task.PriorityMedium {
		t.Errorf("unexpected prefill %q %v", s.Description(), s.Priority())
	}
	if s.Key() != "3" || s.Mode() != ModeEdit {
		t.Errorf("unexpected key/mode %q %v", s.Key(), s.Mode())
	}
}

func TestPrefill_IgnoredAfterClose(t *testing.T) {
	s := NewEdit("3")
	s.Cancel()
	if s.Prefill(task.NewRecord("late", task.PriorityHigh)) {
		t.Error("expected prefill to be ignored")
	}
	if s.Description() != "" {
		t.Errorf("expected empty description, got %q", s.Description())
	}
}
