// Package dialog models the add/edit task dialog independently of any UI.
package dialog

import (
	"strings"
	"sync"

	"todolist/internal/task"
)

// Validation messages shown next to the offending field.
const (
	MsgTitleRequired    = "Enter task title"
	MsgPriorityRequired = "Choose task priority"
)

// Mode says whether a session creates a task or edits an existing one.
type Mode int

const (
	ModeAdd Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "add"
}

// State is the session lifecycle: Idle -> Open -> Validating -> Open or Closed.
type State int

const (
	StateIdle State = iota
	StateOpen
	StateValidating
	StateClosed
)

// Errors holds the per-field validation messages. Empty means no error.
type Errors struct {
	Title    string
	Priority string
}

// Any reports whether either field has an error.
func (e Errors) Any() bool {
	return e.Title != "" || e.Priority != ""
}

// Validate checks a description and checkbox selection. Both checks always run.
func Validate(description string, high, medium, low bool) Errors {
	var errs Errors
	if strings.TrimSpace(description) == "" {
		errs.Title = MsgTitleRequired
	}
	selected := 0
	for _, b := range []bool{high, medium, low} {
		if b {
			selected++
		}
	}
	if selected != 1 {
		errs.Priority = MsgPriorityRequired
	}
	return errs
}

// Session is one opening of the dialog. It carries its own mode and target
// key, so a late prefill or commit can always tell which task it belongs to.
// A Session is safe for concurrent use.
type Session struct {
	mu    sync.Mutex
	mode  Mode
	key   string
	state State

	description       string
	high, medium, low bool
	errs              Errors
	prefilled         bool
}

// NewAdd opens a session for a new task.
func NewAdd() *Session {
	return &Session{mode: ModeAdd, state: StateOpen}
}

// NewEdit opens a session editing key. Fields stay empty until Prefill.
func NewEdit(key string) *Session {
	return &Session{mode: ModeEdit, key: key, state: StateOpen}
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Description() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.description
}

func (s *Session) Errors() Errors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs
}

func (s *Session) Prefilled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefilled
}

func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateOpen
}

func (s *Session) Selection() (high, medium, low bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.high, s.medium, s.low
}

// Priority returns the priority implied by the checkboxes.
func (s *Session) Priority() task.Priority {
	s.mu.Lock()
	defer s.mu.Unlock()
	return task.PriorityFromSelection(s.high, s.medium, s.low)
}

// Prefill loads rec into an open session. It reports false, and changes
// nothing, once the session has closed.
func (s *Session) Prefill(rec task.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return false
	}
	s.description = rec.Description
	s.high, s.medium, s.low = false, false, false
	s.setChecked(rec.Priority, true)
	s.prefilled = true
	return true
}

// SetDescription replaces the title text and clears the title error.
func (s *Session) SetDescription(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return
	}
	s.description = text
	s.errs.Title = ""
}

// SetChecked sets one priority checkbox. Checking one unchecks the others
// and clears the priority error.
func (s *Session) SetChecked(p task.Priority, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return
	}
	s.check(p, checked)
}

// Cycle moves the selection to the next priority: high, medium, low, high.
func (s *Session) Cycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return
	}
	switch task.PriorityFromSelection(s.high, s.medium, s.low) {
	case task.PriorityHigh:
		s.check(task.PriorityMedium, true)
	case task.PriorityMedium:
		s.check(task.PriorityLow, true)
	default:
		s.check(task.PriorityHigh, true)
	}
}

// Submit validates the session. On success it closes the session and
// returns the record to commit. On failure the session stays open with
// both error indicators set as appropriate.
func (s *Session) Submit() (task.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return task.Record{}, false
	}
	s.state = StateValidating
	s.errs = Validate(s.description, s.high, s.medium, s.low)
	if s.errs.Any() {
		s.state = StateOpen
		return task.Record{}, false
	}
	s.state = StateClosed
	return task.NewRecord(s.description, task.PriorityFromSelection(s.high, s.medium, s.low)), true
}

// Cancel closes the session without committing.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
}

func (s *Session) check(p task.Priority, checked bool) {
	if checked {
		s.high, s.medium, s.low = false, false, false
	}
	s.setChecked(p, checked)
	if checked && p != task.PriorityNone {
		s.errs.Priority = ""
	}
}

func (s *Session) setChecked(p task.Priority, checked bool) {
	switch p {
	case task.PriorityHigh:
		s.high = checked
	case task.PriorityMedium:
		s.medium = checked
	case task.PriorityLow:
		s.low = checked
	}
}
