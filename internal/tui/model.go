// Package tui is the interactive task list: a bubbletea program over an
// app.Controller.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"todolist/internal/app"
	"todolist/internal/connectivity"
	"todolist/internal/dialog"
	"todolist/internal/output"
	"todolist/internal/projection"
	"todolist/internal/task"
)

type (
	rowsMsg    []projection.Row
	errMsg     struct{ err error }
	startedMsg struct{ err error }
	loadedMsg  struct {
		session *dialog.Session
		found   bool
	}
)

// bridge forwards controller callbacks into the running program. Model
// values are copied on every update, so they share it by pointer.
type bridge struct {
	send func(tea.Msg)
}

func (b *bridge) post(msg tea.Msg) {
	if b.send != nil {
		b.send(msg)
	}
}

// Model is the bubbletea model for the task list.
type Model struct {
	ctx     context.Context
	ctrl    *app.Controller
	checker connectivity.Checker
	styles  *output.Styles
	keys    keyMap
	help    help.Model
	bridge  *bridge

	rows    []projection.Row
	cursor  int
	offline bool
	started bool
	status  string

	session *dialog.Session
	input   textinput.Model
	loading bool
}

// New returns a model over ctrl. Call Attach once the program exists.
func New(ctx context.Context, ctrl *app.Controller, checker connectivity.Checker, styles *output.Styles) Model {
	input := textinput.New()
	input.Placeholder = "What needs doing?"
	input.CharLimit = 256
	input.Width = 48

	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		checker: checker,
		styles:  styles,
		keys:    newKeyMap(),
		help:    help.New(),
		bridge:  &bridge{},
		input:   input,
	}
}

// Attach routes controller snapshots and failures to send, normally
// (*tea.Program).Send.
func (m Model) Attach(send func(tea.Msg)) {
	m.bridge.send = send
	m.ctrl.OnRows(func(rows []projection.Row) { m.bridge.post(rowsMsg(rows)) })
	m.ctrl.OnError(func(err error) { m.bridge.post(errMsg{err}) })
}

// Run starts the program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, ctrl *app.Controller, checker connectivity.Checker, styles *output.Styles, opts ...tea.ProgramOption) error {
	m := New(ctx, ctrl, checker, styles)
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(m, opts...)
	m.Attach(p.Send)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	ctx, ctrl, checker := m.ctx, m.ctrl, m.checker
	return func() tea.Msg {
		return startedMsg{err: ctrl.Start(ctx, checker)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startedMsg:
		m.started = true
		if msg.err != nil {
			m.offline = errors.Is(msg.err, connectivity.ErrOffline)
			if !m.offline {
				m.status = msg.err.Error()
			}
		}
		return m, nil

	case rowsMsg:
		m.rows = msg
		m.offline = false
		if m.cursor >= len(m.rows) {
			m.cursor = max(len(m.rows)-1, 0)
		}
		return m, nil

	case errMsg:
		m.status = msg.err.Error()
		return m, nil

	case loadedMsg:
		return m.loaded(msg), nil

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.session != nil {
			return m.updateDialog(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Toggle):
		if row, ok := m.current(); ok {
			m.ctrl.Toggle(row.Key)
		}

	case key.Matches(msg, m.keys.Add):
		if m.offline {
			m.status = output.OfflineMessage
			return m, nil
		}
		m.session = m.ctrl.OpenAdd()
		m.loading = false
		m.input.SetValue("")
		m.status = ""
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Edit):
		row, ok := m.current()
		if !ok || m.offline {
			return m, nil
		}
		b := m.bridge
		m.session = m.ctrl.OpenEdit(row.Key, func(s *dialog.Session, found bool) {
			b.post(loadedMsg{session: s, found: found})
		})
		m.loading = true
		m.input.SetValue("")
		m.status = ""
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Delete):
		n := m.ctrl.DeleteSelected()
		if n == 0 {
			m.status = "nothing ticked"
		} else {
			m.status = fmt.Sprintf("deleting %d task(s)", n)
		}
	}
	return m, nil
}

func (m Model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.session.Cancel()
		m.closeDialog()
		return m, nil

	case key.Matches(msg, m.keys.Cycle):
		m.session.Cycle()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if m.loading {
			return m, nil
		}
		m.session.SetDescription(m.input.Value())
		k, err := m.ctrl.Commit(m.session)
		if errors.Is(err, app.ErrInvalidTask) {
			return m, nil
		}
		if err != nil {
			m.status = err.Error()
		} else {
			m.status = fmt.Sprintf("saved task %s", k)
		}
		m.closeDialog()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.session.SetDescription(m.input.Value())
	return m, cmd
}

// loaded applies an edit prefill. Results for a session that is no longer
// shown are dropped.
func (m Model) loaded(msg loadedMsg) Model {
	if msg.session != m.session {
		return m
	}
	m.loading = false
	if !msg.found {
		m.session.Cancel()
		m.closeDialog()
		m.status = fmt.Sprintf("task %s no longer exists", msg.session.Key())
		return m
	}
	m.input.SetValue(m.session.Description())
	m.input.CursorEnd()
	return m
}

func (m *Model) closeDialog() {
	m.session = nil
	m.loading = false
	m.input.Blur()
	m.input.SetValue("")
}

func (m Model) current() (projection.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return projection.Row{}, false
	}
	return m.rows[m.cursor], true
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Key.Render("Tasks"))
	b.WriteString("\n\n")

	if m.session != nil {
		b.WriteString(m.viewDialog())
		b.WriteString("\n")
		b.WriteString(m.help.View(dialogKeys(m.keys)))
		return b.String()
	}

	switch {
	case m.offline:
		b.WriteString(m.styles.Error.Render(output.OfflineMessage))
		b.WriteString("\n")
	case !m.started:
		b.WriteString(m.styles.Muted.Render("connecting..."))
		b.WriteString("\n")
	case len(m.rows) == 0:
		b.WriteString(m.styles.Muted.Render(output.EmptyMessage))
		b.WriteString("\n")
	}

	for i, row := range m.rows {
		b.WriteString(m.viewRow(i, row))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(listKeys(m.keys)))
	return b.String()
}

func (m Model) viewRow(i int, row projection.Row) string {
	cursor := "  "
	if i == m.cursor {
		cursor = "> "
	}
	box := "[ ]"
	style := m.styles.For(row.Color)
	if m.ctrl.IsSelected(row.Key) {
		box = "[x]"
		style = m.styles.Ticked
	}
	desc := row.Record.Description
	if strings.TrimSpace(desc) == "" {
		desc = "(untitled)"
	}
	return fmt.Sprintf("%s%s %s %s", cursor, box, m.styles.Key.Render(fmt.Sprintf("%3s", row.Key)), style.Render(desc))
}

func (m Model) viewDialog() string {
	var b strings.Builder
	title := "Add task"
	if m.session.Mode() == dialog.ModeEdit {
		title = "Edit task " + m.session.Key()
	}
	b.WriteString(title)
	b.WriteString("\n\n")

	if m.loading {
		b.WriteString(m.styles.Muted.Render("loading..."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	errs := m.session.Errors()
	if errs.Title != "" {
		b.WriteString(m.styles.Error.Render(errs.Title))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	selected := m.session.Priority()
	choices := make([]string, 0, 3)
	for _, p := range []task.Priority{task.PriorityHigh, task.PriorityMedium, task.PriorityLow} {
		mark := "( )"
		if p == selected {
			mark = "(•)"
		}
		color, _ := projection.ColorFor(p)
		choices = append(choices, m.styles.For(color).Render(mark+" "+p.String()))
	}
	b.WriteString(strings.Join(choices, "  "))
	b.WriteString("\n")
	if errs.Priority != "" {
		b.WriteString(m.styles.Error.Render(errs.Priority))
		b.WriteString("\n")
	}
	return b.String()
}
