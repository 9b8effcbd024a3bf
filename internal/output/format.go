// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"todolist/internal/projection"
	"todolist/internal/task"
)

const (
	// EmptyMessage is printed when the collection has no tasks.
	EmptyMessage = "no tasks found"

	// OfflineMessage is printed when the remote cannot be reached.
	OfflineMessage = "no internet connection"
)

// Styles renders priority colors for one writer. Color is dropped
// automatically when the writer is not a terminal.
type Styles struct {
	Red    lipgloss.Style
	Blue   lipgloss.Style
	Green  lipgloss.Style
	Muted  lipgloss.Style
	Ticked lipgloss.Style
	Error  lipgloss.Style
	Key    lipgloss.Style
}

// NewStyles returns styles bound to w.
func NewStyles(w io.Writer) *Styles {
	return NewStylesWithRenderer(lipgloss.NewRenderer(w))
}

// NewStylesWithRenderer returns styles for an existing renderer.
func NewStylesWithRenderer(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Red:    r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF5555"}),
		Blue:   r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#8BE9FD"}),
		Green:  r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#50FA7B"}),
		Muted:  r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9E9E9E", Dark: "#6272A4"}),
		Ticked: r.NewStyle().Strikethrough(true).Foreground(lipgloss.AdaptiveColor{Light: "#BDBDBD", Dark: "#6272A4"}),
		Error:  r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF5555"}).Bold(true),
		Key:    r.NewStyle().Faint(true),
	}
}

// For returns the style for a row color.
func (s *Styles) For(c projection.Color) lipgloss.Style {
	switch c {
	case projection.ColorRed:
		return s.Red
	case projection.ColorBlue:
		return s.Blue
	case projection.ColorGreen:
		return s.Green
	default:
		return lipgloss.NewStyle()
	}
}

// FormatRow formats one row.
// Format: "{KEY:>4}  {PRIORITY:<6}  {DESCRIPTION}\n"
func FormatRow(w io.Writer, st *Styles, row projection.Row) {
	fmt.Fprintf(w, "%s  %-6s  %s\n",
		st.Key.Render(fmt.Sprintf("%4s", row.Key)),
		priorityLabel(row.Record.Priority),
		st.For(row.Color).Render(normalizeTitle(row.Record.Description)))
}

// FormatRows formats every row, or EmptyMessage when there are none.
func FormatRows(w io.Writer, st *Styles, rows []projection.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, EmptyMessage)
		return
	}
	for _, row := range rows {
		FormatRow(w, st, row)
	}
}

// FormatRecord formats a single task for the show command.
func FormatRecord(w io.Writer, st *Styles, key string, rec task.Record) {
	color, _ := projection.ColorFor(rec.Priority)
	fmt.Fprintf(w, "key:         %s\n", key)
	fmt.Fprintf(w, "description: %s\n", st.For(color).Render(normalizeTitle(rec.Description)))
	fmt.Fprintf(w, "priority:    %s\n", priorityLabel(rec.Priority))
}

func priorityLabel(p task.Priority) string {
	if p == task.PriorityNone {
		return "-"
	}
	return p.String()
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
