package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/opentask/taskin/internal/task"
	"github.com/opentask/taskin/internal/taskdoc"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	okStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
)

var statusColors = map[task.Status]lipgloss.Color{
	task.StatusPending:    "244",
	task.StatusInProgress: "39",
	task.StatusDone:       "42",
	task.StatusBlocked:    "196",
	task.StatusCanceled:   "240",
}

func renderStatus(s task.Status) string {
	c, ok := statusColors[s]
	if !ok {
		c = "252"
	}
	return lipgloss.NewStyle().Foreground(c).Render(string(s))
}

func renderSeverity(s taskdoc.Severity) string {
	switch s {
	case taskdoc.SeverityError:
		return errorStyle.Render(string(s))
	case taskdoc.SeverityWarning:
		return warningStyle.Render(string(s))
	}
	return infoStyle.Render(string(s))
}
