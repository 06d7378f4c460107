package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/jrsteele09/go-task-client/push"
	"github.com/jrsteele09/go-task-client/tasks"
)

var (
	primary = lipgloss.Color("#7C3AED")
	green   = lipgloss.Color("#10B981")
	amber   = lipgloss.Color("#F59E0B")
	red     = lipgloss.Color("#EF4444")
	blue    = lipgloss.Color("#3B82F6")
	muted   = lipgloss.Color("#6B7280")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(primary)
	subtleStyle   = lipgloss.NewStyle().Foreground(muted)
	errorStyle    = lipgloss.NewStyle().Foreground(red).Bold(true)
	selectedStyle = lipgloss.NewStyle().Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(muted).MarginTop(1)

	statusStyles = map[tasks.Status]lipgloss.Style{
		tasks.StatusTodo:       lipgloss.NewStyle().Foreground(muted),
		tasks.StatusInProgress: lipgloss.NewStyle().Foreground(blue),
		tasks.StatusDone:       lipgloss.NewStyle().Foreground(green),
		tasks.StatusOverdue:    lipgloss.NewStyle().Foreground(red),
	}
	overdueStyle = lipgloss.NewStyle().Foreground(red).Bold(true)

	channelStyles = map[push.State]lipgloss.Style{
		push.StateConnecting: lipgloss.NewStyle().Foreground(amber),
		push.StateOpen:       lipgloss.NewStyle().Foreground(green),
		push.StateClosed:     lipgloss.NewStyle().Foreground(muted),
		push.StateErrored:    lipgloss.NewStyle().Foreground(red),
	}
)

func statusBadge(s tasks.Status) string {
	style, ok := statusStyles[s]
	if !ok {
		style = subtleStyle
	}
	return style.Width(12).Render(string(s))
}

func channelBadge(s push.State) string {
	style, ok := channelStyles[s]
	if !ok {
		style = subtleStyle
	}
	return style.Render("● " + s.String())
}
