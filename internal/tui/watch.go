// Package tui is the live task view behind `taskctl watch`: the task list,
// kept current by the push channel, with a few intents wired to keys.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jrsteele09/go-task-client/push"
	"github.com/jrsteele09/go-task-client/tasks"
	"github.com/jrsteele09/go-task-client/users"
)

// Channel is the push channel as the view sees it.
type Channel interface {
	Open(ctx context.Context) error
	Close() error
	State() (push.State, error)
}

// StateChange is one push channel transition, relayed into the update loop.
type StateChange struct {
	State push.State
	Err   error
}

// StateRelay returns a listener to register on the reconciler and the channel
// the view reads transitions from. Transitions are dropped if the view falls
// behind; the view re-reads the current state when it catches up.
func StateRelay() (push.StateListener, <-chan StateChange) {
	ch := make(chan StateChange, 16)
	return func(state push.State, err error) {
		select {
		case ch <- StateChange{State: state, Err: err}:
		default:
		}
	}, ch
}

type Config struct {
	Tasks    *tasks.Store
	Channel  Channel
	States   <-chan StateChange
	Identity *users.User
	Users    users.Directory
	// Timeout bounds each backend call the view makes.
	Timeout time.Duration
}

type fetchedMsg struct{ err error }
type openedMsg struct{ err error }
type changedMsg struct{}
type removedMsg struct {
	id  tasks.ID
	err error
}

var statusFilters = []tasks.Status{"", tasks.StatusTodo, tasks.StatusInProgress, tasks.StatusDone}

// Model is the bubbletea model for the watch view.
type Model struct {
	cfg         Config
	changes     <-chan struct{}
	unsubscribe func()

	list        []tasks.Task
	cursor      int
	filter      int
	overdueOnly bool
	channel     push.State
	err         error
	loading     bool
	width       int
	quitting    bool
}

func New(cfg Config) *Model {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	changes, unsubscribe := cfg.Tasks.Subscribe()
	m := &Model{
		cfg:         cfg,
		changes:     changes,
		unsubscribe: unsubscribe,
		loading:     true,
	}
	m.channel, _ = cfg.Channel.State()
	m.refresh()
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.open(), m.waitForChange(), m.waitForState())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case fetchedMsg:
		m.loading = false
		m.err = msg.err
		m.refresh()
		return m, nil

	case openedMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		m.channel, _ = m.cfg.Channel.State()
		return m, nil

	case changedMsg:
		m.refresh()
		return m, m.waitForChange()

	case StateChange:
		m.channel = msg.State
		if msg.Err != nil {
			m.err = msg.Err
		}
		return m, m.waitForState()

	case removedMsg:
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		m.shutdown()
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.list)-1 {
			m.cursor++
		}
	case "f":
		m.filter = (m.filter + 1) % len(statusFilters)
		m.refresh()
	case "o":
		m.overdueOnly = !m.overdueOnly
		m.refresh()
	case "r":
		m.loading = true
		return m, m.fetch()
	case "d":
		if m.cursor < len(m.list) {
			return m, m.remove(m.list[m.cursor].ID)
		}
	}
	return m, nil
}

// shutdown tears down the push channel. The view must not outlive it.
func (m *Model) shutdown() {
	if m.quitting {
		return
	}
	m.quitting = true
	m.unsubscribe()
	_ = m.cfg.Channel.Close()
}

// Visible returns the tasks the view currently shows.
func (m *Model) Visible() []tasks.Task {
	return m.list
}

func (m *Model) refresh() {
	list := m.cfg.Tasks.Tasks()
	if status := statusFilters[m.filter]; status != "" {
		list = tasks.ByStatus(list, status)
	}
	if m.overdueOnly {
		list = tasks.Overdue(list, tasks.NowTimeFunc())
	}
	m.list = list
	if m.cursor >= len(m.list) {
		m.cursor = max(len(m.list)-1, 0)
	}
}

func (m *Model) fetch() tea.Cmd {
	store, timeout := m.cfg.Tasks, m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fetchedMsg{err: store.FetchAll(ctx)}
	}
}

func (m *Model) open() tea.Cmd {
	channel, timeout := m.cfg.Channel, m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return openedMsg{err: channel.Open(ctx)}
	}
}

func (m *Model) remove(id tasks.ID) tea.Cmd {
	store, timeout := m.cfg.Tasks, m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return removedMsg{id: id, err: store.Remove(ctx, id)}
	}
}

func (m *Model) waitForChange() tea.Cmd {
	changes := m.changes
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m *Model) waitForState() tea.Cmd {
	states := m.cfg.States
	if states == nil {
		return nil
	}
	return func() tea.Msg {
		change, ok := <-states
		if !ok {
			return nil
		}
		return change
	}
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("tasks"))
	b.WriteString("  ")
	b.WriteString(subtleStyle.Render(m.cfg.Identity.String()))
	b.WriteString("  ")
	b.WriteString(channelBadge(m.channel))
	if m.loading {
		b.WriteString(subtleStyle.Render("  loading…"))
	}
	b.WriteString("\n\n")

	if len(m.list) == 0 {
		b.WriteString(subtleStyle.Render("  no tasks"))
		b.WriteString("\n")
	}
	now := tasks.NowTimeFunc()
	for i, t := range m.list {
		b.WriteString(m.renderRow(t, i == m.cursor, now))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderSummary(now))
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.renderHelp()))
	return b.String()
}

func (m *Model) renderRow(t tasks.Task, selected bool, now time.Time) string {
	marker := "  "
	if selected {
		marker = "> "
	}

	title := t.Title
	if selected {
		title = selectedStyle.Render(title)
	}

	var extra []string
	if t.DueDate != nil {
		due := "due " + t.DueDate.String()
		if t.IsOverdue(now) {
			due = overdueStyle.Render(due)
		}
		extra = append(extra, due)
	}
	if t.AssignedUserID != nil && len(m.cfg.Users) > 0 {
		extra = append(extra, "@"+m.cfg.Users.Lookup(*t.AssignedUserID))
	} else if t.User != "" {
		extra = append(extra, "@"+t.User)
	}

	row := fmt.Sprintf("%s%-6s %s %s", marker, t.ID, statusBadge(t.Status), title)
	if len(extra) > 0 {
		row += "  " + subtleStyle.Render(strings.Join(extra, " "))
	}
	return row
}

func (m *Model) renderSummary(now time.Time) string {
	stats := tasks.ComputeStats(m.cfg.Tasks.Tasks(), now)
	return subtleStyle.Render(fmt.Sprintf("%d tasks · %d pending · %d in progress · %d done · %d overdue",
		stats.Total(), stats.Pending, stats.InProgress, stats.Completed, stats.Overdue))
}

func (m *Model) renderHelp() string {
	filter := "all"
	if s := statusFilters[m.filter]; s != "" {
		filter = string(s)
	}
	overdue := "off"
	if m.overdueOnly {
		overdue = "on"
	}
	return fmt.Sprintf("↑/↓ move · f filter (%s) · o overdue (%s) · r refresh · d delete · q quit", filter, overdue)
}
