// Package watchtui is a live terminal viewer for a running interpreter's
// Event Log, built on Bubble Tea. It polls the log for new events and
// renders them as a scrolling table.
package watchtui

import (
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"

	"github.com/cortexflow/wec/internal/wec/eventlog"
)

const pollInterval = 250 * time.Millisecond

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	successColor = lipgloss.Color("82")
	failureColor = lipgloss.Color("196")
)

const (
	colTime   = "time"
	colType   = "type"
	colStep   = "step"
	colDetail = "detail"
)

// Model is the Bubble Tea model for the watch view.
type Model struct {
	log       eventlog.Log
	workflow  string
	tbl       table.Model
	rows      []table.Row
	seen      int
	lastErr   error
	windowW   int
	windowH   int
	aborted   bool
	completed bool
}

// New builds a watch Model over log for a workflow identified by name (used
// only for display).
func New(log eventlog.Log, workflow string) Model {
	columns := []table.Column{
		table.NewColumn(colTime, "Time", 10),
		table.NewColumn(colType, "Event", 18),
		table.NewColumn(colStep, "Step", 16),
		table.NewColumn(colDetail, "Detail", 50),
	}

	return Model{
		log:      log,
		workflow: workflow,
		tbl:      table.New(columns).Focused(true).WithPageSize(20),
	}
}

type pollMsg struct {
	events []eventlog.Event
	err    error
}

func pollCmd(log eventlog.Log) tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		events, err := log.Events()
		return pollMsg{events: events, err: err}
	})
}

// Init starts the poll loop.
func (m Model) Init() tea.Cmd {
	return pollCmd(m.log)
}

// Update handles poll ticks, key presses, and window resizes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowW, m.windowH = msg.Width, msg.Height
		m.tbl = m.tbl.WithTargetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.tbl, cmd = m.tbl.Update(msg)
		return m, cmd

	case pollMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, pollCmd(m.log)
		}
		m.lastErr = nil
		if len(msg.events) > m.seen {
			m.appendRows(msg.events[m.seen:])
			m.seen = len(msg.events)
		}
		for _, e := range msg.events {
			switch e.EventType {
			case eventlog.WorkflowComplete:
				m.completed = true
			case eventlog.WorkflowAborted:
				m.aborted = true
			}
		}
		return m, pollCmd(m.log)
	}

	return m, nil
}

func (m *Model) appendRows(events []eventlog.Event) {
	for _, e := range events {
		m.rows = append(m.rows, table.NewRow(table.RowData{
			colTime:   e.Timestamp.Format("15:04:05"),
			colType:   string(e.EventType),
			colStep:   e.StepID,
			colDetail: detailOf(e),
		}).WithStyle(styleFor(e.EventType)))
	}
	m.tbl = m.tbl.WithRows(m.rows)
}

func styleFor(t eventlog.EventType) lipgloss.Style {
	switch t {
	case eventlog.StepSuccess, eventlog.WorkflowComplete:
		return lipgloss.NewStyle().Foreground(successColor)
	case eventlog.StepFailure, eventlog.WorkflowAborted:
		return lipgloss.NewStyle().Foreground(failureColor)
	default:
		return lipgloss.NewStyle()
	}
}

func detailOf(e eventlog.Event) string {
	if e.Payload == nil {
		return ""
	}
	if stdout, ok := e.Payload["stdout"].(string); ok && stdout != "" {
		return truncate(stdout, 48)
	}
	if reason, ok := e.Payload["error"].(string); ok && reason != "" {
		return truncate(reason, 48)
	}
	if reason, ok := e.Payload["reason"].(string); ok && reason != "" {
		return truncate(reason, 48)
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// View renders the header, table, and status footer.
func (m Model) View() string {
	header := headerStyle.Render("wec watch — " + m.workflow)

	status := "running"
	switch {
	case m.completed:
		status = "complete"
	case m.aborted:
		status = errorStyle.Render("aborted")
	}

	footer := footerStyle.Render("events: " + strconv.Itoa(m.seen) + " │ status: " + status + " │ q to quit")
	if m.lastErr != nil {
		footer = errorStyle.Render("log read error: "+m.lastErr.Error()) + "\n" + footer
	}

	return header + "\n" + m.tbl.View() + "\n" + footer
}
