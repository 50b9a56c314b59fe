package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sockgate/sockgate"
	"github.com/sockgate/sockgate/stats"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#FF6B6B")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB"))

	opStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	totalsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type tickMsg time.Time

type monitorModel struct {
	filter   textinput.Model
	snap     stats.Snapshot
	interval time.Duration
	paused   bool
}

func newMonitorModel(interval time.Duration) *monitorModel {
	ti := textinput.New()
	ti.Placeholder = "filter operations"
	ti.Prompt = "/ "
	ti.CharLimit = 24
	ti.Width = 24
	return &monitorModel{
		filter:   ti,
		snap:     sockgate.Stats(),
		interval: interval,
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return m.tick()
}

func (m *monitorModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filter.Focused() {
			switch msg.String() {
			case "enter", "esc":
				m.filter.Blur()
				return m, nil
			case "ctrl+c":
				return m, tea.Quit
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "p", " ":
			m.paused = !m.paused

		case "/":
			m.filter.Focus()
			return m, textinput.Blink
		}

	case tickMsg:
		if !m.paused {
			m.snap = sockgate.Stats()
		}
		return m, m.tick()
	}

	return m, nil
}

func (m *monitorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("sockgate monitor"))
	if m.paused {
		b.WriteString(" ")
		b.WriteString(pausedStyle.Render("paused"))
	}
	b.WriteString("\n\n")

	managed, fallback, native := m.snap.Totals()
	b.WriteString(totalsStyle.Render(
		fmt.Sprintf("managed %d • fallback %d • native %d", managed, fallback, native)))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(
		fmt.Sprintf("%-14s %10s %10s %10s", "operation", "managed", "fallback", "native")))
	b.WriteString("\n")

	rows := m.visible()
	for _, oc := range rows {
		b.WriteString(opStyle.Render(fmt.Sprintf("%-14s", oc.Op)))
		b.WriteString(fmt.Sprintf(" %10d %10d %10d", oc.Managed, oc.Fallback, oc.Native))
		b.WriteString("\n")
	}
	if len(rows) == 0 {
		b.WriteString(helpStyle.Render("no matching operations yet"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("/ filter • p pause • q quit"))

	return b.String()
}

// visible filters the active operations by the current filter text.
func (m *monitorModel) visible() stats.Snapshot {
	snap := m.snap.Active()
	q := strings.TrimSpace(m.filter.Value())
	if q == "" {
		return snap
	}
	out := make(stats.Snapshot, 0, len(snap))
	for _, oc := range snap {
		if strings.Contains(string(oc.Op), q) {
			out = append(out, oc)
		}
	}
	return out
}

func runMonitor(interval time.Duration) error {
	p := tea.NewProgram(newMonitorModel(interval), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
