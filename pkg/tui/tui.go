// Package tui is a terminal alert feed for the monitored address.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fraud-watch/pkg/alerts"
	"github.com/fraud-watch/pkg/extractor"
	"github.com/fraud-watch/pkg/monitor"
)

// AlertSource is what the feed reads and acts on. *monitor.AlertsPage satisfies it.
type AlertSource interface {
	View() monitor.AlertsView
	Acknowledge(id string) error
	Resolve(id string) error
	Reopen(id string) error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("237"))
	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	highStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	mediumStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type tickMsg time.Time

type Model struct {
	source   AlertSource
	interval time.Duration
	view     monitor.AlertsView
	cursor   int
	notice   string
	err      error
}

func New(source AlertSource, interval time.Duration) Model {
	return Model{source: source, interval: interval, view: source.View()}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.reload()
		return m, m.tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.view.Alerts)-1 {
				m.cursor++
			}
		case "a":
			m.act("acknowledged", m.source.Acknowledge)
		case "r":
			m.act("resolved", m.source.Resolve)
		case "o":
			m.act("reopened", m.source.Reopen)
		}
	}
	return m, nil
}

func (m *Model) reload() {
	m.view = m.source.View()
	if m.cursor >= len(m.view.Alerts) {
		m.cursor = max(len(m.view.Alerts)-1, 0)
	}
}

func (m *Model) act(done string, op func(string) error) {
	id, ok := m.Selected()
	if !ok {
		return
	}
	if err := op(id); err != nil {
		m.err, m.notice = err, ""
		return
	}
	m.err, m.notice = nil, fmt.Sprintf("%s %s", extractor.Abbrev(id), done)
	m.reload()
}

// Selected returns the id of the alert under the cursor.
func (m Model) Selected() (string, bool) {
	if len(m.view.Alerts) == 0 {
		return "", false
	}
	return m.view.Alerts[m.cursor].ID, true
}

func severityStyle(s alerts.Severity) lipgloss.Style {
	switch s {
	case alerts.SeverityCritical:
		return criticalStyle
	case alerts.SeverityHigh:
		return highStyle
	case alerts.SeverityMedium:
		return mediumStyle
	default:
		return dimStyle
	}
}

func (m Model) View() string {
	var b strings.Builder

	title := "Fraud Watch alerts"
	if sel := m.view.Selection; !sel.IsZero() {
		title += " · " + extractor.Display(sel.Address, sel.Chain)
	}
	b.WriteString(titleStyle.Render(title) + "\n")

	if m.view.Error != "" {
		b.WriteString(errStyle.Render("last refresh failed: "+m.view.Error) + "\n")
	}
	b.WriteString("\n")

	if len(m.view.Alerts) == 0 {
		b.WriteString(dimStyle.Render("no alerts") + "\n")
	}
	for i, a := range m.view.Alerts {
		status := string(a.Status)
		if a.PendingSync {
			status += "*"
		}
		row := fmt.Sprintf("%-15s %-9s %-13s %5.1f  %s",
			extractor.Abbrev(a.ID), a.Severity, status, a.RiskScore, a.Reason)
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> "+row) + "\n")
			continue
		}
		b.WriteString("  " + severityStyle(a.Severity).Render(row) + "\n")
	}

	s := m.view.Summary
	b.WriteString(fmt.Sprintf("\n%d active, %d acknowledged, %d resolved",
		s.ByStatus[alerts.StatusActive], s.ByStatus[alerts.StatusAcknowledged], s.ByStatus[alerts.StatusResolved]))
	if s.Pending > 0 {
		b.WriteString(fmt.Sprintf(" (%d pending sync)", s.Pending))
	}
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errStyle.Render(m.err.Error()) + "\n")
	case m.notice != "":
		b.WriteString(dimStyle.Render(m.notice) + "\n")
	}
	b.WriteString(dimStyle.Render("↑/↓ move · a acknowledge · r resolve · o reopen · q quit") + "\n")
	return b.String()
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, source AlertSource, interval time.Duration) error {
	p := tea.NewProgram(New(source, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
