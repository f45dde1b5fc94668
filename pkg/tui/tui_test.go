package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraud-watch/pkg/alerts"
	"github.com/fraud-watch/pkg/config"
	"github.com/fraud-watch/pkg/monitor"
	"github.com/fraud-watch/pkg/selection"
)

type fakeSource struct {
	list  []alerts.Alert
	calls []string
	fail  error
}

func (f *fakeSource) View() monitor.AlertsView {
	v := monitor.AlertsView{Alerts: append([]alerts.Alert(nil), f.list...), Summary: alerts.Summarize(f.list)}
	v.Selection = selection.Selection{Address: "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045", Chain: config.ChainEthereum}
	return v
}

func (f *fakeSource) set(id string, status alerts.Status, name string) error {
	f.calls = append(f.calls, name+":"+id)
	if f.fail != nil {
		return f.fail
	}
	for i := range f.list {
		if f.list[i].ID == id {
			f.list[i].Status = status
			f.list[i].PendingSync = true
		}
	}
	return nil
}

func (f *fakeSource) Acknowledge(id string) error {
	return f.set(id, alerts.StatusAcknowledged, "ack")
}

func (f *fakeSource) Resolve(id string) error {
	return f.set(id, alerts.StatusResolved, "resolve")
}

func (f *fakeSource) Reopen(id string) error {
	return f.set(id, alerts.StatusActive, "reopen")
}

func newSource() *fakeSource {
	return &fakeSource{list: []alerts.Alert{
		{ID: "0x01", Severity: alerts.SeverityCritical, Status: alerts.StatusActive, RiskScore: 91, Reason: "mixer involved"},
		{ID: "0x02", Severity: alerts.SeverityHigh, Status: alerts.StatusActive, RiskScore: 60},
	}}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m tea.Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		m, _ = m.Update(key(k))
	}
	out, ok := m.(Model)
	require.True(t, ok)
	return out
}

func TestModel_Navigate(t *testing.T) {
	m := New(newSource(), time.Second)

	id, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "0x01", id)

	m = press(t, m, "down", "down", "j")
	id, _ = m.Selected()
	assert.Equal(t, "0x02", id, "cursor stops at the last row")

	m = press(t, m, "k", "up")
	id, _ = m.Selected()
	assert.Equal(t, "0x01", id)
}

func TestModel_Actions(t *testing.T) {
	src := newSource()
	m := press(t, New(src, time.Second), "a", "down", "r")

	assert.Equal(t, []string{"ack:0x01", "resolve:0x02"}, src.calls)
	view := m.View()
	assert.Contains(t, view, "acknowledged*")
	assert.Contains(t, view, "0x02 resolved")
	assert.Contains(t, view, "0 active, 1 acknowledged, 1 resolved (2 pending sync)")

	press(t, m, "o")
	assert.Equal(t, "reopen:0x02", src.calls[2])
}

func TestModel_ActionError(t *testing.T) {
	src := newSource()
	src.fail = alerts.ErrNoAddress
	m := press(t, New(src, time.Second), "a")
	assert.Contains(t, m.View(), alerts.ErrNoAddress.Error())

	src.fail = nil
	m = press(t, m, "a")
	assert.NotContains(t, m.View(), alerts.ErrNoAddress.Error())
}

func TestModel_EmptyFeed(t *testing.T) {
	src := &fakeSource{}
	m := press(t, New(src, time.Second), "a", "r")
	assert.Empty(t, src.calls)
	assert.Contains(t, m.View(), "no alerts")
}

func TestModel_TickReloads(t *testing.T) {
	src := newSource()
	m := New(src, time.Second)
	assert.NotNil(t, m.Init())

	src.list = src.list[:1]
	next, cmd := m.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd, "tick reschedules itself")
	m = next.(Model)
	assert.NotContains(t, m.View(), "0x02")
}

func TestModel_TickClampsCursor(t *testing.T) {
	src := newSource()
	m := press(t, New(src, time.Second), "down")

	src.list = src.list[:1]
	next, _ := m.Update(tickMsg(time.Now()))
	id, ok := next.(Model).Selected()
	require.True(t, ok)
	assert.Equal(t, "0x01", id)
}

func TestModel_Quit(t *testing.T) {
	m := New(newSource(), time.Second)
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_ViewTitle(t *testing.T) {
	m := New(newSource(), time.Second)
	assert.Contains(t, m.View(), "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045")
	assert.Contains(t, m.View(), "mixer involved")
}
