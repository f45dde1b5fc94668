package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fraud-watch/pkg/alerts"
	"github.com/fraud-watch/pkg/analysis"
	"github.com/fraud-watch/pkg/api"
	"github.com/fraud-watch/pkg/config"
	"github.com/fraud-watch/pkg/selection"
)

// Status is what every page reports about its last fetch.
type Status struct {
	Selection selection.Selection `json:"selection"`
	UpdatedAt *time.Time          `json:"updated_at,omitempty"`
	Error     string              `json:"error,omitempty"`
}

type base struct {
	mu     sync.RWMutex
	status Status
}

func (b *base) accept(sel selection.Selection, res *analysis.Result) {
	b.status.Selection = sel
	b.status.Error = ""
	if res == nil {
		b.status.UpdatedAt = nil
		return
	}
	t := res.FetchedAt
	b.status.UpdatedAt = &t
}

func (b *base) Fail(sel selection.Selection, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.Selection = sel
	b.status.Error = err.Error()
}

// ---- Dashboard ----

type DashboardView struct {
	Status
	KPIs         analysis.KPIs           `json:"kpis"`
	Distribution []analysis.LevelShare   `json:"distribution"`
	Hourly       [24]analysis.HourBucket `json:"hourly"`
	TopRisky     []api.Transaction       `json:"top_risky"`
}

type DashboardPage struct {
	base
	view DashboardView
}

func NewDashboardPage() *DashboardPage { return &DashboardPage{} }

func (p *DashboardPage) Name() string { return "dashboard" }

func (p *DashboardPage) Refresh(_ context.Context, sel selection.Selection, res *analysis.Result) {
	var items []api.Transaction
	if res != nil {
		items = res.Items
	}
	view := DashboardView{
		KPIs:         analysis.ComputeKPIs(items),
		Distribution: analysis.RiskDistribution(items),
		Hourly:       analysis.HourlySeries(items),
		TopRisky:     analysis.TopRisky(items, 5),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.accept(sel, res)
	p.view = view
}

func (p *DashboardPage) View() DashboardView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v := p.view
	v.Status = p.status
	return v
}

// ---- Transactions ----

type TransactionsView struct {
	Status
	Filter analysis.Filter   `json:"filter"`
	Count  int               `json:"count"` // as reported by the backend
	Items  []api.Transaction `json:"items"`
	Shown  int               `json:"shown"`
}

type TransactionsPage struct {
	base
	filter analysis.Filter
	count  int
	items  []api.Transaction
}

func NewTransactionsPage() *TransactionsPage { return &TransactionsPage{} }

func (p *TransactionsPage) Name() string { return "transactions" }

func (p *TransactionsPage) Refresh(_ context.Context, sel selection.Selection, res *analysis.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accept(sel, res)
	p.items, p.count = nil, 0
	if res != nil {
		p.items, p.count = res.Items, res.Count
	}
}

// SetFilter applies to the current items and to every later refresh.
func (p *TransactionsPage) SetFilter(f analysis.Filter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = f
}

func (p *TransactionsPage) View() TransactionsView {
	p.mu.RLock()
	f := p.filter
	p.mu.RUnlock()
	return p.ViewWith(f)
}

// ViewWith applies f instead of the page's own filter.
func (p *TransactionsPage) ViewWith(f analysis.Filter) TransactionsView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	items := f.Apply(p.items)
	return TransactionsView{
		Status: p.status,
		Filter: f,
		Count:  p.count,
		Items:  items,
		Shown:  len(items),
	}
}

// ---- Alerts ----

type AlertsView struct {
	Status
	Alerts  []alerts.Alert `json:"alerts"`
	Summary alerts.Summary `json:"summary"`
}

// AlertsPage shows the alert feed with locally overridden statuses.
type AlertsPage struct {
	base
	overlay *alerts.Overlay
	items   []api.Transaction
	list    []alerts.Alert
}

func NewAlertsPage(overlay *alerts.Overlay) *AlertsPage {
	return &AlertsPage{overlay: overlay}
}

func (p *AlertsPage) Name() string { return "alerts" }

func (p *AlertsPage) Refresh(_ context.Context, sel selection.Selection, res *analysis.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sel.Address != p.overlay.Address() {
		if err := p.overlay.SetAddress(sel.Address); err != nil {
			log.Error().Err(err).Msg("failed to load alert overrides")
		}
	}
	p.accept(sel, res)
	p.items = nil
	if res != nil {
		p.items = res.Items
	}
	p.list = p.overlay.Build(p.items)
}

func (p *AlertsPage) Acknowledge(id string) error {
	return p.apply(p.overlay.Acknowledge, id)
}

func (p *AlertsPage) Resolve(id string) error {
	return p.apply(p.overlay.Resolve, id)
}

func (p *AlertsPage) Reopen(id string) error {
	return p.apply(p.overlay.Reopen, id)
}

func (p *AlertsPage) apply(op func(string) error, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := op(id); err != nil {
		return err
	}
	p.list = p.overlay.Build(p.items)
	return nil
}

// Sync pushes pending overrides and rebuilds the feed.
func (p *AlertsPage) Sync(ctx context.Context) (int, error) {
	n, err := p.overlay.Sync(ctx)
	p.mu.Lock()
	p.list = p.overlay.Build(p.items)
	p.mu.Unlock()
	return n, err
}

func (p *AlertsPage) View() AlertsView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	list := append([]alerts.Alert(nil), p.list...)
	return AlertsView{Status: p.status, Alerts: list, Summary: alerts.Summarize(list)}
}

// ---- Reports ----

type StatsSource interface {
	QuickStats(ctx context.Context, chain config.Chain, address string) (*api.QuickStats, error)
}

type ReportsView struct {
	Status
	Stats *api.QuickStats `json:"stats,omitempty"`
	KPIs  analysis.KPIs   `json:"kpis"`
}

// ReportsPage pairs the backend's quick stats with KPIs from the polled items.
type ReportsPage struct {
	base
	stats StatsSource
	view  ReportsView
}

func NewReportsPage(stats StatsSource) *ReportsPage {
	return &ReportsPage{stats: stats}
}

func (p *ReportsPage) Name() string { return "reports" }

func (p *ReportsPage) Refresh(ctx context.Context, sel selection.Selection, res *analysis.Result) {
	view := ReportsView{}
	if res != nil {
		view.KPIs = analysis.ComputeKPIs(res.Items)
		stats, err := p.stats.QuickStats(ctx, sel.Chain, sel.Address)
		if err != nil {
			log.Debug().Err(err).Msg("quick stats unavailable")
		} else {
			view.Stats = stats
		}
	} else {
		view.KPIs = analysis.ComputeKPIs(nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.accept(sel, res)
	p.view = view
}

func (p *ReportsPage) View() ReportsView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v := p.view
	v.Status = p.status
	return v
}
