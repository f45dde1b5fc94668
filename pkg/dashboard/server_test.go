package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraud-watch/pkg/alerts"
	"github.com/fraud-watch/pkg/analysis"
	"github.com/fraud-watch/pkg/api"
	"github.com/fraud-watch/pkg/api/apitest"
	"github.com/fraud-watch/pkg/config"
	"github.com/fraud-watch/pkg/db"
	"github.com/fraud-watch/pkg/metrics"
	"github.com/fraud-watch/pkg/monitor"
	"github.com/fraud-watch/pkg/reports"
	"github.com/fraud-watch/pkg/selection"
)

const vitalik = "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"

type fixture struct {
	backend *apitest.Backend
	channel *selection.Channel
	pages   Pages
	server  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := apitest.NewBackend()
	t.Cleanup(b.Close)

	store, err := db.NewStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	client := api.New(b.URL)
	ch := selection.NewChannel(store, 10*time.Millisecond)
	cfg := config.Default()
	cfg.DownloadDir = t.TempDir()

	pages := Pages{
		Dashboard:    monitor.NewDashboardPage(),
		Transactions: monitor.NewTransactionsPage(),
		Alerts:       monitor.NewAlertsPage(alerts.NewOverlay(store, nil, m)),
		Reports:      monitor.NewReportsPage(client),
	}
	d := New(ch, pages, reports.NewService(client, ch, store, cfg, m), reg, 0)
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(srv.Close)

	return &fixture{backend: b, channel: ch, pages: pages, server: srv}
}

// feed pushes one analysis result into every page as a poller would.
func (f *fixture) feed(sel selection.Selection, items []api.Transaction) {
	res := &analysis.Result{Selection: sel, Count: len(items), Items: items, FetchedAt: time.Now().UTC()}
	ctx := context.Background()
	f.pages.Dashboard.Refresh(ctx, sel, res)
	f.pages.Transactions.Refresh(ctx, sel, res)
	f.pages.Alerts.Refresh(ctx, sel, res)
}

func items() []api.Transaction {
	return []api.Transaction{
		{Hash: "0x01", From: "0xaaa", To: "0xbbb", Value: decimal.NewFromInt(150), Timestamp: 1700000000, RiskScore: 85, RiskLevel: api.RiskHigh},
		{Hash: "0x02", From: "0xaaa", To: "0xccc", Value: decimal.NewFromInt(1), Timestamp: 1700000000, RiskScore: 55, RiskLevel: api.RiskMedium},
		{Hash: "0x03", From: "0xaaa", To: "0xddd", Value: decimal.NewFromInt(1), Timestamp: 1700000000, RiskScore: 10, RiskLevel: api.RiskLow},
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestDashboard_Selection(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/selection", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"selected":false,"address":"","chain":""}`, string(body))

	resp, body = f.do(t, http.MethodPost, "/api/selection", `{"address":"  `+vitalik+` "}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"selected":true,"address":"`+vitalik+`","chain":"eth"}`, string(body))

	sel, ok, err := f.channel.Current()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, vitalik, sel.Address)

	resp, _ = f.do(t, http.MethodPost, "/api/selection", `{"address":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/api/selection", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, ok, _ = f.channel.Current()
	assert.False(t, ok)
}

func TestDashboard_Pages(t *testing.T) {
	f := newFixture(t)
	sel := selection.Selection{Address: vitalik, Chain: config.ChainEthereum}
	f.feed(sel, items())

	resp, body := f.do(t, http.MethodGet, "/api/pages/dashboard", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dash monitor.DashboardView
	require.NoError(t, json.Unmarshal(body, &dash))
	assert.Equal(t, 3, dash.KPIs.Total)
	assert.Equal(t, 66.7, dash.KPIs.DetectionRate)
	assert.Equal(t, vitalik, dash.Selection.Address)

	_, body = f.do(t, http.MethodGet, "/api/pages/transactions?level=high", "")
	var txs monitor.TransactionsView
	require.NoError(t, json.Unmarshal(body, &txs))
	assert.Equal(t, 1, txs.Shown)
	assert.Equal(t, 3, txs.Count)

	resp, _ = f.do(t, http.MethodGet, "/api/pages/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDashboard_AlertActions(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/alerts/0x01/acknowledge", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no address selected yet")

	f.feed(selection.Selection{Address: vitalik, Chain: config.ChainEthereum}, items())

	resp, body := f.do(t, http.MethodPost, "/api/alerts/0x01/acknowledge", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view monitor.AlertsView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, 1, view.Summary.ByStatus[alerts.StatusAcknowledged])
	assert.Equal(t, 1, view.Summary.Pending)

	_, body = f.do(t, http.MethodPost, "/api/alerts/0x02/resolve", "")
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, 2, view.Summary.ByStatus[alerts.StatusResolved], "0x02 resolved plus low-severity 0x03")

	resp, _ = f.do(t, http.MethodPost, "/api/alerts/0x01/delete", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/api/alerts/0x01/resolve", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	_, body = f.do(t, http.MethodPost, "/api/alerts/sync", "")
	assert.JSONEq(t, `{"synced":0}`, string(body), "overrides stay pending without a sync endpoint")
}

func TestDashboard_ExportTransactions(t *testing.T) {
	f := newFixture(t)
	list := items()
	list[1].To = "0xccc, care of mixer"
	f.feed(selection.Selection{Address: vitalik, Chain: config.ChainEthereum}, list)

	resp, body := f.do(t, http.MethodGet, "/api/export/transactions.csv?min_score=50", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "transactions_")

	out := string(body)
	assert.True(t, strings.HasPrefix(out, "\ufeff"))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.Len(t, lines, 3, "header plus two filtered rows")
	assert.Contains(t, lines[2], `"0xccc, care of mixer"`)
}

func TestDashboard_ExportAlertsByStatus(t *testing.T) {
	f := newFixture(t)
	f.feed(selection.Selection{Address: vitalik, Chain: config.ChainEthereum}, items())

	_, body := f.do(t, http.MethodGet, "/api/export/alerts.csv?status=active", "")
	lines := strings.Split(strings.TrimSuffix(string(body), "\n"), "\n")
	assert.Len(t, lines, 3, "header plus critical and high alerts")
}

func TestDashboard_GenerateReport(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/reports/generate", `{"report_type":"summary"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), reports.ErrNoSelection.Error())

	_, err := f.channel.Publish(vitalik)
	require.NoError(t, err)
	f.backend.SetGenerateResponse(api.GenerateReportResponse{JobID: "job-7"})

	resp, body = f.do(t, http.MethodPost, "/api/reports/generate", `{"report_type":"compliance","format":"csv"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"job_id":"job-7"`)
	assert.Equal(t, "compliance", f.backend.LastGenerate().ReportType)

	_, body = f.do(t, http.MethodGet, "/api/reports/jobs", "")
	assert.Contains(t, string(body), "job-7")
}

func TestDashboard_JobsLimit(t *testing.T) {
	f := newFixture(t)
	_, err := f.channel.Publish(vitalik)
	require.NoError(t, err)
	for _, id := range []string{"job-1", "job-2"} {
		f.backend.SetGenerateResponse(api.GenerateReportResponse{JobID: id})
		resp, _ := f.do(t, http.MethodPost, "/api/reports/generate", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	_, body := f.do(t, http.MethodGet, "/api/reports/jobs?limit=1", "")
	var jobs []db.ReportJob
	require.NoError(t, json.Unmarshal(body, &jobs))
	assert.Len(t, jobs, 1)

	for _, bad := range []string{"abc", "0", "-1"} {
		resp, _ := f.do(t, http.MethodGet, "/api/reports/jobs?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
	}
}

func TestDashboard_Metrics(t *testing.T) {
	f := newFixture(t)
	f.feed(selection.Selection{Address: vitalik, Chain: config.ChainEthereum}, items())
	_, _ = f.do(t, http.MethodPost, "/api/alerts/0x01/resolve", "")

	resp, body := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "test_alert_overrides 1")
}

func TestDashboard_Frontend(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<title>Fraud Watch</title>")

	resp, _ = f.do(t, http.MethodGet, "/favicon.ico", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
