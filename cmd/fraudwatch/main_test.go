package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraud-watch/pkg/alerts"
	"github.com/fraud-watch/pkg/api"
	"github.com/fraud-watch/pkg/api/apitest"
	"github.com/fraud-watch/pkg/config"
	"github.com/fraud-watch/pkg/db"
	"github.com/fraud-watch/pkg/reports"
	"github.com/fraud-watch/pkg/settings"
)

const vitalik = "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"

func newTestApp(t *testing.T) (*app, *apitest.Backend) {
	t.Helper()
	b := apitest.NewBackend()
	t.Cleanup(b.Close)

	store, err := db.NewStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.APIBaseURL = b.URL
	cfg.DownloadDir = t.TempDir()
	return newApp(context.Background(), cfg, store), b
}

func TestDispatch_Unknown(t *testing.T) {
	a, _ := newTestApp(t)
	err := a.dispatch(context.Background(), "frobnicate", nil)
	assert.ErrorContains(t, err, `unknown command "frobnicate"`)
}

func TestDispatch_LoginLogout(t *testing.T) {
	a, b := newTestApp(t)
	b.AddUser("ana@example.com", "hunter22", "Ana")
	ctx := context.Background()

	err := a.dispatch(ctx, "login", []string{"-email", "ana@example.com", "-password", "wrong"})
	var authErr *api.AuthError
	require.ErrorAs(t, err, &authErr)

	require.NoError(t, a.dispatch(ctx, "login", []string{"-email", "ana@example.com", "-password", "hunter22"}))
	assert.True(t, a.session.Authenticated())

	require.NoError(t, a.dispatch(ctx, "logout", nil))
	assert.False(t, a.session.Authenticated())
}

func TestDispatch_WatchAndAlerts(t *testing.T) {
	a, b := newTestApp(t)
	ctx := context.Background()

	assert.ErrorIs(t, a.dispatch(ctx, "ack", []string{"0x01"}), alerts.ErrNoAddress)

	require.NoError(t, a.dispatch(ctx, "watch", []string{"https://etherscan.io/address/" + vitalik}))
	b.SetItems(string(config.ChainEthereum), vitalik, []api.Transaction{
		{Hash: "0x01", Value: decimal.NewFromInt(1), Timestamp: 1700000000, RiskScore: 92, RiskLevel: api.RiskHigh},
		{Hash: "0x02", Value: decimal.NewFromInt(1), Timestamp: 1700000000, RiskScore: 5, RiskLevel: api.RiskLow},
	})

	require.NoError(t, a.dispatch(ctx, "ack", []string{"0x01"}))
	assert.Equal(t, alerts.StatusAcknowledged, a.overlay.Overrides()["0x01"].Status)

	out := filepath.Join(t.TempDir(), "alerts.csv")
	require.NoError(t, a.dispatch(ctx, "export", []string{"-alerts", out}))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[1], "acknowledged")
}

func TestDispatch_ExportTransactionsFiltered(t *testing.T) {
	a, b := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.dispatch(ctx, "watch", []string{vitalik}))
	b.SetItems(string(config.ChainEthereum), vitalik, []api.Transaction{
		{Hash: "0x01", Value: decimal.NewFromInt(1), RiskScore: 92, RiskLevel: api.RiskHigh},
		{Hash: "0x02", Value: decimal.NewFromInt(1), RiskScore: 5, RiskLevel: api.RiskLow},
	})

	out := filepath.Join(t.TempDir(), "txs.csv")
	require.NoError(t, a.dispatch(ctx, "export", []string{"-level", "high", out}))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n"), 2)

	assert.Error(t, a.dispatch(ctx, "export", nil), "output file is required")
}

func TestDispatch_ReportRequiresSelection(t *testing.T) {
	a, _ := newTestApp(t)
	assert.Error(t, a.dispatch(context.Background(), "report", []string{"-type", "summary"}))
}

func login(t *testing.T, a *app, b *apitest.Backend) {
	t.Helper()
	b.AddUser("ana@example.com", "hunter22", "Ana")
	require.NoError(t, a.dispatch(context.Background(), "login", []string{"-email", "ana@example.com", "-password", "hunter22"}))
}

func TestDispatch_PasswordMismatch(t *testing.T) {
	a, b := newTestApp(t)
	login(t, a, b)

	err := a.dispatch(context.Background(), "password", []string{"-current", "hunter22", "-new", "correct-horse", "-confirm", "correct-h0rse"})
	assert.ErrorIs(t, err, settings.ErrPasswordMismatch)
	assert.Equal(t, "hunter22", b.Password("ana@example.com"))
}

func TestDispatch_PasswordChange(t *testing.T) {
	a, b := newTestApp(t)
	login(t, a, b)

	require.NoError(t, a.dispatch(context.Background(), "password", []string{"-current", "hunter22", "-new", "correct-horse", "-confirm", "correct-horse"}))
	assert.Equal(t, "correct-horse", b.Password("ana@example.com"))
}

func TestDispatch_ProfileUpdate(t *testing.T) {
	a, b := newTestApp(t)
	login(t, a, b)
	ctx := context.Background()

	require.NoError(t, a.dispatch(ctx, "profile", []string{"-org", "Chain Forensics"}))
	p, err := a.settings.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Chain Forensics", p.Organization)
	assert.Equal(t, "Ana", p.FullName, "unset fields are kept")
}

func TestDispatch_Notify(t *testing.T) {
	a, b := newTestApp(t)
	login(t, a, b)
	ctx := context.Background()

	require.NoError(t, a.dispatch(ctx, "notify", []string{"weekly_digest", "on"}))
	prefs, err := a.settings.Notifications(ctx)
	require.NoError(t, err)
	assert.True(t, prefs["weekly_digest"])
	assert.True(t, prefs["email_alerts"])

	assert.Error(t, a.dispatch(ctx, "notify", []string{"weekly_digest", "maybe"}))
	require.NoError(t, a.dispatch(ctx, "notify", nil))
}

func TestDispatch_SignOutOthers(t *testing.T) {
	a, b := newTestApp(t)
	login(t, a, b)

	require.NoError(t, a.dispatch(context.Background(), "signout-others", nil))
	assert.Equal(t, 1, b.SignedOutCount())
	assert.True(t, a.session.Authenticated())
}

func TestDispatch_Monthly(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	assert.ErrorIs(t, a.dispatch(ctx, "monthly", nil), reports.ErrNoSelection)

	require.NoError(t, a.dispatch(ctx, "watch", []string{vitalik}))
	require.NoError(t, a.dispatch(ctx, "monthly", []string{"-months", "3"}))
	assert.Error(t, a.dispatch(ctx, "monthly", []string{"-months", "0"}))
}
