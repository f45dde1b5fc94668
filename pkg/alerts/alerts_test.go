package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraud-watch/pkg/api"
	"github.com/fraud-watch/pkg/db"
)

func newStore(t *testing.T) *db.Store {
	t.Helper()
	s, err := db.NewStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func tx(hash string, score float64) api.Transaction {
	return api.Transaction{
		Hash:      hash,
		From:      "0xaaa",
		To:        "0xbbb",
		Value:     decimal.NewFromInt(1),
		Timestamp: 1700000000,
		RiskScore: score,
		GasPrice:  20,
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Severity
	}{
		{100, SeverityCritical},
		{80, SeverityCritical},
		{79.9, SeverityHigh},
		{50, SeverityHigh},
		{49.99, SeverityMedium},
		{30, SeverityMedium},
		{29.9, SeverityLow},
		{0, SeverityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityFor(tt.score), "score %v", tt.score)
	}
}

func TestDefaultStatus(t *testing.T) {
	assert.Equal(t, StatusActive, DefaultStatus(SeverityCritical))
	assert.Equal(t, StatusActive, DefaultStatus(SeverityHigh))
	assert.Equal(t, StatusResolved, DefaultStatus(SeverityMedium))
	assert.Equal(t, StatusResolved, DefaultStatus(SeverityLow))
}

func TestReasonFor(t *testing.T) {
	plain := tx("0x1", 10)
	assert.Equal(t, "Anomalous activity detected", ReasonFor(plain))

	all := api.Transaction{
		From:          "0xAbC",
		To:            "0xabc",
		Value:         decimal.RequireFromString("250.5"),
		GasPrice:      180,
		MixerInvolved: true,
	}
	assert.Equal(t, "Large value transfer (250.5); Unusually high gas price (180 gwei); Self-transfer; Mixer involvement", ReasonFor(all))

	creation := tx("0x2", 10)
	creation.To = ""
	assert.Equal(t, "Missing recipient", ReasonFor(creation))
}

func TestOverlay_DefaultsWithoutOverrides(t *testing.T) {
	o := NewOverlay(newStore(t), nil, nil)
	require.NoError(t, o.SetAddress("0xwatched"))

	got := o.Build([]api.Transaction{tx("h1", 85), tx("h2", 55), tx("h3", 35), tx("h4", 10)})
	require.Len(t, got, 4)
	assert.Equal(t, []Status{StatusActive, StatusActive, StatusResolved, StatusResolved},
		[]Status{got[0].Status, got[1].Status, got[2].Status, got[3].Status})
	assert.Equal(t, SeverityCritical, got[0].Severity)
	assert.False(t, got[0].Overridden)
}

func TestOverlay_AcknowledgeAndResolvePersist(t *testing.T) {
	store := newStore(t)
	o := NewOverlay(store, nil, nil)
	require.NoError(t, o.SetAddress("0xwatched"))

	require.NoError(t, o.Acknowledge("h1"))
	require.NoError(t, o.Resolve("h2"))

	// a fresh overlay, as after a restart, sees the same decisions
	reloaded := NewOverlay(store, nil, nil)
	require.NoError(t, reloaded.SetAddress("0xwatched"))
	got := reloaded.Build([]api.Transaction{tx("h1", 90), tx("h2", 90)})
	assert.Equal(t, StatusAcknowledged, got[0].Status)
	assert.Equal(t, StatusResolved, got[1].Status)
	assert.True(t, got[1].Overridden)
	assert.True(t, got[1].PendingSync)
}

func TestOverlay_ResolveIsIdempotent(t *testing.T) {
	store := newStore(t)
	o := NewOverlay(store, nil, nil)
	require.NoError(t, o.SetAddress("0xwatched"))

	require.NoError(t, o.Resolve("h1"))
	require.NoError(t, o.Resolve("h1"))

	got := o.Build([]api.Transaction{tx("h1", 95)})
	assert.Equal(t, StatusResolved, got[0].Status)

	raw, ok, err := store.Get(db.AlertStatusKey("0xwatched"))
	require.NoError(t, err)
	require.True(t, ok)
	var stored map[string]Override
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Len(t, stored, 1)
}

func TestOverlay_OverridesDoNotLeakAcrossAddresses(t *testing.T) {
	o := NewOverlay(newStore(t), nil, nil)
	require.NoError(t, o.SetAddress("0xfirst"))
	require.NoError(t, o.Resolve("shared-hash"))

	require.NoError(t, o.SetAddress("0xsecond"))
	got := o.Build([]api.Transaction{tx("shared-hash", 90)})
	assert.Equal(t, StatusActive, got[0].Status)
	assert.False(t, got[0].Overridden)
	assert.Empty(t, o.Overrides())

	require.NoError(t, o.SetAddress("0xfirst"))
	got = o.Build([]api.Transaction{tx("shared-hash", 90)})
	assert.Equal(t, StatusResolved, got[0].Status)
}

func TestOverlay_OverridesIgnoreAddressCase(t *testing.T) {
	o := NewOverlay(newStore(t), nil, nil)
	require.NoError(t, o.SetAddress("0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"))
	require.NoError(t, o.Acknowledge("h1"))

	require.NoError(t, o.SetAddress("0xd8da6bf26964af9d7eed9e03e53415d37aa96045"))
	got := o.Build([]api.Transaction{tx("h1", 90)})
	assert.Equal(t, StatusAcknowledged, got[0].Status)
}

func TestOverlay_SeesOtherPagesDecisions(t *testing.T) {
	store := newStore(t)
	alertsPage := NewOverlay(store, nil, nil)
	dashboardPage := NewOverlay(store, nil, nil)
	require.NoError(t, alertsPage.SetAddress("0xwatched"))
	require.NoError(t, dashboardPage.SetAddress("0xwatched"))

	require.NoError(t, alertsPage.Acknowledge("h1"))
	require.NoError(t, dashboardPage.Resolve("h2"))

	got := alertsPage.Build([]api.Transaction{tx("h1", 90), tx("h2", 90)})
	assert.Equal(t, StatusAcknowledged, got[0].Status)
	assert.Equal(t, StatusResolved, got[1].Status)
}

func TestOverlay_RequiresAddress(t *testing.T) {
	o := NewOverlay(newStore(t), nil, nil)
	assert.ErrorIs(t, o.Resolve("h1"), ErrNoAddress)
	assert.ErrorIs(t, o.Reopen("h1"), ErrNoAddress)
}

func TestOverlay_Reopen(t *testing.T) {
	o := NewOverlay(newStore(t), nil, nil)
	require.NoError(t, o.SetAddress("0xwatched"))
	require.NoError(t, o.Resolve("h1"))
	require.NoError(t, o.Reopen("h1"))

	got := o.Build([]api.Transaction{tx("h1", 90)})
	assert.Equal(t, StatusActive, got[0].Status)
}

type recordingSyncer struct {
	calls []string
	err   error
}

func (r *recordingSyncer) SyncStatus(_ context.Context, address, hash string, status Status) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, address+"/"+hash+"="+string(status))
	return nil
}

func TestOverlay_SyncWithLocalSyncerKeepsPending(t *testing.T) {
	o := NewOverlay(newStore(t), LocalSyncer{}, nil)
	require.NoError(t, o.SetAddress("0xwatched"))
	require.NoError(t, o.Resolve("h1"))

	n, err := o.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, o.Overrides()["h1"].Pending)
}

func TestOverlay_SyncClearsPending(t *testing.T) {
	syncer := &recordingSyncer{}
	o := NewOverlay(newStore(t), syncer, nil)
	require.NoError(t, o.SetAddress("0xwatched"))
	require.NoError(t, o.Acknowledge("h1"))

	n, err := o.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"0xwatched/h1=acknowledged"}, syncer.calls)
	assert.False(t, o.Overrides()["h1"].Pending)

	got := o.Build([]api.Transaction{tx("h1", 90)})
	assert.Equal(t, StatusAcknowledged, got[0].Status)
	assert.False(t, got[0].PendingSync)
}

func TestOverlay_SyncError(t *testing.T) {
	o := NewOverlay(newStore(t), &recordingSyncer{err: errors.New("boom")}, nil)
	require.NoError(t, o.SetAddress("0xwatched"))
	require.NoError(t, o.Resolve("h1"))

	_, err := o.Sync(context.Background())
	assert.ErrorContains(t, err, "boom")
	assert.True(t, o.Overrides()["h1"].Pending)
}

func TestSummarize(t *testing.T) {
	o := NewOverlay(newStore(t), nil, nil)
	require.NoError(t, o.SetAddress("0xwatched"))
	require.NoError(t, o.Acknowledge("h1"))

	s := Summarize(o.Build([]api.Transaction{tx("h1", 85), tx("h2", 55), tx("h3", 10)}))
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.ByStatus[StatusAcknowledged])
	assert.Equal(t, 1, s.ByStatus[StatusActive])
	assert.Equal(t, 1, s.ByStatus[StatusResolved])
	assert.Equal(t, 1, s.BySeverity[SeverityCritical])
	assert.Equal(t, 0, s.BySeverity[SeverityMedium])
	assert.Equal(t, 1, s.Pending)
}
