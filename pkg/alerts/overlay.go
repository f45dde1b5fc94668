package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fraud-watch/pkg/api"
	"github.com/fraud-watch/pkg/db"
	"github.com/fraud-watch/pkg/extractor"
	"github.com/fraud-watch/pkg/metrics"
	"github.com/fraud-watch/pkg/state"
)

var (
	ErrNoAddress = errors.New("no monitored address selected")
	// ErrSyncUnavailable is returned by a Syncer that has nowhere to send overrides.
	ErrSyncUnavailable = errors.New("alert status sync is not available")
)

// Alert is the derived view of one transaction.
type Alert struct {
	ID          string          `json:"id"` // transaction hash
	Address     string          `json:"address"`
	Severity    Severity        `json:"severity"`
	Status      Status          `json:"status"`
	Reason      string          `json:"reason"`
	RiskScore   float64         `json:"risk_score"`
	RiskLevel   api.RiskLevel   `json:"risk_level"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Value       decimal.Decimal `json:"value"`
	Timestamp   time.Time       `json:"timestamp"`
	Overridden  bool            `json:"overridden"`
	PendingSync bool            `json:"pending_sync"`
}

// Override is a locally decided status. Pending stays true until a Syncer
// has accepted it.
type Override struct {
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	Pending   bool      `json:"pending"`
}

// Syncer pushes a local status decision to a server.
type Syncer interface {
	SyncStatus(ctx context.Context, address, hash string, status Status) error
}

// LocalSyncer keeps every override local; the backend has no endpoint for them yet.
type LocalSyncer struct{}

func (LocalSyncer) SyncStatus(context.Context, string, string, Status) error {
	return ErrSyncUnavailable
}

// Overlay merges locally persisted status overrides into alerts derived from
// server data. Overrides are stored per monitored address as one JSON map
// keyed by transaction hash.
type Overlay struct {
	kv      state.KV
	syncer  Syncer
	metrics *metrics.Metrics

	mu        sync.Mutex
	address   string
	overrides map[string]Override
}

func NewOverlay(kv state.KV, syncer Syncer, m *metrics.Metrics) *Overlay {
	if syncer == nil {
		syncer = LocalSyncer{}
	}
	return &Overlay{kv: kv, syncer: syncer, metrics: m, overrides: map[string]Override{}}
}

func (o *Overlay) overridesVar(address string) *state.Var[map[string]Override] {
	return state.NewVar(o.kv, db.AlertStatusKey(address), state.JSONCodec[map[string]Override]())
}

// SetAddress switches the overlay to another monitored address and loads that
// address's overrides. Nothing carries over from the previous address.
func (o *Overlay) SetAddress(address string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.address = address
	o.overrides = map[string]Override{}
	if address == "" {
		o.metrics.SetAlertOverrides(0)
		return nil
	}
	return o.reloadLocked()
}

func (o *Overlay) Address() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.address
}

func (o *Overlay) reloadLocked() error {
	m, ok, err := o.overridesVar(o.address).Read()
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	if !ok || m == nil {
		m = map[string]Override{}
	}
	o.overrides = m
	o.metrics.SetAlertOverrides(len(m))
	return nil
}

func (o *Overlay) saveLocked() error {
	if err := o.overridesVar(o.address).Write(o.overrides); err != nil {
		return fmt.Errorf("persist overrides: %w", err)
	}
	o.metrics.SetAlertOverrides(len(o.overrides))
	return nil
}

// Build derives one alert per transaction for the current address.
func (o *Overlay) Build(items []api.Transaction) []Alert {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.address != "" {
		// pick up decisions other pages made since the last read
		if err := o.reloadLocked(); err != nil {
			log.Warn().Err(err).Msg("using cached alert overrides")
		}
	}

	out := make([]Alert, 0, len(items))
	for _, tx := range items {
		sev := SeverityFor(tx.RiskScore)
		a := Alert{
			ID:        tx.Hash,
			Address:   o.address,
			Severity:  sev,
			Status:    DefaultStatus(sev),
			Reason:    ReasonFor(tx),
			RiskScore: tx.RiskScore,
			RiskLevel: tx.RiskLevel,
			From:      tx.From,
			To:        tx.To,
			Value:     tx.Value,
			Timestamp: tx.Time(),
		}
		if ov, ok := o.overrides[tx.Hash]; ok {
			a.Status = ov.Status
			a.Overridden = true
			a.PendingSync = ov.Pending
		}
		out = append(out, a)
	}
	return out
}

func (o *Overlay) Acknowledge(id string) error {
	return o.set(id, StatusAcknowledged)
}

func (o *Overlay) Resolve(id string) error {
	return o.set(id, StatusResolved)
}

// Reopen drops the local decision so the default status applies again.
func (o *Overlay) Reopen(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.address == "" {
		return ErrNoAddress
	}
	if err := o.reloadLocked(); err != nil {
		return err
	}
	delete(o.overrides, id)
	return o.saveLocked()
}

func (o *Overlay) set(id string, status Status) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.address == "" {
		return ErrNoAddress
	}
	if err := o.reloadLocked(); err != nil {
		return err
	}
	o.overrides[id] = Override{Status: status, UpdatedAt: time.Now().UTC(), Pending: true}
	if err := o.saveLocked(); err != nil {
		return err
	}
	log.Info().Str("address", extractor.Abbrev(o.address)).Str("tx", extractor.Abbrev(id)).Str("status", string(status)).Msg("alert status changed")
	return nil
}

// Overrides returns a copy of the current address's overrides.
func (o *Overlay) Overrides() map[string]Override {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]Override, len(o.overrides))
	for k, v := range o.overrides {
		out[k] = v
	}
	return out
}

// Sync pushes pending overrides of the current address through the Syncer
// and reports how many were accepted. A Syncer answering ErrSyncUnavailable
// leaves everything pending without error.
func (o *Overlay) Sync(ctx context.Context) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.address == "" {
		return 0, nil
	}
	if err := o.reloadLocked(); err != nil {
		return 0, err
	}

	synced := 0
	for id, ov := range o.overrides {
		if !ov.Pending {
			continue
		}
		err := o.syncer.SyncStatus(ctx, o.address, id, ov.Status)
		if errors.Is(err, ErrSyncUnavailable) {
			break
		}
		if err != nil {
			if synced > 0 {
				if serr := o.saveLocked(); serr != nil {
					log.Warn().Err(serr).Msg("failed to persist synced overrides")
				}
			}
			return synced, fmt.Errorf("sync %s: %w", extractor.Abbrev(id), err)
		}
		ov.Pending = false
		o.overrides[id] = ov
		synced++
	}
	if synced == 0 {
		return 0, nil
	}
	return synced, o.saveLocked()
}

type Summary struct {
	Total      int              `json:"total"`
	ByStatus   map[Status]int   `json:"by_status"`
	BySeverity map[Severity]int `json:"by_severity"`
	Pending    int              `json:"pending_sync"`
}

func Summarize(alerts []Alert) Summary {
	s := Summary{ByStatus: map[Status]int{}, BySeverity: map[Severity]int{}}
	for _, st := range AllStatuses() {
		s.ByStatus[st] = 0
	}
	for _, sev := range AllSeverities() {
		s.BySeverity[sev] = 0
	}
	for _, a := range alerts {
		s.Total++
		s.ByStatus[a.Status]++
		s.BySeverity[a.Severity]++
		if a.PendingSync {
			s.Pending++
		}
	}
	return s
}
