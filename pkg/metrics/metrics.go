package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	fetchesCounter        *prometheus.CounterVec
	fetchFailuresCounter  *prometheus.CounterVec
	staleDiscardsCounter  prometheus.Counter
	lastFetchItemsGauge   *prometheus.GaugeVec
	alertOverridesGauge   prometheus.Gauge
	selectionChangesCount prometheus.Counter
	reportsCounter        *prometheus.CounterVec
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := Metrics{
		// analysis polling
		fetchesCounter: f.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_analysis_fetches_total", namespace),
			Help: "Analysis requests issued, by chain",
		}, []string{"chain"}),
		fetchFailuresCounter: f.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_analysis_fetch_failures_total", namespace),
			Help: "Analysis requests that failed, by chain",
		}, []string{"chain"}),
		staleDiscardsCounter: f.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_analysis_stale_responses_total", namespace),
			Help: "Analysis responses discarded because a newer request for the same key was issued",
		}),
		lastFetchItemsGauge: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_analysis_last_items", namespace),
			Help: "Number of items in the latest accepted analysis response, by chain",
		}, []string{"chain"}),
		// local state
		alertOverridesGauge: f.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_alert_overrides", namespace),
			Help: "Alert status overrides stored for the current address",
		}),
		selectionChangesCount: f.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_selection_changes_total", namespace),
			Help: "Monitored selection changes observed",
		}),
		reportsCounter: f.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_reports_generated_total", namespace),
			Help: "Report generation requests, by outcome (downloaded, queued, failed)",
		}, []string{"outcome"}),
	}
	return &m
}

func (m *Metrics) IncFetch(chain string) {
	if m == nil {
		return
	}
	m.fetchesCounter.WithLabelValues(chain).Inc()
}

func (m *Metrics) IncFetchFailure(chain string) {
	if m == nil {
		return
	}
	m.fetchFailuresCounter.WithLabelValues(chain).Inc()
}

func (m *Metrics) IncStaleDiscard() {
	if m == nil {
		return
	}
	m.staleDiscardsCounter.Inc()
}

func (m *Metrics) SetLastItems(chain string, n int) {
	if m == nil {
		return
	}
	m.lastFetchItemsGauge.WithLabelValues(chain).Set(float64(n))
}

func (m *Metrics) SetAlertOverrides(n int) {
	if m == nil {
		return
	}
	m.alertOverridesGauge.Set(float64(n))
}

func (m *Metrics) IncSelectionChange() {
	if m == nil {
		return
	}
	m.selectionChangesCount.Inc()
}

func (m *Metrics) IncReport(outcome string) {
	if m == nil {
		return
	}
	m.reportsCounter.WithLabelValues(outcome).Inc()
}
