package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/fraud-watch/pkg/alerts"
	"github.com/fraud-watch/pkg/analysis"
	"github.com/fraud-watch/pkg/api"
	"github.com/fraud-watch/pkg/export"
	"github.com/fraud-watch/pkg/monitor"
	"github.com/fraud-watch/pkg/reports"
	"github.com/fraud-watch/pkg/selection"
)

// Pages are the mounted views the dashboard reads from.
type Pages struct {
	Dashboard    *monitor.DashboardPage
	Transactions *monitor.TransactionsPage
	Alerts       *monitor.AlertsPage
	Reports      *monitor.ReportsPage
}

type Dashboard struct {
	channel  *selection.Channel
	pages    Pages
	reports  *reports.Service
	gatherer prometheus.Gatherer
	port     int
}

func New(channel *selection.Channel, pages Pages, rs *reports.Service, gatherer prometheus.Gatherer, port int) *Dashboard {
	return &Dashboard{channel: channel, pages: pages, reports: rs, gatherer: gatherer, port: port}
}

func (d *Dashboard) Handler() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/selection", cors(d.handleSelection))
	mux.HandleFunc("/api/pages/", cors(d.handlePage))
	mux.HandleFunc("/api/alerts/sync", cors(d.handleAlertSync))
	mux.HandleFunc("/api/alerts/", cors(d.handleAlertAction))
	mux.HandleFunc("/api/export/transactions.csv", cors(d.handleExportTransactions))
	mux.HandleFunc("/api/export/alerts.csv", cors(d.handleExportAlerts))
	mux.HandleFunc("/api/reports/generate", cors(d.handleGenerateReport))
	mux.HandleFunc("/api/reports/templates", cors(d.handleTemplates))
	mux.HandleFunc("/api/reports/jobs", cors(d.handleJobs))
	mux.Handle("/metrics", promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{}))

	// Serve frontend
	mux.HandleFunc("/", d.serveFrontend)
	return mux
}

// Run serves until ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) error {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", d.port), Handler: d.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", srv.Addr).Msg("🌐 dashboard started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func cors(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// writeError sends err as {"detail": ...}. Backend failures keep their
// status and body so the caller sees the server's text verbatim.
func writeError(w http.ResponseWriter, status int, err error) {
	var re *api.RequestError
	if errors.As(err, &re) {
		status = re.Status
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()})
}

func (d *Dashboard) handleSelection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sel, ok, err := d.channel.Current()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]interface{}{"selected": ok, "address": sel.Address, "chain": sel.Chain})

	case http.MethodPost:
		var req struct {
			Address string `json:"address"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		sel, err := d.channel.Publish(req.Address)
		if errors.Is(err, selection.ErrEmptyAddress) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]interface{}{"selected": true, "address": sel.Address, "chain": sel.Chain})

	case http.MethodDelete:
		if err := d.channel.Clear(); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]interface{}{"selected": false})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (d *Dashboard) handlePage(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/pages/"), "/")
	switch name {
	case "dashboard":
		writeJSON(w, d.pages.Dashboard.View())
	case "transactions":
		if f, ok := filterFromQuery(r); ok {
			writeJSON(w, d.pages.Transactions.ViewWith(f))
			return
		}
		writeJSON(w, d.pages.Transactions.View())
	case "alerts":
		writeJSON(w, d.pages.Alerts.View())
	case "reports":
		writeJSON(w, d.pages.Reports.View())
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// filterFromQuery reads level, min_score, q and mixer. ok is false when none is set.
func filterFromQuery(r *http.Request) (analysis.Filter, bool) {
	q := r.URL.Query()
	var f analysis.Filter
	ok := false
	if v := q.Get("level"); v != "" {
		f.Level, ok = api.RiskLevel(v), true
	}
	if v := q.Get("min_score"); v != "" {
		f.MinScore, _ = strconv.ParseFloat(v, 64)
		ok = true
	}
	if v := q.Get("q"); v != "" {
		f.Query, ok = v, true
	}
	if v := q.Get("mixer"); v != "" {
		f.MixerOnly, _ = strconv.ParseBool(v)
		ok = true
	}
	return f, ok
}

// handleAlertAction serves POST /api/alerts/{hash}/{acknowledge|resolve|reopen}.
func (d *Dashboard) handleAlertAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/alerts/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	id, action := parts[0], parts[1]

	var err error
	switch action {
	case "acknowledge":
		err = d.pages.Alerts.Acknowledge(id)
	case "resolve":
		err = d.pages.Alerts.Resolve(id)
	case "reopen":
		err = d.pages.Alerts.Reopen(id)
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}
	if errors.Is(err, alerts.ErrNoAddress) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, d.pages.Alerts.View())
}

func (d *Dashboard) handleAlertSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	n, err := d.pages.Alerts.Sync(r.Context())
	resp := map[string]interface{}{"synced": n}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, resp)
}

func csvHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}

// handleExportTransactions exports exactly the rows the transactions page shows.
func (d *Dashboard) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	view := d.pages.Transactions.View()
	if f, ok := filterFromQuery(r); ok {
		view = d.pages.Transactions.ViewWith(f)
	}
	csvHeaders(w, fmt.Sprintf("transactions_%s.csv", time.Now().UTC().Format("20060102")))
	if err := export.TransactionsCSV(w, view.Items); err != nil {
		log.Error().Err(err).Msg("transactions export failed")
	}
}

func (d *Dashboard) handleExportAlerts(w http.ResponseWriter, r *http.Request) {
	view := d.pages.Alerts.View()
	list := view.Alerts
	if st := r.URL.Query().Get("status"); st != "" {
		list = list[:0:0]
		for _, a := range view.Alerts {
			if string(a.Status) == st {
				list = append(list, a)
			}
		}
	}
	csvHeaders(w, fmt.Sprintf("alerts_%s.csv", time.Now().UTC().Format("20060102")))
	if err := export.AlertsCSV(w, list); err != nil {
		log.Error().Err(err).Msg("alerts export failed")
	}
}

func (d *Dashboard) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req api.GenerateReportRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	out, err := d.reports.Generate(r.Context(), req)
	if errors.Is(err, reports.ErrNoSelection) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, out)
}

func (d *Dashboard) handleTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := d.reports.Templates(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, tpls)
}

func (d *Dashboard) handleJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	jobs, err := d.reports.Jobs(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, jobs)
}
