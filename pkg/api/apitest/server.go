// Package apitest provides an in-memory stand-in for the fraud-monitoring
// backend, for use in tests of packages built on the api client.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fraud-watch/pkg/api"
	"github.com/fraud-watch/pkg/config"
)

type account struct {
	user     api.User
	password string
}

// Backend is a fake backend. Set AnalyzeHook before issuing requests; every
// other piece of state goes through the setters.
type Backend struct {
	*httptest.Server

	mu            sync.Mutex
	accounts      map[string]*account // email -> account
	tokens        map[string]string   // token -> email
	nextID        int64
	tokenSeq      int64
	items         map[string][]api.Transaction // "chain/address" -> items
	apiKey        string
	keySeq        int
	notifications api.NotificationPrefs
	profiles      map[string]api.Profile
	templates     []api.ReportTemplate
	reports       map[string][]byte
	generate      api.GenerateReportResponse
	lastGenerate  *api.GenerateReportRequest
	signedOut     int
	failAnalyze   string

	AnalyzeCalls atomic.Int64
	// AnalyzeHook, when set, runs before an analyze response is written.
	AnalyzeHook func(chain, address string)
}

func NewBackend() *Backend {
	b := &Backend{
		accounts:      map[string]*account{},
		tokens:        map[string]string{},
		items:         map[string][]api.Transaction{},
		apiKey:        "sk_live_initial0001",
		notifications: api.NotificationPrefs{"email_alerts": true, "weekly_digest": false},
		profiles:      map[string]api.Profile{},
		reports:       map[string][]byte{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", b.handleLogin)
	mux.HandleFunc("/auth/register", b.handleRegister)
	mux.HandleFunc("/auth/me", b.authed(b.handleMe))
	mux.HandleFunc("/api/analyze/", b.handleAnalyze)
	mux.HandleFunc("/api/settings/profile", b.authed(b.handleProfile))
	mux.HandleFunc("/api/settings/api-key", b.authed(b.handleAPIKey))
	mux.HandleFunc("/api/settings/api-key/reveal", b.authed(b.handleReveal))
	mux.HandleFunc("/api/settings/api-key/rotate", b.authed(b.handleRotate))
	mux.HandleFunc("/api/settings/notifications", b.authed(b.handleNotifications))
	mux.HandleFunc("/api/settings/security/change-password", b.authed(b.handleChangePassword))
	mux.HandleFunc("/api/settings/security/signout-others", b.authed(b.handleSignOutOthers))
	mux.HandleFunc("/api/reports/monthly", b.handleMonthly)
	mux.HandleFunc("/api/reports/quick-stats", b.handleQuickStats)
	mux.HandleFunc("/api/reports/templates", b.handleTemplates)
	mux.HandleFunc("/api/reports/generate", b.handleGenerate)
	mux.HandleFunc("/api/reports/download/", b.handleDownload)
	mux.HandleFunc("/files/", b.handleFile)
	b.Server = httptest.NewServer(mux)
	return b
}

// ---- seeding ----

func (b *Backend) AddUser(email, password, fullName string) api.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(email, password, fullName)
}

func (b *Backend) addUserLocked(email, password, fullName string) api.User {
	b.nextID++
	u := api.User{ID: b.nextID, Email: email, FullName: fullName}
	b.accounts[email] = &account{user: u, password: password}
	b.profiles[email] = api.Profile{Email: email, FullName: fullName}
	return u
}

// IssueToken returns a valid token for an existing user without a login call.
func (b *Backend) IssueToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(email)
}

func (b *Backend) issueLocked(email string) string {
	b.tokenSeq++
	tok := fmt.Sprintf("tok-%d", b.tokenSeq)
	b.tokens[tok] = email
	return tok
}

func (b *Backend) RevokeToken(tok string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, tok)
}

func (b *Backend) SetItems(chain, address string, items []api.Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[chain+"/"+address] = items
}

// FailAnalyze makes the analyze endpoint answer 500 with body msg; empty restores it.
func (b *Backend) FailAnalyze(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAnalyze = msg
}

func (b *Backend) SetTemplates(t []api.ReportTemplate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.templates = t
}

func (b *Backend) SetReport(id string, content []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reports[id] = content
}

func (b *Backend) SetGenerateResponse(r api.GenerateReportResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generate = r
}

func (b *Backend) LastGenerate() *api.GenerateReportRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastGenerate
}

func (b *Backend) SignedOutCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.signedOut
}

func (b *Backend) Password(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.accounts[email]; ok {
		return a.password
	}
	return ""
}

// ---- handlers ----

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func detail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, email string)

func (b *Backend) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		email, ok := b.tokens[tok]
		b.mu.Unlock()
		if !ok {
			detail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		h(w, r, email)
	}
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		detail(w, http.StatusBadRequest, "bad form")
		return
	}
	email, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[email]
	if !ok || a.password != password {
		detail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": b.issueLocked(email), "token_type": "bearer"})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		detail(w, http.StatusUnprocessableEntity, "invalid json")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.accounts[req.Email]; exists {
		detail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	writeJSON(w, http.StatusCreated, b.addUserLocked(req.Email, req.Password, req.FullName))
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request, email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.accounts[email].user)
}

func (b *Backend) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	b.AnalyzeCalls.Add(1)
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/analyze/"), "/")
	if len(parts) != 2 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	chain, address := parts[0], parts[1]
	if b.AnalyzeHook != nil {
		b.AnalyzeHook(chain, address)
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	b.mu.Lock()
	if b.failAnalyze != "" {
		msg := b.failAnalyze
		b.mu.Unlock()
		http.Error(w, msg, http.StatusInternalServerError)
		return
	}
	items := append([]api.Transaction(nil), b.items[chain+"/"+address]...)
	b.mu.Unlock()
	count := len(items)
	if offset > 0 && len(items) > offset {
		items = items[:offset]
	}
	if items == nil {
		items = []api.Transaction{}
	}
	writeJSON(w, http.StatusOK, api.AnalysisResponse{Count: count, Items: items})
}

func (b *Backend) handleProfile(w http.ResponseWriter, r *http.Request, email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.Method == http.MethodPut {
		var p api.Profile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			detail(w, http.StatusUnprocessableEntity, "invalid json")
			return
		}
		p.Email = email
		b.profiles[email] = p
	}
	writeJSON(w, http.StatusOK, b.profiles[email])
}

func mask(key string) string {
	if len(key) <= 12 {
		return strings.Repeat("*", len(key))
	}
	return key[:8] + strings.Repeat("*", len(key)-12) + key[len(key)-4:]
}

func (b *Backend) handleAPIKey(w http.ResponseWriter, r *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, api.APIKeyInfo{MaskedKey: mask(b.apiKey)})
}

func (b *Backend) handleReveal(w http.ResponseWriter, r *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"api_key": b.apiKey})
}

func (b *Backend) handleRotate(w http.ResponseWriter, r *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keySeq++
	b.apiKey = fmt.Sprintf("sk_live_rotated%04d", b.keySeq)
	writeJSON(w, http.StatusOK, map[string]string{"api_key": b.apiKey})
}

func (b *Backend) handleNotifications(w http.ResponseWriter, r *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.Method == http.MethodPut {
		prefs := api.NotificationPrefs{}
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			detail(w, http.StatusUnprocessableEntity, "invalid json")
			return
		}
		b.notifications = prefs
	}
	writeJSON(w, http.StatusOK, b.notifications)
}

func (b *Backend) handleChangePassword(w http.ResponseWriter, r *http.Request, email string) {
	var req struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		detail(w, http.StatusUnprocessableEntity, "invalid json")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.accounts[email]
	if a.password != req.Current {
		detail(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	a.password = req.New
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (b *Backend) handleSignOutOthers(w http.ResponseWriter, r *http.Request, email string) {
	current := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	b.mu.Lock()
	defer b.mu.Unlock()
	for tok, e := range b.tokens {
		if e == email && tok != current {
			delete(b.tokens, tok)
		}
	}
	b.signedOut++
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (b *Backend) handleMonthly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	months, _ := strconv.Atoi(q.Get("months"))
	rep := api.MonthlyReport{Address: q.Get("address"), Chain: config.Chain(q.Get("chain"))}
	for i := 0; i < months; i++ {
		rep.Months = append(rep.Months, api.MonthlyStat{Month: fmt.Sprintf("2026-%02d", i+1), Transactions: 10 * (i + 1)})
	}
	writeJSON(w, http.StatusOK, rep)
}

func (b *Backend) handleQuickStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	b.mu.Lock()
	items := b.items[q.Get("chain")+"/"+q.Get("address")]
	b.mu.Unlock()
	stats := api.QuickStats{TotalTransactions: len(items)}
	for _, it := range items {
		if it.RiskLevel == api.RiskHigh {
			stats.HighRiskCount++
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (b *Backend) handleTemplates(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tpls := b.templates
	if tpls == nil {
		tpls = []api.ReportTemplate{}
	}
	writeJSON(w, http.StatusOK, tpls)
}

func (b *Backend) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		detail(w, http.StatusUnprocessableEntity, "invalid json")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastGenerate = &req
	writeJSON(w, http.StatusOK, b.generate)
}

func (b *Backend) handleDownload(w http.ResponseWriter, r *http.Request) {
	b.serveReport(w, strings.TrimPrefix(r.URL.Path, "/api/reports/download/"))
}

func (b *Backend) handleFile(w http.ResponseWriter, r *http.Request) {
	b.serveReport(w, strings.TrimPrefix(r.URL.Path, "/files/"))
}

func (b *Backend) serveReport(w http.ResponseWriter, id string) {
	b.mu.Lock()
	content, ok := b.reports[id]
	b.mu.Unlock()
	if !ok {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(content)
}
