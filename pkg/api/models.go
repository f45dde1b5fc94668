package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fraud-watch/pkg/config"
)

// ---- Auth ----

type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// ---- Analysis ----

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func AllRiskLevels() []RiskLevel {
	return []RiskLevel{RiskHigh, RiskMedium, RiskLow}
}

// Transaction is one analyzed transaction as computed by the backend. The
// client treats every field as read-only.
type Transaction struct {
	Hash          string          `json:"hash"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	Value         decimal.Decimal `json:"value"`
	Timestamp     int64           `json:"timestamp"`  // unix seconds
	RiskScore     float64         `json:"risk_score"` // 0-100
	RiskLevel     RiskLevel       `json:"risk_level"`
	GasPrice      float64         `json:"gas_price"` // gwei
	MixerInvolved bool            `json:"mixer_involved"`
}

func (t Transaction) Time() time.Time {
	return time.Unix(t.Timestamp, 0).UTC()
}

type AnalysisResponse struct {
	Count int           `json:"count"`
	Items []Transaction `json:"items"`
}

// ---- Settings ----

type Profile struct {
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	Organization string `json:"organization,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
}

type APIKeyInfo struct {
	MaskedKey  string     `json:"masked_key"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

type apiKeyValue struct {
	APIKey string `json:"api_key"`
}

// NotificationPrefs maps preference flag names (e.g. "email_alerts") to their state.
type NotificationPrefs map[string]bool

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ---- Reports ----

type MonthlyStat struct {
	Month        string          `json:"month"` // YYYY-MM
	Transactions int             `json:"transactions"`
	HighRisk     int             `json:"high_risk"`
	MediumRisk   int             `json:"medium_risk"`
	LowRisk      int             `json:"low_risk"`
	Volume       decimal.Decimal `json:"volume"`
}

type MonthlyReport struct {
	Address string        `json:"address"`
	Chain   config.Chain  `json:"chain"`
	Months  []MonthlyStat `json:"months"`
}

type QuickStats struct {
	TotalTransactions int             `json:"total_transactions"`
	HighRiskCount     int             `json:"high_risk_count"`
	FlaggedVolume     decimal.Decimal `json:"flagged_volume"`
	AvgRiskScore      float64         `json:"avg_risk_score"`
	LastActivity      *time.Time      `json:"last_activity,omitempty"`
}

type ReportTemplate struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Type          string     `json:"type"`
	LastGenerated *time.Time `json:"last_generated,omitempty"`
	Size          string     `json:"size,omitempty"`
	DownloadURL   string     `json:"download_url,omitempty"`
}

type GenerateReportRequest struct {
	StartDate  string       `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate    string       `json:"end_date,omitempty"`
	ReportType string       `json:"report_type"`
	Format     string       `json:"format"`
	Chain      config.Chain `json:"chain"`
	Address    string       `json:"address"`
}

// GenerateReportResponse carries either an immediate download URL or a job id.
type GenerateReportResponse struct {
	DownloadURL string `json:"download_url,omitempty"`
	JobID       string `json:"job_id,omitempty"`
}
