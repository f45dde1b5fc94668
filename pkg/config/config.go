package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Chain string

const (
	ChainEthereum Chain = "eth"
	ChainBitcoin  Chain = "btc"
)

func AllChains() []Chain {
	return []Chain{ChainEthereum, ChainBitcoin}
}

func (c Chain) Valid() bool {
	return c == ChainEthereum || c == ChainBitcoin
}

type Config struct {
	// Backend
	APIBaseURL string

	// Local state
	StateDBPath string
	DownloadDir string

	// Dashboard
	DashboardPort int

	// Polling
	SelectionPollInterval time.Duration
	AnalysisPollInterval  time.Duration
	AnalysisPageSize      int

	// Reports
	ReportSchedule string // cron spec, empty disables scheduled generation
	ReportType     string
	ReportFormat   string

	// Observability
	LogLevel         string
	MetricsNamespace string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:  strings.TrimRight(envOr("FRAUDWATCH_API_URL", "http://localhost:8000"), "/"),
		StateDBPath: envOr("STATE_DB_PATH", "fraudwatch_state.db"),
		DownloadDir: envOr("DOWNLOAD_DIR", "downloads"),

		DashboardPort: envInt("DASHBOARD_PORT", 8090),

		SelectionPollInterval: time.Duration(envInt("SELECTION_POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		AnalysisPollInterval:  time.Duration(envInt("ANALYSIS_POLL_INTERVAL", 15)) * time.Second,
		AnalysisPageSize:      envInt("ANALYSIS_PAGE_SIZE", 100),

		ReportSchedule: os.Getenv("REPORT_SCHEDULE"),
		ReportType:     envOr("REPORT_TYPE", "summary"),
		ReportFormat:   envOr("REPORT_FORMAT", "pdf"),

		LogLevel:         envOr("LOG_LEVEL", "info"),
		MetricsNamespace: envOr("METRICS_NAMESPACE", "fraudwatch"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no environment is present.
func Default() *Config {
	return &Config{
		APIBaseURL:            "http://localhost:8000",
		StateDBPath:           "fraudwatch_state.db",
		DownloadDir:           "downloads",
		DashboardPort:         8090,
		SelectionPollInterval: time.Second,
		AnalysisPollInterval:  15 * time.Second,
		AnalysisPageSize:      100,
		ReportType:            "summary",
		ReportFormat:          "pdf",
		LogLevel:              "info",
		MetricsNamespace:      "fraudwatch",
	}
}

func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("FRAUDWATCH_API_URL must not be empty")
	}
	if c.SelectionPollInterval <= 0 {
		return fmt.Errorf("selection poll interval must be positive, got %s", c.SelectionPollInterval)
	}
	if c.AnalysisPollInterval <= 0 {
		return fmt.Errorf("analysis poll interval must be positive, got %s", c.AnalysisPollInterval)
	}
	if c.AnalysisPageSize <= 0 {
		return fmt.Errorf("ANALYSIS_PAGE_SIZE must be positive, got %d", c.AnalysisPageSize)
	}
	return nil
}

// helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
