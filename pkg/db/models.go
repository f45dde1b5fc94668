package db

import (
	"strings"
	"time"

	"github.com/fraud-watch/pkg/config"
)

// Well-known keys of the local state store.
const (
	KeyAuthToken         = "auth_token"
	KeyMonitoredAddress  = "monitored_address"
	KeyMonitoredChain    = "monitored_chain"
	KeyAlertStatusPrefix = "alert_status:"
)

// AlertStatusKey returns the key holding the override map for one monitored
// address. Hex and bech32 addresses are case-insensitive and keyed lowercased;
// base58 addresses are kept as-is.
func AlertStatusKey(address string) string {
	lower := strings.ToLower(address)
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "bc1") || strings.HasPrefix(lower, "tb1") {
		address = lower
	}
	return KeyAlertStatusPrefix + address
}

type ReportJob struct {
	ID           int64        `json:"id"`
	JobID        string       `json:"job_id"`
	ReportType   string       `json:"report_type"`
	Format       string       `json:"format"`
	Chain        config.Chain `json:"chain"`
	Address      string       `json:"address"`
	DownloadURL  string       `json:"download_url"`
	LocalPath    string       `json:"local_path"`
	RequestedAt  time.Time    `json:"requested_at"`
	DownloadedAt *time.Time   `json:"downloaded_at,omitempty"`
}
