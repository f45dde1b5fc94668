package alerts

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fraud-watch/pkg/api"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

func AllSeverities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

func AllStatuses() []Status {
	return []Status{StatusActive, StatusAcknowledged, StatusResolved}
}

// Presentation thresholds for the reason text.
var (
	LargeValueThreshold   = decimal.NewFromInt(100)
	HighGasPriceThreshold = 100.0 // gwei
)

// SeverityFor buckets a 0-100 risk score into four tiers.
func SeverityFor(score float64) Severity {
	switch {
	case score >= 80:
		return SeverityCritical
	case score >= 50:
		return SeverityHigh
	case score >= 30:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// DefaultStatus applies when no local override exists.
func DefaultStatus(sev Severity) Status {
	if sev == SeverityCritical || sev == SeverityHigh {
		return StatusActive
	}
	return StatusResolved
}

// ReasonFor explains an alert in one line. Conditions are checked in a fixed
// order and every one that applies is included.
func ReasonFor(tx api.Transaction) string {
	var reasons []string
	if tx.Value.GreaterThanOrEqual(LargeValueThreshold) {
		reasons = append(reasons, fmt.Sprintf("Large value transfer (%s)", tx.Value.String()))
	}
	if tx.GasPrice >= HighGasPriceThreshold {
		reasons = append(reasons, fmt.Sprintf("Unusually high gas price (%.0f gwei)", tx.GasPrice))
	}
	if tx.From != "" && strings.EqualFold(tx.From, tx.To) {
		reasons = append(reasons, "Self-transfer")
	}
	if strings.TrimSpace(tx.To) == "" {
		reasons = append(reasons, "Missing recipient")
	}
	if tx.MixerInvolved {
		reasons = append(reasons, "Mixer involvement")
	}
	if len(reasons) == 0 {
		return "Anomalous activity detected"
	}
	return strings.Join(reasons, "; ")
}
