package analysis

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fraud-watch/pkg/alerts"
	"github.com/fraud-watch/pkg/api"
)

// Everything below is recomputed from the full item list on every fetch.

type KPIs struct {
	Total         int                     `json:"total"`
	High          int                     `json:"high"`
	Medium        int                     `json:"medium"`
	Low           int                     `json:"low"`
	BySeverity    map[alerts.Severity]int `json:"by_severity"`
	DetectionRate float64                 `json:"detection_rate"` // (high+medium)/total, percent
	AvgRiskScore  float64                 `json:"avg_risk_score"`
	MixerCount    int                     `json:"mixer_count"`
	TotalValue    decimal.Decimal         `json:"total_value"`
}

func ComputeKPIs(items []api.Transaction) KPIs {
	k := KPIs{
		BySeverity: map[alerts.Severity]int{},
		TotalValue: decimal.Zero,
	}
	for _, s := range alerts.AllSeverities() {
		k.BySeverity[s] = 0
	}

	var scoreSum float64
	for _, it := range items {
		k.Total++
		switch it.RiskLevel {
		case api.RiskHigh:
			k.High++
		case api.RiskMedium:
			k.Medium++
		default:
			k.Low++
		}
		k.BySeverity[alerts.SeverityFor(it.RiskScore)]++
		if it.MixerInvolved {
			k.MixerCount++
		}
		scoreSum += it.RiskScore
		k.TotalValue = k.TotalValue.Add(it.Value)
	}

	if k.Total > 0 {
		k.DetectionRate = percent(k.High+k.Medium, k.Total)
		k.AvgRiskScore = round1(scoreSum / float64(k.Total))
	}
	return k
}

type LevelShare struct {
	Level   api.RiskLevel `json:"level"`
	Count   int           `json:"count"`
	Percent float64       `json:"percent"`
}

// RiskDistribution returns the share of each risk level, high first.
func RiskDistribution(items []api.Transaction) []LevelShare {
	counts := map[api.RiskLevel]int{}
	for _, it := range items {
		lvl := it.RiskLevel
		if lvl != api.RiskHigh && lvl != api.RiskMedium {
			lvl = api.RiskLow
		}
		counts[lvl]++
	}

	out := make([]LevelShare, 0, 3)
	for _, lvl := range api.AllRiskLevels() {
		share := LevelShare{Level: lvl, Count: counts[lvl]}
		if len(items) > 0 {
			share.Percent = percent(counts[lvl], len(items))
		}
		out = append(out, share)
	}
	return out
}

type HourBucket struct {
	Hour   int `json:"hour"`
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// HourlySeries groups items by the UTC hour of day of their timestamp.
func HourlySeries(items []api.Transaction) [24]HourBucket {
	var series [24]HourBucket
	for h := range series {
		series[h].Hour = h
	}
	for _, it := range items {
		b := &series[it.Time().Hour()]
		b.Total++
		switch it.RiskLevel {
		case api.RiskHigh:
			b.High++
		case api.RiskMedium:
			b.Medium++
		default:
			b.Low++
		}
	}
	return series
}

// Filter narrows a transaction list on the client. Zero fields match everything.
type Filter struct {
	Level     api.RiskLevel `json:"level,omitempty"`
	MinScore  float64       `json:"min_score,omitempty"`
	Query     string        `json:"query,omitempty"` // substring of hash, sender or recipient
	MixerOnly bool          `json:"mixer_only,omitempty"`
}

func (f Filter) Apply(items []api.Transaction) []api.Transaction {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]api.Transaction, 0, len(items))
	for _, it := range items {
		if f.Level != "" && it.RiskLevel != f.Level {
			continue
		}
		if it.RiskScore < f.MinScore {
			continue
		}
		if f.MixerOnly && !it.MixerInvolved {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(it.Hash), q) &&
			!strings.Contains(strings.ToLower(it.From), q) &&
			!strings.Contains(strings.ToLower(it.To), q) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// TopRisky returns up to n items ordered by risk score, highest first.
func TopRisky(items []api.Transaction, n int) []api.Transaction {
	sorted := append([]api.Transaction(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RiskScore > sorted[j].RiskScore })
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func percent(part, total int) float64 {
	return round1(float64(part) * 100 / float64(total))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
