// Package render prints CLI tables for the fraudwatch subcommands.
package render

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/fraud-watch/pkg/alerts"
	"github.com/fraud-watch/pkg/analysis"
	"github.com/fraud-watch/pkg/api"
	"github.com/fraud-watch/pkg/db"
	"github.com/fraud-watch/pkg/extractor"
	"github.com/fraud-watch/pkg/selection"
)

var (
	critical = color.New(color.FgRed, color.Bold).SprintFunc()
	high     = color.New(color.FgYellow, color.Bold).SprintFunc()
	medium   = color.New(color.FgCyan).SprintFunc()
	low      = color.New(color.FgHiBlack).SprintFunc()
	dim      = color.New(color.Faint).SprintFunc()
	accent   = color.New(color.FgBlue, color.Bold).SprintFunc()
)

func Severity(s alerts.Severity) string {
	switch s {
	case alerts.SeverityCritical:
		return critical(string(s))
	case alerts.SeverityHigh:
		return high(string(s))
	case alerts.SeverityMedium:
		return medium(string(s))
	default:
		return low(string(s))
	}
}

func RiskLevel(l api.RiskLevel) string {
	switch l {
	case api.RiskHigh:
		return critical(string(l))
	case api.RiskMedium:
		return high(string(l))
	default:
		return low(string(l))
	}
}

func Status(s alerts.Status) string {
	if s == alerts.StatusActive {
		return critical(string(s))
	}
	return dim(string(s))
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetBorder(false)
	t.SetColumnSeparator(" ")
	t.SetHeaderLine(true)
	return t
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func Selection(w io.Writer, sel selection.Selection, ok bool) {
	if !ok {
		fmt.Fprintln(w, dim("no address selected"))
		return
	}
	fmt.Fprintf(w, "%s %s (%s)\n", accent("monitoring"), extractor.Display(sel.Address, sel.Chain), sel.Chain)
}

func KPIs(w io.Writer, k analysis.KPIs) {
	t := newTable(w, "metric", "value")
	t.Append([]string{"transactions", strconv.Itoa(k.Total)})
	t.Append([]string{"high risk", critical(strconv.Itoa(k.High))})
	t.Append([]string{"medium risk", high(strconv.Itoa(k.Medium))})
	t.Append([]string{"low risk", low(strconv.Itoa(k.Low))})
	t.Append([]string{"detection rate", fmt.Sprintf("%.1f%%", k.DetectionRate)})
	t.Append([]string{"avg risk score", fmt.Sprintf("%.1f", k.AvgRiskScore)})
	t.Append([]string{"mixer involved", strconv.Itoa(k.MixerCount)})
	t.Append([]string{"total value", k.TotalValue.String()})
	for _, sev := range alerts.AllSeverities() {
		t.Append([]string{"severity " + string(sev), Severity(sev) + " " + strconv.Itoa(k.BySeverity[sev])})
	}
	t.Render()
}

// Hourly draws the 24 hour buckets as a horizontal bar chart.
func Hourly(w io.Writer, series [24]analysis.HourBucket) {
	peak := 0
	for _, b := range series {
		if b.Total > peak {
			peak = b.Total
		}
	}
	if peak == 0 {
		fmt.Fprintln(w, dim("no activity"))
		return
	}
	const width = 40
	for _, b := range series {
		n := b.Total * width / peak
		fmt.Fprintf(w, "%02d:00 %s %d\n", b.Hour, strings.Repeat("█", n), b.Total)
	}
}

func Transactions(w io.Writer, items []api.Transaction) {
	t := newTable(w, "hash", "from", "to", "value", "time (utc)", "score", "level", "mixer")
	for _, it := range items {
		mixer := ""
		if it.MixerInvolved {
			mixer = critical("yes")
		}
		t.Append([]string{
			extractor.Abbrev(it.Hash),
			extractor.Abbrev(it.From),
			extractor.Abbrev(it.To),
			it.Value.String(),
			it.Time().Format(time.DateTime),
			score(it.RiskScore),
			RiskLevel(it.RiskLevel),
			mixer,
		})
	}
	t.Render()
}

func Alerts(w io.Writer, list []alerts.Alert) {
	t := newTable(w, "tx", "severity", "status", "reason", "score")
	for _, a := range list {
		status := Status(a.Status)
		if a.PendingSync {
			status += dim("*")
		}
		t.Append([]string{extractor.Abbrev(a.ID), Severity(a.Severity), status, a.Reason, score(a.RiskScore)})
	}
	t.Render()

	s := alerts.Summarize(list)
	fmt.Fprintf(w, "%d active, %d acknowledged, %d resolved", s.ByStatus[alerts.StatusActive], s.ByStatus[alerts.StatusAcknowledged], s.ByStatus[alerts.StatusResolved])
	if s.Pending > 0 {
		fmt.Fprintf(w, " (%d pending sync)", s.Pending)
	}
	fmt.Fprintln(w)
}

func Templates(w io.Writer, tpls []api.ReportTemplate) {
	t := newTable(w, "id", "name", "type", "last generated", "size")
	for _, tpl := range tpls {
		last := "-"
		if tpl.LastGenerated != nil {
			last = tpl.LastGenerated.UTC().Format(time.DateTime)
		}
		t.Append([]string{tpl.ID, tpl.Name, tpl.Type, last, tpl.Size})
	}
	t.Render()
}

func Jobs(w io.Writer, jobs []db.ReportJob) {
	t := newTable(w, "requested", "type", "format", "address", "job", "file")
	for _, j := range jobs {
		job, file := j.JobID, j.LocalPath
		if job == "" {
			job = "-"
		}
		if file == "" {
			file = dim("pending")
		}
		t.Append([]string{j.RequestedAt.UTC().Format(time.DateTime), j.ReportType, j.Format, extractor.Abbrev(j.Address), job, file})
	}
	t.Render()
}

func Profile(w io.Writer, p *api.Profile, key *api.APIKeyInfo) {
	t := newTable(w, "field", "value")
	t.Append([]string{"email", p.Email})
	t.Append([]string{"name", p.FullName})
	if p.Organization != "" {
		t.Append([]string{"organization", p.Organization})
	}
	if p.Timezone != "" {
		t.Append([]string{"timezone", p.Timezone})
	}
	if key != nil {
		t.Append([]string{"api key", key.MaskedKey})
	}
	t.Render()
}

func Notifications(w io.Writer, prefs api.NotificationPrefs) {
	names := make([]string, 0, len(prefs))
	for name := range prefs {
		names = append(names, name)
	}
	sort.Strings(names)

	t := newTable(w, "notification", "enabled")
	for _, name := range names {
		state := dim("off")
		if prefs[name] {
			state = accent("on")
		}
		t.Append([]string{name, state})
	}
	t.Render()
}

func Monthly(w io.Writer, rep *api.MonthlyReport) {
	t := newTable(w, "month", "transactions", "high", "medium", "low", "volume")
	for _, m := range rep.Months {
		t.Append([]string{
			m.Month,
			strconv.Itoa(m.Transactions),
			critical(strconv.Itoa(m.HighRisk)),
			high(strconv.Itoa(m.MediumRisk)),
			low(strconv.Itoa(m.LowRisk)),
			m.Volume.String(),
		})
	}
	t.Render()
}
