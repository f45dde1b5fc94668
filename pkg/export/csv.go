package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fraud-watch/pkg/alerts"
	"github.com/fraud-watch/pkg/api"
)

// bom makes spreadsheet tools open the file as UTF-8.
const bom = "\ufeff"

// WriteCSV writes a UTF-8 byte-order mark, the header and one line per row.
// Values containing commas, quotes or newlines are quoted.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

var transactionHeader = []string{"hash", "from", "to", "value", "timestamp", "risk_score", "risk_level", "gas_price", "mixer_involved"}

func TransactionsCSV(w io.Writer, items []api.Transaction) error {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			it.Hash,
			it.From,
			it.To,
			it.Value.String(),
			it.Time().Format(time.RFC3339),
			strconv.FormatFloat(it.RiskScore, 'f', -1, 64),
			string(it.RiskLevel),
			strconv.FormatFloat(it.GasPrice, 'f', -1, 64),
			strconv.FormatBool(it.MixerInvolved),
		})
	}
	return WriteCSV(w, transactionHeader, rows)
}

var alertHeader = []string{"id", "severity", "status", "reason", "risk_score", "from", "to", "value", "timestamp"}

func AlertsCSV(w io.Writer, list []alerts.Alert) error {
	rows := make([][]string, 0, len(list))
	for _, a := range list {
		rows = append(rows, []string{
			a.ID,
			string(a.Severity),
			string(a.Status),
			a.Reason,
			strconv.FormatFloat(a.RiskScore, 'f', -1, 64),
			a.From,
			a.To,
			a.Value.String(),
			a.Timestamp.Format(time.RFC3339),
		})
	}
	return WriteCSV(w, alertHeader, rows)
}
