// Package export renders filtered transaction sets as downloadable files
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/bobmcallan/finch/internal/models"
	"github.com/bobmcallan/finch/internal/services/spending"
)

// Filename builds the download name: transactions_<start>_<end>.<ext>
func Filename(window models.Window, ext string) string {
	return fmt.Sprintf("transactions_%s_%s.%s", window.Start, window.End, ext)
}

// CSV renders one row per transaction with RFC4180 quoting. Amounts are
// sign-inverted for display (negative = expense).
func CSV(txns []models.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"date", "name", "category", "amount", "currency"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, t := range txns {
		row := []string{
			t.Date.String(),
			t.Name,
			spending.DisplayCategory(t),
			fmt.Sprintf("%.2f", models.DisplayAmount(t.Amount)),
			t.CurrencyCode,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}
