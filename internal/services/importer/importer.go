// Package importer parses external statement files into session-scoped
// pseudo-accounts.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/finch/internal/interfaces"
	"github.com/bobmcallan/finch/internal/models"
)

// requiredColumns must all appear in the statement header row.
var requiredColumns = []string{"date", "name", "amount"}

// dateLayouts are the statement date formats accepted, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// RowError reports a parse failure with the offending row number. Any bad
// row aborts the entire import; there is no partial import.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ParseStatement reads a CSV statement and produces a pseudo-account plus
// its transactions, held only in session scope. Statement amounts use the
// everyday convention (negative = expense) and are flipped once here into
// the internal positive-is-expense convention.
func ParseStatement(r io.Reader, accountName string) (*interfaces.ImportedStatement, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read statement header: %w", err)
	}

	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	if accountName == "" {
		accountName = "Imported Statement"
	}

	accountID := uuid.New().String()
	token := "import:" + uuid.New().String()

	var txns []models.Transaction
	balance := decimal.Zero
	currency := ""

	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &RowError{Row: row, Err: err}
		}

		txn, amount, err := parseRow(record, columns)
		if err != nil {
			return nil, &RowError{Row: row, Err: err}
		}
		txn.AccountID = accountID
		txns = append(txns, txn)

		balance = balance.Add(amount)
		if currency == "" {
			currency = txn.CurrencyCode
		}
	}

	if len(txns) == 0 {
		return nil, fmt.Errorf("statement contains no transactions")
	}

	bal, _ := balance.Float64()
	return &interfaces.ImportedStatement{
		Token: token,
		Account: models.Account{
			ID:              accountID,
			Name:            accountName,
			InstitutionName: "Imported",
			Type:            models.AccountTypeImported,
			CurrentBalance:  bal,
			CurrencyCode:    currency,
			AccessToken:     token,
		},
		Transactions: txns,
	}, nil
}

// mapColumns locates required and optional columns in the header,
// case-insensitively.
func mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("statement is missing required columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

// parseRow builds one transaction from a record. The returned decimal is the
// statement-convention amount, used for the running balance.
func parseRow(record []string, columns map[string]int) (models.Transaction, decimal.Decimal, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	date, err := parseDate(field("date"))
	if err != nil {
		return models.Transaction{}, decimal.Zero, err
	}

	name := field("name")
	if name == "" {
		return models.Transaction{}, decimal.Zero, fmt.Errorf("transaction name is empty")
	}

	amount, err := parseAmount(field("amount"))
	if err != nil {
		return models.Transaction{}, decimal.Zero, err
	}

	txn := models.Transaction{
		ID:           uuid.New().String(),
		Date:         date,
		Name:         name,
		Amount:       amount.Neg().InexactFloat64(), // statement convention -> internal convention
		CurrencyCode: field("currency"),
	}
	if cat := field("category"); cat != "" {
		txn.LegacyCategories = []string{cat}
	}
	return txn, amount, nil
}

func parseDate(s string) (models.Date, error) {
	if s == "" {
		return models.Date{}, fmt.Errorf("date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOf(t), nil
		}
	}
	return models.Date{}, fmt.Errorf("unparsable date %q", s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
	cleaned := strings.NewReplacer(",", "", "$", "", " ", "").Replace(s)
	// Bank exports sometimes wrap negatives in parentheses
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + cleaned[1:len(cleaned)-1]
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparsable amount %q", s)
	}
	return d, nil
}
