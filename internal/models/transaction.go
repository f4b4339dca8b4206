package models

import "strings"

// Category is the upstream two-level taxonomy.
type Category struct {
	Primary  string `json:"primary"`
	Detailed string `json:"detailed"`
}

// Transaction is a single bank transaction.
//
// Amount carries the upstream sign convention: positive = money out (expense),
// negative = money in (income). Every downstream computation depends on this;
// the display flip happens in exactly one place (DisplayAmount).
type Transaction struct {
	ID               string    `json:"transaction_id"`
	AccountID        string    `json:"account_id"`
	Date             Date      `json:"date"`
	Name             string    `json:"name"`
	Amount           float64   `json:"amount"`
	CurrencyCode     string    `json:"iso_currency_code,omitempty"`
	Category         *Category `json:"personal_finance_category,omitempty"`
	LegacyCategories []string  `json:"category,omitempty"`
	Pending          bool      `json:"pending"`
}

// DisplayAmount converts an internal amount (positive = expense) to the
// user-facing convention (negative = expense). This is the only sign flip
// in the codebase; exports and UI payloads go through it.
func DisplayAmount(amount float64) float64 {
	if amount == 0 {
		return 0 // avoid -0.00 in output
	}
	return -amount
}

// autoPaymentMarkers identify credit-card automatic payments that some
// institutions report with an inverted sign. Matching is a documented
// special-case rule inherited from observed upstream data, not a general
// heuristic.
var autoPaymentMarkers = []string{
	"AUTOMATIC PAYMENT",
	"AUTOPAY",
}

// IsAutomaticPayment reports whether a transaction name matches one of the
// known credit-card automatic-payment markers.
func IsAutomaticPayment(name string) bool {
	upper := strings.ToUpper(name)
	for _, marker := range autoPaymentMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// NetAmountByDay sums transaction amounts per calendar day.
func NetAmountByDay(txns []Transaction) map[Date]float64 {
	net := make(map[Date]float64, len(txns))
	for _, t := range txns {
		net[t.Date] += t.Amount
	}
	return net
}
