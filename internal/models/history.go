package models

// BalanceHistoryPoint is one reconstructed (date, balance) pair. Derived,
// never stored; recomputed whenever the inputs change.
type BalanceHistoryPoint struct {
	Date    Date    `json:"date"`
	Balance float64 `json:"balance"`
}

// SpendingRow is one time bucket of an aggregation: every row carries a value
// for every group key observed in the filtered set so stacked charts line up.
type SpendingRow struct {
	Bucket Date               `json:"bucket"`
	Values map[string]float64 `json:"values"`
}

// SpendingTable is the chart-ready aggregation result.
type SpendingTable struct {
	Groups []string      `json:"groups"` // stable column order
	Rows   []SpendingRow `json:"rows"`
}

// CategorySlice is one wedge of the pie-style category summary.
type CategorySlice struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}
