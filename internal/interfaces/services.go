package interfaces

import (
	"context"

	"github.com/bobmcallan/finch/internal/models"
)

// FetchRequest asks for one credential token's transactions.
type FetchRequest struct {
	Token      string
	AccountIDs []string
	Window     models.Window
}

// FetchResult is the outcome of a transaction fetch. Partial is set when a
// page beyond the first failed and the earlier pages were kept.
type FetchResult struct {
	Transactions []models.Transaction
	Total        int
	Partial      bool
}

// TransactionFetcher retrieves complete transaction windows from upstream,
// paging until exhausted or a safety cap is hit.
type TransactionFetcher interface {
	// Fetch retrieves all transactions in the window for one credential token
	Fetch(ctx context.Context, token string, accountIDs []string, window models.Window) (*FetchResult, error)

	// FetchAll fans out one fetch per credential token and concatenates results.
	// Ordering is guaranteed only within a single token's pages.
	FetchAll(ctx context.Context, requests []FetchRequest) (*FetchResult, error)

	// AccountDetails resolves which credential owns an account, then fetches
	// its transaction window. With includeEarliest it also probes for the
	// absolute oldest transaction via a max-offset query.
	AccountDetails(ctx context.Context, tokens []string, accountID string, window models.Window, includeEarliest bool) (*AccountDetailsResult, error)
}

// AccountDetailsResult is the resolved account plus its transaction window.
type AccountDetailsResult struct {
	Account      models.Account
	Token        string
	Transactions []models.Transaction
	Total        int
	EarliestDate models.Date // zero unless the earliest-date probe ran and found one
}

// BoundaryObservation carries everything the estimator needs from one fetch.
type BoundaryObservation struct {
	AccountID      string
	Preset         models.RangePreset
	Window         models.Window
	OldestReturned models.Date
	ReturnedCount  int
	TotalAvailable int
}

// HistoryService owns the history boundary estimate and the balance
// reconstruction walk.
type HistoryService interface {
	// Observe updates the boundary estimate from a completed fetch.
	// Returns the current boundary and whether this observation tightened it.
	Observe(ctx context.Context, obs BoundaryObservation) (models.Date, bool)

	// Boundary returns the current estimate for an account (zero if unset)
	Boundary(ctx context.Context, accountID string) models.Date

	// ClearBoundary drops the estimate, used when an institution is unlinked
	ClearBoundary(ctx context.Context, accountID string) error

	// Reconstruct derives the day-by-day balance series for an account
	Reconstruct(ctx context.Context, accountID string, currentBalance float64, txns []models.Transaction, window models.Window) ([]models.BalanceHistoryPoint, error)
}
