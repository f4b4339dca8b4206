// Package interfaces defines service contracts for Finch
package interfaces

import (
	"context"

	"github.com/bobmcallan/finch/internal/models"
)

// AggregatorClient provides access to the upstream account-aggregation API.
// It is the only component that speaks the upstream wire format.
type AggregatorClient interface {
	// CreateLinkToken initializes an account-linking session
	CreateLinkToken(ctx context.Context) (string, error)

	// ExchangePublicToken finalizes linking and yields a durable credential
	ExchangePublicToken(ctx context.Context, publicToken string) (*models.LinkSession, error)

	// GetBalances retrieves current balances and institution metadata for one credential
	GetBalances(ctx context.Context, accessToken string) (*BalancesResult, error)

	// GetTransactions retrieves one page of transactions for a credential
	GetTransactions(ctx context.Context, accessToken string, accountIDs []string, window models.Window, offset, count int) (*TransactionsPage, error)

	// RemoveItem revokes a linked institution
	RemoveItem(ctx context.Context, accessToken string) error
}

// BalancesResult is the upstream balances response reshaped to domain types.
type BalancesResult struct {
	Accounts    []models.Account
	Institution *models.Institution
}

// TransactionsPage is one page of an upstream transaction query.
// Total is the upstream's count of all transactions matching the query,
// not the page length.
type TransactionsPage struct {
	Transactions []models.Transaction
	Total        int
}
