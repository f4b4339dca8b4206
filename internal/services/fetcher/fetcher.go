// Package fetcher retrieves complete transaction windows from the
// aggregation API, paging until exhausted or a safety cap is hit.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bobmcallan/finch/internal/common"
	"github.com/bobmcallan/finch/internal/interfaces"
	"github.com/bobmcallan/finch/internal/models"
)

// ErrAccountNotFound is returned when no provided credential owns an account.
var ErrAccountNotFound = errors.New("account not found under any provided credential")

// earliestProbeStart bounds the max-offset probe for the oldest transaction.
var earliestProbeStart = models.NewDate(2000, 1, 1)

// Service implements TransactionFetcher
type Service struct {
	client   interfaces.AggregatorClient
	logger   *common.Logger
	pageSize int
	maxItems int
}

// NewService creates a new fetcher service
func NewService(client interfaces.AggregatorClient, logger *common.Logger, pageSize, maxItems int) *Service {
	if pageSize <= 0 {
		pageSize = 100
	}
	if maxItems <= 0 {
		maxItems = 10000
	}
	return &Service{
		client:   client,
		logger:   logger,
		pageSize: pageSize,
		maxItems: maxItems,
	}
}

// Fetch retrieves all transactions in the window for one credential token.
// A first-page failure fails the fetch; a later-page failure returns the
// pages already retrieved with Partial set — partial data is preferred to no
// data for history reconstruction.
func (s *Service) Fetch(ctx context.Context, token string, accountIDs []string, window models.Window) (*interfaces.FetchResult, error) {
	var all []models.Transaction
	total := 0
	offset := 0

	for {
		page, err := s.client.GetTransactions(ctx, token, accountIDs, window, offset, s.pageSize)
		if err != nil {
			if offset == 0 {
				return nil, fmt.Errorf("transaction fetch failed: %w", err)
			}
			s.logger.Warn().Err(err).Int("offset", offset).Msg("Mid-pagination failure, keeping partial result")
			return &interfaces.FetchResult{
				Transactions: s.normalize(ctx, token, all),
				Total:        total,
				Partial:      true,
			}, nil
		}

		all = append(all, page.Transactions...)
		total = page.Total

		if len(page.Transactions) < s.pageSize {
			break // exhausted
		}
		if len(all) >= s.maxItems {
			s.logger.Warn().Int("items", len(all)).Msg("Fetch safety cap reached, stopping pagination")
			break
		}
		offset += len(page.Transactions)
	}

	return &interfaces.FetchResult{
		Transactions: s.normalize(ctx, token, all),
		Total:        total,
	}, nil
}

// FetchAll fans out one fetch per credential token and joins the results.
// Ordering is guaranteed only within a single token's pages. A token whose
// fetch fails outright marks the combined result partial; the call errors
// only when every token fails.
func (s *Service) FetchAll(ctx context.Context, requests []interfaces.FetchRequest) (*interfaces.FetchResult, error) {
	if len(requests) == 0 {
		return &interfaces.FetchResult{}, nil
	}

	type outcome struct {
		result *interfaces.FetchResult
		err    error
	}

	outcomes := make([]outcome, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req interfaces.FetchRequest) {
			defer wg.Done()
			res, err := s.Fetch(ctx, req.Token, req.AccountIDs, req.Window)
			outcomes[i] = outcome{result: res, err: err}
		}(i, req)
	}
	wg.Wait()

	combined := &interfaces.FetchResult{}
	failures := 0
	var firstErr error
	for _, o := range outcomes {
		if o.err != nil {
			failures++
			if firstErr == nil {
				firstErr = o.err
			}
			combined.Partial = true
			continue
		}
		combined.Transactions = append(combined.Transactions, o.result.Transactions...)
		combined.Total += o.result.Total
		combined.Partial = combined.Partial || o.result.Partial
	}

	if failures == len(requests) {
		return nil, firstErr
	}
	return combined, nil
}

// AccountDetails resolves which credential owns accountID, fetches its
// transaction window, and optionally probes for the oldest transaction on
// record via a max-offset query.
func (s *Service) AccountDetails(ctx context.Context, tokens []string, accountID string, window models.Window, includeEarliest bool) (*interfaces.AccountDetailsResult, error) {
	var owner string
	var account models.Account

	for _, token := range tokens {
		balances, err := s.client.GetBalances(ctx, token)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Balance lookup failed during ownership resolution")
			continue
		}
		for _, a := range balances.Accounts {
			if a.ID == accountID {
				owner = token
				account = a
				break
			}
		}
		if owner != "" {
			break
		}
	}

	if owner == "" {
		return nil, ErrAccountNotFound
	}

	fetched, err := s.Fetch(ctx, owner, []string{accountID}, window)
	if err != nil {
		return nil, err
	}

	result := &interfaces.AccountDetailsResult{
		Account:      account,
		Token:        owner,
		Transactions: fetched.Transactions,
		Total:        fetched.Total,
	}

	if includeEarliest {
		if earliest, err := s.earliestTransactionDate(ctx, owner, accountID); err != nil {
			s.logger.Warn().Err(err).Str("account_id", accountID).Msg("Earliest-date probe failed")
		} else {
			result.EarliestDate = earliest
		}
	}

	return result, nil
}

// earliestTransactionDate finds the oldest transaction for an account by
// asking for the last item of a maximally wide query: one call to learn the
// total, one call at offset total-1.
func (s *Service) earliestTransactionDate(ctx context.Context, token, accountID string) (models.Date, error) {
	probe := models.Window{Start: earliestProbeStart, End: models.Today()}

	first, err := s.client.GetTransactions(ctx, token, []string{accountID}, probe, 0, 1)
	if err != nil {
		return models.Date{}, err
	}
	if first.Total == 0 {
		return models.Date{}, nil
	}

	last, err := s.client.GetTransactions(ctx, token, []string{accountID}, probe, first.Total-1, 1)
	if err != nil {
		return models.Date{}, err
	}
	if len(last.Transactions) == 0 {
		return models.Date{}, nil
	}
	return last.Transactions[len(last.Transactions)-1].Date, nil
}

// normalize applies the ingestion-boundary sign rules. The upstream
// convention (positive = money out) is kept as the internal convention; the
// single known exception is automatic payments on credit-card accounts,
// which some institutions report with the sign inverted. That re-sign
// happens here and nowhere else, and only for credit accounts: an automatic
// payment out of a checking account is a real outflow and keeps its sign.
// Account types are resolved with one balances call per fetch, made only
// when a candidate transaction appears.
func (s *Service) normalize(ctx context.Context, token string, txns []models.Transaction) []models.Transaction {
	var credit map[string]bool
	for i, t := range txns {
		if t.Amount <= 0 || !models.IsAutomaticPayment(t.Name) {
			continue
		}
		if credit == nil {
			credit = s.creditAccounts(ctx, token)
		}
		if credit[t.AccountID] {
			txns[i].Amount = -t.Amount
		}
	}
	return txns
}

// creditAccounts resolves which of a credential's accounts are credit cards.
// On a failed lookup signs stay as the upstream reported them.
func (s *Service) creditAccounts(ctx context.Context, token string) map[string]bool {
	credit := make(map[string]bool)
	balances, err := s.client.GetBalances(ctx, token)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Balance lookup failed during sign normalization")
		return credit
	}
	for _, a := range balances.Accounts {
		if a.Type == models.AccountTypeCredit {
			credit[a.ID] = true
		}
	}
	return credit
}
