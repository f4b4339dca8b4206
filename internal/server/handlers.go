package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bobmcallan/finch/internal/clients/plaid"
	"github.com/bobmcallan/finch/internal/common"
	"github.com/bobmcallan/finch/internal/interfaces"
	"github.com/bobmcallan/finch/internal/models"
	"github.com/bobmcallan/finch/internal/services/fetcher"
	"github.com/bobmcallan/finch/internal/services/spending"
)

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// --- Shared request plumbing ---

// windowRequest carries either a preset or an explicit custom range.
type windowRequest struct {
	Preset models.RangePreset `json:"preset,omitempty"`
	Start  models.Date        `json:"start_date,omitempty"`
	End    models.Date        `json:"end_date,omitempty"`
}

// resolve turns the request into a validated window. Custom ranges are
// rejected (never corrected) when inverted or in the future.
func (wr windowRequest) resolve(today models.Date) (models.Window, models.RangePreset, error) {
	if wr.Preset != "" && wr.Preset != models.RangeCustom {
		win, ok := wr.Preset.Window(today)
		if !ok {
			return models.Window{}, "", fmt.Errorf("unknown range preset %q", wr.Preset)
		}
		return win, wr.Preset, nil
	}
	win := models.Window{Start: wr.Start, End: wr.End}
	if err := win.Validate(today); err != nil {
		return models.Window{}, "", err
	}
	return win, models.RangeCustom, nil
}

// tokenSelection names one credential and the accounts queried under it.
type tokenSelection struct {
	Token      string   `json:"token"`
	AccountIDs []string `json:"account_ids,omitempty"`
}

// isImportToken distinguishes statement-import pseudo-credentials.
func isImportToken(token string) bool {
	return strings.HasPrefix(token, "import:")
}

// upstreamStatus maps service errors to HTTP status codes.
func upstreamStatus(err error) int {
	var apiErr *plaid.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}
	if errors.Is(err, fetcher.ErrAccountNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// --- Linking handlers ---

func (s *Server) handleLinkToken(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	token, err := s.app.Aggregator.CreateLinkToken(r.Context())
	if err != nil {
		WriteError(w, upstreamStatus(err), fmt.Sprintf("Error creating link token: %v", err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"link_token": token})
}

func (s *Server) handleLinkExchange(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		PublicToken string `json:"public_token"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.PublicToken == "" {
		WriteError(w, http.StatusBadRequest, "public_token is required")
		return
	}
	session, err := s.app.Aggregator.ExchangePublicToken(r.Context(), req.PublicToken)
	if err != nil {
		WriteError(w, upstreamStatus(err), fmt.Sprintf("Error exchanging public token: %v", err))
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

func (s *Server) handleItemRemove(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		WriteError(w, http.StatusBadRequest, "token is required")
		return
	}

	ctx := r.Context()
	if !isImportToken(req.Token) {
		if err := s.app.Aggregator.RemoveItem(ctx, req.Token); err != nil {
			WriteError(w, upstreamStatus(err), fmt.Sprintf("Error removing item: %v", err))
			return
		}
	}

	removed, err := s.app.Storage.SessionStore().RemoveToken(ctx, req.Token)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error clearing session state: %v", err))
		return
	}
	for _, accountID := range removed {
		if err := s.app.History.ClearBoundary(ctx, accountID); err != nil {
			s.logger.Warn().Err(err).Str("account_id", accountID).Msg("Failed to clear boundary estimate")
		}
	}

	s.hub.broadcast("item_removed", map[string]interface{}{"accounts": removed})
	WriteJSON(w, http.StatusOK, map[string]interface{}{"removed": true, "accounts": removed})
}

// --- Balance handlers ---

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Tokens []string `json:"tokens"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	var accounts []models.Account
	institutions := make(map[string]*models.Institution)
	fetchErrors := make(map[string]string)

	for _, token := range req.Tokens {
		if isImportToken(token) {
			continue // imports are appended below from the session store
		}
		result, err := s.app.Aggregator.GetBalances(ctx, token)
		if err != nil {
			fetchErrors[token] = err.Error()
			continue
		}
		accounts = append(accounts, result.Accounts...)
		if result.Institution != nil {
			institutions[token] = result.Institution
			ids := make([]string, len(result.Accounts))
			for i, a := range result.Accounts {
				ids[i] = a.ID
			}
			if err := s.app.Storage.SessionStore().PutInstitution(ctx, token, result.Institution, ids); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to cache institution metadata")
			}
		}
	}

	imports, err := s.app.Storage.SessionStore().ListImports(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to list imported statements")
	}
	for _, stmt := range imports {
		accounts = append(accounts, stmt.Account)
	}

	if len(accounts) == 0 && len(fetchErrors) > 0 {
		WriteError(w, http.StatusBadGateway, "All balance fetches failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts":     accounts,
		"institutions": institutions,
		"errors":       fetchErrors,
	})
}

// --- Transaction handlers ---

type transactionsRequest struct {
	windowRequest
	Tokens   []tokenSelection `json:"tokens"`
	Sequence uint64           `json:"sequence,omitempty"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req transactionsRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Tokens) == 0 {
		WriteError(w, http.StatusBadRequest, "At least one credential token is required")
		return
	}

	today := models.Today()
	window, preset, err := req.resolve(today)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	s.refresh.Begin("transactions", req.Sequence)

	result, err := s.fetchSelection(ctx, req.Tokens, window)
	if err != nil {
		WriteError(w, upstreamStatus(err), fmt.Sprintf("Transaction fetch failed: %v", err))
		return
	}

	boundaries, disabled := s.observeBoundaries(ctx, result, preset, window, today)

	stale := s.refresh.IsStale("transactions", req.Sequence)
	if !stale {
		s.hub.broadcast("transactions_refreshed", map[string]interface{}{
			"sequence": req.Sequence,
			"count":    len(result.Transactions),
			"partial":  result.Partial,
		})
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions":     result.Transactions,
		"total":            result.Total,
		"partial":          result.Partial,
		"boundaries":       boundaries,
		"disabled_presets": disabled,
		"sequence":         req.Sequence,
		"stale":            stale,
	})
}

// fetchSelection fans out upstream fetches and merges session-held imported
// transactions that fall inside the window.
func (s *Server) fetchSelection(ctx context.Context, selections []tokenSelection, window models.Window) (*interfaces.FetchResult, error) {
	var requests []interfaces.FetchRequest
	var importTokens []string
	for _, sel := range selections {
		if isImportToken(sel.Token) {
			importTokens = append(importTokens, sel.Token)
			continue
		}
		requests = append(requests, interfaces.FetchRequest{
			Token:      sel.Token,
			AccountIDs: sel.AccountIDs,
			Window:     window,
		})
	}

	combined := &interfaces.FetchResult{}
	if len(requests) > 0 {
		result, err := s.app.Fetcher.FetchAll(ctx, requests)
		if err != nil {
			return nil, err
		}
		combined = result
	}

	for _, token := range importTokens {
		stmt, err := s.app.Storage.SessionStore().GetImport(ctx, token)
		if err != nil {
			continue // removed since the client cached the token
		}
		for _, t := range stmt.Transactions {
			if window.Contains(t.Date) {
				combined.Transactions = append(combined.Transactions, t)
				combined.Total++
			}
		}
	}

	return combined, nil
}

// observeBoundaries feeds the boundary estimator uniformly after a fetch.
// Attribution is per account: when the combined query was fully returned,
// each account's slice of it was fully returned too.
func (s *Server) observeBoundaries(ctx context.Context, result *interfaces.FetchResult, preset models.RangePreset, window models.Window, today models.Date) (map[string]models.Date, map[string][]models.RangePreset) {
	boundaries := make(map[string]models.Date)
	disabled := make(map[string][]models.RangePreset)

	fullyReturned := !result.Partial && len(result.Transactions) >= result.Total

	oldest := make(map[string]models.Date)
	counts := make(map[string]int)
	for _, t := range result.Transactions {
		counts[t.AccountID]++
		if cur, ok := oldest[t.AccountID]; !ok || t.Date.Before(cur) {
			oldest[t.AccountID] = t.Date
		}
	}

	for accountID := range counts {
		if fullyReturned {
			s.app.History.Observe(ctx, interfaces.BoundaryObservation{
				AccountID:      accountID,
				Preset:         preset,
				Window:         window,
				OldestReturned: oldest[accountID],
				ReturnedCount:  counts[accountID],
				TotalAvailable: counts[accountID],
			})
		}
		if b := s.app.History.Boundary(ctx, accountID); !b.IsZero() {
			boundaries[accountID] = b
			disabled[accountID] = models.DisabledPresets(b, today)
		}
	}

	return boundaries, disabled
}

// --- Account detail handler ---

type accountDetailRequest struct {
	windowRequest
	Tokens          []string `json:"tokens"`
	AccountID       string   `json:"account_id"`
	IncludeEarliest bool     `json:"include_earliest,omitempty"`
}

func (s *Server) handleAccountDetail(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req accountDetailRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.AccountID == "" {
		WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	today := models.Today()
	window, preset, err := req.resolve(today)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	detail, err := s.resolveAccount(ctx, req.Tokens, req.AccountID, window, req.IncludeEarliest)
	if err != nil {
		WriteError(w, upstreamStatus(err), fmt.Sprintf("Account lookup failed: %v", err))
		return
	}

	s.observeDetail(ctx, detail, preset, window)

	boundary := s.app.History.Boundary(ctx, req.AccountID)
	response := map[string]interface{}{
		"account":      detail.Account,
		"transactions": detail.Transactions,
		"total":        detail.Total,
	}
	if !boundary.IsZero() {
		response["boundary"] = boundary
		response["disabled_presets"] = models.DisabledPresets(boundary, today)
	}
	if !detail.EarliestDate.IsZero() {
		response["earliest_transaction_date"] = detail.EarliestDate
	}

	WriteJSON(w, http.StatusOK, response)
}

// resolveAccount finds an account under upstream credentials or imported
// statements, returning its transaction window.
func (s *Server) resolveAccount(ctx context.Context, tokens []string, accountID string, window models.Window, includeEarliest bool) (*interfaces.AccountDetailsResult, error) {
	var upstream []string
	for _, token := range tokens {
		if isImportToken(token) {
			stmt, err := s.app.Storage.SessionStore().GetImport(ctx, token)
			if err != nil {
				continue
			}
			if stmt.Account.ID == accountID {
				return importDetail(stmt, window), nil
			}
			continue
		}
		upstream = append(upstream, token)
	}
	if len(upstream) == 0 {
		return nil, fetcher.ErrAccountNotFound
	}
	return s.app.Fetcher.AccountDetails(ctx, upstream, accountID, window, includeEarliest)
}

// importDetail filters a session-held statement to the requested window.
func importDetail(stmt *interfaces.ImportedStatement, window models.Window) *interfaces.AccountDetailsResult {
	detail := &interfaces.AccountDetailsResult{
		Account: stmt.Account,
		Token:   stmt.Token,
	}
	earliest := models.Date{}
	for _, t := range stmt.Transactions {
		if earliest.IsZero() || t.Date.Before(earliest) {
			earliest = t.Date
		}
		if window.Contains(t.Date) {
			detail.Transactions = append(detail.Transactions, t)
		}
	}
	detail.Total = len(detail.Transactions)
	detail.EarliestDate = earliest
	return detail
}

// observeDetail feeds a single-account fetch into the estimator. An
// earliest-date probe result is replayed as a maximally wide observation so
// the boundary logic stays in one place.
func (s *Server) observeDetail(ctx context.Context, detail *interfaces.AccountDetailsResult, preset models.RangePreset, window models.Window) {
	oldest := models.Date{}
	for _, t := range detail.Transactions {
		if oldest.IsZero() || t.Date.Before(oldest) {
			oldest = t.Date
		}
	}
	s.app.History.Observe(ctx, interfaces.BoundaryObservation{
		AccountID:      detail.Account.ID,
		Preset:         preset,
		Window:         window,
		OldestReturned: oldest,
		ReturnedCount:  len(detail.Transactions),
		TotalAvailable: detail.Total,
	})

	if !detail.EarliestDate.IsZero() {
		s.app.History.Observe(ctx, interfaces.BoundaryObservation{
			AccountID:      detail.Account.ID,
			Preset:         models.Range2Y,
			Window:         models.Window{Start: models.NewDate(2000, 1, 1), End: models.Today()},
			OldestReturned: detail.EarliestDate,
			ReturnedCount:  detail.Total,
			TotalAvailable: detail.Total,
		})
	}
}

// --- History handlers ---

type historyRequest struct {
	windowRequest
	Tokens    []string `json:"tokens"`
	AccountID string   `json:"account_id"`
}

func (s *Server) historySeries(ctx context.Context, tokens []string, accountID string, window models.Window, preset models.RangePreset, today models.Date) ([]models.BalanceHistoryPoint, models.Account, models.Date, error) {
	// The backward walk starts at today regardless of the display window, so
	// transactions are fetched through today to keep the running balance true.
	fetchWindow := models.Window{Start: window.Start, End: today}
	detail, err := s.resolveAccount(ctx, tokens, accountID, fetchWindow, false)
	if err != nil {
		return nil, models.Account{}, models.Date{}, err
	}

	s.observeDetail(ctx, detail, preset, fetchWindow)

	series, err := s.app.History.Reconstruct(ctx, accountID, detail.Account.CurrentBalance, detail.Transactions, window)
	if err != nil {
		return nil, models.Account{}, models.Date{}, err
	}
	return series, detail.Account, s.app.History.Boundary(ctx, accountID), nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req historyRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.AccountID == "" {
		WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	today := models.Today()
	window, preset, err := req.resolve(today)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, account, boundary, err := s.historySeries(r.Context(), req.Tokens, req.AccountID, window, preset, today)
	if err != nil {
		WriteError(w, upstreamStatus(err), fmt.Sprintf("History reconstruction failed: %v", err))
		return
	}

	response := map[string]interface{}{
		"account": account,
		"series":  series,
	}
	if !boundary.IsZero() {
		response["boundary"] = boundary
		response["disabled_presets"] = models.DisabledPresets(boundary, today)
	}
	WriteJSON(w, http.StatusOK, response)
}

// --- Spending handlers ---

type spendingRequest struct {
	windowRequest
	Tokens  []tokenSelection        `json:"tokens"`
	Bucket  spending.TimeBucket     `json:"bucket"`
	GroupBy spending.GroupDimension `json:"group_by"`
}

func (s *Server) handleSpending(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req spendingRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Tokens) == 0 {
		WriteError(w, http.StatusBadRequest, "At least one credential token is required")
		return
	}
	if req.Bucket == "" {
		req.Bucket = spending.BucketMonth
	}
	if req.GroupBy == "" {
		req.GroupBy = spending.GroupByCategory
	}

	today := models.Today()
	window, _, err := req.resolve(today)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	result, err := s.fetchSelection(ctx, req.Tokens, window)
	if err != nil {
		WriteError(w, upstreamStatus(err), fmt.Sprintf("Transaction fetch failed: %v", err))
		return
	}

	accounts := map[string]models.Account{}
	if req.GroupBy != spending.GroupByCategory {
		accounts = s.accountIndex(ctx, req.Tokens)
	}

	table, err := spending.Aggregate(result.Transactions, accounts, req.Bucket, req.GroupBy)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"table":   table,
		"partial": result.Partial,
	})
}

// summaryWindow is the fixed period for the pie-style overview: the current
// calendar month to date.
func summaryWindow(today models.Date) models.Window {
	return models.Window{Start: today.StartOfMonth(), End: today}
}

func (s *Server) handleSpendingSummary(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Tokens []tokenSelection `json:"tokens"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Tokens) == 0 {
		WriteError(w, http.StatusBadRequest, "At least one credential token is required")
		return
	}

	ctx := r.Context()
	window := summaryWindow(models.Today())
	result, err := s.fetchSelection(ctx, req.Tokens, window)
	if err != nil {
		WriteError(w, upstreamStatus(err), fmt.Sprintf("Transaction fetch failed: %v", err))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"window": window,
		"slices": spending.Summary(result.Transactions),
	})
}

// accountIndex builds an accountID -> account map for display-name lookups.
func (s *Server) accountIndex(ctx context.Context, selections []tokenSelection) map[string]models.Account {
	index := make(map[string]models.Account)
	for _, sel := range selections {
		if isImportToken(sel.Token) {
			if stmt, err := s.app.Storage.SessionStore().GetImport(ctx, sel.Token); err == nil {
				index[stmt.Account.ID] = stmt.Account
			}
			continue
		}
		balances, err := s.app.Aggregator.GetBalances(ctx, sel.Token)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Balance lookup failed while building account index")
			continue
		}
		for _, a := range balances.Accounts {
			index[a.ID] = a
		}
	}
	return index
}
