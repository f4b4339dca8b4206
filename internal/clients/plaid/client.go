// Package plaid provides a client for the Plaid account-aggregation API
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/finch/internal/common"
	"github.com/bobmcallan/finch/internal/interfaces"
	"github.com/bobmcallan/finch/internal/models"
)

const (
	DefaultBaseURL   = "https://sandbox.plaid.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client implements the AggregatorClient interface
type Client struct {
	baseURL    string
	clientID   string
	secret     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL (sandbox/development/production)
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client (used in tests)
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Plaid client
func NewClient(clientID, secret string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		clientID: clientID,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an upstream API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plaid API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// post performs a rate-limited JSON POST request. Credentials are injected
// into the body, which is how this API authenticates.
func (c *Client) post(ctx context.Context, path string, body map[string]interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if body == nil {
		body = map[string]interface{}{}
	}
	body["client_id"] = c.clientID
	body["secret"] = c.secret

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Str("endpoint", path).Msg("Plaid API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			Endpoint:   path,
		}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// CreateLinkToken initializes an account-linking session.
func (c *Client) CreateLinkToken(ctx context.Context) (string, error) {
	var result struct {
		LinkToken string `json:"link_token"`
	}
	body := map[string]interface{}{
		"user":          map[string]string{"client_user_id": "finch"},
		"client_name":   "Finch",
		"products":      []string{"transactions"},
		"country_codes": []string{"US"},
		"language":      "en",
	}
	if err := c.post(ctx, "/link/token/create", body, &result); err != nil {
		return "", err
	}
	return result.LinkToken, nil
}

// ExchangePublicToken finalizes linking and yields a durable credential.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*models.LinkSession, error) {
	var result models.LinkSession
	body := map[string]interface{}{"public_token": publicToken}
	if err := c.post(ctx, "/item/public_token/exchange", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// accountPayload is the upstream account shape.
type accountPayload struct {
	AccountID    string `json:"account_id"`
	Name         string `json:"name"`
	OfficialName string `json:"official_name"`
	Type         string `json:"type"`
	Subtype      string `json:"subtype"`
	Balances     struct {
		Current     float64 `json:"current"`
		Available   float64 `json:"available"`
		ISOCurrency string  `json:"iso_currency_code"`
	} `json:"balances"`
}

func (p accountPayload) toModel() models.Account {
	return models.Account{
		ID:               p.AccountID,
		Name:             p.Name,
		OfficialName:     p.OfficialName,
		Type:             models.AccountType(p.Type),
		Subtype:          p.Subtype,
		CurrentBalance:   p.Balances.Current,
		AvailableBalance: p.Balances.Available,
		CurrencyCode:     p.Balances.ISOCurrency,
	}
}

// GetBalances retrieves current balances plus institution metadata for one
// credential. Institution name and logo come from a follow-up lookup keyed by
// the item's institution ID.
func (c *Client) GetBalances(ctx context.Context, accessToken string) (*interfaces.BalancesResult, error) {
	var balances struct {
		Accounts []accountPayload `json:"accounts"`
		Item     struct {
			InstitutionID string `json:"institution_id"`
		} `json:"item"`
	}
	if err := c.post(ctx, "/accounts/balance/get", map[string]interface{}{"access_token": accessToken}, &balances); err != nil {
		return nil, err
	}

	result := &interfaces.BalancesResult{}
	for _, a := range balances.Accounts {
		acct := a.toModel()
		acct.AccessToken = accessToken
		result.Accounts = append(result.Accounts, acct)
	}

	if balances.Item.InstitutionID != "" {
		inst, err := c.getInstitution(ctx, balances.Item.InstitutionID)
		if err != nil {
			// Balances remain useful without institution metadata
			c.logger.Warn().Err(err).Str("institution_id", balances.Item.InstitutionID).Msg("Institution lookup failed")
		} else {
			result.Institution = inst
			for i := range result.Accounts {
				result.Accounts[i].InstitutionID = inst.ID
				result.Accounts[i].InstitutionName = inst.Name
			}
		}
	}

	return result, nil
}

func (c *Client) getInstitution(ctx context.Context, institutionID string) (*models.Institution, error) {
	var result struct {
		Institution struct {
			InstitutionID string `json:"institution_id"`
			Name          string `json:"name"`
			Logo          string `json:"logo"`
		} `json:"institution"`
	}
	body := map[string]interface{}{
		"institution_id": institutionID,
		"country_codes":  []string{"US"},
		"options":        map[string]bool{"include_optional_metadata": true},
	}
	if err := c.post(ctx, "/institutions/get_by_id", body, &result); err != nil {
		return nil, err
	}
	return &models.Institution{
		ID:   result.Institution.InstitutionID,
		Name: result.Institution.Name,
		Logo: result.Institution.Logo,
	}, nil
}

// GetTransactions retrieves one page of transactions for a credential.
func (c *Client) GetTransactions(ctx context.Context, accessToken string, accountIDs []string, window models.Window, offset, count int) (*interfaces.TransactionsPage, error) {
	var result struct {
		Transactions      []models.Transaction `json:"transactions"`
		TotalTransactions int                  `json:"total_transactions"`
	}
	options := map[string]interface{}{
		"count":  count,
		"offset": offset,
	}
	if len(accountIDs) > 0 {
		options["account_ids"] = accountIDs
	}
	body := map[string]interface{}{
		"access_token": accessToken,
		"start_date":   window.Start.String(),
		"end_date":     window.End.String(),
		"options":      options,
	}
	if err := c.post(ctx, "/transactions/get", body, &result); err != nil {
		return nil, err
	}
	return &interfaces.TransactionsPage{
		Transactions: result.Transactions,
		Total:        result.TotalTransactions,
	}, nil
}

// RemoveItem revokes a linked institution.
func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	return c.post(ctx, "/item/remove", map[string]interface{}{"access_token": accessToken}, nil)
}
