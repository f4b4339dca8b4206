package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/finch/internal/app"
	"github.com/bobmcallan/finch/internal/common"
	"github.com/bobmcallan/finch/internal/interfaces"
	"github.com/bobmcallan/finch/internal/models"
	"github.com/bobmcallan/finch/internal/services/fetcher"
	"github.com/bobmcallan/finch/internal/services/history"
)

// --- Test fakes ---

type fakeAggregator struct {
	accounts     map[string][]models.Account
	institutions map[string]*models.Institution
	transactions map[string][]models.Transaction
	failTokens   map[string]bool
	removed      []string
}

func newFakeAggregator() *fakeAggregator {
	return &fakeAggregator{
		accounts:     make(map[string][]models.Account),
		institutions: make(map[string]*models.Institution),
		transactions: make(map[string][]models.Transaction),
		failTokens:   make(map[string]bool),
	}
}

func (f *fakeAggregator) CreateLinkToken(ctx context.Context) (string, error) {
	return "link-sandbox-abc", nil
}

func (f *fakeAggregator) ExchangePublicToken(ctx context.Context, publicToken string) (*models.LinkSession, error) {
	return &models.LinkSession{AccessToken: "access-" + publicToken, ItemID: "item-1"}, nil
}

func (f *fakeAggregator) GetBalances(ctx context.Context, token string) (*interfaces.BalancesResult, error) {
	if f.failTokens[token] {
		return nil, errors.New("institution unavailable")
	}
	return &interfaces.BalancesResult{
		Accounts:    f.accounts[token],
		Institution: f.institutions[token],
	}, nil
}

func (f *fakeAggregator) GetTransactions(ctx context.Context, token string, accountIDs []string, window models.Window, offset, count int) (*interfaces.TransactionsPage, error) {
	if f.failTokens[token] {
		return nil, errors.New("institution unavailable")
	}
	all := f.transactions[token]
	if offset >= len(all) {
		return &interfaces.TransactionsPage{Total: len(all)}, nil
	}
	end := offset + count
	if end > len(all) {
		end = len(all)
	}
	return &interfaces.TransactionsPage{Transactions: all[offset:end], Total: len(all)}, nil
}

func (f *fakeAggregator) RemoveItem(ctx context.Context, token string) error {
	f.removed = append(f.removed, token)
	return nil
}

// memStore is an in-memory SessionStore for handler tests.
type memStore struct {
	mu           sync.Mutex
	institutions map[string]*models.Institution
	accountIDs   map[string][]string
	boundaries   map[string]models.Date
	imports      map[string]*interfaces.ImportedStatement
}

func newMemStore() *memStore {
	return &memStore{
		institutions: make(map[string]*models.Institution),
		accountIDs:   make(map[string][]string),
		boundaries:   make(map[string]models.Date),
		imports:      make(map[string]*interfaces.ImportedStatement),
	}
}

func (m *memStore) PutInstitution(_ context.Context, token string, inst *models.Institution, accountIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.institutions[token] = inst
	m.accountIDs[token] = accountIDs
	return nil
}

func (m *memStore) GetInstitution(_ context.Context, token string) (*models.Institution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.institutions[token]
	if !ok {
		return nil, errors.New("not found")
	}
	return inst, nil
}

func (m *memStore) PutBoundary(_ context.Context, accountID string, boundary models.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boundaries[accountID] = boundary
	return nil
}

func (m *memStore) GetBoundary(_ context.Context, accountID string) (models.Date, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.boundaries[accountID]
	if !ok {
		return models.Date{}, errors.New("not found")
	}
	return d, nil
}

func (m *memStore) DeleteBoundary(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.boundaries, accountID)
	return nil
}

func (m *memStore) PutImport(_ context.Context, stmt *interfaces.ImportedStatement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports[stmt.Token] = stmt
	return nil
}

func (m *memStore) GetImport(_ context.Context, token string) (*interfaces.ImportedStatement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stmt, ok := m.imports[token]
	if !ok {
		return nil, errors.New("not found")
	}
	return stmt, nil
}

func (m *memStore) ListImports(_ context.Context) ([]*interfaces.ImportedStatement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*interfaces.ImportedStatement
	for _, stmt := range m.imports {
		out = append(out, stmt)
	}
	return out, nil
}

func (m *memStore) RemoveToken(_ context.Context, token string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []string
	for _, id := range m.accountIDs[token] {
		delete(m.boundaries, id)
		removed = append(removed, id)
	}
	delete(m.institutions, token)
	delete(m.accountIDs, token)
	if stmt, ok := m.imports[token]; ok {
		delete(m.boundaries, stmt.Account.ID)
		removed = append(removed, stmt.Account.ID)
		delete(m.imports, token)
	}
	return removed, nil
}

func (m *memStore) Close() error { return nil }

type memManager struct{ store *memStore }

func (m *memManager) SessionStore() interfaces.SessionStore { return m.store }
func (m *memManager) Close() error                          { return nil }

// --- Test harness ---

type testEnv struct {
	server     *Server
	aggregator *fakeAggregator
	store      *memStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := common.NewSilentLogger()
	aggregator := newFakeAggregator()
	store := newMemStore()

	a := &app.App{
		Config:      common.NewDefaultConfig(),
		Logger:      logger,
		Storage:     &memManager{store: store},
		Aggregator:  aggregator,
		Fetcher:     fetcher.NewService(aggregator, logger, 100, 10000),
		History:     history.NewService(store, logger),
		StartupTime: time.Now(),
	}

	return &testEnv{
		server:     NewServer(a),
		aggregator: aggregator,
		store:      store,
	}
}

func (e *testEnv) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (e *testEnv) seedChecking(token string, txns []models.Transaction) models.Account {
	account := models.Account{
		ID:              "acct-" + token,
		Name:            "Everyday",
		InstitutionName: "First Bank",
		Type:            models.AccountTypeDepository,
		Subtype:         "checking",
		CurrentBalance:  1000.00,
		CurrencyCode:    "USD",
	}
	for i := range txns {
		txns[i].AccountID = account.ID
	}
	e.aggregator.accounts[token] = []models.Account{account}
	e.aggregator.institutions[token] = &models.Institution{ID: "ins_1", Name: "First Bank"}
	e.aggregator.transactions[token] = txns
	return account
}

func recentTxns(today models.Date) []models.Transaction {
	return []models.Transaction{
		{ID: "t1", Date: today, Name: "COFFEE SHOP", Amount: 4.50},
		{ID: "t2", Date: today.AddDays(-3), Name: "GROCERIES", Amount: 82.10},
		{ID: "t3", Date: today.AddDays(-10), Name: "PAYCHECK", Amount: -2500.00},
	}
}

// --- System endpoints ---

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestHealthRejectsPost(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "version")
}

// --- Linking ---

func TestLinkToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/link/token", map[string]interface{}{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "link-sandbox-abc", decodeBody(t, rec)["link_token"])
}

func TestLinkExchangeRequiresPublicToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/link/exchange", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLinkExchange(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/link/exchange", map[string]string{"public_token": "pub-1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "access-pub-1", decodeBody(t, rec)["access_token"])
}

func TestItemRemoveCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.store.PutInstitution(ctx, "tok-1", &models.Institution{ID: "ins_1"}, []string{"acct-a"})
	env.store.PutBoundary(ctx, "acct-a", models.NewDate(2023, 3, 15))

	rec := env.post(t, "/api/items/remove", map[string]string{"token": "tok-1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"tok-1"}, env.aggregator.removed)

	_, err := env.store.GetBoundary(context.Background(), "acct-a")
	assert.Error(t, err)
}

func TestItemRemoveImportSkipsUpstream(t *testing.T) {
	env := newTestEnv(t)

	env.store.PutImport(context.Background(), &interfaces.ImportedStatement{
		Token:   "import:abc",
		Account: models.Account{ID: "imp-1"},
	})

	rec := env.post(t, "/api/items/remove", map[string]string{"token": "import:abc"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.aggregator.removed)

	_, err := env.store.GetImport(context.Background(), "import:abc")
	assert.Error(t, err)
}

// --- Balances ---

func TestBalances(t *testing.T) {
	env := newTestEnv(t)
	env.seedChecking("tok-1", nil)
	env.aggregator.failTokens["tok-2"] = true

	rec := env.post(t, "/api/balances", map[string]interface{}{"tokens": []string{"tok-1", "tok-2"}})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	accounts := body["accounts"].([]interface{})
	assert.Len(t, accounts, 1)
	errs := body["errors"].(map[string]interface{})
	assert.Contains(t, errs, "tok-2")

	// A successful fetch caches institution metadata for unlink cascades
	inst, err := env.store.GetInstitution(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "First Bank", inst.Name)
}

func TestBalancesAllFailed(t *testing.T) {
	env := newTestEnv(t)
	env.aggregator.failTokens["tok-1"] = true

	rec := env.post(t, "/api/balances", map[string]interface{}{"tokens": []string{"tok-1"}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestBalancesIncludesImports(t *testing.T) {
	env := newTestEnv(t)
	env.store.PutImport(context.Background(), &interfaces.ImportedStatement{
		Token:   "import:abc",
		Account: models.Account{ID: "imp-1", Name: "June Statement"},
	})

	rec := env.post(t, "/api/balances", map[string]interface{}{"tokens": []string{"import:abc"}})
	require.Equal(t, http.StatusOK, rec.Code)

	accounts := decodeBody(t, rec)["accounts"].([]interface{})
	require.Len(t, accounts, 1)
	assert.Equal(t, "June Statement", accounts[0].(map[string]interface{})["name"])
}

// --- Transactions ---

func TestTransactionsRequiresTokens(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/transactions", map[string]interface{}{"preset": "1M"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransactionsRejectsBadWindow(t *testing.T) {
	env := newTestEnv(t)
	today := models.Today()

	// Inverted custom range is rejected, never corrected
	rec := env.post(t, "/api/transactions", map[string]interface{}{
		"tokens":     []map[string]string{{"token": "tok-1"}},
		"start_date": today.String(),
		"end_date":   today.AddDays(-5).String(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Future window likewise
	rec = env.post(t, "/api/transactions", map[string]interface{}{
		"tokens":     []map[string]string{{"token": "tok-1"}},
		"start_date": today.String(),
		"end_date":   today.AddDays(5).String(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransactionsPreset(t *testing.T) {
	env := newTestEnv(t)
	today := models.Today()
	env.seedChecking("tok-1", recentTxns(today))

	rec := env.post(t, "/api/transactions", map[string]interface{}{
		"preset": "1M",
		"tokens": []map[string]string{{"token": "tok-1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Len(t, body["transactions"].([]interface{}), 3)
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, false, body["partial"])
	assert.Equal(t, false, body["stale"])
}

func TestTransactionsLargeWindowSetsBoundary(t *testing.T) {
	env := newTestEnv(t)
	today := models.Today()
	account := env.seedChecking("tok-1", recentTxns(today))

	rec := env.post(t, "/api/transactions", map[string]interface{}{
		"preset": "2Y",
		"tokens": []map[string]string{{"token": "tok-1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	boundaries := body["boundaries"].(map[string]interface{})
	// Oldest transaction is 10 days old inside a two-year window: the gap
	// before it is the account opening
	assert.Equal(t, today.AddDays(-10).String(), boundaries[account.ID])

	disabled := body["disabled_presets"].(map[string]interface{})[account.ID].([]interface{})
	assert.Contains(t, disabled, "2Y")
	assert.Contains(t, disabled, "1Y")
}

func TestTransactionsStaleSequence(t *testing.T) {
	env := newTestEnv(t)
	today := models.Today()
	env.seedChecking("tok-1", recentTxns(today))

	payload := func(seq int) map[string]interface{} {
		return map[string]interface{}{
			"preset":   "1M",
			"tokens":   []map[string]string{{"token": "tok-1"}},
			"sequence": seq,
		}
	}

	rec := env.post(t, "/api/transactions", payload(2))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["stale"])

	// An older in-flight request finishing late is flagged for discard
	rec = env.post(t, "/api/transactions", payload(1))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["stale"])
}

func TestTransactionsIncludesImportsInWindow(t *testing.T) {
	env := newTestEnv(t)
	today := models.Today()

	env.store.PutImport(context.Background(), &interfaces.ImportedStatement{
		Token:   "import:abc",
		Account: models.Account{ID: "imp-1"},
		Transactions: []models.Transaction{
			{ID: "in", AccountID: "imp-1", Date: today.AddDays(-5), Amount: 10},
			{ID: "out", AccountID: "imp-1", Date: today.AddDays(-400), Amount: 20},
		},
	})

	rec := env.post(t, "/api/transactions", map[string]interface{}{
		"preset": "1M",
		"tokens": []map[string]string{{"token": "import:abc"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	txns := body["transactions"].([]interface{})
	require.Len(t, txns, 1)
	assert.Equal(t, "in", txns[0].(map[string]interface{})["transaction_id"])
}

// --- Account detail ---

func TestAccountDetailUnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	env.seedChecking("tok-1", nil)

	rec := env.post(t, "/api/accounts/detail", map[string]interface{}{
		"preset":     "1M",
		"tokens":     []string{"tok-1"},
		"account_id": "acct-nope",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountDetail(t *testing.T) {
	env := newTestEnv(t)
	today := models.Today()
	account := env.seedChecking("tok-1", recentTxns(today))

	rec := env.post(t, "/api/accounts/detail", map[string]interface{}{
		"preset":     "1M",
		"tokens":     []string{"tok-1"},
		"account_id": account.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	got := body["account"].(map[string]interface{})
	assert.Equal(t, "Everyday", got["name"])
	assert.Len(t, body["transactions"].([]interface{}), 3)
}

func TestAccountDetailImport(t *testing.T) {
	env := newTestEnv(t)
	today := models.Today()

	env.store.PutImport(context.Background(), &interfaces.ImportedStatement{
		Token:   "import:abc",
		Account: models.Account{ID: "imp-1", Name: "June Statement"},
		Transactions: []models.Transaction{
			{ID: "t1", AccountID: "imp-1", Date: today.AddDays(-2), Amount: 4.50},
		},
	})

	rec := env.post(t, "/api/accounts/detail", map[string]interface{}{
		"preset":     "1M",
		"tokens":     []string{"import:abc"},
		"account_id": "imp-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, today.AddDays(-2).String(), body["earliest_transaction_date"])
}

// --- History ---

func TestHistory(t *testing.T) {
	env := newTestEnv(t)
	today := models.Today()
	account := env.seedChecking("tok-1", []models.Transaction{
		{ID: "t1", Date: today, Name: "COFFEE SHOP", Amount: 50.00},
	})

	rec := env.post(t, "/api/history", map[string]interface{}{
		"tokens":     []string{"tok-1"},
		"account_id": account.ID,
		"start_date": today.AddDays(-1).String(),
		"end_date":   today.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	series := body["series"].([]interface{})
	require.Len(t, series, 2)

	yesterday := series[0].(map[string]interface{})
	assert.Equal(t, today.AddDays(-1).String(), yesterday["date"])
	assert.Equal(t, 1050.00, yesterday["balance"])
	assert.Equal(t, 1000.00, series[1].(map[string]interface{})["balance"])
}

func TestHistoryRequiresAccountID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/history", map[string]interface{}{
		"preset": "1M",
		"tokens": []string{"tok-1"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryChartPNG(t *testing.T) {
	env := newTestEnv(t)
	today := models.Today()
	account := env.seedChecking("tok-1", recentTxns(today))

	rec := env.post(t, "/api/history/chart.png", map[string]interface{}{
		"preset":     "1M",
		"tokens":     []string{"tok-1"},
		"account_id": account.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	// PNG magic bytes
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

// --- Spending ---

func TestSpendingDefaults(t *testing.T) {
	env := newTestEnv(t)
	today := models.Today()
	env.seedChecking("tok-1", recentTxns(today))

	rec := env.post(t, "/api/spending", map[string]interface{}{
		"preset": "1M",
		"tokens": []map[string]string{{"token": "tok-1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	table := decodeBody(t, rec)["table"].(map[string]interface{})
	assert.NotEmpty(t, table["groups"])
}

func TestSpendingRejectsUnknownBucket(t *testing.T) {
	env := newTestEnv(t)
	env.seedChecking("tok-1", nil)

	rec := env.post(t, "/api/spending", map[string]interface{}{
		"preset": "1M",
		"tokens": []map[string]string{{"token": "tok-1"}},
		"bucket": "fortnight",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSpendingSummary(t *testing.T) {
	env := newTestEnv(t)
	today := models.Today()
	env.seedChecking("tok-1", []models.Transaction{
		{ID: "t1", Date: today, Name: "COFFEE SHOP", Amount: 4.50,
			Category: &models.Category{Primary: "FOOD_AND_DRINK", Detailed: "FOOD_AND_DRINK_COFFEE"}},
	})

	rec := env.post(t, "/api/spending/summary", map[string]interface{}{
		"tokens": []map[string]string{{"token": "tok-1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	slices := body["slices"].([]interface{})
	require.Len(t, slices, 1)
	assert.Equal(t, "Coffee", slices[0].(map[string]interface{})["category"])
}

// --- Exports ---

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t)
	today := models.Today()
	env.seedChecking("tok-1", []models.Transaction{
		{ID: "t1", Date: today, Name: "COFFEE SHOP", Amount: 20.00},
	})

	rec := env.post(t, "/api/export/csv", map[string]interface{}{
		"preset": "1M",
		"tokens": []map[string]string{{"token": "tok-1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=")
	assert.Contains(t, rec.Body.String(), "COFFEE SHOP")
	assert.Contains(t, rec.Body.String(), "-20.00")
}

func TestExportOFX(t *testing.T) {
	env := newTestEnv(t)
	today := models.Today()
	account := env.seedChecking("tok-1", []models.Transaction{
		{ID: "t1", Date: today, Name: "COFFEE SHOP", Amount: 20.00},
	})

	rec := env.post(t, "/api/export/ofx", map[string]interface{}{
		"preset":     "1M",
		"tokens":     []map[string]string{{"token": "tok-1"}},
		"account_id": account.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ofx", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "OFXHEADER:100")
	assert.Contains(t, rec.Body.String(), "<BANKMSGSRSV1>")
}

func TestExportOFXRequiresAccountID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/export/ofx", map[string]interface{}{
		"preset": "1M",
		"tokens": []map[string]string{{"token": "tok-1"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Statement import ---

func multipartStatement(t *testing.T, name, csv string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", name))
	fw, err := w.CreateFormFile("file", "statement.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestImportStatement(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartStatement(t, "June Statement", strings.Join([]string{
		"date,name,amount",
		"2024-06-01,PAYCHECK,2500.00",
		"2024-06-03,COFFEE,-4.50",
	}, "\n"))

	req := httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	token := resp["token"].(string)
	assert.True(t, strings.HasPrefix(token, "import:"))
	assert.Equal(t, float64(2), resp["transactions"])

	stmt, err := env.store.GetImport(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "June Statement", stmt.Account.Name)
}

func TestImportStatementBadRow(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartStatement(t, "", strings.Join([]string{
		"date,name,amount",
		"2024-06-01,GOOD,-1.00",
		"garbage,BAD,-2.00",
	}, "\n"))

	req := httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	// No partial import
	imports, err := env.store.ListImports(context.Background())
	require.NoError(t, err)
	assert.Empty(t, imports)
}
