package sessiondb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/finch/internal/common"
	"github.com/bobmcallan/finch/internal/interfaces"
	"github.com/bobmcallan/finch/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInstitutionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inst := &models.Institution{ID: "ins_1", Name: "First Bank"}
	require.NoError(t, store.PutInstitution(ctx, "tok-1", inst, []string{"acct-a", "acct-b"}))

	got, err := store.GetInstitution(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "First Bank", got.Name)

	_, err = store.GetInstitution(ctx, "tok-unknown")
	assert.Error(t, err)
}

func TestBoundaryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	boundary := models.NewDate(2023, time.March, 15)
	require.NoError(t, store.PutBoundary(ctx, "acct-a", boundary))

	got, err := store.GetBoundary(ctx, "acct-a")
	require.NoError(t, err)
	assert.Equal(t, boundary, got)

	require.NoError(t, store.DeleteBoundary(ctx, "acct-a"))
	_, err = store.GetBoundary(ctx, "acct-a")
	assert.Error(t, err)

	// Deleting a missing boundary is not an error
	assert.NoError(t, store.DeleteBoundary(ctx, "acct-never"))
}

func TestImportRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stmt := &interfaces.ImportedStatement{
		Token: "import:abc",
		Account: models.Account{
			ID:             "imp-1",
			Name:           "June Statement",
			Type:           models.AccountTypeImported,
			CurrentBalance: 1095.50,
		},
		Transactions: []models.Transaction{
			{ID: "t1", AccountID: "imp-1", Date: models.NewDate(2024, time.June, 3), Name: "COFFEE", Amount: 4.50},
		},
	}
	require.NoError(t, store.PutImport(ctx, stmt))

	got, err := store.GetImport(ctx, "import:abc")
	require.NoError(t, err)
	assert.Equal(t, "June Statement", got.Account.Name)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, "2024-06-03", got.Transactions[0].Date.String())
	assert.Equal(t, 4.50, got.Transactions[0].Amount)
}

func TestListImports(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	list, err := store.ListImports(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	for _, token := range []string{"import:one", "import:two"} {
		require.NoError(t, store.PutImport(ctx, &interfaces.ImportedStatement{
			Token:   token,
			Account: models.Account{ID: "acct-" + token},
		}))
	}
	// Other kinds must not leak into the listing
	require.NoError(t, store.PutBoundary(ctx, "acct-a", models.NewDate(2023, 1, 1)))

	list, err = store.ListImports(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRemoveTokenCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inst := &models.Institution{ID: "ins_1", Name: "First Bank"}
	require.NoError(t, store.PutInstitution(ctx, "tok-1", inst, []string{"acct-a", "acct-b"}))
	require.NoError(t, store.PutBoundary(ctx, "acct-a", models.NewDate(2023, 3, 15)))
	require.NoError(t, store.PutBoundary(ctx, "acct-b", models.NewDate(2023, 5, 1)))
	// An unrelated token's state must survive
	require.NoError(t, store.PutBoundary(ctx, "acct-z", models.NewDate(2022, 1, 1)))

	removed, err := store.RemoveToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acct-a", "acct-b"}, removed)

	_, err = store.GetInstitution(ctx, "tok-1")
	assert.Error(t, err)
	_, err = store.GetBoundary(ctx, "acct-a")
	assert.Error(t, err)
	_, err = store.GetBoundary(ctx, "acct-b")
	assert.Error(t, err)

	got, err := store.GetBoundary(ctx, "acct-z")
	require.NoError(t, err)
	assert.Equal(t, "2022-01-01", got.String())
}

func TestRemoveTokenImport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutImport(ctx, &interfaces.ImportedStatement{
		Token:   "import:abc",
		Account: models.Account{ID: "imp-1"},
	}))

	removed, err := store.RemoveToken(ctx, "import:abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"imp-1"}, removed)

	_, err = store.GetImport(ctx, "import:abc")
	assert.Error(t, err)
}

func TestRemoveUnknownToken(t *testing.T) {
	store := newTestStore(t)

	removed, err := store.RemoveToken(context.Background(), "tok-nope")
	require.NoError(t, err)
	assert.Empty(t, removed)
}
