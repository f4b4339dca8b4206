package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/finch/internal/models"
)

func TestFilename(t *testing.T) {
	w := models.Window{
		Start: models.NewDate(2024, time.January, 1),
		End:   models.NewDate(2024, time.March, 31),
	}
	assert.Equal(t, "transactions_2024-01-01_2024-03-31.csv", Filename(w, "csv"))
	assert.Equal(t, "transactions_2024-01-01_2024-03-31.ofx", Filename(w, "ofx"))
}

func TestCSVInvertsSignsForDisplay(t *testing.T) {
	txns := []models.Transaction{
		{ID: "t1", Date: models.NewDate(2024, time.June, 3), Name: "COFFEE SHOP", Amount: 20.00, CurrencyCode: "USD",
			Category: &models.Category{Primary: "FOOD_AND_DRINK", Detailed: "FOOD_AND_DRINK_COFFEE"}},
		{ID: "t2", Date: models.NewDate(2024, time.June, 5), Name: "PAYCHECK", Amount: -15.00, CurrencyCode: "USD"},
	}

	out, err := CSV(txns)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"date", "name", "category", "amount", "currency"}, records[0])
	// Internal positive (expense) shows negative, and vice versa
	assert.Equal(t, []string{"2024-06-03", "COFFEE SHOP", "Coffee", "-20.00", "USD"}, records[1])
	assert.Equal(t, []string{"2024-06-05", "PAYCHECK", "Uncategorized", "15.00", "USD"}, records[2])
}

func TestCSVQuotesEmbeddedDelimiters(t *testing.T) {
	txns := []models.Transaction{
		{ID: "t1", Date: models.NewDate(2024, time.June, 3), Name: `BOB'S "DINER", MAIN ST`, Amount: 12.00},
	}

	out, err := CSV(txns)
	require.NoError(t, err)

	// RFC4180 round trip preserves the raw name
	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, `BOB'S "DINER", MAIN ST`, records[1][1])
}

func TestCSVEmptySetIsHeaderOnly(t *testing.T) {
	out, err := CSV(nil)
	require.NoError(t, err)
	assert.Equal(t, "date,name,category,amount,currency\n", string(out))
}
