package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/finch/internal/models"
)

var ofxNow = time.Date(2024, time.June, 30, 12, 0, 0, 0, time.UTC)

func ofxWindow() models.Window {
	return models.Window{
		Start: models.NewDate(2024, time.June, 1),
		End:   models.NewDate(2024, time.June, 30),
	}
}

func TestOFXBankStatement(t *testing.T) {
	account := models.Account{
		ID:             "acct-0011",
		Type:           models.AccountTypeDepository,
		Subtype:        "checking",
		CurrentBalance: 1234.56,
		CurrencyCode:   "USD",
	}
	txns := []models.Transaction{
		{ID: "t1", Date: models.NewDate(2024, time.June, 3), Name: "COFFEE SHOP", Amount: 4.50},
		{ID: "t2", Date: models.NewDate(2024, time.June, 5), Name: "PAYCHECK", Amount: -2500.00},
	}

	out, err := OFX(account, txns, ofxWindow(), ofxNow)
	require.NoError(t, err)
	doc := string(out)

	assert.True(t, strings.HasPrefix(doc, "OFXHEADER:100\n"))
	assert.Contains(t, doc, "VERSION:102")
	assert.Contains(t, doc, "NEWFILEUID:NONE\n\n<OFX>")

	assert.Contains(t, doc, "<BANKMSGSRSV1>")
	assert.NotContains(t, doc, "<CREDITCARDMSGSRSV1>")
	assert.Contains(t, doc, "<BANKID>FINCH\n")
	assert.Contains(t, doc, "<ACCTID>acct-0011\n")
	assert.Contains(t, doc, "<ACCTTYPE>CHECKING\n")

	assert.Contains(t, doc, "<DTSTART>20240601\n")
	assert.Contains(t, doc, "<DTEND>20240630\n")

	// Expense posts as a DEBIT with the display sign, income as a CREDIT
	assert.Contains(t, doc, "<TRNTYPE>DEBIT\n<DTPOSTED>20240603\n<TRNAMT>-4.50\n<FITID>t1\n<NAME>COFFEE SHOP\n")
	assert.Contains(t, doc, "<TRNTYPE>CREDIT\n<DTPOSTED>20240605\n<TRNAMT>2500.00\n<FITID>t2\n<NAME>PAYCHECK\n")

	// Ledger balance stays in the live convention, no inversion
	assert.Contains(t, doc, "<BALAMT>1234.56\n<DTASOF>20240630120000\n")

	// Leaf tags are unterminated SGML
	assert.NotContains(t, doc, "</CODE>")
	assert.NotContains(t, doc, "</TRNAMT>")
}

func TestOFXCreditCardStatement(t *testing.T) {
	account := models.Account{
		ID:             "card-42",
		Type:           models.AccountTypeCredit,
		CurrentBalance: 432.10,
	}

	out, err := OFX(account, nil, ofxWindow(), ofxNow)
	require.NoError(t, err)
	doc := string(out)

	assert.Contains(t, doc, "<CREDITCARDMSGSRSV1>")
	assert.Contains(t, doc, "<CCACCTFROM>\n<ACCTID>card-42\n</CCACCTFROM>")
	assert.NotContains(t, doc, "<BANKACCTFROM>")
	assert.NotContains(t, doc, "<ACCTTYPE>")
	// Missing currency falls back to USD
	assert.Contains(t, doc, "<CURDEF>USD\n")
}

func TestOFXSavingsAccountType(t *testing.T) {
	account := models.Account{ID: "sav-1", Type: models.AccountTypeDepository, Subtype: "savings"}

	out, err := OFX(account, nil, ofxWindow(), ofxNow)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<ACCTTYPE>SAVINGS\n")
}

func TestOFXTruncatesLongIdentifiers(t *testing.T) {
	// ACCTID is capped at 22 characters, FITID at 255. Two transaction IDs
	// sharing a 22-character prefix must stay distinct FITIDs.
	account := models.Account{ID: strings.Repeat("a", 40), Type: models.AccountTypeDepository}
	txns := []models.Transaction{
		{ID: strings.Repeat("b", 22) + "-one", Date: models.NewDate(2024, time.June, 3), Name: "X", Amount: 1},
		{ID: strings.Repeat("b", 22) + "-two", Date: models.NewDate(2024, time.June, 4), Name: "Y", Amount: 2},
		{ID: strings.Repeat("c", 300), Date: models.NewDate(2024, time.June, 5), Name: "Z", Amount: 3},
	}

	out, err := OFX(account, txns, ofxWindow(), ofxNow)
	require.NoError(t, err)
	doc := string(out)

	assert.Contains(t, doc, "<ACCTID>"+strings.Repeat("a", 22)+"\n")
	assert.NotContains(t, doc, strings.Repeat("a", 23))

	assert.Contains(t, doc, "<FITID>"+strings.Repeat("b", 22)+"-one\n")
	assert.Contains(t, doc, "<FITID>"+strings.Repeat("b", 22)+"-two\n")
	assert.Contains(t, doc, "<FITID>"+strings.Repeat("c", 255)+"\n")
	assert.NotContains(t, doc, strings.Repeat("c", 256))
}

func TestOFXEscapesMarkupCharacters(t *testing.T) {
	account := models.Account{ID: "acct-1", Type: models.AccountTypeDepository}
	txns := []models.Transaction{
		{ID: "t1", Date: models.NewDate(2024, time.June, 3), Name: "AT&T <STORE>", Amount: 60},
	}

	out, err := OFX(account, txns, ofxWindow(), ofxNow)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<NAME>AT&amp;T &lt;STORE&gt;\n")
}
