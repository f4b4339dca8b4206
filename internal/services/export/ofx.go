package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/bobmcallan/finch/internal/models"
)

// Field length limits from OFX 1.0.2. FITID allows far more room than
// ACCTID; truncating transaction IDs to the account limit could collide
// distinct FITIDs and break importer dedup.
const (
	ofxAcctIDMax = 22
	ofxFitIDMax  = 255
)

// ofxHeader is the fixed OFX 1.0.2 SGML preamble. Consumers of this vintage
// reject anything that deviates from it.
const ofxHeader = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

`

// OFX renders an OFX 1.0.2 SGML statement for one account. Leaf tags are
// deliberately unterminated, matching the SGML convention legacy
// personal-finance import tools expect. The bank vs credit-card response
// section is chosen by account type; the ledger balance carries the live
// current balance un-inverted.
func OFX(account models.Account, txns []models.Transaction, window models.Window, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(ofxHeader)

	stamp := now.UTC().Format("20060102150405")
	currency := account.CurrencyCode
	if currency == "" {
		currency = "USD"
	}

	buf.WriteString("<OFX>\n")
	writeSignOn(&buf, stamp)

	if account.Type == models.AccountTypeCredit {
		writeCreditStatement(&buf, account, txns, window, stamp, currency)
	} else {
		writeBankStatement(&buf, account, txns, window, stamp, currency)
	}

	buf.WriteString("</OFX>\n")
	return buf.Bytes(), nil
}

func writeSignOn(buf *bytes.Buffer, stamp string) {
	buf.WriteString("<SIGNONMSGSRSV1>\n")
	buf.WriteString("<SONRS>\n")
	buf.WriteString("<STATUS>\n")
	buf.WriteString("<CODE>0\n")
	buf.WriteString("<SEVERITY>INFO\n")
	buf.WriteString("</STATUS>\n")
	fmt.Fprintf(buf, "<DTSERVER>%s\n", stamp)
	buf.WriteString("<LANGUAGE>ENG\n")
	buf.WriteString("</SONRS>\n")
	buf.WriteString("</SIGNONMSGSRSV1>\n")
}

func writeBankStatement(buf *bytes.Buffer, account models.Account, txns []models.Transaction, window models.Window, stamp, currency string) {
	buf.WriteString("<BANKMSGSRSV1>\n")
	buf.WriteString("<STMTTRNRS>\n")
	buf.WriteString("<TRNUID>1\n")
	writeStatus(buf)
	buf.WriteString("<STMTRS>\n")
	fmt.Fprintf(buf, "<CURDEF>%s\n", currency)
	buf.WriteString("<BANKACCTFROM>\n")
	buf.WriteString("<BANKID>FINCH\n")
	fmt.Fprintf(buf, "<ACCTID>%s\n", truncateID(account.ID, ofxAcctIDMax))
	fmt.Fprintf(buf, "<ACCTTYPE>%s\n", bankAcctType(account))
	buf.WriteString("</BANKACCTFROM>\n")
	writeTranList(buf, txns, window)
	writeLedgerBal(buf, account, stamp)
	buf.WriteString("</STMTRS>\n")
	buf.WriteString("</STMTTRNRS>\n")
	buf.WriteString("</BANKMSGSRSV1>\n")
}

func writeCreditStatement(buf *bytes.Buffer, account models.Account, txns []models.Transaction, window models.Window, stamp, currency string) {
	buf.WriteString("<CREDITCARDMSGSRSV1>\n")
	buf.WriteString("<CCSTMTTRNRS>\n")
	buf.WriteString("<TRNUID>1\n")
	writeStatus(buf)
	buf.WriteString("<CCSTMTRS>\n")
	fmt.Fprintf(buf, "<CURDEF>%s\n", currency)
	buf.WriteString("<CCACCTFROM>\n")
	fmt.Fprintf(buf, "<ACCTID>%s\n", truncateID(account.ID, ofxAcctIDMax))
	buf.WriteString("</CCACCTFROM>\n")
	writeTranList(buf, txns, window)
	writeLedgerBal(buf, account, stamp)
	buf.WriteString("</CCSTMTRS>\n")
	buf.WriteString("</CCSTMTTRNRS>\n")
	buf.WriteString("</CREDITCARDMSGSRSV1>\n")
}

func writeStatus(buf *bytes.Buffer) {
	buf.WriteString("<STATUS>\n")
	buf.WriteString("<CODE>0\n")
	buf.WriteString("<SEVERITY>INFO\n")
	buf.WriteString("</STATUS>\n")
}

func writeTranList(buf *bytes.Buffer, txns []models.Transaction, window models.Window) {
	buf.WriteString("<BANKTRANLIST>\n")
	fmt.Fprintf(buf, "<DTSTART>%s\n", ofxDate(window.Start))
	fmt.Fprintf(buf, "<DTEND>%s\n", ofxDate(window.End))
	for _, t := range txns {
		amount := models.DisplayAmount(t.Amount)
		buf.WriteString("<STMTTRN>\n")
		fmt.Fprintf(buf, "<TRNTYPE>%s\n", trnType(amount))
		fmt.Fprintf(buf, "<DTPOSTED>%s\n", ofxDate(t.Date))
		fmt.Fprintf(buf, "<TRNAMT>%.2f\n", amount)
		fmt.Fprintf(buf, "<FITID>%s\n", truncateID(t.ID, ofxFitIDMax))
		fmt.Fprintf(buf, "<NAME>%s\n", sgmlEscape(t.Name))
		buf.WriteString("</STMTTRN>\n")
	}
	buf.WriteString("</BANKTRANLIST>\n")
}

func writeLedgerBal(buf *bytes.Buffer, account models.Account, stamp string) {
	buf.WriteString("<LEDGERBAL>\n")
	fmt.Fprintf(buf, "<BALAMT>%.2f\n", account.CurrentBalance)
	fmt.Fprintf(buf, "<DTASOF>%s\n", stamp)
	buf.WriteString("</LEDGERBAL>\n")
}

func trnType(displayAmount float64) string {
	if displayAmount < 0 {
		return "DEBIT"
	}
	return "CREDIT"
}

func bankAcctType(account models.Account) string {
	if account.Subtype == "savings" {
		return "SAVINGS"
	}
	return "CHECKING"
}

func ofxDate(d models.Date) string {
	return d.Time().Format("20060102")
}

// truncateID fits an identifier into a legacy OFX field-length constraint.
func truncateID(id string, max int) string {
	if len(id) > max {
		return id[:max]
	}
	return id
}

// sgmlEscape protects the few characters SGML parsers treat as markup.
func sgmlEscape(s string) string {
	var out bytes.Buffer
	for _, r := range s {
		switch r {
		case '&':
			out.WriteString("&amp;")
		case '<':
			out.WriteString("&lt;")
		case '>':
			out.WriteString("&gt;")
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}
