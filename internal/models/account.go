// Package models defines the domain types shared across Finch services
package models

// AccountType classifies an account as reported by the aggregation API.
type AccountType string

const (
	AccountTypeDepository AccountType = "depository"
	AccountTypeCredit     AccountType = "credit"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeLoan       AccountType = "loan"
	AccountTypeOther      AccountType = "other"

	// AccountTypeImported marks pseudo-accounts created from statement imports.
	AccountTypeImported AccountType = "imported"
)

// Account is a bank account under a linked institution.
type Account struct {
	ID               string      `json:"account_id"`
	Name             string      `json:"name"`
	OfficialName     string      `json:"official_name,omitempty"`
	InstitutionID    string      `json:"institution_id,omitempty"`
	InstitutionName  string      `json:"institution_name,omitempty"`
	Type             AccountType `json:"type"`
	Subtype          string      `json:"subtype,omitempty"`
	CurrentBalance   float64     `json:"current_balance"`
	AvailableBalance float64     `json:"available_balance"`
	CurrencyCode     string      `json:"iso_currency_code,omitempty"`

	// AccessToken is the owning credential. Never serialized back to clients.
	AccessToken string `json:"-"`
}

// Institution is the metadata cached per credential token.
type Institution struct {
	ID   string `json:"institution_id"`
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"` // base64 PNG as returned upstream
}

// LinkSession is the result of exchanging a public token.
type LinkSession struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}
