// Package spending groups transactions into chart-ready buckets
package spending

import (
	"strings"

	"github.com/bobmcallan/finch/internal/models"
)

// categoryOverride maps an upstream detailed-category fragment to a
// human-friendly label. The table is ordered; first match wins.
type categoryOverride struct {
	Match string
	Label string
}

// displayOverrides rewrites the noisiest upstream detailed categories.
// Anything not matched falls through to the title-cased primary category.
var displayOverrides = []categoryOverride{
	{"FOOD_AND_DRINK_COFFEE", "Coffee"},
	{"FOOD_AND_DRINK_FAST_FOOD", "Fast Food"},
	{"FOOD_AND_DRINK_RESTAURANT", "Restaurants"},
	{"FOOD_AND_DRINK_GROCERIES", "Groceries"},
	{"GENERAL_MERCHANDISE_ONLINE_MARKETPLACES", "Online Shopping"},
	{"GENERAL_MERCHANDISE_CLOTHING", "Clothing"},
	{"TRANSPORTATION_GAS", "Gas"},
	{"TRANSPORTATION_PUBLIC_TRANSIT", "Public Transit"},
	{"TRANSPORTATION_TAXIS_AND_RIDE_SHARES", "Rideshare"},
	{"RENT_AND_UTILITIES_RENT", "Rent"},
	{"RENT_AND_UTILITIES_INTERNET_AND_CABLE", "Internet & Cable"},
	{"ENTERTAINMENT_TV_AND_MOVIES", "Streaming"},
	{"LOAN_PAYMENTS_CREDIT_CARD_PAYMENT", "Card Payments"},
	{"TRAVEL_FLIGHTS", "Flights"},
	{"TRAVEL_LODGING", "Lodging"},
}

// DisplayCategory derives the human-friendly category label for a
// transaction: detailed-level override first, then the title-cased primary
// category, then the first legacy category string, then "Uncategorized".
func DisplayCategory(t models.Transaction) string {
	if t.Category != nil {
		for _, o := range displayOverrides {
			if strings.Contains(t.Category.Detailed, o.Match) {
				return o.Label
			}
		}
		if t.Category.Primary != "" {
			return titleCase(t.Category.Primary)
		}
	}
	if len(t.LegacyCategories) > 0 && t.LegacyCategories[0] != "" {
		return t.LegacyCategories[0]
	}
	return "Uncategorized"
}

// titleCase turns an upstream "FOOD_AND_DRINK" identifier into "Food And Drink".
func titleCase(s string) string {
	words := strings.Split(strings.ToLower(s), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
