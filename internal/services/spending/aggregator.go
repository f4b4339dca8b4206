package spending

import (
	"fmt"
	"sort"

	"github.com/bobmcallan/finch/internal/models"
)

// TimeBucket selects how transaction dates map to table rows.
type TimeBucket string

const (
	BucketDay   TimeBucket = "day"
	BucketWeek  TimeBucket = "week" // calendar week, Monday start
	BucketMonth TimeBucket = "month"
)

// GroupDimension selects how transactions map to table columns.
type GroupDimension string

const (
	GroupByCategory    GroupDimension = "category"
	GroupByAccount     GroupDimension = "account"
	GroupByInstitution GroupDimension = "institution"
)

// summaryTopN is how many category slices the pie summary keeps before
// folding the remainder into "Other".
const summaryTopN = 5

// bucketKey truncates a transaction date to its bucket start.
func bucketKey(d models.Date, bucket TimeBucket) models.Date {
	switch bucket {
	case BucketWeek:
		return d.StartOfWeek()
	case BucketMonth:
		return d.StartOfMonth()
	default:
		return d
	}
}

// Aggregate produces a period × group table of summed amounts. Every row
// carries a value for every group key observed anywhere in the set
// (zero-filled where absent) so stacked visualizations render consistently.
// accounts supplies display names for the account and institution dimensions,
// keyed by account ID.
func Aggregate(txns []models.Transaction, accounts map[string]models.Account, bucket TimeBucket, groupBy GroupDimension) (*models.SpendingTable, error) {
	switch bucket {
	case BucketDay, BucketWeek, BucketMonth:
	default:
		return nil, fmt.Errorf("unknown time bucket %q", bucket)
	}
	switch groupBy {
	case GroupByCategory, GroupByAccount, GroupByInstitution:
	default:
		return nil, fmt.Errorf("unknown grouping dimension %q", groupBy)
	}

	sums := make(map[models.Date]map[string]float64)
	groupSet := make(map[string]bool)

	for _, t := range txns {
		key := bucketKey(t.Date, bucket)
		group := groupKey(t, accounts, groupBy)
		if sums[key] == nil {
			sums[key] = make(map[string]float64)
		}
		sums[key][group] += t.Amount
		groupSet[group] = true
	}

	groups := make([]string, 0, len(groupSet))
	for g := range groupSet {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	buckets := make([]models.Date, 0, len(sums))
	for b := range sums {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })

	rows := make([]models.SpendingRow, 0, len(buckets))
	for _, b := range buckets {
		values := make(map[string]float64, len(groups))
		for _, g := range groups {
			values[g] = sums[b][g] // zero-filled where absent
		}
		rows = append(rows, models.SpendingRow{Bucket: b, Values: values})
	}

	return &models.SpendingTable{Groups: groups, Rows: rows}, nil
}

func groupKey(t models.Transaction, accounts map[string]models.Account, groupBy GroupDimension) string {
	switch groupBy {
	case GroupByAccount:
		if a, ok := accounts[t.AccountID]; ok && a.Name != "" {
			return a.Name
		}
		return t.AccountID
	case GroupByInstitution:
		if a, ok := accounts[t.AccountID]; ok && a.InstitutionName != "" {
			return a.InstitutionName
		}
		return "Unknown"
	default:
		return DisplayCategory(t)
	}
}

// Summary buckets transactions by display category, keeps the top 5 groups
// by magnitude, and folds the remainder into "Other". Used for the pie-style
// overview.
func Summary(txns []models.Transaction) []models.CategorySlice {
	totals := make(map[string]float64)
	for _, t := range txns {
		totals[DisplayCategory(t)] += t.Amount
	}

	slices := make([]models.CategorySlice, 0, len(totals))
	for cat, amt := range totals {
		slices = append(slices, models.CategorySlice{Category: cat, Amount: amt})
	}
	sort.Slice(slices, func(i, j int) bool {
		ai, aj := abs(slices[i].Amount), abs(slices[j].Amount)
		if ai != aj {
			return ai > aj
		}
		return slices[i].Category < slices[j].Category
	})

	if len(slices) <= summaryTopN {
		return slices
	}

	top := slices[:summaryTopN:summaryTopN]
	other := 0.0
	for _, s := range slices[summaryTopN:] {
		other += s.Amount
	}
	return append(top, models.CategorySlice{Category: "Other", Amount: other})
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
