package history

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/bobmcallan/finch/internal/models"
)

// seriesCacheSize bounds the derived-state cache. Interactive charting and
// exports hit the same (inputs) tuple repeatedly; anything beyond a few
// recent windows per account is waste.
const seriesCacheSize = 64

// seriesCache memoizes reconstruction output keyed by a fingerprint of all
// inputs. Entries are evicted oldest-first once the cache is full.
type seriesCache struct {
	mu      sync.Mutex
	entries map[uint64][]models.BalanceHistoryPoint
	order   []uint64
}

func newSeriesCache() *seriesCache {
	return &seriesCache{
		entries: make(map[uint64][]models.BalanceHistoryPoint),
	}
}

// fingerprint hashes every input that affects the output. The transaction
// set is folded in by id/date/amount so a refreshed set invalidates the key.
func fingerprint(accountID string, balance float64, txns []models.Transaction, window models.Window, boundary models.Date) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%.2f|%s|%s|%s|", accountID, balance, window.Start, window.End, boundary)
	for _, t := range txns {
		fmt.Fprintf(h, "%s:%s:%.2f;", t.ID, t.Date, t.Amount)
	}
	return h.Sum64()
}

func (c *seriesCache) get(accountID string, balance float64, txns []models.Transaction, window models.Window, boundary models.Date) ([]models.BalanceHistoryPoint, bool) {
	key := fingerprint(accountID, balance, txns, window, boundary)
	c.mu.Lock()
	defer c.mu.Unlock()
	series, ok := c.entries[key]
	return series, ok
}

func (c *seriesCache) put(accountID string, balance float64, txns []models.Transaction, window models.Window, boundary models.Date, series []models.BalanceHistoryPoint) {
	key := fingerprint(accountID, balance, txns, window, boundary)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		return
	}
	if len(c.order) >= seriesCacheSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = series
	c.order = append(c.order, key)
}
