package history

import (
	"context"

	"github.com/bobmcallan/finch/internal/models"
)

// maxWalkDays caps the backward walk at ten years regardless of the
// requested window, protecting against degenerate inputs.
const maxWalkDays = 3650

// Reconstruct derives a day-by-day balance series for an account by walking
// backward from today and undoing each day's net transaction amount.
//
// The series covers [max(window.Start, boundary), min(window.End, today)]
// with exactly one point per calendar day. Today's point equals the live
// current balance; each earlier point equals the next day's point plus that
// day's net amount (positive = money out, so adding it back restores the
// prior day's end-of-day balance). Zero transactions yield a flat line.
func (s *Service) Reconstruct(ctx context.Context, accountID string, currentBalance float64, txns []models.Transaction, window models.Window) ([]models.BalanceHistoryPoint, error) {
	today := models.Today()
	boundary := s.Boundary(ctx, accountID)

	if cached, ok := s.cache.get(accountID, currentBalance, txns, window, boundary); ok {
		return cached, nil
	}

	series := reconstruct(currentBalance, txns, window, boundary, today)
	s.cache.put(accountID, currentBalance, txns, window, boundary, series)
	return series, nil
}

// reconstruct is the pure walk, separated from caching for testability.
func reconstruct(currentBalance float64, txns []models.Transaction, window models.Window, boundary, today models.Date) []models.BalanceHistoryPoint {
	net := models.NetAmountByDay(txns)

	end := window.End
	if end.After(today) {
		end = today
	}
	start := window.Start
	if !boundary.IsZero() && boundary.After(start) {
		start = boundary
	}
	if start.After(end) {
		return nil
	}

	// Walk backward from today; points before the display window are still
	// walked through so the running balance stays correct when the window
	// ends in the past.
	var reversed []models.BalanceHistoryPoint
	balance := currentBalance
	day := today
	for steps := 0; steps < maxWalkDays; steps++ {
		if day.Before(start) {
			break
		}
		if !day.After(end) {
			reversed = append(reversed, models.BalanceHistoryPoint{Date: day, Balance: balance})
		}
		// Undo this day's activity to obtain the prior day's closing balance
		balance += net[day]
		day = day.AddDays(-1)
	}

	// Emitted newest-first; flip to chronological order
	series := make([]models.BalanceHistoryPoint, len(reversed))
	for i, p := range reversed {
		series[len(reversed)-1-i] = p
	}
	return series
}
