// Package history owns the history boundary estimate and the backward
// balance-reconstruction walk.
package history

import (
	"context"
	"sync"

	"github.com/bobmcallan/finch/internal/common"
	"github.com/bobmcallan/finch/internal/interfaces"
	"github.com/bobmcallan/finch/internal/models"
)

// Service implements HistoryService
type Service struct {
	store  interfaces.SessionStore
	logger *common.Logger

	mu         sync.Mutex
	boundaries map[string]models.Date // accountID -> estimate, mirrors the store
	cache      *seriesCache
}

// NewService creates a new history service. store may be nil, in which case
// estimates live only in memory for the process lifetime.
func NewService(store interfaces.SessionStore, logger *common.Logger) *Service {
	return &Service{
		store:      store,
		logger:     logger,
		boundaries: make(map[string]models.Date),
		cache:      newSeriesCache(),
	}
}

// Observe updates the boundary estimate for an account from one completed
// fetch. Only large windows (six months or more) can promote an estimate:
// a short window cannot distinguish "no history before this point" from
// "no activity before this point". Within a large window the signal is the
// upstream reporting the window fully returned while the oldest transaction
// sits strictly more than one day after the window start.
//
// Estimates are monotonic: they only tighten (move later), never roll back.
func (s *Service) Observe(ctx context.Context, obs interfaces.BoundaryObservation) (models.Date, bool) {
	current := s.Boundary(ctx, obs.AccountID)

	if !obs.Preset.IsLarge() {
		return current, false
	}
	if obs.OldestReturned.IsZero() || obs.ReturnedCount == 0 {
		return current, false
	}
	if obs.ReturnedCount < obs.TotalAvailable {
		return current, false // window not fully returned, gap proves nothing
	}
	if !obs.OldestReturned.After(obs.Window.Start.AddDays(1)) {
		return current, false // oldest sits at the window edge, history may continue
	}

	candidate := obs.OldestReturned
	if !current.IsZero() && !candidate.After(current) {
		return current, false
	}

	// Re-check under the lock: a concurrent observation may have tightened
	// the estimate between the load above and this write. The store write
	// stays inside the critical section so persisted estimates land in the
	// same order as the in-memory ones.
	s.mu.Lock()
	if cur, ok := s.boundaries[obs.AccountID]; ok && !candidate.After(cur) {
		s.mu.Unlock()
		return cur, false
	}
	s.boundaries[obs.AccountID] = candidate
	if s.store != nil {
		if err := s.store.PutBoundary(ctx, obs.AccountID, candidate); err != nil {
			s.logger.Warn().Err(err).Str("account_id", obs.AccountID).Msg("Failed to persist boundary estimate")
		}
	}
	s.mu.Unlock()

	s.logger.Info().
		Str("account_id", obs.AccountID).
		Str("boundary", candidate.String()).
		Msg("History boundary tightened")

	return candidate, true
}

// Boundary returns the current estimate for an account, or the zero date if
// no large-window fetch has produced a signal yet.
func (s *Service) Boundary(ctx context.Context, accountID string) models.Date {
	s.mu.Lock()
	if d, ok := s.boundaries[accountID]; ok {
		s.mu.Unlock()
		return d
	}
	s.mu.Unlock()

	if s.store == nil {
		return models.Date{}
	}
	d, err := s.store.GetBoundary(ctx, accountID)
	if err != nil {
		return models.Date{}
	}
	if !d.IsZero() {
		s.mu.Lock()
		s.boundaries[accountID] = d
		s.mu.Unlock()
	}
	return d
}

// ClearBoundary drops the estimate for an account, used when its institution
// is unlinked.
func (s *Service) ClearBoundary(ctx context.Context, accountID string) error {
	s.mu.Lock()
	delete(s.boundaries, accountID)
	s.mu.Unlock()

	if s.store != nil {
		return s.store.DeleteBoundary(ctx, accountID)
	}
	return nil
}
