// Package storage wires concrete stores behind the StorageManager facade
package storage

import (
	"fmt"

	"github.com/bobmcallan/finch/internal/common"
	"github.com/bobmcallan/finch/internal/interfaces"
	"github.com/bobmcallan/finch/internal/storage/sessiondb"
)

// Manager implements interfaces.StorageManager.
type Manager struct {
	session *sessiondb.Store
	logger  *common.Logger
}

// NewStorageManager opens all storage areas from config.
func NewStorageManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	session, err := sessiondb.NewStore(logger, config.Storage.Session.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return &Manager{
		session: session,
		logger:  logger,
	}, nil
}

// SessionStore returns the session-scoped store.
func (m *Manager) SessionStore() interfaces.SessionStore {
	return m.session
}

// Close closes all stores.
func (m *Manager) Close() error {
	if err := m.session.Close(); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to close session store")
		return err
	}
	return nil
}
