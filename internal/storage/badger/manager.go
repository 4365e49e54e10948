package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/newsquant/internal/common"
	"github.com/ternarybob/newsquant/internal/interfaces"
)

// Manager owns the Badger connection backing the price snapshot cache
type Manager struct {
	db        *BadgerDB
	snapshots interfaces.PriceSnapshotStorage
	logger    arbor.ILogger
}

// NewManager opens the price cache database
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:        db,
		snapshots: NewPriceSnapshotStorage(db, logger),
		logger:    logger,
	}

	logger.Info().Str("path", config.Path).Msg("Badger price cache initialized")

	return manager, nil
}

// PriceSnapshotStorage returns the snapshot storage interface
func (m *Manager) PriceSnapshotStorage() interfaces.PriceSnapshotStorage {
	return m.snapshots
}

// DB returns the underlying database
func (m *Manager) DB() *BadgerDB {
	return m.db
}

// Close closes the database
func (m *Manager) Close() error {
	return m.db.Close()
}
