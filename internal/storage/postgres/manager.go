package postgres

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
)

// Manager implements the StorageManager interface
type Manager struct {
	db         *DB
	contractor interfaces.ContractorStorage
	history    interfaces.TenderHistoryStorage
	logger     arbor.ILogger
}

// NewManager creates a new PostgreSQL storage manager
func NewManager(ctx context.Context, logger arbor.ILogger, config *common.PostgresConfig) (interfaces.StorageManager, error) {
	db, err := NewDB(ctx, logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:         db,
		contractor: NewContractorStorage(db, logger),
		history:    NewTenderHistoryStorage(db, logger),
		logger:     logger,
	}, nil
}

// ContractorStorage returns the Contractor storage interface
func (m *Manager) ContractorStorage() interfaces.ContractorStorage {
	return m.contractor
}

// TenderHistoryStorage returns the TenderHistory storage interface
func (m *Manager) TenderHistoryStorage() interfaces.TenderHistoryStorage {
	return m.history
}

// Close closes the pool
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
