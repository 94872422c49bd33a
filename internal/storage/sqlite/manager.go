package sqlite

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
)

// Manager implements the StorageManager interface
type Manager struct {
	db         *SQLiteDB
	contractor interfaces.ContractorStorage
	history    interfaces.TenderHistoryStorage
	logger     arbor.ILogger
}

// NewManager creates a new SQLite storage manager
func NewManager(logger arbor.ILogger, config *common.SQLiteConfig) (interfaces.StorageManager, error) {
	db, err := NewSQLiteDB(logger, config)
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

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.DB()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
