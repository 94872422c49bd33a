package storage

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/storage/badger"
	"github.com/ternarybob/tenderintel/internal/storage/postgres"
	"github.com/ternarybob/tenderintel/internal/storage/sqlite"
)

// NewStorageManager creates the relational storage manager selected by config
func NewStorageManager(ctx context.Context, logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	switch config.Storage.Type {
	case "", "sqlite":
		return sqlite.NewManager(logger, &config.Storage.SQLite)
	case "postgres":
		return postgres.NewManager(ctx, logger, &config.Storage.Postgres)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (expected 'sqlite' or 'postgres')", config.Storage.Type)
	}
}

// NewSessionStorage opens the cookie session store
func NewSessionStorage(logger arbor.ILogger, config *common.Config) (interfaces.SessionStorage, error) {
	return badger.NewSessionStorage(logger, &config.Storage.Badger)
}
