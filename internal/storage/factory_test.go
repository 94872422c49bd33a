package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
)

func TestNewStorageManager_SQLite(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Storage.SQLite.Path = filepath.Join(t.TempDir(), "tenderintel.db")

	manager, err := NewStorageManager(context.Background(), arbor.NewLogger(), config)
	require.NoError(t, err)
	defer manager.Close()

	assert.NotNil(t, manager.ContractorStorage())
	assert.NotNil(t, manager.TenderHistoryStorage())
}

func TestNewStorageManager_Unsupported(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Storage.Type = "mysql"

	_, err := NewStorageManager(context.Background(), arbor.NewLogger(), config)
	assert.Error(t, err)
}
