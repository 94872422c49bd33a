package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

// setupTestDB connects to TENDERINTEL_TEST_PG_DSN and empties the tables
func setupTestDB(t *testing.T) (*DB, func()) {
	dsn := os.Getenv("TENDERINTEL_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TENDERINTEL_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, arbor.NewLogger(), &common.PostgresConfig{DSN: dsn, MaxConns: 2})
	require.NoError(t, err)

	_, err = db.pool.Exec(ctx, `TRUNCATE tender_history, tenders, contractors RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return db, func() { db.Close() }
}

func TestContractorStorage_UpsertGreatest(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewContractorStorage(db, arbor.NewLogger())
	ctx := context.Background()

	first, err := storage.UpsertContractor(ctx, &models.Contractor{
		Title:           "DELTA İNŞAAT",
		ContractorStats: models.ContractorStats{Participated: 12, ActiveCities: []string{"Ankara"}},
	})
	require.NoError(t, err)
	assert.True(t, first.IsNew)

	second, err := storage.UpsertContractor(ctx, &models.Contractor{
		Title:           "DELTA İNŞAAT",
		ContractorStats: models.ContractorStats{Participated: 4, Completed: 2},
	})
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.ID, second.ID)

	c, err := storage.GetContractor(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, c.Participated)
	assert.Equal(t, 2, c.Completed)
	assert.Equal(t, []string{"Ankara"}, c.ActiveCities)
}

func TestContractorStorage_ProvenanceAndTracking(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewContractorStorage(db, arbor.NewLogger())
	ctx := context.Background()

	res, err := storage.UpsertContractor(ctx, &models.Contractor{Title: "EPSILON"})
	require.NoError(t, err)

	entry := models.NewProvenanceEntry(models.SourceListScan, time.Now())
	require.NoError(t, storage.AppendProvenance(ctx, res.ID, entry))
	require.NoError(t, storage.AppendProvenance(ctx, res.ID, entry))
	assert.ErrorIs(t, storage.AppendProvenance(ctx, res.ID+100, entry), interfaces.ErrNotFound)

	require.NoError(t, storage.SetTracking(ctx, res.ID, true))

	tracked, err := storage.ListTracked(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tracked, 1)
	assert.Equal(t, []models.ProvenanceEntry{entry}, tracked[0].Provenance)
	assert.True(t, tracked[0].Bookmarked)
}

func TestTenderHistoryStorage_LinkedAndUnlinked(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	contractors := NewContractorStorage(db, arbor.NewLogger())
	storage := NewTenderHistoryStorage(db, arbor.NewLogger())
	ctx := context.Background()

	res, err := contractors.UpsertContractor(ctx, &models.Contractor{Title: "IOTA"})
	require.NoError(t, err)

	tenderID, err := storage.RegisterTender(ctx, &models.Tender{ExternalID: "T-1"})
	require.NoError(t, err)

	city := "İzmir"
	require.NoError(t, storage.UpsertLinked(ctx, &models.TenderHistoryRecord{
		ContractorID: res.ID, TenderID: &tenderID, Role: models.RoleAwarded,
		Status: models.StatusOngoing, Title: "Yemek", City: &city,
	}))
	require.NoError(t, storage.UpsertLinked(ctx, &models.TenderHistoryRecord{
		ContractorID: res.ID, TenderID: &tenderID, Role: models.RoleAwarded,
		Status: models.StatusCompleted, Title: "Yemek",
	}))

	archival := "2024/1"
	id, err := storage.InsertUnlinked(ctx, &models.TenderHistoryRecord{
		ContractorID: res.ID, Role: models.RoleAwarded, Status: models.StatusUnknown,
		Title: "Temizlik", ArchivalNumber: &archival,
	})
	require.NoError(t, err)

	found, ok, err := storage.FindUnlinkedByArchival(ctx, res.ID, archival, models.RoleAwarded)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, found)

	records, err := storage.ListHistory(ctx, res.ID, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		if r.TenderID != nil {
			assert.Equal(t, models.StatusCompleted, r.Status)
			require.NotNil(t, r.City)
			assert.Equal(t, city, *r.City)
		}
	}
}
