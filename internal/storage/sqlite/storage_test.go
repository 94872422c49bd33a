package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

// setupTestDB creates a test database and returns cleanup function
func setupTestDB(t *testing.T) (*SQLiteDB, func()) {
	config := &common.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		BusyTimeoutMS: 5000,
	}

	db, err := NewSQLiteDB(arbor.NewLogger(), config)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}

	return db, cleanup
}

func ptr[T any](v T) *T { return &v }

func date(s string) *time.Time {
	t, _ := time.Parse(dateLayout, s)
	return &t
}

func TestMigrations_Idempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	// Running again must not re-apply anything
	require.NoError(t, db.migrate())

	var count int
	require.NoError(t, db.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestContractorStorage_UpsertIsNew(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewContractorStorage(db, arbor.NewLogger())
	ctx := context.Background()

	first, err := storage.UpsertContractor(ctx, &models.Contractor{Title: "ABC YEMEK A.Ş."})
	require.NoError(t, err)
	assert.True(t, first.IsNew)

	second, err := storage.UpsertContractor(ctx, &models.Contractor{Title: "ABC YEMEK A.Ş."})
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.ID, second.ID)
}

func TestContractorStorage_UpsertKeepsGreatestCounters(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewContractorStorage(db, arbor.NewLogger())
	ctx := context.Background()

	res, err := storage.UpsertContractor(ctx, &models.Contractor{
		Title:     "DELTA İNŞAAT",
		ShortName: "DELTA",
		ContractorStats: models.ContractorStats{
			Participated:       12,
			Completed:          3,
			TotalContractValue: 1500000,
			ActiveCities:       []string{"Ankara"},
			LastContractDate:   date("2024-05-01"),
		},
	})
	require.NoError(t, err)

	// A smaller observation never lowers counters, unknown fields keep stored values
	_, err = storage.UpsertContractor(ctx, &models.Contractor{
		Title: "DELTA İNŞAAT",
		ContractorStats: models.ContractorStats{
			Participated:       5,
			Completed:          4,
			TotalContractValue: 200,
			LastContractDate:   date("2023-01-01"),
		},
	})
	require.NoError(t, err)

	c, err := storage.GetContractor(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, c.Participated)
	assert.Equal(t, 4, c.Completed)
	assert.Equal(t, 1500000.0, c.TotalContractValue)
	assert.Equal(t, "DELTA", c.ShortName)
	assert.Equal(t, []string{"Ankara"}, c.ActiveCities)
	require.NotNil(t, c.LastContractDate)
	assert.Equal(t, "2024-05-01", c.LastContractDate.Format(dateLayout))
	assert.True(t, c.Active)
}

func TestContractorStorage_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewContractorStorage(db, arbor.NewLogger())
	ctx := context.Background()

	_, err := storage.GetContractor(ctx, 99)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	_, err = storage.GetContractorByTitle(ctx, "NOBODY")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	assert.ErrorIs(t, storage.SetTracking(ctx, 99, true), interfaces.ErrNotFound)
}

func TestContractorStorage_ListTrackedOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewContractorStorage(db, arbor.NewLogger())
	ctx := context.Background()

	ids := map[string]int64{}
	for _, title := range []string{"OLD", "NEVER", "RECENT", "UNTRACKED"} {
		res, err := storage.UpsertContractor(ctx, &models.Contractor{Title: title})
		require.NoError(t, err)
		ids[title] = res.ID
	}
	for _, title := range []string{"OLD", "NEVER", "RECENT"} {
		require.NoError(t, storage.SetTracking(ctx, ids[title], true))
	}

	now := time.Now()
	require.NoError(t, storage.UpdateStats(ctx, ids["OLD"], models.ContractorStats{}, now.Add(-48*time.Hour)))
	require.NoError(t, storage.UpdateStats(ctx, ids["RECENT"], models.ContractorStats{}, now))

	tracked, err := storage.ListTracked(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tracked, 3)
	assert.Equal(t, "NEVER", tracked[0].Title)
	assert.Equal(t, "OLD", tracked[1].Title)
	assert.Equal(t, "RECENT", tracked[2].Title)
	assert.True(t, tracked[0].Bookmarked)

	limited, err := storage.ListTracked(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestContractorStorage_SetTrackingOffKeepsBookmark(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewContractorStorage(db, arbor.NewLogger())
	ctx := context.Background()

	res, err := storage.UpsertContractor(ctx, &models.Contractor{Title: "GAMMA"})
	require.NoError(t, err)

	require.NoError(t, storage.SetTracking(ctx, res.ID, true))
	require.NoError(t, storage.SetTracking(ctx, res.ID, false))

	c, err := storage.GetContractor(ctx, res.ID)
	require.NoError(t, err)
	assert.False(t, c.IntelTracking)
	assert.True(t, c.Bookmarked)
}

func TestContractorStorage_AppendProvenanceDeduplicates(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewContractorStorage(db, arbor.NewLogger())
	ctx := context.Background()

	res, err := storage.UpsertContractor(ctx, &models.Contractor{Title: "EPSILON"})
	require.NoError(t, err)

	day := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	entry := models.NewProvenanceEntry(models.SourceTenderHistory, day)
	require.NoError(t, storage.AppendProvenance(ctx, res.ID, entry))
	require.NoError(t, storage.AppendProvenance(ctx, res.ID, entry))
	require.NoError(t, storage.AppendProvenance(ctx, res.ID, models.NewProvenanceEntry(models.SourceListScan, day)))

	c, err := storage.GetContractor(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.ProvenanceEntry{
		{Source: "tender_history", Date: "2026-03-04"},
		{Source: "list_scan", Date: "2026-03-04"},
	}, c.Provenance)
}

func TestContractorStorage_SaveAnalysisAndNews(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewContractorStorage(db, arbor.NewLogger())
	ctx := context.Background()

	res, err := storage.UpsertContractor(ctx, &models.Contractor{Title: "ZETA"})
	require.NoError(t, err)

	at := time.Unix(1760000000, 0).UTC()
	require.NoError(t, storage.SaveAnalysis(ctx, res.ID, []byte(`{"summary":{}}`), at))
	require.NoError(t, storage.SaveNewsSummary(ctx, res.ID, "no adverse news", at))

	c, err := storage.GetContractor(ctx, res.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":{}}`, string(c.Analysis))
	require.NotNil(t, c.AnalysisHarvestedAt)
	assert.Equal(t, at, *c.AnalysisHarvestedAt)
	assert.Equal(t, "no adverse news", c.NewsSummary)
}

func newContractor(t *testing.T, db *SQLiteDB, title string) int64 {
	t.Helper()
	res, err := NewContractorStorage(db, arbor.NewLogger()).UpsertContractor(context.Background(), &models.Contractor{Title: title})
	require.NoError(t, err)
	return res.ID
}

func TestTenderHistoryStorage_LinkedUpsertMerges(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewTenderHistoryStorage(db, arbor.NewLogger())
	ctx := context.Background()
	contractorID := newContractor(t, db, "ETA")

	missing, err := storage.ResolveTenderID(ctx, "T-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	tenderID, err := storage.RegisterTender(ctx, &models.Tender{ExternalID: "T-1", Title: "Yemek"})
	require.NoError(t, err)
	again, err := storage.RegisterTender(ctx, &models.Tender{ExternalID: "T-1"})
	require.NoError(t, err)
	assert.Equal(t, tenderID, again)

	resolved, err := storage.ResolveTenderID(ctx, "T-1")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, tenderID, *resolved)

	require.NoError(t, storage.UpsertLinked(ctx, &models.TenderHistoryRecord{
		ContractorID:  contractorID,
		TenderID:      resolved,
		ExternalID:    "T-1",
		Role:          models.RoleAwarded,
		Status:        models.StatusOngoing,
		Title:         "Yemek Hizmeti",
		City:          ptr("Ankara"),
		ContractValue: ptr(1000.0),
	}))
	// Second observation lacks the city and value but carries a new status
	require.NoError(t, storage.UpsertLinked(ctx, &models.TenderHistoryRecord{
		ContractorID: contractorID,
		TenderID:     resolved,
		ExternalID:   "T-1",
		Role:         models.RoleAwarded,
		Status:       models.StatusCompleted,
		Title:        "Yemek Hizmeti",
		EndDate:      date("2025-12-31"),
	}))

	records, err := storage.ListHistory(ctx, contractorID, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, models.StatusCompleted, r.Status)
	require.NotNil(t, r.City)
	assert.Equal(t, "Ankara", *r.City)
	require.NotNil(t, r.ContractValue)
	assert.Equal(t, 1000.0, *r.ContractValue)
	require.NotNil(t, r.EndDate)
	assert.Equal(t, "2025-12-31", r.EndDate.Format(dateLayout))
}

func TestTenderHistoryStorage_SameTenderDifferentRoles(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewTenderHistoryStorage(db, arbor.NewLogger())
	ctx := context.Background()
	contractorID := newContractor(t, db, "THETA")

	tenderID, err := storage.RegisterTender(ctx, &models.Tender{ExternalID: "T-9"})
	require.NoError(t, err)

	for _, role := range []models.Role{models.RoleAwarded, models.RoleParticipant} {
		require.NoError(t, storage.UpsertLinked(ctx, &models.TenderHistoryRecord{
			ContractorID: contractorID, TenderID: &tenderID, Role: role,
			Status: models.StatusUnknown, Title: "Temizlik",
		}))
	}

	records, err := storage.ListHistory(ctx, contractorID, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestTenderHistoryStorage_UpsertLinkedRequiresTender(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewTenderHistoryStorage(db, arbor.NewLogger())
	err := storage.UpsertLinked(context.Background(), &models.TenderHistoryRecord{Title: "x"})
	assert.Error(t, err)
}

func TestTenderHistoryStorage_UnlinkedLookupAndUpdate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewTenderHistoryStorage(db, arbor.NewLogger())
	ctx := context.Background()
	contractorID := newContractor(t, db, "IOTA")

	id, err := storage.InsertUnlinked(ctx, &models.TenderHistoryRecord{
		ContractorID:   contractorID,
		Role:           models.RoleAwarded,
		Status:         models.StatusOngoing,
		Title:          "Güvenlik Hizmeti",
		ArchivalNumber: ptr("2024/123456"),
		Authority:      ptr("Belediye"),
	})
	require.NoError(t, err)

	found, ok, err := storage.FindUnlinkedByArchival(ctx, contractorID, "2024/123456", models.RoleAwarded)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, found)

	_, ok, err = storage.FindUnlinkedByArchival(ctx, contractorID, "2024/123456", models.RoleParticipant)
	require.NoError(t, err)
	assert.False(t, ok)

	found, ok, err = storage.FindUnlinkedByTitle(ctx, contractorID, "Güvenlik Hizmeti", models.RoleAwarded)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, found)

	require.NoError(t, storage.UpdateUnlinked(ctx, id, &models.TenderHistoryRecord{
		Status:       models.StatusCancelled,
		Title:        "Güvenlik Hizmeti",
		DiscountRate: ptr(12.5),
	}))

	records, err := storage.ListHistory(ctx, contractorID, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusCancelled, records[0].Status)
	assert.Nil(t, records[0].TenderID)
	require.NotNil(t, records[0].Authority)
	assert.Equal(t, "Belediye", *records[0].Authority)
	require.NotNil(t, records[0].DiscountRate)
	assert.Equal(t, 12.5, *records[0].DiscountRate)

	assert.ErrorIs(t, storage.UpdateUnlinked(ctx, 9999, &models.TenderHistoryRecord{Status: models.StatusUnknown}), interfaces.ErrNotFound)
}

func TestTenderHistoryStorage_ListHistoryOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewTenderHistoryStorage(db, arbor.NewLogger())
	ctx := context.Background()
	contractorID := newContractor(t, db, "KAPPA")

	inputs := []struct {
		title string
		date  *time.Time
	}{
		{"undated", nil},
		{"older", date("2022-01-01")},
		{"newer", date("2024-06-01")},
	}
	for _, in := range inputs {
		_, err := storage.InsertUnlinked(ctx, &models.TenderHistoryRecord{
			ContractorID: contractorID, Role: models.RoleAwarded, Status: models.StatusUnknown,
			Title: in.title, ContractDate: in.date,
		})
		require.NoError(t, err)
	}

	records, err := storage.ListHistory(ctx, contractorID, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "newer", records[0].Title)
	assert.Equal(t, "older", records[1].Title)
	assert.Equal(t, "undated", records[2].Title)

	limited, err := storage.ListHistory(ctx, contractorID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
