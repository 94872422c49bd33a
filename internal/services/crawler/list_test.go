package crawler

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/tenderintel/internal/models"
)

func TestCrawlContractorList_AggregatesByFoldedTitle(t *testing.T) {
	c, b, _, svc := setupController(t, func(url string) (string, error) {
		if strings.Contains(url, "&page=2") {
			return resultsPage(2), nil
		}
		return resultsPage(2,
			card("1001", "Temizlik Hizmeti", "Yüklenici adı: ÖZ YAPI   İNŞAAT", "Sözleşme bedeli: ₺1.000,00", "% 10,00", "Sözleşme tarihi: 01.02.2024"),
			card("1002", "Güvenlik Hizmeti", "Yüklenici adı: ÖZ YAPI İNŞAAT", "Sözleşme bedeli: ₺3.000,00", "% 20,00", "Sözleşme tarihi: 05.03.2024"),
			card("1003", "Yemek Hizmeti", "Yüklenici adı: *** Üyelere özel ***"),
			card("1004", "Kantin Kiralama", "Yüklenici adı: MAVİ GIDA"),
		), nil
	})
	ctx := context.Background()

	stats, err := c.CrawlContractorList(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.PagesScraped)
	assert.Equal(t, 3, stats.CardsFound)
	assert.Equal(t, 2, stats.ContractorsFound)
	assert.Equal(t, 2, stats.ContractorsNew)
	assert.Equal(t, 3, stats.RecordsSaved)
	assert.Len(t, b.Navigations(), 2)

	ozyapi, err := svc.FindContractorByTitle(ctx, "ÖZ YAPI İNŞAAT")
	require.NoError(t, err)
	assert.Equal(t, 2, ozyapi.Participated)
	assert.Equal(t, 2, ozyapi.Completed)
	assert.InDelta(t, 4000.0, ozyapi.TotalContractValue, 0.001)
	require.NotNil(t, ozyapi.AverageDiscount)
	assert.InDelta(t, 15.0, *ozyapi.AverageDiscount, 0.001)
	require.NotNil(t, ozyapi.LastContractDate)
	assert.Equal(t, "2024-03-05", ozyapi.LastContractDate.Format("2006-01-02"))
	assert.Equal(t, 100.0, ozyapi.WinRate)
	require.Len(t, ozyapi.Provenance, 1)
	assert.Equal(t, models.SourceListScan, ozyapi.Provenance[0].Source)

	history, err := svc.History(ctx, ozyapi.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, r := range history {
		assert.Equal(t, models.RoleAwarded, r.Role)
	}
}

func TestCrawlContractorList_RerunDoesNotInflate(t *testing.T) {
	c, _, _, svc := setupController(t, func(url string) (string, error) {
		return resultsPage(1,
			card("2001", "Temizlik", "Yüklenici adı: KAYA LTD", "Sözleşme bedeli: ₺500,00"),
		), nil
	})
	ctx := context.Background()

	_, err := c.CrawlContractorList(ctx, 0)
	require.NoError(t, err)
	second, err := c.CrawlContractorList(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ContractorsNew)
	assert.Equal(t, 1, second.ContractorsUpdated)

	kaya, err := svc.FindContractorByTitle(ctx, "KAYA LTD")
	require.NoError(t, err)
	assert.Equal(t, 1, kaya.Participated)
	assert.Len(t, kaya.Provenance, 1)

	history, err := svc.History(ctx, kaya.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCrawlContractorList_RecomputesFromStoredHistory(t *testing.T) {
	c, _, _, svc := setupController(t, func(url string) (string, error) {
		return resultsPage(1,
			card("3001", "Yol Bakımı", "Yüklenici adı: Deniz Yapı", "Sözleşme bedeli: ₺2.000,00"),
		), nil
	})
	ctx := context.Background()

	// a participation saved by an earlier harvest under a differently cased title
	res, err := svc.UpsertContractor(ctx, "DENİZ YAPI", models.ContractorStats{})
	require.NoError(t, err)
	require.NoError(t, svc.UpsertTenderHistory(ctx, res.ID, &models.TenderCard{ExternalID: "2999", Title: "Park Düzenleme"}, models.RoleParticipant))

	stats, err := c.CrawlContractorList(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ContractorsNew)
	assert.Equal(t, 1, stats.ContractorsUpdated)

	deniz, err := svc.GetContractor(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, deniz.Participated)
	assert.Equal(t, 1, deniz.Completed)
	assert.Equal(t, 50.0, deniz.WinRate)
	assert.InDelta(t, 2000.0, deniz.TotalContractValue, 0.001)
	assert.NotNil(t, deniz.HarvestedAt)
}
