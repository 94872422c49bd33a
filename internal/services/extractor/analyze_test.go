package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analyzeHTML = `
<html><body>
<div class="summary">
  Geçmiş ihaleler 42
  Devam eden 3 İhale ₺4.500.000,00
  Tamamlanan 37 İhale ₺61.250.000,00
  Toplam sözleşme 40 Sözleşme ₺65.750.000,00
  Ortalama tenzilat +12,40%
  Ortalama sözleşme süresi 365 Gün
  İlk sözleşme tarihi 14.06.2012
  Son sözleşme tarihi 02.09.2024
  İptal ihaleler 2
  KİK kararları 5
</div>
<div class="card">
  <div class="card-header">İdareler</div>
  <table>
    <thead><tr><th>İdare Adı</th><th>Sözleşme Bedeli (₺)</th><th>İhale Sayısı</th></tr></thead>
    <tbody>
      <tr><td>Ankara Valiliği Listele</td><td>1.250.000,00</td><td>4</td></tr>
      <tr><td>İzmir Belediyesi</td><td>980.000,50</td><td>2</td></tr>
    </tbody>
  </table>
</div>
<h5>Rakipler</h5>
<div><table><tbody><tr><td>XYZ Ltd</td><td>7</td></tr></tbody></table></div>
</body></html>`

func TestParseAnalyzeSummary(t *testing.T) {
	analysis, err := ParseAnalyzePage(analyzeHTML, AnalyzeTables)
	require.NoError(t, err)

	s := analysis.Summary
	require.NotNil(t, s.PastTenders)
	assert.Equal(t, 42, *s.PastTenders)
	require.NotNil(t, s.Ongoing)
	assert.Equal(t, 3, s.Ongoing.Count)
	require.NotNil(t, s.Ongoing.Value)
	assert.InDelta(t, 4500000.0, *s.Ongoing.Value, 0.01)
	require.NotNil(t, s.Completed)
	assert.Equal(t, 37, s.Completed.Count)
	require.NotNil(t, s.TotalContracts)
	assert.Equal(t, 40, s.TotalContracts.Count)
	require.NotNil(t, s.AverageDiscount)
	assert.InDelta(t, 12.4, *s.AverageDiscount, 0.001)
	require.NotNil(t, s.AverageDurationDays)
	assert.Equal(t, 365, *s.AverageDurationDays)
	require.NotNil(t, s.FirstContractDate)
	assert.Equal(t, "2012-06-14", s.FirstContractDate.Format("2006-01-02"))
	require.NotNil(t, s.LastContractDate)
	assert.Equal(t, "2024-09-02", s.LastContractDate.Format("2006-01-02"))
	require.NotNil(t, s.CancelledTenders)
	assert.Equal(t, 2, *s.CancelledTenders)
	require.NotNil(t, s.KikDecisions)
	assert.Equal(t, 5, *s.KikDecisions)
	assert.Nil(t, s.YearlyAverage)
}

func TestParseAnalyzePage_Tables(t *testing.T) {
	analysis, err := ParseAnalyzePage(analyzeHTML, AnalyzeTables)
	require.NoError(t, err)

	authorities, ok := analysis.Tables["authorities"]
	require.True(t, ok)
	require.Len(t, authorities, 2)
	assert.Equal(t, "Ankara Valiliği", authorities[0]["idare_adi"])
	assert.InDelta(t, 1250000.0, authorities[0]["sozlesme_bedeli"], 0.01)
	assert.InDelta(t, 4.0, authorities[0]["ihale_sayisi"], 0.01)

	competitors, ok := analysis.Tables["competitors"]
	require.True(t, ok)
	require.Len(t, competitors, 1)
	assert.Equal(t, "XYZ Ltd", competitors[0]["col_0"])
	assert.InDelta(t, 7.0, competitors[0]["col_1"], 0.01)

	_, ok = analysis.Tables["sectors"]
	assert.False(t, ok)
}

func TestColumnKey(t *testing.T) {
	assert.Equal(t, "sozlesme_bedeli", columnKey("Sözleşme Bedeli (₺)"))
	assert.Equal(t, "ihale_sayisi", columnKey("İhale Sayısı"))
	assert.Equal(t, "oran", columnKey(" Oran % "))
}
