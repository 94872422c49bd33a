package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/tenderintel/internal/models"
)

func TestPhaseURL(t *testing.T) {
	phases := HistoryPhases()
	base := "https://www.ihalebul.com"

	assert.Equal(t,
		"https://www.ihalebul.com/tenders/search/contracted?workcategory_in=15&contractortitle_in=ABC+YAPI&workend=%3E0",
		PhaseURL(base, 15, phases[0], "abc yapı", 1))
	assert.Equal(t,
		"https://www.ihalebul.com/tenders/search/contracted?workcategory_in=15&contractortitle_in=ABC+YAPI&workend=%3C0&page=3",
		PhaseURL(base+"/", 15, phases[1], "ABC YAPI", 3))
	assert.Equal(t,
		"https://www.ihalebul.com/tenders/search?workcategory_in=15&participanttitle_in=%C4%B0Z+GIDA",
		PhaseURL(base, 15, phases[2], "iz gıda", 1))
	assert.Equal(t,
		"https://www.ihalebul.com/tenders/search/decided?workcategory_in=15&contractortitle_in=ABC&page=2",
		PhaseURL(base, 15, DecisionPhase(), "abc", 2))
}

func TestListAndAnalyzeURL(t *testing.T) {
	base := "https://www.ihalebul.com"
	assert.Equal(t, "https://www.ihalebul.com/tenders/search?workcategory_in=15&sort=date_desc", ListURL(base, 15, 1))
	assert.Equal(t, "https://www.ihalebul.com/tenders/search?workcategory_in=15&sort=date_desc&page=4", ListURL(base, 15, 4))
	assert.Equal(t, "https://www.ihalebul.com/analyze?workcategory_in=15&contractortitle_in=ABC+YAPI", AnalyzeURL(base, 15, "abc yapı"))
}

func TestApplyPhaseDefault(t *testing.T) {
	phases := HistoryPhases()

	bare := models.TenderCard{}
	ApplyPhaseDefault(&bare, phases[0])
	assert.True(t, bare.Markers.Ongoing)
	assert.False(t, bare.Markers.Completed)

	bare = models.TenderCard{}
	ApplyPhaseDefault(&bare, phases[1])
	assert.True(t, bare.Markers.Completed)

	bare = models.TenderCard{}
	ApplyPhaseDefault(&bare, phases[2])
	assert.False(t, bare.Markers.Any())

	// An explicit marker wins over the phase default
	marked := models.TenderCard{Markers: models.Markers{Cancelled: true}}
	ApplyPhaseDefault(&marked, phases[1])
	assert.False(t, marked.Markers.Completed)
	assert.True(t, marked.Markers.Cancelled)
}

func TestJitter_Between(t *testing.T) {
	j := NewSeededJitter(42)
	for i := 0; i < 100; i++ {
		d := j.Between(2*time.Second, 5*time.Second)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
	assert.Equal(t, 3*time.Second, j.Between(3*time.Second, time.Second))
	assert.Equal(t, time.Second, j.Between(time.Second, time.Second))
}
