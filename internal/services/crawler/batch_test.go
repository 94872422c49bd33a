package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

func TestRunBatch_ContinuesAfterLostSession(t *testing.T) {
	c, _, keeper, _ := setupController(t, func(url string) (string, error) {
		if strings.Contains(url, "contractortitle_in=ALFA") {
			return anonymousPage(), nil
		}
		if strings.Contains(url, "contractortitle_in=BETA") && strings.Contains(url, ongoingFragment) {
			return resultsPage(1, card("501", "Bakım İşi")), nil
		}
		return resultsPage(0), nil
	})

	batch, err := c.RunBatch(context.Background(), []*models.Contractor{
		{Title: "ALFA"},
		{Title: "BETA"},
	}, HarvestOptions{SkipDecisions: true})
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Contractors)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, 1, batch.RecordsSaved)
	require.Len(t, batch.Runs, 2)
	assert.NotEmpty(t, batch.Runs[0].Error)
	assert.Empty(t, batch.Runs[1].Error)
	assert.Equal(t, 1, keeper.reloginCount())
	assert.False(t, batch.FinishedAt.IsZero())
}

func TestRunBatch_StopsWhenSessionUnavailable(t *testing.T) {
	c, b, keeper, _ := setupController(t, func(url string) (string, error) {
		return resultsPage(0), nil
	})
	keeper.ensureErr = fmt.Errorf("%w: credentials rejected", interfaces.ErrAuthentication)
	keeper.reloginErr = fmt.Errorf("%w: credentials rejected", interfaces.ErrAuthentication)

	batch, err := c.RunBatch(context.Background(), []*models.Contractor{
		{Title: "ALFA"},
		{Title: "BETA"},
	}, HarvestOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionUnavailable))

	assert.Equal(t, 1, batch.Contractors)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, 1, keeper.reloginCount())
	assert.Empty(t, b.Navigations())
}

func TestRunBatch_TransientLoginFailureDoesNotStopBatch(t *testing.T) {
	c, _, keeper, _ := setupController(t, func(url string) (string, error) {
		if strings.Contains(url, ongoingFragment) {
			switch {
			case strings.Contains(url, "contractortitle_in=ALFA"):
				return resultsPage(1, card("901", "Alfa İşi")), nil
			case strings.Contains(url, "contractortitle_in=BETA"):
				return resultsPage(1, card("902", "Beta İşi")), nil
			case strings.Contains(url, "contractortitle_in=GAMA"):
				return resultsPage(1, card("903", "Gama İşi")), nil
			}
		}
		return resultsPage(0), nil
	})
	keeper.failLogins = 1

	batch, err := c.RunBatch(context.Background(), []*models.Contractor{
		{Title: "ALFA"},
		{Title: "BETA"},
		{Title: "GAMA"},
	}, HarvestOptions{SkipDecisions: true})
	require.NoError(t, err)

	assert.Equal(t, 3, batch.Contractors)
	assert.Equal(t, 3, batch.Succeeded)
	assert.Equal(t, 0, batch.Failed)
	assert.Equal(t, 3, batch.RecordsSaved)
	assert.Equal(t, 1, keeper.reloginCount())
}

func TestRunBatch_DefaultsToBatchPageCap(t *testing.T) {
	served := 0
	c, b, _, _ := setupController(t, func(url string) (string, error) {
		if strings.Contains(url, completedFragment) {
			served++
			return resultsPage(50, card(fmt.Sprintf("70%d", served), fmt.Sprintf("İş %d", served))), nil
		}
		return resultsPage(0), nil
	})

	_, err := c.RunBatch(context.Background(), []*models.Contractor{{Title: "GAMA"}}, HarvestOptions{SkipDecisions: true})
	require.NoError(t, err)
	assert.Equal(t, c.config.BatchMaxPages, countMatching(b.Navigations(), completedFragment))
}

func TestRunBatch_Cancelled(t *testing.T) {
	c, _, _, _ := setupController(t, func(url string) (string, error) {
		return resultsPage(0), nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RunBatch(ctx, []*models.Contractor{{Title: "ALFA"}, {Title: "BETA"}}, HarvestOptions{})
	assert.True(t, errors.Is(err, context.Canceled))
}
