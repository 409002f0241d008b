package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealrelay/dealrelay/pkg/catalog"
	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/persistence/file"
	"github.com/dealrelay/dealrelay/pkg/subscription"
)

func seedCatalog(t *testing.T) *file.Persistence {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	entries := []*models.CatalogEntry{
		{
			ID:           "cat-followup",
			Name:         "Lead follow-up email",
			Description:  "Send a follow-up email when a lead is created",
			Category:     "email",
			RequiredTier: models.TierStarter,
			Trigger:      "deal_created",
			Popularity:   120,
			CreatedAt:    base,
		},
		{
			ID:           "cat-slack",
			Name:         "Slack deal alerts",
			Description:  "Post won deals to a Slack channel",
			Category:     "notifications",
			RequiredTier: models.TierProfessional,
			Trigger:      "deal_won",
			Popularity:   300,
			CreatedAt:    base.AddDate(0, 1, 0),
		},
		{
			ID:           "cat-forecast",
			Name:         "Revenue forecast sync",
			Description:  "Push pipeline changes to the forecasting sheet",
			Category:     "reporting",
			RequiredTier: models.TierEnterprise,
			Trigger:      "deal_stage_changed",
			Popularity:   45,
			CreatedAt:    base.AddDate(0, 2, 0),
		},
	}
	require.NoError(t, store.CatalogRepository().Seed(context.Background(), entries))

	return store
}

func browserFor(t *testing.T, plan models.PlanName) *catalog.Browser {
	t.Helper()

	store := seedCatalog(t)
	resolver := subscription.NewStaticResolver(nil, subscription.PlanFor(plan, subscription.DefaultLimits()))

	return catalog.NewBrowser(store.CatalogRepository(), resolver)
}

func TestBrowse_AllEntriesVisibleWithImportability(t *testing.T) {
	t.Parallel()

	browser := browserFor(t, models.PlanStarter)

	result, err := browser.Browse(context.Background(), catalog.BrowseRequest{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, result.Items, 3)
	assert.Equal(t, 3, result.TotalCount)

	importable := map[string]bool{}
	for _, item := range result.Items {
		importable[item.Entry.ID] = item.Importable
	}

	// Entries above the plan's tier stay listed but are not importable.
	assert.True(t, importable["cat-followup"])
	assert.False(t, importable["cat-slack"])
	assert.False(t, importable["cat-forecast"])
}

func TestBrowse_EnterpriseImportsEverything(t *testing.T) {
	t.Parallel()

	browser := browserFor(t, models.PlanEnterprise)

	result, err := browser.Browse(context.Background(), catalog.BrowseRequest{UserID: "user-1"})
	require.NoError(t, err)

	for _, item := range result.Items {
		assert.True(t, item.Importable, "entry %s", item.Entry.ID)
	}
}

func TestBrowse_SortOrders(t *testing.T) {
	t.Parallel()

	browser := browserFor(t, models.PlanProfessional)

	tests := []struct {
		sortBy   string
		expected []string
	}{
		{catalog.SortPopular, []string{"cat-slack", "cat-followup", "cat-forecast"}},
		{catalog.SortNewest, []string{"cat-forecast", "cat-slack", "cat-followup"}},
		{catalog.SortName, []string{"cat-followup", "cat-forecast", "cat-slack"}},
	}

	for _, tc := range tests {
		result, err := browser.Browse(context.Background(), catalog.BrowseRequest{
			UserID: "user-1",
			SortBy: tc.sortBy,
		})
		require.NoError(t, err)

		ids := make([]string, 0, len(result.Items))
		for _, item := range result.Items {
			ids = append(ids, item.Entry.ID)
		}

		assert.Equal(t, tc.expected, ids, "sort %s", tc.sortBy)
	}
}

func TestBrowse_CategoryAndSearchFilters(t *testing.T) {
	t.Parallel()

	browser := browserFor(t, models.PlanProfessional)

	result, err := browser.Browse(context.Background(), catalog.BrowseRequest{
		UserID:   "user-1",
		Category: "notifications",
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "cat-slack", result.Items[0].Entry.ID)

	result, err = browser.Browse(context.Background(), catalog.BrowseRequest{
		UserID: "user-1",
		Search: "forecast",
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "cat-forecast", result.Items[0].Entry.ID)
}

func TestBrowse_Pagination(t *testing.T) {
	t.Parallel()

	browser := browserFor(t, models.PlanProfessional)

	page1, err := browser.Browse(context.Background(), catalog.BrowseRequest{
		UserID:   "user-1",
		SortBy:   catalog.SortName,
		Page:     1,
		PageSize: 2,
	})
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	assert.True(t, page1.HasNextPage)
	assert.Equal(t, 3, page1.TotalCount)

	page2, err := browser.Browse(context.Background(), catalog.BrowseRequest{
		UserID:   "user-1",
		SortBy:   catalog.SortName,
		Page:     2,
		PageSize: 2,
	})
	require.NoError(t, err)
	require.Len(t, page2.Items, 1)
	assert.False(t, page2.HasNextPage)
	assert.Equal(t, "cat-slack", page2.Items[0].Entry.ID)
}
