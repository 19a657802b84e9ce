//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitchensight/analytics-engine/pkg/models"
	"github.com/kitchensight/analytics-engine/pkg/testhelpers"
)

func TestRefreshLogLifecycle(t *testing.T) {
	warehouse := testhelpers.GetWarehouseDB(t)
	repo := NewRefreshLogRepository(warehouse.DB)
	ctx := context.Background()

	run := models.NewRefreshRun(models.ModeFull, models.DateRange{})

	id1, err := repo.Start(ctx, &models.RefreshLogEntry{
		RunID:     run.ID,
		TableName: "daily_location_sales",
		Mode:      run.Mode,
		StartedAt: run.StartedAt,
	})
	require.NoError(t, err)

	id2, err := repo.Start(ctx, &models.RefreshLogEntry{
		RunID:     run.ID,
		TableName: "daily_location_product",
		Mode:      run.Mode,
		StartedAt: run.StartedAt,
	})
	require.NoError(t, err)
	assert.Greater(t, id2, id1, "log ids are monotonic")

	rows := int64(1500)
	require.NoError(t, repo.Finish(ctx, id1, models.TableStatusSuccess, &rows, nil))

	errMsg := "division by zero"
	require.NoError(t, repo.Finish(ctx, id2, models.TableStatusFailed, nil, &errMsg))

	require.NoError(t, repo.Skipped(ctx, &models.RefreshLogEntry{
		RunID:     run.ID,
		TableName: "daily_location_labor",
		Mode:      run.Mode,
	}, "upstream daily_location_product did not succeed"))

	entries, err := repo.ListByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, models.TableStatusSuccess, entries[0].Status)
	require.NotNil(t, entries[0].RowCount)
	assert.EqualValues(t, 1500, *entries[0].RowCount)
	require.NotNil(t, entries[0].FinishedAt)
	require.NotNil(t, entries[0].DurationMs)

	assert.Equal(t, models.TableStatusFailed, entries[1].Status)
	require.NotNil(t, entries[1].ErrorMessage)
	assert.Equal(t, "division by zero", *entries[1].ErrorMessage)

	assert.Equal(t, models.TableStatusSkipped, entries[2].Status)

	recent, err := repo.Recent(ctx, "daily_location_sales", 5)
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.Equal(t, "daily_location_sales", recent[0].TableName)
}

func TestAbsenceMappingReplaceAll(t *testing.T) {
	warehouse := testhelpers.GetWarehouseDB(t)
	repo := NewAbsenceMappingRepository(warehouse.DB)
	ctx := context.Background()

	first := []models.AbsenceTypeMapping{
		{ShiftTypeID: 1, PortalName: "oslo", Label: "Egenmelding", Category: models.AbsenceEgenmelding, CostBearer: models.CostBearerEmployer, ShiftCount: 12},
		{ShiftTypeID: 2, PortalName: "oslo", Label: "Ferie", Category: models.AbsenceVacation, CostBearer: models.CostBearerNone, ShiftCount: 80},
	}
	require.NoError(t, repo.ReplaceAll(ctx, first))

	got, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.AbsenceEgenmelding, got[0].Category)

	// A later discovery run replaces the set wholesale.
	second := []models.AbsenceTypeMapping{
		{ShiftTypeID: 3, PortalName: "bergen", Label: "Sykemelding", Category: models.AbsenceSykemelding, CostBearer: models.CostBearerNAV, ShiftCount: 4},
	}
	require.NoError(t, repo.ReplaceAll(ctx, second))

	got, err = repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Sykemelding", got[0].Label)
}
