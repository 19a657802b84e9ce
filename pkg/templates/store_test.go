package templates

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitchensight/analytics-engine/pkg/apperrors"
	"github.com/kitchensight/analytics-engine/pkg/models"
)

func testStore() *Store {
	return NewStore(Definitions(), "", "analytics")
}

func testRange() models.DateRange {
	return models.DateRange{
		From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
	}
}

func TestRenderFullModeHasNoDateFilter(t *testing.T) {
	q, err := testStore().Render("daily_location_sales", models.ModeFull, models.DateRange{})
	require.NoError(t, err)
	require.NotEmpty(t, q.Statements)

	for _, stmt := range q.Statements {
		assert.NotContains(t, stmt, "business_date >=")
		assert.NotContains(t, stmt, "{")
	}
}

func TestRenderIncrementalBoundsDailyCubes(t *testing.T) {
	q, err := testStore().Render("daily_location_sales", models.ModeIncremental, testRange())
	require.NoError(t, err)

	joined := strings.Join(q.Statements, ";")
	assert.Contains(t, joined, "AND business_date >= '2025-01-01'")
	assert.Contains(t, joined, "AND business_date < '2025-01-08'")
}

func TestRenderIncrementalOpenEndedRange(t *testing.T) {
	openRange := models.DateRange{From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	q, err := testStore().Render("daily_location_sales", models.ModeIncremental, openRange)
	require.NoError(t, err)

	joined := strings.Join(q.Statements, ";")
	assert.Contains(t, joined, "AND business_date >= '2025-01-01'")
	assert.NotContains(t, joined, "business_date <")
}

func TestRenderSnapshotTablesIgnoreDateRange(t *testing.T) {
	// Trailing snapshots aggregate windows relative to now; an incremental
	// window must never narrow them.
	for _, table := range []string{"location_trailing_metrics", "fleet_benchmarks"} {
		q, err := testStore().Render(table, models.ModeIncremental, testRange())
		require.NoError(t, err, table)
		for _, stmt := range q.Statements {
			assert.NotContains(t, stmt, "2025-01-01", table)
		}
	}
}

func TestRenderCollapsesEmptySourcePrefix(t *testing.T) {
	q, err := testStore().Render("daily_location_sales", models.ModeFull, models.DateRange{})
	require.NoError(t, err)

	joined := strings.Join(q.Statements, ";")
	assert.Contains(t, joined, "FROM pos.orders")
	assert.NotContains(t, joined, "{SOURCE_DB}")
}

func TestRenderAppliesSourceAlias(t *testing.T) {
	store := NewStore(Definitions(), "rawdb", "analytics")
	q, err := store.Render("daily_location_sales", models.ModeFull, models.DateRange{})
	require.NoError(t, err)

	joined := strings.Join(q.Statements, ";")
	assert.Contains(t, joined, "FROM rawdb.pos.orders")
}

func TestRenderAppliesTargetSchema(t *testing.T) {
	store := NewStore(Definitions(), "", "reporting")
	q, err := store.Render("daily_location_sales", models.ModeFull, models.DateRange{})
	require.NoError(t, err)

	assert.Contains(t, q.Statements[0], "reporting.daily_location_sales")
}

func TestRenderUnknownTable(t *testing.T) {
	_, err := testStore().Render("no_such_table", models.ModeFull, models.DateRange{})
	assert.ErrorIs(t, err, apperrors.ErrTemplateNotFound)
}

func TestSchemaStatementsKeepOnlyCreates(t *testing.T) {
	q, err := testStore().Render("daily_location_sick_leave", models.ModeFull, models.DateRange{})
	require.NoError(t, err)

	schema := q.SchemaStatements()
	require.NotEmpty(t, schema)
	assert.Less(t, len(schema), len(q.Statements))
	for _, stmt := range schema {
		assert.Contains(t, strings.ToUpper(stmt), "CREATE")
	}
}

func TestSchemaStatementsClassifyByLeadingKeyword(t *testing.T) {
	// Statements are classified by their first keyword: DML that merely
	// mentions a created_at column is not a schema statement, and leading
	// comments do not hide a CREATE.
	q := &RenderedQuery{
		Table: "example",
		Statements: []string{
			"-- relation\nCREATE TABLE IF NOT EXISTS reporting.example (\n\tcreated_at DATE\n)",
			"DELETE FROM reporting.example WHERE created_at < '2025-01-01'",
			"INSERT INTO reporting.example (created_at)\nSELECT o.created_at FROM pos.orders o",
		},
	}

	schema := q.SchemaStatements()
	require.Len(t, schema, 1)
	assert.Contains(t, schema[0], "CREATE TABLE IF NOT EXISTS reporting.example")
}

func TestEveryDefinitionRenders(t *testing.T) {
	store := testStore()
	for _, mode := range []models.RefreshMode{models.ModeFull, models.ModeIncremental} {
		for _, def := range store.Definitions() {
			q, err := store.Render(def.Name, mode, testRange())
			require.NoError(t, err, "%s in %s mode", def.Name, mode)
			assert.NotEmpty(t, q.Statements, def.Name)
		}
	}
}

func TestDefinitionsDeclareExistingTemplates(t *testing.T) {
	for _, def := range Definitions() {
		_, err := sqlFS.ReadFile("sql/" + def.TemplateFile)
		assert.NoError(t, err, "template for %s", def.Name)
	}
}
