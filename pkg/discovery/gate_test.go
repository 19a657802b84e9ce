package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kitchensight/analytics-engine/pkg/apperrors"
	"github.com/kitchensight/analytics-engine/pkg/models"
)

// mockQuerier serves canned rows keyed by a substring of the query.
type mockQuerier struct {
	mu      sync.Mutex
	rows    []map[string]any
	err     error
	queries []string
}

func (m *mockQuerier) FetchAll(_ context.Context, query string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	return m.rows, nil
}

func (m *mockQuerier) FetchOne(ctx context.Context, query string) (map[string]any, error) {
	rows, err := m.FetchAll(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func gatedTable() models.TableDefinition {
	return models.TableDefinition{Name: "daily_location_sick_leave", DiscoveryGated: true}
}

func TestShouldPopulateNonGatedTable(t *testing.T) {
	source := &mockQuerier{}
	g := NewGate(source, defaultRuleSet(t), "", zap.NewNop())

	decision, err := g.ShouldPopulate(context.Background(), models.TableDefinition{Name: "daily_location_sales"})
	require.NoError(t, err)
	assert.Equal(t, models.Populate, decision)
	assert.Empty(t, source.queries, "non-gated tables never probe the source")
}

func TestShouldPopulateWithAbsenceData(t *testing.T) {
	source := &mockQuerier{rows: []map[string]any{
		{"name": "Kveldsvakt", "shift_count": int64(900)},
		{"name": "Egenmelding", "shift_count": int64(12)},
	}}
	g := NewGate(source, defaultRuleSet(t), "", zap.NewNop())

	decision, err := g.ShouldPopulate(context.Background(), gatedTable())
	require.NoError(t, err)
	assert.Equal(t, models.Populate, decision)
}

func TestShouldPopulateNoAbsenceData(t *testing.T) {
	source := &mockQuerier{rows: []map[string]any{
		{"name": "Kveldsvakt", "shift_count": int64(900)},
		{"name": "Dagvakt", "shift_count": int64(700)},
	}}
	g := NewGate(source, defaultRuleSet(t), "", zap.NewNop())

	decision, err := g.ShouldPopulate(context.Background(), gatedTable())
	require.NoError(t, err)
	assert.Equal(t, models.SchemaOnly, decision)
}

func TestShouldPopulateAbsenceTypeWithZeroShifts(t *testing.T) {
	// A matching shift type that was never used does not count as data.
	source := &mockQuerier{rows: []map[string]any{
		{"name": "Egenmelding", "shift_count": int64(0)},
	}}
	g := NewGate(source, defaultRuleSet(t), "", zap.NewNop())

	decision, err := g.ShouldPopulate(context.Background(), gatedTable())
	require.NoError(t, err)
	assert.Equal(t, models.SchemaOnly, decision)
}

func TestShouldPopulateCachesProbe(t *testing.T) {
	source := &mockQuerier{rows: []map[string]any{
		{"name": "Egenmelding", "shift_count": int64(3)},
	}}
	g := NewGate(source, defaultRuleSet(t), "", zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := g.ShouldPopulate(context.Background(), gatedTable())
		require.NoError(t, err)
	}
	assert.Len(t, source.queries, 1, "the probe runs once per process")
}

func TestShouldPopulateConcurrentGatedTables(t *testing.T) {
	// Gated tables may run on concurrent workers; the probe must stay
	// single-flight with no races on the cached result.
	source := &mockQuerier{rows: []map[string]any{
		{"name": "Egenmelding", "shift_count": int64(3)},
	}}
	g := NewGate(source, defaultRuleSet(t), "", zap.NewNop())

	var wg sync.WaitGroup
	decisions := make([]models.PopulationDecision, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decision, err := g.ShouldPopulate(context.Background(), gatedTable())
			assert.NoError(t, err)
			decisions[i] = decision
		}(i)
	}
	wg.Wait()

	assert.Len(t, source.queries, 1, "the probe runs once per process")
	for _, decision := range decisions {
		assert.Equal(t, models.Populate, decision)
	}
}

func TestShouldPopulatePermissionErrorIsSchemaOnly(t *testing.T) {
	source := &mockQuerier{err: &apperrors.PermissionError{Op: "probe", Err: errors.New("permission denied")}}
	g := NewGate(source, defaultRuleSet(t), "", zap.NewNop())

	decision, err := g.ShouldPopulate(context.Background(), gatedTable())
	require.NoError(t, err, "a read-only credential is expected, not fatal")
	assert.Equal(t, models.SchemaOnly, decision)
}

func TestShouldPopulateOtherErrorsPropagate(t *testing.T) {
	source := &mockQuerier{err: errors.New("network unreachable")}
	g := NewGate(source, defaultRuleSet(t), "", zap.NewNop())

	_, err := g.ShouldPopulate(context.Background(), gatedTable())
	assert.Error(t, err)
}

func TestProbeUsesSourceAlias(t *testing.T) {
	source := &mockQuerier{}
	g := NewGate(source, defaultRuleSet(t), "rawdb", zap.NewNop())

	_, err := g.ShouldPopulate(context.Background(), gatedTable())
	require.NoError(t, err)
	require.Len(t, source.queries, 1)
	assert.Contains(t, source.queries[0], "rawdb.planday.shift_types")
}
