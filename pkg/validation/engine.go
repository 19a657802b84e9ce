package validation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kitchensight/analytics-engine/pkg/database"
	"github.com/kitchensight/analytics-engine/pkg/models"
)

// Engine runs the fixed battery of invariant checks against the target
// warehouse after a refresh.
type Engine interface {
	RunAll(ctx context.Context) (*models.ValidationReport, error)
}

type check struct {
	name     string
	query    string
	evaluate func(rows []map[string]any) []models.Violation
}

type engine struct {
	target database.Querier
	checks []check
	logger *zap.Logger
}

// NewEngine creates a validation engine over the target schema. Numeric
// columns are cast to float8 in the check queries so rows arrive as plain Go
// floats.
func NewEngine(target database.Querier, targetSchema string, logger *zap.Logger) Engine {
	return &engine{
		target: target,
		checks: buildChecks(targetSchema),
		logger: logger.Named("validation"),
	}
}

func buildChecks(schema string) []check {
	return []check{
		{
			name: "revenue_share_sum",
			query: fmt.Sprintf(`
				SELECT business_date, location_id,
				       SUM(revenue_share)::float8 AS share_total
				FROM %s.daily_location_group_mix
				GROUP BY business_date, location_id`, schema),
			evaluate: evalRevenueShareSum,
		},
		{
			name: "daypart_reconciliation",
			query: fmt.Sprintf(`
				SELECT d.business_date, d.location_id,
				       SUM(d.net_revenue)::float8 AS daypart_revenue,
				       MAX(s.net_revenue)::float8 AS daily_revenue
				FROM %[1]s.daily_location_daypart d
				JOIN %[1]s.daily_location_sales s
					ON s.business_date = d.business_date
					AND s.location_id = d.location_id
				GROUP BY d.business_date, d.location_id`, schema),
			evaluate: evalDaypartReconciliation,
		},
		{
			name: "percentile_ordering",
			query: fmt.Sprintf(`
				SELECT window_days, metric,
				       p25::float8, p50::float8, p75::float8, p90::float8
				FROM %s.fleet_benchmarks`, schema),
			evaluate: evalPercentileOrdering,
		},
		{
			name: "trailing_window_bounds",
			query: fmt.Sprintf(`
				SELECT t.location_id, t.window_days,
				       COUNT(DISTINCT s.business_date)::float8 AS day_count
				FROM %[1]s.location_trailing_metrics t
				JOIN %[1]s.daily_location_sales s
					ON s.location_id = t.location_id
					AND s.business_date >= CURRENT_DATE - t.window_days
					AND s.business_date < CURRENT_DATE
				GROUP BY t.location_id, t.window_days`, schema),
			evaluate: evalTrailingWindowBounds,
		},
	}
}

// RunAll executes every check. A check whose fetch fails is reported as a
// failed check, not an engine error: one broken relation must not hide the
// other results.
func (e *engine) RunAll(ctx context.Context) (*models.ValidationReport, error) {
	report := &models.ValidationReport{}
	for _, c := range e.checks {
		result := models.CheckResult{Name: c.name, RanAt: time.Now().UTC()}

		rows, err := e.target.FetchAll(ctx, c.query)
		if err != nil {
			result.Passed = false
			result.Violations = []models.Violation{{
				Scope:  c.name,
				Detail: fmt.Sprintf("check query failed: %v", err),
			}}
			report.Results = append(report.Results, result)
			e.logger.Error("Validation check query failed",
				zap.String("check", c.name), zap.Error(err))
			continue
		}

		result.Violations = c.evaluate(rows)
		result.Passed = len(result.Violations) == 0
		report.Results = append(report.Results, result)

		if result.Passed {
			e.logger.Info("Validation check passed", zap.String("check", c.name))
		} else {
			e.logger.Warn("Validation check failed",
				zap.String("check", c.name),
				zap.Int("violations", len(result.Violations)))
		}
	}
	return report, nil
}
