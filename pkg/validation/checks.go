// Package validation runs invariant checks over the materialized tables.
// Failures are reported, never block or roll back a completed run: they
// exist to catch mapping and configuration regressions, not to gate
// availability.
package validation

import (
	"fmt"
	"math"

	"github.com/kitchensight/analytics-engine/pkg/models"
)

// Each check is a SQL fetch plus a pure evaluator over the returned rows, so
// the evaluators are unit-testable without a warehouse.

// revenueShareTolerance bounds rounding drift when per-group shares are
// summed back per day and location.
const revenueShareTolerance = 0.5

// evalRevenueShareSum asserts group-mix shares sum to 100 per day-location.
// Rows arrive pre-aggregated: one per (business_date, location_id) with the
// summed share.
func evalRevenueShareSum(rows []map[string]any) []models.Violation {
	var violations []models.Violation
	for _, row := range rows {
		total := toFloat(row["share_total"])
		if math.Abs(total-100.0) > revenueShareTolerance {
			violations = append(violations, models.Violation{
				Scope:  fmt.Sprintf("%v/%v", row["business_date"], row["location_id"]),
				Detail: fmt.Sprintf("revenue shares sum to %.2f, expected 100", total),
			})
		}
	}
	return violations
}

// daypartTolerance allows order-level rounding between the daypart cube and
// the daily sales cube.
const daypartTolerance = 1.0

// evalDaypartReconciliation asserts daypart revenue sums reconcile with the
// daily sales cube. Rows carry both sides for one (business_date, location_id).
func evalDaypartReconciliation(rows []map[string]any) []models.Violation {
	var violations []models.Violation
	for _, row := range rows {
		daypart := toFloat(row["daypart_revenue"])
		daily := toFloat(row["daily_revenue"])
		if math.Abs(daypart-daily) > daypartTolerance {
			violations = append(violations, models.Violation{
				Scope:  fmt.Sprintf("%v/%v", row["business_date"], row["location_id"]),
				Detail: fmt.Sprintf("daypart sum %.2f differs from daily revenue %.2f", daypart, daily),
			})
		}
	}
	return violations
}

// evalPercentileOrdering asserts p25 <= p50 <= p75 <= p90 per benchmark row.
func evalPercentileOrdering(rows []map[string]any) []models.Violation {
	var violations []models.Violation
	for _, row := range rows {
		p25 := toFloat(row["p25"])
		p50 := toFloat(row["p50"])
		p75 := toFloat(row["p75"])
		p90 := toFloat(row["p90"])
		if p25 > p50 || p50 > p75 || p75 > p90 {
			violations = append(violations, models.Violation{
				Scope: fmt.Sprintf("%v/%v", row["window_days"], row["metric"]),
				Detail: fmt.Sprintf("percentiles out of order: p25=%.2f p50=%.2f p75=%.2f p90=%.2f",
					p25, p50, p75, p90),
			})
		}
	}
	return violations
}

// evalTrailingWindowBounds asserts no trailing aggregate covers more
// distinct days than its window length.
func evalTrailingWindowBounds(rows []map[string]any) []models.Violation {
	var violations []models.Violation
	for _, row := range rows {
		windowDays := int64(toFloat(row["window_days"]))
		dayCount := int64(toFloat(row["day_count"]))
		if dayCount > windowDays {
			violations = append(violations, models.Violation{
				Scope:  fmt.Sprintf("%v", row["location_id"]),
				Detail: fmt.Sprintf("%d distinct days inside a %d-day window", dayCount, windowDays),
			})
		}
	}
	return violations
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
