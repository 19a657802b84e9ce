package templates

import "github.com/kitchensight/analytics-engine/pkg/models"

// Definitions returns the full table registry in declaration order.
//
// Dependencies are declared here as explicit metadata, not recovered from
// query text. Tier 1 holds seeded support tables, tier 2 the daily cubes,
// tier 3 the trailing/benchmark snapshots.
func Definitions() []models.TableDefinition {
	return []models.TableDefinition{
		// Support tables
		{
			Name:         "config_parameters",
			Tier:         models.TierSupport,
			Grain:        []string{"param_key", "valid_from"},
			TemplateFile: "support/config_parameters.sql",
		},
		{
			Name:         "daypart_config",
			Tier:         models.TierSupport,
			Grain:        []string{"daypart_key"},
			TemplateFile: "support/daypart_config.sql",
		},
		{
			Name:         "product_group_definitions",
			Tier:         models.TierSupport,
			Grain:        []string{"group_key"},
			TemplateFile: "support/product_group_definitions.sql",
		},

		// Tier 2 - daily cubes
		{
			Name:         "daily_location_sales",
			Tier:         models.TierDaily,
			Grain:        []string{"business_date", "location_id"},
			TemplateFile: "tier2/daily_location_sales.sql",
			DateColumn:   "business_date",
		},
		{
			Name:         "daily_location_product",
			Tier:         models.TierDaily,
			Grain:        []string{"business_date", "location_id", "product_id"},
			TemplateFile: "tier2/daily_location_product.sql",
			DateColumn:   "business_date",
		},
		{
			Name:         "daily_location_group_mix",
			Tier:         models.TierDaily,
			Grain:        []string{"business_date", "location_id", "group_key"},
			TemplateFile: "tier2/daily_location_group_mix.sql",
			Upstreams:    []string{"daily_location_product", "product_group_definitions"},
			DateColumn:   "business_date",
		},
		{
			Name:         "daily_fleet_group_mix",
			Tier:         models.TierDaily,
			Grain:        []string{"business_date", "group_key"},
			TemplateFile: "tier2/daily_fleet_group_mix.sql",
			Upstreams:    []string{"daily_location_group_mix"},
			DateColumn:   "business_date",
		},
		{
			Name:         "daily_location_daypart",
			Tier:         models.TierDaily,
			Grain:        []string{"business_date", "location_id", "daypart_key"},
			TemplateFile: "tier2/daily_location_daypart.sql",
			Upstreams:    []string{"daypart_config"},
			DateColumn:   "business_date",
		},
		{
			Name:         "daily_location_labor",
			Tier:         models.TierDaily,
			Grain:        []string{"business_date", "location_id"},
			TemplateFile: "tier2/daily_location_labor.sql",
			Upstreams:    []string{"daily_location_sales"},
			DateColumn:   "business_date",
		},
		{
			Name:         "daily_location_labor_by_role",
			Tier:         models.TierDaily,
			Grain:        []string{"business_date", "location_id", "employee_group_id"},
			TemplateFile: "tier2/daily_location_labor_by_role.sql",
			DateColumn:   "business_date",
		},
		{
			Name:           "daily_location_sick_leave",
			Tier:           models.TierDaily,
			Grain:          []string{"business_date", "location_id", "absence_category"},
			TemplateFile:   "tier2/daily_location_sick_leave.sql",
			DiscoveryGated: true,
		},
		{
			Name:         "daily_location_labor_hourly",
			Tier:         models.TierDaily,
			Grain:        []string{"business_date", "location_id", "hour_of_day"},
			TemplateFile: "tier2/daily_location_labor_hourly.sql",
			DateColumn:   "business_date",
		},

		// Tier 3 - trailing metrics and benchmarks
		{
			Name:         "location_trailing_metrics",
			Tier:         models.TierSnapshot,
			Grain:        []string{"location_id", "window_days"},
			TemplateFile: "tier3/location_trailing_metrics.sql",
			Upstreams:    []string{"daily_location_sales", "daily_location_labor"},
		},
		{
			Name:         "location_group_mix_trailing",
			Tier:         models.TierSnapshot,
			Grain:        []string{"location_id", "group_key", "window_days"},
			TemplateFile: "tier3/location_group_mix_trailing.sql",
			Upstreams:    []string{"daily_location_group_mix", "daily_fleet_group_mix"},
		},
		{
			Name:         "fleet_benchmarks",
			Tier:         models.TierSnapshot,
			Grain:        []string{"metric_key", "window_days"},
			TemplateFile: "tier3/fleet_benchmarks.sql",
			Upstreams:    []string{"location_trailing_metrics"},
		},
		{
			Name:         "daypart_benchmarks",
			Tier:         models.TierSnapshot,
			Grain:        []string{"daypart_key", "window_days"},
			TemplateFile: "tier3/daypart_benchmarks.sql",
			Upstreams:    []string{"daily_location_daypart"},
		},
		{
			Name:           "location_sick_leave_trailing",
			Tier:           models.TierSnapshot,
			Grain:          []string{"location_id", "window_days"},
			TemplateFile:   "tier3/location_sick_leave_trailing.sql",
			Upstreams:      []string{"daily_location_sick_leave", "daily_location_labor"},
			DiscoveryGated: true,
		},
		{
			Name:         "location_labor_efficiency_trailing",
			Tier:         models.TierSnapshot,
			Grain:        []string{"location_id", "window_days"},
			TemplateFile: "tier3/location_labor_efficiency_trailing.sql",
			Upstreams:    []string{"daily_location_labor"},
		},
		{
			Name:         "hourly_staffing_benchmarks",
			Tier:         models.TierSnapshot,
			Grain:        []string{"location_id", "day_of_week", "hour_of_day"},
			TemplateFile: "tier3/hourly_staffing_benchmarks.sql",
			Upstreams:    []string{"daily_location_labor_hourly", "config_parameters"},
		},
	}
}
