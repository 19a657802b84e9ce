package models

// Tier identifies a table's layer in the warehouse.
//
// Tier 1 holds support/lookup tables seeded ahead of everything else.
// Tier 2 holds daily-grain cubes (one row per day x location x dimension).
// Tier 3 holds snapshot tables aggregating trailing windows or fleet-wide
// benchmarks, recomputed wholesale each run.
type Tier int

const (
	TierSupport  Tier = 1
	TierDaily    Tier = 2
	TierSnapshot Tier = 3
)

// TableDefinition describes one derived table. Immutable once loaded for a
// run. Dependencies are explicit metadata, never parsed from query text.
type TableDefinition struct {
	// Name is the unqualified table name inside the target schema.
	Name string

	// Tier orders the table's layer; a table may only depend on tables of
	// the same or a lower tier.
	Tier Tier

	// Grain is the ordered list of key columns.
	Grain []string

	// TemplateFile is the embedded SQL file path relative to the template
	// root, e.g. "tier2/daily_location_sales.sql".
	TemplateFile string

	// Upstreams lists the names of tables this one reads from.
	Upstreams []string

	// DiscoveryGated marks tables whose population depends on a runtime
	// probe of source data availability.
	DiscoveryGated bool

	// DateColumn is the source column bounded by the incremental date
	// filter. Empty for tables with no incremental narrowing.
	DateColumn string
}

// PopulationDecision is the discovery gate's verdict for a gated table.
type PopulationDecision int

const (
	// Populate runs the full materialization.
	Populate PopulationDecision = iota
	// SchemaOnly creates the table with its declared fixed columns and
	// zero rows, so downstream joins never fail on a missing relation.
	SchemaOnly
)

func (d PopulationDecision) String() string {
	if d == SchemaOnly {
		return "schema-only"
	}
	return "populate"
}
