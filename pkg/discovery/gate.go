package discovery

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kitchensight/analytics-engine/pkg/apperrors"
	"github.com/kitchensight/analytics-engine/pkg/database"
	"github.com/kitchensight/analytics-engine/pkg/models"
)

// Gate decides whether a discovery-gated table should be populated or only
// created with its fixed schema.
type Gate interface {
	// ShouldPopulate probes the source for the table's data domain.
	// Non-gated tables always populate without touching the source.
	ShouldPopulate(ctx context.Context, def models.TableDefinition) (models.PopulationDecision, error)
}

type gate struct {
	source       database.Querier
	rules        *RuleSet
	sourcePrefix string
	logger       *zap.Logger

	// absenceAvailable caches the probe result per process; the answer
	// cannot change mid-run. probeMu serializes concurrent gated tables
	// so the source is probed once.
	probeMu          sync.Mutex
	probed           bool
	absenceAvailable bool
}

// NewGate creates a discovery gate reading through source. sourceAlias is
// the database prefix for source relations, empty for same-warehouse
// deployments.
func NewGate(source database.Querier, rules *RuleSet, sourceAlias string, logger *zap.Logger) Gate {
	prefix := ""
	if sourceAlias != "" {
		prefix = sourceAlias + "."
	}
	return &gate{
		source:       source,
		rules:        rules,
		sourcePrefix: prefix,
		logger:       logger.Named("discovery-gate"),
	}
}

func (g *gate) ShouldPopulate(ctx context.Context, def models.TableDefinition) (models.PopulationDecision, error) {
	if !def.DiscoveryGated {
		return models.Populate, nil
	}

	g.probeMu.Lock()
	defer g.probeMu.Unlock()

	if !g.probed {
		available, err := g.probeAbsenceData(ctx)
		if err != nil {
			// A read-only credential missing access to workforce
			// relations means the domain is unavailable for this
			// tenant, not that the run is broken.
			if apperrors.IsPermission(err) {
				g.logger.Warn("Source denied discovery probe, leaving gated tables schema-only",
					zap.String("table", def.Name),
					zap.Error(err))
				g.probed = true
				g.absenceAvailable = false
				return models.SchemaOnly, nil
			}
			return models.SchemaOnly, fmt.Errorf("discovery probe failed: %w", err)
		}
		g.probed = true
		g.absenceAvailable = available
	}

	if !g.absenceAvailable {
		g.logger.Info("No absence data in source, creating table schema-only",
			zap.String("table", def.Name))
		return models.SchemaOnly, nil
	}
	return models.Populate, nil
}

// probeAbsenceData checks whether at least one shift exists whose shift-type
// label matches an absence rule.
func (g *gate) probeAbsenceData(ctx context.Context) (bool, error) {
	query := fmt.Sprintf(`
		SELECT st.name, COUNT(s.id) AS shift_count
		FROM %[1]splanday.shift_types st
		LEFT JOIN %[1]splanday.shifts s
			ON s.shift_type_id = st.id AND s.portal_name = st.portal_name
		GROUP BY st.name`, g.sourcePrefix)

	rows, err := g.source.FetchAll(ctx, query)
	if err != nil {
		return false, err
	}

	for _, row := range rows {
		label, _ := row["name"].(string)
		category, _ := g.rules.Classify(label)
		if category == models.AbsenceUnmapped {
			continue
		}
		if asInt64(row["shift_count"]) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// asInt64 normalizes the numeric types drivers hand back for aggregates.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
