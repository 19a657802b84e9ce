package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kitchensight/analytics-engine/pkg/database"
	"github.com/kitchensight/analytics-engine/pkg/models"
)

// AbsenceMappingRepository persists the shift-type classifications discovery
// produces. The table always reflects the latest discovery run in full.
type AbsenceMappingRepository interface {
	ReplaceAll(ctx context.Context, mappings []models.AbsenceTypeMapping) error
	LoadAll(ctx context.Context) ([]models.AbsenceTypeMapping, error)
}

type absenceMappingRepository struct {
	db *database.DB
}

// NewAbsenceMappingRepository creates an absence mapping repository.
func NewAbsenceMappingRepository(db *database.DB) AbsenceMappingRepository {
	return &absenceMappingRepository{db: db}
}

// ReplaceAll swaps the full mapping set in one transaction so readers never
// observe a half-written classification.
func (r *absenceMappingRepository) ReplaceAll(ctx context.Context, mappings []models.AbsenceTypeMapping) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin mapping transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM absence_type_mapping`); err != nil {
		return fmt.Errorf("failed to clear absence mappings: %w", err)
	}

	if len(mappings) > 0 {
		batch := &pgx.Batch{}
		query := `
			INSERT INTO absence_type_mapping
				(shift_type_id, portal_name, label, absence_category, cost_bearer, shift_count, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())`
		for _, m := range mappings {
			batch.Queue(query, m.ShiftTypeID, m.PortalName, m.Label, m.Category, m.CostBearer, m.ShiftCount)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert absence mappings: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit absence mappings: %w", err)
	}
	return nil
}

func (r *absenceMappingRepository) LoadAll(ctx context.Context) ([]models.AbsenceTypeMapping, error) {
	query := `
		SELECT shift_type_id, portal_name, label, absence_category, cost_bearer, shift_count
		FROM absence_type_mapping
		ORDER BY portal_name, shift_type_id`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load absence mappings: %w", err)
	}
	defer rows.Close()

	var mappings []models.AbsenceTypeMapping
	for rows.Next() {
		var m models.AbsenceTypeMapping
		if err := rows.Scan(&m.ShiftTypeID, &m.PortalName, &m.Label, &m.Category, &m.CostBearer, &m.ShiftCount); err != nil {
			return nil, fmt.Errorf("failed to scan absence mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read absence mappings: %w", err)
	}
	return mappings, nil
}
