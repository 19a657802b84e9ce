package repositories

import (
	"context"
	"fmt"

	"github.com/kitchensight/analytics-engine/pkg/database"
	"github.com/kitchensight/analytics-engine/pkg/models"
)

// ConfigParameterRepository loads the time-versioned staffing parameters.
type ConfigParameterRepository interface {
	// LoadAll returns every parameter row ordered by key then valid_from.
	LoadAll(ctx context.Context) ([]models.ConfigParameter, error)
}

type configParameterRepository struct {
	db     *database.DB
	schema string
}

// NewConfigParameterRepository creates a config parameter repository reading
// from the given target schema.
func NewConfigParameterRepository(db *database.DB, schema string) ConfigParameterRepository {
	return &configParameterRepository{db: db, schema: schema}
}

func (r *configParameterRepository) LoadAll(ctx context.Context) ([]models.ConfigParameter, error) {
	query := fmt.Sprintf(`
		SELECT param_key, param_value, valid_from, valid_to, COALESCE(description, '')
		FROM %s.config_parameters
		ORDER BY param_key, valid_from`, r.schema)

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load config parameters: %w", err)
	}
	defer rows.Close()

	var params []models.ConfigParameter
	for rows.Next() {
		var p models.ConfigParameter
		if err := rows.Scan(&p.Key, &p.Value, &p.ValidFrom, &p.ValidTo, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan config parameter: %w", err)
		}
		params = append(params, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config parameters: %w", err)
	}
	return params, nil
}
