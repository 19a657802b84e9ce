package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kitchensight/analytics-engine/pkg/apperrors"
	"github.com/kitchensight/analytics-engine/pkg/models"
	"github.com/kitchensight/analytics-engine/pkg/repositories"
)

// ConfigResolver answers "what was parameter X worth on date D" against the
// temporally-versioned config_parameters timeline.
type ConfigResolver interface {
	// Load reads and validates the full parameter set. Overlapping
	// validity windows for one key are a configuration error.
	Load(ctx context.Context) error
	// Resolve returns the value valid at asOf, or ErrParameterNotFound
	// when no window covers the instant.
	Resolve(key string, asOf time.Time) (string, error)
	// Keys returns the loaded parameter keys, sorted.
	Keys() []string
}

type configResolver struct {
	repo   repositories.ConfigParameterRepository
	logger *zap.Logger

	timelines map[string][]models.ConfigParameter
}

// NewConfigResolver creates a resolver over the config parameter repository.
func NewConfigResolver(repo repositories.ConfigParameterRepository, logger *zap.Logger) ConfigResolver {
	return &configResolver{
		repo:   repo,
		logger: logger.Named("config-resolver"),
	}
}

func (r *configResolver) Load(ctx context.Context) error {
	params, err := r.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load parameter timelines: %w", err)
	}

	timelines := make(map[string][]models.ConfigParameter)
	for _, p := range params {
		timelines[p.Key] = append(timelines[p.Key], p)
	}

	// Newest window first, so Resolve takes the first covering row.
	for key, rows := range timelines {
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].ValidFrom.After(rows[j].ValidFrom)
		})
		for i := range rows {
			for j := i + 1; j < len(rows); j++ {
				if rows[i].Overlaps(&rows[j]) {
					return &apperrors.OverlapError{Key: key}
				}
			}
		}
		timelines[key] = rows
	}

	r.timelines = timelines
	r.logger.Info("Loaded config parameter timelines",
		zap.Int("keys", len(timelines)),
		zap.Int("rows", len(params)))
	return nil
}

func (r *configResolver) Resolve(key string, asOf time.Time) (string, error) {
	rows, ok := r.timelines[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", apperrors.ErrParameterNotFound, key)
	}
	for i := range rows {
		if rows[i].Covers(asOf) {
			return rows[i].Value, nil
		}
	}
	return "", fmt.Errorf("%w: %s as of %s", apperrors.ErrParameterNotFound, key, asOf.Format("2006-01-02"))
}

func (r *configResolver) Keys() []string {
	keys := make([]string, 0, len(r.timelines))
	for k := range r.timelines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
