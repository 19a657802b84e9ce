package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kitchensight/analytics-engine/pkg/database"
	"github.com/kitchensight/analytics-engine/pkg/models"
)

// RefreshLogRepository defines the interface for refresh audit log access.
// The log is append-only: rows are inserted when a table starts and mutated
// exactly once by Finish; nothing ever deletes them.
type RefreshLogRepository interface {
	// Start appends a row for a table entering Running and returns its id.
	Start(ctx context.Context, entry *models.RefreshLogEntry) (int64, error)
	// Finish records the terminal state for a previously started row.
	Finish(ctx context.Context, id int64, status models.TableStatus, rowCount *int64, errorMessage *string) error
	// Skipped appends an already-terminal row for a table that never ran.
	Skipped(ctx context.Context, entry *models.RefreshLogEntry, reason string) error
	// ListByRun returns all rows of one run ordered by id.
	ListByRun(ctx context.Context, runID uuid.UUID) ([]models.RefreshLogEntry, error)
	// Recent returns the latest rows for one table, newest first.
	Recent(ctx context.Context, tableName string, limit int) ([]models.RefreshLogEntry, error)
}

type refreshLogRepository struct {
	db *database.DB
}

// NewRefreshLogRepository creates a refresh log repository.
func NewRefreshLogRepository(db *database.DB) RefreshLogRepository {
	return &refreshLogRepository{db: db}
}

func (r *refreshLogRepository) Start(ctx context.Context, entry *models.RefreshLogEntry) (int64, error) {
	query := `
		INSERT INTO refresh_log (run_id, table_name, mode, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id int64
	err := r.db.Pool.QueryRow(ctx, query,
		entry.RunID,
		entry.TableName,
		entry.Mode,
		models.TableStatusRunning,
		entry.StartedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to append refresh log row: %w", err)
	}
	return id, nil
}

func (r *refreshLogRepository) Finish(ctx context.Context, id int64, status models.TableStatus, rowCount *int64, errorMessage *string) error {
	query := `
		UPDATE refresh_log
		SET status = $2,
		    finished_at = $3,
		    duration_ms = (EXTRACT(EPOCH FROM ($3::timestamptz - started_at)) * 1000)::bigint,
		    row_count = $4,
		    error_message = $5
		WHERE id = $1`

	finishedAt := time.Now().UTC()
	tag, err := r.db.Pool.Exec(ctx, query, id, status, finishedAt, rowCount, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to finish refresh log row %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("refresh log row %d not found", id)
	}
	return nil
}

func (r *refreshLogRepository) Skipped(ctx context.Context, entry *models.RefreshLogEntry, reason string) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO refresh_log
			(run_id, table_name, mode, status, started_at, finished_at, duration_ms, error_message)
		VALUES ($1, $2, $3, $4, $5, $5, 0, $6)`

	_, err := r.db.Pool.Exec(ctx, query,
		entry.RunID,
		entry.TableName,
		entry.Mode,
		models.TableStatusSkipped,
		now,
		reason,
	)
	if err != nil {
		return fmt.Errorf("failed to append skipped refresh log row: %w", err)
	}
	return nil
}

func (r *refreshLogRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.RefreshLogEntry, error) {
	query := `
		SELECT id, run_id, table_name, mode, status, started_at,
		       finished_at, duration_ms, row_count, error_message
		FROM refresh_log
		WHERE run_id = $1
		ORDER BY id`

	rows, err := r.db.Pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh log for run %s: %w", runID, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (r *refreshLogRepository) Recent(ctx context.Context, tableName string, limit int) ([]models.RefreshLogEntry, error) {
	query := `
		SELECT id, run_id, table_name, mode, status, started_at,
		       finished_at, duration_ms, row_count, error_message
		FROM refresh_log
		WHERE table_name = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, tableName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh log for table %s: %w", tableName, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEntries(rows pgxRows) ([]models.RefreshLogEntry, error) {
	var entries []models.RefreshLogEntry
	for rows.Next() {
		var e models.RefreshLogEntry
		if err := rows.Scan(
			&e.ID, &e.RunID, &e.TableName, &e.Mode, &e.Status,
			&e.StartedAt, &e.FinishedAt, &e.DurationMs, &e.RowCount, &e.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan refresh log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read refresh log rows: %w", err)
	}
	return entries, nil
}
