package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier reads rows from a store as generic maps. Both the target pool and
// the standalone source handle implement it, so discovery probes run the same
// way in split- and same-warehouse deployments.
type Querier interface {
	// FetchAll executes a query and returns all rows keyed by column name.
	FetchAll(ctx context.Context, query string) ([]map[string]any, error)
	// FetchOne executes a query and returns the first row, or nil.
	FetchOne(ctx context.Context, query string) (map[string]any, error)
}

// Executor runs statements against the target warehouse.
type Executor interface {
	Exec(ctx context.Context, stmt string) error
	CountRows(ctx context.Context, qualifiedTable string) (int64, error)
}

// DB wraps a pgxpool connection pool for the target warehouse.
type DB struct {
	*pgxpool.Pool
}

// PoolConfig holds target connection configuration.
type PoolConfig struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewConnection creates a new target connection pool.
func NewConnection(ctx context.Context, cfg *PoolConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 10
	}

	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	if poolConfig.MaxConnLifetime == 0 {
		poolConfig.MaxConnLifetime = time.Hour
	}

	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if poolConfig.MaxConnIdleTime == 0 {
		poolConfig.MaxConnIdleTime = time.Minute * 30
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// Exec runs one statement, classifying provider errors into the engine's
// taxonomy.
func (db *DB) Exec(ctx context.Context, stmt string) error {
	if _, err := db.Pool.Exec(ctx, stmt); err != nil {
		return classifyPgError(err)
	}
	return nil
}

// CountRows returns the row count of a fully qualified table.
func (db *DB) CountRows(ctx context.Context, qualifiedTable string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", qualifiedTable)
	if err := db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, classifyPgError(err)
	}
	return count, nil
}

// FetchAll executes a query and returns all rows keyed by column name.
func (db *DB) FetchAll(ctx context.Context, query string) ([]map[string]any, error) {
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[string(fd.Name)] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError(err)
	}
	return out, nil
}

// FetchOne executes a query and returns the first row, or nil when the
// result set is empty.
func (db *DB) FetchOne(ctx context.Context, query string) (map[string]any, error) {
	rows, err := db.FetchAll(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

var (
	_ Querier  = (*DB)(nil)
	_ Executor = (*DB)(nil)
)
