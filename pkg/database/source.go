package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"  // postgres source driver
	_ "github.com/microsoft/go-mssqldb" // sqlserver source driver
)

// SourceDB is a read-only handle on the raw transactional and workforce
// relations. The engine never writes through it. Used only in split-warehouse
// deployments; same-warehouse reads go through the target pool.
type SourceDB struct {
	db     *sql.DB
	driver string
}

// driverNames maps configured driver identifiers to database/sql driver names.
var driverNames = map[string]string{
	"postgres":  "pgx",
	"sqlserver": "sqlserver",
}

// OpenSource opens the source store with the configured driver.
func OpenSource(ctx context.Context, driver, dsn string) (*SourceDB, error) {
	name, ok := driverNames[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported source driver %q", driver)
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open source store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping source store: %w", err)
	}
	return &SourceDB{db: db, driver: driver}, nil
}

// Close closes the source handle.
func (s *SourceDB) Close() error {
	return s.db.Close()
}

// FetchAll executes a query and returns all rows keyed by column name.
func (s *SourceDB) FetchAll(ctx context.Context, query string) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("source query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read source columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			// database/sql hands back []byte for text columns on some
			// drivers; normalize to string for the probe consumers.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source rows: %w", err)
	}
	return out, nil
}

// FetchOne executes a query and returns the first row, or nil.
func (s *SourceDB) FetchOne(ctx context.Context, query string) (map[string]any, error) {
	rows, err := s.FetchAll(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

var _ Querier = (*SourceDB)(nil)
