package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kitchensight/analytics-engine/pkg/apperrors"
)

// classifyPgError maps provider error codes onto the engine's taxonomy so
// the retry layer and the orchestrator act on types, not strings.
func classifyPgError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "42501": // insufficient_privilege
		return &apperrors.PermissionError{Op: "statement execution", Err: err}
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"53300", // too_many_connections
		"57P03", // cannot_connect_now
		"08000", "08003", "08006": // connection exceptions
		return apperrors.Transient(err)
	}
	return err
}
