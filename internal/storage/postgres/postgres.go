// Package postgres stores registry state in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"price-registry/internal/storage"
)

const applicationName = "price-registry"

// Pool wraps pgxpool.Pool so stores and migrations share one type.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects to dsn and pings the server. The application name is
// set unless the dsn already carries one.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if _, ok := config.ConnConfig.RuntimeParams["application_name"]; !ok {
		config.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// PostgreSQL error codes rejected as bad input rather than server faults.
const (
	pgErrNumericOutOfRange = "22003" // numeric_value_out_of_range
	pgErrNotNullViolation  = "23502" // not_null_violation
	pgErrUniqueViolation   = "23505" // unique_violation
	pgErrCheckViolation    = "23514" // check_violation
)

// classifyApplyError maps constraint violations raised while applying a
// mutation to storage.ErrInvalidInput. Other errors are wrapped as is.
func classifyApplyError(stmt int, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrNumericOutOfRange, pgErrNotNullViolation, pgErrUniqueViolation, pgErrCheckViolation:
			return fmt.Errorf("%w: statement %d: %s (%s)", storage.ErrInvalidInput, stmt, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("apply statement %d: %w", stmt, err)
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
