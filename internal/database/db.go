package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/farmgate/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes mapped to model sentinels
var sqlStateErrors = map[string]error{
	"23505": models.ErrConflict,   // unique_violation
	"23503": models.ErrBadRequest, // foreign_key_violation
	"23502": models.ErrBadRequest, // not_null_violation
	"23514": models.ErrBadRequest, // check_violation
}

// MapPostgresError translates driver errors into model sentinels. Unknown
// errors pass through unchanged.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if mapped, ok := sqlStateErrors[pgErr.Code]; ok {
			return mapped
		}
	}

	return err
}

// WithTransaction runs fn inside a transaction. fn's error rolls back and is
// returned as is, so sentinels survive errors.Is.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", MapPostgresError(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", MapPostgresError(commitErr))
		}
	}()

	return fn(tx)
}
