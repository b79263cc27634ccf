package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bingocore/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// queryable abstracts over a pool and a transaction so repositories work in
// both contexts.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// classifyErr wraps retryable postgres failures in ErrTransientStore so
// callers can distinguish them from permanent ones. Connection-class errors,
// serialization failures and deadlocks are worth retrying; everything else is
// not.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"), // connection exceptions
			pgErr.Code == "40001", // serialization_failure
			pgErr.Code == "40P01", // deadlock_detected
			pgErr.Code == "57P01": // admin_shutdown
			return fmt.Errorf("%w: %v", models.ErrTransientStore, err)
		}
	}
	return err
}
