package database

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/tbourn/go-backend-kit/internal/apperr"
)

// MsgSQLError is the message carried by Database errors raised while
// executing a statement. The driver error stays reachable through Unwrap.
const MsgSQLError = "SQL ERROR"

// Row is a generic decoded row, keyed by column name.
type Row = map[string]any

// Acquire checks out a dedicated connection from the pool. The caller must
// Close it to return it to the pool.
func Acquire(ctx context.Context, db *gorm.DB) (*sql.Conn, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperr.DatabaseCause(err.Error(), err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, apperr.DatabaseCause(err.Error(), err)
	}
	return conn, nil
}

// SearchMany runs stmt with args on one pooled connection and decodes every
// row into T (a struct, Row or map[string]any). No rows yields an empty,
// non-nil slice.
func SearchMany[T any](ctx context.Context, db *gorm.DB, stmt string, args ...any) ([]T, error) {
	out := []T{}
	err := onConn(ctx, db, "search_many", stmt, func(tx *gorm.DB) error {
		return tx.Raw(stmt, args...).Scan(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SearchOne runs stmt and decodes the first row into T. It returns nil and no
// error when the statement yields no rows.
func SearchOne[T any](ctx context.Context, db *gorm.DB, stmt string, args ...any) (*T, error) {
	var found *T
	err := onConn(ctx, db, "search_one", stmt, func(tx *gorm.DB) error {
		rows, err := tx.Raw(stmt, args...).Rows()
		if err != nil {
			return err
		}
		defer rows.Close()

		if rows.Next() {
			var v T
			if err := tx.ScanRows(rows, &v); err != nil {
				return err
			}
			found = &v
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Mutate runs an insert, update or delete and returns the affected row count.
func Mutate(ctx context.Context, db *gorm.DB, stmt string, args ...any) (uint64, error) {
	var affected int64
	err := onConn(ctx, db, "mutate", stmt, func(tx *gorm.DB) error {
		res := tx.Exec(stmt, args...)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	return uint64(affected), nil
}

// onConn pins fn to a single pooled connection. Checkout failures keep the
// driver text; execution failures are reported as MsgSQLError with the
// driver error logged and attached as the cause.
func onConn(ctx context.Context, db *gorm.DB, op, stmt string, fn func(tx *gorm.DB) error) error {
	var execErr error
	err := db.WithContext(ctx).Connection(func(tx *gorm.DB) error {
		execErr = fn(tx)
		return nil
	})
	if err != nil {
		return apperr.DatabaseCause(err.Error(), err)
	}
	if execErr != nil {
		ev := loggerFrom(ctx).Error().
			Err(execErr).
			Str("op", op).
			Str("operation", InferOperation(stmt))
		if code := DriverCode(execErr); code != "" {
			ev = ev.Str("driver_code", code)
		}
		ev.Msg("sql statement failed")
		return apperr.DatabaseCause(MsgSQLError, execErr)
	}
	return nil
}
