package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so lookups can run inside
// or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction, committing if it returns nil.
// The database is opened with _txlock=immediate, so BeginTx holds the write
// lock for the whole of fn.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		if isBusy(err) {
			return &ConflictError{Reason: "database is locked by another writer"}
		}
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isBusy(err) {
			return &ConflictError{Reason: "database is locked by another writer"}
		}
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
