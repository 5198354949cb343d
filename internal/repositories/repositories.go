// package repositories provides SQLite persistence for run history and published documents.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// scanner is satisfied by [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers provide human-readable ordering for runs (e.g., run #42).
func NextSequence(ctx context.Context, db *sql.DB, table string) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequenceTable := table + "_sequence"

	_, err = tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable))
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return sequence, nil
}
