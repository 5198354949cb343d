package shared

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// NewDatabase opens a connection to a SQLite database at the specified path.
// The path can be ":memory:" for an in-memory database.
// Returns an open database connection or an error if connection fails.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
//
// SQLite serialises writers, so a single open connection is the usual choice.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}

// OpenDatabase opens, configures and migrates the database described by cfg.
func OpenDatabase(cfg DatabaseConfig) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: database.path is empty", ErrMissingConfig)
	}

	db, err := NewDatabase(cfg.Path)
	if err != nil {
		return nil, err
	}
	ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
