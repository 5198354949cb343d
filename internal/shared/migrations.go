package shared

import (
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migration represents a database migration with up and down SQL.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// loadMigrations reads the embedded sql/NNNN_name_{up,down}.sql files, sorted by version.
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}

		content, err := migrationFiles.ReadFile(path.Join("sql", name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version}
			byVersion[version] = m
		}

		switch {
		case strings.HasSuffix(rest, "_up.sql"):
			m.Name = strings.TrimSuffix(rest, "_up.sql")
			m.Up = string(content)
		case strings.HasSuffix(rest, "_down.sql"):
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("incomplete migration for version %d", m.Version)
		}
		migrations = append(migrations, *m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// RunMigrations applies every pending migration, tracking them in schema_migrations.
func RunMigrations(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := AppliedMigrations(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := migrate(db, m.Up, "INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// RollbackMigration reverts the most recently applied migration.
func RollbackMigration(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	var current sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if !current.Valid {
		return fmt.Errorf("no migrations to rollback")
	}

	for _, m := range migrations {
		if int64(m.Version) == current.Int64 {
			if err := migrate(db, m.Down, "DELETE FROM schema_migrations WHERE version = ?", m.Version); err != nil {
				return fmt.Errorf("failed to rollback migration %d: %w", m.Version, err)
			}
			return nil
		}
	}
	return fmt.Errorf("migration version %d not found", current.Int64)
}

// AppliedMigrations returns the set of versions recorded in schema_migrations.
func AppliedMigrations(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// migrate runs script statement by statement and then the bookkeeping
// statement, all inside one transaction.
func migrate(db *sql.DB, script, record string, version int) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(stripComments(script), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w\nStatement: %s", err, stmt)
		}
	}

	if _, err := tx.Exec(record, version); err != nil {
		return err
	}
	return tx.Commit()
}

// stripComments drops "--" line comments.
func stripComments(stmt string) string {
	var kept []string
	for _, line := range strings.Split(stmt, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
