package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fanx/internal/shared"
)

// SetupConfig writes config.toml from the embedded template.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return r.writePlain("✓ Config written to %s\nSecrets may also be set in .env (SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET, FANX_PROFILE_AUTH, FANX_SINK_AUTH)\n", path)
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	applied, err := shared.AppliedMigrations(db)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v (%d migrations applied)", config.Database.Path, len(applied))
	return nil
}

// SetupRollback reverts the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	r.logger.Info("rolled back latest migration", "path", config.Database.Path)
	return nil
}
