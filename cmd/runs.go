package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fanx/internal/formatter"
	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/repositories"
	"github.com/desertthunder/fanx/internal/shared"
)

func (r *Runner) openDatabase(cmd *cli.Command) (*sql.DB, error) {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	return shared.OpenDatabase(config.Database)
}

// RunsList prints recorded runs, newest first.
func (r *Runner) RunsList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(ctx, repositories.RunCriteria{
		TargetType: models.TargetType(cmd.String("type")),
		TargetID:   cmd.String("id"),
		Status:     models.RunStatus(cmd.String("status")),
		Limit:      cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}
	if len(runs) == 0 {
		return r.writePlain("No runs recorded\n")
	}
	return r.writePlain("%s\n", formatter.RunsTable(runs))
}

// RunsShow prints one recorded run.
func (r *Runner) RunsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("run-id")
	if id == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := repositories.NewRunRepository(db).Get(ctx, id)
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Run #%d %s", run.Sequence, run.ID))
	return r.writePlain("%s\n", formatter.RunsTable([]*models.Run{run}))
}
