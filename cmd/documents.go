package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fanx/internal/repositories"
	"github.com/desertthunder/fanx/internal/shared"
)

// DocumentsList prints the ids of documents in the sqlite sink.
func (r *Runner) DocumentsList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ids, err := repositories.NewDocumentRepository(db).List(ctx, cmd.String("prefix"))
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.writePlain("%s\n", id); err != nil {
			return err
		}
	}
	return nil
}

// DocumentsGet prints one document from the sqlite sink with its revision.
func (r *Runner) DocumentsGet(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("document-id")
	if id == "" {
		return fmt.Errorf("%w: document id", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	doc, err := repositories.NewDocumentRepository(db).Get(ctx, id)
	if err != nil {
		return err
	}
	return r.writeJSON(doc, cmd.Bool("pretty"))
}
