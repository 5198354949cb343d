package main

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fanx/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "err", err)
	}

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "fanx",
		Usage:    "Enrich event and brand audiences with likes, gender and music fans",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
