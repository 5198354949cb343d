package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/fanx/internal/formatter"
	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/repositories"
	"github.com/desertthunder/fanx/internal/services"
	"github.com/desertthunder/fanx/internal/shared"
	"github.com/desertthunder/fanx/internal/tasks"
	"github.com/desertthunder/fanx/internal/ui"
)

// parseTarget validates the target flags.
func parseTarget(id, targetType, section string) (models.Target, error) {
	target := models.Target{ID: id, Type: models.TargetType(targetType), Section: models.Section(section)}
	if id == "" {
		return target, fmt.Errorf("%w: --id", shared.ErrMissingArgument)
	}
	switch target.Type {
	case models.TargetEvent, models.TargetBrand:
	default:
		return target, fmt.Errorf("%w: --type must be event or brand, got %q", shared.ErrInvalidArgument, targetType)
	}
	switch target.Section {
	case models.SectionAll, models.SectionLikes, models.SectionGender, models.SectionMusic:
	default:
		return target, fmt.Errorf("%w: --section must be all, likes, gender or music, got %q", shared.ErrInvalidArgument, section)
	}
	return target, nil
}

// buildSink returns the configured document sink. db is only used by the sqlite sink.
func (r *Runner) buildSink(config *shared.Config, db *sql.DB) (services.DocumentSink, error) {
	switch config.Sink.Kind {
	case "couch", "":
		return services.NewCouchService(config.Sink.URL, config.Sink.Auth, r.client(config))
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("%w: sqlite sink needs a database", shared.ErrServiceUnavailable)
		}
		return repositories.NewDocumentRepository(db), nil
	case "s3":
		return repositories.NewS3Sink(config.Sink.S3)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown sink kind %q", shared.ErrInvalidConfig, config.Sink.Kind)
	}
}

// catalogLimiter converts fetch.catalog_rate_limit (requests per second) into
// a limiter. Zero disables limiting.
func catalogLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// runLogger builds the logger for one run. The TUI owns the terminal, so its
// logs only go to the run log file.
func (r *Runner) runLogger(config *shared.Config, target models.Target, includeIDs, toFile, tui bool) (*log.Logger, io.Closer, error) {
	var writers []io.Writer
	if !tui {
		writers = append(writers, os.Stderr)
	}

	var closer io.Closer
	if toFile {
		f, err := shared.OpenRunLog(config.Log.Dir, string(target.Type), target.ID, string(target.Section), strconv.FormatBool(includeIDs))
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
		closer = f
	}

	var w io.Writer = io.Discard
	if len(writers) > 0 {
		w = io.MultiWriter(writers...)
	}

	logger := shared.NewLogger(w)
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))
	return logger, closer, nil
}

// Run executes the enrichment pipeline for one target and prints its summary.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	target, err := parseTarget(cmd.String("id"), cmd.String("type"), cmd.String("section"))
	if err != nil {
		return err
	}

	opts := tasks.RunOptions{
		Target:     target,
		IncludeIDs: cmd.Bool("include-ids"),
		IDsFile:    cmd.String("ids-file"),
		IDs:        shared.SplitIDs(cmd.String("ids")),
	}

	toFile := config.Log.File
	if cmd.IsSet("log-file") {
		toFile = cmd.Bool("log-file")
	}
	useTUI := cmd.Bool("tui") && isatty.IsTerminal(os.Stdout.Fd())
	if cmd.Bool("tui") && !useTUI {
		r.logger.Warn("stdout is not a terminal, running without the TUI")
	}

	logger, closer, err := r.runLogger(config, target, opts.IncludeIDs, toFile, useTUI)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	var recorder tasks.RunRecorder
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		logger.Warn("run history unavailable", "err", err)
	} else {
		defer db.Close()
		recorder = repositories.NewRunRepository(db)
	}

	sink, err := r.buildSink(config, db)
	if err != nil {
		return err
	}

	client := r.client(config)
	profiles, err := services.NewProfileService(config.Sources, client)
	if err != nil {
		return err
	}

	catalog, err := services.NewSpotifyService(
		context.WithValue(ctx, oauth2.HTTPClient, client),
		config.Spotify,
		catalogLimiter(config.Fetch.CatalogRateLimit),
	)
	if err != nil {
		return err
	}

	engine := tasks.NewEnrichEngine(tasks.EngineOpts{
		Profiles: profiles,
		Catalog:  catalog,
		Sink:     sink,
		Runs:     recorder,
		Config:   config,
		Logger:   logger,
	})

	var result *tasks.RunResult
	if useTUI {
		result, err = r.runInteractive(ctx, engine, opts)
	} else {
		result, err = r.runPlain(ctx, engine, opts, logger)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(result, true); err != nil {
			return err
		}
	} else {
		r.writePlain("%s\n", formatter.Summary(result))
		if len(result.MusicApps) > 0 {
			r.writePlain("%s\n", formatter.MusicApps(result.MusicApps))
		}
		r.writePlain("%s\n", formatter.Timings(result.Timings))
	}

	if dir := cmd.String("output-dir"); dir != "" {
		export, err := formatter.WriteRunExport(result, dir)
		if err != nil {
			return fmt.Errorf("failed to export run: %w", err)
		}
		logger.Info("run exported", "dir", export.Directory, "files", len(export.Files))
	}

	return nil
}

// runPlain logs progress updates while the engine runs.
func (r *Runner) runPlain(ctx context.Context, engine tasks.Engine, opts tasks.RunOptions, logger *log.Logger) (*tasks.RunResult, error) {
	progress := make(chan tasks.ProgressUpdate, 100)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			logger.Debug(update.Message, "stage", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	result, err := engine.Run(ctx, opts, progress)
	close(progress)
	wg.Wait()
	return result, err
}

// runInteractive shows the bubbletea progress model until the run completes and the user quits.
func (r *Runner) runInteractive(ctx context.Context, engine tasks.Engine, opts tasks.RunOptions) (*tasks.RunResult, error) {
	model := ui.NewModel(ctx, engine, opts)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}
	return model.Result()
}
