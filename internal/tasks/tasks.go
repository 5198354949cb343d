package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/fanx/internal/batch"
	"github.com/desertthunder/fanx/internal/cache"
	"github.com/desertthunder/fanx/internal/index"
	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/services"
	"github.com/desertthunder/fanx/internal/shared"
)

// Engine runs the enrichment pipeline for one target.
type Engine interface {
	// Run fetches every customer of the target, resolves their music listens against the catalog,
	// counts artist fans and publishes the compacted and full documents.
	Run(ctx context.Context, opts RunOptions, progress chan<- ProgressUpdate) (*RunResult, error)
}

// RunRecorder persists run summaries. Implemented by the SQLite run repository.
type RunRecorder interface {
	Create(ctx context.Context, run *models.Run) error
	Finish(ctx context.Context, run *models.Run) error
}

// RunOptions selects the audience and output of one run.
type RunOptions struct {
	Target     models.Target
	IncludeIDs bool     // publish customerIDs with the documents
	IDsFile    string   // read customer ids from a file instead of the id source
	IDs        []string // explicit customer ids; takes precedence over IDsFile
}

// StageTiming records how long one stage took.
type StageTiming struct {
	Phase   Phase
	Elapsed time.Duration
}

// RunResult contains everything a run produced.
type RunResult struct {
	RunID  string
	Target models.Target

	Customers         int
	CustomerSucceeded []string
	CustomerNotFound  []string
	CustomerFailed    []string

	Gender       models.Gender
	TotalLikes   int
	TotalListens int
	MusicApps    map[string]int

	Likes          []*models.Like
	CompactedLikes []*models.Like

	Tracks        int
	CachedTracks  int
	TrackNotFound []string
	TrackFailed   []string

	Artists          int
	FilteredArtists  []*models.FilteredArtist
	CompactedArtists []*models.FilteredArtist
	CachedArtists    int
	ImageNotFound    []string
	ImageFailed      []string

	CacheErrors []string
	Documents   []*models.Document
	Published   []string
	Timings     []StageTiming

	StartedAt  time.Time
	FinishedAt time.Time
}

// Elapsed returns the total run time.
func (r *RunResult) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunContext holds the working state of one run. Every collection belongs to
// exactly one run and is discarded with it.
type RunContext struct {
	ID          string
	Options     RunOptions
	CustomerIDs []string

	Likes    *index.Collection[string, *models.Like]
	Tracks   *index.Collection[string, *models.Track]
	Artists  *index.Collection[string, *models.Artist]
	Filtered *index.Collection[string, *models.FilteredArtist]

	TrackCache  *cache.Store
	ArtistCache *cache.Store

	Result *RunResult

	progress chan<- ProgressUpdate
	logger   *log.Logger
}

// NewRunContext returns an empty context for opts.
func NewRunContext(id string, opts RunOptions, logger *log.Logger) *RunContext {
	if logger == nil {
		logger = log.Default()
	}
	return &RunContext{
		ID:       id,
		Options:  opts,
		Likes:    index.New[string, *models.Like](0),
		Tracks:   index.New[string, *models.Track](0),
		Artists:  index.New[string, *models.Artist](0),
		Filtered: index.New[string, *models.FilteredArtist](0),
		Result: &RunResult{
			RunID:     id,
			Target:    opts.Target,
			MusicApps: map[string]int{},
		},
		logger: shared.WithLogger(logger, "run", id),
	}
}

func (rc *RunContext) section() models.Section {
	return rc.Options.Target.Section
}

// EnrichEngine implements [Engine].
type EnrichEngine struct {
	profiles services.ProfileSource
	catalog  services.CatalogSource
	sink     services.DocumentSink
	runs     RunRecorder
	config   *shared.Config
	logger   *log.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// EngineOpts wires the collaborators of an [EnrichEngine]. Sink and Runs are optional.
type EngineOpts struct {
	Profiles services.ProfileSource
	Catalog  services.CatalogSource
	Sink     services.DocumentSink
	Runs     RunRecorder
	Config   *shared.Config
	Logger   *log.Logger

	// Sleep replaces the retry backoff timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewEnrichEngine creates a new EnrichEngine with the provided collaborators.
func NewEnrichEngine(opts EngineOpts) *EnrichEngine {
	cfg := opts.Config
	if cfg == nil {
		cfg = shared.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &EnrichEngine{
		profiles: opts.Profiles,
		catalog:  opts.Catalog,
		sink:     opts.Sink,
		runs:     opts.Runs,
		config:   cfg,
		logger:   logger,
		sleep:    opts.Sleep,
	}
}

type stage struct {
	phase Phase
	run   func(context.Context, *RunContext) error
}

func (e *EnrichEngine) stages() []stage {
	return []stage{
		{LoadCustomers, e.loadCustomerIDs},
		{LoadCache, e.loadCache},
		{FetchCustomers, e.fetchCustomers},
		{FetchTrackArtists, e.fetchTrackArtists},
		{AggregateFansPhase, e.aggregateFans},
		{FetchArtistImages, e.fetchArtistImages},
		{CompactPhase, e.compact},
		{PersistCache, e.persistCache},
		{Publish, e.publish},
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *EnrichEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run executes every stage in order. Only an empty customer list and a failed
// publish abort the run; all other failures are recorded in the result.
func (e *EnrichEngine) Run(ctx context.Context, opts RunOptions, progress chan<- ProgressUpdate) (*RunResult, error) {
	if e.profiles == nil {
		return nil, fmt.Errorf("%w: profile source not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Target.ID == "" {
		return nil, fmt.Errorf("%w: target id", shared.ErrMissingArgument)
	}
	if opts.Target.Section == "" {
		opts.Target.Section = models.SectionAll
	}
	if opts.Target.Type == "" {
		opts.Target.Type = models.TargetEvent
	}

	rc := NewRunContext(shared.GenerateID(), opts, e.logger)
	rc.progress = progress
	rc.Result.StartedAt = time.Now()
	defer e.releaseCache(rc)

	record := e.startRecord(ctx, rc)
	rc.logger.Info("run started", "target", opts.Target.DocumentID(false))

	var runErr error
	for _, st := range e.stages() {
		e.sendProgress(progress, stageStartedUpdate(st.phase))
		start := time.Now()
		err := st.run(ctx, rc)
		elapsed := time.Since(start)
		rc.Result.Timings = append(rc.Result.Timings, StageTiming{Phase: st.phase, Elapsed: elapsed})
		rc.logger.Debug("stage finished", "stage", st.phase, "elapsed", elapsed)
		if err != nil {
			runErr = err
			break
		}
	}

	rc.Result.FinishedAt = time.Now()
	e.finishRecord(ctx, rc, record, runErr)

	if runErr != nil {
		rc.logger.Error("run failed", "err", runErr)
		return rc.Result, runErr
	}

	rc.logger.Info("run finished", "elapsed", rc.Result.Elapsed())
	e.sendProgress(progress, doneUpdate(rc.Result))
	return rc.Result, nil
}

func (e *EnrichEngine) driverOptions(rc *RunContext, phase Phase, batchSize int) batch.Options {
	f := e.config.Fetch
	return batch.Options{
		Name:        phase.String(),
		BatchSize:   batchSize,
		Parallelism: f.Parallelism,
		Timeout:     f.Timeout.Duration,
		RetryAfter:  f.RetryAfter.Duration,
		MaxRetries:  f.RetryMaxLevel,
		Logger:      rc.logger,
		Sleep:       e.sleep,
		OnProgress: func(p batch.Progress) {
			e.sendProgress(rc.progress, batchUpdate(phase, p))
		},
	}
}

func (e *EnrichEngine) catalogBunch() int {
	return min(max(e.config.Fetch.CatalogBunchCount, 1), services.MaxCatalogIDs)
}

func (e *EnrichEngine) startRecord(ctx context.Context, rc *RunContext) *models.Run {
	if e.runs == nil {
		return nil
	}
	run := &models.Run{
		ID:        rc.ID,
		Target:    rc.Options.Target,
		Status:    models.RunRunning,
		StartedAt: rc.Result.StartedAt,
	}
	if err := e.runs.Create(ctx, run); err != nil {
		rc.logger.Warn("failed to record run", "err", err)
		return nil
	}
	return run
}

func (e *EnrichEngine) finishRecord(ctx context.Context, rc *RunContext, run *models.Run, runErr error) {
	if run == nil {
		return
	}
	r := rc.Result
	finished := r.FinishedAt
	run.FinishedAt = &finished
	run.Customers = r.Customers
	run.Succeeded = len(r.CustomerSucceeded)
	run.NotFound = len(r.CustomerNotFound)
	run.Failed = len(r.CustomerFailed)
	run.Likes = len(r.Likes)
	run.Tracks = r.Tracks
	run.Artists = r.Artists
	run.FilteredArtists = len(r.FilteredArtists)
	run.TrackFailures = len(r.TrackFailed)
	run.ImageFailures = len(r.ImageFailed)
	run.Status = models.RunSucceeded
	if runErr != nil {
		run.Status = models.RunFailed
		run.Error = runErr.Error()
	}

	// The parent context may already be cancelled; the record still lands.
	if err := e.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		rc.logger.Warn("failed to finish run record", "err", err)
	}
}

func (e *EnrichEngine) releaseCache(rc *RunContext) {
	for _, store := range []*cache.Store{rc.TrackCache, rc.ArtistCache} {
		if store == nil {
			continue
		}
		if err := store.Unlock(); err != nil {
			rc.logger.Warn("failed to release cache lock", "err", err)
		}
	}
}

// loadCache opens the track and artist stores. A cache locked by another
// process is used read-only.
func (e *EnrichEngine) loadCache(ctx context.Context, rc *RunContext) error {
	c := e.config.Cache
	open := func(kind, path string) (*cache.Store, error) {
		store, err := cache.Open(cache.Options{
			Kind:          kind,
			BasePath:      path,
			IndexFile:     c.IndexFile,
			FilesInFolder: c.FilesInFolder,
			MemoryEntries: c.MemoryEntries,
			Logger:        rc.logger,
		})
		if err != nil {
			return nil, err
		}
		if err := store.Lock(); err != nil {
			if errors.Is(err, shared.ErrCacheLocked) {
				rc.logger.Warn("cache in use by another process, continuing read-only", "cache", kind)
			} else {
				rc.logger.Warn("failed to lock cache, continuing read-only", "cache", kind, "err", err)
			}
		}
		rc.logger.Info("cache loaded", "cache", kind, "count", store.Loaded().Count)
		return store, nil
	}

	var err error
	if rc.TrackCache, err = open("tracks", c.TracksPath); err != nil {
		return fmt.Errorf("failed to open track cache: %w", err)
	}
	if rc.ArtistCache, err = open("artists", c.ArtistsPath); err != nil {
		return fmt.Errorf("failed to open artist cache: %w", err)
	}
	return nil
}

// persistCache writes the tracks and then the artists queued during the run.
func (e *EnrichEngine) persistCache(ctx context.Context, rc *RunContext) error {
	for _, store := range []*cache.Store{rc.TrackCache, rc.ArtistCache} {
		if store == nil {
			continue
		}
		if store.ReadOnly() {
			rc.logger.Warn("cache is read-only, skipping write", "cache", store.Stats().Kind, "pending", store.Pending())
			continue
		}
		if _, err := store.Persist(); err != nil {
			rc.logger.Error("failed to write cache", "cache", store.Stats().Kind, "err", err)
			rc.Result.CacheErrors = append(rc.Result.CacheErrors, err.Error())
		}
	}
	return nil
}
