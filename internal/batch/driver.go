// Package batch drives bounded-parallel remote fetches with partial-failure retry.
//
// A work list is cut into sub-batches that run strictly one after another. Every
// pending item of a sub-batch is fetched concurrently in a wave; once the whole
// wave has returned, successful results are applied in item order and only the
// failed subset is retried after a linear backoff. Items still failing at the
// retry ceiling are recorded as permanent failures and the driver moves on, so
// every key ends up succeeded, not found, or failed.
package batch

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/fanx/internal/shared"
)

// WorkItem is one unit of remote work. Bunched catalog lookups carry one key per id.
type WorkItem[T any] struct {
	Keys      []string
	Payload   T
	Attempted bool
	Succeeded bool
	NotFound  bool
	Failed    bool
	Attempts  int
	Err       error
}

// NewItem returns a single-key work item.
func NewItem[T any](key string, payload T) *WorkItem[T] {
	return &WorkItem[T]{Keys: []string{key}, Payload: payload}
}

// Bunches groups ids into work items of at most size ids, preserving order.
func Bunches(ids []string, size int) []*WorkItem[[]string] {
	if size <= 0 {
		size = 1
	}
	items := make([]*WorkItem[[]string], 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		bunch := append([]string(nil), ids[start:end]...)
		items = append(items, &WorkItem[[]string]{Keys: bunch, Payload: bunch})
	}
	return items
}

// FetchFunc performs the remote call for one item. Errors wrapping
// [shared.ErrNotFound] are terminal not-found results, errors wrapped with
// [Permanent] are terminal failures, and anything else is retried.
type FetchFunc[T, R any] func(ctx context.Context, item *WorkItem[T]) (R, error)

// ApplyFunc consumes a successful result. It runs on the driver goroutine after
// the wave barrier, in item order, so it may mutate shared indices without locking.
type ApplyFunc[T, R any] func(item *WorkItem[T], result R)

// Progress reports the cursor after a sub-batch completes.
type Progress struct {
	Name     string
	Cursor   int
	Total    int
	SubBatch int
}

// Options configures a [Driver].
type Options struct {
	Name        string        // label used in logs and progress
	BatchSize   int           // work items per sub-batch
	Parallelism int           // concurrent fetches per wave; <= 0 means the whole wave
	Timeout     time.Duration // per-call timeout; <= 0 disables it
	RetryAfter  time.Duration // base backoff, multiplied by the retry level
	MaxRetries  int           // retries after the first wave of a sub-batch
	Logger      *log.Logger
	OnProgress  func(Progress)

	// Sleep waits between retry waves. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Result collects every key by outcome.
//
// len(Succeeded)+len(Failed)+len(NotFound) always equals Total.
type Result struct {
	Total     int
	Cursor    int
	Succeeded []string
	NotFound  []string
	Failed    []string
	Waves     int
	Retries   int
}

// Driver runs fetch waves over a work list.
type Driver[T, R any] struct {
	opts  Options
	fetch FetchFunc[T, R]
	apply ApplyFunc[T, R]
}

// NewDriver creates a driver. apply may be nil.
func NewDriver[T, R any](opts Options, fetch FetchFunc[T, R], apply ApplyFunc[T, R]) *Driver[T, R] {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Driver[T, R]{opts: opts, fetch: fetch, apply: apply}
}

// Run processes items sub-batch by sub-batch and always returns a complete Result.
//
// If ctx is cancelled the remaining items are recorded as failed.
func (d *Driver[T, R]) Run(ctx context.Context, items []*WorkItem[T]) *Result {
	res := &Result{Total: countKeys(items)}
	logger := d.opts.Logger.With("batch", d.opts.Name)

	subBatch := 0
	for start := 0; start < len(items); start += d.opts.BatchSize {
		end := min(start+d.opts.BatchSize, len(items))
		sub := items[start:end]
		subBatch++

		if err := ctx.Err(); err != nil {
			for _, item := range items[start:] {
				d.fail(res, item, err)
			}
			logger.Warn("cancelled", "remaining", countKeys(items[start:]), "err", err)
			res.Cursor = res.Total
			break
		}

		logger.Debug("loading", "items", len(sub), "keys", countKeys(sub), "start", res.Cursor)
		d.runSubBatch(ctx, logger, sub, res)

		// The cursor moves once per sub-batch, by the size dispatched on the first wave.
		res.Cursor += countKeys(sub)
		if d.opts.OnProgress != nil {
			d.opts.OnProgress(Progress{Name: d.opts.Name, Cursor: res.Cursor, Total: res.Total, SubBatch: subBatch})
		}
	}
	return res
}

func (d *Driver[T, R]) runSubBatch(ctx context.Context, logger *log.Logger, sub []*WorkItem[T], res *Result) {
	pending := sub
	for level := 0; ; level++ {
		d.wave(ctx, pending, res)

		failed := make([]*WorkItem[T], 0)
		for _, item := range pending {
			if !item.Succeeded && !item.Failed {
				failed = append(failed, item)
			}
		}
		if len(failed) == 0 {
			return
		}

		if level >= d.opts.MaxRetries {
			for _, item := range failed {
				d.fail(res, item, item.Err)
			}
			logger.Warn("giving up", "failed", countKeys(failed), "level", level)
			return
		}

		delay := d.opts.RetryAfter * time.Duration(level+1)
		logger.Warn("retrying", "failed", len(failed), "level", level+1, "after", delay)
		if err := d.opts.Sleep(ctx, delay); err != nil {
			for _, item := range failed {
				d.fail(res, item, err)
			}
			return
		}
		res.Retries++
		pending = failed
	}
}

// wave fetches every pending item concurrently, then classifies and applies the
// results once all of them have returned.
func (d *Driver[T, R]) wave(ctx context.Context, pending []*WorkItem[T], res *Result) {
	results := make([]R, len(pending))
	errs := make([]error, len(pending))

	limit := d.opts.Parallelism
	if limit <= 0 || limit > len(pending) {
		limit = len(pending)
	}

	var g errgroup.Group
	g.SetLimit(max(limit, 1))
	for i, item := range pending {
		g.Go(func() error {
			callCtx, cancel := d.callContext(ctx)
			defer cancel()
			results[i], errs[i] = d.fetch(callCtx, item)
			return nil
		})
	}
	_ = g.Wait()
	res.Waves++

	for i, item := range pending {
		item.Attempted = true
		item.Attempts++
		item.Err = errs[i]

		switch err := errs[i]; {
		case err == nil:
			item.Succeeded = true
			res.Succeeded = append(res.Succeeded, item.Keys...)
			if d.apply != nil {
				d.apply(item, results[i])
			}
		case errors.Is(err, shared.ErrNotFound):
			item.Succeeded = true
			item.NotFound = true
			res.NotFound = append(res.NotFound, item.Keys...)
		case IsPermanent(err):
			d.fail(res, item, err)
			d.opts.Logger.Warn("permanent failure", "batch", d.opts.Name, "keys", item.Keys, "err", err)
		default:
			d.opts.Logger.Debug("fetch failed", "batch", d.opts.Name, "keys", item.Keys, "err", err)
		}
	}
}

func (d *Driver[T, R]) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.opts.Timeout)
}

func (d *Driver[T, R]) fail(res *Result, item *WorkItem[T], err error) {
	if item.Failed {
		return
	}
	item.Failed = true
	item.Succeeded = false
	if err != nil {
		item.Err = err
	}
	res.Failed = append(res.Failed, item.Keys...)
}

func countKeys[T any](items []*WorkItem[T]) int {
	n := 0
	for _, item := range items {
		n += len(item.Keys)
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
