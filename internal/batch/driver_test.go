package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/fanx/internal/shared"
)

var errTransport = errors.New("connection reset")

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func testOptions(s *sleepRecorder) Options {
	return Options{
		Name:       "test",
		BatchSize:  3,
		Timeout:    time.Second,
		RetryAfter: 5 * time.Second,
		MaxRetries: 5,
		Logger:     log.New(io.Discard),
		Sleep:      s.Sleep,
	}
}

func itemsFor(keys ...string) []*WorkItem[string] {
	items := make([]*WorkItem[string], len(keys))
	for i, k := range keys {
		items[i] = NewItem(k, k)
	}
	return items
}

func keys(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("c%d", i+1)
	}
	return out
}

// attemptCounter counts fetch calls per key.
type attemptCounter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (a *attemptCounter) next(key string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.calls == nil {
		a.calls = map[string]int{}
	}
	a.calls[key]++
	return a.calls[key]
}

func TestDriver(t *testing.T) {
	t.Run("all succeed on the first wave", func(t *testing.T) {
		s := &sleepRecorder{}
		var applied []string
		d := NewDriver(testOptions(s),
			func(ctx context.Context, item *WorkItem[string]) (string, error) {
				return "ok:" + item.Payload, nil
			},
			func(item *WorkItem[string], r string) { applied = append(applied, r) },
		)

		res := d.Run(context.Background(), itemsFor(keys(7)...))

		assert.Len(t, res.Succeeded, 7)
		assert.Empty(t, res.Failed)
		assert.Empty(t, res.NotFound)
		assert.Empty(t, s.delays)
		assert.Equal(t, 3, res.Waves)
		assert.Equal(t, 7, res.Cursor)
		assert.Equal(t, []string{"ok:c1", "ok:c2", "ok:c3", "ok:c4", "ok:c5", "ok:c6", "ok:c7"}, applied)
	})

	t.Run("fails until the last allowed retry then succeeds", func(t *testing.T) {
		s := &sleepRecorder{}
		opts := testOptions(s)
		counter := &attemptCounter{}
		d := NewDriver(opts,
			func(ctx context.Context, item *WorkItem[string]) (string, error) {
				if counter.next(item.Payload) < opts.MaxRetries {
					return "", errTransport
				}
				return item.Payload, nil
			}, nil)

		items := itemsFor(keys(5)...)
		res := d.Run(context.Background(), items)

		assert.Len(t, res.Succeeded, 5)
		assert.Empty(t, res.Failed)
		for _, item := range items {
			assert.True(t, item.Succeeded)
			assert.Equal(t, opts.MaxRetries, item.Attempts)
		}
	})

	t.Run("always failing items become permanent failures", func(t *testing.T) {
		s := &sleepRecorder{}
		opts := testOptions(s)
		opts.BatchSize = 10
		d := NewDriver(opts,
			func(ctx context.Context, item *WorkItem[string]) (string, error) {
				return "", errTransport
			}, nil)

		items := itemsFor(keys(4)...)
		res := d.Run(context.Background(), items)

		assert.Empty(t, res.Succeeded)
		assert.ElementsMatch(t, keys(4), res.Failed)
		for _, item := range items {
			assert.False(t, item.Succeeded)
			assert.True(t, item.Failed)
			assert.Equal(t, opts.MaxRetries+1, item.Attempts)
			assert.ErrorIs(t, item.Err, errTransport)
		}
		assert.Equal(t, []time.Duration{
			5 * time.Second, 10 * time.Second, 15 * time.Second, 20 * time.Second, 25 * time.Second,
		}, s.delays, "backoff must be linear in the retry level")
	})

	t.Run("not found is terminal and separate", func(t *testing.T) {
		s := &sleepRecorder{}
		counter := &attemptCounter{}
		d := NewDriver(testOptions(s),
			func(ctx context.Context, item *WorkItem[string]) (string, error) {
				counter.next(item.Payload)
				if item.Payload == "c2" {
					return "", fmt.Errorf("%w: customer %s", shared.ErrNotFound, item.Payload)
				}
				return item.Payload, nil
			}, nil)

		items := itemsFor(keys(3)...)
		res := d.Run(context.Background(), items)

		assert.Equal(t, []string{"c2"}, res.NotFound)
		assert.Equal(t, []string{"c1", "c3"}, res.Succeeded)
		assert.True(t, items[1].NotFound)
		assert.Equal(t, 1, counter.calls["c2"])
		assert.Empty(t, s.delays)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		s := &sleepRecorder{}
		counter := &attemptCounter{}
		d := NewDriver(testOptions(s),
			func(ctx context.Context, item *WorkItem[string]) (string, error) {
				counter.next(item.Payload)
				if item.Payload == "c1" {
					return "", Permanent(errors.New("malformed payload"))
				}
				return item.Payload, nil
			}, nil)

		res := d.Run(context.Background(), itemsFor(keys(2)...))

		assert.Equal(t, []string{"c1"}, res.Failed)
		assert.Equal(t, 1, counter.calls["c1"])
		assert.Empty(t, s.delays)
	})

	t.Run("outcome counts always cover every key", func(t *testing.T) {
		s := &sleepRecorder{}
		opts := testOptions(s)
		opts.MaxRetries = 2
		counter := &attemptCounter{}
		d := NewDriver(opts,
			func(ctx context.Context, item *WorkItem[string]) (string, error) {
				n := counter.next(item.Payload)
				switch item.Payload {
				case "c1", "c5":
					return "", errTransport
				case "c2":
					return "", shared.ErrNotFound
				case "c3":
					if n == 1 {
						return "", errTransport
					}
				case "c7":
					return "", Permanent(errors.New("bad"))
				}
				return item.Payload, nil
			}, nil)

		res := d.Run(context.Background(), itemsFor(keys(10)...))

		require.Equal(t, 10, res.Total)
		assert.Equal(t, res.Total, len(res.Succeeded)+len(res.Failed)+len(res.NotFound))
		assert.ElementsMatch(t, []string{"c1", "c5", "c7"}, res.Failed)
		assert.Contains(t, res.Succeeded, "c3")
	})

	t.Run("cursor advances once per sub-batch", func(t *testing.T) {
		s := &sleepRecorder{}
		opts := testOptions(s)
		var cursors []int
		opts.OnProgress = func(p Progress) { cursors = append(cursors, p.Cursor) }
		counter := &attemptCounter{}
		d := NewDriver(opts,
			func(ctx context.Context, item *WorkItem[string]) (string, error) {
				if counter.next(item.Payload) < 3 && item.Payload == "c2" {
					return "", errTransport
				}
				return item.Payload, nil
			}, nil)

		res := d.Run(context.Background(), itemsFor(keys(7)...))

		assert.Equal(t, []int{3, 6, 7}, cursors)
		assert.Equal(t, 7, res.Cursor)
		assert.Equal(t, 2, res.Retries)
	})

	t.Run("bunched items count keys", func(t *testing.T) {
		s := &sleepRecorder{}
		opts := testOptions(s)
		opts.BatchSize = 2
		opts.MaxRetries = 0
		var cursors []int
		opts.OnProgress = func(p Progress) { cursors = append(cursors, p.Cursor) }
		d := NewDriver(opts,
			func(ctx context.Context, item *WorkItem[[]string]) (int, error) {
				if item.Payload[0] == "c11" {
					return 0, errTransport
				}
				return len(item.Payload), nil
			}, nil)

		res := d.Run(context.Background(), Bunches(keys(23), 5))

		assert.Equal(t, 23, res.Total)
		assert.Equal(t, []int{10, 20, 23}, cursors)
		assert.Len(t, res.Failed, 5)
		assert.Len(t, res.Succeeded, 18)
	})

	t.Run("parallelism is bounded", func(t *testing.T) {
		s := &sleepRecorder{}
		opts := testOptions(s)
		opts.BatchSize = 20
		opts.Parallelism = 3
		var inflight, peak atomic.Int32
		d := NewDriver(opts,
			func(ctx context.Context, item *WorkItem[string]) (string, error) {
				n := inflight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inflight.Add(-1)
				return item.Payload, nil
			}, nil)

		res := d.Run(context.Background(), itemsFor(keys(20)...))

		assert.Len(t, res.Succeeded, 20)
		assert.LessOrEqual(t, peak.Load(), int32(3))
	})

	t.Run("per-call timeout is retryable", func(t *testing.T) {
		s := &sleepRecorder{}
		opts := testOptions(s)
		opts.Timeout = 5 * time.Millisecond
		opts.MaxRetries = 1
		counter := &attemptCounter{}
		d := NewDriver(opts,
			func(ctx context.Context, item *WorkItem[string]) (string, error) {
				if counter.next(item.Payload) == 1 {
					<-ctx.Done()
					return "", ctx.Err()
				}
				return item.Payload, nil
			}, nil)

		res := d.Run(context.Background(), itemsFor("c1"))

		assert.Equal(t, []string{"c1"}, res.Succeeded)
		assert.Equal(t, []time.Duration{5 * time.Second}, s.delays)
	})

	t.Run("cancelled context records remaining items as failed", func(t *testing.T) {
		s := &sleepRecorder{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		d := NewDriver(testOptions(s),
			func(ctx context.Context, item *WorkItem[string]) (string, error) {
				return item.Payload, nil
			}, nil)

		res := d.Run(ctx, itemsFor(keys(5)...))

		assert.ElementsMatch(t, keys(5), res.Failed)
		assert.Equal(t, 5, res.Cursor)
	})

	t.Run("empty work list", func(t *testing.T) {
		d := NewDriver(testOptions(&sleepRecorder{}),
			func(ctx context.Context, item *WorkItem[string]) (string, error) { return "", nil }, nil)

		res := d.Run(context.Background(), nil)
		assert.Equal(t, 0, res.Total)
		assert.Equal(t, 0, res.Waves)
	})
}

func TestBunches(t *testing.T) {
	items := Bunches(keys(7), 3)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"c1", "c2", "c3"}, items[0].Keys)
	assert.Equal(t, []string{"c7"}, items[2].Payload)

	assert.Empty(t, Bunches(nil, 50))
}

func TestPermanent(t *testing.T) {
	base := errors.New("boom")
	err := Permanent(base)

	assert.True(t, IsPermanent(err))
	assert.True(t, IsPermanent(fmt.Errorf("wrapped: %w", err)))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
	assert.Nil(t, Permanent(nil))
}
