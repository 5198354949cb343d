// Package cache implements the sharded on-disk artifact cache.
//
// Each cache type (tracks, artists) lives under its own base directory with one
// index document and numbered shard folders:
//
//	<base>/index.json          {"count": N, "data": {"<key>": "0001", ...}}
//	<base>/0001/<key>.json     artifact
//
// Ordinals are assigned from the loaded count onward and never reused, and a
// shard folder never holds more than FilesInFolder artifacts. The index is
// written after every artifact of a persist, so an interrupted run only loses
// the index update.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/desertthunder/fanx/internal/index"
	"github.com/desertthunder/fanx/internal/shared"
)

const (
	labelWidth    = 4
	lockFile      = ".lock"
	defaultMemory = 1024
)

// Index is the persisted key to shard label mapping.
type Index struct {
	Count int               `json:"count"`
	Data  map[string]string `json:"data"`
}

// Options locates a cache and sizes its in-memory layer.
type Options struct {
	Kind          string
	BasePath      string
	IndexFile     string
	FilesInFolder int
	MemoryEntries int
	Logger        *log.Logger
}

// PersistResult summarises one [Store.Persist] call.
type PersistResult struct {
	Written int
	Failed  int
	Folders []string
	Count   int
}

// Stats describes the cache for reporting.
type Stats struct {
	Kind    string
	Path    string
	Count   int
	Entries int
	Pending int
	Folders []string
	Hits    int
	Misses  int
}

type pendingEntry struct {
	data []byte
}

// Store is one cache type. It is not safe for concurrent use.
type Store struct {
	opts     Options
	logger   *log.Logger
	loaded   Index
	pending  *index.Collection[string, *pendingEntry]
	memory   *lru.Cache[string, []byte]
	lock     *flock.Flock
	readOnly bool
	hits     int
	misses   int
}

// Open loads the index document at BasePath/IndexFile.
//
// A missing or unreadable index yields an empty cache; only invalid options
// return an error.
func Open(opts Options) (*Store, error) {
	if opts.BasePath == "" {
		return nil, fmt.Errorf("%w: cache base path is empty", shared.ErrInvalidConfig)
	}
	if opts.FilesInFolder <= 0 {
		return nil, fmt.Errorf("%w: files in folder must be positive", shared.ErrInvalidConfig)
	}
	if opts.IndexFile == "" {
		opts.IndexFile = "index.json"
	}
	if opts.MemoryEntries <= 0 {
		opts.MemoryEntries = defaultMemory
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	memory, err := lru.New[string, []byte](opts.MemoryEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	s := &Store{
		opts:    opts,
		logger:  opts.Logger.With("cache", opts.Kind),
		pending: index.New[string, *pendingEntry](0),
		memory:  memory,
	}
	s.loaded = s.loadIndex()
	return s, nil
}

func (s *Store) indexPath() string {
	return filepath.Join(s.opts.BasePath, s.opts.IndexFile)
}

func (s *Store) artifactPath(label, key string) string {
	return filepath.Join(s.opts.BasePath, label, key+".json")
}

func (s *Store) loadIndex() Index {
	var idx Index
	if err := shared.ReadJSON(s.indexPath(), &idx); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("no cache index", "path", s.indexPath())
		} else {
			s.logger.Warn("unreadable cache index, starting empty", "path", s.indexPath(), "err", err)
		}
		return Index{Data: map[string]string{}}
	}
	if idx.Data == nil {
		idx.Data = map[string]string{}
	}
	s.logger.Info("loaded cache index", "path", s.indexPath(), "count", idx.Count, "entries", len(idx.Data))
	return idx
}

// Loaded returns a copy of the index as loaded from disk (or as of the last persist).
func (s *Store) Loaded() Index {
	return Index{Count: s.loaded.Count, Data: maps.Clone(s.loaded.Data)}
}

// Label returns the shard label recorded for key.
func (s *Store) Label(key string) (string, bool) {
	label, ok := s.loaded.Data[key]
	return label, ok
}

// Lookup decodes the artifact for key into v. Any read or decode failure is a
// miss so the caller re-fetches.
func (s *Store) Lookup(key string, v any) bool {
	label, ok := s.loaded.Data[key]
	if !ok || !validKey(key) {
		s.misses++
		return false
	}

	if data, ok := s.memory.Get(key); ok {
		if err := json.Unmarshal(data, v); err == nil {
			s.hits++
			return true
		}
		s.memory.Remove(key)
	}

	path := s.artifactPath(label, key)
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Debug("cache read failed", "key", key, "path", path, "err", err)
		s.misses++
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("corrupt cache artifact", "key", key, "path", path, "err", err)
		s.misses++
		return false
	}

	s.memory.Add(key, data)
	s.hits++
	return true
}

// Put queues v for the next [Store.Persist]. Re-putting a key replaces its
// artifact but keeps its original queue position.
func (s *Store) Put(key string, v any) error {
	if !validKey(key) {
		return fmt.Errorf("%w: cache key %q", shared.ErrInvalidInput, key)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache artifact %s: %w", key, err)
	}
	s.pending.Upsert(key,
		func() *pendingEntry { return &pendingEntry{data: data} },
		func(e *pendingEntry) { e.data = data },
	)
	return nil
}

// Pending returns the number of queued artifacts.
func (s *Store) Pending() int {
	return s.pending.Len()
}

// Persist writes queued artifacts into shard folders and then the index.
//
// Artifact write failures are collected and returned together; the index is
// still written for the artifacts that did land.
func (s *Store) Persist() (PersistResult, error) {
	if s.readOnly {
		return PersistResult{Count: s.loaded.Count}, fmt.Errorf("%w: %s", shared.ErrCacheLocked, s.opts.BasePath)
	}

	out := Index{
		Count: s.loaded.Count + s.pending.Len(),
		Data:  maps.Clone(s.loaded.Data),
	}
	result := PersistResult{Count: out.Count}

	var errs []error
	ordinal := s.loaded.Count + 1
	label := ""
	s.pending.Each(func(key string, e *pendingEntry) {
		next := ShardLabel(ordinal, s.opts.FilesInFolder)
		ordinal++
		if next != label {
			label = next
			if err := os.MkdirAll(filepath.Join(s.opts.BasePath, label), 0755); err != nil {
				errs = append(errs, fmt.Errorf("failed to create shard %s: %w", label, err))
			}
			result.Folders = append(result.Folders, label)
		}

		if err := shared.WriteFileAtomic(s.artifactPath(label, key), e.data, 0644); err != nil {
			errs = append(errs, fmt.Errorf("failed to write %s: %w", key, err))
			result.Failed++
			return
		}
		out.Data[key] = label
		s.memory.Add(key, e.data)
		result.Written++
	})

	data, err := shared.MarshalJSON(out, false)
	if err != nil {
		return result, errors.Join(append(errs, fmt.Errorf("failed to encode cache index: %w", err))...)
	}
	if err := shared.WriteFileAtomic(s.indexPath(), data, 0644); err != nil {
		return result, errors.Join(append(errs, fmt.Errorf("failed to write cache index: %w", err))...)
	}

	s.loaded = out
	s.pending = index.New[string, *pendingEntry](0)
	s.logger.Info("cached", "count", out.Count, "new", result.Written, "failed", result.Failed, "path", s.indexPath())
	return result, errors.Join(errs...)
}

// Lock takes an advisory lock on the cache directory. If another process holds
// it the store becomes read-only and [shared.ErrCacheLocked] is returned.
func (s *Store) Lock() error {
	if err := os.MkdirAll(s.opts.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	s.lock = flock.New(filepath.Join(s.opts.BasePath, lockFile))

	ok, err := s.lock.TryLock()
	if err != nil {
		s.readOnly = true
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		s.readOnly = true
		return fmt.Errorf("%w: %s", shared.ErrCacheLocked, s.opts.BasePath)
	}
	return nil
}

// Unlock releases the directory lock taken by [Store.Lock].
func (s *Store) Unlock() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}

// ReadOnly reports whether persisting is disabled.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

func (s *Store) Stats() Stats {
	folders := slices.Sorted(maps.Keys(invert(s.loaded.Data)))
	return Stats{
		Kind:    s.opts.Kind,
		Path:    s.opts.BasePath,
		Count:   s.loaded.Count,
		Entries: len(s.loaded.Data),
		Pending: s.pending.Len(),
		Folders: folders,
		Hits:    s.hits,
		Misses:  s.misses,
	}
}

// ShardLabel returns the zero-padded folder label for a 1-based ordinal.
func ShardLabel(ordinal, filesInFolder int) string {
	return shared.ZeroPad((ordinal+filesInFolder-1)/filesInFolder, labelWidth)
}

func invert(data map[string]string) map[string]struct{} {
	out := make(map[string]struct{}, len(data))
	for _, label := range data {
		out[label] = struct{}{}
	}
	return out
}

func validKey(key string) bool {
	return key != "" && key != "." && key != ".." && !strings.ContainsAny(key, `/\`)
}
