package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fanx/internal/cache"
	"github.com/desertthunder/fanx/internal/formatter"
	"github.com/desertthunder/fanx/internal/shared"
)

// openCaches opens the stores selected by kind without taking their locks.
// An empty kind opens both.
func (r *Runner) openCaches(config *shared.Config, kind string) ([]*cache.Store, error) {
	paths := map[string]string{
		"tracks":  config.Cache.TracksPath,
		"artists": config.Cache.ArtistsPath,
	}

	kinds := []string{"tracks", "artists"}
	if kind != "" {
		if _, ok := paths[kind]; !ok {
			return nil, fmt.Errorf("%w: --kind must be tracks or artists, got %q", shared.ErrInvalidArgument, kind)
		}
		kinds = []string{kind}
	}

	stores := make([]*cache.Store, 0, len(kinds))
	for _, k := range kinds {
		store, err := cache.Open(cache.Options{
			Kind:          k,
			BasePath:      paths[k],
			IndexFile:     config.Cache.IndexFile,
			FilesInFolder: config.Cache.FilesInFolder,
			MemoryEntries: config.Cache.MemoryEntries,
			Logger:        r.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open %s cache: %w", k, err)
		}
		stores = append(stores, store)
	}
	return stores, nil
}

// CacheStats prints entry counts and shard folders of the caches.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	stores, err := r.openCaches(config, cmd.String("kind"))
	if err != nil {
		return err
	}

	stats := make([]cache.Stats, 0, len(stores))
	for _, s := range stores {
		stats = append(stats, s.Stats())
	}
	return r.writePlain("%s\n", formatter.CacheTable(stats...))
}

// CacheGet prints the cached artifact for --key.
func (r *Runner) CacheGet(ctx context.Context, cmd *cli.Command) error {
	kind := cmd.String("kind")
	if kind == "" {
		return fmt.Errorf("%w: --kind", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	stores, err := r.openCaches(config, kind)
	if err != nil {
		return err
	}

	key := cmd.String("key")
	var artifact any
	if !stores[0].Lookup(key, &artifact) {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, kind, key)
	}

	label, _ := stores[0].Label(key)
	r.logger.Debug("cache hit", "kind", kind, "key", key, "folder", label)
	return r.writeJSON(artifact, true)
}
