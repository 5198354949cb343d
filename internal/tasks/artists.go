package tasks

import (
	"context"

	"github.com/desertthunder/fanx/internal/batch"
	"github.com/desertthunder/fanx/internal/index"
	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/services"
)

// fetchTrackArtists resolves the artists of every collected track, from the
// track cache when possible and from the catalog otherwise.
func (e *EnrichEngine) fetchTrackArtists(ctx context.Context, rc *RunContext) error {
	if !rc.section().Includes(models.SectionMusic) || rc.Tracks.Len() == 0 {
		return nil
	}

	var needFetch []string
	cached := 0
	for _, trackID := range rc.Tracks.Keys() {
		var entry models.CachedTrack
		if rc.TrackCache != nil && rc.TrackCache.Lookup(trackID, &entry) {
			appendArtists(rc, trackID, entry.Artists)
			cached++
			continue
		}
		needFetch = append(needFetch, trackID)
	}
	rc.Result.CachedTracks = cached
	rc.logger.Info("track cache", "cached", cached, "need_fetch", len(needFetch))
	e.sendProgress(rc.progress, cachedUpdate(FetchTrackArtists, cached, len(needFetch)))

	if len(needFetch) > 0 && e.catalog != nil {
		fetch := func(ctx context.Context, item *batch.WorkItem[[]string]) ([]*services.SpotifyTrack, error) {
			return e.catalog.SeveralTracks(ctx, item.Payload)
		}
		apply := func(item *batch.WorkItem[[]string], tracks []*services.SpotifyTrack) {
			for _, t := range tracks {
				if t == nil {
					continue
				}
				applyCatalogTrack(rc, t)
			}
		}

		items := batch.Bunches(needFetch, e.catalogBunch())
		driver := batch.NewDriver(e.driverOptions(rc, FetchTrackArtists, e.config.Fetch.CatalogAPILimit), fetch, apply)
		res := driver.Run(ctx, items)
		rc.Result.TrackNotFound = res.NotFound
		rc.Result.TrackFailed = res.Failed
		rc.logger.Info("fetched tracks", "succeeded", len(res.Succeeded), "not_found", len(res.NotFound), "failed", len(res.Failed))
	} else if len(needFetch) > 0 {
		rc.logger.Warn("no catalog configured, skipping track lookups", "tracks", len(needFetch))
		rc.Result.TrackFailed = needFetch
	}

	rc.Result.Artists = rc.Artists.Len()
	rc.logger.Info("artists collected", "count", rc.Artists.Len())
	return nil
}

// applyCatalogTrack links the artists of a fetched track and queues the track
// for caching under its requested id.
func applyCatalogTrack(rc *RunContext, t *services.SpotifyTrack) {
	trackID := t.CanonicalID()
	refs := make([]models.CachedArtistRef, 0, len(t.Artists))
	for _, a := range t.Artists {
		refs = append(refs, models.CachedArtistRef{
			ID:          a.ID,
			Name:        a.Name,
			Application: models.Application,
			Href:        a.Href,
		})
	}
	appendArtists(rc, trackID, refs)

	if rc.TrackCache == nil {
		return
	}
	if err := rc.TrackCache.Put(trackID, models.CachedTrack{ID: trackID, Artists: refs}); err != nil {
		rc.logger.Warn("failed to queue track for caching", "track", trackID, "err", err)
	}
}

// appendArtists upserts each artist and links it to trackID. Count grows once
// per track appearance.
func appendArtists(rc *RunContext, trackID string, refs []models.CachedArtistRef) {
	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		rc.Artists.Upsert(ref.ID,
			func() *models.Artist { return models.NewArtist(ref.ID, ref.Name, ref.Href, trackID) },
			func(a *models.Artist) {
				index.Add(a.Tracks, trackID)
				a.Count++
			},
		)
	}
}
