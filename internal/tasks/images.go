package tasks

import (
	"context"

	"github.com/desertthunder/fanx/internal/batch"
	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/services"
)

// fetchArtistImages attaches images to every artist with fans, from the artist
// cache when possible and from the catalog otherwise.
func (e *EnrichEngine) fetchArtistImages(ctx context.Context, rc *RunContext) error {
	if !rc.section().Includes(models.SectionMusic) || rc.Filtered.Len() == 0 {
		return nil
	}

	var needFetch []string
	cached := 0
	rc.Filtered.Each(func(id string, a *models.FilteredArtist) {
		var entry models.CachedArtist
		if rc.ArtistCache != nil && rc.ArtistCache.Lookup(id, &entry) {
			a.Images = entry.Images
			cached++
			return
		}
		needFetch = append(needFetch, id)
	})
	rc.Result.CachedArtists = cached
	rc.logger.Info("artist cache", "cached", cached, "need_fetch", len(needFetch))
	e.sendProgress(rc.progress, cachedUpdate(FetchArtistImages, cached, len(needFetch)))

	if len(needFetch) == 0 {
		return nil
	}
	if e.catalog == nil {
		rc.logger.Warn("no catalog configured, skipping artist images", "artists", len(needFetch))
		rc.Result.ImageFailed = needFetch
		return nil
	}

	fetch := func(ctx context.Context, item *batch.WorkItem[[]string]) ([]*services.SpotifyArtist, error) {
		return e.catalog.SeveralArtists(ctx, item.Payload)
	}
	apply := func(item *batch.WorkItem[[]string], artists []*services.SpotifyArtist) {
		for _, a := range artists {
			if a == nil {
				continue
			}
			applyCatalogArtist(rc, a)
		}
	}

	items := batch.Bunches(needFetch, e.catalogBunch())
	driver := batch.NewDriver(e.driverOptions(rc, FetchArtistImages, e.config.Fetch.CatalogAPILimit), fetch, apply)
	res := driver.Run(ctx, items)
	rc.Result.ImageNotFound = res.NotFound
	rc.Result.ImageFailed = res.Failed
	rc.logger.Info("fetched artist images", "succeeded", len(res.Succeeded), "not_found", len(res.NotFound), "failed", len(res.Failed))
	return nil
}

func applyCatalogArtist(rc *RunContext, a *services.SpotifyArtist) {
	filtered, ok := rc.Filtered.Get(a.ID)
	if !ok {
		return
	}
	images := a.Images
	if images == nil {
		images = []models.Image{}
	}
	filtered.Images = images

	if rc.ArtistCache == nil {
		return
	}
	entry := models.CachedArtist{
		ID:          a.ID,
		Name:        a.Name,
		Application: models.Application,
		Href:        a.Href,
		Images:      images,
	}
	if err := rc.ArtistCache.Put(a.ID, entry); err != nil {
		rc.logger.Warn("failed to queue artist for caching", "artist", a.ID, "err", err)
	}
}
