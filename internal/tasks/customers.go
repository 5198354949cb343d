package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/fanx/internal/batch"
	"github.com/desertthunder/fanx/internal/index"
	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/services"
	"github.com/desertthunder/fanx/internal/shared"
)

// loadCustomerIDs resolves the audience. Explicit ids win over an ids file,
// which wins over the id source.
func (e *EnrichEngine) loadCustomerIDs(ctx context.Context, rc *RunContext) error {
	opts := rc.Options
	var (
		ids []string
		err error
	)
	switch {
	case len(opts.IDs) > 0:
		ids = append([]string(nil), opts.IDs...)
	case opts.IDsFile != "":
		ids, err = shared.ReadIDsFile(opts.IDsFile)
	default:
		ids, err = e.profiles.List(ctx, opts.Target)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNoCustomers, err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: %s", shared.ErrNoCustomers, opts.Target.DocumentID(false))
	}

	rc.CustomerIDs = ids
	rc.Result.Customers = len(ids)
	rc.logger.Info("loaded customers", "count", len(ids))
	e.sendProgress(rc.progress, loadedCustomersUpdate(len(ids)))
	return nil
}

// fetchCustomers fetches every profile and folds it into the run's collections.
func (e *EnrichEngine) fetchCustomers(ctx context.Context, rc *RunContext) error {
	items := make([]*batch.WorkItem[string], len(rc.CustomerIDs))
	for i, id := range rc.CustomerIDs {
		items[i] = batch.NewItem(id, id)
	}

	fetch := func(ctx context.Context, item *batch.WorkItem[string]) (*services.Profile, error) {
		profile, err := e.profiles.Fetch(ctx, item.Payload)
		if err != nil {
			return nil, err
		}
		if profile == nil {
			return nil, batch.Permanent(fmt.Errorf("%w: empty profile for %s", shared.ErrInvalidInput, item.Payload))
		}
		return profile, nil
	}
	apply := func(item *batch.WorkItem[string], profile *services.Profile) {
		applyProfile(rc, item.Payload, profile)
	}

	driver := batch.NewDriver(e.driverOptions(rc, FetchCustomers, e.config.Fetch.OnetimeAPILimit), fetch, apply)
	res := driver.Run(ctx, items)

	r := rc.Result
	r.CustomerSucceeded = res.Succeeded
	r.CustomerNotFound = res.NotFound
	r.CustomerFailed = res.Failed
	rc.logger.Info("fetched customers",
		"succeeded", len(res.Succeeded), "not_found", len(res.NotFound), "failed", len(res.Failed),
		"likes", r.TotalLikes, "listens", r.TotalListens, "unique_likes", rc.Likes.Len(), "unique_tracks", rc.Tracks.Len())

	r.Likes = rc.Likes.Values()
	r.Tracks = rc.Tracks.Len()
	return nil
}

// applyProfile folds one customer profile into the run's collections.
func applyProfile(rc *RunContext, customerID string, profile *services.Profile) {
	r := rc.Result
	if profile.IsMale() {
		r.Gender.Male++
	} else {
		r.Gender.Female++
	}

	r.TotalLikes += len(profile.Likes)
	r.TotalListens += len(profile.MusicListens)

	if rc.section().Includes(models.SectionLikes) {
		for _, l := range profile.Likes {
			id := string(l.ID)
			if id == "" {
				continue
			}
			rc.Likes.Upsert(id,
				func() *models.Like { return &models.Like{ID: id, Name: l.Name, Category: l.Category, Count: 1} },
				func(existing *models.Like) { existing.Count++ },
			)
		}
	}

	if rc.section().Includes(models.SectionMusic) {
		for _, listen := range profile.MusicListens {
			app := listen.AppName()
			r.MusicApps[app]++
			if app != models.Application {
				continue
			}
			trackID := services.TrackIDFromURL(listen.SongURL())
			if trackID == "" {
				continue
			}
			rc.Tracks.Upsert(trackID,
				func() *models.Track { return models.NewTrack(trackID, customerID) },
				func(t *models.Track) {
					t.Count++
					index.Add(t.Customers, customerID)
				},
			)
		}
	}
}
