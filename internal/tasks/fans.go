package tasks

import (
	"context"

	"github.com/desertthunder/fanx/internal/index"
	"github.com/desertthunder/fanx/internal/models"
)

// AggregateFans counts, for every artist, the customers who listened to at
// least threshold of its tracks.
//
// Each (artist, track, customer) link adds one to that customer's tally for
// the artist; a customer is a fan once the tally reaches threshold. Artists
// without fans are dropped. The result keeps the artists' insertion order.
func AggregateFans(
	artists *index.Collection[string, *models.Artist],
	tracks *index.Collection[string, *models.Track],
	threshold int,
) *index.Collection[string, *models.FilteredArtist] {
	if threshold < 1 {
		threshold = 1
	}
	out := index.New[string, *models.FilteredArtist](0)

	artists.Each(func(id string, a *models.Artist) {
		a.CustomerFans = make(map[string]int)
		a.Tracks.Each(func(trackID, _ string) {
			t, ok := tracks.Get(trackID)
			if !ok {
				return
			}
			t.Customers.Each(func(customerID, _ string) {
				a.CustomerFans[customerID]++
			})
		})

		fans := 0
		for _, tally := range a.CustomerFans {
			if tally >= threshold {
				fans++
			}
		}
		a.CustomerFans = nil

		if fans == 0 {
			return
		}
		out.Upsert(id, func() *models.FilteredArtist {
			return &models.FilteredArtist{
				ID:          a.ID,
				Name:        a.Name,
				Application: models.Application,
				Href:        a.Href,
				Count:       fans,
			}
		}, nil)
	})
	return out
}

// Compact keeps the records whose count reaches threshold, in order.
func Compact[T models.Counted](records []T, threshold int) []T {
	out := make([]T, 0)
	for _, r := range records {
		if r.Occurrences() >= threshold {
			out = append(out, r)
		}
	}
	return out
}

func (e *EnrichEngine) aggregateFans(ctx context.Context, rc *RunContext) error {
	rc.Filtered = AggregateFans(rc.Artists, rc.Tracks, e.config.Aggregate.ArtistThreshold)
	rc.Result.FilteredArtists = rc.Filtered.Values()
	rc.logger.Info("counted fans", "artists", rc.Artists.Len(), "with_fans", rc.Filtered.Len())
	return nil
}

func (e *EnrichEngine) compact(ctx context.Context, rc *RunContext) error {
	threshold := e.config.Aggregate.CompactThreshold
	rc.Result.CompactedLikes = Compact(rc.Likes.Values(), threshold)
	rc.Result.CompactedArtists = Compact(rc.Filtered.Values(), threshold)
	rc.logger.Info("compacted",
		"likes", len(rc.Result.CompactedLikes), "artists", len(rc.Result.CompactedArtists), "threshold", threshold)
	return nil
}
