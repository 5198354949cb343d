package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/shared"
)

// BuildDocument assembles the published document for the run. Fields outside
// the target section are omitted.
func BuildDocument(rc *RunContext, compacted bool) *models.Document {
	target := rc.Options.Target
	doc := &models.Document{
		ID:   target.DocumentID(compacted),
		Type: target.Type,
	}

	if rc.Options.IncludeIDs {
		doc.Data.CustomerIDs = append([]string{}, rc.CustomerIDs...)
	}
	if target.Section.Includes(models.SectionGender) {
		gender := rc.Result.Gender
		doc.Data.Gender = &gender
	}
	if target.Section.Includes(models.SectionLikes) {
		likes := rc.Likes.Values()
		if compacted {
			likes = rc.Result.CompactedLikes
		}
		if likes == nil {
			likes = []*models.Like{}
		}
		doc.Data.Likes = &likes
	}
	if target.Section.Includes(models.SectionMusic) {
		artists := rc.Filtered.Values()
		if compacted {
			artists = rc.Result.CompactedArtists
		}
		if artists == nil {
			artists = []*models.FilteredArtist{}
		}
		doc.Data.MusicStreaming = &artists
	}
	return doc
}

// publish writes the compacted document and then the full document.
func (e *EnrichEngine) publish(ctx context.Context, rc *RunContext) error {
	docs := []*models.Document{BuildDocument(rc, true), BuildDocument(rc, false)}
	rc.Result.Documents = docs

	if e.sink == nil {
		rc.logger.Warn("no document sink configured, skipping publish")
		return nil
	}

	for i, doc := range docs {
		rev, err := e.sink.Revision(ctx, doc.ID)
		if err != nil {
			rc.logger.Warn("failed to look up document revision, creating new", "id", doc.ID, "err", err)
			rev = ""
		}
		doc.Rev = rev

		if err := e.sink.Put(ctx, doc); err != nil {
			return fmt.Errorf("%w: %s to %s: %v", shared.ErrPublishFailed, doc.ID, e.sink.Name(), err)
		}
		rc.Result.Published = append(rc.Result.Published, doc.ID)
		rc.logger.Info("published", "id", doc.ID, "sink", e.sink.Name(), "rev", rev)
		e.sendProgress(rc.progress, publishedUpdate(i+1, len(docs), doc.ID, e.sink.Name()))
	}
	return nil
}
