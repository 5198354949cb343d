// package models defines the data model for the audience enrichment pipeline
package models

import (
	"time"

	"github.com/desertthunder/fanx/internal/index"
)

// Application is the only music application whose listens are resolved against the catalog.
const Application = "Spotify"

// TargetType selects how the customer id list is requested.
type TargetType string

const (
	TargetEvent TargetType = "event"
	TargetBrand TargetType = "brand"
)

// Section limits which collections are built and published.
type Section string

const (
	SectionAll    Section = "all"
	SectionLikes  Section = "likes"
	SectionGender Section = "gender"
	SectionMusic  Section = "music"
)

// Includes reports whether s covers other. [SectionAll] covers everything.
func (s Section) Includes(other Section) bool {
	return s == SectionAll || s == other
}

// Target identifies the audience being enriched.
type Target struct {
	Type    TargetType
	ID      string
	Section Section
}

// DocumentID returns "<type>-<id>-<section>" with a "-compact" suffix for compacted documents.
func (t Target) DocumentID(compacted bool) string {
	id := string(t.Type) + "-" + t.ID + "-" + string(t.Section)
	if compacted {
		id += "-compact"
	}
	return id
}

// Like is a deduplicated social like. Count is the number of customers who liked it.
type Like struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Occurrences implements [Counted].
func (l *Like) Occurrences() int { return l.Count }

// Track is a Spotify track heard by one or more customers.
//
// Count is the total number of plays; Customers holds each distinct listener once.
type Track struct {
	TrackID   string
	Customers *index.Collection[string, string]
	Count     int
}

// NewTrack returns a track with one play by customerID.
func NewTrack(trackID, customerID string) *Track {
	t := &Track{TrackID: trackID, Customers: index.New[string, string](1), Count: 1}
	index.Add(t.Customers, customerID)
	return t
}

// Artist is a catalog artist linked to the tracks it appears on.
//
// CustomerFans is filled during fan aggregation and discarded afterward.
type Artist struct {
	ID           string
	Name         string
	Href         string
	Tracks       *index.Collection[string, string]
	CustomerFans map[string]int
	Count        int
}

// NewArtist returns an artist linked to trackID.
func NewArtist(id, name, href, trackID string) *Artist {
	a := &Artist{
		ID:     id,
		Name:   name,
		Href:   href,
		Tracks: index.New[string, string](1),
		Count:  1,
	}
	index.Add(a.Tracks, trackID)
	return a
}

// Image is a catalog artist image.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// FilteredArtist is an artist with at least one fan. Count is the fan count.
type FilteredArtist struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Application string  `json:"application"`
	Href        string  `json:"href"`
	Images      []Image `json:"images,omitempty"`
	Count       int     `json:"count"`
}

// Occurrences implements [Counted].
func (a *FilteredArtist) Occurrences() int { return a.Count }

// Counted is implemented by records that can be compacted by occurrence count.
type Counted interface {
	Occurrences() int
}

// CachedArtistRef is an artist entry inside a cached track artifact.
type CachedArtistRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Application string `json:"application"`
	Href        string `json:"href"`
}

// CachedTrack is the on-disk artifact for a resolved track.
type CachedTrack struct {
	ID      string            `json:"id"`
	Artists []CachedArtistRef `json:"artists"`
}

// CachedArtist is the on-disk artifact for an artist with images.
type CachedArtist struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Application string  `json:"application"`
	Href        string  `json:"href"`
	Images      []Image `json:"images"`
}

// Gender is the male/female tally of fetched customers.
type Gender struct {
	Male   int `json:"male"`
	Female int `json:"female"`
}

// DocumentData holds the published fields. Nil fields are omitted; a non-nil
// empty slice is published as [].
type DocumentData struct {
	CustomerIDs    []string           `json:"customerIDs,omitempty"`
	Gender         *Gender            `json:"gender,omitempty"`
	Likes          *[]*Like           `json:"likes,omitempty"`
	MusicStreaming *[]*FilteredArtist `json:"musicstreaming,omitempty"`
}

// Document is one published audience document.
type Document struct {
	ID   string       `json:"_id"`
	Rev  string       `json:"_rev,omitempty"`
	Type TargetType   `json:"type"`
	Data DocumentData `json:"data"`
}

// RunStatus is the terminal state of a recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is a persisted summary of one pipeline execution.
type Run struct {
	ID              string
	Sequence        int
	Target          Target
	Status          RunStatus
	Error           string
	Customers       int
	Succeeded       int
	NotFound        int
	Failed          int
	Likes           int
	Tracks          int
	Artists         int
	FilteredArtists int
	TrackFailures   int
	ImageFailures   int
	StartedAt       time.Time
	FinishedAt      *time.Time
}

// Duration returns the elapsed run time, or zero while the run is in progress.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
