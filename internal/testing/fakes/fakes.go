// package fakes provides in-memory test doubles for the pipeline collaborators
package fakes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/services"
	"github.com/desertthunder/fanx/internal/shared"
)

// ErrTransport simulates a retryable network failure.
var ErrTransport = errors.New("fake transport error")

// Profiles implements [services.ProfileSource].
type Profiles struct {
	mu sync.Mutex

	IDs      []string
	ListErr  error
	Profiles map[string]*services.Profile
	NotFound map[string]bool
	// FailFirst makes the first n fetches of an id fail with ErrTransport; -1 fails forever.
	FailFirst map[string]int
	Calls     map[string]int
}

func (p *Profiles) List(ctx context.Context, target models.Target) ([]string, error) {
	if p.ListErr != nil {
		return nil, p.ListErr
	}
	return append([]string(nil), p.IDs...), nil
}

func (p *Profiles) Fetch(ctx context.Context, id string) (*services.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Calls == nil {
		p.Calls = map[string]int{}
	}
	p.Calls[id]++

	if n, ok := p.FailFirst[id]; ok && (n < 0 || p.Calls[id] <= n) {
		return nil, ErrTransport
	}
	if p.NotFound[id] {
		return nil, fmt.Errorf("%w: customer %s", shared.ErrNotFound, id)
	}
	if profile, ok := p.Profiles[id]; ok {
		return profile, nil
	}
	return &services.Profile{}, nil
}

// Catalog implements [services.CatalogSource]. Unknown ids come back as nil entries.
type Catalog struct {
	mu sync.Mutex

	Tracks         map[string]*services.SpotifyTrack
	Artists        map[string]*services.SpotifyArtist
	FailTracks     bool
	FailArtists    bool
	TrackRequests  [][]string
	ArtistRequests [][]string
}

func (c *Catalog) SeveralTracks(ctx context.Context, ids []string) ([]*services.SpotifyTrack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TrackRequests = append(c.TrackRequests, append([]string(nil), ids...))
	if c.FailTracks {
		return nil, ErrTransport
	}
	out := make([]*services.SpotifyTrack, len(ids))
	for i, id := range ids {
		out[i] = c.Tracks[id]
	}
	return out, nil
}

func (c *Catalog) SeveralArtists(ctx context.Context, ids []string) ([]*services.SpotifyArtist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ArtistRequests = append(c.ArtistRequests, append([]string(nil), ids...))
	if c.FailArtists {
		return nil, ErrTransport
	}
	out := make([]*services.SpotifyArtist, len(ids))
	for i, id := range ids {
		out[i] = c.Artists[id]
	}
	return out, nil
}

// Sink implements [services.DocumentSink] in memory.
type Sink struct {
	mu sync.Mutex

	Docs        map[string]*models.Document
	Revisions   map[string]string
	PutErr      error
	RevisionErr error
	Order       []string
}

func (s *Sink) Name() string { return "memory" }

func (s *Sink) Revision(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RevisionErr != nil {
		return "", s.RevisionErr
	}
	return s.Revisions[id], nil
}

func (s *Sink) Put(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return s.PutErr
	}
	if s.Docs == nil {
		s.Docs = map[string]*models.Document{}
	}
	if s.Revisions == nil {
		s.Revisions = map[string]string{}
	}
	s.Docs[doc.ID] = doc
	s.Order = append(s.Order, doc.ID)
	s.Revisions[doc.ID] = fmt.Sprintf("%d-fake", len(s.Order))
	return nil
}

// Listen builds a Spotify music listen for trackID.
func Listen(trackID string) services.MusicListen {
	var m services.MusicListen
	raw := fmt.Sprintf(`{"application":{"name":"Spotify"},"data":{"song":{"url":"http://open.spotify.com/track/%s"}}}`, trackID)
	if err := unmarshal(raw, &m); err != nil {
		panic(err)
	}
	return m
}

// AppListen builds a non-Spotify listen.
func AppListen(app string) services.MusicListen {
	var m services.MusicListen
	if err := unmarshal(fmt.Sprintf(`{"application":{"name":%q}}`, app), &m); err != nil {
		panic(err)
	}
	return m
}

// Track builds a catalog track with the given artist ids.
func Track(id string, artistIDs ...string) *services.SpotifyTrack {
	t := &services.SpotifyTrack{ID: id}
	for _, a := range artistIDs {
		t.Artists = append(t.Artists, services.SpotifyArtist{ID: a, Name: "Artist " + a, Href: "https://api.spotify.com/v1/artists/" + a})
	}
	return t
}

// Artist builds a catalog artist with one image.
func Artist(id string) *services.SpotifyArtist {
	return &services.SpotifyArtist{
		ID:     id,
		Name:   "Artist " + id,
		Href:   "https://api.spotify.com/v1/artists/" + id,
		Images: []models.Image{{URL: "https://i.scdn.co/image/" + id, Height: 640, Width: 640}},
	}
}

func unmarshal(raw string, v any) error {
	return json.Unmarshal([]byte(raw), v)
}
