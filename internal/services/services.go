// package services defines the remote collaborators of the enrichment pipeline
//
// Profile API, Spotify catalog, document stores
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"github.com/desertthunder/fanx/internal/models"
)

// ProfileSource lists the customers of a target and fetches their profiles.
type ProfileSource interface {
	// List returns the customer ids of the target audience.
	List(ctx context.Context, target models.Target) ([]string, error)

	// Fetch retrieves one customer profile. A well-formed "no such customer"
	// response returns an error wrapping [shared.ErrNotFound].
	Fetch(ctx context.Context, id string) (*Profile, error)
}

// CatalogSource resolves track and artist ids against the music catalog.
//
// Both calls accept at most [MaxCatalogIDs] ids and may return nil entries for
// ids the catalog does not know.
type CatalogSource interface {
	SeveralTracks(ctx context.Context, ids []string) ([]*SpotifyTrack, error)
	SeveralArtists(ctx context.Context, ids []string) ([]*SpotifyArtist, error)
}

// DocumentSink stores published audience documents.
type DocumentSink interface {
	// Revision returns the current revision of id, or "" if the document does not exist.
	Revision(ctx context.Context, id string) (string, error)

	// Put creates or replaces doc. doc.Rev carries the revision being replaced.
	Put(ctx context.Context, doc *models.Document) error

	// Name returns the name of the sink (e.g., "couch", "sqlite")
	Name() string
}

// Profile is the subset of a customer profile the pipeline consumes.
type Profile struct {
	Profile      *ProfileInfo  `json:"profile"`
	Likes        []ProfileLike `json:"likes"`
	MusicListens []MusicListen `json:"music_listens"`
}

// ProfileInfo holds demographic fields.
type ProfileInfo struct {
	Gender string `json:"gender"`
}

// IsMale reports whether the profile declares a male gender. Profiles without
// one count as female.
func (p *Profile) IsMale() bool {
	return p.Profile != nil && p.Profile.Gender == "male"
}

// ProfileLike is a social page liked by the customer.
type ProfileLike struct {
	ID       FlexibleID `json:"id"`
	Name     string     `json:"name"`
	Category string     `json:"category"`
}

// MusicListen is one music listening event.
type MusicListen struct {
	Application *struct {
		Name string `json:"name"`
	} `json:"application"`
	Data *struct {
		Song *struct {
			URL string `json:"url"`
		} `json:"song"`
	} `json:"data"`
}

// AppName returns the listening application's name, or "".
func (m MusicListen) AppName() string {
	if m.Application == nil {
		return ""
	}
	return m.Application.Name
}

// SongURL returns the song URL, or "".
func (m MusicListen) SongURL() string {
	if m.Data == nil || m.Data.Song == nil {
		return ""
	}
	return m.Data.Song.URL
}

// FlexibleID decodes ids sent either as JSON strings or numbers.
type FlexibleID string

// UnmarshalJSON implements [json.Unmarshaler].
func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*f = FlexibleID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = FlexibleID(n.String())
	return nil
}
