// Spotify catalog implementation of [CatalogSource]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/desertthunder/fanx/internal/batch"
	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/shared"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// MaxCatalogIDs is the most ids one several-tracks/artists request accepts.
	MaxCatalogIDs = 50
)

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	LinkedFrom *struct {
		ID string `json:"id"`
	} `json:"linked_from"`
}

// CanonicalID returns the id the track was requested under. Relinked tracks
// report the original id in linked_from.
func (t *SpotifyTrack) CanonicalID() string {
	if t.LinkedFrom != nil && t.LinkedFrom.ID != "" {
		return t.LinkedFrom.ID
	}
	return t.ID
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Href   string         `json:"href"`
	Images []models.Image `json:"images"`
}

// SpotifyService implements [CatalogSource] with the client credentials flow.
type SpotifyService struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewSpotifyService creates a catalog client. Tokens are fetched and refreshed
// by [clientcredentials.Config]; ctx carries an optional [oauth2.HTTPClient]
// for the token endpoint. A nil limiter disables client-side rate limiting.
func NewSpotifyService(ctx context.Context, cfg shared.SpotifyConfig, limiter *rate.Limiter) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_secret", shared.ErrMissingCredentials)
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	conf := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}

	return &SpotifyService{
		httpClient: conf.Client(ctx),
		baseURL:    baseURL,
		limiter:    limiter,
	}, nil
}

func (s *SpotifyService) Name() string {
	return models.Application
}

// doRequest performs an authenticated GET against the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %v", shared.ErrAPIRequest, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return batch.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case Retryable(resp.StatusCode):
		return fmt.Errorf("%w: spotify API status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: spotify API status %d", shared.ErrNotFound, resp.StatusCode)
	default:
		return batch.Permanent(fmt.Errorf("%w: spotify API status %d", shared.ErrAPIRequest, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return batch.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func severalEndpoint(resource string, ids []string) (string, error) {
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: no %s IDs provided", shared.ErrInvalidArgument, resource)
	}
	if len(ids) > MaxCatalogIDs {
		return "", fmt.Errorf("%w: maximum %d %s IDs allowed", shared.ErrInvalidArgument, MaxCatalogIDs, resource)
	}
	return fmt.Sprintf("/%ss?ids=%s", resource, url.QueryEscape(strings.Join(ids, ","))), nil
}

// SeveralTracks retrieves multiple tracks by their IDs (up to 50).
func (s *SpotifyService) SeveralTracks(ctx context.Context, trackIDs []string) ([]*SpotifyTrack, error) {
	endpoint, err := severalEndpoint("track", trackIDs)
	if err != nil {
		return nil, batch.Permanent(err)
	}

	var response struct {
		Tracks []*SpotifyTrack `json:"tracks"`
	}
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return response.Tracks, nil
}

// SeveralArtists retrieves multiple artists by their IDs (up to 50).
func (s *SpotifyService) SeveralArtists(ctx context.Context, artistIDs []string) ([]*SpotifyArtist, error) {
	endpoint, err := severalEndpoint("artist", artistIDs)
	if err != nil {
		return nil, batch.Permanent(err)
	}

	var response struct {
		Artists []*SpotifyArtist `json:"artists"`
	}
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return response.Artists, nil
}

// TrackIDFromURL extracts the track id from a Spotify song URL. It returns ""
// for URLs that are not Spotify track links.
func TrackIDFromURL(songURL string) string {
	const prefix = "https://open.spotify.com/track/"
	u := strings.Replace(strings.TrimSpace(songURL), "http:", "https:", 1)
	if !strings.HasPrefix(u, prefix) {
		return ""
	}
	id := strings.TrimPrefix(u, prefix)
	if i := strings.IndexAny(id, "?#/"); i >= 0 {
		id = id[:i]
	}
	return id
}
