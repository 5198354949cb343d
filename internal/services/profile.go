// Customer id list and profile API implementation of [ProfileSource]
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/fanx/internal/batch"
	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/shared"
)

// ProfileService implements [ProfileSource] over the customer id endpoint and
// the profile document API.
type ProfileService struct {
	ids      *APIService
	profiles *APIService
}

// NewProfileService builds a profile source from configuration.
func NewProfileService(cfg shared.SourcesConfig, client *http.Client) (*ProfileService, error) {
	if cfg.ProfileURL == "" {
		return nil, fmt.Errorf("%w: sources.profile_url is empty", shared.ErrMissingConfig)
	}
	return &ProfileService{
		ids:      NewAPIService(cfg.CustomerIDsURL, client),
		profiles: NewAPIService(cfg.ProfileURL, client).WithAuthorization(cfg.ProfileAuth),
	}, nil
}

// List fetches the customer ids of target. Brands are requested with "/?type=brand".
func (s *ProfileService) List(ctx context.Context, target models.Target) ([]string, error) {
	if s.ids.BaseURL() == "" {
		return nil, fmt.Errorf("%w: sources.customer_ids_url is empty", shared.ErrMissingConfig)
	}

	path := url.PathEscape(target.ID)
	if target.Type == models.TargetBrand {
		path += "/?type=brand"
	}

	resp, err := s.ids.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: customer ids status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var body struct {
		Data *struct {
			CustomerIDs []FlexibleID `json:"customerIds"`
		} `json:"data"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if body.Data == nil {
		return []string{}, nil
	}

	ids := make([]string, 0, len(body.Data.CustomerIDs))
	for _, id := range body.Data.CustomerIDs {
		if id != "" {
			ids = append(ids, string(id))
		}
	}
	return ids, nil
}

// Fetch retrieves one profile.
//
// Transport errors, 5xx, 408 and 429 are retryable. Other non-200 responses are
// well-formed answers without data and map to [shared.ErrNotFound]. A 200 with
// an undecodable body is a permanent failure.
func (s *ProfileService) Fetch(ctx context.Context, id string) (*Profile, error) {
	resp, err := s.profiles.Get(ctx, url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("%w: customer %s: %v", shared.ErrAPIRequest, id, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case Retryable(resp.StatusCode):
		return nil, fmt.Errorf("%w: customer %s: status %d: %s", shared.ErrServiceUnavailable, id, resp.StatusCode, shared.FilterLineBreak(string(resp.Body), " "))
	default:
		return nil, fmt.Errorf("%w: customer %s: status %d", shared.ErrNotFound, id, resp.StatusCode)
	}

	var profile Profile
	if err := resp.Decode(&profile); err != nil {
		return nil, batch.Permanent(fmt.Errorf("customer %s: %w", id, err))
	}
	return &profile, nil
}

// Retryable reports whether an HTTP status is worth retrying.
func Retryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout
}
