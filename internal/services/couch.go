// CouchDB-compatible implementation of [DocumentSink]
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/shared"
)

// CouchService publishes documents to a CouchDB database URL.
type CouchService struct {
	api *APIService
}

// NewCouchService creates a sink for the database at dbURL (trailing slash optional).
func NewCouchService(dbURL, auth string, client *http.Client) (*CouchService, error) {
	if strings.TrimSpace(dbURL) == "" {
		return nil, fmt.Errorf("%w: sink.url is empty", shared.ErrMissingConfig)
	}
	if !strings.HasSuffix(dbURL, "/") {
		dbURL += "/"
	}
	return &CouchService{api: NewAPIService(dbURL, client).WithAuthorization(auth)}, nil
}

func (c *CouchService) Name() string {
	return "couch"
}

// Revision looks id up through _all_docs. Missing documents return "".
func (c *CouchService) Revision(ctx context.Context, id string) (string, error) {
	keys, err := shared.MarshalJSON([]string{id}, false)
	if err != nil {
		return "", err
	}

	resp, err := c.api.Get(ctx, "_all_docs?keys="+url.QueryEscape(string(keys)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: _all_docs status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var body struct {
		Rows []struct {
			Value *struct {
				Rev string `json:"rev"`
			} `json:"value"`
		} `json:"rows"`
	}
	if err := resp.Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if len(body.Rows) == 0 || body.Rows[0].Value == nil {
		return "", nil
	}
	return body.Rows[0].Value.Rev, nil
}

// Put POSTs doc to the database. 200 and 201 are success.
func (c *CouchService) Put(ctx context.Context, doc *models.Document) error {
	data, err := shared.MarshalJSON(doc, false)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	resp, err := c.api.Post(ctx, "", data)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: %s status %d: %s", shared.ErrAPIRequest, doc.ID, resp.StatusCode, shared.FilterLineBreak(string(resp.Body), " "))
	}
	return nil
}
