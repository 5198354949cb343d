// Raw JSON-over-HTTP client shared by the profile API and the CouchDB sink
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIService performs raw HTTP requests against a base URL with fixed headers.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
}

// NewAPIService creates a client for baseURL. A nil client uses [http.DefaultClient].
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
		headers:    http.Header{},
	}
}

// WithHeader sets a header sent on every request. Empty values are ignored.
func (a *APIService) WithHeader(key, value string) *APIService {
	if strings.TrimSpace(value) != "" {
		a.headers.Set(key, value)
	}
	return a
}

// WithAuthorization sets the Authorization header.
func (a *APIService) WithAuthorization(value string) *APIService {
	return a.WithHeader("Authorization", value)
}

// BaseURL returns the URL paths are appended to.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v.
func (r *APIResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data)
}

func (a *APIService) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	fullURL := a.baseURL + path

	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range a.headers {
		req.Header[k] = v
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	var jsonData any
	if err := json.Unmarshal(respBody, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}
