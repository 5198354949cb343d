package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tu "github.com/desertthunder/fanx/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com", customClient)

			if srv.BaseURL() != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", srv.BaseURL())
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Nil Client", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)

			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if r.URL.Path != "/profiles/42" {
					t.Errorf("expected path '/profiles/42', got %s", r.URL.Path)
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"status": "success"})
			}))
			defer server.Close()

			srv := NewAPIService(server.URL+"/profiles/", nil)
			resp, err := srv.Get(context.Background(), "42")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !resp.OK() {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}
			if !resp.IsJSON || resp.JSONData == nil {
				t.Error("expected response to be JSON")
			}

			var body struct {
				Status string `json:"status"`
			}
			if err := resp.Decode(&body); err != nil || body.Status != "success" {
				t.Errorf("unexpected decode result %+v, %v", body, err)
			}
		})

		t.Run("Sends Configured Headers", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Basic secret" {
					t.Errorf("expected Authorization header, got %q", r.Header.Get("Authorization"))
				}
				if r.Header.Get("Content-Type") != "" {
					t.Errorf("GET should not set Content-Type, got %q", r.Header.Get("Content-Type"))
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil).WithAuthorization("Basic secret").WithHeader("X-Empty", " ")
			if _, err := srv.Get(context.Background(), "/"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.headers.Get("X-Empty") != "" {
				t.Error("blank header values should be ignored")
			}
		})

		t.Run("Non-JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("plain text response"))
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			resp, err := srv.Get(context.Background(), "/test")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON || resp.OK() {
				t.Error("expected non-JSON, non-OK response")
			}
			if err := resp.Decode(&struct{}{}); err == nil {
				t.Error("expected decode error")
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)
			_, err := srv.Get(context.Background(), "/test\x00invalid")

			if err == nil || !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("expected 'failed to create request' error, got %v", err)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed")),
			}

			srv := NewAPIService("http://example.com", client)
			_, err := srv.Get(context.Background(), "/test")

			if err == nil || !strings.Contains(err.Error(), "request failed") {
				t.Errorf("expected 'request failed' error, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     http.Header{},
				}, nil),
			}

			srv := NewAPIService("http://example.com", client)
			_, err := srv.Get(context.Background(), "/test")

			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected 'failed to read response' error, got %v", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			srv := NewAPIService(server.URL, nil)
			if _, err := srv.Get(ctx, "/test"); err == nil {
				t.Error("expected error for canceled context")
			}
		})
	})

	t.Run("Post", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST method, got %s", r.Method)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("expected Content-Type 'application/json', got %s", r.Header.Get("Content-Type"))
				}

				body, _ := io.ReadAll(r.Body)
				var data map[string]string
				if err := json.Unmarshal(body, &data); err != nil {
					t.Errorf("failed to unmarshal request body: %v", err)
				}
				if data["test"] != "data" {
					t.Errorf("expected request data 'test:data', got %v", data)
				}

				w.WriteHeader(http.StatusCreated)
				json.NewEncoder(w).Encode(map[string]any{"ok": true, "id": "123"})
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			requestData, _ := json.Marshal(map[string]string{"test": "data"})
			resp, err := srv.Post(context.Background(), "", requestData)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusCreated || !resp.OK() {
				t.Errorf("expected status 201, got %d", resp.StatusCode)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed")),
			}

			srv := NewAPIService("http://example.com", client)
			_, err := srv.Post(context.Background(), "/test", []byte("data"))

			if err == nil || !strings.Contains(err.Error(), "request failed") {
				t.Errorf("expected 'request failed' error, got %v", err)
			}
		})

		t.Run("Empty Request Body", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				if len(body) != 0 {
					t.Errorf("expected empty body, got %d bytes", len(body))
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			if _, err := srv.Post(context.Background(), "/test", []byte{}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	})
}

func TestFlexibleID(t *testing.T) {
	tc := []struct {
		input string
		want  FlexibleID
	}{
		{`"abc"`, "abc"},
		{`12345`, "12345"},
		{`1.5`, "1.5"},
		{`null`, ""},
	}

	for _, tt := range tc {
		var got FlexibleID
		if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("unmarshal %s = %q, want %q", tt.input, got, tt.want)
		}
	}

	var bad FlexibleID
	if err := json.Unmarshal([]byte(`{}`), &bad); err == nil {
		t.Error("expected error for object id")
	}
}
