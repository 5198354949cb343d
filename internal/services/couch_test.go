package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/shared"
	tu "github.com/desertthunder/fanx/internal/testing"
)

func TestCouchService(t *testing.T) {
	t.Run("New Without URL", func(t *testing.T) {
		if _, err := NewCouchService(" ", "", nil); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Revision", func(t *testing.T) {
		t.Run("Existing Document", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/audiences/_all_docs" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.URL.Query().Get("keys") != `["event-1-all"]` {
					t.Errorf("unexpected keys %s", r.URL.Query().Get("keys"))
				}
				if r.Header.Get("Authorization") != "Basic abc" {
					t.Error("missing Authorization header")
				}
				w.Write([]byte(`{"rows":[{"key":"event-1-all","value":{"rev":"2-xyz"}}]}`))
			}))
			defer server.Close()

			sink, _ := NewCouchService(server.URL+"/audiences", "Basic abc", nil)
			rev, err := sink.Revision(context.Background(), "event-1-all")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if rev != "2-xyz" {
				t.Errorf("expected rev 2-xyz, got %s", rev)
			}
		})

		t.Run("Missing Document", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"rows":[{"key":"x","error":"not_found"}]}`))
			}))
			defer server.Close()

			sink, _ := NewCouchService(server.URL+"/", "", nil)
			rev, err := sink.Revision(context.Background(), "x")
			if err != nil || rev != "" {
				t.Errorf("expected empty revision, got %q, %v", rev, err)
			}
		})

		t.Run("Error Status", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			}))
			defer server.Close()

			sink, _ := NewCouchService(server.URL, "", nil)
			if _, err := sink.Revision(context.Background(), "x"); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})

	t.Run("Transport Errors", func(t *testing.T) {
		transport := tu.NewMockRoundTripper(nil, errors.New("connection refused"))
		sink, err := NewCouchService("http://couch.test/audiences", "", &http.Client{Transport: transport})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if _, err := sink.Revision(context.Background(), "event-1-all"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest from Revision, got %v", err)
		}
		if err := sink.Put(context.Background(), &models.Document{ID: "event-1-all", Type: models.TargetEvent}); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest from Put, got %v", err)
		}

		urls := transport.URLs()
		if len(urls) != 2 || urls[1] != "http://couch.test/audiences/" {
			t.Errorf("unexpected requests %v", urls)
		}
	})

	t.Run("Put", func(t *testing.T) {
		t.Run("Created", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/db/" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				body, _ := io.ReadAll(r.Body)
				var doc models.Document
				if err := json.Unmarshal(body, &doc); err != nil {
					t.Errorf("invalid body: %v", err)
				}
				if doc.ID != "event-1-all" || doc.Rev != "1-a" {
					t.Errorf("unexpected doc %+v", doc)
				}
				w.WriteHeader(http.StatusCreated)
			}))
			defer server.Close()

			sink, _ := NewCouchService(server.URL+"/db", "", nil)
			err := sink.Put(context.Background(), &models.Document{ID: "event-1-all", Rev: "1-a", Type: models.TargetEvent})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})

		t.Run("Conflict", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte("{\"error\":\"conflict\"}\n"))
			}))
			defer server.Close()

			sink, _ := NewCouchService(server.URL, "", nil)
			err := sink.Put(context.Background(), &models.Document{ID: "d"})
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})
}
