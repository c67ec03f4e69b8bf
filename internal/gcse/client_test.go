package gcse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/api/option"

	"evidencer/internal/config"
	"evidencer/internal/pipeline"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), config.Config{GoogleCSEAPIKey: "key"})
	if err != ErrMissingCredentials {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	_, err = NewClient(context.Background(), config.Config{GoogleCSECX: "cx"})
	if err != ErrMissingCredentials {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestFetchMapsItems(t *testing.T) {
	var receivedQuery, receivedCX string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedQuery = r.URL.Query().Get("q")
		receivedCX = r.URL.Query().Get("cx")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
		  "items": [
		    {
		      "link": "https://www.has-sante.fr/guide",
		      "title": "HAS guideline",
		      "snippet": "Care pathway recommendations.",
		      "pagemap": {"metatags": [{"article:published_time": "2025-02-10T08:00:00Z"}]}
		    },
		    {"link": "https://www.has-sante.fr/guide", "title": "Duplicate"},
		    {"link": "https://service-public.fr/droits", "title": "", "snippet": "Rights overview."}
		  ]
		}`))
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), config.Config{
		GoogleCSEAPIKey: "key",
		GoogleCSECX:     "engine",
	}, option.WithEndpoint(server.URL), option.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	results, err := client.Fetch(context.Background(), "asthma care pathway", pipeline.FetchOptions{MaxResults: 5})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if receivedQuery != "asthma care pathway" {
		t.Fatalf("unexpected query %q", receivedQuery)
	}
	if receivedCX != "engine" {
		t.Fatalf("unexpected engine id %q", receivedCX)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 deduped results, got %d", len(results))
	}
	if results[0].PublishedAt != "2025-02-10T08:00:00Z" {
		t.Fatalf("expected pagemap publication hint, got %q", results[0].PublishedAt)
	}
	if results[1].Title != "https://service-public.fr/droits" {
		t.Fatalf("expected URL fallback title, got %q", results[1].Title)
	}
}

func TestFetchHonorsRequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), config.Config{
		GoogleCSEAPIKey: "key",
		GoogleCSECX:     "engine",
	}, option.WithEndpoint(server.URL), option.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Fetch(context.Background(), "slow query", pipeline.FetchOptions{
		MaxResults: 2,
		Timeout:    20 * time.Millisecond,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestFetchSkipsEmptyQuery(t *testing.T) {
	client, err := NewClient(context.Background(), config.Config{
		GoogleCSEAPIKey: "key",
		GoogleCSECX:     "engine",
	}, option.WithHTTPClient(http.DefaultClient))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	results, err := client.Fetch(context.Background(), "  ", pipeline.FetchOptions{})
	if err != nil || results != nil {
		t.Fatalf("blank query should be a no-op, got %v %v", results, err)
	}
}

func TestPublishedFromPagemapHandlesGarbage(t *testing.T) {
	if got := publishedFromPagemap(nil); got != "" {
		t.Fatalf("nil pagemap should yield empty, got %q", got)
	}
	if got := publishedFromPagemap([]byte(`not json`)); got != "" {
		t.Fatalf("garbage pagemap should yield empty, got %q", got)
	}
	if got := publishedFromPagemap([]byte(`{"metatags":[{"date":"2024-12-01"}]}`)); got != "2024-12-01" {
		t.Fatalf("expected date metatag, got %q", got)
	}
}
