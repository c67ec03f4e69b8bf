package gcse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"evidencer/internal/config"
	"evidencer/internal/pipeline"
)

var ErrMissingCredentials = errors.New("google cse api key or engine id is not configured")

// Client wraps the Custom Search JSON API behind the collector's fetcher
// contract.
type Client struct {
	engineID string
	service  *customsearch.Service
}

func NewClient(ctx context.Context, cfg config.Config, extra ...option.ClientOption) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.GoogleCSEAPIKey)
	engineID := strings.TrimSpace(cfg.GoogleCSECX)
	if apiKey == "" || engineID == "" {
		return nil, ErrMissingCredentials
	}

	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, extra...)
	service, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create customsearch service: %w", err)
	}
	return &Client{engineID: engineID, service: service}, nil
}

func (c *Client) Fetch(ctx context.Context, query string, opts pipeline.FetchOptions) ([]pipeline.RawResult, error) {
	trimmedQuery := strings.TrimSpace(query)
	if trimmedQuery == "" {
		return nil, nil
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	count := opts.MaxResults
	if count <= 0 {
		count = 5
	}
	// The API caps a single page at ten items.
	if count > 10 {
		count = 10
	}

	search, err := c.service.Cse.List().
		Q(trimmedQuery).
		Cx(c.engineID).
		Num(int64(count)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("request customsearch: %w", err)
	}

	results := make([]pipeline.RawResult, 0, len(search.Items))
	seenURLs := make(map[string]struct{}, len(search.Items))
	for _, item := range search.Items {
		rawURL := strings.TrimSpace(item.Link)
		if rawURL == "" {
			continue
		}
		if _, exists := seenURLs[rawURL]; exists {
			continue
		}
		seenURLs[rawURL] = struct{}{}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = rawURL
		}

		results = append(results, pipeline.RawResult{
			URL:         rawURL,
			Title:       title,
			Snippet:     strings.TrimSpace(item.Snippet),
			PublishedAt: publishedFromPagemap(item.Pagemap),
		})

		if len(results) >= count {
			break
		}
	}

	return results, nil
}

// publishedFromPagemap digs a publication hint out of the result's pagemap.
// The pagemap is freeform site metadata, so every step is best effort.
func publishedFromPagemap(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	var pagemap struct {
		Metatags []map[string]string `json:"metatags"`
	}
	if err := json.Unmarshal(raw, &pagemap); err != nil {
		return ""
	}

	keys := []string{"article:published_time", "datepublished", "date", "dc.date", "og:updated_time"}
	for _, tags := range pagemap.Metatags {
		for _, key := range keys {
			if value := strings.TrimSpace(tags[key]); value != "" {
				return value
			}
		}
	}
	return ""
}
