package pipeline

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"evidencer/internal/cache"
	"evidencer/internal/registry"
)

const (
	defaultRequestDelay   = 500 * time.Millisecond
	defaultRequestTimeout = 10 * time.Second
	defaultMaxRetries     = 2
	defaultRetryBackoff   = 400 * time.Millisecond
	defaultMaxResults     = 6
	defaultUserAgent      = "evidencer-research-bot/1.0"

	thinContentRunes = 240
)

// CollectorConfig tunes cache, retry and politeness behavior.
type CollectorConfig struct {
	RequestDelay   time.Duration
	RequestTimeout time.Duration
	RetryBackoff   time.Duration
	MaxRetries     int
	MaxResults     int
	UserAgent      string
	EnrichContent  bool
}

// FetchLimiter serializes the politeness delay between outbound fetch calls.
// It is shared process-wide so parallel facets cannot defeat the rate limit
// toward the same upstream. Cache hits never touch it.
type FetchLimiter struct {
	mu          sync.Mutex
	delay       time.Duration
	lastAttempt time.Time
}

func NewFetchLimiter(delay time.Duration) *FetchLimiter {
	if delay < 0 {
		delay = 0
	}
	return &FetchLimiter{delay: delay}
}

// Wait blocks until the politeness window since the previous fetch has
// elapsed, then claims the next slot.
func (l *FetchLimiter) Wait(ctx context.Context) error {
	if l == nil || l.delay <= 0 {
		return nil
	}
	l.mu.Lock()
	next := l.lastAttempt.Add(l.delay)
	now := time.Now()
	if next.Before(now) {
		next = now
	}
	l.lastAttempt = next
	l.mu.Unlock()

	return sleepUntil(ctx, next)
}

// Collector runs queries against the fetch capability, applying the local
// cache, the politeness delay and bounded retries.
type Collector struct {
	fetcher Fetcher
	cache   *cache.Store
	reg     *registry.Registry
	limiter *FetchLimiter
	reader  Reader
	cfg     CollectorConfig
}

func NewCollector(fetcher Fetcher, cacheStore *cache.Store, reg *registry.Registry, limiter *FetchLimiter, reader Reader, cfg CollectorConfig) *Collector {
	if cfg.RequestDelay <= 0 {
		cfg.RequestDelay = defaultRequestDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if limiter == nil {
		limiter = NewFetchLimiter(cfg.RequestDelay)
	}
	return &Collector{
		fetcher: fetcher,
		cache:   cacheStore,
		reg:     reg,
		limiter: limiter,
		reader:  reader,
		cfg:     cfg,
	}
}

// Collect executes every query and returns the surviving candidate documents.
// Fetch failures degrade to empty result sets for that query; the only error
// ever returned is context cancellation, so the caller can degrade the facet
// instead of failing the run.
func (c *Collector) Collect(ctx context.Context, facet Facet, queries []AngledQuery) ([]CandidateDocument, error) {
	candidates := make([]CandidateDocument, 0, len(queries)*c.cfg.MaxResults)

	for _, query := range queries {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}

		results, err := c.resultsForQuery(ctx, query.Text)
		if err != nil {
			return candidates, err
		}

		for _, raw := range results {
			candidate, ok := c.buildCandidate(ctx, raw, query.Angle)
			if !ok {
				continue
			}
			candidates = append(candidates, candidate)
		}
	}
	return candidates, nil
}

func (c *Collector) resultsForQuery(ctx context.Context, query string) ([]RawResult, error) {
	if payload, ok := c.cache.Get(query); ok {
		var cached []RawResult
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
		log.Printf("collector: discarding unreadable cache entry for %q", query)
	}

	results, err := c.fetchWithRetry(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("collector: search failed for %q after retries: %v", query, err)
		return nil, nil
	}

	if payload, marshalErr := json.Marshal(results); marshalErr == nil {
		if cacheErr := c.cache.Put(query, payload); cacheErr != nil {
			log.Printf("collector: cache write failed for %q: %v", query, cacheErr)
		}
	}
	return results, nil
}

func (c *Collector) fetchWithRetry(ctx context.Context, query string) ([]RawResult, error) {
	if c.fetcher == nil {
		return nil, nil
	}
	opts := FetchOptions{
		MaxResults: c.cfg.MaxResults,
		Timeout:    c.cfg.RequestTimeout,
		UserAgent:  c.cfg.UserAgent,
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepUntil(ctx, time.Now().Add(c.cfg.RetryBackoff)); err != nil {
				return nil, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		results, err := c.fetcher.Fetch(ctx, query, opts)
		if err == nil {
			return results, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *Collector) buildCandidate(ctx context.Context, raw RawResult, angle Angle) (CandidateDocument, bool) {
	rawURL := strings.TrimSpace(raw.URL)
	if rawURL == "" {
		return CandidateDocument{}, false
	}
	if c.reg != nil && c.reg.IsBlocked(rawURL) {
		return CandidateDocument{}, false
	}
	domain := registry.NormalizeDomain(rawURL)
	if domain == "" {
		return CandidateDocument{}, false
	}

	candidate := CandidateDocument{
		URL:           rawURL,
		Title:         strings.TrimSpace(raw.Title),
		Snippet:       strings.TrimSpace(raw.Snippet),
		Content:       strings.TrimSpace(raw.Content),
		Domain:        domain,
		SourceType:    strings.TrimSpace(raw.SourceType),
		EvidenceLevel: strings.TrimSpace(raw.EvidenceLevel),
		Jurisdiction:  strings.ToUpper(strings.TrimSpace(raw.Jurisdiction)),
		Angle:         angle,
		Raw:           raw,
	}
	if published, ok := parsePublishedDate(raw.PublishedAt); ok {
		candidate.Published = published
		candidate.HasDate = true
	}
	if candidate.Content == "" {
		candidate.Content = candidate.Snippet
	}

	c.enrichContent(ctx, &candidate)
	return candidate, true
}

// enrichContent reads the source body for thin candidates when enabled. Read
// failures leave the candidate as-is; thin content is the filter's problem.
func (c *Collector) enrichContent(ctx context.Context, candidate *CandidateDocument) {
	if !c.cfg.EnrichContent || c.reader == nil {
		return
	}
	if len([]rune(candidate.Content)) >= thinContentRunes {
		return
	}
	read, err := c.reader.Read(ctx, candidate.URL)
	if err != nil {
		log.Printf("collector: content read failed for %s: %v", candidate.URL, err)
		return
	}
	if text := strings.TrimSpace(read.Text); text != "" {
		candidate.Content = text
	}
	if candidate.Title == "" {
		candidate.Title = strings.TrimSpace(read.Title)
	}
	if !candidate.HasDate && !read.PublishedAt.IsZero() {
		candidate.Published = read.PublishedAt
		candidate.HasDate = true
	}
}

var publishedDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"January 2, 2006",
	"2 January 2006",
	"2006",
}

// parsePublishedDate is best-effort: unparseable dates become "unknown",
// never an error.
func parsePublishedDate(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func sleepUntil(ctx context.Context, deadline time.Time) error {
	delay := time.Until(deadline)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
