package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"evidencer/internal/audit"
	"evidencer/internal/cache"
	"evidencer/internal/policy"
)

// deterministicFetcher returns stable results for every query so two runs
// are byte-identical.
type deterministicFetcher struct{}

func (deterministicFetcher) Fetch(_ context.Context, query string, _ FetchOptions) ([]RawResult, error) {
	body := strings.Repeat("evidence paragraph about "+query+" ", 20)
	return []RawResult{
		{URL: "https://sante.gouv.fr/" + slug(query), Title: "Official guidance", Snippet: "Guidance snippet for " + query, Content: body, PublishedAt: "2025-11-02"},
		{URL: "https://ec.europa.eu/" + slug(query), Title: "EU review", Snippet: "Review snippet for " + query, Content: body + " european angle"},
		{URL: "https://news.spam.example/" + slug(query), Title: "Spam", Snippet: "spam"},
	}, nil
}

func slug(raw string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' {
			return '-'
		}
		return r
	}, strings.ToLower(raw))
}

func newTestPipeline(t *testing.T, auditLog *audit.Logger) *Pipeline {
	t.Helper()
	store, err := cache.Open("", time.Hour)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	collector := NewCollector(deterministicFetcher{}, store, testRegistry(), NewFetchLimiter(0), nil, CollectorConfig{
		RequestDelay:   time.Millisecond,
		RetryBackoff:   time.Millisecond,
		RequestTimeout: time.Second,
	})
	return New(testRegistry(), policy.Default(), collector, auditLog)
}

func TestRunProducesOneBlockPerFacet(t *testing.T) {
	pipeline := newTestPipeline(t, nil)
	payload := pipeline.Run(context.Background(), map[string]string{"notes": "housing and medication concerns"}, RunOptions{Location: "Lyon"})

	if len(payload.Facets) != len(Catalogue()) {
		t.Fatalf("expected %d facet blocks, got %d", len(Catalogue()), len(payload.Facets))
	}
	if payload.Audit.SessionID == "" || payload.Audit.StartedAt.IsZero() {
		t.Fatal("audit block must carry session id and start time")
	}

	rawTotal := 0
	for _, block := range payload.Facets {
		if block.Status != StatusOK && block.Status != StatusInsufficient {
			t.Fatalf("facet %s has invalid status %q", block.Name, block.Status)
		}
		if block.Status == StatusOK && len(block.Synthesis.Citations) == 0 {
			t.Fatalf("facet %s is ok but has no citations", block.Name)
		}
		if block.Status == StatusInsufficient && len(block.Synthesis.Citations) != 0 {
			t.Fatalf("facet %s is insufficient but carries citations", block.Name)
		}
		rawTotal += block.Progress.RawCollected
	}
	if len(payload.Audit.Decisions) < rawTotal {
		t.Fatalf("decision trail (%d) must cover every raw candidate (%d)", len(payload.Audit.Decisions), rawTotal)
	}
}

func TestRunIsDeterministicModuloSession(t *testing.T) {
	contextRecord := map[string]string{"notes": "chronic pain, sleep trouble, MDPH paperwork"}
	opts := RunOptions{Location: "Marseille"}

	first := newTestPipeline(t, nil).Run(context.Background(), contextRecord, opts)
	second := newTestPipeline(t, nil).Run(context.Background(), contextRecord, opts)

	firstJSON, err := json.Marshal(first.Facets)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	secondJSON, err := json.Marshal(second.Facets)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(firstJSON) != string(secondJSON) {
		t.Fatal("facet content must be identical across runs")
	}
	if first.Audit.SessionID == second.Audit.SessionID {
		t.Fatal("session ids must differ between runs")
	}
}

func TestRunUsesSuppliedSessionID(t *testing.T) {
	payload := newTestPipeline(t, nil).Run(context.Background(), nil, RunOptions{SessionID: "session-fixed"})
	if payload.Audit.SessionID != "session-fixed" {
		t.Fatalf("expected supplied session id, got %s", payload.Audit.SessionID)
	}
}

func TestRunDegradesFacetsOnExpiredDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payload := newTestPipeline(t, nil).Run(ctx, nil, RunOptions{})
	if len(payload.Facets) != len(Catalogue()) {
		t.Fatal("expired deadline must still yield one block per facet")
	}
	for _, block := range payload.Facets {
		if block.Status != StatusInsufficient {
			t.Fatalf("facet %s should degrade to insufficient, got %s", block.Name, block.Status)
		}
		if !containsReason(block.Reasons, ReasonCollectionInsufficient) {
			t.Fatalf("facet %s missing collection_insufficient, got %v", block.Name, block.Reasons)
		}
	}
}

func TestRunWritesAuditRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger := audit.NewLogger(path, 0, 0)

	payload := newTestPipeline(t, logger).Run(context.Background(), nil, RunOptions{})

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	var record struct {
		SessionID string `json:"sessionId"`
		Facets    []struct {
			Name   string `json:"name"`
			Status Status `json:"status"`
		} `json:"facets"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &record); err != nil {
		t.Fatalf("audit line is not valid JSON: %v", err)
	}
	if record.SessionID != payload.Audit.SessionID {
		t.Fatal("audit record must carry the run's session id")
	}
	if len(record.Facets) != len(payload.Facets) {
		t.Fatal("audit record must summarize every facet")
	}
	if strings.Contains(string(raw), "Guidance snippet") {
		t.Fatal("audit log must not replay citation content")
	}
}

func TestRunNeverEchoesContextVerbatim(t *testing.T) {
	secret := "patient Jean Dupont born 1962"
	payload := newTestPipeline(t, nil).Run(context.Background(), map[string]string{"identity": secret}, RunOptions{})

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "1962") || strings.Contains(string(raw), secret) {
		t.Fatal("context record content leaked into the payload")
	}
}

func containsReason(reasons []string, want string) bool {
	for _, reason := range reasons {
		if reason == want {
			return true
		}
	}
	return false
}
