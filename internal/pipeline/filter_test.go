package pipeline

import (
	"strings"
	"testing"
	"time"

	"evidencer/internal/policy"
)

func TestFilterScenario(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	facet := Catalogue()[3] // general class, 5-year window
	pol := policy.Default()

	candidates := []CandidateDocument{
		{URL: "https://news.spam.example/story", Domain: "news.spam.example", Content: strings.Repeat("x", 500)},
		{URL: "https://old.example.org/post", Domain: "old.example.org", Published: now.AddDate(-10, 0, 0), HasDate: true, Content: strings.Repeat("x", 500)},
		{URL: "https://sante.gouv.fr/reco", Domain: "sante.gouv.fr", Published: now.AddDate(0, -6, 0), HasDate: true, Content: strings.Repeat("x", 500)},
	}

	kept, decisions := Filter(facet, candidates, testRegistry(), pol, now)
	if len(kept) != 1 || kept[0].Domain != "sante.gouv.fr" {
		t.Fatalf("expected only the fresh trusted candidate, got %+v", kept)
	}
	if len(decisions) != 3 {
		t.Fatalf("expected one decision per candidate, got %d", len(decisions))
	}

	wantReasons := map[string]string{
		"https://news.spam.example/story": ReasonBlockedDomain,
		"https://old.example.org/post":    ReasonStale,
		"https://sante.gouv.fr/reco":      ReasonAcceptedInitial,
	}
	for _, decision := range decisions {
		if decision.Reason != wantReasons[decision.URL] {
			t.Fatalf("decision for %s: got %s, want %s", decision.URL, decision.Reason, wantReasons[decision.URL])
		}
		if decision.Kept != (decision.Reason == ReasonAcceptedInitial) {
			t.Fatalf("kept flag inconsistent for %s", decision.URL)
		}
	}
}

func TestFilterRejectsThinUnregisteredContent(t *testing.T) {
	now := time.Now().UTC()
	facet := Catalogue()[3]

	candidates := []CandidateDocument{
		{URL: "https://blog.example.net/short", Domain: "blog.example.net", Content: "short note"},
		{URL: "https://ec.europa.eu/short", Domain: "ec.europa.eu", Content: "short note"},
	}
	kept, decisions := Filter(facet, candidates, testRegistry(), policy.Default(), now)

	if len(kept) != 1 || kept[0].Domain != "ec.europa.eu" {
		t.Fatalf("registry-listed domain must survive thin content, got %+v", kept)
	}
	if decisions[0].Reason != ReasonLowQuality {
		t.Fatalf("expected low_quality for unregistered thin candidate, got %s", decisions[0].Reason)
	}
}

func TestFilterRightsClassUsesMonthsWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var rights Facet
	for _, facet := range Catalogue() {
		if facet.Class == ClassRights {
			rights = facet
		}
	}

	candidates := []CandidateDocument{
		{URL: "https://sante.gouv.fr/droits-2023", Domain: "sante.gouv.fr", Published: now.AddDate(-2, 0, 0), HasDate: true, Content: strings.Repeat("x", 400)},
		{URL: "https://solidarites.gouv.fr/droits-2025", Domain: "solidarites.gouv.fr", Published: now.AddDate(0, -6, 0), HasDate: true, Content: strings.Repeat("x", 400)},
	}
	kept, _ := Filter(rights, candidates, testRegistry(), policy.Default(), now)
	if len(kept) != 1 || kept[0].Domain != "solidarites.gouv.fr" {
		t.Fatalf("two-year-old rights material must be stale under the 18-month window, got %+v", kept)
	}
}

func TestFilterKeepsUndatedCandidates(t *testing.T) {
	kept, _ := Filter(Catalogue()[3], []CandidateDocument{
		{URL: "https://sante.gouv.fr/undated", Domain: "sante.gouv.fr", Content: strings.Repeat("x", 400)},
	}, testRegistry(), policy.Default(), time.Now().UTC())
	if len(kept) != 1 {
		t.Fatal("candidates without a date are not stale")
	}
}
