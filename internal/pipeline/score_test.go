package pipeline

import (
	"math"
	"testing"
	"time"

	"evidencer/internal/policy"
)

func TestScoreCountsAndSubScores(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	pol := policy.Default()
	reg := testRegistry()

	candidates := []CandidateDocument{
		{URL: "https://sante.gouv.fr/a", Domain: "sante.gouv.fr", Angle: AngleClinical, Published: now.AddDate(-1, 0, 0), HasDate: true},
		{URL: "https://ec.europa.eu/b", Domain: "ec.europa.eu", Angle: AngleDeterminants},
		{URL: "https://assoc.example.org/c", Domain: "assoc.example.org", Angle: AngleLocal, Jurisdiction: "us"},
	}

	scores := Score(candidates, reg, pol, now)

	if scores.TrustedCount != 1 {
		t.Fatalf("expected 1 trusted candidate, got %d", scores.TrustedCount)
	}
	// FR and EU are regional; the registry asserts both, overriding nothing here.
	if scores.RegionalCount != 2 {
		t.Fatalf("expected 2 regional candidates, got %d", scores.RegionalCount)
	}
	if scores.Coverage != 1 {
		t.Fatalf("coverage should saturate at 1 with min_trusted=1, got %f", scores.Coverage)
	}

	// One candidate a year old under a 7-year window, one unknown (0.5),
	// one unknown (0.5).
	perCandidate := (1 - 365.0/(365*7)) + 0.5 + 0.5
	wantFreshness := perCandidate / 3
	if math.Abs(scores.Freshness-wantFreshness) > 1e-9 {
		t.Fatalf("freshness = %f, want %f", scores.Freshness, wantFreshness)
	}

	// Three jurisdictions over three angles.
	if scores.Diversity != 1 {
		t.Fatalf("diversity = %f, want 1", scores.Diversity)
	}

	wantAggregate := scores.Coverage*pol.Weights.Coverage + scores.Freshness*pol.Weights.Freshness + scores.Diversity*pol.Weights.Diversity
	if math.Abs(scores.Aggregate-wantAggregate) > 1e-9 {
		t.Fatalf("aggregate = %f, want %f", scores.Aggregate, wantAggregate)
	}
}

func TestScoreUnknownDatesScoreHalf(t *testing.T) {
	scores := Score([]CandidateDocument{
		{URL: "https://a.example.org", Domain: "a.example.org", Angle: AngleClinical},
	}, testRegistry(), policy.Default(), time.Now().UTC())
	if scores.Freshness != 0.5 {
		t.Fatalf("unknown date freshness = %f, want 0.5", scores.Freshness)
	}
}

func TestScoreEmptySet(t *testing.T) {
	scores := Score(nil, testRegistry(), policy.Default(), time.Now().UTC())
	if scores.Coverage != 0 || scores.Freshness != 0 || scores.Diversity != 0 || scores.Aggregate != 0 {
		t.Fatalf("empty set must score zero, got %+v", scores)
	}
}

func TestEvaluateReasonsAccumulateIndependently(t *testing.T) {
	pol := policy.Default()
	pol.Thresholds.RequireRegionalSource = true

	status, reasons := Evaluate(1, FacetScores{}, pol)
	if status != StatusInsufficient {
		t.Fatalf("expected insufficient, got %s", status)
	}
	want := map[string]bool{
		ReasonCollectionInsufficient: true,
		ReasonTrustedInsufficient:    true,
		ReasonNoRegionalSource:       true,
		ReasonScoresInsufficient:     true,
	}
	if len(reasons) != len(want) {
		t.Fatalf("expected %d reasons, got %v", len(want), reasons)
	}
	for _, reason := range reasons {
		if !want[reason] {
			t.Fatalf("unexpected reason %s", reason)
		}
	}
}

func TestEvaluatePassesWhenAllThresholdsMet(t *testing.T) {
	pol := policy.Default()
	scores := FacetScores{
		Coverage:      1,
		Freshness:     0.8,
		Diversity:     0.5,
		TrustedCount:  2,
		RegionalCount: 1,
	}
	status, reasons := Evaluate(5, scores, pol)
	if status != StatusOK || len(reasons) != 0 {
		t.Fatalf("expected ok with no reasons, got %s %v", status, reasons)
	}
}

func TestEvaluateCollectionCheckUsesRawCount(t *testing.T) {
	pol := policy.Default()
	scores := FacetScores{Coverage: 1, Freshness: 0.8, Diversity: 0.5, TrustedCount: 2, RegionalCount: 1}

	// Dedup can shrink the scored set to one candidate while the raw count
	// still clears the collection threshold.
	if status, _ := Evaluate(pol.Thresholds.MinCandidatesPerFacet, scores, pol); status != StatusOK {
		t.Fatal("raw count at threshold must pass the collection check")
	}
	status, reasons := Evaluate(pol.Thresholds.MinCandidatesPerFacet-1, scores, pol)
	if status != StatusInsufficient || len(reasons) != 1 || reasons[0] != ReasonCollectionInsufficient {
		t.Fatalf("expected only collection_insufficient, got %s %v", status, reasons)
	}
}

func TestGatingMonotonicity(t *testing.T) {
	scores := FacetScores{Coverage: 0.5, Freshness: 0.5, Diversity: 0.5, TrustedCount: 1, RegionalCount: 1}

	strict := policy.Default()
	strict.Thresholds.MinScores = policy.MinScores{Coverage: 0.9, Freshness: 0.9, Diversity: 0.9}
	relaxed := policy.Default()
	relaxed.Thresholds.MinScores = policy.MinScores{Coverage: 0.1, Freshness: 0.1, Diversity: 0.1}

	strictStatus, _ := Evaluate(5, scores, strict)
	relaxedStatus, _ := Evaluate(5, scores, relaxed)
	if strictStatus == StatusOK && relaxedStatus == StatusInsufficient {
		t.Fatal("lowering thresholds must never fail a previously passing facet")
	}
	if strictStatus != StatusInsufficient || relaxedStatus != StatusOK {
		t.Fatalf("expected strict=insufficient relaxed=ok, got %s / %s", strictStatus, relaxedStatus)
	}
}
