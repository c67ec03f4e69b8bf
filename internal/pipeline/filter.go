package pipeline

import (
	"time"

	"evidencer/internal/policy"
	"evidencer/internal/registry"
)

// Filter drops blocked, stale and thin candidates. Every candidate produces
// exactly one decision, kept or not.
func Filter(facet Facet, candidates []CandidateDocument, reg *registry.Registry, pol policy.Policy, now time.Time) ([]CandidateDocument, []FilterDecision) {
	cutoff := freshnessCutoff(facet.Class, pol, now)

	kept := make([]CandidateDocument, 0, len(candidates))
	decisions := make([]FilterDecision, 0, len(candidates))
	for _, candidate := range candidates {
		reason := ReasonAcceptedInitial
		keep := true

		switch {
		case reg != nil && reg.IsBlocked(candidate.URL):
			keep, reason = false, ReasonBlockedDomain
		case candidate.HasDate && candidate.Published.Before(cutoff):
			keep, reason = false, ReasonStale
		case noRegistryEntry(reg, candidate.URL) && len([]rune(candidate.Content)) < thinContentRunes:
			keep, reason = false, ReasonLowQuality
		}

		decisions = append(decisions, FilterDecision{
			Facet:  facet.Name,
			Stage:  "filter",
			URL:    candidate.URL,
			Kept:   keep,
			Reason: reason,
		})
		if keep {
			kept = append(kept, candidate)
		}
	}
	return kept, decisions
}

// freshnessCutoff derives the oldest acceptable publication date for a facet
// class. Rights material ages in months; everything else uses the general
// year window. Scoring separately uses the guideline window.
func freshnessCutoff(class FreshnessClass, pol policy.Policy, now time.Time) time.Time {
	if class == ClassRights {
		return now.AddDate(0, -pol.Freshness.RightsMonths, 0)
	}
	return now.AddDate(-pol.Freshness.GeneralYears, 0, 0)
}

func noRegistryEntry(reg *registry.Registry, rawURL string) bool {
	if reg == nil {
		return true
	}
	_, ok := reg.Lookup(rawURL)
	return !ok
}
