package pipeline

import (
	"time"

	"evidencer/internal/policy"
	"evidencer/internal/registry"
)

// Score computes the per-facet sub-scores and gating counters from the
// post-dedup candidate set. All values keep full precision; rounding is a
// render concern.
func Score(candidates []CandidateDocument, reg *registry.Registry, pol policy.Policy, now time.Time) FacetScores {
	var scores FacetScores

	jurisdictions := make(map[string]struct{})
	angles := make(map[Angle]struct{})
	freshnessSum := 0.0

	for _, candidate := range candidates {
		if reg != nil && reg.IsTrusted(candidate.URL) {
			scores.TrustedCount++
		}

		jurisdiction := effectiveJurisdiction(candidate, reg)
		if jurisdiction != "" {
			jurisdictions[jurisdiction] = struct{}{}
			if pol.IsRegional(jurisdiction) {
				scores.RegionalCount++
			}
		}
		angles[candidate.Angle] = struct{}{}
		freshnessSum += candidateFreshness(candidate, pol, now)
	}

	minTrusted := pol.Thresholds.MinTrustedPerFacet
	if minTrusted < 1 {
		minTrusted = 1
	}
	scores.Coverage = clampUnit(float64(scores.TrustedCount) / float64(minTrusted))

	if len(candidates) > 0 {
		scores.Freshness = freshnessSum / float64(len(candidates))
	}

	angleCount := len(angles)
	if angleCount < 1 {
		angleCount = 1
	}
	scores.Diversity = clampUnit(float64(len(jurisdictions)) / float64(angleCount))

	scores.Aggregate = scores.Coverage*pol.Weights.Coverage +
		scores.Freshness*pol.Weights.Freshness +
		scores.Diversity*pol.Weights.Diversity

	return scores
}

// candidateFreshness is 0.5 when the date is unknown, otherwise decays
// linearly over the guideline window.
func candidateFreshness(candidate CandidateDocument, pol policy.Policy, now time.Time) float64 {
	if !candidate.HasDate {
		return 0.5
	}
	ageDays := now.Sub(candidate.Published).Hours() / 24
	window := float64(365 * pol.Freshness.GuidelineYears)
	if window <= 0 {
		return 0.5
	}
	value := 1 - ageDays/window
	if value < 0 {
		return 0
	}
	return value
}

// effectiveJurisdiction prefers what the registry asserts about the domain
// over what the candidate reports about itself.
func effectiveJurisdiction(candidate CandidateDocument, reg *registry.Registry) string {
	if reg != nil {
		if info, ok := reg.Lookup(candidate.URL); ok && info.Jurisdiction != "" {
			return info.Jurisdiction
		}
	}
	return candidate.Jurisdiction
}

func clampUnit(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
