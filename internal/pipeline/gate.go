package pipeline

import "evidencer/internal/policy"

// Evaluate runs the pass/fail gate for one facet. Reasons accumulate
// independently; any reason forces insufficient. The collection-size check
// uses the raw collected count, so deduplication can shrink the scored set
// without flipping the "did we find enough raw material" answer.
func Evaluate(rawCollected int, scores FacetScores, pol policy.Policy) (Status, []string) {
	var reasons []string

	if rawCollected < pol.Thresholds.MinCandidatesPerFacet {
		reasons = append(reasons, ReasonCollectionInsufficient)
	}
	if scores.TrustedCount < pol.Thresholds.MinTrustedPerFacet {
		reasons = append(reasons, ReasonTrustedInsufficient)
	}
	if pol.Thresholds.RequireRegionalSource && scores.RegionalCount == 0 {
		reasons = append(reasons, ReasonNoRegionalSource)
	}
	if scores.Coverage < pol.Thresholds.MinScores.Coverage ||
		scores.Freshness < pol.Thresholds.MinScores.Freshness ||
		scores.Diversity < pol.Thresholds.MinScores.Diversity {
		reasons = append(reasons, ReasonScoresInsufficient)
	}

	if len(reasons) > 0 {
		return StatusInsufficient, reasons
	}
	return StatusOK, nil
}
