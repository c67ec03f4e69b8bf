package pipeline

import (
	"strings"
	"unicode"
)

const contentSimilarityThreshold = 0.85

// Dedupe collapses candidates sharing a normalized domain, then candidates
// with near-identical content. Quadratic in kept-candidate count, which stays
// in the tens per facet; a shingling index would be the next step if that
// ever changed.
func Dedupe(facet Facet, candidates []CandidateDocument) ([]CandidateDocument, []FilterDecision) {
	kept := make([]CandidateDocument, 0, len(candidates))
	keptDomains := make(map[string]struct{}, len(candidates))
	keptTokens := make([]map[string]struct{}, 0, len(candidates))
	decisions := make([]FilterDecision, 0, len(candidates))

	for _, candidate := range candidates {
		reason := ReasonKept
		keep := true

		if _, seen := keptDomains[candidate.Domain]; seen {
			keep, reason = false, ReasonDuplicateDomain
		} else {
			tokens := contentTokens(candidate.Content)
			for _, existing := range keptTokens {
				if jaccard(tokens, existing) >= contentSimilarityThreshold {
					keep, reason = false, ReasonDuplicateContent
					break
				}
			}
			if keep {
				keptDomains[candidate.Domain] = struct{}{}
				keptTokens = append(keptTokens, tokens)
			}
		}

		decisions = append(decisions, FilterDecision{
			Facet:  facet.Name,
			Stage:  "dedupe",
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

func contentTokens(raw string) map[string]struct{} {
	out := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, field := range fields {
		if len(field) > 3 {
			out[field] = struct{}{}
		}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	smaller, larger := a, b
	if len(b) < len(a) {
		smaller, larger = b, a
	}
	intersection := 0
	for token := range smaller {
		if _, ok := larger[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
