package pipeline

import (
	"fmt"
	"strings"

	"evidencer/internal/registry"
)

const evidenceSnippetRunes = 140

// Synthesize builds the narrative block and citation list for a facet that
// passed gating, or the fixed insufficient stub otherwise. Partial synthesis
// never happens.
func Synthesize(facet Facet, status Status, kept []CandidateDocument, reg *registry.Registry) Synthesis {
	if status != StatusOK || len(kept) == 0 {
		return insufficientStub(facet)
	}

	top := kept
	if len(top) > 2 {
		top = top[:2]
	}
	sentences := make([]string, 0, len(top))
	for _, candidate := range top {
		sentences = append(sentences, evidenceSentence(candidate))
	}

	citations := make([]CitationRef, 0, len(kept))
	for _, candidate := range kept {
		citations = append(citations, citationFor(candidate, reg))
	}

	// Only the evidence slot quotes candidate material; the remaining slots
	// stay template-level so thin evidence cannot be over-claimed.
	return Synthesis{
		Narrative: Narrative{
			Evidence:     strings.Join(sentences, " "),
			Determinants: fmt.Sprintf("Material and social constraints relevant to %s should be reviewed against the patient's documented situation.", strings.ToLower(facet.Label)),
			Feasibility:  fmt.Sprintf("Recommendations on %s need a feasibility check against treatment burden and the patient's current capacity.", strings.ToLower(facet.Label)),
			Coordination: fmt.Sprintf("Findings on %s should be shared with the treating team before the next consultation.", strings.ToLower(facet.Label)),
		},
		Citations: citations,
	}
}

func insufficientStub(facet Facet) Synthesis {
	return Synthesis{
		Narrative: Narrative{
			Evidence:     fmt.Sprintf("Insufficient vetted evidence was found for %s; no claims are made.", strings.ToLower(facet.Label)),
			Determinants: "Insufficient evidence to characterize material determinants.",
			Feasibility:  "Insufficient evidence to assess feasibility.",
			Coordination: "Insufficient evidence to support coordination guidance.",
		},
		Citations: nil,
	}
}

func evidenceSentence(candidate CandidateDocument) string {
	date := "date unknown"
	if candidate.HasDate {
		date = candidate.Published.Format("2006-01-02")
	}
	snippet := trimToRunes(strings.TrimSpace(candidate.Snippet), evidenceSnippetRunes)
	if snippet == "" {
		snippet = trimToRunes(strings.TrimSpace(candidate.Content), evidenceSnippetRunes)
	}
	return fmt.Sprintf("%s (%s): %s", candidate.Title, date, snippet)
}

// citationFor prefers registry-asserted jurisdiction and evidence level over
// the candidate's self-reported values.
func citationFor(candidate CandidateDocument, reg *registry.Registry) CitationRef {
	jurisdiction := candidate.Jurisdiction
	evidenceLevel := candidate.EvidenceLevel
	sourceType := candidate.SourceType
	if reg != nil {
		if info, ok := reg.Lookup(candidate.URL); ok {
			if info.Jurisdiction != "" {
				jurisdiction = info.Jurisdiction
			}
			if info.EvidenceLevel != "" {
				evidenceLevel = info.EvidenceLevel
			}
			if sourceType == "" {
				sourceType = info.SourceType
			}
		}
	}

	date := ""
	if candidate.HasDate {
		date = candidate.Published.Format("2006-01-02")
	}
	comment := ""
	if sourceType != "" {
		comment = fmt.Sprintf("%s source via %s angle", sourceType, candidate.Angle)
	}

	return CitationRef{
		Title:         candidate.Title,
		Source:        candidate.Domain,
		Date:          date,
		Jurisdiction:  jurisdiction,
		EvidenceLevel: evidenceLevel,
		Comment:       comment,
	}
}
