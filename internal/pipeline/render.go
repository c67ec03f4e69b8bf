package pipeline

import (
	"math"
	"time"
)

// buildFacetBlock assembles the renderable output for one facet. Scores are
// rounded to 3 decimals here and only here; gating already ran on the
// full-precision values.
func buildFacetBlock(facet Facet, status Status, reasons []string, scores FacetScores, queries []AngledQuery, rawCollected, keptCount int, synthesis Synthesis) FacetBlock {
	queryTexts := make([]string, 0, len(queries))
	for _, query := range queries {
		queryTexts = append(queryTexts, query.Text)
	}

	return FacetBlock{
		Name:    facet.Name,
		Label:   facet.Label,
		Status:  status,
		Reasons: reasons,
		Scores: RenderedScores{
			Coverage:      round3(scores.Coverage),
			Freshness:     round3(scores.Freshness),
			Diversity:     round3(scores.Diversity),
			Aggregate:     round3(scores.Aggregate),
			TrustedCount:  scores.TrustedCount,
			RegionalCount: scores.RegionalCount,
		},
		Queries: queryTexts,
		Progress: Progress{
			RawCollected: rawCollected,
			Kept:         keptCount,
			Target:       facet.Target,
		},
		Synthesis: synthesis,
	}
}

// auditRecord is the line written to the rotating audit log: traceability
// data only, never the citation text itself.
type auditRecord struct {
	SessionID  string             `json:"sessionId"`
	StartedAt  time.Time          `json:"startedAt"`
	DurationMS int64              `json:"durationMs"`
	Facets     []auditFacetRecord `json:"facets"`
	Decisions  int                `json:"decisions"`
}

type auditFacetRecord struct {
	Name         string   `json:"name"`
	Status       Status   `json:"status"`
	Reasons      []string `json:"reasons,omitempty"`
	Aggregate    float64  `json:"aggregate"`
	RawCollected int      `json:"rawCollected"`
	Kept         int      `json:"kept"`
}

func buildAuditRecord(payload SessionPayload, finishedAt time.Time) auditRecord {
	record := auditRecord{
		SessionID:  payload.Audit.SessionID,
		StartedAt:  payload.Audit.StartedAt,
		DurationMS: finishedAt.Sub(payload.Audit.StartedAt).Milliseconds(),
		Decisions:  len(payload.Audit.Decisions),
	}
	for _, facet := range payload.Facets {
		record.Facets = append(record.Facets, auditFacetRecord{
			Name:         facet.Name,
			Status:       facet.Status,
			Reasons:      facet.Reasons,
			Aggregate:    facet.Scores.Aggregate,
			RawCollected: facet.Progress.RawCollected,
			Kept:         facet.Progress.Kept,
		})
	}
	return record
}

func round3(value float64) float64 {
	return math.Round(value*1000) / 1000
}
