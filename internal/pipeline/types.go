package pipeline

import (
	"context"
	"time"
)

type Status string

const (
	StatusOK           Status = "ok"
	StatusInsufficient Status = "insufficient"
)

// Reason codes recorded in the decision trail and in gating output.
const (
	ReasonBlockedDomain    = "blocked_domain"
	ReasonStale            = "stale"
	ReasonLowQuality       = "low_quality"
	ReasonAcceptedInitial  = "accepted_initial"
	ReasonDuplicateDomain  = "duplicate_domain"
	ReasonDuplicateContent = "duplicate_content"
	ReasonKept             = "kept"

	ReasonCollectionInsufficient = "collection_insufficient"
	ReasonTrustedInsufficient    = "trusted_insufficient"
	ReasonNoRegionalSource       = "no_regional_source"
	ReasonScoresInsufficient     = "scores_insufficient"
)

type Angle string

const (
	AngleClinical     Angle = "clinical_evidence"
	AngleDeterminants Angle = "social_determinants"
	AngleLocal        Angle = "local_resources"
)

// RawResult is one untouched search result as returned by a fetch capability.
type RawResult struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Snippet       string `json:"snippet"`
	Content       string `json:"content,omitempty"`
	PublishedAt   string `json:"publishedAt,omitempty"`
	SourceType    string `json:"sourceType,omitempty"`
	EvidenceLevel string `json:"evidenceLevel,omitempty"`
	Jurisdiction  string `json:"jurisdiction,omitempty"`
}

// FetchOptions is passed to every Fetch call. Implementations that have no
// use for a field simply ignore it.
type FetchOptions struct {
	MaxResults int
	Timeout    time.Duration
	UserAgent  string
}

// Fetcher is the external search capability. The pipeline never hardcodes a
// provider; callers inject one.
type Fetcher interface {
	Fetch(ctx context.Context, query string, opts FetchOptions) ([]RawResult, error)
}

// CandidateDocument is a search result after collection: blocked and empty
// URLs have been dropped, the domain normalized, and the publication date
// parsed best-effort. It flows through filter, dedupe and scoring unchanged.
type CandidateDocument struct {
	URL           string
	Title         string
	Snippet       string
	Content       string
	Published     time.Time
	HasDate       bool
	Domain        string
	SourceType    string
	EvidenceLevel string
	Jurisdiction  string
	Angle         Angle
	Raw           RawResult
}

// FilterDecision records one accept/reject decision for the audit trail.
type FilterDecision struct {
	Facet  string `json:"facet"`
	Stage  string `json:"stage"`
	URL    string `json:"url"`
	Kept   bool   `json:"kept"`
	Reason string `json:"reason"`
}

// FacetScores carries the full-precision scoring output for one facet.
// Rounding happens only at render time.
type FacetScores struct {
	Coverage      float64
	Freshness     float64
	Diversity     float64
	Aggregate     float64
	TrustedCount  int
	RegionalCount int
}

type CitationRef struct {
	Title         string `json:"title"`
	Source        string `json:"source"`
	Date          string `json:"date"`
	Jurisdiction  string `json:"jurisdiction,omitempty"`
	EvidenceLevel string `json:"evidenceLevel,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

type Narrative struct {
	Evidence     string `json:"evidence"`
	Determinants string `json:"determinants"`
	Feasibility  string `json:"feasibility"`
	Coordination string `json:"coordination"`
}

// Synthesis is either fully populated (facet passed gating) or the fixed
// insufficient stub with no citations. Never anything in between.
type Synthesis struct {
	Narrative Narrative     `json:"narrative"`
	Citations []CitationRef `json:"citations"`
}

type RenderedScores struct {
	Coverage      float64 `json:"coverage"`
	Freshness     float64 `json:"freshness"`
	Diversity     float64 `json:"diversity"`
	Aggregate     float64 `json:"aggregate"`
	TrustedCount  int     `json:"trustedCount"`
	RegionalCount int     `json:"regionalCount"`
}

type Progress struct {
	RawCollected int `json:"rawCollected"`
	Kept         int `json:"kept"`
	Target       int `json:"target"`
}

type FacetBlock struct {
	Name      string         `json:"name"`
	Label     string         `json:"label"`
	Status    Status         `json:"status"`
	Reasons   []string       `json:"reasons,omitempty"`
	Scores    RenderedScores `json:"scores"`
	Queries   []string       `json:"queries"`
	Progress  Progress       `json:"progress"`
	Synthesis Synthesis      `json:"synthesis"`
}

type AuditBlock struct {
	SessionID string           `json:"sessionId"`
	StartedAt time.Time        `json:"startedAt"`
	Decisions []FilterDecision `json:"decisions"`
}

// SessionPayload is the root output of one pipeline run.
type SessionPayload struct {
	Facets []FacetBlock `json:"facets"`
	Audit  AuditBlock   `json:"audit"`
}
