package pipeline

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"evidencer/internal/audit"
	"evidencer/internal/policy"
	"evidencer/internal/registry"

	"github.com/google/uuid"
)

// Pipeline wires the research stages together. Registry, policy and the
// collector's cache are injected once and shared read-only across facets.
type Pipeline struct {
	reg       *registry.Registry
	pol       policy.Policy
	collector *Collector
	auditLog  *audit.Logger
	now       func() time.Time
}

// RunOptions carries caller-level knobs for one run. A supplied SessionID is
// used verbatim; otherwise a fresh one is generated.
type RunOptions struct {
	SessionID   string
	Location    string
	Language    string
	Sensitivity string
}

func New(reg *registry.Registry, pol policy.Policy, collector *Collector, auditLog *audit.Logger) *Pipeline {
	return &Pipeline{
		reg:       reg,
		pol:       pol,
		collector: collector,
		auditLog:  auditLog,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run processes every facet in catalogue order and returns one block per
// facet plus the merged decision trail. Insufficient evidence is a modeled
// outcome, never an error; the only way collection degrades a facet is a
// caller deadline, and even that never fails the run.
func (p *Pipeline) Run(ctx context.Context, contextRecord map[string]string, opts RunOptions) SessionPayload {
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := p.now()

	sessionID := strings.TrimSpace(opts.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	facets := ExtractFacets(contextRecord)
	payload := SessionPayload{
		Facets: make([]FacetBlock, 0, len(facets)),
		Audit: AuditBlock{
			SessionID: sessionID,
			StartedAt: startedAt,
			Decisions: make([]FilterDecision, 0, 32),
		},
	}

	for _, facet := range facets {
		block, decisions := p.runFacet(ctx, facet, contextRecord, opts)
		payload.Facets = append(payload.Facets, block)
		payload.Audit.Decisions = append(payload.Audit.Decisions, decisions...)
	}

	// Fire-and-forget: audit I/O problems never affect the returned payload.
	if err := p.auditLog.Write(buildAuditRecord(payload, p.now())); err != nil {
		log.Printf("pipeline: audit log write failed for session %s: %v", sessionID, err)
	}
	return payload
}

func (p *Pipeline) runFacet(ctx context.Context, facet Facet, contextRecord map[string]string, opts RunOptions) (FacetBlock, []FilterDecision) {
	queries := BuildQueries(facet, QueryContext{
		Location:    opts.Location,
		Language:    opts.Language,
		Sensitivity: opts.Sensitivity,
		ExtraTerms:  facetContextTerms(facet, contextRecord),
	})

	collected, err := p.collector.Collect(ctx, facet, queries)
	if err != nil {
		log.Printf("pipeline: collection aborted for facet %s: %v", facet.Name, err)
		collected = nil
	}

	filtered, filterDecisions := Filter(facet, collected, p.reg, p.pol, p.now())
	kept, dedupeDecisions := Dedupe(facet, filtered)
	scores := Score(kept, p.reg, p.pol, p.now())
	status, reasons := Evaluate(len(collected), scores, p.pol)
	synthesis := Synthesize(facet, status, kept, p.reg)

	block := buildFacetBlock(facet, status, reasons, scores, queries, len(collected), len(kept), synthesis)

	decisions := make([]FilterDecision, 0, len(filterDecisions)+len(dedupeDecisions))
	decisions = append(decisions, filterDecisions...)
	decisions = append(decisions, dedupeDecisions...)
	return block, decisions
}

// facetContextTerms returns the context values that mention one of the
// facet's keywords. The values feed query enrichment only after scrubbing
// and are never echoed into the payload.
func facetContextTerms(facet Facet, contextRecord map[string]string) []string {
	if len(contextRecord) == 0 {
		return nil
	}
	keys := make([]string, 0, len(contextRecord))
	for key := range contextRecord {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var terms []string
	for _, key := range keys {
		value := contextRecord[key]
		lowered := strings.ToLower(value)
		for _, keyword := range facet.Keywords {
			if strings.Contains(lowered, strings.ToLower(keyword)) {
				terms = append(terms, value)
				break
			}
		}
	}
	return terms
}
