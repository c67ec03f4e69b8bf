package pipeline

import (
	"regexp"
	"strings"
)

// QueryContext carries the run-level hints used to seed queries. Extra terms
// come from the caller's context record and are scrubbed before use.
type QueryContext struct {
	Location    string
	Language    string
	Sensitivity string
	ExtraTerms  []string
}

// AngledQuery is one search query together with the angle that produced it.
type AngledQuery struct {
	Angle Angle
	Text  string
}

var (
	digitRunPattern  = regexp.MustCompile(`\d{2,}`)
	emailPattern     = regexp.MustCompile(`\S+@\S+`)
	honorificPattern = regexp.MustCompile(`(?i)\b(dr|pr|prof|mr|mrs|ms|mme|mlle|m)\.?\s+\p{L}+`)
)

// ScrubPII removes tokens that look like personal identifiers: digit runs,
// email markers, and honorific-plus-name pairs. Applied to every fragment
// used to build a query, never to the stored facet metadata.
func ScrubPII(raw string) string {
	scrubbed := emailPattern.ReplaceAllString(raw, " ")
	scrubbed = honorificPattern.ReplaceAllString(scrubbed, " ")
	scrubbed = digitRunPattern.ReplaceAllString(scrubbed, " ")
	return strings.Join(strings.Fields(scrubbed), " ")
}

// BuildQueries produces the three angled query buckets for a facet, plus one
// enriched query per bucket when scrubbed extra terms survive. Output is
// deterministic: identical inputs give byte-identical queries.
func BuildQueries(facet Facet, qc QueryContext) []AngledQuery {
	label := ScrubPII(facet.Label)
	focus := ScrubPII(facet.Focus)
	location := ScrubPII(qc.Location)

	seeds := []AngledQuery{
		{Angle: AngleClinical, Text: joinQuery(label, focus, "clinical guidelines evidence", location)},
		{Angle: AngleDeterminants, Text: joinQuery(label, "social determinants support needs", location)},
		{Angle: AngleLocal, Text: joinQuery(label, "local services community resources", location)},
	}

	extra := scrubbedTerms(qc.ExtraTerms)
	if extra == "" {
		return seeds
	}

	enriched := make([]AngledQuery, 0, len(seeds)*2)
	enriched = append(enriched, seeds...)
	for _, seed := range seeds {
		enriched = append(enriched, AngledQuery{
			Angle: seed.Angle,
			Text:  joinQuery(seed.Text, extra),
		})
	}
	return enriched
}

func scrubbedTerms(terms []string) string {
	kept := make([]string, 0, len(terms))
	for _, term := range terms {
		scrubbed := ScrubPII(term)
		if scrubbed != "" {
			kept = append(kept, scrubbed)
		}
	}
	return strings.Join(kept, " ")
}

func joinQuery(parts ...string) string {
	fields := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			fields = append(fields, trimmed)
		}
	}
	return strings.Join(strings.Fields(strings.Join(fields, " ")), " ")
}
