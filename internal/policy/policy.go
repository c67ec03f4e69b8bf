package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultMinCandidatesPerFacet = 3
	defaultMinTrustedPerFacet    = 1
	defaultMinCoverage           = 0.4
	defaultMinFreshness          = 0.3
	defaultMinDiversity          = 0.2
	defaultWeightCoverage        = 0.5
	defaultWeightFreshness       = 0.3
	defaultWeightDiversity       = 0.2
	defaultGeneralYears          = 5
	defaultGuidelineYears        = 7
	defaultRightsMonths          = 18
)

// MinScores holds the per-dimension floors a facet must clear to pass gating.
type MinScores struct {
	Coverage  float64 `yaml:"coverage"`
	Freshness float64 `yaml:"freshness"`
	Diversity float64 `yaml:"diversity"`
}

type Thresholds struct {
	MinCandidatesPerFacet int       `yaml:"min_candidates_per_facet"`
	MinTrustedPerFacet    int       `yaml:"min_trusted_per_facet"`
	RequireRegionalSource bool      `yaml:"require_regional_source"`
	MinScores             MinScores `yaml:"min_scores"`
}

type Weights struct {
	Coverage  float64 `yaml:"coverage"`
	Freshness float64 `yaml:"freshness"`
	Diversity float64 `yaml:"diversity"`
}

// FreshnessWindows carries two deliberately separate year windows: the filter
// cutoff uses GeneralYears while per-candidate freshness scoring uses
// GuidelineYears. Policy authors should review both before changing either;
// the asymmetry is inherited behavior, not an accident of defaulting.
type FreshnessWindows struct {
	GeneralYears   int `yaml:"general_years"`
	GuidelineYears int `yaml:"guideline_years"`
	RightsMonths   int `yaml:"rights_months"`
}

// Policy is resolved once at startup and shared read-only across every facet
// in a run.
type Policy struct {
	Thresholds Thresholds       `yaml:"thresholds"`
	Weights    Weights          `yaml:"weights"`
	Freshness  FreshnessWindows `yaml:"freshness_windows"`
	Regional   []string         `yaml:"regional_jurisdictions"`
}

// Load reads the policy file and resolves defaults in place. A missing file is
// a configuration error the caller should treat as fatal.
func Load(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file %s: %w", path, err)
	}

	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return applyDefaults(p), nil
}

// Default returns the built-in policy with every default resolved.
func Default() Policy {
	return applyDefaults(Policy{})
}

func applyDefaults(p Policy) Policy {
	if p.Thresholds.MinCandidatesPerFacet <= 0 {
		p.Thresholds.MinCandidatesPerFacet = defaultMinCandidatesPerFacet
	}
	if p.Thresholds.MinTrustedPerFacet <= 0 {
		p.Thresholds.MinTrustedPerFacet = defaultMinTrustedPerFacet
	}
	if p.Thresholds.MinScores.Coverage <= 0 {
		p.Thresholds.MinScores.Coverage = defaultMinCoverage
	}
	if p.Thresholds.MinScores.Freshness <= 0 {
		p.Thresholds.MinScores.Freshness = defaultMinFreshness
	}
	if p.Thresholds.MinScores.Diversity <= 0 {
		p.Thresholds.MinScores.Diversity = defaultMinDiversity
	}
	if p.Weights.Coverage <= 0 {
		p.Weights.Coverage = defaultWeightCoverage
	}
	if p.Weights.Freshness <= 0 {
		p.Weights.Freshness = defaultWeightFreshness
	}
	if p.Weights.Diversity <= 0 {
		p.Weights.Diversity = defaultWeightDiversity
	}
	if p.Freshness.GeneralYears <= 0 {
		p.Freshness.GeneralYears = defaultGeneralYears
	}
	if p.Freshness.GuidelineYears <= 0 {
		p.Freshness.GuidelineYears = defaultGuidelineYears
	}
	if p.Freshness.RightsMonths <= 0 {
		p.Freshness.RightsMonths = defaultRightsMonths
	}
	if len(p.Regional) == 0 {
		p.Regional = []string{"FR", "EU"}
	}
	return p
}

// IsRegional reports whether a jurisdiction belongs to the configured
// regional set.
func (p Policy) IsRegional(jurisdiction string) bool {
	trimmed := strings.TrimSpace(jurisdiction)
	for _, region := range p.Regional {
		if strings.EqualFold(trimmed, region) {
			return true
		}
	}
	return false
}
