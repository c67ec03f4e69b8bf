package pipeline

import "strings"

// FreshnessClass selects which policy window the filter cutoff comes from.
type FreshnessClass string

const (
	ClassGeneral   FreshnessClass = "general"
	ClassGuideline FreshnessClass = "guideline"
	ClassRights    FreshnessClass = "rights"
)

// Facet is one topical sub-question investigated independently. Facets are
// value objects recreated per run; the catalogue order is the processing
// order and must stay stable.
type Facet struct {
	Name     string
	Label    string
	Focus    string
	Keywords []string
	Required bool
	Target   int
	Class    FreshnessClass
}

// Catalogue returns the fixed facet list in processing order.
func Catalogue() []Facet {
	return []Facet{
		{
			Name:     "medication_effects",
			Label:    "Medication effects",
			Focus:    "expected benefits, side effects and interactions of current treatment",
			Keywords: []string{"medication", "traitement", "side effect", "effet secondaire", "posologie", "dosage", "interaction"},
			Required: true,
			Target:   3,
			Class:    ClassGuideline,
		},
		{
			Name:     "symptom_management",
			Label:    "Symptom management",
			Focus:    "recommended non-drug management of the presenting symptoms",
			Keywords: []string{"symptom", "symptome", "pain", "douleur", "fatigue", "sleep", "sommeil"},
			Required: true,
			Target:   3,
			Class:    ClassGuideline,
		},
		{
			Name:     "comorbid_conditions",
			Label:    "Comorbid conditions",
			Focus:    "interactions between the main condition and documented comorbidities",
			Keywords: []string{"comorbid", "comorbidite", "diabete", "diabetes", "hypertension", "anxiety", "anxiete", "depression"},
			Required: false,
			Target:   2,
			Class:    ClassGeneral,
		},
		{
			Name:     "social_determinants",
			Label:    "Social determinants",
			Focus:    "housing, income, employment and isolation factors affecting care",
			Keywords: []string{"housing", "logement", "income", "revenu", "emploi", "unemployment", "isolation", "precarite"},
			Required: false,
			Target:   2,
			Class:    ClassGeneral,
		},
		{
			Name:     "care_coordination",
			Label:    "Care coordination",
			Focus:    "coordination between treating professionals and referral pathways",
			Keywords: []string{"coordination", "referral", "orientation", "specialist", "specialiste", "parcours"},
			Required: false,
			Target:   2,
			Class:    ClassGeneral,
		},
		{
			Name:     "local_resources",
			Label:    "Local resources",
			Focus:    "community services and institutional support available near the patient",
			Keywords: []string{"association", "community", "local", "proximite", "ccas", "support group", "groupe de parole"},
			Required: false,
			Target:   2,
			Class:    ClassGeneral,
		},
		{
			Name:     "patient_rights",
			Label:    "Patient rights",
			Focus:    "entitlements, coverage and administrative rights tied to the situation",
			Keywords: []string{"droits", "rights", "ald", "mdph", "invalidite", "coverage", "remboursement", "allocation"},
			Required: false,
			Target:   2,
			Class:    ClassRights,
		},
	}
}

// ExtractFacets scans the concatenated, lower-cased context fields and
// upgrades Required on every facet whose keywords appear. Output preserves
// catalogue order.
func ExtractFacets(contextRecord map[string]string) []Facet {
	var joined strings.Builder
	for _, value := range contextRecord {
		joined.WriteString(strings.ToLower(value))
		joined.WriteByte(' ')
	}
	haystack := joined.String()

	facets := Catalogue()
	for i := range facets {
		if facets[i].Required {
			continue
		}
		for _, keyword := range facets[i].Keywords {
			if strings.Contains(haystack, strings.ToLower(keyword)) {
				facets[i].Required = true
				break
			}
		}
	}
	return facets
}
