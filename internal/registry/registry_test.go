package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func testRegistry() *Registry {
	return New(
		[]SourceInfo{
			{Pattern: "*.gouv.fr", SourceType: "government", Jurisdiction: "FR", EvidenceLevel: "high"},
			{Pattern: "www.has-sante.fr", SourceType: "guideline", Jurisdiction: "FR", EvidenceLevel: "high"},
		},
		[]SourceInfo{
			{Pattern: "*.europa.eu", SourceType: "institution", Jurisdiction: "EU", EvidenceLevel: "medium"},
		},
		[]SourceInfo{
			{Pattern: "*.content-farm.example", SourceType: "aggregator"},
		},
	)
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing registry file")
	}
}

func TestLoadParsesLists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	raw := []byte(`trusted:
  - pattern: "*.gouv.fr"
    type: government
    jurisdiction: fr
    evidence_level: high
blocked:
  - pattern: "spam.example"
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reg.IsTrusted("https://sante.gouv.fr/page") {
		t.Fatal("expected gouv.fr sub-domain to be trusted")
	}
	if info, ok := reg.Lookup("sante.gouv.fr"); !ok || info.Jurisdiction != "FR" {
		t.Fatalf("expected FR jurisdiction from lookup, got %+v ok=%v", info, ok)
	}
	if !reg.IsBlocked("http://spam.example/a") {
		t.Fatal("expected spam.example to be blocked")
	}
}

func TestGlobMatchingAndPrecedence(t *testing.T) {
	reg := testRegistry()

	if !reg.IsTrusted("https://solidarites.gouv.fr/aides") {
		t.Fatal("expected wildcard trusted match")
	}
	if !reg.IsProvisional("https://ec.europa.eu/social") {
		t.Fatal("expected wildcard provisional match")
	}
	if reg.IsTrusted("https://ec.europa.eu/social") {
		t.Fatal("provisional domain must not report trusted")
	}
	if !reg.IsBlocked("https://news.content-farm.example/story") {
		t.Fatal("expected blocked match")
	}

	info, ok := reg.Lookup("https://www.has-sante.fr/guide")
	if !ok || info.SourceType != "guideline" {
		t.Fatalf("expected guideline entry, got %+v ok=%v", info, ok)
	}
	if _, ok := reg.Lookup("https://unknown.example.org"); ok {
		t.Fatal("expected no entry for unknown domain")
	}

	if list, ok := reg.ListFor("https://sante.gouv.fr"); !ok || list != ListTrusted {
		t.Fatalf("expected trusted list, got %q ok=%v", list, ok)
	}
}

func TestNormalizeDomain(t *testing.T) {
	cases := map[string]string{
		"https://Sante.Gouv.FR/path?q=1": "sante.gouv.fr",
		"SANTE.GOUV.FR":                  "sante.gouv.fr",
		"example.org:8080/path":          "example.org",
		"  ":                             "",
	}
	for raw, want := range cases {
		if got := NormalizeDomain(raw); got != want {
			t.Fatalf("NormalizeDomain(%q) = %q, want %q", raw, got, want)
		}
	}
}
