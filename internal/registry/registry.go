package registry

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceInfo describes one curated registry entry. Pattern supports glob
// wildcards, so "*.gouv.fr" covers every sub-domain of gouv.fr.
type SourceInfo struct {
	Pattern       string `yaml:"pattern"`
	SourceType    string `yaml:"type"`
	Jurisdiction  string `yaml:"jurisdiction"`
	EvidenceLevel string `yaml:"evidence_level"`
}

type List string

const (
	ListTrusted     List = "trusted"
	ListProvisional List = "provisional"
	ListBlocked     List = "blocked"
)

// Registry answers membership queries against the trusted, provisional and
// blocked source lists. Loaded once at startup and read-only afterwards.
type Registry struct {
	trusted     []SourceInfo
	provisional []SourceInfo
	blocked     []SourceInfo
}

type registryFile struct {
	Trusted     []SourceInfo `yaml:"trusted"`
	Provisional []SourceInfo `yaml:"provisional"`
	Blocked     []SourceInfo `yaml:"blocked"`
}

// Load reads the registry file. A missing or unparseable file is a
// configuration error the caller should treat as fatal.
func Load(filePath string) (*Registry, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read registry file %s: %w", filePath, err)
	}

	var parsed registryFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse registry file %s: %w", filePath, err)
	}

	return New(parsed.Trusted, parsed.Provisional, parsed.Blocked), nil
}

// New builds a registry from already-parsed lists. Used by tests and by
// callers that manage their own configuration format.
func New(trusted, provisional, blocked []SourceInfo) *Registry {
	return &Registry{
		trusted:     normalizeEntries(trusted),
		provisional: normalizeEntries(provisional),
		blocked:     normalizeEntries(blocked),
	}
}

// Lookup returns registry metadata for the URL's host, trusted entries taking
// precedence over provisional ones. Blocked-only domains have no metadata.
func (r *Registry) Lookup(rawURL string) (SourceInfo, bool) {
	host := NormalizeDomain(rawURL)
	if host == "" {
		return SourceInfo{}, false
	}
	if info, ok := matchEntries(r.trusted, host); ok {
		return info, true
	}
	if info, ok := matchEntries(r.provisional, host); ok {
		return info, true
	}
	return SourceInfo{}, false
}

func (r *Registry) IsBlocked(rawURL string) bool {
	_, ok := matchEntries(r.blocked, NormalizeDomain(rawURL))
	return ok
}

func (r *Registry) IsTrusted(rawURL string) bool {
	_, ok := matchEntries(r.trusted, NormalizeDomain(rawURL))
	return ok
}

func (r *Registry) IsProvisional(rawURL string) bool {
	_, ok := matchEntries(r.provisional, NormalizeDomain(rawURL))
	return ok
}

// ListFor reports which list the URL's host belongs to, blocked winning over
// trusted and provisional.
func (r *Registry) ListFor(rawURL string) (List, bool) {
	switch {
	case r.IsBlocked(rawURL):
		return ListBlocked, true
	case r.IsTrusted(rawURL):
		return ListTrusted, true
	case r.IsProvisional(rawURL):
		return ListProvisional, true
	default:
		return "", false
	}
}

// NormalizeDomain reduces a bare domain or a full URL to its case-folded host
// component. Unparseable input yields an empty string.
func NormalizeDomain(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil || parsed.Hostname() == "" {
			return ""
		}
		return parsed.Hostname()
	}
	// Bare domains may still carry a path or port.
	if idx := strings.IndexAny(trimmed, "/?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if idx := strings.IndexByte(trimmed, ':'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}

func matchEntries(entries []SourceInfo, host string) (SourceInfo, bool) {
	if host == "" {
		return SourceInfo{}, false
	}
	for _, entry := range entries {
		if matchPattern(entry.Pattern, host) {
			return entry, true
		}
	}
	return SourceInfo{}, false
}

// matchPattern compares a glob pattern against a host. path.Match treats '*'
// as "any run of non-slash characters", which is exactly the right wildcard
// for dotted hostnames; "*.gouv.fr" additionally matches the apex "gouv.fr".
func matchPattern(pattern, host string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return false
	}
	if pattern == host {
		return true
	}
	if ok, err := path.Match(pattern, host); err == nil && ok {
		return true
	}
	if strings.HasPrefix(pattern, "*.") && strings.TrimPrefix(pattern, "*.") == host {
		return true
	}
	return false
}

func normalizeEntries(entries []SourceInfo) []SourceInfo {
	out := make([]SourceInfo, 0, len(entries))
	for _, entry := range entries {
		entry.Pattern = strings.ToLower(strings.TrimSpace(entry.Pattern))
		if entry.Pattern == "" {
			continue
		}
		entry.Jurisdiction = strings.ToUpper(strings.TrimSpace(entry.Jurisdiction))
		entry.SourceType = strings.TrimSpace(entry.SourceType)
		entry.EvidenceLevel = strings.TrimSpace(entry.EvidenceLevel)
		out = append(out, entry)
	}
	return out
}
