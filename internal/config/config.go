package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort             = "8080"
	defaultCachePath        = "/tmp/evidencer-cache.json"
	defaultCacheTTLSeconds  = 86400
	defaultRequestDelayMS   = 500
	defaultRequestTimeout   = 10
	defaultMaxRetries       = 2
	defaultUserAgent        = "evidencer-research-bot/1.0"
	defaultAuditLogPath     = "/tmp/evidencer-audit.jsonl"
	defaultAuditMaxBytes    = 8 * 1024 * 1024
	defaultAuditMaxAgeHours = 720
	defaultSearchProvider   = "brave"
	defaultBraveBaseURL     = "https://api.search.brave.com/res/v1"
	defaultRunTimeoutSecs   = 120
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string

	PolicyPath   string
	RegistryPath string

	CachePath      string
	CacheTTL       time.Duration
	RequestDelay   time.Duration
	RequestTimeout time.Duration
	MaxRetries     int
	UserAgent      string
	EnrichContent  bool
	RunTimeout     time.Duration

	AuditLogPath  string
	AuditMaxBytes int64
	AuditMaxAge   time.Duration

	DatabaseURL       string
	DatabaseAuthToken string

	SearchProvider  string
	BraveAPIKey     string
	BraveBaseURL    string
	GoogleCSEAPIKey string
	GoogleCSECX     string
}

func (c Config) ListenAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Load reads the full configuration from the environment. Policy and registry
// paths are required: the pipeline must not start without its gating rules
// and source lists.
func Load() (Config, error) {
	cfg := Config{
		Port:              envOrDefault("PORT", defaultPort),
		Environment:       envOrDefault("APP_ENV", "development"),
		PolicyPath:        strings.TrimSpace(os.Getenv("POLICY_PATH")),
		RegistryPath:      strings.TrimSpace(os.Getenv("REGISTRY_PATH")),
		CachePath:         envOrDefault("CACHE_PATH", defaultCachePath),
		UserAgent:         envOrDefault("RESEARCH_USER_AGENT", defaultUserAgent),
		EnrichContent:     boolOrDefault("ENRICH_CONTENT", false),
		AuditLogPath:      envOrDefault("AUDIT_LOG_PATH", defaultAuditLogPath),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DatabaseAuthToken: strings.TrimSpace(os.Getenv("DATABASE_AUTH_TOKEN")),
		SearchProvider:    strings.ToLower(envOrDefault("SEARCH_PROVIDER", defaultSearchProvider)),
		BraveAPIKey:       strings.TrimSpace(os.Getenv("BRAVE_API_KEY")),
		BraveBaseURL:      envOrDefault("BRAVE_BASE_URL", defaultBraveBaseURL),
		GoogleCSEAPIKey:   strings.TrimSpace(os.Getenv("GOOGLE_CSE_API_KEY")),
		GoogleCSECX:       strings.TrimSpace(os.Getenv("GOOGLE_CSE_CX")),
	}

	cfg.CacheTTL = time.Duration(intOrDefault("CACHE_TTL_SECONDS", defaultCacheTTLSeconds)) * time.Second
	cfg.RequestDelay = time.Duration(intOrDefault("REQUEST_DELAY_MS", defaultRequestDelayMS)) * time.Millisecond
	cfg.RequestTimeout = time.Duration(intOrDefault("REQUEST_TIMEOUT_SECONDS", defaultRequestTimeout)) * time.Second
	cfg.MaxRetries = intOrDefault("MAX_RETRIES", defaultMaxRetries)
	cfg.RunTimeout = time.Duration(intOrDefault("RUN_TIMEOUT_SECONDS", defaultRunTimeoutSecs)) * time.Second
	cfg.AuditMaxBytes = int64(intOrDefault("AUDIT_MAX_BYTES", defaultAuditMaxBytes))
	cfg.AuditMaxAge = time.Duration(intOrDefault("AUDIT_MAX_AGE_HOURS", defaultAuditMaxAgeHours)) * time.Hour

	origins := parseList(envOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:4173"))
	if len(origins) == 0 {
		return Config{}, errors.New("CORS_ALLOWED_ORIGINS must include at least one origin")
	}
	cfg.AllowedOrigins = origins

	if cfg.PolicyPath == "" {
		return Config{}, errors.New("POLICY_PATH is required")
	}
	if cfg.RegistryPath == "" {
		return Config{}, errors.New("REGISTRY_PATH is required")
	}
	if cfg.MaxRetries < 0 {
		return Config{}, errors.New("MAX_RETRIES must be >= 0")
	}
	switch cfg.SearchProvider {
	case "brave", "google":
	default:
		return Config{}, fmt.Errorf("SEARCH_PROVIDER must be brave or google, got %q", cfg.SearchProvider)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func boolOrDefault(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func intOrDefault(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
