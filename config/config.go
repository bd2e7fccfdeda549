package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Finder    FinderConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// MetricsPath serves Prometheus metrics; empty disables it.
	MetricsPath string // default: "/metrics"
}

// BrowserConfig controls the Rod browser launched for every lookup.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL passed to the browser.
	Proxy string

	// BlockedResourceTypes lists resource types that are never fetched.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// AcceptLanguage is sent with every page request when non-empty.
	AcceptLanguage string // default: "pl-PL,pl;q=0.9,en;q=0.8"
}

// FinderConfig controls the contact discovery policy.
type FinderConfig struct {
	// LoadTimeout bounds each navigation, body wait and click.
	LoadTimeout time.Duration // default: 10s

	// LookupTimeout bounds a whole domain lookup made through the API.
	LookupTimeout time.Duration // default: 5m

	// ErrorLogPath is where navigation failures are appended.
	ErrorLogPath string // default: "errors/errorlog.txt"

	// MaxConcurrentLookups caps parallel lookups (one browser each).
	MaxConcurrentLookups int // default: 3
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CacheConfig controls the lookup response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("MAILSCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("MAILSCOUT_PORT", 8080),
			Mode: envOr("MAILSCOUT_MODE", "release"),

			MetricsPath: envOr("MAILSCOUT_METRICS_PATH", "/metrics"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("MAILSCOUT_HEADLESS", true),
			NoSandbox:  envBoolOr("MAILSCOUT_NO_SANDBOX", true),
			BrowserBin: os.Getenv("MAILSCOUT_BROWSER_BIN"),
			Proxy:      os.Getenv("MAILSCOUT_PROXY"),
			BlockedResourceTypes: envSliceOr("MAILSCOUT_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			AcceptLanguage: envOr("MAILSCOUT_ACCEPT_LANGUAGE", "pl-PL,pl;q=0.9,en;q=0.8"),
		},
		Finder: FinderConfig{
			LoadTimeout:          envDurationOr("MAILSCOUT_LOAD_TIMEOUT", 10*time.Second),
			LookupTimeout:        envDurationOr("MAILSCOUT_LOOKUP_TIMEOUT", 5*time.Minute),
			ErrorLogPath:         envOr("MAILSCOUT_ERROR_LOG", "errors/errorlog.txt"),
			MaxConcurrentLookups: envIntOr("MAILSCOUT_MAX_CONCURRENT_LOOKUPS", 3),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("MAILSCOUT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("MAILSCOUT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("MAILSCOUT_RATE_RPS", 1.0),
			Burst:             envIntOr("MAILSCOUT_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("MAILSCOUT_CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("MAILSCOUT_LOG_LEVEL", "info"),
			Format: envOr("MAILSCOUT_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
