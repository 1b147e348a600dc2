// Package config provides environment-driven configuration for auditscope.
//
// Values are read from the process environment first and then from the
// .env file named by CONFIG_FILE (default ".env"), so a real environment
// variable always overrides the persisted store.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether the secret is non-empty.
func (s Secret) IsSet() bool { return s != "" }

// DefaultConfigFile is the .env store used when CONFIG_FILE is unset.
const DefaultConfigFile = ".env"

// Config holds all application configuration values.
type Config struct {
	APIKey   Secret
	OrgID    string
	GroupID  string
	FromDate string
	ToDate   string

	BaseURL           string
	APIVersion        string
	AuthScheme        string
	PageSize          int
	MaxPages          int
	LookupConcurrency int
	HTTPTimeout       time.Duration
	FetchRetries      int

	LogLevel    string
	Port        string
	ListenHost  string
	CORSOrigins []string
	DatabaseURL Secret
	ConfigFile  string
}

// Load reads configuration from environment variables and the .env store
// with sensible defaults.
func Load() (*Config, error) {
	path := envOrDefault("CONFIG_FILE", DefaultConfigFile)
	stored, err := NewEnvStore(path).Read()
	if err != nil {
		return nil, err
	}

	get := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		if v := stored[key]; v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		APIKey:      Secret(get(KeyAPIKey, "")),
		OrgID:       get(KeyOrgID, ""),
		GroupID:     get(KeyGroupID, ""),
		FromDate:    get(KeyFromDate, ""),
		ToDate:      get(KeyToDate, ""),
		BaseURL:     get("API_BASE_URL", "https://api.snyk.io"),
		APIVersion:  get("API_VERSION", "2024-10-15"),
		AuthScheme:  get("AUTH_SCHEME", "token"),
		LogLevel:    get("LOG_LEVEL", "info"),
		Port:        get("PORT", "3001"),
		ListenHost:  get("LISTEN_HOST", "127.0.0.1"),
		DatabaseURL: Secret(get("DATABASE_URL", "")),
		ConfigFile:  path,
	}

	ints := []struct {
		key      string
		fallback string
		min, max int
		dst      *int
	}{
		{"PAGE_SIZE", "100", 1, 1000, &cfg.PageSize},
		{"MAX_PAGES", "100", 1, 10000, &cfg.MaxPages},
		{"LOOKUP_CONCURRENCY", "8", 1, 64, &cfg.LookupConcurrency},
		{"FETCH_RETRIES", "2", 0, 10, &cfg.FetchRetries},
	}
	for _, it := range ints {
		n, err := strconv.Atoi(get(it.key, it.fallback))
		if err != nil || n < it.min || n > it.max {
			return nil, fmt.Errorf("%s must be an integer between %d and %d", it.key, it.min, it.max)
		}
		*it.dst = n
	}

	timeout, err := time.ParseDuration(get("HTTP_TIMEOUT", "30s"))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("HTTP_TIMEOUT must be a positive duration (e.g. 30s)")
	}
	cfg.HTTPTimeout = timeout

	origins := get("CORS_ORIGINS", "http://localhost:3000")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// RequireAPIKey checks that an API key is configured.
func (c *Config) RequireAPIKey() error {
	if !c.APIKey.IsSet() {
		return ErrMissingAPIKey
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
