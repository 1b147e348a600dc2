package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditscope/client"
)

// apiVersionPattern matches upstream version pins such as 2024-10-15 or
// 2024-10-15~beta.
var apiVersionPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(~(beta|experimental))?$`)

func (c *Config) validate() error {
	checks := []func() error{
		c.validateUpstream,
		c.validateDates,
		c.validateDatabase,
		c.validateListener,
		c.validateCORS,
		func() error {
			if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
				return fmt.Errorf("LOG_LEVEL: %w", err)
			}
			return nil
		},
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateUpstream() error {
	u, err := url.ParseRequestURI(c.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("API_BASE_URL is not a valid URL: %q", c.BaseURL)
	}
	if u.Scheme != "https" && !isLoopbackHost(u.Hostname()) {
		return fmt.Errorf("API_BASE_URL must use HTTPS for non-localhost hosts")
	}

	if !apiVersionPattern.MatchString(c.APIVersion) {
		return fmt.Errorf("API_VERSION must look like YYYY-MM-DD, got %q", c.APIVersion)
	}

	if c.AuthScheme == "" || strings.ContainsAny(c.AuthScheme, " \t") {
		return fmt.Errorf("AUTH_SCHEME must be a single word, got %q", c.AuthScheme)
	}

	return nil
}

// validateDates checks the saved default range. A half-set range is legal
// (the fetch falls back to the default window), a reversed one is not.
func (c *Config) validateDates() error {
	for _, d := range []struct{ key, value string }{{KeyFromDate, c.FromDate}, {KeyToDate, c.ToDate}} {
		if d.value != "" && !client.ValidDate(d.value) {
			return fmt.Errorf("%s: %q: %w", d.key, d.value, client.ErrInvalidDateFormat)
		}
	}

	if c.FromDate != "" && c.ToDate != "" {
		from, _ := time.Parse(client.DateLayout, c.FromDate)
		to, _ := time.Parse(client.DateLayout, c.ToDate)
		if from.After(to) {
			return fmt.Errorf("%s %s is after %s %s", KeyFromDate, c.FromDate, KeyToDate, c.ToDate)
		}
	}

	return nil
}

// validateDatabase only applies when reports are persisted to PostgreSQL.
func (c *Config) validateDatabase() error {
	raw := c.DatabaseURL.Value()
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL")
	}
	switch {
	case u.Scheme != "postgres" && u.Scheme != "postgresql":
		return fmt.Errorf("DATABASE_URL scheme must be postgres:// or postgresql://")
	case u.Hostname() == "":
		return fmt.Errorf("DATABASE_URL must include a host")
	case !isLoopbackHost(u.Hostname()) && u.Query().Get("sslmode") == "disable":
		return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", u.Hostname())
	}

	return nil
}

// validateListener keeps the unauthenticated API on loopback unless the
// process runs inside a container (wildcard bind).
func (c *Config) validateListener() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if !isLoopbackHost(c.ListenHost) && c.ListenHost != "0.0.0.0" && c.ListenHost != "::" {
		return fmt.Errorf("LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers (got %q)", c.ListenHost)
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}
		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func isLoopbackHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
