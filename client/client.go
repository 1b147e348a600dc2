// Package client provides a typed Go SDK for the security platform's audit-log
// REST API: paginated audit-log search plus cached user and organization lookups.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Defaults for the upstream REST API.
const (
	DefaultBaseURL    = "https://api.snyk.io"
	DefaultAPIVersion = "2024-10-15"
	DefaultAuthScheme = "token"
	DefaultTimeout    = 30 * time.Second
)

// Client is the top-level API client.
type Client struct {
	baseURL    string
	apiKey     string
	authScheme string
	version    string
	httpClient *http.Client
	log        *logrus.Logger
	observer   Observer

	Audit *AuditService
	Users *UserService
	Orgs  *OrgService
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API token sent in the Authorization header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithAuthScheme overrides the Authorization scheme ("token" by default).
func WithAuthScheme(scheme string) Option {
	return func(c *Client) {
		if scheme != "" {
			c.authScheme = scheme
		}
	}
}

// WithAPIVersion sets the value of the version query parameter.
func WithAPIVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.version = v
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for pagination progress and warnings.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithObserver registers an Observer for request and cache events.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates a client for the given base URL (e.g. "https://api.snyk.io").
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authScheme: DefaultAuthScheme,
		version:    DefaultAPIVersion,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		observer:   nopObserver{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = logrus.New()
		c.log.SetOutput(io.Discard)
	}
	c.Audit = &AuditService{c: c}
	c.Users = newUserService(c)
	c.Orgs = newOrgService(c)
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get issues an authenticated GET and returns the raw response body.
// endpoint is a low-cardinality label reported to the Observer.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("version", c.version)
	u := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.api+json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.authScheme+" "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observer.ObserveRequest(endpoint, 0, time.Since(start))
		return nil, fmt.Errorf("request %s failed: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.observer.ObserveRequest(endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", u, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, u, body)
	}
	return body, nil
}

// getJSON is a convenience wrapper that decodes the response into result.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, params url.Values, result any) error {
	body, err := c.get(ctx, endpoint, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return &FormatError{Body: string(body), Err: err}
	}
	return nil
}
