package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/singleflight"
)

// resource is a JSON:API resource object. Flat objects without a data
// wrapper decode into the same fields via flatResource.
type resource struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Username string `json:"username"`
		Slug     string `json:"slug"`
		GroupID  string `json:"group_id"`
	} `json:"attributes"`
}

type flatResource struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Slug     string `json:"slug"`
	GroupID  string `json:"group_id"`
}

func (r *resource) summary(kind string) EntitySummary {
	s := EntitySummary{
		ID:       r.ID,
		Kind:     kind,
		Email:    r.Attributes.Email,
		Username: r.Attributes.Username,
		Slug:     r.Attributes.Slug,
		GroupID:  r.Attributes.GroupID,
	}
	s.DisplayName = displayName(r.Attributes.Name, r.Attributes.Username, r.Attributes.Slug, r.ID)
	return s
}

// displayName picks the first non-empty candidate.
func displayName(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// decodeEntity accepts {"data": {...}} or a bare object.
func decodeEntity(body []byte, kind string) (*EntitySummary, error) {
	var doc struct {
		Data *resource `json:"data"`
	}
	if err := json.Unmarshal(body, &doc); err == nil && doc.Data != nil && doc.Data.ID != "" {
		s := doc.Data.summary(kind)
		return &s, nil
	}

	var flat flatResource
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, &FormatError{Body: string(body), Err: err}
	}
	if flat.ID == "" {
		return nil, &FormatError{Body: string(body)}
	}
	return &EntitySummary{
		ID:          flat.ID,
		Kind:        kind,
		DisplayName: displayName(flat.Name, flat.Username, flat.Slug, flat.ID),
		Email:       flat.Email,
		Username:    flat.Username,
		Slug:        flat.Slug,
		GroupID:     flat.GroupID,
	}, nil
}

// decodeEntityList accepts {"data": [...], "links": {"next": "..."}} and
// returns the page's entities plus the next link, empty on the last page.
func decodeEntityList(body []byte, kind string) ([]EntitySummary, string, error) {
	var doc struct {
		Data  *[]resource `json:"data"`
		Links struct {
			Next string `json:"next"`
		} `json:"links"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, "", &FormatError{Body: string(body), Err: err}
	}
	if doc.Data == nil {
		return nil, "", &FormatError{Body: string(body)}
	}
	out := make([]EntitySummary, 0, len(*doc.Data))
	for i := range *doc.Data {
		out = append(out, (*doc.Data)[i].summary(kind))
	}
	return out, doc.Links.Next, nil
}

// nextRequest splits a links.next value into a path relative to the base
// URL and its query. The upstream sends either "/rest/orgs?..." or an
// absolute URL on the same host; the version parameter is set again by get.
func (c *Client) nextRequest(next string) (string, url.Values, error) {
	u, err := url.Parse(next)
	if err != nil {
		return "", nil, fmt.Errorf("parse next link %q: %w", next, err)
	}
	path := u.Path
	if base, err := url.Parse(c.baseURL); err == nil && base.Path != "" {
		path = strings.TrimPrefix(path, base.Path)
	}
	if path == "" {
		return "", nil, fmt.Errorf("next link %q has no path", next)
	}
	return path, u.Query(), nil
}

// shared runs fn once per key across concurrent callers. fn gets a context
// detached from any single caller, so one caller giving up does not fail
// the others; each caller still stops waiting when its own ctx ends.
func (c *Client) shared(ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := g.DoChan(key, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		if c.httpClient.Timeout <= 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, DefaultTimeout)
			defer cancel()
		}
		return fn(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// toLookupError converts any lookup failure into the tagged error value.
// Failures without an HTTP status are reported as 500.
func toLookupError(err error) *LookupError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &LookupError{Message: apiErr.Message, Status: apiErr.StatusCode}
	}
	return &LookupError{Message: err.Error(), Status: http.StatusInternalServerError}
}
