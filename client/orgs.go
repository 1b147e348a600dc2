package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// listKey is the singleflight key for the whole-list call. Org IDs never
// start with a NUL byte, so it cannot collide with a per-org key.
const listKey = "\x00orgs"

const (
	orgPageSize = 100
	maxOrgPages = 1000
)

// OrgService resolves organizations and caches them for the lifetime of
// the client. A successful List also fills the per-org cache and makes it
// authoritative: after that, an unknown org ID is reported as not found
// without a network call.
type OrgService struct {
	c     *Client
	mu    sync.RWMutex
	cache map[string]EntitySummary
	list  []EntitySummary // nil until List succeeds
	group singleflight.Group
}

func newOrgService(c *Client) *OrgService {
	return &OrgService{c: c, cache: make(map[string]EntitySummary)}
}

// Get returns the organization's summary.
func (s *OrgService) Get(ctx context.Context, orgID string) LookupResult {
	if orgID == "" {
		return LookupResult{Err: &LookupError{Message: "organization id is required", Status: http.StatusBadRequest}}
	}

	s.mu.RLock()
	o, ok := s.cache[orgID]
	listed := s.list != nil
	s.mu.RUnlock()
	if ok {
		s.c.observer.ObserveCache(KindOrg, true)
		return LookupResult{Entity: &o}
	}
	if listed {
		s.c.observer.ObserveCache(KindOrg, true)
		return LookupResult{Err: &LookupError{
			Message: fmt.Sprintf("organization %s not found", orgID),
			Status:  http.StatusNotFound,
		}}
	}
	s.c.observer.ObserveCache(KindOrg, false)

	v, err := s.c.shared(ctx, &s.group, orgID, func(ctx context.Context) (any, error) {
		s.mu.RLock()
		o, ok := s.cache[orgID]
		s.mu.RUnlock()
		if ok {
			return &o, nil
		}
		body, err := s.c.get(ctx, "orgs.get", "/rest/orgs/"+url.PathEscape(orgID), nil)
		if err != nil {
			return nil, err
		}
		org, err := decodeEntity(body, KindOrg)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[orgID] = *org
		s.mu.Unlock()
		return org, nil
	})
	if err != nil {
		s.c.log.WithError(err).WithField("org_id", orgID).Debug("org lookup failed")
		return LookupResult{Err: toLookupError(err)}
	}
	org := *v.(*EntitySummary)
	return LookupResult{Entity: &org}
}

// List returns every organization visible to the token. The list is
// fetched once and cached; failures are not cached.
func (s *OrgService) List(ctx context.Context) ListResult {
	s.mu.RLock()
	list := s.list
	s.mu.RUnlock()
	if list != nil {
		s.c.observer.ObserveCache("org_list", true)
		return ListResult{Orgs: cloneSummaries(list)}
	}
	s.c.observer.ObserveCache("org_list", false)

	v, err := s.c.shared(ctx, &s.group, listKey, func(ctx context.Context) (any, error) {
		orgs, err := s.fetchAll(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.list = orgs
		for _, o := range orgs {
			s.cache[o.ID] = o
		}
		s.mu.Unlock()
		return orgs, nil
	})
	if err != nil {
		s.c.log.WithError(err).Debug("org list failed")
		return ListResult{Err: toLookupError(err)}
	}
	return ListResult{Orgs: cloneSummaries(v.([]EntitySummary))}
}

// fetchAll follows links.next until the last page. Only a complete list
// is returned, since List makes it authoritative for Get.
func (s *OrgService) fetchAll(ctx context.Context) ([]EntitySummary, error) {
	path := "/rest/orgs"
	params := url.Values{}
	params.Set("limit", strconv.Itoa(orgPageSize))

	var orgs []EntitySummary
	seen := map[string]bool{}
	for page := 1; ; page++ {
		if page > maxOrgPages {
			return nil, fmt.Errorf("org list exceeds %d pages", maxOrgPages)
		}
		body, err := s.c.get(ctx, "orgs.list", path, params)
		if err != nil {
			return nil, err
		}
		batch, next, err := decodeEntityList(body, KindOrg)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, batch...)
		if next == "" {
			break
		}
		if seen[next] {
			return nil, fmt.Errorf("org list repeats next link %q", next)
		}
		seen[next] = true
		if path, params, err = s.c.nextRequest(next); err != nil {
			return nil, err
		}
	}

	s.c.log.WithField("orgs", len(orgs)).Debug("fetched org list")
	if orgs == nil {
		orgs = []EntitySummary{}
	}
	return orgs, nil
}

// Len returns the number of cached organizations.
func (s *OrgService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

func cloneSummaries(in []EntitySummary) []EntitySummary {
	out := make([]EntitySummary, len(in))
	copy(out, in)
	return out
}
