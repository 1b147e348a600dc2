package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/sync/singleflight"
)

// UserService resolves users by (org, user) and caches successful lookups
// for the lifetime of the client. There is no TTL and no eviction.
type UserService struct {
	c     *Client
	mu    sync.RWMutex
	cache map[string]EntitySummary
	group singleflight.Group
}

func newUserService(c *Client) *UserService {
	return &UserService{c: c, cache: make(map[string]EntitySummary)}
}

// UserKey returns the composite cache key for a user observed under an org.
func UserKey(orgID, userID string) string {
	return orgID + ":" + userID
}

// Get returns the user's summary. Failures are returned as a tagged
// LookupError and are not cached, so a later call retries the request.
func (s *UserService) Get(ctx context.Context, orgID, userID string) LookupResult {
	if orgID == "" || userID == "" {
		return LookupResult{Err: &LookupError{Message: "organization id and user id are required", Status: http.StatusBadRequest}}
	}
	key := UserKey(orgID, userID)

	if u, ok := s.cached(key); ok {
		s.c.observer.ObserveCache(KindUser, true)
		return LookupResult{Entity: &u}
	}
	s.c.observer.ObserveCache(KindUser, false)

	v, err := s.c.shared(ctx, &s.group, key, func(ctx context.Context) (any, error) {
		// Another caller may have filled the slot while we waited.
		if u, ok := s.cached(key); ok {
			return &u, nil
		}
		path := fmt.Sprintf("/rest/orgs/%s/users/%s", url.PathEscape(orgID), url.PathEscape(userID))
		body, err := s.c.get(ctx, "users.get", path, nil)
		if err != nil {
			return nil, err
		}
		u, err := decodeEntity(body, KindUser)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[key] = *u
		s.mu.Unlock()
		return u, nil
	})
	if err != nil {
		s.c.log.WithError(err).WithField("user_key", key).Debug("user lookup failed")
		return LookupResult{Err: toLookupError(err)}
	}
	u := *v.(*EntitySummary)
	return LookupResult{Entity: &u}
}

// Len returns the number of cached users.
func (s *UserService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

func (s *UserService) cached(key string) (EntitySummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.cache[key]
	return u, ok
}
