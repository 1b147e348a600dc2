package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditscope/client"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

// mockUsers records lookups and fails the keys listed in fail.
type mockUsers struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
	block    chan struct{}
}

func (m *mockUsers) Get(_ context.Context, orgID, userID string) client.LookupResult {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if m.block != nil {
		<-m.block
	}

	key := client.UserKey(orgID, userID)
	m.mu.Lock()
	m.calls = append(m.calls, key)
	m.mu.Unlock()

	if status, ok := m.fail[key]; ok {
		return client.LookupResult{Err: &client.LookupError{Message: "simulated", Status: status}}
	}
	return client.LookupResult{Entity: &client.EntitySummary{ID: userID, Kind: client.KindUser, DisplayName: "name-" + userID}}
}

func (m *mockUsers) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockOrgs records lookups and fails the IDs listed in fail.
type mockOrgs struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]int
}

func (m *mockOrgs) Get(_ context.Context, orgID string) client.LookupResult {
	m.mu.Lock()
	m.calls = append(m.calls, orgID)
	m.mu.Unlock()
	if status, ok := m.fail[orgID]; ok {
		return client.LookupResult{Err: &client.LookupError{Message: "simulated", Status: status}}
	}
	return client.LookupResult{Entity: &client.EntitySummary{ID: orgID, Kind: client.KindOrg, DisplayName: "org-" + orgID}}
}

// mockFetcher returns queued results in order.
type mockFetcher struct {
	mu      sync.Mutex
	calls   int
	results []*client.FetchResult
	errs    []error
}

func (m *mockFetcher) FetchAll(_ context.Context, _ client.QuerySpec) (*client.FetchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.results) {
		return m.results[i], nil
	}
	return m.results[len(m.results)-1], nil
}

