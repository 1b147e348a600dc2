package service

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/metrics"
)

// DefaultLookupConcurrency caps in-flight entity lookups per Enrich call.
const DefaultLookupConcurrency = 8

// LookupFailure records an entity that could not be resolved.
type LookupFailure struct {
	Kind    string `json:"kind"`
	Key     string `json:"key"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Enriched is a log list plus directories of the users and organizations it
// references. Users are keyed by client.UserKey(orgID, userID), orgs by org ID.
// A missing key means the lookup failed and callers should render a fallback.
type Enriched struct {
	Entries  []client.AuditLogEntry          `json:"entries"`
	Users    map[string]client.EntitySummary `json:"users"`
	Orgs     map[string]client.EntitySummary `json:"orgs"`
	Failures []LookupFailure                 `json:"failures,omitempty"`
}

// User returns the summary for a user observed under orgID.
func (e *Enriched) User(orgID, userID string) (client.EntitySummary, bool) {
	u, ok := e.Users[client.UserKey(orgID, userID)]
	return u, ok
}

// Org returns the summary for an organization.
func (e *Enriched) Org(orgID string) (client.EntitySummary, bool) {
	o, ok := e.Orgs[orgID]
	return o, ok
}

// Enricher resolves the users and organizations referenced by log entries.
type Enricher struct {
	users       UserLookup
	orgs        OrgLookup
	log         *logrus.Logger
	concurrency int
}

// NewEnricher creates an Enricher. concurrency <= 0 uses DefaultLookupConcurrency.
func NewEnricher(users UserLookup, orgs OrgLookup, log *logrus.Logger, concurrency int) *Enricher {
	if concurrency <= 0 {
		concurrency = DefaultLookupConcurrency
	}
	return &Enricher{users: users, orgs: orgs, log: log, concurrency: concurrency}
}

type userRef struct{ orgID, userID string }

// referencedEntities returns the distinct (org, user) pairs and org IDs in
// entries, sorted for stable lookup order. Users without an org context
// cannot be resolved and are skipped.
func referencedEntities(entries []client.AuditLogEntry) ([]userRef, []string) {
	seenUsers := make(map[userRef]struct{})
	seenOrgs := make(map[string]struct{})
	for i := range entries {
		e := &entries[i]
		if e.OrgID != "" {
			seenOrgs[e.OrgID] = struct{}{}
			if e.UserID != "" {
				seenUsers[userRef{e.OrgID, e.UserID}] = struct{}{}
			}
		}
	}

	users := make([]userRef, 0, len(seenUsers))
	for u := range seenUsers {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].orgID != users[j].orgID {
			return users[i].orgID < users[j].orgID
		}
		return users[i].userID < users[j].userID
	})

	orgs := make([]string, 0, len(seenOrgs))
	for o := range seenOrgs {
		orgs = append(orgs, o)
	}
	sort.Strings(orgs)
	return users, orgs
}

// Enrich looks up every distinct referenced user and organization with
// bounded concurrency. It never fails: unresolved entities are logged,
// listed in Failures, and left out of the maps. entries is not modified.
func (en *Enricher) Enrich(ctx context.Context, entries []client.AuditLogEntry) *Enriched {
	users, orgs := referencedEntities(entries)
	out := &Enriched{
		Entries: entries,
		Users:   make(map[string]client.EntitySummary, len(users)),
		Orgs:    make(map[string]client.EntitySummary, len(orgs)),
	}

	var mu sync.Mutex
	record := func(kind, key string, res client.LookupResult) {
		mu.Lock()
		defer mu.Unlock()
		if res.OK() {
			if kind == client.KindUser {
				out.Users[key] = *res.Entity
			} else {
				out.Orgs[key] = *res.Entity
			}
			return
		}

		f := LookupFailure{Kind: kind, Key: key, Status: 500, Message: "empty lookup result"}
		if res.Err != nil {
			f.Status, f.Message = res.Err.Status, res.Err.Message
		}
		out.Failures = append(out.Failures, f)
		metrics.LookupFailures.WithLabelValues(kind).Inc()
		en.log.WithFields(logrus.Fields{
			"kind":    kind,
			"key":     key,
			"status":  f.Status,
			"message": f.Message,
		}).Warn("entity lookup failed")
	}

	var g errgroup.Group
	g.SetLimit(en.concurrency)
	for _, u := range users {
		g.Go(func() error {
			record(client.KindUser, client.UserKey(u.orgID, u.userID), en.users.Get(ctx, u.orgID, u.userID))
			return nil
		})
	}
	for _, o := range orgs {
		g.Go(func() error {
			record(client.KindOrg, o, en.orgs.Get(ctx, o))
			return nil
		})
	}
	g.Wait() //nolint:errcheck // lookups report failures through record.

	sort.Slice(out.Failures, func(i, j int) bool {
		if out.Failures[i].Kind != out.Failures[j].Kind {
			return out.Failures[i].Kind < out.Failures[j].Kind
		}
		return out.Failures[i].Key < out.Failures[j].Key
	})

	en.log.WithFields(logrus.Fields{
		"entries":  len(entries),
		"users":    len(out.Users),
		"orgs":     len(out.Orgs),
		"failures": len(out.Failures),
	}).Debug("enrichment complete")
	return out
}
