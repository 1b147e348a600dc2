package analysis

import (
	"sort"
	"strings"

	"github.com/persistorai/auditscope/client"
)

// Filter selects entries. Zero-valued fields match everything.
//
// The taxonomy levels narrow hierarchically: Subcategory only applies
// together with Category, Action with Subcategory, and so on.
type Filter struct {
	Category    string
	Subcategory string
	Action      string
	Subaction   string

	// EventContains is a case-insensitive substring match on the event name.
	EventContains string
	// Excluded holds taxonomy keys (see EventPath.Key) that were switched
	// off; an entry is dropped when any prefix of its path is excluded.
	Excluded []string

	OrgIDs   []string
	GroupIDs []string
	UserID   string
}

// ParseEventPrefix turns "category.subcategory" style input into the
// hierarchical levels of a Filter.
func ParseEventPrefix(prefix string) Filter {
	var f Filter
	if prefix == "" {
		return f
	}
	parts := strings.SplitN(prefix, ".", 4)
	f.Category = parts[0]
	if len(parts) > 1 {
		f.Subcategory = parts[1]
	}
	if len(parts) > 2 {
		f.Action = parts[2]
	}
	if len(parts) > 3 {
		f.Subaction = parts[3]
	}
	return f
}

// IsZero reports whether the filter matches everything.
func (f *Filter) IsZero() bool {
	return f.Category == "" && f.EventContains == "" && len(f.Excluded) == 0 &&
		len(f.OrgIDs) == 0 && len(f.GroupIDs) == 0 && f.UserID == ""
}

// Match reports whether e passes the filter.
func (f *Filter) Match(e *client.AuditLogEntry) bool {
	if f.Category != "" || len(f.Excluded) > 0 {
		p := ParseEventName(e.Event)
		if !f.matchLevels(p) || f.excluded(p) {
			return false
		}
	}
	if f.EventContains != "" && !strings.Contains(strings.ToLower(e.Event), strings.ToLower(f.EventContains)) {
		return false
	}
	if len(f.OrgIDs) > 0 && !contains(f.OrgIDs, e.OrgID) {
		return false
	}
	if len(f.GroupIDs) > 0 && !contains(f.GroupIDs, e.GroupID) {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	return true
}

func (f *Filter) matchLevels(p EventPath) bool {
	if f.Category == "" {
		return true
	}
	if p.Category != f.Category {
		return false
	}
	if f.Subcategory == "" {
		return true
	}
	if p.Subcategory != f.Subcategory {
		return false
	}
	if f.Action == "" {
		return true
	}
	if p.Action != f.Action {
		return false
	}
	return f.Subaction == "" || p.Subaction == f.Subaction
}

func (f *Filter) excluded(p EventPath) bool {
	for depth := 1; depth <= 4; depth++ {
		if contains(f.Excluded, p.Key(depth)) {
			return true
		}
	}
	return false
}

// Apply returns the entries that pass f, preserving order. The input slice
// is not modified.
func Apply(entries []client.AuditLogEntry, f Filter) []client.AuditLogEntry {
	out := make([]client.AuditLogEntry, 0, len(entries))
	for i := range entries {
		if f.Match(&entries[i]) {
			out = append(out, entries[i])
		}
	}
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Option is an entry in a filter pick list.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UniqueOrgs lists the organizations referenced by entries, named from orgs
// when resolved and by ID otherwise, sorted by name.
func UniqueOrgs(entries []client.AuditLogEntry, orgs map[string]client.EntitySummary) []Option {
	seen := map[string]bool{}
	out := make([]Option, 0)
	for i := range entries {
		id := entries[i].OrgID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		name := id
		if o, ok := orgs[id]; ok && o.DisplayName != "" {
			name = o.DisplayName
		}
		out = append(out, Option{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UniqueGroups lists the groups referenced by entries in first-seen order.
// Groups have no lookup endpoint, so names are shortened IDs.
func UniqueGroups(entries []client.AuditLogEntry) []Option {
	seen := map[string]bool{}
	out := make([]Option, 0)
	for i := range entries {
		id := entries[i].GroupID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, Option{ID: id, Name: GroupLabel(id)})
	}
	return out
}

// GroupLabel returns the display label for a group ID.
func GroupLabel(id string) string {
	if len(id) > 8 {
		return "Group " + id[:8] + "..."
	}
	return "Group " + id
}
