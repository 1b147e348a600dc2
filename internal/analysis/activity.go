package analysis

import (
	"sort"
	"time"

	"github.com/persistorai/auditscope/client"
)

// Count is a labelled tally.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// ActivityByDay counts entries per UTC calendar day, oldest first. Entries
// with an unparseable timestamp are skipped.
func ActivityByDay(entries []client.AuditLogEntry) []Count {
	counts := map[string]int{}
	for i := range entries {
		t, err := time.Parse(time.RFC3339, entries[i].Created)
		if err != nil {
			continue
		}
		counts[t.UTC().Format(time.DateOnly)]++
	}
	out := toCounts(counts)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CountByCategory counts entries per event category, most frequent first.
func CountByCategory(entries []client.AuditLogEntry) []Count {
	return CountBy(entries, func(e *client.AuditLogEntry) string {
		return ParseEventName(e.Event).Category
	})
}

// CountByUser counts entries per acting user, most active first. System
// events are counted under "system".
func CountByUser(entries []client.AuditLogEntry) []Count {
	return CountBy(entries, func(e *client.AuditLogEntry) string {
		if e.IsSystemEvent() {
			return "system"
		}
		return e.UserID
	})
}

// CountBy tallies entries by key, sorted by count descending then key.
// Empty keys are skipped.
func CountBy(entries []client.AuditLogEntry, key func(*client.AuditLogEntry) string) []Count {
	counts := map[string]int{}
	for i := range entries {
		if k := key(&entries[i]); k != "" {
			counts[k]++
		}
	}
	out := toCounts(counts)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func toCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	return out
}
