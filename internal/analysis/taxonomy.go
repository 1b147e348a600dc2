// Package analysis derives filter pick lists, hierarchical event filters and
// chart aggregates from audit-log entries.
package analysis

import (
	"sort"
	"strings"

	"github.com/persistorai/auditscope/client"
)

// Placeholders for missing taxonomy levels.
const (
	UnknownCategory = "unknown"
	OtherLevel      = "other"
)

// EventPath is an event name split into its four taxonomy levels.
type EventPath struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Action      string `json:"action"`
	Subaction   string `json:"subaction"`
}

// ParseEventName splits "category.subcategory.action.subaction". Missing
// levels become OtherLevel (UnknownCategory for an empty category) and any
// levels past the fourth are folded into Subaction.
func ParseEventName(name string) EventPath {
	parts := strings.Split(name, ".")
	p := EventPath{Category: parts[0], Subcategory: OtherLevel, Action: OtherLevel, Subaction: OtherLevel}
	if p.Category == "" {
		p.Category = UnknownCategory
	}
	if len(parts) > 1 {
		p.Subcategory = parts[1]
	}
	if len(parts) > 2 {
		p.Action = parts[2]
	}
	if len(parts) > 3 {
		p.Subaction = strings.Join(parts[3:], ".")
	}
	return p
}

// Key returns the dotted key of the path truncated to depth levels (1-4).
func (p EventPath) Key(depth int) string {
	levels := []string{p.Category, p.Subcategory, p.Action, p.Subaction}
	if depth < 1 {
		depth = 1
	}
	if depth > len(levels) {
		depth = len(levels)
	}
	return strings.Join(levels[:depth], ".")
}

// TaxonomyNode is one level of the event tree.
type TaxonomyNode struct {
	Name     string          `json:"name"`
	Key      string          `json:"key"`
	Count    int             `json:"count"`
	Children []*TaxonomyNode `json:"children,omitempty"`
}

// BuildTaxonomy groups entries into a category → subcategory → action →
// subaction tree with per-node counts. Entries without an event name are
// skipped. Children are sorted by name.
func BuildTaxonomy(entries []client.AuditLogEntry) []*TaxonomyNode {
	root := &TaxonomyNode{}
	index := map[string]*TaxonomyNode{}

	for i := range entries {
		if entries[i].Event == "" {
			continue
		}
		p := ParseEventName(entries[i].Event)
		parent := root
		for depth := 1; depth <= 4; depth++ {
			key := p.Key(depth)
			node, ok := index[key]
			if !ok {
				node = &TaxonomyNode{Name: levelName(p, depth), Key: key}
				index[key] = node
				parent.Children = append(parent.Children, node)
			}
			node.Count++
			parent = node
		}
	}

	sortTree(root.Children)
	return root.Children
}

func levelName(p EventPath, depth int) string {
	switch depth {
	case 1:
		return p.Category
	case 2:
		return p.Subcategory
	case 3:
		return p.Action
	default:
		return p.Subaction
	}
}

func sortTree(nodes []*TaxonomyNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	for _, n := range nodes {
		sortTree(n.Children)
	}
}
