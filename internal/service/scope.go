package service

import (
	"errors"

	"github.com/persistorai/auditscope/client"
)

// ErrNoScope is returned when neither an org nor a group ID is configured.
var ErrNoScope = errors.New("neither org id nor group id provided, at least one is required")

// ResolveScope picks the query scope. An org ID takes precedence over a
// group ID; ignoredGroup is true when a group ID was dropped in its favor.
func ResolveScope(orgID, groupID string) (scopeType, scopeID string, ignoredGroup bool, err error) {
	switch {
	case orgID != "":
		return client.ScopeOrg, orgID, groupID != "", nil
	case groupID != "":
		return client.ScopeGroup, groupID, false, nil
	default:
		return "", "", false, ErrNoScope
	}
}
