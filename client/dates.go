package client

import (
	"fmt"
	"regexp"
	"time"
)

// DateLayout is the timestamp format accepted by the audit-log search endpoint.
const DateLayout = "2006-01-02T15:04:05Z"

// DefaultWindow is the trailing window used when no explicit range is given.
const DefaultWindow = 7 * 24 * time.Hour

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

// ValidDate reports whether s is a YYYY-MM-DDTHH:MM:SSZ timestamp naming a real instant.
func ValidDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ResolveDateRange returns the [from, to] window for a query, relative to now.
// See ResolveDateRangeAt.
func ResolveDateRange(from, to string) (string, string, error) {
	return ResolveDateRangeAt(time.Now(), from, to)
}

// ResolveDateRangeAt returns the [from, to] window for a query.
//
// When both bounds are given they must be valid timestamps with from <= to.
// When either bound is missing the whole range falls back to the trailing
// seven days ending at now; a lone bound is ignored rather than rejected.
func ResolveDateRangeAt(now time.Time, from, to string) (string, string, error) {
	if from == "" || to == "" {
		now = now.UTC()
		return now.Add(-DefaultWindow).Format(DateLayout), now.Format(DateLayout), nil
	}

	if !ValidDate(from) {
		return "", "", fmt.Errorf("from %q: %w", from, ErrInvalidDateFormat)
	}
	if !ValidDate(to) {
		return "", "", fmt.Errorf("to %q: %w", to, ErrInvalidDateFormat)
	}

	// Layout is fixed-width UTC, so lexical order is chronological order.
	if from > to {
		return "", "", fmt.Errorf("%s > %s: %w", from, to, ErrInvalidDateRange)
	}
	return from, to, nil
}

// IsPartialRange reports whether exactly one bound was supplied, in which
// case ResolveDateRange discards it.
func IsPartialRange(from, to string) bool {
	return (from == "") != (to == "")
}
