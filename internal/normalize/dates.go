package normalize

import (
	"strings"
	"time"
)

// inferLayouts are tried in order when a schema declares no date format.
// More specific layouts come first so inference stays deterministic.
var inferLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2006",
	"January 2006",
	"01/02/06",
}

// ParseDate parses a source date value. An empty layout means inference.
// Unparseable values yield nil, never an error: a bad date is a quality flag
// on the record, not a reason to drop the row.
func ParseDate(value, layout string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if layout != "" {
		if t, err := time.Parse(layout, value); err == nil {
			return dayPrecision(t)
		}
		return nil
	}
	for _, l := range inferLayouts {
		if t, err := time.Parse(l, value); err == nil {
			return dayPrecision(t)
		}
	}
	return nil
}

// dayPrecision truncates to midnight UTC so identity hashing and ledger
// ordering never depend on a source's time-of-day or zone noise.
func dayPrecision(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
