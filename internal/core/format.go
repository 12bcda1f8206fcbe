package core

import (
	"encoding/json"
	"strconv"
	"time"
)

// Display formatters. All of them degrade to the em-dash placeholder on
// missing input instead of returning an error: formatting must never break
// a rendered page.

// FormatPercent renders a whole-percentage value as "50%".
func FormatPercent(rate *int64) string {
	if rate == nil {
		return Placeholder
	}
	return strconv.FormatInt(*rate, 10) + "%"
}

// FormatBool renders a tick or cross for report output.
func FormatBool(v *bool) string {
	if v == nil {
		return Placeholder
	}
	if *v {
		return "yes"
	}
	return "no"
}

// FormatTimestamp renders a time in RFC 3339, the format used everywhere a
// timestamp crosses the API boundary.
func FormatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return Placeholder
	}
	return t.UTC().Format(time.RFC3339)
}

// FormatJSON renders any value as compact JSON for report columns.
// Unmarshalable values fall back to the placeholder.
func FormatJSON(v any) string {
	if v == nil {
		return Placeholder
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Placeholder
	}
	return string(b)
}
