package parser

import (
	"strings"
	"time"
)

// isoLayouts covers the ISO-8601 shapes seen in summaries. A trailing "Z"
// is read as offset zero; values without an offset are taken as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var fallbackLayouts = []string{
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04:05+00:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05Z",
	time.RFC1123Z,
	time.RFC1123,
	time.UnixDate,
}

// parseTime returns nil when no layout matches. Table cells only accept ISO
// layouts; header fields also try the fallback list.
func parseTime(v string, fallback bool) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}

	layouts := isoLayouts
	if fallback {
		layouts = append(append([]string{}, isoLayouts...), fallbackLayouts...)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}
