package domain

import (
	"fmt"
	"sort"
	"strings"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusRunning Status = "running"
	StatusPending Status = "pending"
	StatusUnknown Status = "unknown"
)

// Statuses lists the canonical values in display order.
var Statuses = []Status{
	StatusSuccess,
	StatusFailed,
	StatusSkipped,
	StatusRunning,
	StatusPending,
	StatusUnknown,
}

// statusTokens maps every glyph and emoji shortcode seen in summaries to a
// canonical status. Add aliases here; lookups are literal.
var statusTokens = map[string]Status{
	"✅":  StatusSuccess,
	"❌":  StatusFailed,
	"⏭️": StatusSkipped,
	"⏭":  StatusSkipped,
	"🔄":  StatusRunning,
	"⏸️": StatusPending,
	"⏸":  StatusPending,
	"❓":  StatusUnknown,

	":heavy_check_mark:":        StatusSuccess,
	":white_check_mark:":        StatusSuccess,
	":x:":                       StatusFailed,
	":fast_forward:":            StatusSkipped,
	":arrows_counterclockwise:": StatusRunning,
	":pause_button:":            StatusPending,
	":question:":                StatusUnknown,
}

var statusGlyphs = map[Status]string{
	StatusSuccess: "✅",
	StatusFailed:  "❌",
	StatusSkipped: "⏭️",
	StatusRunning: "🔄",
	StatusPending: "⏸️",
	StatusUnknown: "❓",
}

// ResolveStatus maps a raw token to its canonical status. Unknown tokens
// resolve to StatusUnknown.
func ResolveStatus(token string) Status {
	if s, ok := statusTokens[token]; ok {
		return s
	}
	return StatusUnknown
}

// StatusGlyphs returns the non-shortcode tokens, longest first, so callers
// can build alternations that prefer the variation-selector forms.
func StatusGlyphs() []string {
	out := make([]string, 0, len(statusTokens))
	for tok := range statusTokens {
		if strings.HasPrefix(tok, ":") {
			continue
		}
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// ParseStatus validates a user supplied status name. Matching is
// case-insensitive against the canonical names only; glyphs are rejected.
func ParseStatus(name string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(name)))
	if s.Valid() {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q (valid: %s)", ErrInvalidStatus, name, ValidStatusNames())
}

func ValidStatusNames() string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) Glyph() string {
	if g, ok := statusGlyphs[s]; ok {
		return g
	}
	return statusGlyphs[StatusUnknown]
}
