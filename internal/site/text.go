package site

import (
	"strings"
	"unicode/utf8"
)

// Byte limits for pageview fields.
const (
	MaxPagePathBytes  = 2048
	MaxReferrerBytes  = 2048
	MaxUserAgentBytes = 512
	MaxSessionIDBytes = 128
)

// CleanText makes s storable in a TEXT column: invalid UTF-8 and NUL bytes are
// dropped, and the result is cut to at most max bytes on a rune boundary.
// max <= 0 disables the cut.
func CleanText(s string, max int) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\x00", "")
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Sanitized returns v with every text field passed through CleanText.
func (v PageView) Sanitized() PageView {
	v.Path = CleanText(v.Path, MaxPagePathBytes)
	v.Referrer = CleanText(v.Referrer, MaxReferrerBytes)
	v.UserAgent = CleanText(v.UserAgent, MaxUserAgentBytes)
	v.SessionID = CleanText(v.SessionID, MaxSessionIDBytes)
	return v
}
