package helpers

import (
	"strings"
)

// NormalizeSpace trims s and collapses every run of whitespace into a single space
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TextAfter returns the trimmed text following the first occurrence of marker.
// ok is false when marker does not occur in s.
func TextAfter(s, marker string) (string, bool) {
	idx := strings.Index(s, marker)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(s[idx+len(marker):]), true
}

// ContainsAny reports whether s contains any of the given fragments
func ContainsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if f != "" && strings.Contains(s, f) {
			return true
		}
	}
	return false
}
