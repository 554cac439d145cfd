package delivery

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize is the single comparison key for city and state names:
// trimmed, NFC-normalised and Unicode case-folded.
func Normalize(s string) string {
	// cases.Caser is stateful, so one per call.
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// SameName reports whether a and b name the same place.
func SameName(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// overlaps reports whether either normalised string contains the other.
// Empty strings never overlap.
func overlaps(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
