package model

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DedupeKey derives the deterministic identity of a logical obligation.
//
// Format: <scopeType>:<scopeID>:<slug>:<n>
//
// slug is the NFKD-folded, lowercased, hyphenated template key (or occurrence
// title for template-less occurrences). n disambiguates multiple templates
// that slug identically under one scope; catalog validation keeps n at 0 for
// seeded rules, so the suffix only matters for ad-hoc occurrences.
//
// The derivation is load-bearing: the store enforces a uniqueness constraint
// on the key among live occurrences, which is what makes instantiation safe
// to retry and reconciliation idempotent.
func DedupeKey(scopeType ScopeType, scopeID, name string, n int) string {
	return fmt.Sprintf("%s:%s:%s:%d", scopeType, scopeID, Slugify(name), n)
}

// Slugify normalizes a name into a stable ASCII slug: NFKD decomposition,
// combining marks and non-alphanumerics dropped, runs collapsed to single
// hyphens, lowercased.
func Slugify(name string) string {
	decomposed := norm.NFKD.String(name)

	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range decomposed {
		switch {
		case unicode.IsLetter(r) && r < 128:
			b.WriteRune(unicode.ToLower(r))
			lastHyphen = false
		case unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case unicode.Is(unicode.Mn, r):
			// combining mark left over from decomposition: drop
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
