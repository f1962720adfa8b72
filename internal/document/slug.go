package document

import (
	"regexp"
	"strings"
)

var (
	regSlugDisallowed = regexp.MustCompile(`[^a-z0-9\s\p{Z}-]+`)
	regSlugSpaces     = regexp.MustCompile(`[\s\p{Z}]+`)
	regSlugHyphens    = regexp.MustCompile(`-{2,}`)
)

// Slugify turns text into a lowercase, hyphen-delimited tag-safe string.
// The result only ever contains [a-z0-9-] and Slugify(Slugify(s)) == Slugify(s).
func Slugify(text string) string {
	s := strings.ToLower(text)
	s = regSlugDisallowed.ReplaceAllString(s, "")
	s = regSlugSpaces.ReplaceAllString(s, "-")
	s = regSlugHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// MakeTag builds "#" + prefix + slug. The prefix is used verbatim, so callers
// decide on separators themselves (e.g. "genre/").
func MakeTag(value, prefix string) string {
	return "#" + prefix + Slugify(value)
}

// MakeLink wraps value into a wikilink. The value is not escaped.
func MakeLink(value string) string {
	return "[[" + value + "]]"
}
