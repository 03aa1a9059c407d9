// Package normalize provides text normalization for Anki tags and search input.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// Matches runs of whitespace.
	whitespace = regexp.MustCompile(`\s+`)
	// Matches multiple underscores.
	multipleUnderscores = regexp.MustCompile(`_+`)
)

// AnkiTag converts a tag into a form AnkiConnect accepts.
// Anki tags cannot contain spaces, and exotic unicode renders poorly in the
// Anki browser, so we fold to ASCII and replace whitespace with underscores.
// "Deep Work" -> "Deep_Work".
// "Févier 2024" -> "Fevier_2024".
func AnkiTag(s string) string {
	// Normalize unicode (decompose accented characters).
	s = norm.NFKD.String(s)

	// Drop combining marks and any remaining non-ASCII characters.
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) || r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	// Replace whitespace with underscores.
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), "_")

	// Collapse multiple underscores.
	s = multipleUnderscores.ReplaceAllString(s, "_")

	return strings.Trim(s, "_")
}

// AnkiTags normalizes a slice of tags, dropping any that normalize to empty.
func AnkiTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if normalized := AnkiTag(tag); normalized != "" {
			out = append(out, normalized)
		}
	}
	return out
}

// SearchQuery trims and collapses whitespace in a user search query.
func SearchQuery(s string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}
