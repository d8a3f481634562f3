package lesson

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultSlug is used when a title has no ASCII letters or digits.
const DefaultSlug = "lesson"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a title into a URL-safe slug.
// Accented letters are folded to ASCII first so "Café Días" becomes "cafe-dias".
func Slugify(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))), title)
	if err != nil {
		folded = title
	}

	slug := nonAlnum.ReplaceAllString(strings.ToLower(folded), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return DefaultSlug
	}
	return slug
}

// SlugCandidate returns the n-th candidate for base: base itself for n < 2,
// then base-2, base-3, ...
func SlugCandidate(base string, n int) string {
	if n < 2 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}
