package text

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const MaxSlugLength = 200

var nonSlugChars = regexp.MustCompile(`[^a-z0-9_]+`)

// Slugify turns a term or title into a lowercase, hyphen-separated slug.
// Accents are stripped: "Café Racer" -> "cafe-racer".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, s)
	if err != nil {
		normalized = s
	}
	normalized = strings.ToLower(normalized)

	slug := nonSlugChars.ReplaceAllString(normalized, "-")
	slug = strings.Trim(slug, "-")

	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}

	return slug
}

// SlugifyPath slugifies each segment of a slash-separated path, dropping
// segments that slugify to nothing.
func SlugifyPath(path string) string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if slug := Slugify(segment); slug != "" {
			segments = append(segments, slug)
		}
	}
	return strings.Join(segments, "/")
}
