package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLength = 80

	// PostFileExt is the extension of post source files
	PostFileExt = ".md"
)

var (
	nonSlugRegex = regexp.MustCompile(`[^a-z0-9]+`)
	slugRegex    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

	// reservedNames are markdown files in a posts directory that are not posts
	reservedNames = map[string]bool{
		"readme.md": true,
		"index.md":  true,
	}
)

// ValidSlug reports whether slug can name a post
func ValidSlug(slug string) bool {
	return slugRegex.MatchString(slug)
}

// IsPostFileName reports whether a file name in the posts directory holds a post
func IsPostFileName(name string) bool {
	if !strings.HasSuffix(name, PostFileExt) {
		return false
	}
	if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
		return false
	}
	return !reservedNames[strings.ToLower(name)]
}

// SlugFromFileName returns the slug for a post file name, or "" when it is not a post
func SlugFromFileName(name string) string {
	if !IsPostFileName(name) {
		return ""
	}
	slug := strings.TrimSuffix(name, PostFileExt)
	if !ValidSlug(slug) {
		return ""
	}
	return slug
}

// Slugify derives a URL-path-safe identifier from a title or tag
func Slugify(title string) string {
	// transform chains are stateful; build one per call
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(stripMarks, title)
	if err != nil {
		s = title
	}

	s = nonSlugRegex.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	if s == "" {
		return "post"
	}
	return s
}
