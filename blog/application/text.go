package application

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultExcerptLength is the number of characters kept from a post body
	DefaultExcerptLength = 200
	ellipsis             = "..."
	dateLayout           = "2006-01-02"
)

var (
	tagRegex    = regexp.MustCompile(`<[^>]*>`)
	rawRegex    = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>|<style\b[^>]*>.*?</style\s*>|<(?:script|style)\b.*$`)
	openRegex   = regexp.MustCompile(`<[^>]*$`)
	dateLayouts = []string{
		dateLayout,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006/01/02",
		"January 2, 2006",
		"Jan 2, 2006",
	}
)

// Excerpt strips tags from rendered HTML, collapses whitespace and truncates the result
// at a word boundary to at most maxLength characters plus an ellipsis.
func Excerpt(renderedHTML string, maxLength int) string {
	plain := rawRegex.ReplaceAllString(renderedHTML, " ")
	plain = tagRegex.ReplaceAllString(plain, " ")
	// a tag cut off by the end of the input
	plain = openRegex.ReplaceAllString(plain, "")
	plain = strings.Join(strings.Fields(plain), " ")

	r := []rune(plain)
	if len(r) <= maxLength {
		return plain
	}

	snippet := string(r[:maxLength])
	if lastSpace := strings.LastIndexAny(snippet, " \t"); lastSpace > 0 {
		snippet = snippet[:lastSpace]
	}
	return snippet + ellipsis
}

// ParseDate accepts the date formats found in post frontmatter
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PostInput is a post as submitted by the admin API
type PostInput struct {
	Slug  string
	Title string
	Date  string
	Tags  []string
	Body  string
}

// SerializePost writes a post source that MarkdownRenderer.Render reads back to the same
// title, date and tags.
func SerializePost(in PostInput) []byte {
	tags := cleanTags(in.Tags)
	encodedTags, err := json.Marshal(tags)
	if err != nil {
		encodedTags = []byte("[]")
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString(`title: "` + singleLine(in.Title) + "\"\n")
	b.WriteString("date: " + singleLine(in.Date) + "\n")
	b.WriteString("tags: " + string(encodedTags) + "\n")
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimRight(in.Body, "\n"))
	b.WriteString("\n")
	return []byte(b.String())
}

func singleLine(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

// cleanTags trims tags and drops empty and duplicate entries, keeping first-seen order
func cleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = singleLine(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
