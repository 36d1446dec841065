package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"
)

// arrayKeys are frontmatter keys whose values are JSON arrays of strings
var arrayKeys = map[string]bool{
	"tags":       true,
	"categories": true,
}

// Frontmatter maps keys to either a string or, for array keys, a []string.
type Frontmatter map[string]any

// String returns the string value of key, or "" when it is absent or a list
func (f Frontmatter) String(key string) string {
	v, _ := f[key].(string)
	return v
}

// Strings returns the list value of key, or nil when it is absent or a plain string
func (f Frontmatter) Strings(key string) []string {
	v, _ := f[key].([]string)
	return v
}

var lineFormat = frontmatter.NewFormat("---", "---", unmarshalFrontmatter)

// SplitFrontmatter separates a leading ----delimited block from the body.
// A missing or malformed block yields an empty mapping and the whole input as body.
func SplitFrontmatter(raw []byte) (Frontmatter, []byte) {
	fm := Frontmatter{}
	body, err := frontmatter.Parse(bytes.NewReader(raw), &fm, lineFormat)
	if err != nil {
		return Frontmatter{}, raw
	}
	return fm, body
}

func unmarshalFrontmatter(data []byte, v any) error {
	fm, ok := v.(*Frontmatter)
	if !ok {
		return fmt.Errorf("frontmatter: cannot decode into %T", v)
	}
	*fm = parseFrontmatterBlock(data)
	return nil
}

// parseFrontmatterBlock reads "key: value" lines. The first colon separates key and value,
// wrapping quotes are removed and array keys are decoded as JSON.
func parseFrontmatterBlock(data []byte) Frontmatter {
	fm := Frontmatter{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = unquote(strings.TrimSpace(value))

		if arrayKeys[key] {
			fm[key] = parseList(value)
			continue
		}
		fm[key] = value
	}
	return fm
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// parseList reads a JSON array, also accepting single-quoted items
func parseList(value string) []string {
	var list []string
	if err := json.Unmarshal([]byte(value), &list); err == nil && list != nil {
		return list
	}
	if err := json.Unmarshal([]byte(strings.ReplaceAll(value, "'", "\"")), &list); err == nil && list != nil {
		return list
	}
	return []string{}
}
