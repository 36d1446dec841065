package application

import (
	"reflect"
	"testing"
)

func TestSplitFrontmatter(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		expectedFM   Frontmatter
		expectedBody string
	}{
		{
			name:         "Plain values",
			raw:          "---\ntitle: Hello\ndate: 2024-01-01\n---\nBody",
			expectedFM:   Frontmatter{"title": "Hello", "date": "2024-01-01"},
			expectedBody: "Body",
		},
		{
			name:         "Colon splits on first occurrence",
			raw:          "---\ntitle: Go: the good parts\n---\nBody",
			expectedFM:   Frontmatter{"title": "Go: the good parts"},
			expectedBody: "Body",
		},
		{
			name:         "Wrapping quotes stripped",
			raw:          "---\ntitle: \"Quoted: title\"\nauthor: 'Single'\nmixed: \"open'\n---\nBody",
			expectedFM:   Frontmatter{"title": "Quoted: title", "author": "Single", "mixed": "\"open'"},
			expectedBody: "Body",
		},
		{
			name:         "Array keys parsed as JSON",
			raw:          "---\ntags: [\"go\", \"web\"]\ncategories: [\"notes\"]\n---\nBody",
			expectedFM:   Frontmatter{"tags": []string{"go", "web"}, "categories": []string{"notes"}},
			expectedBody: "Body",
		},
		{
			name:         "Single-quoted array items",
			raw:          "---\ntags: ['go', 'web']\n---\nBody",
			expectedFM:   Frontmatter{"tags": []string{"go", "web"}},
			expectedBody: "Body",
		},
		{
			name:         "Invalid array falls back to empty",
			raw:          "---\ntags: go, web\n---\nBody",
			expectedFM:   Frontmatter{"tags": []string{}},
			expectedBody: "Body",
		},
		{
			name:         "Comments, blank lines and lines without a colon ignored",
			raw:          "---\n# a comment\n\njust words\ntitle: Kept\n: no key\n---\nBody",
			expectedFM:   Frontmatter{"title": "Kept"},
			expectedBody: "Body",
		},
		{
			name:         "No frontmatter",
			raw:          "# Just markdown\n\nText",
			expectedFM:   Frontmatter{},
			expectedBody: "# Just markdown\n\nText",
		},
		{
			name:         "Unterminated block is body",
			raw:          "---\ntitle: Never closed\nBody",
			expectedFM:   Frontmatter{},
			expectedBody: "---\ntitle: Never closed\nBody",
		},
		{
			name:         "Empty input",
			raw:          "",
			expectedFM:   Frontmatter{},
			expectedBody: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body := SplitFrontmatter([]byte(tt.raw))
			if !reflect.DeepEqual(fm, tt.expectedFM) {
				t.Errorf("SplitFrontmatter(%q) frontmatter = %#v, want %#v", tt.raw, fm, tt.expectedFM)
			}
			if string(body) != tt.expectedBody {
				t.Errorf("SplitFrontmatter(%q) body = %q, want %q", tt.raw, body, tt.expectedBody)
			}
		})
	}
}

func TestFrontmatterAccessors(t *testing.T) {
	fm := Frontmatter{"title": "Hello", "tags": []string{"go"}}

	if got := fm.String("title"); got != "Hello" {
		t.Errorf("String(title) = %q, want Hello", got)
	}
	if got := fm.String("tags"); got != "" {
		t.Errorf("String(tags) = %q, want empty for a list", got)
	}
	if got := fm.String("missing"); got != "" {
		t.Errorf("String(missing) = %q, want empty", got)
	}
	if got := fm.Strings("tags"); !reflect.DeepEqual(got, []string{"go"}) {
		t.Errorf("Strings(tags) = %v, want [go]", got)
	}
	if got := fm.Strings("title"); got != nil {
		t.Errorf("Strings(title) = %v, want nil for a string", got)
	}
}
