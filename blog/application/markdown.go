package application

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Document is a parsed post source
type Document struct {
	Frontmatter Frontmatter
	Markdown    []byte
	HTML        string
}

// relativeLinkTransformer points relative image sources at the uploads directory
// and relative links at post pages.
type relativeLinkTransformer struct {
	baseURL string
}

func (t *relativeLinkTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := n.(type) {
		case *ast.Image:
			if dest := string(v.Destination); isRelativeLink(dest) {
				v.Destination = []byte(t.baseURL + "/uploads/" + path.Base(dest))
			}
		case *ast.Link:
			if dest := string(v.Destination); isRelativeLink(dest) {
				slug := path.Base(dest)
				slug = strings.TrimSuffix(slug, ".md")
				slug = strings.TrimSuffix(slug, ".html")
				v.Destination = []byte(t.baseURL + "/post/" + slug)
			}
		}

		return ast.WalkContinue, nil
	})
}

// isRelativeLink reports whether dest is relative to the current document.
// Site-absolute paths, fragments, queries and anything with a scheme are left alone.
func isRelativeLink(dest string) bool {
	if dest == "" {
		return false
	}

	switch dest[0] {
	case '/', '#', '?':
		return false
	}

	if strings.HasPrefix(dest, "./") || strings.HasPrefix(dest, "../") {
		return true
	}

	return !strings.Contains(dest, ":")
}

// MarkdownRenderer turns a post source into a Document.
type MarkdownRenderer interface {
	Render(source []byte) (*Document, error)
}

type MarkdownRendererImpl struct {
	renderer goldmark.Markdown
}

// NewMarkdownRenderer returns a GFM renderer. Relative links are resolved against baseURL,
// which may be empty for root-relative URLs.
func NewMarkdownRenderer(baseURL string) *MarkdownRendererImpl {
	renderer := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.Strikethrough,
			extension.TaskList,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(
				util.Prioritized(&relativeLinkTransformer{baseURL: strings.TrimSuffix(baseURL, "/")}, 100),
			),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
			html.WithUnsafe(),
		),
	)

	return &MarkdownRendererImpl{
		renderer: renderer,
	}
}

// Render splits the frontmatter from source and converts the body to HTML
func (r *MarkdownRendererImpl) Render(source []byte) (*Document, error) {
	fm, body := SplitFrontmatter(source)

	var buf bytes.Buffer
	if err := r.renderer.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}

	return &Document{
		Frontmatter: fm,
		Markdown:    body,
		HTML:        buf.String(),
	}, nil
}
