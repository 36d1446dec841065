// Package render turns posts into complete HTML documents.
// Rendering is deterministic: the same posts always produce the same bytes.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/dfryer1193/inkblog/blog/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Stylesheet is served at StylesheetPath and linked from every page
//
//go:embed static/style.css
var Stylesheet []byte

const (
	baseTemplate  = "base.html"
	indexTemplate = "index.html"
	postTemplate  = "post.html"
	tagTemplate   = "tag.html"

	displayDateLayout = "January 2, 2006"

	StylesheetPath = "/css/style.css"
)

var pageTemplates = []string{indexTemplate, postTemplate, tagTemplate}

// Site holds the site-wide values every page shows
type Site struct {
	Title       string
	Description string
	// BaseURL prefixes every generated link; empty gives root-relative links.
	BaseURL string
}

type pageData struct {
	Site        Site
	Title       string
	Description string
	Posts       []*domain.Post
	Post        *domain.Post
	Content     template.HTML
	Tag         string
}

type Renderer struct {
	site  Site
	pages map[string]*template.Template
}

// NewRenderer parses the embedded page templates
func NewRenderer(site Site) (*Renderer, error) {
	site.BaseURL = strings.TrimSuffix(site.BaseURL, "/")
	r := &Renderer{
		site:  site,
		pages: make(map[string]*template.Template, len(pageTemplates)),
	}

	base, err := template.New(baseTemplate).
		Funcs(r.funcs()).
		ParseFS(templateFS, "templates/"+baseTemplate, "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}

	for _, page := range pageTemplates {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone base template for %s: %w", page, err)
		}
		if _, err := t.ParseFS(templateFS, "templates/"+page); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		r.pages[page] = t
	}

	return r, nil
}

// Site returns the site settings the renderer was built with
func (r *Renderer) Site() Site {
	return r.site
}

// RenderIndex renders the home page listing posts in the given order
func (r *Renderer) RenderIndex(posts []*domain.Post) (string, error) {
	return r.execute(indexTemplate, pageData{
		Site:        r.site,
		Title:       r.site.Title,
		Description: r.site.Description,
		Posts:       posts,
	})
}

// RenderPost renders a single post page
func (r *Renderer) RenderPost(post *domain.Post) (string, error) {
	if post == nil {
		return "", errors.New("cannot render a nil post")
	}

	return r.execute(postTemplate, pageData{
		Site:        r.site,
		Title:       pageTitle(post.Title, r.site.Title),
		Description: post.Excerpt,
		Post:        post,
		Content:     template.HTML(post.Content),
	})
}

// RenderTag renders the listing of posts carrying tag
func (r *Renderer) RenderTag(tag string, posts []*domain.Post) (string, error) {
	return r.execute(tagTemplate, pageData{
		Site:        r.site,
		Title:       pageTitle("Posts tagged "+tag, r.site.Title),
		Description: r.site.Description,
		Posts:       posts,
		Tag:         tag,
	})
}

func (r *Renderer) execute(page string, data pageData) (string, error) {
	t, ok := r.pages[page]
	if !ok {
		return "", fmt.Errorf("unknown page template %q", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, baseTemplate, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", page, err)
	}
	return buf.String(), nil
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"siteURL":     r.URL,
		"postURL":     r.PostURL,
		"tagURL":      r.TagURL,
		"displayDate": displayDate,
	}
}

// URL resolves a site path against the base URL
func (r *Renderer) URL(path string) string {
	return r.site.BaseURL + path
}

func (r *Renderer) PostURL(slug string) string {
	return r.URL("/post/" + slug)
}

func (r *Renderer) TagURL(tag string) string {
	return r.URL("/tag/" + domain.Slugify(tag))
}

func pageTitle(title, siteTitle string) string {
	if siteTitle == "" {
		return title
	}
	return title + " - " + siteTitle
}

func displayDate(post *domain.Post) string {
	if post.PublishedAt.IsZero() {
		return post.Date
	}
	return post.PublishedAt.Format(displayDateLayout)
}
