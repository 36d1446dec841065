package render

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dfryer1193/inkblog/blog/domain"
)

const jsonFeedVersion = "https://jsonfeed.org/version/1.1"

type jsonFeed struct {
	Version     string         `json:"version"`
	Title       string         `json:"title"`
	HomePageURL string         `json:"home_page_url,omitempty"`
	FeedURL     string         `json:"feed_url,omitempty"`
	Description string         `json:"description,omitempty"`
	Items       []jsonFeedItem `json:"items"`
}

type jsonFeedItem struct {
	ID            string   `json:"id"`
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	ContentHTML   string   `json:"content_html"`
	Summary       string   `json:"summary,omitempty"`
	DatePublished string   `json:"date_published,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// RenderFeed renders posts as a JSON Feed document
func (r *Renderer) RenderFeed(posts []*domain.Post) (string, error) {
	feed := jsonFeed{
		Version:     jsonFeedVersion,
		Title:       r.site.Title,
		Description: r.site.Description,
		Items:       make([]jsonFeedItem, 0, len(posts)),
	}
	if r.site.BaseURL != "" {
		feed.HomePageURL = r.URL("/")
		feed.FeedURL = r.URL("/feed.json")
	}

	for _, post := range posts {
		item := jsonFeedItem{
			ID:          r.PostURL(post.Slug),
			URL:         r.PostURL(post.Slug),
			Title:       post.Title,
			ContentHTML: post.Content,
			Summary:     post.Excerpt,
			Tags:        post.Tags,
		}
		if !post.PublishedAt.IsZero() {
			item.DatePublished = post.PublishedAt.Format(time.RFC3339)
		}
		feed.Items = append(feed.Items, item)
	}

	out, err := json.MarshalIndent(feed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode feed: %w", err)
	}
	return string(out), nil
}
