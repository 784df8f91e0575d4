// Package feed builds the Atom feed of recent posts.
package feed

import (
	"fmt"
	"html"
	"strings"

	"github.com/gorilla/feeds"

	"blog/internal/models"
)

const (
	// Size is the number of posts in the feed.
	Size = 15
	// SummaryLength is the visible length of each entry's description.
	SummaryLength = 900
)

type Site struct {
	Title       string
	Description string
	Author      string
	BaseURL     string // absolute, without trailing slash
}

func (s Site) PostURL(slug string) string {
	return strings.TrimRight(s.BaseURL, "/") + "/post/" + slug + "/"
}

// Summary is the entry description: the truncated body followed by a link to
// the full post.
func (s Site) Summary(p *models.Post) string {
	return TruncateHTML(string(p.HTML), SummaryLength) +
		fmt.Sprintf(`<a href="%s">Read More</a>`, html.EscapeString(s.PostURL(p.Slug)))
}

// Build renders posts (already newest first) as an Atom document.
func Build(site Site, posts []*models.Post) (string, error) {
	base := strings.TrimRight(site.BaseURL, "/")
	f := &feeds.Feed{
		Title:       site.Title,
		Link:        &feeds.Link{Href: base + "/recent.atom", Rel: "self"},
		Description: site.Description,
		Id:          base + "/recent.atom",
	}
	if site.Author != "" {
		f.Author = &feeds.Author{Name: site.Author}
	}
	if len(posts) > Size {
		posts = posts[:Size]
	}
	if len(posts) > 0 {
		f.Updated = posts[0].Timestamp
	}

	for _, p := range posts {
		link := site.PostURL(p.Slug)
		item := &feeds.Item{
			Id:          link,
			Title:       p.Title,
			Link:        &feeds.Link{Href: link},
			Description: site.Summary(p),
			Created:     p.Timestamp,
		}
		author := p.Author
		if author == "" {
			author = site.Author
		}
		if author != "" {
			item.Author = &feeds.Author{Name: author}
		}
		f.Items = append(f.Items, item)
	}

	return f.ToAtom()
}
