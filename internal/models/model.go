package models

import (
	"errors"
	"html/template"
	"strings"
	"time"
)

// ErrNotFound is returned when a slug, id or tag filter matches nothing visible.
var ErrNotFound = errors.New("not found")

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Post is the view of a blog entry shared by both storage variants.
// Flat-file pages leave ID, UserID and DeletedAt zero.
type Post struct {
	ID        int64
	UserID    int64
	Slug      string
	Title     string
	Author    string
	Timestamp time.Time
	Tags      []string
	Content   string // raw Markdown
	HTML      template.HTML
	DeletedAt *time.Time
}

func (p *Post) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ReservedSlug reports whether a post at /post/<slug>/ would be shadowed by
// one of the fixed routes under /post/.
func ReservedSlug(slug string) bool {
	first, _, _ := strings.Cut(slug, "/")
	switch first {
	case "list", "tagged", "add":
		return true
	}
	return false
}
