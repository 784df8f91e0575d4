// Package content holds the flat-file variant of the blog: a directory of
// Markdown pages loaded once at startup and queried in memory.
package content

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"blog/internal/models"
)

var ErrNotFound = models.ErrNotFound

// Store is the immutable set of loaded pages. It is safe for concurrent reads.
type Store struct {
	pages  []*models.Post
	bySlug map[string]*models.Post
}

// New builds a store from already parsed pages, keeping their order as the
// tie-break for equal timestamps.
func New(pages []*models.Post) (*Store, error) {
	s := &Store{bySlug: make(map[string]*models.Post, len(pages))}
	for _, p := range pages {
		if _, dup := s.bySlug[p.Slug]; dup {
			return nil, errors.Errorf("duplicate slug %q", p.Slug)
		}
		s.bySlug[p.Slug] = p
		s.pages = append(s.pages, p)
	}
	return s, nil
}

// Load walks dir in lexical order and parses every file ending in ext.
func Load(dir, ext string) (*Store, error) {
	var pages []*models.Post
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ext {
			return nil
		}
		p, err := loadPage(dir, path)
		if err != nil {
			return err
		}
		pages = append(pages, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", dir)
	}
	return New(pages)
}

// newestFirst returns a copy of posts sorted by timestamp, newest first.
// Equal timestamps keep their input order.
func newestFirst(posts []*models.Post) []*models.Post {
	out := make([]*models.Post, len(posts))
	copy(out, posts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func (s *Store) Len() int { return len(s.pages) }

func (s *Store) All(_ context.Context) ([]*models.Post, error) {
	return newestFirst(s.pages), nil
}

func (s *Store) Recent(ctx context.Context, n int) ([]*models.Post, error) {
	if n <= 0 {
		return []*models.Post{}, nil
	}
	all, _ := s.All(ctx)
	if n > len(all) {
		n = len(all)
	}
	return all[:n], nil
}

func (s *Store) Tagged(_ context.Context, tag string) ([]*models.Post, error) {
	var tagged []*models.Post
	for _, p := range s.pages {
		if p.HasTag(tag) {
			tagged = append(tagged, p)
		}
	}
	if len(tagged) == 0 {
		return nil, ErrNotFound
	}
	return newestFirst(tagged), nil
}

func (s *Store) BySlug(_ context.Context, slug string) (*models.Post, error) {
	p, ok := s.bySlug[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// Tags lists every distinct tag in first-seen order.
func (s *Store) Tags() []string {
	seen := make(map[string]bool)
	var tags []string
	for _, p := range s.pages {
		for _, t := range p.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	return tags
}
