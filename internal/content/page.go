package content

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"blog/internal/markdown"
	"blog/internal/models"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

type frontMatter struct {
	Title     string    `yaml:"title"`
	Author    string    `yaml:"author"`
	Slug      string    `yaml:"slug"`
	Timestamp yaml.Node `yaml:"timestamp"`
	Tags      yaml.Node `yaml:"tags"`
}

// splitPage separates the metadata header from the body. The header runs up
// to the first blank line; an optional "---" fence around it is accepted.
func splitPage(src string) (meta, body string) {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(src, "\n")

	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				return strings.Join(lines[1:i], "\n"), strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n")
			}
		}
		return strings.Join(lines[1:], "\n"), ""
	}

	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			return strings.Join(lines[:i], "\n"), strings.Join(lines[i+1:], "\n")
		}
	}
	return src, ""
}

func parseTimestamp(n *yaml.Node) (time.Time, error) {
	if n.Kind == 0 || n.Value == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	var t time.Time
	if n.ShortTag() == "!!timestamp" {
		if err := n.Decode(&t); err == nil {
			return t, nil
		}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, n.Value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognised timestamp %q", n.Value)
}

func parseTags(n *yaml.Node) ([]string, error) {
	var raw []string
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.SequenceNode:
		if err := n.Decode(&raw); err != nil {
			return nil, err
		}
	case yaml.ScalarNode:
		raw = strings.FieldsFunc(n.Value, func(r rune) bool { return r == ',' || r == ' ' })
	default:
		return nil, errors.New("tags must be a list or a string")
	}

	seen := make(map[string]bool, len(raw))
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		if strings.Contains(t, "/") {
			return nil, errors.Errorf("tag %q contains a slash", t)
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags, nil
}

// parsePage builds a post from file contents. rel is the path relative to
// the content root and becomes the slug unless the header names one.
func parsePage(rel, src string) (*models.Post, error) {
	meta, body := splitPage(src)

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(meta), &fm); err != nil {
		return nil, errors.Wrap(err, "front matter")
	}
	if strings.TrimSpace(fm.Title) == "" {
		return nil, errors.New("missing title")
	}

	ts, err := parseTimestamp(&fm.Timestamp)
	if err != nil {
		return nil, err
	}
	tags, err := parseTags(&fm.Tags)
	if err != nil {
		return nil, err
	}

	slug := fm.Slug
	if slug == "" {
		slug = filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
	}
	if models.ReservedSlug(slug) {
		return nil, errors.Errorf("slug %q is taken by a fixed route", slug)
	}

	html, err := markdown.Render(body)
	if err != nil {
		return nil, errors.Wrap(err, "render")
	}

	return &models.Post{
		Slug:      slug,
		Title:     fm.Title,
		Author:    fm.Author,
		Timestamp: ts,
		Tags:      tags,
		Content:   body,
		HTML:      html,
	}, nil
}

func loadPage(root, path string) (*models.Post, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, err
	}
	p, err := parsePage(rel, string(b))
	if err != nil {
		return nil, errors.Wrapf(err, "page %s", rel)
	}
	return p, nil
}
