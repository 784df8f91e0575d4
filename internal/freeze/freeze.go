// Package freeze renders every read route of the blog into a directory of
// static files.
package freeze

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"blog/internal/models"
	"blog/web"
)

// Lister is the part of a post source the crawler needs.
type Lister interface {
	All(ctx context.Context) ([]*models.Post, error)
}

// URLs lists every path to render: the fixed pages, one per post, one per tag
// and the embedded static assets.
func URLs(ctx context.Context, posts Lister) ([]string, error) {
	all, err := posts.All(ctx)
	if err != nil {
		return nil, err
	}

	urls := []string{"/", "/post/list/", "/recent.atom"}
	tags := map[string]struct{}{}
	for _, p := range all {
		urls = append(urls, "/post/"+escapePath(p.Slug)+"/")
		for _, t := range p.Tags {
			tags[t] = struct{}{}
		}
	}
	names := make([]string, 0, len(tags))
	for t := range tags {
		names = append(names, t)
	}
	sort.Strings(names)
	for _, t := range names {
		urls = append(urls, "/post/tagged/"+url.PathEscape(t)+"/")
	}

	err = fs.WalkDir(web.Static, "static", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		urls = append(urls, "/"+p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list static assets")
	}
	return urls, nil
}

// Run wipes dest and writes the response for each url in it. Any non-200
// answer aborts the run.
func Run(ctx context.Context, h http.Handler, urls []string, dest string, log *slog.Logger) error {
	if dest == "" || filepath.Clean(dest) == "/" || filepath.Clean(dest) == "." {
		return errors.Errorf("refusing to wipe destination %q", dest)
	}
	if err := os.RemoveAll(dest); err != nil {
		return errors.Wrap(err, "wipe destination")
	}

	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := httptest.NewRequest(http.MethodGet, u, nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return errors.Errorf("GET %s: status %d", u, rec.Code)
		}

		out := filepath.Join(dest, filepath.FromSlash(target(u)))
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return errors.Wrap(err, "create directory")
		}
		if err := os.WriteFile(out, rec.Body.Bytes(), 0o644); err != nil {
			return errors.Wrapf(err, "write %s", out)
		}
		log.Debug("frozen", "url", u, "file", out)
	}
	log.Info("freeze complete", "files", len(urls), "dest", dest)
	return nil
}

// escapePath escapes each segment of a slash separated slug.
func escapePath(s string) string {
	parts := strings.Split(s, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// target maps a url path onto a relative file path. Segments are unescaped
// one at a time so an escaped slash stays inside its file name.
func target(u string) string {
	parts := strings.Split(u, "/")
	for i, seg := range parts {
		dec, err := url.PathUnescape(seg)
		if err != nil || strings.Contains(dec, "/") {
			continue
		}
		parts[i] = dec
	}
	p := strings.Join(parts, "/")
	if strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	return strings.TrimPrefix(path.Clean(p), "/")
}
