package handlers

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/inflection"

	"blog/internal/auth"
	"blog/internal/db"
	"blog/internal/feed"
	"blog/internal/models"
	"blog/web"
)

// IndexSize is the number of posts on the front page.
const IndexSize = 5

// Source is the read side shared by the flat-file and database variants.
type Source interface {
	Recent(ctx context.Context, n int) ([]*models.Post, error)
	All(ctx context.Context) ([]*models.Post, error)
	Tagged(ctx context.Context, tag string) ([]*models.Post, error)
	BySlug(ctx context.Context, slug string) (*models.Post, error)
}

type Handler struct {
	posts Source
	site  feed.Site
	tpls  *template.Template
	log   *slog.Logger

	// set only for the database variant
	store    *db.PostStore
	users    *db.UserStore
	sessions *auth.Manager
	validate *validator.Validate
}

var funcs = template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2 January 2006")
	},
	"ago": func(t time.Time) string { return humanize.Time(t) },
	"plural": func(word string, n int) string {
		if n == 1 {
			return word
		}
		return inflection.Plural(word)
	},
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(web.Templates, "templates/*.html")
}

// New returns the read-only handler used by the flat-file variant.
func New(posts Source, site feed.Site, log *slog.Logger) (*Handler, error) {
	tpls, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Handler{posts: posts, site: site, tpls: tpls, log: log}, nil
}

// NewWritable returns the database variant's handler with the login and
// post editing routes enabled.
func NewWritable(store *db.PostStore, users *db.UserStore, sessions *auth.Manager, site feed.Site, log *slog.Logger) (*Handler, error) {
	h, err := New(store, site, log)
	if err != nil {
		return nil, err
	}
	h.store = store
	h.users = users
	h.sessions = sessions
	h.validate = newValidator()
	return h, nil
}

func (h *Handler) writable() bool { return h.store != nil }

// Routes builds the mux. Write routes exist only on a writable handler.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	static, _ := fs.Sub(web.Static, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("GET /post/list/{$}", h.Archives)
	mux.HandleFunc("GET /post/tagged/{tag}/{$}", h.Tagged)
	mux.HandleFunc("GET /post/{slug...}", h.Post)
	mux.HandleFunc("GET /recent.atom", h.Feed)

	if h.writable() {
		mux.HandleFunc("GET /login", h.Login)
		mux.HandleFunc("POST /login", h.Login)
		mux.HandleFunc("GET /logout", h.Logout)
		mux.HandleFunc("GET /post/add", h.RequireAuth(h.AddPost))
		mux.HandleFunc("POST /post/add", h.RequireAuth(h.AddPost))
		mux.HandleFunc("GET /post/{id}/edit", h.RequireAuth(h.EditPost))
		mux.HandleFunc("POST /post/{id}/edit", h.RequireAuth(h.EditPost))
		mux.HandleFunc("POST /post/{id}/delete", h.RequireAuth(h.DeletePost))
	}

	mux.HandleFunc("/", h.NotFound)

	return WithRecover(LogRequests(mux, h.log), h.log)
}

type page struct {
	Title     string
	Site      feed.Site
	Writable  bool
	Logged    bool
	UserID    int64
	Posts     []*models.Post
	Tag       string
	Next      string
	Action    string
	Form      map[string]string
	Errors    map[string]string
	FormError string
}

func (h *Handler) newPage(r *http.Request, title string) *page {
	p := &page{Title: title, Site: h.site, Writable: h.writable()}
	if h.sessions != nil {
		p.UserID, p.Logged = h.sessions.CurrentUserID(r)
	}
	return p
}

// render executes into a buffer first so a template error still yields a
// clean 500.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data *page) {
	buf := new(bytes.Buffer)
	if err := h.tpls.ExecuteTemplate(buf, name, data); err != nil {
		h.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// fail maps storage errors onto responses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		h.NotFound(w, r)
	case errors.Is(err, db.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		h.serverError(w, r, err)
	}
}

// -------- Pages

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.Recent(r.Context(), IndexSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p := h.newPage(r, "Blog")
	p.Posts = posts
	h.render(w, r, http.StatusOK, "index", p)
}

func (h *Handler) Archives(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.All(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p := h.newPage(r, "Posts")
	p.Posts = posts
	h.render(w, r, http.StatusOK, "archives", p)
}

func (h *Handler) Tagged(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")
	posts, err := h.posts.Tagged(r.Context(), tag)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p := h.newPage(r, tag)
	p.Posts = posts
	p.Tag = tag
	h.render(w, r, http.StatusOK, "post", p)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	rest := r.PathValue("slug")
	if rest == "" {
		h.NotFound(w, r)
		return
	}
	if !strings.HasSuffix(rest, "/") {
		http.Redirect(w, r, "/post/"+rest+"/", http.StatusMovedPermanently)
		return
	}

	post, err := h.posts.BySlug(r.Context(), strings.TrimSuffix(rest, "/"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p := h.newPage(r, post.Title)
	p.Posts = []*models.Post{post}
	h.render(w, r, http.StatusOK, "post", p)
}

func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.Recent(r.Context(), feed.Size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	doc, err := feed.Build(h.site, posts)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	_, _ = w.Write([]byte(doc))
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "notfound", h.newPage(r, "Not Found"))
}
