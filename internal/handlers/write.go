package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"blog/internal/auth"
	"blog/internal/models"
)

func (h *Handler) currentUser(r *http.Request) int64 {
	uid, _ := h.sessions.CurrentUserID(r)
	return uid
}

// RequireAuth sends anonymous visitors to the login form, remembering where
// they were going.
func (h *Handler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		if _, ok := h.sessions.CurrentUserID(r); !ok {
			target := r.URL.RequestURI()
			if r.Method != http.MethodGet {
				target = "/"
			}
			http.Redirect(w, r, "/login?next="+url.QueryEscape(target), http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	p := h.newPage(r, "Login")

	if r.Method == http.MethodGet {
		p.Next = auth.SafeNext(r.URL.Query().Get("next"))
		h.render(w, r, http.StatusOK, "login", p)
		return
	}

	form := readLoginForm(r)
	p.Next = auth.SafeNext(r.FormValue("next"))
	p.Form = map[string]string{"email": form.Email}

	if errs := h.check(form); errs != nil {
		p.Errors = errs
		h.render(w, r, http.StatusUnprocessableEntity, "login", p)
		return
	}

	u, err := auth.Authenticate(r.Context(), h.users, form.Email, form.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		p.FormError = "Wrong email or password."
		h.render(w, r, http.StatusUnauthorized, "login", p)
		return
	} else if err != nil {
		h.serverError(w, r, err)
		return
	}

	if err := h.sessions.Create(r.Context(), w, u.ID); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.log.Info("login", "user", u.ID)
	http.Redirect(w, r, p.Next, http.StatusSeeOther)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) AddPost(w http.ResponseWriter, r *http.Request) {
	p := h.newPage(r, "New Post")
	p.Action = "/post/add"

	if r.Method == http.MethodGet {
		h.render(w, r, http.StatusOK, "post_form", p)
		return
	}

	form := readPostForm(r)
	if errs := h.check(form); errs != nil {
		p.Form = form.values()
		p.Errors = errs
		h.render(w, r, http.StatusUnprocessableEntity, "post_form", p)
		return
	}

	post := &models.Post{
		UserID:  h.currentUser(r),
		Title:   form.Title,
		Content: form.Content,
		Tags:    form.tags(),
	}
	if err := h.store.Create(r.Context(), post); err != nil {
		h.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/post/"+post.Slug+"/", http.StatusSeeOther)
}

func (h *Handler) postID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) EditPost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	cur, err := h.store.ByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	uid := h.currentUser(r)
	if cur.UserID != uid {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	p := h.newPage(r, "Edit Post")
	p.Action = "/post/" + strconv.FormatInt(id, 10) + "/edit"

	if r.Method == http.MethodGet {
		p.Form = postForm{Title: cur.Title, Content: cur.Content, Tags: strings.Join(cur.Tags, ", ")}.values()
		h.render(w, r, http.StatusOK, "post_form", p)
		return
	}

	form := readPostForm(r)
	if errs := h.check(form); errs != nil {
		p.Form = form.values()
		p.Errors = errs
		h.render(w, r, http.StatusUnprocessableEntity, "post_form", p)
		return
	}

	post := &models.Post{ID: id, Title: form.Title, Content: form.Content, Tags: form.tags()}
	if err := h.store.Update(r.Context(), uid, post); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/post/"+post.Slug+"/", http.StatusSeeOther)
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	if err := h.store.Delete(r.Context(), h.currentUser(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
