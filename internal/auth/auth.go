package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"blog/internal/db"
	"blog/internal/models"
)

const sessionCookie = "blog_session"

var ErrInvalidCredentials = errors.New("wrong email or password")

// Manager keeps cookie sessions in the sessions table.
type Manager struct {
	db     *db.DB
	maxAge time.Duration
	log    *slog.Logger
}

func NewManager(d *db.DB, maxAge time.Duration, log *slog.Logger) *Manager {
	return &Manager{db: d, maxAge: maxAge, log: log}
}

// Create replaces any session the user already has with a fresh one and sets
// the cookie.
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, userID int64) error {
	conn := m.db.SQL()
	if _, err := conn.ExecContext(ctx, m.db.Rebind(`DELETE FROM sessions WHERE user_id = ?`), userID); err != nil {
		return err
	}

	id := uuid.New().String()
	expires := time.Now().Add(m.maxAge).UTC().Truncate(time.Second)

	_, err := conn.ExecContext(ctx, m.db.Rebind(`INSERT INTO sessions(id, user_id, expires_at) VALUES(?, ?, ?)`), id, userID, expires)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
	return nil
}

func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) {
	c, _ := r.Cookie(sessionCookie)
	if c != nil && c.Value != "" {
		if _, err := m.db.SQL().ExecContext(r.Context(), m.db.Rebind(`DELETE FROM sessions WHERE id = ?`), c.Value); err != nil {
			m.log.Error("destroy session", "err", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func (m *Manager) CurrentUserID(r *http.Request) (int64, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return 0, false
	}
	var uid int64
	var exp time.Time
	err = m.db.SQL().QueryRowContext(r.Context(), m.db.Rebind(`SELECT user_id, expires_at FROM sessions WHERE id = ?`), c.Value).Scan(&uid, &exp)
	if err != nil || time.Now().After(exp) {
		return 0, false
	}
	return uid, true
}

// CleanupExpired removes sessions past their expiry.
func (m *Manager) CleanupExpired(ctx context.Context) error {
	_, err := m.db.SQL().ExecContext(ctx, m.db.Rebind(`DELETE FROM sessions WHERE expires_at < ?`), time.Now().UTC())
	return err
}

// Authenticate looks the user up by email and checks the password.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func Authenticate(ctx context.Context, users *db.UserStore, email, password string) (*models.User, error) {
	u, err := users.ByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, err
	}
	if !CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// SafeNext returns next when it is a local absolute path, otherwise "/".
// It is used for the post-login redirect target.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}

// --- password helpers (bcrypt) ---
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}
func CheckPassword(pw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
