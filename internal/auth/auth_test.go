package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"blog/internal/db"
)

func newTestManager(t *testing.T, maxAge time.Duration) (*Manager, *db.UserStore) {
	t.Helper()
	d, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.Migrate(context.Background()))
	return NewManager(d, maxAge, slog.New(slog.NewTextHandler(io.Discard, nil))), db.NewUserStore(d)
}

func requestWith(cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	m, users := newTestManager(t, time.Hour)
	ctx := context.Background()
	u, err := users.Create(ctx, gofakeit.Email(), "x")
	require.NoError(t, err)

	_, ok := m.CurrentUserID(requestWith(nil))
	require.False(t, ok)

	w := httptest.NewRecorder()
	require.NoError(t, m.Create(ctx, w, u.ID))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, sessionCookie, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	uid, ok := m.CurrentUserID(requestWith(cookies))
	require.True(t, ok)
	require.Equal(t, u.ID, uid)

	// a second login replaces the first session
	w2 := httptest.NewRecorder()
	require.NoError(t, m.Create(ctx, w2, u.ID))
	_, ok = m.CurrentUserID(requestWith(cookies))
	require.False(t, ok)

	second := w2.Result().Cookies()
	out := httptest.NewRecorder()
	m.Destroy(out, requestWith(second))
	_, ok = m.CurrentUserID(requestWith(second))
	require.False(t, ok)
	require.Equal(t, "", out.Result().Cookies()[0].Value)
}

func TestExpiredSession(t *testing.T) {
	t.Parallel()

	m, users := newTestManager(t, -time.Minute)
	ctx := context.Background()
	u, err := users.Create(ctx, gofakeit.Email(), "x")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	require.NoError(t, m.Create(ctx, w, u.ID))
	_, ok := m.CurrentUserID(requestWith(w.Result().Cookies()))
	require.False(t, ok)

	require.NoError(t, m.CleanupExpired(ctx))
	var n int
	require.NoError(t, m.db.SQL().QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n))
	require.Zero(t, n)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	_, users := newTestManager(t, time.Hour)
	ctx := context.Background()

	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	u, err := users.Create(ctx, "matt@example.com", hash)
	require.NoError(t, err)

	got, err := Authenticate(ctx, users, "matt@example.com", "s3cret")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = Authenticate(ctx, users, "matt@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = Authenticate(ctx, users, "nobody@example.com", "s3cret")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSafeNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		next string
		want string
	}{
		{"", "/"},
		{"/post/add", "/post/add"},
		{"/post/3/edit?x=1", "/post/3/edit?x=1"},
		{"https://evil.example/", "/"},
		{"//evil.example/", "/"},
		{"/\\evil.example", "/"},
		{"post/add", "/"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, SafeNext(tt.next), "next=%q", tt.next)
	}
}
