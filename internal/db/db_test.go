package db

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"blog/internal/models"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.Migrate(context.Background()))
	return d
}

func newTestUser(t *testing.T, d *DB) *models.User {
	t.Helper()
	u, err := NewUserStore(d).Create(context.Background(), gofakeit.Email(), "hash")
	require.NoError(t, err)
	return u
}

func createAt(t *testing.T, s *PostStore, userID int64, title, date string, tags ...string) *models.Post {
	t.Helper()
	ts, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	p := &models.Post{UserID: userID, Title: title, Content: "Body of *" + title + "*", Tags: tags}
	require.NoError(t, s.Create(WithClock(context.Background(), &fixedClock{ts}), p))
	return p
}

func titles(posts []*models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Title
	}
	return out
}

func TestDialectFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want Dialect
	}{
		{"", SQLite},
		{"sqlite", SQLite},
		{"postgres", PostgreSQL},
		{"pgx", PostgreSQL},
		{"MySQL", MySQL},
	}
	for _, tt := range tests {
		got, err := DialectFor(tt.name)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}

	_, err := DialectFor("oracle")
	require.ErrorContains(t, err, `unknown database driver "oracle"`)
}

func TestRebind(t *testing.T) {
	t.Parallel()

	q := `SELECT * FROM posts WHERE slug = ? AND id <> ?`
	require.Equal(t, q, rebind(SQLite, q))
	require.Equal(t, q, rebind(MySQL, q))
	require.Equal(t, `SELECT * FROM posts WHERE slug = $1 AND id <> $2`, rebind(PostgreSQL, q))
	require.Equal(t, "?, ?, ?", placeholders(3))
	require.Equal(t, "", placeholders(0))
}

func TestPostOrdering(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	u := newTestUser(t, d)
	s := NewPostStore(d)
	ctx := context.Background()

	createAt(t, s, u.ID, "January", "2020-01-01")
	createAt(t, s, u.ID, "March", "2020-03-01")
	createAt(t, s, u.ID, "February", "2020-02-01")
	createAt(t, s, u.ID, "March again", "2020-03-01")

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"March", "March again", "February", "January"}, titles(all))
	require.Equal(t, u.Email, all[0].Author)

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, titles(all[:2]), titles(recent))

	none, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestCreateDerivesSlugAndRendersHTML(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	u := newTestUser(t, d)
	s := NewPostStore(d)
	ctx := context.Background()

	first := createAt(t, s, u.ID, "Hello, World!", "2021-06-01")
	second := createAt(t, s, u.ID, "Hello World", "2021-06-02")
	require.Equal(t, "hello-world", first.Slug)
	require.Equal(t, "hello-world-2", second.Slug)
	require.NotZero(t, first.ID)

	got, err := s.BySlug(ctx, "hello-world")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
	require.Contains(t, string(got.HTML), "<em>Hello, World!</em>")
	require.True(t, got.Timestamp.Equal(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)))

	_, err = s.BySlug(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTagged(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	u := newTestUser(t, d)
	s := NewPostStore(d)
	ctx := context.Background()

	createAt(t, s, u.ID, "One", "2020-01-01", "go", "web")
	createAt(t, s, u.ID, "Two", "2020-03-01", "python")
	createAt(t, s, u.ID, "Three", "2020-02-01", "go", "go")

	got, err := s.Tagged(ctx, "go")
	require.NoError(t, err)
	require.Equal(t, []string{"Three", "One"}, titles(got))
	require.Equal(t, []string{"go"}, got[0].Tags)
	require.Equal(t, []string{"go", "web"}, got[1].Tags)

	_, err = s.Tagged(ctx, "rust")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	owner := newTestUser(t, d)
	other := newTestUser(t, d)
	s := NewPostStore(d)
	ctx := context.Background()

	p := createAt(t, s, owner.ID, "Draft title", "2020-01-01", "a")

	edit := &models.Post{ID: p.ID, Title: "Final title", Content: "new body", Tags: []string{"b", "c"}}
	require.ErrorIs(t, s.Update(ctx, other.ID, edit), ErrForbidden)

	require.NoError(t, s.Update(ctx, owner.ID, edit))
	require.Equal(t, "final-title", edit.Slug)

	got, err := s.ByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Final title", got.Title)
	require.Equal(t, "new body", got.Content)
	require.Equal(t, []string{"b", "c"}, got.Tags)
	require.True(t, got.Timestamp.Equal(p.Timestamp))

	_, err = s.BySlug(ctx, "draft-title")
	require.ErrorIs(t, err, ErrNotFound)

	// same title keeps the slug
	edit.Content = "again"
	require.NoError(t, s.Update(ctx, owner.ID, edit))
	require.Equal(t, "final-title", edit.Slug)
}

func TestSoftDelete(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	owner := newTestUser(t, d)
	s := NewPostStore(d)
	ctx := context.Background()

	p := createAt(t, s, owner.ID, "Gone soon", "2020-01-01", "x")
	keep := createAt(t, s, owner.ID, "Stays", "2020-01-02", "x")

	require.NoError(t, s.Delete(ctx, owner.ID, p.ID))

	_, err := s.ByID(ctx, p.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.BySlug(ctx, p.Slug)
	require.ErrorIs(t, err, ErrNotFound)

	err = s.Update(ctx, owner.ID, &models.Post{ID: p.ID, Title: "Back", Content: "x"})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, owner.ID, p.ID), ErrNotFound)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{keep.Title}, titles(all))

	tagged, err := s.Tagged(ctx, "x")
	require.NoError(t, err)
	require.Len(t, tagged, 1)

	// the row is still there, so its slug stays taken
	var n int
	require.NoError(t, d.SQL().QueryRow(`SELECT COUNT(*) FROM posts WHERE id = ? AND deleted_at IS NOT NULL`, p.ID).Scan(&n))
	require.Equal(t, 1, n)
	again := createAt(t, s, owner.ID, "Gone soon", "2020-02-01")
	require.Equal(t, "gone-soon-2", again.Slug)
}

func TestUsers(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	users := NewUserStore(d)
	ctx := context.Background()

	u, err := users.Create(ctx, "  Matt@Example.com ", "hash")
	require.NoError(t, err)
	require.Equal(t, "matt@example.com", u.Email)

	got, err := users.ByEmail(ctx, "MATT@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	got, err = users.ByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "hash", got.PasswordHash)

	_, err = users.Create(ctx, "matt@example.com", "other")
	require.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = users.ByID(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateSkipsShadowedSlugs(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	u := newTestUser(t, d)
	s := NewPostStore(d)

	require.Equal(t, "list-2", createAt(t, s, u.ID, "List", "2021-06-01").Slug)
	require.Equal(t, "tagged-2", createAt(t, s, u.ID, "Tagged", "2021-06-02").Slug)
	require.Equal(t, "listing", createAt(t, s, u.ID, "Listing", "2021-06-03").Slug)
}

func TestParseTags(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"go", "web dev", "x"}, ParseTags(" go, web dev ,,x, go"))
	require.Nil(t, ParseTags(""))
	require.Equal(t, []string{"ci-cd"}, ParseTags("ci/cd"))
}
