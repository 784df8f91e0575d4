package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/pkg/errors"

	"blog/internal/markdown"
	"blog/internal/models"
)

const selectPosts = `SELECT p.id, p.user_id, p.title, p.content, p.slug, p.published_at, p.deleted_at, u.email
	FROM posts p JOIN users u ON u.id = p.user_id`

// newest first; ids break ties so equal timestamps keep insertion order
const orderPosts = ` ORDER BY p.published_at DESC, p.id ASC`

// PostStore serves the read routes from the posts table and implements the
// authenticated mutations. Soft-deleted posts are invisible to every read.
type PostStore struct {
	db *DB
}

func NewPostStore(db *DB) *PostStore {
	return &PostStore{db: db}
}

func (s *PostStore) All(ctx context.Context) ([]*models.Post, error) {
	return s.list(ctx, selectPosts+` WHERE p.deleted_at IS NULL`+orderPosts)
}

func (s *PostStore) Recent(ctx context.Context, n int) ([]*models.Post, error) {
	if n <= 0 {
		return []*models.Post{}, nil
	}
	return s.list(ctx, selectPosts+` WHERE p.deleted_at IS NULL`+orderPosts+fmt.Sprintf(` LIMIT %d`, n))
}

func (s *PostStore) Tagged(ctx context.Context, tag string) ([]*models.Post, error) {
	posts, err := s.list(ctx, selectPosts+
		` JOIN post_tags t ON t.post_id = p.id WHERE t.tag = ? AND p.deleted_at IS NULL`+orderPosts, tag)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrNotFound
	}
	return posts, nil
}

func (s *PostStore) BySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.one(ctx, selectPosts+` WHERE p.slug = ? AND p.deleted_at IS NULL ORDER BY p.id LIMIT 1`, slug)
}

// ByID returns a visible post; a soft-deleted id is reported as not found.
func (s *PostStore) ByID(ctx context.Context, id int64) (*models.Post, error) {
	return s.one(ctx, selectPosts+` WHERE p.id = ? AND p.deleted_at IS NULL`, id)
}

// Create stores p for its UserID, deriving a free slug from the title and
// stamping the current time. p is updated with the id, slug and timestamp.
func (s *PostStore) Create(ctx context.Context, p *models.Post) error {
	p.Timestamp = now(ctx)
	return s.db.transaction(ctx, func(tx *sql.Tx) error {
		sl, err := s.freeSlug(ctx, tx, p.Title, 0)
		if err != nil {
			return err
		}
		p.Slug = sl

		id, err := s.db.insert(ctx, tx,
			`INSERT INTO posts(user_id, title, content, slug, published_at) VALUES(?, ?, ?, ?, ?)`,
			p.UserID, p.Title, p.Content, p.Slug, p.Timestamp)
		if err != nil {
			return errors.Wrap(err, "insert post")
		}
		p.ID = id
		return s.setTags(ctx, tx, p.ID, p.Tags)
	})
}

// Update saves title, content and tags of an existing post owned by userID.
// The slug follows the title. The creation timestamp is kept.
func (s *PostStore) Update(ctx context.Context, userID int64, p *models.Post) error {
	cur, err := s.ByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if cur.UserID != userID {
		return ErrForbidden
	}

	return s.db.transaction(ctx, func(tx *sql.Tx) error {
		sl := cur.Slug
		if p.Title != cur.Title {
			if sl, err = s.freeSlug(ctx, tx, p.Title, p.ID); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, s.db.Rebind(
			`UPDATE posts SET title = ?, content = ?, slug = ? WHERE id = ? AND deleted_at IS NULL`),
			p.Title, p.Content, sl, p.ID)
		if err != nil {
			return errors.Wrap(err, "update post")
		}
		p.Slug = sl
		p.UserID = cur.UserID
		p.Timestamp = cur.Timestamp
		return s.setTags(ctx, tx, p.ID, p.Tags)
	})
}

// Delete marks a post owned by userID as deleted. The row is kept.
func (s *PostStore) Delete(ctx context.Context, userID, id int64) error {
	cur, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	if cur.UserID != userID {
		return ErrForbidden
	}
	_, err = s.db.raw.ExecContext(ctx, s.db.Rebind(
		`UPDATE posts SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`), now(ctx), id)
	return errors.Wrap(err, "delete post")
}

// freeSlug derives a slug from title, appending -2, -3, ... while another
// post (deleted ones included) already uses it or a fixed route shadows it.
func (s *PostStore) freeSlug(ctx context.Context, q querier, title string, self int64) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "post"
	}
	candidate := base
	for i := 2; ; i++ {
		var n int
		err := q.QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM posts WHERE slug = ? AND id <> ?`),
			candidate, self).Scan(&n)
		if err != nil {
			return "", errors.Wrap(err, "check slug")
		}
		if n == 0 && !models.ReservedSlug(candidate) {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *PostStore) setTags(ctx context.Context, q querier, postID int64, tags []string) error {
	if _, err := q.ExecContext(ctx, s.db.Rebind(`DELETE FROM post_tags WHERE post_id = ?`), postID); err != nil {
		return errors.Wrap(err, "clear tags")
	}
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		if _, err := q.ExecContext(ctx, s.db.Rebind(`INSERT INTO post_tags(post_id, tag) VALUES(?, ?)`), postID, t); err != nil {
			return errors.Wrap(err, "insert tag")
		}
	}
	return nil
}

func (s *PostStore) one(ctx context.Context, query string, args ...any) (*models.Post, error) {
	posts, err := s.list(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrNotFound
	}
	return posts[0], nil
}

func (s *PostStore) list(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := s.db.raw.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "query posts")
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		var (
			p       models.Post
			deleted sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &p.Slug, &p.Timestamp, &deleted, &p.Author); err != nil {
			return nil, errors.Wrap(err, "scan post")
		}
		if deleted.Valid {
			t := deleted.Time
			p.DeletedAt = &t
		}
		if p.HTML, err = markdown.Render(p.Content); err != nil {
			return nil, errors.Wrapf(err, "render post %d", p.ID)
		}
		posts = append(posts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate posts")
	}
	// release the connection before the tag query; SQLite runs with one
	rows.Close()

	if err := s.loadTags(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostStore) loadTags(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Post, len(posts))
	ids := make([]any, 0, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	query := `SELECT post_id, tag FROM post_tags WHERE post_id IN (` + placeholders(len(ids)) + `) ORDER BY tag`
	rows, err := s.db.raw.QueryContext(ctx, s.db.Rebind(query), ids...)
	if err != nil {
		return errors.Wrap(err, "query tags")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int64
			tag string
		)
		if err := rows.Scan(&id, &tag); err != nil {
			return errors.Wrap(err, "scan tag")
		}
		if p, ok := byID[id]; ok {
			p.Tags = append(p.Tags, tag)
		}
	}
	return errors.Wrap(rows.Err(), "iterate tags")
}

// ParseTags splits a comma separated form value into trimmed, distinct tags.
// A slash would split the tag route, so it becomes a dash.
func ParseTags(s string) []string {
	var tags []string
	seen := map[string]bool{}
	for _, t := range strings.Split(s, ",") {
		t = strings.ReplaceAll(strings.TrimSpace(t), "/", "-")
		if t != "" && !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	return tags
}
