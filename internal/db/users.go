package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"blog/internal/models"
)

var ErrDuplicateEmail = errors.New("email already registered")

type UserStore struct {
	db *DB
}

func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// Create stores a user whose password is already hashed.
func (s *UserStore) Create(ctx context.Context, email, passwordHash string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.ByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	u := &models.User{Email: email, PasswordHash: passwordHash, CreatedAt: now(ctx)}
	id, err := s.db.insert(ctx, s.db.raw,
		`INSERT INTO users(email, password_hash, created_at) VALUES(?, ?, ?)`,
		u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert user")
	}
	u.ID = id
	return u, nil
}

func (s *UserStore) ByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.one(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
}

func (s *UserStore) ByID(ctx context.Context, id int64) (*models.User, error) {
	return s.one(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (s *UserStore) one(ctx context.Context, query string, args ...any) (*models.User, error) {
	var u models.User
	err := s.db.raw.QueryRowContext(ctx, s.db.Rebind(query), args...).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "query user")
	}
	return &u, nil
}
