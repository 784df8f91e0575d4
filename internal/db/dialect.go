package db

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Dialect covers the SQL differences between the supported engines.
type Dialect interface {
	// Driver is the database/sql driver name.
	Driver() string
	// Placeholder returns the bind parameter for the 1-based index.
	Placeholder(index int) string
	// UseReturning reports whether INSERT returns the new id via RETURNING
	// rather than LastInsertId.
	UseReturning() bool
	Schema() []string
}

var (
	SQLite     Dialect = sqliteDialect{}
	PostgreSQL Dialect = postgresDialect{}
	MySQL      Dialect = mysqlDialect{}
)

// DialectFor maps a configured driver name to its Dialect.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return PostgreSQL, nil
	case "mysql", "mariadb":
		return MySQL, nil
	}
	return nil, errors.Errorf("unknown database driver %q", name)
}

// rebind converts ? placeholders to the dialect's form.
func rebind(d Dialect, query string) string {
	if d.Placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	idx := 1
	for i := range len(query) {
		if query[i] == '?' {
			b.WriteString(d.Placeholder(idx))
			idx++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

// placeholders returns "?, ?, ?" for n values.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type sqliteDialect struct{}

func (sqliteDialect) Driver() string           { return "sqlite" }
func (sqliteDialect) Placeholder(_ int) string { return "?" }
func (sqliteDialect) UseReturning() bool       { return false }
func (sqliteDialect) Schema() []string {
	return []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions(
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS posts(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			slug TEXT NOT NULL,
			published_at DATETIME NOT NULL,
			deleted_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS posts_slug ON posts(slug);`,
		`CREATE TABLE IF NOT EXISTS post_tags(
			post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			tag TEXT NOT NULL,
			PRIMARY KEY(post_id, tag)
		);`,
	}
}

type postgresDialect struct{}

func (postgresDialect) Driver() string               { return "pgx" }
func (postgresDialect) Placeholder(index int) string { return fmt.Sprintf("$%d", index) }
func (postgresDialect) UseReturning() bool           { return true }
func (postgresDialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users(
			id BIGSERIAL PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions(
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS posts(
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			slug TEXT NOT NULL,
			published_at TIMESTAMPTZ NOT NULL,
			deleted_at TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS posts_slug ON posts(slug);`,
		`CREATE TABLE IF NOT EXISTS post_tags(
			post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			tag TEXT NOT NULL,
			PRIMARY KEY(post_id, tag)
		);`,
	}
}

type mysqlDialect struct{}

func (mysqlDialect) Driver() string           { return "mysql" }
func (mysqlDialect) Placeholder(_ int) string { return "?" }
func (mysqlDialect) UseReturning() bool       { return false }
func (mysqlDialect) Schema() []string {
	return []string{
		"CREATE TABLE IF NOT EXISTS users(" +
			"id BIGINT AUTO_INCREMENT PRIMARY KEY," +
			"email VARCHAR(255) UNIQUE NOT NULL," +
			"password_hash VARCHAR(255) NOT NULL," +
			"created_at DATETIME NOT NULL)",
		"CREATE TABLE IF NOT EXISTS sessions(" +
			"id VARCHAR(64) PRIMARY KEY," +
			"user_id BIGINT NOT NULL," +
			"expires_at DATETIME NOT NULL," +
			"FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE)",
		"CREATE TABLE IF NOT EXISTS posts(" +
			"id BIGINT AUTO_INCREMENT PRIMARY KEY," +
			"user_id BIGINT NOT NULL," +
			"title VARCHAR(255) NOT NULL," +
			"content MEDIUMTEXT NOT NULL," +
			"slug VARCHAR(255) NOT NULL," +
			"published_at DATETIME NOT NULL," +
			"deleted_at DATETIME NULL," +
			"INDEX posts_slug (slug)," +
			"FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE)",
		"CREATE TABLE IF NOT EXISTS post_tags(" +
			"post_id BIGINT NOT NULL," +
			"tag VARCHAR(100) NOT NULL," +
			"PRIMARY KEY(post_id, tag)," +
			"FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE)",
	}
}
