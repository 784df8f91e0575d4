// Package db is the database variant's storage: posts, tags and users kept
// in SQLite, PostgreSQL or MySQL behind database/sql.
package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"blog/internal/models"
)

var (
	ErrNotFound  = models.ErrNotFound
	ErrForbidden = errors.New("not the post owner")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type DB struct {
	raw *sql.DB
	d   Dialect
}

// Open connects with the named driver and checks the connection.
func Open(driver, dsn string) (*DB, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	raw, err := sql.Open(d.Driver(), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if d == SQLite {
		// one connection keeps PRAGMAs and in-memory databases alive
		raw.SetMaxOpenConns(1)
	}
	if err := raw.Ping(); err != nil {
		_ = raw.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return &DB{raw: raw, d: d}, nil
}

func (db *DB) Dialect() Dialect { return db.d }

// SQL exposes the pool for packages that share it, such as the session store.
func (db *DB) SQL() *sql.DB { return db.raw }

func (db *DB) Close() error { return db.raw.Close() }

// Rebind rewrites ? placeholders for the connected engine.
func (db *DB) Rebind(query string) string { return rebind(db.d, query) }

func (db *DB) Migrate(ctx context.Context) error {
	for _, s := range db.d.Schema() {
		if _, err := db.raw.ExecContext(ctx, s); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}

// transaction runs fn inside a transaction, rolling back on error or panic.
func (db *DB) transaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.raw.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// insert runs an INSERT and returns the generated id.
func (db *DB) insert(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	query = db.Rebind(query)
	if db.d.UseReturning() {
		var id int64
		err := q.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type clockKey struct{}

// WithClock returns a context whose writes are stamped by c instead of time.Now.
func WithClock(ctx context.Context, c Clock) context.Context {
	return context.WithValue(ctx, clockKey{}, c)
}

// now is second precision UTC so every engine stores and orders the same value.
func now(ctx context.Context) time.Time {
	t := time.Now()
	if c, ok := ctx.Value(clockKey{}).(Clock); ok {
		t = c.Now()
	}
	return t.UTC().Truncate(time.Second)
}
