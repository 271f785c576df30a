// Package sqlstate implements domain.StateStore over database/sql. The
// sqlite and postgres packages supply the driver and the dialect.
package sqlstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"viewcore/pkg/domain"
)

var _ domain.StateStore = (*Store)(nil)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name        string
	BlobType    string
	Placeholder func(n int) string
}

// SQLite uses ? placeholders and BLOB payloads.
var SQLite = Dialect{Name: "sqlite", BlobType: "BLOB", Placeholder: func(int) string { return "?" }}

// Postgres uses $n placeholders and BYTEA payloads.
var Postgres = Dialect{Name: "postgres", BlobType: "BYTEA", Placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}

// Schema returns the statements creating the saved_views table.
func (d Dialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS saved_views (
	key TEXT PRIMARY KEY,
	view_id TEXT NOT NULL,
	payload ` + d.BlobType + ` NOT NULL,
	created_at BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS saved_views_view_id ON saved_views (view_id)`,
	}
}

// bind replaces each ? in q with the dialect's numbered placeholder.
func (d Dialect) bind(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store keeps saved views in a single table. created_at holds Unix
// nanoseconds so both dialects round-trip it identically.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New ensures the schema exists and returns a store over db.
func New(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	for _, stmt := range d.Schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%s: create schema: %w", d.Name, err)
		}
	}
	return &Store{db: db, dialect: d}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Put(ctx context.Context, v domain.SavedView) error {
	q := s.dialect.bind(`INSERT INTO saved_views (key, view_id, payload, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT (key) DO UPDATE SET view_id = excluded.view_id, payload = excluded.payload, created_at = excluded.created_at`)
	payload := v.Payload
	if payload == nil {
		payload = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, q, v.Key, v.ViewID, payload, v.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("%s: put %s: %w", s.dialect.Name, v.Key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (domain.SavedView, bool, error) {
	q := s.dialect.bind(`SELECT view_id, payload, created_at FROM saved_views WHERE key = ?`)
	v := domain.SavedView{Key: key}
	var created int64
	err := s.db.QueryRowContext(ctx, q, key).Scan(&v.ViewID, &v.Payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SavedView{}, false, nil
	}
	if err != nil {
		return domain.SavedView{}, false, fmt.Errorf("%s: get %s: %w", s.dialect.Name, key, err)
	}
	v.CreatedAt = time.Unix(0, created).UTC()
	return v, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.bind(`DELETE FROM saved_views WHERE key = ?`), key)
	if err != nil {
		return false, fmt.Errorf("%s: delete %s: %w", s.dialect.Name, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) List(ctx context.Context, viewID string) ([]domain.SavedView, error) {
	q := `SELECT key, view_id, payload, created_at FROM saved_views`
	var args []any
	if viewID != "" {
		q += ` WHERE view_id = ?`
		args = append(args, viewID)
	}
	q += ` ORDER BY key`
	rows, err := s.db.QueryContext(ctx, s.dialect.bind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: list: %w", s.dialect.Name, err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.SavedView
	for rows.Next() {
		var v domain.SavedView
		var created int64
		if err := rows.Scan(&v.Key, &v.ViewID, &v.Payload, &created); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", s.dialect.Name, err)
		}
		v.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.bind(`DELETE FROM saved_views WHERE created_at < ?`), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("%s: prune: %w", s.dialect.Name, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) Close() error { return s.db.Close() }
