// Package sqlite stores saved views in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"viewcore/internal/infra/persistence/sqlstate"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "viewcore.db"

// Store is a sqlstate.Store over a SQLite file.
type Store struct {
	*sqlstate.Store
	path string
}

// NewStore opens or creates the database at path. ":memory:" keeps it in
// memory for the lifetime of the store.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	st, err := sqlstate.New(ctx, db, sqlstate.SQLite)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: st, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }
