// Package bolt stores saved views in a single bbolt file.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"viewcore/pkg/domain"
)

var _ domain.StateStore = (*Store)(nil)

const bucketViews = "views"

// DefaultPath is used when no path is configured.
const DefaultPath = "viewcore.bolt"

type record struct {
	ViewID    string `json:"view_id"`
	Payload   []byte `json:"payload"`
	CreatedAt int64  `json:"created_at"`
}

// Store keeps one bucket keyed by state key. Cursor order is key order,
// which List relies on.
type Store struct {
	db *bolt.DB
}

// NewStore opens or creates the bbolt file at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketViews))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize views bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.db.Path() }

func (s *Store) Put(_ context.Context, v domain.SavedView) error {
	data, err := json.Marshal(record{ViewID: v.ViewID, Payload: v.Payload, CreatedAt: v.CreatedAt.UnixNano()})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketViews)).Put([]byte(v.Key), data)
	})
}

func (s *Store) Get(_ context.Context, key string) (domain.SavedView, bool, error) {
	var (
		out   domain.SavedView
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketViews)).Get([]byte(key))
		if data == nil {
			return nil
		}
		v, err := decode(key, data)
		if err != nil {
			return err
		}
		out, found = v, true
		return nil
	})
	return out, found, err
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketViews))
		if b.Get([]byte(key)) == nil {
			return nil
		}
		existed = true
		return b.Delete([]byte(key))
	})
	return existed, err
}

func (s *Store) List(_ context.Context, viewID string) ([]domain.SavedView, error) {
	var out []domain.SavedView
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketViews)).Cursor()
		for k, data := c.First(); k != nil; k, data = c.Next() {
			v, err := decode(string(k), data)
			if err != nil {
				return err
			}
			if viewID != "" && v.ViewID != viewID {
				continue
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

func (s *Store) Prune(_ context.Context, cutoff time.Time) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketViews))
		var stale [][]byte
		c := b.Cursor()
		for k, data := c.First(); k != nil; k, data = c.Next() {
			var r record
			if err := json.Unmarshal(data, &r); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			if r.CreatedAt < cutoff.UnixNano() {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	return n, err
}

func (s *Store) Close() error { return s.db.Close() }

func decode(key string, data []byte) (domain.SavedView, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.SavedView{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return domain.SavedView{Key: key, ViewID: r.ViewID, Payload: r.Payload, CreatedAt: time.Unix(0, r.CreatedAt).UTC()}, nil
}
