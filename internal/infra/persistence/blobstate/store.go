// Package blobstate stores saved views as blobs, one object per state key.
// The view id and creation time travel as object metadata.
package blobstate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"viewcore/internal/blob"
	"viewcore/internal/blob/core"
	"viewcore/pkg/domain"
)

var _ domain.StateStore = (*Store)(nil)

const (
	// DefaultPrefix namespaces state objects inside a shared bucket.
	DefaultPrefix = "viewstate/"

	metaViewID    = "view-id"
	metaCreatedAt = "created-at"
)

// Store adapts a blob.Store to domain.StateStore.
type Store struct {
	blobs  blob.Store
	prefix string
}

// New wraps blobs. An empty prefix uses DefaultPrefix.
func New(blobs blob.Store, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{blobs: blobs, prefix: prefix}
}

func (s *Store) Put(ctx context.Context, v domain.SavedView) error {
	md := map[string]string{
		metaViewID:    v.ViewID,
		metaCreatedAt: strconv.FormatInt(v.CreatedAt.UnixNano(), 10),
	}
	if _, err := s.blobs.Put(ctx, s.prefix+v.Key, v.Payload, md); err != nil {
		return fmt.Errorf("blobstate: put %s: %w", v.Key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (domain.SavedView, bool, error) {
	obj, data, err := s.blobs.Get(ctx, s.prefix+key)
	if errors.Is(err, core.ErrNotFound) {
		return domain.SavedView{}, false, nil
	}
	if err != nil {
		return domain.SavedView{}, false, fmt.Errorf("blobstate: get %s: %w", key, err)
	}
	v, err := s.fromObject(obj)
	if err != nil {
		return domain.SavedView{}, false, err
	}
	v.Payload = data
	return v, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	return s.blobs.Delete(ctx, s.prefix+key)
}

// List returns views in key order. Backends whose listings omit metadata
// cost one Head per object.
func (s *Store) List(ctx context.Context, viewID string) ([]domain.SavedView, error) {
	objs, err := s.objects(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.SavedView
	for _, obj := range objs {
		v, err := s.fromObject(obj)
		if err != nil {
			return nil, err
		}
		if viewID != "" && v.ViewID != viewID {
			continue
		}
		_, data, err := s.blobs.Get(ctx, obj.Key)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		v.Payload = data
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	objs, err := s.objects(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, obj := range objs {
		v, err := s.fromObject(obj)
		if err != nil {
			return n, err
		}
		if !v.CreatedAt.Before(cutoff) {
			continue
		}
		removed, err := s.blobs.Delete(ctx, obj.Key)
		if err != nil {
			return n, err
		}
		if removed {
			n++
		}
	}
	return n, nil
}

func (s *Store) Close() error { return nil }

// objects lists the prefix and fills in metadata where the listing lacks it.
func (s *Store) objects(ctx context.Context) ([]core.Object, error) {
	objs, err := s.blobs.List(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("blobstate: list: %w", err)
	}
	out := objs[:0]
	for _, obj := range objs {
		if obj.Metadata == nil {
			head, err := s.blobs.Head(ctx, obj.Key)
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			obj.Metadata = head.Metadata
		}
		out = append(out, obj)
	}
	return out, nil
}

func (s *Store) fromObject(obj core.Object) (domain.SavedView, error) {
	v := domain.SavedView{Key: strings.TrimPrefix(obj.Key, s.prefix)}
	v.ViewID, _ = core.MetadataValue(obj.Metadata, metaViewID)
	raw, ok := core.MetadataValue(obj.Metadata, metaCreatedAt)
	if !ok {
		return domain.SavedView{}, fmt.Errorf("blobstate: %s missing %s metadata", obj.Key, metaCreatedAt)
	}
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return domain.SavedView{}, fmt.Errorf("blobstate: %s bad %s: %w", obj.Key, metaCreatedAt, err)
	}
	v.CreatedAt = time.Unix(0, nanos).UTC()
	return v, nil
}
