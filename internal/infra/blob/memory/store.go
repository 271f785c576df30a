// Package memory implements an in-memory blob Store for tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"viewcore/internal/blob/core"
)

type blobEntry struct {
	obj  core.Object
	data []byte
}

// Store implements core.Store backed by process memory.
type Store struct {
	mu   sync.RWMutex
	objs map[string]blobEntry
	now  func() time.Time
}

// New returns an in-memory blob store.
func New() *Store {
	return &Store{objs: make(map[string]blobEntry), now: func() time.Time { return time.Now().UTC() }}
}

// Driver returns the blob driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

func (s *Store) Put(_ context.Context, key string, data []byte, metadata map[string]string) (core.Object, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return core.Object{}, err
	}
	obj := core.Object{Key: k, Size: int64(len(data)), Metadata: core.CloneMetadata(metadata), LastModified: s.now()}
	s.mu.Lock()
	s.objs[k] = blobEntry{obj: obj, data: append([]byte(nil), data...)}
	s.mu.Unlock()
	return copyObject(obj), nil
}

func (s *Store) Get(_ context.Context, key string) (core.Object, []byte, error) {
	s.mu.RLock()
	e, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return core.Object{}, nil, core.ErrNotFound
	}
	return copyObject(e.obj), append([]byte(nil), e.data...), nil
}

func (s *Store) Head(_ context.Context, key string) (core.Object, error) {
	s.mu.RLock()
	e, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return core.Object{}, core.ErrNotFound
	}
	return copyObject(e.obj), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objs[key]
	delete(s.objs, key)
	return ok, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Object, 0, len(s.objs))
	for k, e := range s.objs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, copyObject(e.obj))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func copyObject(o core.Object) core.Object {
	o.Metadata = core.CloneMetadata(o.Metadata)
	return o
}
