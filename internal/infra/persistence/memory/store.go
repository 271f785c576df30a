// Package memory keeps saved views in process memory. It is the default for
// tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"viewcore/pkg/domain"
)

var _ domain.StateStore = (*Store)(nil)

// Store is a mutex-guarded map of saved views. When MaxPerView is positive
// the oldest views of a view id are evicted beyond that count.
type Store struct {
	mu         sync.RWMutex
	views      map[string]domain.SavedView
	order      map[string][]string // view id -> keys, oldest first
	maxPerView int
}

// NewStore returns an empty store keeping at most maxPerView saved views per
// view id; zero keeps every view.
func NewStore(maxPerView int) *Store {
	return &Store{
		views:      make(map[string]domain.SavedView),
		order:      make(map[string][]string),
		maxPerView: maxPerView,
	}
}

func clone(v domain.SavedView) domain.SavedView {
	v.Payload = append([]byte(nil), v.Payload...)
	return v
}

func (s *Store) Put(_ context.Context, view domain.SavedView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.views[view.Key]; ok {
		s.unlink(prev.ViewID, prev.Key)
	}
	s.views[view.Key] = clone(view)
	s.order[view.ViewID] = append(s.order[view.ViewID], view.Key)
	if s.maxPerView > 0 {
		for keys := s.order[view.ViewID]; len(keys) > s.maxPerView; keys = s.order[view.ViewID] {
			oldest := keys[0]
			delete(s.views, oldest)
			s.order[view.ViewID] = keys[1:]
		}
	}
	return nil
}

func (s *Store) Get(_ context.Context, key string) (domain.SavedView, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[key]
	if !ok {
		return domain.SavedView{}, false, nil
	}
	return clone(v), true, nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[key]
	if !ok {
		return false, nil
	}
	delete(s.views, key)
	s.unlink(v.ViewID, key)
	return true, nil
}

func (s *Store) List(_ context.Context, viewID string) ([]domain.SavedView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SavedView, 0, len(s.views))
	for _, v := range s.views {
		if viewID == "" || v.ViewID == viewID {
			out = append(out, clone(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) Prune(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, v := range s.views {
		if v.CreatedAt.Before(cutoff) {
			delete(s.views, key)
			s.unlink(v.ViewID, key)
			n++
		}
	}
	return n, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) unlink(viewID, key string) {
	keys := s.order[viewID]
	for i, k := range keys {
		if k == key {
			s.order[viewID] = append(keys[:i:i], keys[i+1:]...)
			break
		}
	}
	if len(s.order[viewID]) == 0 {
		delete(s.order, viewID)
	}
}
