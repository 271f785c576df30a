// Package state implements incremental state saving for component trees.
//
// A Helper keeps the live value of every key in its full-state map. Once the
// owner establishes a baseline with MarkInitialState, every subsequent write is
// also recorded in a delta map and every removal in a deleted-key set, so that
// SaveState only has to emit what changed since the baseline. Restoring a
// delta onto a freshly built graph that has reached the same baseline
// reproduces the saved state.
package state

import "fmt"

// HelperKind is the registered kind of nested Helper values.
const HelperKind = "helper"

// Holder is implemented by objects that take part in incremental state
// saving. Helpers are Holders themselves and may be nested as values.
type Holder interface {
	MarkInitialState()
	InitialStateMarked() bool
	ClearInitialState()
	SaveState() (any, error)
	RestoreState(snapshot any) error
}

// Helper is the state map of one stateful object.
type Helper struct {
	full    orderedMap
	delta   orderedMap
	deleted []string
	marked  bool
}

var _ Kinded = (*Helper)(nil)

// NewHelper returns an empty helper without a baseline.
func NewHelper() *Helper {
	return &Helper{}
}

// StateKind implements Kinded.
func (h *Helper) StateKind() string { return HelperKind }

// Get returns the live value stored under key, or nil.
func (h *Helper) Get(key string) any {
	v, _ := h.full.get(key)
	return v
}

// Lookup returns the live value stored under key and whether it is present.
func (h *Helper) Lookup(key string) (any, bool) {
	return h.full.get(key)
}

// Keys returns the live keys in insertion order.
func (h *Helper) Keys() []string {
	return append([]string(nil), h.full.keys...)
}

// Len returns the number of live keys.
func (h *Helper) Len() int { return len(h.full.keys) }

// Put stores value under key and returns the previous live value.
func (h *Helper) Put(key string, value any) any {
	if h.marked {
		h.delta.set(key, value)
		h.undelete(key)
	}
	prev, _ := h.full.set(key, value)
	return prev
}

// Remove deletes key and returns the previous live value. After the baseline
// the removal is remembered so that a delta can replay it.
func (h *Helper) Remove(key string) any {
	prev, existed := h.full.del(key)
	if h.marked {
		_, inDelta := h.delta.del(key)
		if existed || inDelta {
			h.markDeleted(key)
		}
	}
	return prev
}

// MarkInitialState establishes the baseline for the helper and every nested
// holder it contains. Changes made afterwards are tracked as a delta.
func (h *Helper) MarkInitialState() {
	h.marked = true
	h.delta.clear()
	h.deleted = nil
	for _, k := range h.full.keys {
		if holder, ok := h.full.vals[k].(Holder); ok {
			holder.MarkInitialState()
		}
	}
}

// InitialStateMarked reports whether a baseline has been established.
func (h *Helper) InitialStateMarked() bool { return h.marked }

// ClearInitialState drops the baseline; the next SaveState emits full state.
func (h *Helper) ClearInitialState() {
	h.marked = false
	h.delta.clear()
	h.deleted = nil
	for _, k := range h.full.keys {
		if holder, ok := h.full.vals[k].(Holder); ok {
			holder.ClearInitialState()
		}
	}
}

// SaveState returns nil when there is nothing to persist, a *Full before the
// baseline and a *Delta after it.
func (h *Helper) SaveState() (any, error) {
	if !h.marked {
		if len(h.full.keys) == 0 {
			return nil, nil
		}
		entries := make([]Entry, 0, len(h.full.keys))
		for _, k := range h.full.keys {
			v, err := saveValue(h.full.vals[k])
			if err != nil {
				return nil, fmt.Errorf("save %q: %w", k, err)
			}
			entries = append(entries, Entry{Key: k, Value: v})
		}
		return &Full{Entries: entries}, nil
	}

	var entries []Entry
	for _, k := range h.delta.keys {
		v, err := saveValue(h.delta.vals[k])
		if err != nil {
			return nil, fmt.Errorf("save %q: %w", k, err)
		}
		entries = append(entries, Entry{Key: k, Value: v})
	}
	// Holders whose reference did not change may still carry changes of their own.
	for _, k := range h.full.keys {
		if _, inDelta := h.delta.vals[k]; inDelta {
			continue
		}
		holder, ok := h.full.vals[k].(Holder)
		if !ok {
			continue
		}
		s, err := holder.SaveState()
		if err != nil {
			return nil, fmt.Errorf("save %q: %w", k, err)
		}
		if s == nil {
			continue
		}
		kind, err := kindOf(holder)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: k, Value: &Nested{Kind: kind, State: s}})
	}
	if len(entries) == 0 && len(h.deleted) == 0 {
		return nil, nil
	}
	return &Delta{Entries: entries, Deleted: append([]string(nil), h.deleted...)}, nil
}

// RestoreState merges a snapshot produced by SaveState into the helper.
func (h *Helper) RestoreState(snapshot any) error {
	switch s := snapshot.(type) {
	case nil:
		return nil
	case *Full:
		if !h.marked {
			h.full.clear()
		}
		for _, e := range s.Entries {
			if err := h.restoreEntry(e); err != nil {
				return err
			}
		}
		return nil
	case *Delta:
		for _, e := range s.Entries {
			if err := h.restoreEntry(e); err != nil {
				return err
			}
		}
		for _, k := range s.Deleted {
			h.Remove(k)
		}
		return nil
	default:
		return NewShapeError("state.Helper", snapshot)
	}
}

func (h *Helper) restoreEntry(e Entry) error {
	n, ok := e.Value.(*Nested)
	if !ok {
		h.Put(e.Key, e.Value)
		return nil
	}
	if cur, ok := h.full.vals[e.Key].(Holder); ok {
		if err := cur.RestoreState(n.State); err != nil {
			return fmt.Errorf("restore %q: %w", e.Key, err)
		}
		return nil
	}
	holder, err := newHolder(n.Kind)
	if err != nil {
		return fmt.Errorf("restore %q: %w", e.Key, err)
	}
	if err := holder.RestoreState(n.State); err != nil {
		return fmt.Errorf("restore %q: %w", e.Key, err)
	}
	h.Put(e.Key, holder)
	return nil
}

func (h *Helper) markDeleted(key string) {
	for _, k := range h.deleted {
		if k == key {
			return
		}
	}
	h.deleted = append(h.deleted, key)
}

func (h *Helper) undelete(key string) {
	for i, k := range h.deleted {
		if k == key {
			h.deleted = append(h.deleted[:i], h.deleted[i+1:]...)
			return
		}
	}
}

func saveValue(v any) (any, error) {
	holder, ok := v.(Holder)
	if !ok {
		return v, nil
	}
	kind, err := kindOf(holder)
	if err != nil {
		return nil, err
	}
	s, err := holder.SaveState()
	if err != nil {
		return nil, err
	}
	return &Nested{Kind: kind, State: s}, nil
}

// orderedMap is a string-keyed map that remembers insertion order.
type orderedMap struct {
	keys []string
	vals map[string]any
}

func (m *orderedMap) get(k string) (any, bool) {
	v, ok := m.vals[k]
	return v, ok
}

func (m *orderedMap) set(k string, v any) (any, bool) {
	if m.vals == nil {
		m.vals = make(map[string]any)
	}
	prev, existed := m.vals[k]
	if !existed {
		m.keys = append(m.keys, k)
	}
	m.vals[k] = v
	return prev, existed
}

func (m *orderedMap) del(k string) (any, bool) {
	prev, existed := m.vals[k]
	if !existed {
		return nil, false
	}
	delete(m.vals, k)
	for i, key := range m.keys {
		if key == k {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return prev, true
}

func (m *orderedMap) clear() {
	m.keys = nil
	m.vals = nil
}
