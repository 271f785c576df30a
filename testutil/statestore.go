package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"viewcore/pkg/domain"
)

// RunStateStoreSuite exercises the domain.StateStore contract against store.
// The store must start empty.
func RunStateStoreSuite(t *testing.T, store domain.StateStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	views := []domain.SavedView{
		{Key: "01A", ViewID: "orders", Payload: []byte{1, 2, 3}, CreatedAt: base},
		{Key: "01B", ViewID: "orders", Payload: []byte{4}, CreatedAt: base.Add(time.Minute)},
		{Key: "01C", ViewID: "login", Payload: []byte("state"), CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, v := range views {
		if err := store.Put(ctx, v); err != nil {
			t.Fatalf("put %s: %v", v.Key, err)
		}
	}

	got, ok, err := store.Get(ctx, "01A")
	if err != nil || !ok {
		t.Fatalf("get 01A: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(views[0], got, timeEqual); diff != "" {
		t.Fatalf("get mismatch (-want +got):\n%s", diff)
	}
	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("get missing: ok=%v err=%v", ok, err)
	}

	orders, err := store.List(ctx, "orders")
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if diff := cmp.Diff([]string{"01A", "01B"}, keysOf(orders)); diff != "" {
		t.Fatalf("list orders (-want +got):\n%s", diff)
	}
	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if diff := cmp.Diff([]string{"01A", "01B", "01C"}, keysOf(all)); diff != "" {
		t.Fatalf("list all (-want +got):\n%s", diff)
	}

	replaced := domain.SavedView{Key: "01B", ViewID: "orders", Payload: []byte{9, 9}, CreatedAt: base.Add(time.Minute)}
	if err := store.Put(ctx, replaced); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _, _ = store.Get(ctx, "01B")
	if diff := cmp.Diff(replaced.Payload, got.Payload); diff != "" {
		t.Fatalf("overwrite payload (-want +got):\n%s", diff)
	}

	deleted, err := store.Delete(ctx, "01C")
	if err != nil || !deleted {
		t.Fatalf("delete 01C: deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.Delete(ctx, "01C")
	if err != nil || deleted {
		t.Fatalf("second delete 01C: deleted=%v err=%v", deleted, err)
	}

	n, err := store.Prune(ctx, base.Add(30*time.Second))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("prune removed %d views, want 1", n)
	}
	left, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list after prune: %v", err)
	}
	if diff := cmp.Diff([]string{"01B"}, keysOf(left)); diff != "" {
		t.Fatalf("after prune (-want +got):\n%s", diff)
	}
}

var timeEqual = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

func keysOf(views []domain.SavedView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.Key)
	}
	return out
}
