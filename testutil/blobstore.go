package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"viewcore/internal/blob/core"
)

// RunBlobStoreSuite exercises the core.Store contract. The store must start empty.
func RunBlobStoreSuite(t *testing.T, store core.Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Put(ctx, "views/01A", []byte("alpha"), map[string]string{"view-id": "orders"}); err != nil {
		t.Fatalf("put 01A: %v", err)
	}
	if _, err := store.Put(ctx, "views/01B", []byte("beta"), nil); err != nil {
		t.Fatalf("put 01B: %v", err)
	}
	if _, err := store.Put(ctx, "other/x", []byte("x"), nil); err != nil {
		t.Fatalf("put other: %v", err)
	}

	obj, data, err := store.Get(ctx, "views/01A")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "alpha" || obj.Key != "views/01A" {
		t.Fatalf("unexpected get %+v %q", obj, data)
	}
	if v, _ := core.MetadataValue(obj.Metadata, "view-id"); v != "orders" {
		t.Fatalf("metadata lost: %v", obj.Metadata)
	}
	head, err := store.Head(ctx, "views/01A")
	if err != nil || head.Size != 5 {
		t.Fatalf("head: %+v err=%v", head, err)
	}

	if _, err := store.Put(ctx, "views/01A", []byte("alpha-2"), map[string]string{"view-id": "orders"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if _, data, _ := store.Get(ctx, "views/01A"); string(data) != "alpha-2" {
		t.Fatalf("overwrite not visible: %q", data)
	}

	if _, _, err := store.Get(ctx, "views/missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get, got %v", err)
	}
	if _, err := store.Head(ctx, "views/missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Head, got %v", err)
	}

	listed, err := store.List(ctx, "views/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	keys := make([]string, 0, len(listed))
	for _, o := range listed {
		keys = append(keys, o.Key)
	}
	if diff := cmp.Diff([]string{"views/01A", "views/01B"}, keys); diff != "" {
		t.Fatalf("list (-want +got):\n%s", diff)
	}

	existed, err := store.Delete(ctx, "views/01B")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	existed, err = store.Delete(ctx, "views/01B")
	if err != nil || existed {
		t.Fatalf("second delete: existed=%v err=%v", existed, err)
	}

	if _, err := store.Put(ctx, "../escape", []byte("x"), nil); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
