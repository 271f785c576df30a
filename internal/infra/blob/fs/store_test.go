package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"viewcore/internal/blob/core"
	"viewcore/testutil"
)

func TestStoreContract(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	testutil.RunBlobStoreSuite(t, s)
}

func TestStoreLayout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Put(ctx, "views/a/b", []byte("x"), map[string]string{"m": "1"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "views", "a", "b")); err != nil {
		t.Fatalf("expected data file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "views", "a", "b.meta")); err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "views", "a"))
	if len(entries) != 2 {
		t.Fatalf("expected temp files cleaned up, got %d entries", len(entries))
	}
	if _, err := s.Put(ctx, "x.meta", []byte("x"), nil); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected reserved suffix rejected, got %v", err)
	}
	if s.Root() != root || s.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected root/driver %s %s", s.Root(), s.Driver())
	}
}

func TestStoreCorruptSidecar(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, _ := New(root)
	if _, err := s.Put(ctx, "k", []byte("x"), nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "k.meta"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.Head(ctx, "k"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, err := s.List(ctx, ""); err == nil {
		t.Fatalf("expected list to surface decode error")
	}
}
