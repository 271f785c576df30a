package memory

import (
	"context"
	"testing"

	"viewcore/internal/blob/core"
	"viewcore/testutil"
)

func TestStoreContract(t *testing.T) {
	testutil.RunBlobStoreSuite(t, New())
}

func TestStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	s := New()
	data := []byte("abc")
	md := map[string]string{"k": "v"}
	if _, err := s.Put(ctx, "a", data, md); err != nil {
		t.Fatalf("put: %v", err)
	}
	data[0] = 'z'
	md["k"] = "changed"
	obj, got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "abc" || obj.Metadata["k"] != "v" {
		t.Fatalf("store aliased caller data: %q %v", got, obj.Metadata)
	}
	if s.Driver() != core.DriverMemory {
		t.Fatalf("driver = %s", s.Driver())
	}
}
