package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	src := "package x\n\nimport (\n\t\"fmt\"\n\t\"viewcore/internal/core\"\n\t\"github.com/google/go-cmp/cmp\"\n)\n"
	if err := os.WriteFile(filepath.Join(dir, "x.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), []byte("package x\n\nimport \"viewcore/internal/codec\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := DirectImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "viewcore/internal/core (in x.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}
	viols, err = DirectImportViolations(dir, NonStdlibImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "github.com/google/go-cmp/cmp (in x.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}
}

func TestDirectImportViolationsMissingDir(t *testing.T) {
	if _, err := DirectImportViolations(filepath.Join(t.TempDir(), "missing"), InternalImportForbidden); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
