package core

import (
	"context"
	"fmt"

	"viewcore/internal/blob"
	"viewcore/internal/infra/persistence/blobstate"
	"viewcore/internal/infra/persistence/bolt"
	"viewcore/internal/infra/persistence/memory"
	"viewcore/internal/infra/persistence/postgres"
	"viewcore/internal/infra/persistence/sqlite"
	"viewcore/pkg/domain"
)

// StorageDriver identifies a saved-view store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-process, lost on restart
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBolt     StorageDriver = "bolt"     // embedded bbolt file
	StorageBlob     StorageDriver = "blob"     // filesystem or S3 objects
)

// StoreConfig selects and configures the server-side state store.
type StoreConfig struct {
	Driver      StorageDriver `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
	BoltPath    string        `yaml:"bolt_path"`
	// MaxViews caps saved views per view id in the memory store; zero is unbounded.
	MaxViews   int         `yaml:"max_views"`
	BlobPrefix string      `yaml:"blob_prefix"`
	Blob       blob.Config `yaml:"blob"`
}

// OpenStateStore returns the store named by cfg.Driver. An empty driver
// selects memory.
func OpenStateStore(ctx context.Context, cfg StoreConfig) (domain.StateStore, error) {
	switch cfg.Driver {
	case "", StorageMemory:
		return memory.NewStore(cfg.MaxViews), nil
	case StorageSQLite:
		return sqlite.NewStore(ctx, cfg.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	case StorageBolt:
		return bolt.NewStore(cfg.BoltPath)
	case StorageBlob:
		blobs, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return nil, err
		}
		return blobstate.New(blobs, cfg.BlobPrefix), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
