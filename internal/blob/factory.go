// Package blob selects a blob storage backend. Callers depend on the Store
// interface re-exported here; only this package imports the infra backends.
package blob

import (
	"context"
	"fmt"

	"viewcore/internal/blob/core"
	"viewcore/internal/infra/blob/fs"
	"viewcore/internal/infra/blob/memory"
	infraS3 "viewcore/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// Object describes stored blob metadata.
	Object = core.Object
	// Store is the interface for blob storage backends.
	Store = core.Store
	// S3Config configures the S3 driver.
	S3Config = infraS3.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// ErrNotFound is returned for absent keys.
var ErrNotFound = core.ErrNotFound

// Config selects and configures a backend.
type Config struct {
	Driver Driver   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// Open returns the configured Store. An empty driver means the filesystem.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return infraS3.New(ctx, cfg.S3)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewMemory returns an in-memory Store for tests.
func NewMemory() Store { return memory.New() }

// NewMockS3 returns an S3 Store backed by an in-process fake transport.
func NewMockS3() Store { return infraS3.NewMock(0) }
