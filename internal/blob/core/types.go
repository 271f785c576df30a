// Package core defines the blob storage abstraction shared by the
// backends under internal/infra/blob.
package core

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem represents the local filesystem implementation.
	DriverFilesystem Driver = "fs"
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3"
	// DriverMemory represents an in-memory implementation typically used in tests.
	DriverMemory Driver = "memory"
)

// Object describes a stored blob. Metadata may be nil when a backend's
// listing does not carry it; Head always fills it.
type Object struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is a flat key/value blob namespace.
type Store interface {
	// Put writes data at key, replacing any existing blob.
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) (Object, error)
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) (Object, []byte, error)
	Head(ctx context.Context, key string) (Object, error)
	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns blobs under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Object, error)
	Driver() Driver
}

// ErrNotFound is returned by Get and Head for absent keys.
var ErrNotFound = errors.New("blob: not found")

// ErrInvalidKey wraps rejected keys.
var ErrInvalidKey = errors.New("blob: invalid key")

// CleanKey rejects empty, absolute and escaping keys and returns the
// slash-normalized form.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: absolute %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: traversal %q", ErrInvalidKey, key)
		}
	}
	return path.Clean(key), nil
}

// CloneMetadata copies md; nil stays nil.
func CloneMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// MetadataValue looks a key up case-insensitively. S3 canonicalizes user
// metadata names on the wire.
func MetadataValue(md map[string]string, name string) (string, bool) {
	if v, ok := md[name]; ok {
		return v, true
	}
	for k, v := range md {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
