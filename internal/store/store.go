// Package store persists the explorer snapshot, a single JSON blob kept
// under a fixed key, in SQLite, Postgres, Redis, or S3.
package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned by Load when no snapshot exists for the key.
var ErrNotFound = eris.New("store: snapshot not found")

// Store reads and writes opaque blobs by key.
type Store interface {
	// Load returns the blob for key or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save writes the blob for key, replacing any previous value.
	Save(ctx context.Context, key string, data []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}
