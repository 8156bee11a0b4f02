// Package cache stores narrated audio clips for the lifetime of a session.
//
// Store is a flat byte-valued key-value store with two implementations:
// Memory, a bounded map, and Badger, backed by BadgerDB (usually in
// memory-only mode). Clips layers the clip encoding on top of any Store.
package cache

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("cache: not found")

// Store is a key-value store. Implementations must be safe for concurrent
// use.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a key-value pair. Overwrites any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
