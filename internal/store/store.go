// Package store provides the persistent key/value store backing session and
// transcript state.
package store

import "context"

// Store is a process-wide key/value store: string key to opaque bytes.
// There are no transactions; a single Set is the atomicity unit, so callers
// persist whole records rather than individual fields.
type Store interface {
	// Get retrieves the value for key. The second return is false when the
	// key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}
