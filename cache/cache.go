// Package cache defines the content-addressed store used to persist parsed
// container graphs between runs.
//
// Keys are digests of the inputs a value was derived from, so a changed
// input always maps to a new key and stale entries are never returned.
// Values are opaque bytes.
package cache

// Cache stores values by key. Implementations must be safe for concurrent
// use and handle their own size limits.
type Cache interface {
	// Get returns the value for key, or nil, false on a miss.
	Get(key []byte) ([]byte, bool)

	// Put stores content under key. Storing an existing key is a no-op.
	Put(key []byte, content []byte) error
}

// Pruner is implemented by caches that can report and shrink their size.
type Pruner interface {
	// SizeBytes returns the bytes currently held.
	SizeBytes() (int64, error)

	// Prune evicts the least recently written entries until at most
	// targetBytes remain, returning the bytes freed.
	Prune(targetBytes int64) (int64, error)
}
