// Package testutil provides builders for synthetic index files, raw asset
// payloads and on-disk fixtures.
package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// WriteFiles writes each name → content pair under dir, creating parent
// directories as needed.
func WriteFiles(tb testing.TB, dir string, files map[string][]byte) {
	tb.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			tb.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(path, content, 0o600); err != nil {
			tb.Fatalf("write %s: %v", name, err)
		}
	}
}

// MockCache implements a basic concurrency-safe cache for tests.
type MockCache struct {
	mu   sync.RWMutex
	data map[string][]byte
	puts int
}

// NewMockCache constructs an empty in-memory cache.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string][]byte)}
}

// Get retrieves data by key.
func (c *MockCache) Get(key []byte) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.data[string(key)]
	return data, ok
}

// Put stores data by key.
func (c *MockCache) Put(key, content []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[string(key)] = content
	c.puts++
	return nil
}

// Puts returns the number of Put calls.
func (c *MockCache) Puts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.puts
}
