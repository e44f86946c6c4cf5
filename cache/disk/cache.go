// Package disk provides a filesystem-backed cache.Cache.
package disk

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/meigma/assetlift/cache"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
)

var (
	_ cache.Cache  = (*Cache)(nil)
	_ cache.Pruner = (*Cache)(nil)
)

// Cache stores each value in its own file named by the hex-encoded key,
// sharded into subdirectories by key prefix. Writes go to a temporary file
// and are renamed into place.
type Cache struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	maxBytes       int64
	logger         *slog.Logger

	pruneMu sync.Mutex
}

// Option configures a disk cache.
type Option func(*Cache)

// WithShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(c *Cache) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.dirPerm = mode
	}
}

// WithMaxBytes prunes the cache back to n bytes after a Put pushes it over.
// Zero means unlimited.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// WithLogger sets the logger for pruning.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a disk-backed cache rooted at dir.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	c := &Cache{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shardPrefixLen < 0 {
		return nil, errors.New("shard prefix length must be >= 0")
	}
	if c.maxBytes < 0 {
		return nil, errors.New("max bytes must be >= 0")
	}
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return c, nil
}

func (c *Cache) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// Get returns the value stored under key.
func (c *Cache) Get(key []byte) ([]byte, bool) {
	path, err := c.path(key)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from the key, not user input
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put stores content under key.
func (c *Cache) Put(key, content []byte) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return fmt.Errorf("create shard dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "cache-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()        //nolint:errcheck // cleaning up
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		// A concurrent writer stored the same key first.
		if _, statErr := os.Stat(path); statErr == nil {
			return nil
		}
		return fmt.Errorf("rename cache entry: %w", err)
	}

	if c.maxBytes > 0 {
		c.enforceLimit()
	}
	return nil
}

// SizeBytes returns the total size of stored entries.
func (c *Cache) SizeBytes() (int64, error) {
	entries, err := scan(c.dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.size
	}
	return total, nil
}

// Prune removes the oldest entries until at most targetBytes remain.
func (c *Cache) Prune(targetBytes int64) (int64, error) {
	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()
	return prune(c.dir, targetBytes)
}

func (c *Cache) enforceLimit() {
	freed, err := c.Prune(c.maxBytes)
	if err != nil {
		c.log().Warn("cache prune failed", "dir", c.dir, "error", err)
		return
	}
	if freed > 0 {
		c.log().Debug("cache pruned", "dir", c.dir, "freed", freed, "limit", c.maxBytes)
	}
}

func (c *Cache) path(key []byte) (string, error) {
	if len(key) == 0 {
		return "", errors.New("key is empty")
	}
	name := hex.EncodeToString(key)
	if c.shardPrefixLen <= 0 {
		return filepath.Join(c.dir, name), nil
	}
	prefix := min(c.shardPrefixLen, len(name))
	return filepath.Join(c.dir, name[:prefix], name), nil
}
