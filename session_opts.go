package assetlift

import (
	"errors"
	"log/slog"

	"github.com/meigma/assetlift/cache"
	"github.com/meigma/assetlift/codec"
	"github.com/meigma/assetlift/index"
)

// Option configures a Session.
type Option func(*Session) error

// DefaultSnapshotCacheSize is the size limit applied by WithSnapshotDir.
const DefaultSnapshotCacheSize int64 = 64 << 20 // 64 MB

// --- Codec Options ---

// WithCodecLibrary loads the native codec from the shared library at path.
// The library is opened once, in New.
func WithCodecLibrary(path string) Option {
	return func(s *Session) error {
		s.codecCfg.LibraryPath = path
		return nil
	}
}

// WithCodecSymbol overrides the exported decompress function looked up in
// the codec library. Defaults to [codec.DefaultSymbol].
func WithCodecSymbol(symbol string) Option {
	return func(s *Session) error {
		s.codecCfg.Symbol = symbol
		return nil
	}
}

// WithBinding installs b as the native codec. It takes precedence over
// WithCodecLibrary.
func WithBinding(b codec.Binding) Option {
	return func(s *Session) error {
		s.binding = b
		return nil
	}
}

// --- Batch Options ---

// WithWorkers sets the number of entries ExportAll processes concurrently.
// Values < 1 use runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(s *Session) error {
		s.workers = n
		return nil
	}
}

// WithMemoryBudget caps the summed decoded size of entries ExportAll holds
// in flight. Zero disables the budget. Negative values are not allowed.
func WithMemoryBudget(bytes int64) Option {
	return func(s *Session) error {
		if bytes < 0 {
			return errors.New("memory budget must be non-negative")
		}
		s.budget = bytes
		return nil
	}
}

// --- Index Options ---

// WithExportable replaces the entry types returned by ResolveIndex.
// Defaults to [index.DefaultExportable].
func WithExportable(types ...index.TypeTag) Option {
	return func(s *Session) error {
		if len(types) == 0 {
			return errors.New("exportable types must not be empty")
		}
		s.exportable = types
		return nil
	}
}

// WithSnapshotCache stores resolved indices in c so a later ResolveIndex of
// unchanged files skips container parsing. It replaces any earlier
// WithSnapshotDir.
func WithSnapshotCache(c cache.Cache) Option {
	return func(s *Session) error {
		s.snapCache = c
		s.snapshotDir = ""
		return nil
	}
}

// WithSnapshotDir enables index snapshots in a disk cache rooted at dir,
// limited to [DefaultSnapshotCacheSize]. The cache is created in New, after
// every option has been applied, so it picks up the session logger whatever
// the option order. It replaces any earlier WithSnapshotCache.
func WithSnapshotDir(dir string) Option {
	return func(s *Session) error {
		if dir == "" {
			return errors.New("snapshot dir must not be empty")
		}
		s.snapshotDir = dir
		s.snapCache = nil
		return nil
	}
}

// WithLogger sets a logger for the session.
// The logger is propagated to every component the session creates.
// If nil, a discard logger is used (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		s.logger = logger
		return nil
	}
}
