package assetlift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/assetlift/asset"
	"github.com/meigma/assetlift/cache"
	"github.com/meigma/assetlift/cache/disk"
	"github.com/meigma/assetlift/codec"
	"github.com/meigma/assetlift/export"
	"github.com/meigma/assetlift/index"
	"github.com/meigma/assetlift/internal/batch"
	"github.com/meigma/assetlift/internal/pathutil"
	"github.com/meigma/assetlift/internal/sizing"
	"github.com/meigma/assetlift/internal/snapshot"
	"github.com/meigma/assetlift/pool"
	"github.com/meigma/assetlift/scene"
	"github.com/meigma/assetlift/source"
)

// Session owns the resolved index, the pooled resource handles, the codec
// binding and any attached processes.
type Session struct {
	// configuration
	codecCfg    codec.Config
	binding     codec.Binding
	workers     int
	budget      int64
	exportable  []index.TypeTag
	snapCache   cache.Cache
	snapshotDir string
	logger      *slog.Logger

	codec     *codec.Dispatcher
	handles   *source.Handles
	snapshots *snapshot.Store
	runner    *batch.Runner

	mu      sync.RWMutex
	graph   *index.Graph
	resolve singleflight.Group

	procMu sync.Mutex
	procs  map[int]*source.ProcessSource
}

// New creates a Session with the given options.
//
// Without [WithCodecLibrary] or [WithBinding], payloads using the native
// codec fail with [ErrCodecUnavailable]; stored and Deflate payloads still
// decode.
func New(opts ...Option) (*Session, error) {
	s := &Session{
		exportable: index.DefaultExportable,
		procs:      make(map[int]*source.ProcessSource),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.snapshotDir != "" {
		c, err := disk.New(s.snapshotDir,
			disk.WithMaxBytes(DefaultSnapshotCacheSize),
			disk.WithLogger(s.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("init snapshot dir: %w", err)
		}
		s.snapCache = c
	}

	codecOpts := []codec.Option{codec.WithLogger(s.logger)}
	if s.binding != nil {
		codecOpts = append(codecOpts, codec.WithBinding(s.binding))
	}
	d, err := codec.New(s.codecCfg, codecOpts...)
	if err != nil {
		return nil, fmt.Errorf("init codec: %w", err)
	}
	s.codec = d

	if s.snapCache != nil {
		store, err := snapshot.New(s.snapCache, snapshot.WithLogger(s.logger))
		if err != nil {
			_ = d.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("init snapshot store: %w", err)
		}
		s.snapshots = store
	}

	s.handles = source.NewHandles(source.WithHandlesLogger(s.logger))
	s.runner = batch.NewRunner(
		batch.WithWorkers(s.workers),
		batch.WithMemoryBudget(s.budget),
		batch.WithLogger(s.logger),
	)
	return s, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Session) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// ResolveIndex parses the master index at path and every container index it
// names, replacing any previously resolved graph. It returns the exportable
// entries in container order. Concurrent calls for the same path share one
// parse. On failure the previous graph is kept and no partial graph is
// exposed.
func (s *Session) ResolveIndex(path string) ([]index.Entry, error) {
	v, err, _ := s.resolve.Do(path, func() (any, error) {
		opts := []index.Option{
			index.WithExportable(s.exportable...),
			index.WithLogger(s.logger),
		}
		if s.snapshots != nil {
			opts = append(opts, index.WithSnapshots(s.snapshots))
		}
		return index.Load(path, opts...)
	})
	if err != nil {
		return nil, err
	}
	g, _ := v.(*index.Graph)

	s.mu.Lock()
	s.graph = g
	s.mu.Unlock()

	entries := g.Entries()
	s.log().Info("index resolved",
		"path", path,
		"schema", g.Schema().String(),
		"containers", len(g.Containers()),
		"entries", len(entries))
	return entries, nil
}

// Graph returns the resolved graph, or nil if none is resolved.
func (s *Session) Graph() *index.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

func (s *Session) currentGraph() (*index.Graph, error) {
	g := s.Graph()
	if g == nil {
		return nil, ErrNoIndex
	}
	return g, nil
}

// Extract reads entry's stored bytes from its resource file and decodes
// them to exactly entry.UncompressedSize bytes.
func (s *Session) Extract(entry index.Entry) ([]byte, error) {
	g, err := s.currentGraph()
	if err != nil {
		return nil, err
	}
	return s.extract(g, entry)
}

func (s *Session) extract(g *index.Graph, entry index.Entry) ([]byte, error) {
	loc, err := g.Locate(entry)
	if err != nil {
		return nil, err
	}
	src, err := s.handles.Open(loc.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", loc.Path, err)
	}
	raw, err := source.NewCursor(src).ReadBytes(loc.Offset, int(loc.Size)) //nolint:gosec // uint32 fits in int
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Name, err)
	}
	expected, err := sizing.ToInt(uint64(entry.UncompressedSize), ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	data, err := s.codec.Decompress(raw, expected)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", entry.Name, err)
	}
	return data, nil
}

// BuildScene decodes entry into a scene graph. Models pick up their
// companion skeleton entry ("<name>_skel") when the index has one and get a
// placeholder skeleton otherwise. Types other than models and animations
// return [ErrUnsupported].
func (s *Session) BuildScene(entry index.Entry) (*scene.Scene, error) {
	g, err := s.currentGraph()
	if err != nil {
		return nil, err
	}

	switch entry.Type {
	case index.TypeModel:
		m, err := s.buildModel(g, entry)
		if err != nil {
			return nil, err
		}
		return &scene.Scene{Name: entry.Name, Model: m}, nil
	case index.TypeAnimation:
		data, err := s.extract(g, entry)
		if err != nil {
			return nil, err
		}
		a, err := asset.ReadAnimation(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name, err)
		}
		return &scene.Scene{Name: entry.Name, Animation: a}, nil
	default:
		return nil, fmt.Errorf("%w: %s entries cannot be built", ErrUnsupported, entry.Type)
	}
}

func (s *Session) buildModel(g *index.Graph, entry index.Entry) (*scene.Model, error) {
	var skel *scene.Skeleton
	if se, ok := g.LookupType(entry.Name+asset.SkeletonSuffix, index.TypeSkeleton); ok {
		data, err := s.extract(g, se)
		if err != nil {
			return nil, fmt.Errorf("skeleton: %w", err)
		}
		skel, err = asset.ReadSkeleton(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", se.Name, err)
		}
	} else {
		s.log().Debug("no skeleton entry, using placeholder bones", "model", entry.Name)
	}

	data, err := s.extract(g, entry)
	if err != nil {
		return nil, err
	}
	m, err := asset.ReadModel(data, skel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", entry.Name, err)
	}
	return m, nil
}

// ExportScene writes sc to path in format. The file is replaced atomically;
// a failed export leaves any existing file untouched.
func ExportScene(sc *scene.Scene, format export.Format, path string) error {
	if !format.Supports(sc) {
		return fmt.Errorf("%w: %s cannot hold scene %q", ErrUnsupported, format, sc.Name)
	}
	return export.WriteFile(sc, format, path)
}

// OutputPath returns where ExportAll writes entry under dir: the entry's
// destination, or its name when it has none, plus the format extension.
func OutputPath(entry index.Entry, format export.Format, dir string) (string, error) {
	dest := entry.Destination
	if dest == "" {
		dest = entry.Name
	}
	return pathutil.Join(dir, dest+format.Ext())
}

// ExportAll builds and exports entries concurrently into dir. Each entry is
// reported exactly once, in input order; a failing entry never stops the
// others. When ctx is cancelled, entries not yet finished are reported as
// failed.
func (s *Session) ExportAll(ctx context.Context, entries []index.Entry, format export.Format, dir string) []batch.Result {
	tasks := make([]batch.Task[*scene.Scene], len(entries))
	for i, e := range entries {
		tasks[i] = batch.Task[*scene.Scene]{
			Name:   e.Name,
			Weight: int64(e.UncompressedSize),
			Load: func(context.Context) (*scene.Scene, error) {
				return s.BuildScene(e)
			},
			Export: func(ctx context.Context, sc *scene.Scene) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				path, err := OutputPath(e, format, dir)
				if err != nil {
					return fmt.Errorf("%s: %w", e.Name, err)
				}
				return ExportScene(sc, format, path)
			},
		}
	}
	results := batch.Run(ctx, s.runner, tasks)

	failed := 0
	for _, r := range results {
		if r.Status == batch.StatusError {
			failed++
		}
	}
	s.log().Info("export finished", "format", format.String(), "entries", len(entries), "failed", failed)
	return results
}

// process returns the attached ProcessSource for pid, opening it on first
// use.
func (s *Session) process(pid int) (*source.ProcessSource, error) {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	if p, ok := s.procs[pid]; ok {
		return p, nil
	}
	p, err := source.OpenProcess(pid)
	if err != nil {
		return nil, err
	}
	s.procs[pid] = p
	s.log().Debug("attached process", "pid", pid)
	return p, nil
}

// DiscoverTables locates the pool table referenced by sig inside
// [start, end) of process pid and reads the pool records for kinds.
// Discovery is best-effort and fails with [pool.ErrNotFound] when the
// signature does not match.
func (s *Session) DiscoverTables(pid int, sig pool.Signature, start, end uint64, kinds ...pool.Kind) ([]pool.Table, error) {
	p, err := s.process(pid)
	if err != nil {
		return nil, err
	}
	c := source.NewCursor(p)
	addr, err := pool.Locate(c, sig, start, end)
	if err != nil {
		return nil, err
	}
	s.log().Debug("pool table located", "pid", pid, "address", addr)
	return pool.ReadTables(c, addr, kinds...)
}

// ScanProcess classifies every slot of tables in process pid. Loaded slots
// carry an Extract function that decodes through the session codec.
func (s *Session) ScanProcess(ctx context.Context, pid int, tables []pool.Table) ([]pool.Slot, error) {
	p, err := s.process(pid)
	if err != nil {
		return nil, err
	}
	return s.ScanSource(ctx, p, tables)
}

// ScanSource classifies every slot of tables in src, such as a memory dump
// or an attached process.
func (s *Session) ScanSource(ctx context.Context, src source.ByteSource, tables []pool.Table) ([]pool.Slot, error) {
	scanner := pool.NewScanner(
		pool.WithDecompressor(s.codec),
		pool.WithLogger(s.logger),
	)
	slots, err := scanner.ScanAll(ctx, src, tables)
	if err != nil {
		return nil, err
	}
	s.log().Info("pools scanned", "source", src.SourceID(), "tables", len(tables), "slots", len(slots))
	return slots, nil
}

// Clear drops the resolved graph and closes pooled resource handles and
// attached processes. The session stays usable.
func (s *Session) Clear() {
	if err := s.clear(); err != nil {
		s.log().Warn("failed to release handles", "error", err)
	}
}

func (s *Session) clear() error {
	s.mu.Lock()
	s.graph = nil
	s.mu.Unlock()

	errs := []error{s.handles.Close()}

	s.procMu.Lock()
	procs := s.procs
	s.procs = make(map[int]*source.ProcessSource)
	s.procMu.Unlock()
	for pid, p := range procs {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("detach process %d: %w", pid, err))
		}
	}
	return errors.Join(errs...)
}

// Close clears the session and releases the codec library and snapshot
// store. Close must only be called after all requests have returned.
func (s *Session) Close() error {
	errs := []error{s.clear(), s.codec.Close()}
	if s.snapshots != nil {
		errs = append(errs, s.snapshots.Close())
	}
	return errors.Join(errs...)
}
