package index

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/meigma/assetlift/internal/sizing"
)

// Graph is a resolved master index: containers, their resource files and
// every entry. It is read-only after Load.
type Graph struct {
	path       string
	schema     Schema
	containers []*Container
	all        []Entry
	exportable []Entry
	byName     map[string][]int
	fileSizes  map[string]int64
}

// Option configures Load.
type Option func(*loadConfig)

type loadConfig struct {
	exportable []TypeTag
	snapshots  SnapshotStore
	logger     *slog.Logger
}

// WithExportable replaces the allow-list of types returned by
// Graph.Entries.
func WithExportable(types ...TypeTag) Option {
	return func(c *loadConfig) {
		c.exportable = slices.Clone(types)
	}
}

// WithSnapshots enables snapshot reuse through store.
func WithSnapshots(store SnapshotStore) Option {
	return func(c *loadConfig) {
		c.snapshots = store
	}
}

// WithLogger sets the logger used during loading.
func WithLogger(logger *slog.Logger) Option {
	return func(c *loadConfig) {
		c.logger = logger
	}
}

func (c *loadConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Load reads the master index at path, then every container index it
// names. Any failure aborts the load; no partial graph is returned.
func Load(path string, opts ...Option) (*Graph, error) {
	cfg := loadConfig{exportable: DefaultExportable}
	for _, opt := range opts {
		opt(&cfg)
	}

	data, err := os.ReadFile(path) //nolint:gosec // caller-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("read master index: %w", err)
	}
	dir := filepath.Dir(path)
	schema, containers, err := ParseMaster(data, dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var key string
	if cfg.snapshots != nil {
		key, err = snapshotKey(data, containers)
		if err != nil {
			return nil, err
		}
		snap, ok, err := cfg.snapshots.Get(key)
		switch {
		case err != nil:
			cfg.log().Warn("snapshot unreadable, reparsing", "path", path, "error", err)
		case ok && snap.Schema == schema && len(snap.Containers) == len(containers):
			cfg.log().Debug("snapshot hit", "path", path, "key", key)
			return newGraph(path, snap.Schema, snap.restore(dir), &cfg), nil
		case ok:
			cfg.log().Warn("snapshot does not match master index, reparsing", "path", path)
		default:
			cfg.log().Debug("snapshot miss", "path", path, "key", key)
		}
	}

	for _, c := range containers {
		raw, err := os.ReadFile(c.IndexPath())
		if err != nil {
			return nil, fmt.Errorf("read container index %d: %w", c.ID, err)
		}
		c.Entries, err = ParseContainerIndex(raw, schema, c.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.IndexPath(), err)
		}
	}

	if cfg.snapshots != nil {
		if err := cfg.snapshots.Put(key, newSnapshot(schema, containers)); err != nil {
			cfg.log().Warn("failed to store snapshot", "path", path, "error", err)
		}
	}
	return newGraph(path, schema, containers, &cfg), nil
}

// New builds a Graph from already-parsed containers. Resource files are
// resolved relative to each container's Dir.
func New(schema Schema, containers []*Container, opts ...Option) *Graph {
	cfg := loadConfig{exportable: DefaultExportable}
	for _, opt := range opts {
		opt(&cfg)
	}
	return newGraph("", schema, containers, &cfg)
}

func newGraph(path string, schema Schema, containers []*Container, cfg *loadConfig) *Graph {
	g := &Graph{
		path:       path,
		schema:     schema,
		containers: containers,
		byName:     make(map[string][]int),
		fileSizes:  make(map[string]int64),
	}
	for _, c := range containers {
		for _, e := range c.Entries {
			g.byName[e.Name] = append(g.byName[e.Name], len(g.all))
			g.all = append(g.all, e)
		}
	}

	for _, e := range g.all {
		if !slices.Contains(cfg.exportable, e.Type) {
			continue
		}
		if err := g.check(e); err != nil {
			cfg.log().Warn("entry excluded", "entry", e.Name, "type", e.Type.String(), "error", err)
			continue
		}
		g.exportable = append(g.exportable, e)
	}
	cfg.log().Debug("index resolved",
		"path", path,
		"schema", schema.String(),
		"containers", len(containers),
		"entries", len(g.all),
		"exportable", len(g.exportable))
	return g
}

// check verifies the bounds invariant against the resource file sizes seen
// at load time.
func (g *Graph) check(e Entry) error {
	path, err := g.ResourcePath(e)
	if err != nil {
		return err
	}
	size, ok := g.fileSizes[path]
	if !ok {
		size = -1
		if info, statErr := os.Stat(path); statErr == nil {
			size = info.Size()
		}
		g.fileSizes[path] = size
	}
	if size < 0 {
		return fmt.Errorf("resource %s: %w", path, fs.ErrNotExist)
	}
	return checkRange(e, size)
}

func checkRange(e Entry, size int64) error {
	if size < 0 || !sizing.InRange(e.Position, uint64(e.CompressedSize), uint64(size)) {
		return fmt.Errorf("%w: %s range [%d, +%d) exceeds resource size %d", ErrBounds, e.Name, e.Position, e.CompressedSize, size)
	}
	return nil
}

// Path returns the master index path, or "" for graphs built with New.
func (g *Graph) Path() string {
	return g.path
}

// Schema returns the master index schema.
func (g *Graph) Schema() Schema {
	return g.schema
}

// Containers returns the resolved containers. Callers must not modify them.
func (g *Graph) Containers() []*Container {
	return g.containers
}

// Entries returns the exportable entries: allow-listed types whose byte
// range lies inside an existing resource file.
func (g *Graph) Entries() []Entry {
	return slices.Clone(g.exportable)
}

// All returns every entry regardless of type.
func (g *Graph) All() []Entry {
	return slices.Clone(g.all)
}

// Lookup returns the first entry named name of any type.
func (g *Graph) Lookup(name string) (Entry, bool) {
	idx := g.byName[name]
	if len(idx) == 0 {
		return Entry{}, false
	}
	return g.all[idx[0]], true
}

// LookupType returns the first entry named name with type t.
func (g *Graph) LookupType(name string, t TypeTag) (Entry, bool) {
	for _, i := range g.byName[name] {
		if g.all[i].Type == t {
			return g.all[i], true
		}
	}
	return Entry{}, false
}

// ResourceIndex resolves the entry's selector against its container.
func (g *Graph) ResourceIndex(e Entry) (int, error) {
	if e.Container < 0 || e.Container >= len(g.containers) {
		return 0, fmt.Errorf("%w: container %d of %d", ErrBounds, e.Container, len(g.containers))
	}
	return e.Selector.Resolve(len(g.containers[e.Container].Resources))
}

// ResourcePath returns the path of the resource file holding e.
func (g *Graph) ResourcePath(e Entry) (string, error) {
	i, err := g.ResourceIndex(e)
	if err != nil {
		return "", err
	}
	c := g.containers[e.Container]
	return joinPath(c.Dir, c.Resources[i]), nil
}

// Locate resolves the resource file holding e and verifies that the entry's
// byte range lies inside it.
func (g *Graph) Locate(e Entry) (Location, error) {
	path, err := g.ResourcePath(e)
	if err != nil {
		return Location{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Location{}, fmt.Errorf("locate %s: %w", e.Name, err)
	}
	if err := checkRange(e, info.Size()); err != nil {
		return Location{}, err
	}
	return Location{Path: path, Offset: e.Position, Size: e.CompressedSize, FileSize: info.Size()}, nil
}
