package index

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetlift/internal/testutil"
)

// writeSchemaA lays out a two-container Schema A tree. Container 0 owns
// "common.pak" and "zone_a.pak"; container 1 owns "zone_b.pak"; both share
// "shared.pak".
func writeSchemaA(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	master := testutil.BuildMasterA(t,
		[]testutil.ContainerPair{
			{IndexName: "c0.idx", Resource: "common.pak"},
			{IndexName: "c1.idx", Resource: "zone_b.pak"},
		},
		[]testutil.FlatResource{
			{Name: "zone_a.pak", Container: 0},
			{Name: "common.pak", Container: 0}, // duplicate of own resource
		},
		[]testutil.SharedResource{
			{Name: "shared.pak", Containers: []uint32{0, 1}},
		},
	)
	c0 := testutil.BuildContainerIndex(t, testutil.VersionA, []testutil.TestEntry{
		{ID: 1, Type: uint32(TypeModel), Name: "hero", Destination: "models/hero", Selector: testutil.SelectorA(1, false), Position: 16, Uncompressed: 64, Compressed: 32},
		{ID: 2, Type: uint32(TypeSkeleton), Name: "hero_skel", Selector: testutil.SelectorA(0, false), Position: 0, Uncompressed: 8, Compressed: 8},
		{ID: 3, Type: uint32(TypeAnimation), Name: "hero_run", Selector: testutil.SelectorA(0, true), Position: 4, Uncompressed: 20, Compressed: 10},
		{ID: 4, Type: uint32(TypeImage), Name: "hero_diffuse", Selector: testutil.SelectorA(0, false), Position: 0, Uncompressed: 4, Compressed: 4},
	})
	c1 := testutil.BuildContainerIndex(t, testutil.VersionA, []testutil.TestEntry{
		{ID: 5, Type: uint32(TypeModel), Name: "crate", Selector: testutil.SelectorA(0, false), Position: 0, Uncompressed: 16, Compressed: 16},
		{ID: 6, Type: uint32(TypeModel), Name: "oversized", Selector: testutil.SelectorA(0, false), Position: 60, Uncompressed: 16, Compressed: 16},
		{ID: 7, Type: uint32(TypeModel), Name: "bad_selector", Selector: testutil.SelectorA(9, false), Position: 0, Uncompressed: 1, Compressed: 1},
	})
	testutil.WriteFiles(t, dir, map[string][]byte{
		"master.idx": master,
		"c0.idx":     c0,
		"c1.idx":     c1,
		"common.pak": bytes.Repeat([]byte{1}, 32),
		"zone_a.pak": bytes.Repeat([]byte{2}, 48),
		"zone_b.pak": bytes.Repeat([]byte{3}, 64),
		"shared.pak": bytes.Repeat([]byte{4}, 16),
	})
	return dir, filepath.Join(dir, "master.idx")
}

func TestLoadSchemaASharedResources(t *testing.T) {
	t.Parallel()

	_, path := writeSchemaA(t)
	g, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, SchemaA, g.Schema())
	containers := g.Containers()
	require.Len(t, containers, 2)
	assert.Equal(t, []string{"common.pak", "zone_a.pak", "shared.pak"}, containers[0].Resources)
	assert.Equal(t, []string{"zone_b.pak", "shared.pak"}, containers[1].Resources)

	for _, c := range containers {
		seen := map[string]int{}
		for _, r := range c.Resources {
			seen[r]++
		}
		for name, n := range seen {
			assert.Equal(t, 1, n, "container %d lists %s %d times", c.ID, name, n)
		}
	}
}

func TestGraphEntries(t *testing.T) {
	t.Parallel()

	_, path := writeSchemaA(t)
	g, err := Load(path)
	require.NoError(t, err)

	var names []string
	for _, e := range g.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"hero", "hero_run", "crate"}, names,
		"skeletons and images are not exportable; out-of-bounds entries are excluded")
	assert.Len(t, g.All(), 7)

	skel, ok := g.LookupType("hero_skel", TypeSkeleton)
	require.True(t, ok, "non-exportable entries stay available by name")
	assert.Equal(t, uint64(2), skel.ID)

	_, ok = g.LookupType("hero_skel", TypeModel)
	assert.False(t, ok)
	_, ok = g.Lookup("missing")
	assert.False(t, ok)
}

func TestGraphEntriesWithinBounds(t *testing.T) {
	t.Parallel()

	_, path := writeSchemaA(t)
	g, err := Load(path)
	require.NoError(t, err)

	for _, e := range g.Entries() {
		loc, err := g.Locate(e)
		require.NoError(t, err, e.Name)
		info, err := os.Stat(loc.Path)
		require.NoError(t, err)
		assert.LessOrEqual(t, e.Position+uint64(e.CompressedSize), uint64(info.Size()), e.Name)
	}
}

func TestGraphLocate(t *testing.T) {
	t.Parallel()

	dir, path := writeSchemaA(t)
	g, err := Load(path)
	require.NoError(t, err)

	hero, ok := g.Lookup("hero")
	require.True(t, ok)
	loc, err := g.Locate(hero)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "zone_a.pak"), loc.Path)
	assert.Equal(t, uint64(16), loc.Offset)
	assert.Equal(t, uint32(32), loc.Size)

	run, ok := g.Lookup("hero_run")
	require.True(t, ok)
	loc, err = g.Locate(run)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shared.pak"), loc.Path, "last-resource bit selects the final resource")

	oversized, ok := g.Lookup("oversized")
	require.True(t, ok)
	_, err = g.Locate(oversized)
	require.ErrorIs(t, err, ErrBounds)

	bad, ok := g.Lookup("bad_selector")
	require.True(t, ok)
	_, err = g.ResourceIndex(bad)
	require.ErrorIs(t, err, ErrBounds)
	_, err = g.Locate(bad)
	require.ErrorIs(t, err, ErrBounds)
}

func TestLoadSchemaB(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string][]byte{
		"master.idx": testutil.BuildMasterB(t, "pkg/all.idx", []string{"data0.pak", "data1.pak", "data0.pak"}),
		"pkg/all.idx": testutil.BuildContainerIndex(t, testutil.VersionB, []testutil.TestEntry{
			{ID: 10, Type: uint32(TypeAnimation), Name: "walk", Selector: 1, Position: 8, Uncompressed: 40, Compressed: 24},
			{ID: 11, Type: uint32(TypeMaterial), Name: "stone", Selector: 0, Position: 0, Uncompressed: 4, Compressed: 4},
		}),
		"data0.pak": make([]byte, 8),
		"data1.pak": make([]byte, 32),
	})

	g, err := Load(filepath.Join(dir, "master.idx"))
	require.NoError(t, err)
	assert.Equal(t, SchemaB, g.Schema())
	require.Len(t, g.Containers(), 1)
	assert.Equal(t, []string{"data0.pak", "data1.pak"}, g.Containers()[0].Resources)

	entries := g.Entries()
	require.Len(t, entries, 1)
	walk := entries[0]
	assert.Equal(t, uint64(10), walk.ID)
	assert.Equal(t, uint64(8), walk.Position)
	assert.Equal(t, uint32(24), walk.CompressedSize)
	assert.Equal(t, uint32(40), walk.UncompressedSize)

	loc, err := g.Locate(walk)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data1.pak"), loc.Path)
}

func TestLoadWithExportable(t *testing.T) {
	t.Parallel()

	_, path := writeSchemaA(t)
	g, err := Load(path, WithExportable(TypeSkeleton))
	require.NoError(t, err)

	entries := g.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "hero_skel", entries[0].Name)
}

func TestLoadFormatErrors(t *testing.T) {
	t.Parallel()

	validContainer := testutil.BuildContainerIndex(t, testutil.VersionA, nil)
	badMagic := bytes.Clone(validContainer)
	badMagic[0] = 'X'

	tests := []struct {
		name  string
		files map[string][]byte
	}{
		{
			name:  "master magic",
			files: map[string][]byte{"master.idx": []byte("NOPE\x00\x02\x00\x00\x00\x00")},
		},
		{
			name:  "master version",
			files: map[string][]byte{"master.idx": {'P', 'K', 'G', 'I', 0, 9}},
		},
		{
			name: "truncated master",
			files: map[string][]byte{
				"master.idx": testutil.BuildMasterA(t, []testutil.ContainerPair{{IndexName: "c0.idx", Resource: "a.pak"}}, nil, nil)[:12],
			},
		},
		{
			name: "invalid container id",
			files: map[string][]byte{
				"master.idx": testutil.BuildMasterA(t,
					[]testutil.ContainerPair{{IndexName: "c0.idx", Resource: "a.pak"}},
					[]testutil.FlatResource{{Name: "b.pak", Container: 3}}, nil),
				"c0.idx": validContainer,
			},
		},
		{
			name: "invalid shared container id",
			files: map[string][]byte{
				"master.idx": testutil.BuildMasterA(t,
					[]testutil.ContainerPair{{IndexName: "c0.idx", Resource: "a.pak"}},
					nil, []testutil.SharedResource{{Name: "s.pak", Containers: []uint32{0, 1}}}),
				"c0.idx": validContainer,
			},
		},
		{
			name: "container magic",
			files: map[string][]byte{
				"master.idx": testutil.BuildMasterA(t, []testutil.ContainerPair{{IndexName: "c0.idx", Resource: "a.pak"}}, nil, nil),
				"c0.idx":     badMagic,
			},
		},
		{
			name: "truncated entry",
			files: map[string][]byte{
				"master.idx": testutil.BuildMasterB(t, "c0.idx", []string{"a.pak"}),
				"c0.idx": testutil.BuildContainerIndex(t, testutil.VersionB, []testutil.TestEntry{
					{ID: 1, Type: uint32(TypeModel), Name: "a", Compressed: 1},
					{ID: 2, Type: uint32(TypeModel), Name: "b", Compressed: 1},
				})[:70],
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			testutil.WriteFiles(t, dir, tt.files)
			g, err := Load(filepath.Join(dir, "master.idx"))
			require.ErrorIs(t, err, ErrFormat)
			assert.Nil(t, g, "no partial graph on failure")
		})
	}
}

func TestSelectorResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sel     Selector
		count   int
		want    int
		wantErr bool
	}{
		{name: "schema A index", sel: Selector{Raw: 0x0020, Schema: SchemaA}, count: 3, want: 2},
		{name: "schema A last", sel: Selector{Raw: 0x8000, Schema: SchemaA}, count: 3, want: 2},
		{name: "schema A last ignores index bits", sel: Selector{Raw: 0x8010, Schema: SchemaA}, count: 5, want: 4},
		{name: "schema A low bits ignored", sel: Selector{Raw: 0x001F, Schema: SchemaA}, count: 2, want: 1},
		{name: "schema A out of range", sel: Selector{Raw: 0x0030, Schema: SchemaA}, count: 3, wantErr: true},
		{name: "schema A last with no resources", sel: Selector{Raw: 0x8000, Schema: SchemaA}, count: 0, wantErr: true},
		{name: "schema B direct", sel: Selector{Raw: 2, Schema: SchemaB}, count: 3, want: 2},
		{name: "schema B out of range", sel: Selector{Raw: 3, Schema: SchemaB}, count: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.sel.Resolve(tt.count)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrBounds)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeTag(t *testing.T) {
	t.Parallel()

	for _, tag := range []TypeTag{TypeModel, TypeAnimation, TypeSkeleton, TypeMaterial, TypeImage} {
		parsed, err := ParseTypeTag(tag.String())
		require.NoError(t, err)
		assert.Equal(t, tag, parsed)
	}
	assert.Equal(t, "XMDL", TypeModel.String())
	assert.Equal(t, "0x00000001", TypeTag(1).String())
	_, err := ParseTypeTag("XMD")
	require.Error(t, err)
}

type memorySnapshots struct {
	mu   sync.Mutex
	data map[string]*Snapshot
	hits int
}

func (m *memorySnapshots) Get(key string) (*Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[key]
	if ok {
		m.hits++
	}
	return s, ok, nil
}

func (m *memorySnapshots) Put(key string, s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = s
	return nil
}

func TestLoadWithSnapshots(t *testing.T) {
	t.Parallel()

	dir, path := writeSchemaA(t)
	store := &memorySnapshots{data: map[string]*Snapshot{}}

	first, err := Load(path, WithSnapshots(store))
	require.NoError(t, err)
	assert.Len(t, store.data, 1)
	assert.Equal(t, 0, store.hits)

	second, err := Load(path, WithSnapshots(store))
	require.NoError(t, err)
	assert.Equal(t, 1, store.hits)
	assert.Equal(t, first.All(), second.All())
	assert.Equal(t, first.Entries(), second.Entries())
	assert.Equal(t, filepath.Join(dir, "c0.idx"), second.Containers()[0].IndexPath())

	// Rewriting a container index changes the key.
	testutil.WriteFiles(t, dir, map[string][]byte{
		"c1.idx": testutil.BuildContainerIndex(t, testutil.VersionA, nil),
	})
	third, err := Load(path, WithSnapshots(store))
	require.NoError(t, err)
	assert.Equal(t, 1, store.hits)
	assert.Len(t, third.All(), 4)
}
