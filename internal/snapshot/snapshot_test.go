package snapshot_test

import (
	"bytes"
	"encoding/hex"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/meigma/assetlift/cache/disk"
	"github.com/meigma/assetlift/index"
	"github.com/meigma/assetlift/internal/snapshot"
	"github.com/meigma/assetlift/internal/testutil"
)

func sampleSnapshot() *index.Snapshot {
	return &index.Snapshot{
		Schema: index.SchemaA,
		Containers: []index.SnapshotContainer{{
			IndexName: "c0.idx",
			Resources: []string{"common.pak", "shared.pak"},
			Entries: []index.Entry{{
				ID:               1,
				Type:             index.TypeModel,
				Name:             "hero",
				Destination:      "models/hero",
				Position:         16,
				UncompressedSize: 64,
				CompressedSize:   32,
				Selector:         index.Selector{Raw: testutil.SelectorA(1, false), Schema: index.SchemaA},
			}},
		}},
	}
}

func testKey(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	c := testutil.NewMockCache()
	store, err := snapshot.New(c)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	key := testKey("master")
	_, ok, err := store.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	want := sampleSnapshot()
	require.NoError(t, store.Put(key, want))
	assert.Equal(t, 1, c.Puts())

	got, ok, err := store.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestStoreConcurrentGet(t *testing.T) {
	t.Parallel()

	store, err := snapshot.New(testutil.NewMockCache())
	require.NoError(t, err)
	key := testKey("shared")
	require.NoError(t, store.Put(key, sampleSnapshot()))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, ok, err := store.Get(key)
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "c0.idx", snap.Containers[0].IndexName)
		}()
	}
	wg.Wait()
}

func TestStoreCorrupt(t *testing.T) {
	t.Parallel()

	c := testutil.NewMockCache()
	store, err := snapshot.New(c)
	require.NoError(t, err)

	key := testKey("corrupt")
	raw, err := hex.DecodeString(key)
	require.NoError(t, err)

	for _, data := range [][]byte{
		[]byte("nope"),
		append([]byte("ALSN"), 9),
		append([]byte("ALSN\x01"), bytes.Repeat([]byte{0xAB}, 32)...),
	} {
		require.NoError(t, c.Put(raw, data))
		_, ok, err := store.Get(key)
		require.ErrorIs(t, err, snapshot.ErrCorrupt)
		assert.False(t, ok)
	}

	_, _, err = store.Get("not-hex")
	require.Error(t, err)
	require.Error(t, store.Put("zz", sampleSnapshot()))
}

func TestStoreWithIndexLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	master := testutil.BuildMasterB(t, "c0.idx", []string{"data.pak"})
	c0 := testutil.BuildContainerIndex(t, testutil.VersionB, []testutil.TestEntry{
		{ID: 1, Type: uint32(index.TypeModel), Name: "crate", Selector: 0, Position: 0, Uncompressed: 8, Compressed: 8},
		{ID: 2, Type: uint32(index.TypeAnimation), Name: "crate_open", Selector: 0, Position: 8, Uncompressed: 8, Compressed: 8},
	})
	testutil.WriteFiles(t, dir, map[string][]byte{
		"master.idx": master,
		"c0.idx":     c0,
		"data.pak":   bytes.Repeat([]byte{7}, 16),
	})

	c, err := disk.New(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	store, err := snapshot.New(c)
	require.NoError(t, err)

	path := filepath.Join(dir, "master.idx")
	first, err := index.Load(path, index.WithSnapshots(store))
	require.NoError(t, err)
	size, err := c.SizeBytes()
	require.NoError(t, err)
	assert.Positive(t, size)

	second, err := index.Load(path, index.WithSnapshots(store))
	require.NoError(t, err)
	assert.Equal(t, first.Entries(), second.Entries())
	assert.Equal(t, first.Schema(), second.Schema())
	require.Len(t, second.Containers(), 1)
	assert.Equal(t, []string{"data.pak"}, second.Containers()[0].Resources)
}
