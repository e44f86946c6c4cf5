package testutil

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/meigma/assetlift/internal/binio"
)

// Index file magics and versions, mirrored here so builders do not depend on
// the packages under test.
const (
	masterMagic    = 0x504B4749
	containerMagic = 0x504B4743

	VersionA = 2
	VersionB = 3
)

// ContainerPair is a Schema A container record.
type ContainerPair struct {
	IndexName string
	Resource  string
}

// FlatResource assigns one resource to one container.
type FlatResource struct {
	Name      string
	Container uint32
}

// SharedResource assigns one resource to several containers.
type SharedResource struct {
	Name       string
	Containers []uint32
}

// TestEntry holds data for building container index entries.
type TestEntry struct {
	ID           uint64
	Type         uint32
	Name         string
	Destination  string
	Selector     uint16
	Position     uint64
	Uncompressed uint32
	Compressed   uint32
}

// BuildMasterA encodes a Schema A master index.
func BuildMasterA(tb testing.TB, containers []ContainerPair, flat []FlatResource, shared []SharedResource) []byte {
	tb.Helper()

	var buf bytes.Buffer
	w := binio.NewWriter(&buf, binary.BigEndian)
	w.U32(masterMagic)
	w.U16(VersionA)
	w.U32(uint32(len(containers))) //nolint:gosec // test sizes are small
	for _, c := range containers {
		w.Str16(c.IndexName)
		w.Str16(c.Resource)
	}
	w.U32(uint32(len(flat))) //nolint:gosec // test sizes are small
	for _, f := range flat {
		w.Str16(f.Name)
		w.U32(f.Container)
	}
	w.U32(uint32(len(shared))) //nolint:gosec // test sizes are small
	for _, s := range shared {
		w.Str16(s.Name)
		w.U16(uint16(len(s.Containers))) //nolint:gosec // test sizes are small
		for _, id := range s.Containers {
			w.U32(id)
		}
	}
	if err := w.Err(); err != nil {
		tb.Fatalf("build master index: %v", err)
	}
	return buf.Bytes()
}

// BuildMasterB encodes a Schema B master index.
func BuildMasterB(tb testing.TB, indexName string, resources []string) []byte {
	tb.Helper()

	var buf bytes.Buffer
	w := binio.NewWriter(&buf, binary.BigEndian)
	w.U32(masterMagic)
	w.U16(VersionB)
	lw := binio.NewWriter(&buf, binary.LittleEndian)
	lw.Str16(indexName)
	lw.U32(uint32(len(resources))) //nolint:gosec // test sizes are small
	for _, r := range resources {
		lw.Str16(r)
	}
	if err := lw.Err(); err != nil {
		tb.Fatalf("build master index: %v", err)
	}
	return buf.Bytes()
}

// BuildContainerIndex encodes a per-container index for the given master
// version.
func BuildContainerIndex(tb testing.TB, version int, entries []TestEntry) []byte {
	tb.Helper()

	var buf bytes.Buffer
	w := binio.NewWriter(&buf, binary.BigEndian)
	w.U32(containerMagic)
	w.Zero(28)

	order := binary.ByteOrder(binary.BigEndian)
	if version == VersionB {
		order = binary.LittleEndian
	}
	ew := binio.NewWriter(&buf, order)
	ew.U32(uint32(len(entries))) //nolint:gosec // test sizes are small
	for _, e := range entries {
		if version == VersionB {
			ew.U32(e.Type)
			ew.U64(e.ID)
			ew.U64(e.Position)
			ew.U32(e.Compressed)
			ew.U32(e.Uncompressed)
			ew.U16(e.Selector)
			ew.Str16(e.Name)
			ew.Str16(e.Destination)
			continue
		}
		ew.U64(e.ID)
		ew.U32(e.Type)
		ew.Str16(e.Name)
		ew.Str16(e.Destination)
		ew.U16(e.Selector)
		ew.U64(e.Position)
		ew.U32(e.Uncompressed)
		ew.U32(e.Compressed)
	}
	if err := ew.Err(); err != nil {
		tb.Fatalf("build container index: %v", err)
	}
	return buf.Bytes()
}

// SelectorA packs a Schema A resource selector.
func SelectorA(index int, last bool) uint16 {
	sel := uint16(index&0x7FF) << 4 //nolint:gosec // masked to 11 bits
	if last {
		sel |= 0x8000
	}
	return sel
}
