package index

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/assetlift/internal/binio"
)

// Minimum encoded entry sizes, used to reject impossible counts.
const (
	minEntrySizeA = 8 + 4 + 2 + 2 + 2 + 8 + 4 + 4
	minEntrySizeB = 4 + 8 + 8 + 4 + 4 + 2 + 2 + 2
)

// ParseContainerIndex decodes a per-container index. The magic is always
// big-endian; the entry count and records use the schema's byte order.
func ParseContainerIndex(data []byte, schema Schema, containerID int) ([]Entry, error) {
	r := binio.NewReader(data, binary.BigEndian)
	magic := r.U32()
	r.Skip(containerReserved)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: container header: %w", ErrFormat, err)
	}
	if magic != ContainerMagic {
		return nil, fmt.Errorf("%w: container magic 0x%08x", ErrFormat, magic)
	}

	r.SetOrder(schema.ByteOrder())
	var (
		count int
		read  func(*binio.Reader) Entry
	)
	switch schema {
	case SchemaA:
		count = r.Count(minEntrySizeA)
		read = readEntryA
	case SchemaB:
		count = r.Count(minEntrySizeB)
		read = readEntryB
	default:
		return nil, fmt.Errorf("%w: schema %d", ErrFormat, uint16(schema))
	}

	entries := make([]Entry, 0, count)
	for range count {
		e := read(r)
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrFormat, len(entries), err)
		}
		e.Container = containerID
		e.Selector.Schema = schema
		entries = append(entries, e)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: entry table: %w", ErrFormat, err)
	}
	return entries, nil
}

func readEntryA(r *binio.Reader) Entry {
	var e Entry
	e.ID = r.U64()
	e.Type = TypeTag(r.U32())
	e.Name = r.Str16()
	e.Destination = r.Str16()
	e.Selector.Raw = r.U16()
	e.Position = r.U64()
	e.UncompressedSize = r.U32()
	e.CompressedSize = r.U32()
	return e
}

func readEntryB(r *binio.Reader) Entry {
	var e Entry
	e.Type = TypeTag(r.U32())
	e.ID = r.U64()
	e.Position = r.U64()
	e.CompressedSize = r.U32()
	e.UncompressedSize = r.U32()
	e.Selector.Raw = r.U16()
	e.Name = r.Str16()
	e.Destination = r.Str16()
	return e
}
