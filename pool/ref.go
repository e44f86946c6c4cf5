package pool

import (
	"fmt"

	"github.com/meigma/assetlift/source"
)

// Ref names a pointer-sized field: the field at Offset bytes past Base.
// Multi-hop chains are expressed as a sequence of Refs, each resolved
// through Resolve, never through raw pointer arithmetic on host memory.
type Ref struct {
	Base   uint64
	Offset uint64
}

// Field returns the Ref for a field of the structure at base.
func Field(base, offset uint64) Ref {
	return Ref{Base: base, Offset: offset}
}

// Addr returns the address of the referenced field.
func (r Ref) Addr() uint64 {
	return r.Base + r.Offset
}

// Resolve reads the pointer stored at r.
func Resolve(c *source.Cursor, r Ref) (uint64, error) {
	v, err := c.Uint64At(r.Addr())
	if err != nil {
		return 0, fmt.Errorf("resolve 0x%x+0x%x: %w", r.Base, r.Offset, err)
	}
	return v, nil
}

// Chase resolves a chain of field offsets starting at base: each hop reads a
// pointer at the previous address plus the offset.
func Chase(c *source.Cursor, base uint64, offsets ...uint64) (uint64, error) {
	addr := base
	for _, off := range offsets {
		next, err := Resolve(c, Field(addr, off))
		if err != nil {
			return 0, err
		}
		if next == 0 {
			return 0, fmt.Errorf("%w: null pointer at 0x%x+0x%x", ErrLayout, addr, off)
		}
		addr = next
	}
	return addr, nil
}

// Stream describes a payload referenced by a header's stream pointer.
type Stream struct {
	DataPtr          uint64
	CompressedSize   uint32
	UncompressedSize uint32
}

// streamPtrOffset is the offset of the stream pointer in every header.
const streamPtrOffset = 8

// ReadStream follows the header at slot to its stream descriptor.
func ReadStream(c *source.Cursor, slot uint64) (Stream, error) {
	desc, err := Chase(c, slot, streamPtrOffset)
	if err != nil {
		return Stream{}, err
	}
	return source.ReadStruct[Stream](c, desc)
}
