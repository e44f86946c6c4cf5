package sizing

import (
	"encoding/binary"
	"fmt"
)

// Width is the byte size of an index element in a width-adaptive stream.
type Width int

// Index widths.
const (
	Width8  Width = 1
	Width16 Width = 2
	Width32 Width = 4
)

// WidthFor returns the element width used to store indices into a
// collection of count items: 1 byte up to 0xFF, 2 bytes up to 0xFFFF,
// 4 bytes above that. Readers and writers must both derive widths from
// this function.
func WidthFor(count uint64) Width {
	switch {
	case count <= 0xFF:
		return Width8
	case count <= 0xFFFF:
		return Width16
	default:
		return Width32
	}
}

// Max returns the largest value representable at this width.
func (w Width) Max() uint64 {
	switch w {
	case Width8:
		return 0xFF
	case Width16:
		return 0xFFFF
	default:
		return 0xFFFFFFFF
	}
}

// String returns a short name for the width.
func (w Width) String() string {
	switch w {
	case Width8:
		return "u8"
	case Width16:
		return "u16"
	case Width32:
		return "u32"
	default:
		return fmt.Sprintf("width(%d)", int(w))
	}
}

// PutIndex encodes v at width w into b using order and returns the number
// of bytes written. b must have room for w bytes.
func PutIndex(b []byte, order binary.ByteOrder, w Width, v uint32) int {
	switch w {
	case Width8:
		b[0] = byte(v)
	case Width16:
		order.PutUint16(b, uint16(v)) //nolint:gosec // caller picked the width from the count
	default:
		order.PutUint32(b, v)
	}
	return int(w)
}

// Index decodes one element of width w from b using order.
func Index(b []byte, order binary.ByteOrder, w Width) uint32 {
	switch w {
	case Width8:
		return uint32(b[0])
	case Width16:
		return uint32(order.Uint16(b))
	default:
		return order.Uint32(b)
	}
}
