package source

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// stringChunk bounds each read issued by ReadCString. Chunks never cross a
// stringChunk-aligned boundary, so a terminator just before an unmapped page
// is found without touching that page.
const stringChunk = 64

// Cursor reads typed values from a ByteSource.
//
// A Cursor owns a position used by the sequential helpers; the address-taking
// methods ignore it. Cursors are not safe for concurrent use. Create one per
// request.
type Cursor struct {
	src ByteSource
	pos uint64
}

// NewCursor returns a cursor positioned at address 0.
func NewCursor(src ByteSource) *Cursor {
	return &Cursor{src: src}
}

// Source returns the underlying source.
func (c *Cursor) Source() ByteSource {
	return c.src
}

// Pos returns the current position.
func (c *Cursor) Pos() uint64 {
	return c.pos
}

// Seek moves the position to addr.
func (c *Cursor) Seek(addr uint64) {
	c.pos = addr
}

// ReadBytes reads exactly n bytes at addr. Fewer available bytes is an
// ErrIOFault; the read is not retried.
func (c *Cursor) ReadBytes(addr uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrIOFault, n)
	}
	buf := make([]byte, n)
	if err := c.ReadInto(addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadInto fills p from addr.
func (c *Cursor) ReadInto(addr uint64, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if addr > math.MaxInt64 {
		return fmt.Errorf("%w: address 0x%x out of range", ErrIOFault, addr)
	}
	n, err := c.src.ReadAt(p, int64(addr))
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %d of %d bytes at 0x%x", ErrIOFault, n, len(p), addr)
	}
	return fmt.Errorf("%w: %d of %d bytes at 0x%x: %w", ErrIOFault, n, len(p), addr, err)
}

// Next reads n bytes at the current position and advances it.
func (c *Cursor) Next(n int) ([]byte, error) {
	b, err := c.ReadBytes(c.pos, n)
	if err != nil {
		return nil, err
	}
	c.pos += uint64(n) //nolint:gosec // n validated non-negative by ReadBytes
	return b, nil
}

// Uint32At reads a little-endian uint32 at addr.
func (c *Cursor) Uint32At(addr uint64) (uint32, error) {
	var b [4]byte
	if err := c.ReadInto(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// Uint64At reads a little-endian uint64 at addr.
func (c *Cursor) Uint64At(addr uint64) (uint64, error) {
	var b [8]byte
	if err := c.ReadInto(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Int32At reads a little-endian int32 at addr.
func (c *Cursor) Int32At(addr uint64) (int32, error) {
	v, err := c.Uint32At(addr)
	return int32(v), err //nolint:gosec // bit reinterpretation
}

// ReadCString reads a zero-terminated string at addr. Reading stops at the
// first zero byte or after limit bytes, whichever comes first.
func (c *Cursor) ReadCString(addr uint64, limit int) (string, error) {
	var out []byte
	buf := make([]byte, stringChunk)
	for len(out) < limit {
		next := addr + uint64(len(out)) //nolint:gosec // len is non-negative
		if next > math.MaxInt64 {
			return "", fmt.Errorf("%w: address 0x%x out of range", ErrIOFault, next)
		}
		chunk := stringChunk - int(next%stringChunk)
		chunk = min(chunk, limit-len(out))
		// A short read still counts if the terminator landed in it.
		n, err := c.src.ReadAt(buf[:chunk], int64(next))
		if i := bytes.IndexByte(buf[:n], 0); i >= 0 {
			return string(append(out, buf[:i]...)), nil
		}
		if n < chunk {
			if err == nil || errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%w: unterminated string at 0x%x", ErrIOFault, addr)
			}
			return "", fmt.Errorf("%w: unterminated string at 0x%x: %w", ErrIOFault, addr, err)
		}
		out = append(out, buf[:n]...)
	}
	return string(out), nil
}

// ReadStruct reads exactly binary.Size(T) bytes at addr and decodes them as
// a little-endian fixed layout. On failure the zero value is returned.
func ReadStruct[T any](c *Cursor, addr uint64) (T, error) {
	var v T
	size := binary.Size(v)
	if size < 0 {
		return v, fmt.Errorf("source: %T has no fixed size", v)
	}
	buf, err := c.ReadBytes(addr, size)
	if err != nil {
		return v, err
	}
	if _, err := binary.Decode(buf, binary.LittleEndian, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("source: decode %T at 0x%x: %w", v, addr, err)
	}
	return v, nil
}

// ReadArray reads count contiguous fixed-layout values at addr with a single
// read.
func ReadArray[T any](c *Cursor, addr uint64, count int) ([]T, error) {
	if count < 0 {
		return nil, fmt.Errorf("source: negative count %d", count)
	}
	var zero T
	elem := binary.Size(zero)
	if elem < 0 {
		return nil, fmt.Errorf("source: %T has no fixed size", zero)
	}
	if count > 0 && elem > math.MaxInt/count {
		return nil, fmt.Errorf("%w: %d elements of %d bytes", ErrIOFault, count, elem)
	}
	buf, err := c.ReadBytes(addr, elem*count)
	if err != nil {
		return nil, err
	}
	out := make([]T, count)
	if count == 0 {
		return out, nil
	}
	if _, err := binary.Decode(buf, binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("source: decode %d×%T at 0x%x: %w", count, zero, addr, err)
	}
	return out, nil
}
