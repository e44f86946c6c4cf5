// Package binio provides sticky-error binary readers and writers used by the
// index parsers, payload readers and exporters.
//
// The first failure is latched: subsequent calls return zero values and
// Err reports the original cause, so parsers can read a whole record and
// check once.
package binio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/meigma/assetlift/internal/sizing"
)

// ErrTruncated is returned when a read runs past the end of the buffer.
var ErrTruncated = errors.New("truncated data")

// Reader decodes values from an in-memory buffer.
type Reader struct {
	buf   []byte
	off   int
	order binary.ByteOrder
	err   error
}

// NewReader returns a Reader over buf using the given byte order.
func NewReader(buf []byte, order binary.ByteOrder) *Reader {
	return &Reader{buf: buf, order: order}
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error {
	return r.err
}

// Offset returns the current read offset.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Order returns the reader's byte order.
func (r *Reader) Order() binary.ByteOrder {
	return r.order
}

// SetOrder switches the byte order for subsequent reads.
func (r *Reader) SetOrder(order binary.ByteOrder) {
	r.order = order
}

// Fail latches err unless an earlier error is already recorded.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Bytes returns the next n bytes. The slice aliases the buffer.
func (r *Reader) Bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.buf)-r.off {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, len(r.buf)-r.off)
		r.off = len(r.buf)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Skip advances past n bytes.
func (r *Reader) Skip(n int) {
	r.Bytes(n)
}

// Expect consumes len(tag) bytes and reports whether they equal tag.
func (r *Reader) Expect(tag []byte) bool {
	b := r.Bytes(len(tag))
	return b != nil && bytes.Equal(b, tag)
}

// Peek reports whether the unread data starts with tag without consuming it.
func (r *Reader) Peek(tag []byte) bool {
	return r.err == nil && bytes.HasPrefix(r.buf[r.off:], tag)
}

// U8 reads one byte.
func (r *Reader) U8() uint8 {
	b := r.Bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// U16 reads a 16-bit unsigned integer.
func (r *Reader) U16() uint16 {
	b := r.Bytes(2)
	if b == nil {
		return 0
	}
	return r.order.Uint16(b)
}

// U32 reads a 32-bit unsigned integer.
func (r *Reader) U32() uint32 {
	b := r.Bytes(4)
	if b == nil {
		return 0
	}
	return r.order.Uint32(b)
}

// U64 reads a 64-bit unsigned integer.
func (r *Reader) U64() uint64 {
	b := r.Bytes(8)
	if b == nil {
		return 0
	}
	return r.order.Uint64(b)
}

// I16 reads a 16-bit signed integer.
func (r *Reader) I16() int16 {
	return int16(r.U16()) //nolint:gosec // bit reinterpretation
}

// I32 reads a 32-bit signed integer.
func (r *Reader) I32() int32 {
	return int32(r.U32()) //nolint:gosec // bit reinterpretation
}

// I64 reads a 64-bit signed integer.
func (r *Reader) I64() int64 {
	return int64(r.U64()) //nolint:gosec // bit reinterpretation
}

// F32 reads an IEEE-754 single.
func (r *Reader) F32() float32 {
	return math.Float32frombits(r.U32())
}

// F64 reads an IEEE-754 double.
func (r *Reader) F64() float64 {
	return math.Float64frombits(r.U64())
}

// Index reads one width-adaptive index element.
func (r *Reader) Index(w sizing.Width) uint32 {
	b := r.Bytes(int(w))
	if b == nil {
		return 0
	}
	return sizing.Index(b, r.order, w)
}

// Str16 reads a string prefixed by a 16-bit length.
func (r *Reader) Str16() string {
	n := r.U16()
	return string(r.Bytes(int(n)))
}

// CString reads a zero-terminated string and consumes the terminator.
func (r *Reader) CString() string {
	if r.err != nil {
		return ""
	}
	i := bytes.IndexByte(r.buf[r.off:], 0)
	if i < 0 {
		r.err = fmt.Errorf("%w: unterminated string at offset %d", ErrTruncated, r.off)
		r.off = len(r.buf)
		return ""
	}
	s := string(r.buf[r.off : r.off+i])
	r.off += i + 1
	return s
}

// Vec2 reads two singles.
func (r *Reader) Vec2() [2]float32 {
	return [2]float32{r.F32(), r.F32()}
}

// Vec3 reads three singles.
func (r *Reader) Vec3() [3]float32 {
	return [3]float32{r.F32(), r.F32(), r.F32()}
}

// Vec4 reads four singles.
func (r *Reader) Vec4() [4]float32 {
	return [4]float32{r.F32(), r.F32(), r.F32(), r.F32()}
}

// Count reads a 32-bit element count and rejects counts whose elements
// could not fit in the remaining data, so corrupt headers fail before
// large allocations.
func (r *Reader) Count(elemSize int) int {
	n := r.U32()
	if r.err != nil {
		return 0
	}
	if elemSize > 0 && uint64(n)*uint64(elemSize) > uint64(r.Remaining()) { //nolint:gosec // Remaining is non-negative
		r.err = fmt.Errorf("%w: count %d of %d-byte elements exceeds remaining %d bytes", ErrTruncated, n, elemSize, r.Remaining())
		return 0
	}
	return int(n)
}
