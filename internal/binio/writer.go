package binio

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/meigma/assetlift/internal/sizing"
)

// Writer encodes values to an io.Writer with a latched error.
type Writer struct {
	w       io.Writer
	order   binary.ByteOrder
	n       int64
	err     error
	scratch [8]byte
}

// NewWriter returns a Writer encoding with the given byte order.
func NewWriter(w io.Writer, order binary.ByteOrder) *Writer {
	return &Writer{w: w, order: order}
}

// Err returns the first write error, if any.
func (w *Writer) Err() error {
	return w.err
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int64 {
	return w.n
}

// Bytes writes p verbatim.
func (w *Writer) Bytes(p []byte) {
	if w.err != nil || len(p) == 0 {
		return
	}
	n, err := w.w.Write(p)
	w.n += int64(n)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	w.err = err
}

// Zero writes n zero bytes.
func (w *Writer) Zero(n int) {
	var z [16]byte
	for n > 0 {
		k := min(n, len(z))
		w.Bytes(z[:k])
		n -= k
	}
}

// U8 writes one byte.
func (w *Writer) U8(v uint8) {
	w.scratch[0] = v
	w.Bytes(w.scratch[:1])
}

// Bool writes 1 for true and 0 for false.
func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
		return
	}
	w.U8(0)
}

// U16 writes a 16-bit unsigned integer.
func (w *Writer) U16(v uint16) {
	w.order.PutUint16(w.scratch[:2], v)
	w.Bytes(w.scratch[:2])
}

// U32 writes a 32-bit unsigned integer.
func (w *Writer) U32(v uint32) {
	w.order.PutUint32(w.scratch[:4], v)
	w.Bytes(w.scratch[:4])
}

// U64 writes a 64-bit unsigned integer.
func (w *Writer) U64(v uint64) {
	w.order.PutUint64(w.scratch[:8], v)
	w.Bytes(w.scratch[:8])
}

// I16 writes a 16-bit signed integer.
func (w *Writer) I16(v int16) {
	w.U16(uint16(v)) //nolint:gosec // bit reinterpretation
}

// I32 writes a 32-bit signed integer.
func (w *Writer) I32(v int32) {
	w.U32(uint32(v)) //nolint:gosec // bit reinterpretation
}

// I64 writes a 64-bit signed integer.
func (w *Writer) I64(v int64) {
	w.U64(uint64(v)) //nolint:gosec // bit reinterpretation
}

// F32 writes an IEEE-754 single.
func (w *Writer) F32(v float32) {
	w.U32(math.Float32bits(v))
}

// F64 writes an IEEE-754 double.
func (w *Writer) F64(v float64) {
	w.U64(math.Float64bits(v))
}

// Index writes v at width wd.
func (w *Writer) Index(wd sizing.Width, v uint32) {
	sizing.PutIndex(w.scratch[:], w.order, wd, v)
	w.Bytes(w.scratch[:wd])
}

// Str16 writes s prefixed by a 16-bit length. Longer strings are truncated
// to 0xFFFF bytes.
func (w *Writer) Str16(s string) {
	if len(s) > 0xFFFF {
		s = s[:0xFFFF]
	}
	w.U16(uint16(len(s))) //nolint:gosec // clamped above
	w.Bytes([]byte(s))
}

// CString writes s followed by a zero byte.
func (w *Writer) CString(s string) {
	w.Bytes([]byte(s))
	w.U8(0)
}

// Vec2 writes two singles.
func (w *Writer) Vec2(v [2]float32) {
	w.F32(v[0])
	w.F32(v[1])
}

// Vec3 writes three singles.
func (w *Writer) Vec3(v [3]float32) {
	w.F32(v[0])
	w.F32(v[1])
	w.F32(v[2])
}

// Vec4 writes four singles.
func (w *Writer) Vec4(v [4]float32) {
	w.F32(v[0])
	w.F32(v[1])
	w.F32(v[2])
	w.F32(v[3])
}
