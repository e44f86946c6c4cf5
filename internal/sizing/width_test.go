package sizing

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWidthFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		count uint64
		want  Width
	}{
		{0, Width8},
		{1, Width8},
		{0xFF, Width8},
		{0x100, Width16},
		{0xFFFF, Width16},
		{0x10000, Width32},
		{math.MaxUint32, Width32},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WidthFor(tt.count), "count %#x", tt.count)
		assert.LessOrEqual(t, tt.count, WidthFor(tt.count).Max())
	}
}

func TestIndexRoundTrip(t *testing.T) {
	t.Parallel()

	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		for _, w := range []Width{Width8, Width16, Width32} {
			buf := make([]byte, 4)
			v := uint32(w.Max())
			n := PutIndex(buf, order, w, v)
			assert.Equal(t, int(w), n)
			assert.Equal(t, v, Index(buf, order, w), "%s %s", order, w)
		}
	}
}

func TestWidthString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "u8", Width8.String())
	assert.Equal(t, "u16", Width16.String())
	assert.Equal(t, "u32", Width32.String())
	assert.Equal(t, "width(3)", Width(3).String())
}

func TestArithmetic(t *testing.T) {
	t.Parallel()

	errOverflow := errors.New("overflow")

	_, err := ToInt(math.MaxUint64, errOverflow)
	require.ErrorIs(t, err, errOverflow)
	v, err := ToInt(42, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, ok := AddUint64(math.MaxUint64, 1)
	assert.False(t, ok)
	_, ok = MulUint64(math.MaxUint64, 2)
	assert.False(t, ok)
	p, ok := MulUint64(1<<20, 1<<20)
	assert.True(t, ok)
	assert.Equal(t, uint64(1<<40), p)

	assert.True(t, InRange(10, 5, 15))
	assert.False(t, InRange(10, 6, 15))
	assert.False(t, InRange(math.MaxUint64, 2, math.MaxUint64))
}
