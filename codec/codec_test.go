package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func rawDeflateBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// nativeBlob frames payload with a family A header declaring size.
func nativeBlob(payload []byte, size uint32) []byte {
	out := make([]byte, headerSize, headerSize+len(payload))
	copy(out, marker)
	binary.LittleEndian.PutUint32(out[sizeOffset:], size)
	return append(out, payload...)
}

// repeatBinding expands a single byte to fill dst.
var repeatBinding = BindingFunc(func(src, dst []byte) (int, error) {
	if len(src) == 0 {
		return 0, errors.New("empty input")
	}
	for i := range dst {
		dst[i] = src[0]
	}
	return len(dst), nil
})

func TestDecompressFamilies(t *testing.T) {
	t.Parallel()

	plain := bytes.Repeat([]byte("vertex data "), 64)
	d, err := New(Config{}, WithBinding(repeatBinding))
	require.NoError(t, err)
	defer d.Close()

	tests := []struct {
		name   string
		data   []byte
		size   int
		family Family
		want   []byte
	}{
		{name: "uncompressed passthrough", data: plain, size: len(plain), family: FamilyNone, want: plain},
		{name: "zlib", data: zlibBytes(t, plain), size: len(plain), family: FamilyB, want: plain},
		{name: "raw deflate", data: rawDeflateBytes(t, plain), size: len(plain), family: FamilyB, want: plain},
		{name: "native", data: nativeBlob([]byte{'z'}, 16), size: 16, family: FamilyA, want: bytes.Repeat([]byte{'z'}, 16)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.family, Detect(tt.data, tt.size))
			got, err := d.Decompress(tt.data, tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	t.Parallel()

	plain := bytes.Repeat([]byte{1, 2, 3, 4}, 100)
	d, err := New(Config{}, WithBinding(BindingFunc(func(_, dst []byte) (int, error) {
		return len(dst) - 1, nil
	})))
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		size int
	}{
		{name: "zlib shorter than expected", data: zlibBytes(t, plain), size: len(plain) + 10},
		{name: "zlib longer than expected", data: zlibBytes(t, plain), size: len(plain) - 10},
		{name: "raw longer than expected", data: rawDeflateBytes(t, plain), size: len(plain) - 1},
		{name: "native short output", data: nativeBlob([]byte{9}, 32), size: 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := d.Decompress(tt.data, tt.size)
			require.ErrorIs(t, err, ErrSizeMismatch)
			require.ErrorIs(t, err, ErrCodec)
			assert.Nil(t, got)
		})
	}
}

func TestDecompressWithoutNative(t *testing.T) {
	t.Parallel()

	d, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, d.HasNative())

	_, err = d.Decompress(nativeBlob([]byte{1, 2, 3}, 64), 64)
	require.ErrorIs(t, err, ErrCodecUnavailable)
	require.ErrorIs(t, err, ErrCodec)

	plain := []byte("still works without the native codec")
	got, err := d.Decompress(zlibBytes(t, plain), len(plain))
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestDecompressBindingError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	d, err := New(Config{}, WithBinding(BindingFunc(func(_, _ []byte) (int, error) {
		return 0, boom
	})))
	require.NoError(t, err)

	_, err = d.DecompressBlob(Blob{Data: nativeBlob([]byte{1}, 4), ExpectedSize: 4})
	require.ErrorIs(t, err, ErrCodec)
	require.ErrorIs(t, err, boom)
}

func TestDecompressCorruptDeflate(t *testing.T) {
	t.Parallel()

	d, err := New(Config{})
	require.NoError(t, err)

	_, err = d.Decompress([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, 100)
	require.ErrorIs(t, err, ErrCodec)
}

func TestShortMarkerIsNotNative(t *testing.T) {
	t.Parallel()

	// Shorter than a full header: treated as Deflate, never as family A.
	assert.Equal(t, FamilyB, Detect([]byte("KRK\x00"), 10))
}

func TestIsZlibHeader(t *testing.T) {
	t.Parallel()

	assert.True(t, IsZlibHeader([]byte{0x78, 0x9C}))
	assert.True(t, IsZlibHeader([]byte{0x78, 0xDA}))
	assert.True(t, IsZlibHeader([]byte{0x78, 0x01}))
	assert.False(t, IsZlibHeader([]byte{0x78, 0x9D}), "bad FCHECK")
	assert.False(t, IsZlibHeader([]byte{0x78, 0xBB}), "preset dictionary")
	assert.False(t, IsZlibHeader([]byte{0x78}))
}

func TestLoadNativeMissingLibrary(t *testing.T) {
	t.Parallel()

	_, err := New(Config{LibraryPath: "/nonexistent/libcodec.so"})
	require.ErrorIs(t, err, ErrCodecUnavailable)
}

func TestInflatePoolConcurrent(t *testing.T) {
	t.Parallel()

	pool := NewInflatePool()
	plain := bytes.Repeat([]byte("concurrent "), 200)
	compressed := zlibBytes(t, plain)
	raw := rawDeflateBytes(t, plain)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src := compressed
			if i%2 == 0 {
				src = raw
			}
			got, err := pool.Inflate(src, len(plain))
			assert.NoError(t, err)
			assert.Equal(t, plain, got)
		}()
	}
	wg.Wait()
}
