package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// InflatePool manages reusable zlib and raw Deflate readers.
type InflatePool struct {
	zlib sync.Pool
	raw  sync.Pool
}

// NewInflatePool creates an empty pool. Readers are created on demand.
func NewInflatePool() *InflatePool {
	return &InflatePool{}
}

// IsZlibHeader reports whether b starts with a valid zlib stream header:
// Deflate method, a window of at most 32 KiB, no preset dictionary and a
// valid FCHECK.
func IsZlibHeader(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	cmf, flg := b[0], b[1]
	if cmf&0x0F != 8 || cmf>>4 > 7 || flg&0x20 != 0 {
		return false
	}
	return (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// Inflate decodes data as zlib when it carries a zlib header and as raw
// Deflate otherwise. The whole input is consumed as the stream; the output
// must be exactly expected bytes.
func (p *InflatePool) Inflate(data []byte, expected int) ([]byte, error) {
	src := bytes.NewReader(data)
	var (
		r       io.Reader
		release func()
		err     error
	)
	if IsZlibHeader(data) {
		r, release, err = p.getZlib(src)
	} else {
		r, release = p.getRaw(src)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}
	defer release()

	out := make([]byte, expected)
	n, err := io.ReadFull(r, out)
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF):
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, n, expected)
	case err != nil:
		return nil, fmt.Errorf("%w: inflate: %w", ErrCodec, err)
	}

	var extra [1]byte
	if m, err := r.Read(extra[:]); m > 0 {
		return nil, fmt.Errorf("%w: stream longer than %d bytes", ErrSizeMismatch, expected)
	} else if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: inflate: %w", ErrCodec, err)
	}
	return out, nil
}

func (p *InflatePool) getZlib(src io.Reader) (io.Reader, func(), error) {
	if v, ok := p.zlib.Get().(io.ReadCloser); ok {
		if err := v.(zlib.Resetter).Reset(src, nil); err == nil { //nolint:errcheck,forcetypeassert // pool only holds zlib readers
			return v, func() { p.zlib.Put(v) }, nil
		}
	}
	zr, err := zlib.NewReader(src)
	if err != nil {
		return nil, nil, err
	}
	return zr, func() { p.zlib.Put(zr) }, nil
}

func (p *InflatePool) getRaw(src io.Reader) (io.Reader, func()) {
	if v, ok := p.raw.Get().(io.ReadCloser); ok {
		if err := v.(flate.Resetter).Reset(src, nil); err == nil { //nolint:errcheck,forcetypeassert // pool only holds flate readers
			return v, func() { p.raw.Put(v) }
		}
	}
	fr := flate.NewReader(src)
	return fr, func() { p.raw.Put(fr) }
}
