package codec

import (
	"fmt"
	"runtime"
	"unsafe"
)

// decompressFn is the C ABI of the native entry point:
//
//	int fn(const uint8_t *src, size_t srcLen, uint8_t *dst, size_t dstLen)
//
// A negative return is an error code; otherwise the decoded length.
type decompressFn func(src *byte, srcLen uintptr, dst *byte, dstLen uintptr) int32

// Native is a Binding backed by a shared library loaded at runtime.
type Native struct {
	lib    library
	symbol string
	fn     decompressFn
}

// LoadNative opens the shared library at path and binds symbol. An empty
// symbol selects DefaultSymbol.
func LoadNative(path, symbol string) (*Native, error) {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	lib, err := openLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", ErrCodecUnavailable, path, err)
	}
	addr, err := lib.lookup(symbol)
	if err != nil {
		_ = lib.close() //nolint:errcheck // lookup error takes precedence
		return nil, fmt.Errorf("%w: %s in %s: %w", ErrCodecUnavailable, symbol, path, err)
	}
	n := &Native{lib: lib, symbol: symbol}
	lib.bind(&n.fn, addr)
	return n, nil
}

// Symbol returns the bound function name.
func (n *Native) Symbol() string {
	return n.symbol
}

// Decompress implements Binding.
func (n *Native) Decompress(src, dst []byte) (int, error) {
	if len(src) == 0 || len(dst) == 0 {
		return 0, nil
	}
	rc := n.fn(unsafe.SliceData(src), uintptr(len(src)), unsafe.SliceData(dst), uintptr(len(dst)))
	runtime.KeepAlive(src)
	runtime.KeepAlive(dst)
	if rc < 0 {
		return 0, fmt.Errorf("%s returned %d", n.symbol, rc)
	}
	return int(rc), nil
}

// Close unloads the library.
func (n *Native) Close() error {
	return n.lib.close()
}

var _ Binding = (*Native)(nil)
