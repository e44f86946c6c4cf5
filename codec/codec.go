// Package codec decompresses asset payloads.
//
// Two codec families are supported. Family A is a proprietary format
// identified by a "KRK" header and decoded by a native library bound at
// runtime. Family B is Deflate, either zlib-wrapped or raw. Payloads whose
// size already equals the expected size are returned unchanged.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
)

// Sentinel errors. ErrCodecUnavailable and ErrSizeMismatch wrap ErrCodec.
var (
	// ErrCodec is the root of every decompression failure.
	ErrCodec = errors.New("codec: decompression failed")

	// ErrCodecUnavailable is returned for family A payloads when no native
	// binding is configured.
	ErrCodecUnavailable = fmt.Errorf("%w: native codec unavailable", ErrCodec)

	// ErrSizeMismatch is returned when the decoded length differs from the
	// expected size. Output is never truncated or padded.
	ErrSizeMismatch = fmt.Errorf("%w: decoded size mismatch", ErrCodec)
)

// Family A header layout.
const (
	markerLen  = 3
	headerSize = 12
	sizeOffset = 8
)

var marker = []byte("KRK")

// Family identifies the codec family chosen for a payload.
type Family int

// Codec families.
const (
	FamilyNone Family = iota
	FamilyA
	FamilyB
)

// String returns the family name.
func (f Family) String() string {
	switch f {
	case FamilyA:
		return "native"
	case FamilyB:
		return "deflate"
	default:
		return "none"
	}
}

// Blob is a compressed payload together with its expected decoded size.
type Blob struct {
	Data         []byte
	ExpectedSize int
}

// Config selects the native library providing family A.
//
// An empty LibraryPath yields a dispatcher without family A; uncompressed
// and Deflate payloads still decode.
type Config struct {
	// LibraryPath is the shared library to load.
	LibraryPath string
	// Symbol is the exported decompress function. Defaults to DefaultSymbol.
	Symbol string
}

// DefaultSymbol is the exported function looked up when Config.Symbol is
// empty.
const DefaultSymbol = "Kraken_Decompress"

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBinding installs b as the family A implementation. It takes precedence
// over Config.LibraryPath.
func WithBinding(b Binding) Option {
	return func(d *Dispatcher) {
		d.binding = b
	}
}

// WithLogger sets the logger used for codec selection events.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Dispatcher selects a codec family per payload and decodes it.
//
// The binding is fixed at construction, so a Dispatcher is safe for
// concurrent use. Close must only be called after all in-flight
// Decompress calls have returned.
type Dispatcher struct {
	binding Binding
	native  *Native
	inflate *InflatePool
	logger  *slog.Logger
}

// New creates a Dispatcher. When cfg.LibraryPath is set and no binding was
// injected, the library is loaded once here.
func New(cfg Config, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{inflate: NewInflatePool()}
	for _, opt := range opts {
		opt(d)
	}
	if d.binding == nil && cfg.LibraryPath != "" {
		native, err := LoadNative(cfg.LibraryPath, cfg.Symbol)
		if err != nil {
			return nil, err
		}
		d.native = native
		d.binding = native
		d.log().Debug("native codec loaded", "path", cfg.LibraryPath, "symbol", native.Symbol())
	}
	return d, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (d *Dispatcher) log() *slog.Logger {
	if d.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.logger
}

// HasNative reports whether family A payloads can be decoded.
func (d *Dispatcher) HasNative() bool {
	return d.binding != nil
}

// Close releases the native library, if one was loaded by New.
func (d *Dispatcher) Close() error {
	if d.native == nil {
		return nil
	}
	err := d.native.Close()
	d.native = nil
	d.binding = nil
	return err
}

// Detect reports the family that Decompress would choose for data.
func Detect(data []byte, expected int) Family {
	switch {
	case len(data) >= headerSize && bytes.Equal(data[:markerLen], marker):
		return FamilyA
	case len(data) == expected:
		return FamilyNone
	default:
		return FamilyB
	}
}

// DecompressBlob decodes b.
func (d *Dispatcher) DecompressBlob(b Blob) ([]byte, error) {
	return d.Decompress(b.Data, b.ExpectedSize)
}

// Decompress decodes data into exactly expected bytes.
func (d *Dispatcher) Decompress(data []byte, expected int) ([]byte, error) {
	if expected < 0 {
		return nil, fmt.Errorf("%w: negative expected size %d", ErrCodec, expected)
	}
	switch family := Detect(data, expected); family {
	case FamilyA:
		return d.decompressNative(data, expected)
	case FamilyNone:
		return data, nil
	default:
		out, err := d.inflate.Inflate(data, expected)
		if err != nil {
			return nil, err
		}
		d.log().Debug("inflated payload", "compressed", len(data), "size", expected)
		return out, nil
	}
}

func (d *Dispatcher) decompressNative(data []byte, expected int) ([]byte, error) {
	if d.binding == nil {
		return nil, ErrCodecUnavailable
	}
	if declared := binary.LittleEndian.Uint32(data[sizeOffset:headerSize]); uint64(declared) != uint64(expected) { //nolint:gosec // expected checked non-negative
		d.log().Debug("native header size differs from expected", "declared", declared, "expected", expected)
	}
	dst := make([]byte, expected)
	n, err := d.binding.Decompress(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}
	if n != expected {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, n, expected)
	}
	return dst, nil
}
