package assetlift

import (
	"errors"

	"github.com/meigma/assetlift/codec"
	"github.com/meigma/assetlift/internal/assettype"
	"github.com/meigma/assetlift/source"
)

// Errors re-exported from the component packages.
var (
	// ErrFormat is returned for bad magic, an unknown version or truncated
	// data. It is fatal for the file being parsed.
	ErrFormat = assettype.ErrFormat

	// ErrBounds is returned when an entry's selector or byte range falls
	// outside its resource files.
	ErrBounds = assettype.ErrBounds

	// ErrUnsupported is returned for entry types and formats that cannot be
	// built or written.
	ErrUnsupported = assettype.ErrUnsupported

	// ErrSizeOverflow is returned when a size value overflows.
	ErrSizeOverflow = assettype.ErrSizeOverflow

	// ErrIOFault is returned when fewer bytes could be read than requested.
	ErrIOFault = source.ErrIOFault

	// ErrCodec is the root of every decompression failure.
	ErrCodec = codec.ErrCodec

	// ErrCodecUnavailable is returned for native-codec payloads when no
	// codec library is configured.
	ErrCodecUnavailable = codec.ErrCodecUnavailable

	// ErrSizeMismatch is returned when a payload decodes to a size other
	// than the one recorded in its entry.
	ErrSizeMismatch = codec.ErrSizeMismatch
)

// ErrNoIndex is returned by operations that need a resolved index before
// ResolveIndex has succeeded, or after Clear.
var ErrNoIndex = errors.New("assetlift: no index resolved")
