// Package assettype holds the sentinel errors shared by the index, payload
// and export packages.
package assettype

import "errors"

// Sentinel errors for asset operations.
var (
	// ErrFormat is returned for bad magic, an unknown version or truncated
	// data. It is fatal for the file or payload being parsed.
	ErrFormat = errors.New("assetlift: invalid format")

	// ErrBounds is returned when a computed offset, size or selector falls
	// outside its file. It is fatal for that entry only.
	ErrBounds = errors.New("assetlift: out of bounds")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("assetlift: size overflow")

	// ErrUnsupported is returned when a scene cannot be written in the
	// requested format.
	ErrUnsupported = errors.New("assetlift: unsupported")
)
