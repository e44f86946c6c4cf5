// Package source provides uniform random access to addressable byte spaces:
// files on disk, in-memory buffers and the address space of another process.
//
// A ByteSource is position-free and safe for concurrent ReadAt calls. A
// Cursor layers a position, typed reads and pattern search on top of a
// ByteSource; cursors are single-owner and must not be shared between
// goroutines.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sentinel errors.
var (
	// ErrIOFault is returned when fewer bytes are available than requested.
	// Short reads are never retried.
	ErrIOFault = errors.New("source: short read")

	// ErrUnsupportedPlatform is returned when process memory access is not
	// implemented for the running operating system.
	ErrUnsupportedPlatform = errors.New("source: process memory access not supported on this platform")
)

// ByteSource provides random access to an addressable byte space.
//
// For files, addresses are offsets. For process memory, addresses are
// virtual addresses in the target process. SourceID must return a stable
// identifier for the underlying content.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// FileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so the size is cached at construction.
type FileSource struct {
	file     *os.File
	size     int64
	sourceID string
}

// OpenFile opens path for random access.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path) //nolint:gosec // caller-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	src, err := NewFileSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// NewFileSource creates a FileSource from an open file. The FileSource takes
// ownership of f.
func NewFileSource(f *os.File) (*FileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", f.Name(), err)
	}
	return &FileSource{file: f, size: info.Size(), sourceID: fileSourceID(f.Name(), info)}, nil
}

// ReadAt implements io.ReaderAt.
func (fs *FileSource) ReadAt(p []byte, off int64) (int, error) {
	return fs.file.ReadAt(p, off)
}

// Size returns the size of the file at open time.
func (fs *FileSource) Size() int64 {
	return fs.size
}

// SourceID returns a stable identifier for the file content.
func (fs *FileSource) SourceID() string {
	return fs.sourceID
}

// Name returns the path the file was opened with.
func (fs *FileSource) Name() string {
	return fs.file.Name()
}

// Close closes the underlying file.
func (fs *FileSource) Close() error {
	return fs.file.Close()
}

func fileSourceID(path string, info os.FileInfo) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return fmt.Sprintf("file:%s:%d:%d", absPath, info.Size(), info.ModTime().UnixNano())
}

// MemorySource is a ByteSource backed by a byte slice. Addresses start at
// Base, which lets tests lay out structures at realistic virtual addresses.
type MemorySource struct {
	data     []byte
	base     int64
	sourceID string
}

// NewMemorySource returns a source backed by data starting at address 0.
func NewMemorySource(data []byte) *MemorySource {
	return NewMemorySourceAt(data, 0)
}

// NewMemorySourceAt returns a source backed by data starting at base.
func NewMemorySourceAt(data []byte, base int64) *MemorySource {
	sum := sha256.Sum256(data)
	return &MemorySource{
		data:     data,
		base:     base,
		sourceID: "mem:" + hex.EncodeToString(sum[:]),
	}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MemorySource) ReadAt(p []byte, off int64) (int, error) {
	rel := off - m.base
	if rel < 0 || rel >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[rel:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the end address of the backing data.
func (m *MemorySource) Size() int64 {
	return m.base + int64(len(m.data))
}

// SourceID returns a content hash of the backing data at construction.
func (m *MemorySource) SourceID() string {
	return m.sourceID
}

// Base returns the address of the first byte.
func (m *MemorySource) Base() int64 {
	return m.base
}

// Bytes returns the backing slice for tests that need to mutate data.
func (m *MemorySource) Bytes() []byte {
	return m.data
}

// Interface compliance.
var (
	_ ByteSource = (*FileSource)(nil)
	_ ByteSource = (*MemorySource)(nil)
)
