// Package export serializes scene graphs to the supported file formats.
package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/assetlift/export/cast"
	"github.com/meigma/assetlift/export/semodel"
	"github.com/meigma/assetlift/internal/assettype"
	"github.com/meigma/assetlift/scene"
)

// ErrUnsupported is returned when a scene cannot be written in a format.
var ErrUnsupported = assettype.ErrUnsupported

// Format selects an output format.
type Format uint8

// Supported formats.
const (
	FormatSEModel Format = iota + 1
	FormatCast
)

// String returns the format's lower-case name.
func (f Format) String() string {
	switch f {
	case FormatSEModel:
		return "semodel"
	case FormatCast:
		return "cast"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string {
	return "." + f.String()
}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "semodel":
		return FormatSEModel, nil
	case "cast":
		return FormatCast, nil
	default:
		return 0, fmt.Errorf("%w: format %q", ErrUnsupported, s)
	}
}

// Supports reports whether sc can be written as f. SEModel holds models
// only.
func (f Format) Supports(sc *scene.Scene) bool {
	switch f {
	case FormatSEModel:
		return sc.Model != nil && sc.Animation == nil
	case FormatCast:
		return sc.Model != nil || sc.Animation != nil
	default:
		return false
	}
}

// Write validates sc and encodes it to w.
func Write(sc *scene.Scene, format Format, w io.Writer) error {
	if !format.Supports(sc) {
		return fmt.Errorf("%w: %s cannot hold scene %q", ErrUnsupported, format, sc.Name)
	}
	if err := sc.Validate(); err != nil {
		return err
	}
	switch format {
	case FormatSEModel:
		return semodel.Write(w, sc.Model)
	default:
		return cast.Write(w, sc)
	}
}

// Read decodes a file written in format. SEModel files carry no scene
// name, so name is used for them.
func Read(data []byte, format Format, name string) (*scene.Scene, error) {
	switch format {
	case FormatSEModel:
		m, err := semodel.Read(data)
		if err != nil {
			return nil, err
		}
		return &scene.Scene{Name: name, Model: m}, nil
	case FormatCast:
		return cast.Read(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
}

// WriteFile encodes sc to path. The file is written to a temporary file in
// the same directory and renamed into place, so a failed export never
// leaves a partial file at path. Parent directories are created.
func WriteFile(sc *scene.Scene, format Format, path string) error {
	var buf bytes.Buffer
	if err := Write(sc, format, &buf); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()        //nolint:errcheck // cleaning up
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
