// Package asset decodes raw model, skeleton, animation and material payloads
// into the canonical scene graph.
//
// Payloads are little-endian. Index streams (face vertices, weight bones,
// key frames, morph vertices) use the width chosen by sizing.WidthFor for
// the collection they index.
package asset

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/assetlift/internal/assettype"
	"github.com/meigma/assetlift/internal/binio"
)

// ErrFormat is returned for malformed payloads.
var ErrFormat = assettype.ErrFormat

// Payload magics.
var (
	MagicSkeleton  = [4]byte{'X', 'S', 'K', 'L'}
	MagicModel     = [4]byte{'X', 'M', 'D', 'L'}
	MagicAnimation = [4]byte{'X', 'A', 'N', 'M'}
	MagicMaterial  = [4]byte{'X', 'M', 'T', 'L'}
	MagicMorph     = [4]byte{'M', 'R', 'P', 'H'}
)

// Version is the only payload version understood.
const Version = 1

// Mesh stream presence bits.
const (
	HasPositions = 1 << iota
	HasNormals
	HasColours
	HasUVs
	HasWeights
)

// Animation channel bits.
const (
	ChannelTranslation = 1 << iota
	ChannelRotation
	ChannelScale
)

// Suffix names a model's companion skeleton entry: "<model>_skel".
const SkeletonSuffix = "_skel"

func open(data []byte, magic [4]byte) (*binio.Reader, error) {
	r := binio.NewReader(data, binary.LittleEndian)
	if !r.Expect(magic[:]) {
		return nil, fmt.Errorf("%w: expected %s payload", ErrFormat, magic[:])
	}
	if v := r.U16(); v != Version {
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("%w: %s header: %w", ErrFormat, magic[:], err)
		}
		return nil, fmt.Errorf("%w: %s version %d", ErrFormat, magic[:], v)
	}
	return r, nil
}

func finish(r *binio.Reader, what string) error {
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFormat, what, err)
	}
	return nil
}
