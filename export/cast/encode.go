package cast

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"

	"github.com/meigma/assetlift/internal/assettype"
	"github.com/meigma/assetlift/internal/binio"
)

// Encode writes the file header and root. Properties are written sorted by
// name; node sizes are computed bottom-up.
func Encode(w io.Writer, root *Node) error {
	if root.Size() > math.MaxUint32 {
		return fmt.Errorf("%w: cast tree exceeds 4 GiB", assettype.ErrSizeOverflow)
	}
	bw := bufio.NewWriter(w)
	out := binio.NewWriter(bw, binary.LittleEndian)
	out.U32(Magic)
	out.U32(Version)
	out.U32(1)
	out.U32(0)
	encodeNode(out, root)
	if err := out.Err(); err != nil {
		return fmt.Errorf("cast: write: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("cast: flush: %w", err)
	}
	return nil
}

func encodeNode(out *binio.Writer, n *Node) {
	out.U32(uint32(n.ID))
	out.U32(uint32(n.Size())) //nolint:gosec // checked against MaxUint32 in Encode
	out.U64(n.Hash)
	out.U32(uint32(len(n.Props)))    //nolint:gosec // small
	out.U32(uint32(len(n.Children))) //nolint:gosec // small

	for _, name := range slices.Sorted(maps.Keys(n.Props)) {
		p := n.Props[name]
		out.U16(uint16(p.Type))
		out.U16(uint16(len(name))) //nolint:gosec // property names are short
		out.U32(uint32(p.Count))   //nolint:gosec // bounded by the tree size check
		out.Bytes([]byte(name))
		out.Bytes(p.data)
	}
	for _, c := range n.Children {
		encodeNode(out, c)
	}
}
