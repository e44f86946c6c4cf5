package cast

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/meigma/assetlift/internal/binio"
)

// Decode parses a file and returns its root node. Every node's declared
// size must equal the bytes its header, properties and children occupy.
func Decode(data []byte) (*Node, error) {
	r := binio.NewReader(data, binary.LittleEndian)
	magic, version, roots := r.U32(), r.U32(), r.U32()
	r.Skip(4)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: cast header: %w", ErrFormat, err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: not a cast file", ErrFormat)
	}
	if version != Version || roots != 1 {
		return nil, fmt.Errorf("%w: cast version %d with %d roots", ErrFormat, version, roots)
	}
	root, err := decodeNode(r, 0)
	if err != nil {
		return nil, err
	}
	if root.ID != NodeRoot {
		return nil, fmt.Errorf("%w: first node is %s, want root", ErrFormat, root.ID)
	}
	return root, nil
}

func decodeNode(r *binio.Reader, depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: cast nodes nested deeper than %d", ErrFormat, maxDepth)
	}
	start := r.Offset()
	n := &Node{ID: NodeID(r.U32())}
	size := r.U32()
	n.Hash = r.U64()
	props := r.Count(propHeaderSize)
	children := r.Count(nodeHeaderSize)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: cast node header: %w", ErrFormat, err)
	}
	if uint64(size) < nodeHeaderSize || uint64(size) > uint64(r.Remaining()+nodeHeaderSize) { //nolint:gosec // Remaining is non-negative
		return nil, fmt.Errorf("%w: %s node size %d", ErrFormat, n.ID, size)
	}

	n.Props = make(map[string]Property, props)
	for range props {
		name, p, err := decodeProp(r)
		if err != nil {
			return nil, fmt.Errorf("%s node: %w", n.ID, err)
		}
		if _, dup := n.Props[name]; dup {
			return nil, fmt.Errorf("%w: %s node repeats property %q", ErrFormat, n.ID, name)
		}
		n.Props[name] = p
	}
	for range children {
		c, err := decodeNode(r, depth+1)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, c)
	}
	if used := r.Offset() - start; uint64(used) != uint64(size) { //nolint:gosec // offsets are non-negative
		return nil, fmt.Errorf("%w: %s node declares %d bytes, holds %d", ErrFormat, n.ID, size, used)
	}
	return n, nil
}

func decodeProp(r *binio.Reader) (string, Property, error) {
	p := Property{Type: PropType(r.U16())}
	nameLen := int(r.U16())
	count := r.U32()
	name := string(r.Bytes(nameLen))
	if err := r.Err(); err != nil {
		return "", p, fmt.Errorf("%w: cast property: %w", ErrFormat, err)
	}

	if p.Type == TypeString {
		if count != 1 {
			return "", p, fmt.Errorf("%w: string property %q has %d values", ErrFormat, name, count)
		}
		s := r.CString()
		if err := r.Err(); err != nil {
			return "", p, fmt.Errorf("%w: property %q: %w", ErrFormat, name, err)
		}
		p.Count = 1
		p.data = append([]byte(s), 0)
		return name, p, nil
	}

	elem := p.Type.ElemSize()
	if elem == 0 {
		return "", p, fmt.Errorf("%w: property %q has unknown type %#x", ErrFormat, name, uint16(p.Type))
	}
	if uint64(count)*uint64(elem) > uint64(r.Remaining()) { //nolint:gosec // Remaining is non-negative
		return "", p, fmt.Errorf("%w: property %q holds %d values past end of data", ErrFormat, name, count)
	}
	p.Count = int(count)
	p.data = bytes.Clone(r.Bytes(p.Count * elem))
	return name, p, nil
}
