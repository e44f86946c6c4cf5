// Package cast reads and writes the Cast hierarchical node format.
//
// A file is a 16-byte header followed by one root node. Every node carries
// a type id, its total encoded size, a 64-bit identity hash, properties
// sorted by name and child nodes. The generic tree is exposed through Node
// and Property; WriteModel, WriteAnimation and Read map it to and from the
// scene graph.
package cast

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/meigma/assetlift/internal/assettype"
)

// ErrFormat is returned for malformed files.
var ErrFormat = assettype.ErrFormat

// Magic is the file tag "cast".
const Magic uint32 = 0x74736163

// Version is the only version read or written.
const Version = 1

// nodeHeaderSize covers id, size, hash, property count and child count.
const nodeHeaderSize = 4 + 4 + 8 + 4 + 4

// propHeaderSize covers type, name length and element count.
const propHeaderSize = 2 + 2 + 4

// maxDepth bounds node nesting on read.
const maxDepth = 32

// NodeID is a node's four-character type tag.
type NodeID uint32

// Node type ids.
const (
	NodeRoot       NodeID = 0x746F6F72 // root
	NodeModel      NodeID = 0x6C646F6D // modl
	NodeMesh       NodeID = 0x6873656D // mesh
	NodeBlendShape NodeID = 0x68736C62 // blsh
	NodeSkeleton   NodeID = 0x6C656B73 // skel
	NodeBone       NodeID = 0x656E6F62 // bone
	NodeAnimation  NodeID = 0x6D696E61 // anim
	NodeCurve      NodeID = 0x76727563 // curv
	NodeMaterial   NodeID = 0x6C74616D // matl
	NodeFile       NodeID = 0x656C6966 // file
)

// String returns the four-character tag.
func (id NodeID) String() string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(id))
	return string(b[:])
}

// Identity hashes a stable identity key into a node hash.
func Identity(key string) uint64 {
	return xxhash.Sum64String(key)
}

// Node is one element of the tree.
type Node struct {
	ID       NodeID
	Hash     uint64
	Props    map[string]Property
	Children []*Node
}

// NewNode returns a node with an identity derived from key.
func NewNode(id NodeID, key string) *Node {
	return &Node{ID: id, Hash: Identity(key), Props: make(map[string]Property)}
}

// Set stores a property and returns n for chaining.
func (n *Node) Set(name string, p Property) *Node {
	n.Props[name] = p
	return n
}

// Add appends a child.
func (n *Node) Add(child *Node) {
	n.Children = append(n.Children, child)
}

// ChildrenOf returns the children with the given id in order.
func (n *Node) ChildrenOf(id NodeID) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.ID == id {
			out = append(out, c)
		}
	}
	return out
}

// Prop returns the named property or an ErrFormat error naming the node.
func (n *Node) Prop(name string) (Property, error) {
	p, ok := n.Props[name]
	if !ok {
		return Property{}, fmt.Errorf("%w: %s node missing property %q", ErrFormat, n.ID, name)
	}
	return p, nil
}

// Size returns the encoded size of n including all descendants.
func (n *Node) Size() uint64 {
	size := uint64(nodeHeaderSize)
	for name, p := range n.Props {
		size += uint64(propHeaderSize + len(name) + len(p.data))
	}
	for _, c := range n.Children {
		size += c.Size()
	}
	return size
}
