package index

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/assetlift/internal/assettype"
)

// Sentinel errors.
var (
	// ErrFormat is returned for bad magic, an unknown version, truncated
	// data or an invalid container reference. It is fatal for the file
	// being parsed.
	ErrFormat = assettype.ErrFormat

	// ErrBounds is returned when an entry's selector or byte range falls
	// outside its resource files. It is fatal for that entry only.
	ErrBounds = assettype.ErrBounds
)

// File magics, read big-endian.
const (
	MasterMagic    uint32 = 0x504B4749 // "PKGI"
	ContainerMagic uint32 = 0x504B4743 // "PKGC"
)

// containerReserved is the number of reserved bytes after the container
// index magic.
const containerReserved = 28

// Schema identifies the master index layout.
type Schema uint16

// Master index schemas, selected by the version field.
const (
	SchemaA Schema = 2
	SchemaB Schema = 3
)

// String returns "A" or "B".
func (s Schema) String() string {
	switch s {
	case SchemaA:
		return "A"
	case SchemaB:
		return "B"
	default:
		return fmt.Sprintf("schema(%d)", uint16(s))
	}
}

// ByteOrder returns the integer encoding used by the schema.
func (s Schema) ByteOrder() binary.ByteOrder {
	if s == SchemaA {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// TypeTag is the four-character asset type of an entry.
type TypeTag uint32

// Asset types.
const (
	TypeModel     TypeTag = 0x584D444C // XMDL
	TypeAnimation TypeTag = 0x58414E4D // XANM
	TypeSkeleton  TypeTag = 0x58534B4C // XSKL
	TypeMaterial  TypeTag = 0x584D544C // XMTL
	TypeImage     TypeTag = 0x58494D47 // XIMG
)

// DefaultExportable lists the types returned by Graph.Entries unless
// overridden with WithExportable.
var DefaultExportable = []TypeTag{TypeModel, TypeAnimation}

// String returns the four-character code.
func (t TypeTag) String() string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(t))
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return fmt.Sprintf("0x%08X", uint32(t))
		}
	}
	return string(b[:])
}

// ParseTypeTag parses a four-character code such as "XMDL".
func ParseTypeTag(s string) (TypeTag, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("index: type tag %q must be four characters", s)
	}
	return TypeTag(binary.BigEndian.Uint32([]byte(s))), nil
}

// Selector picks which of a container's resource files holds an entry.
type Selector struct {
	Raw    uint16
	Schema Schema
}

// Schema A selector packing.
const (
	selectorLast  = 0x8000
	selectorShift = 4
	selectorMask  = 0x7FF
)

// Resolve returns the resource index addressed by the selector for a
// container with count resource files.
func (s Selector) Resolve(count int) (int, error) {
	var idx int
	switch {
	case s.Schema == SchemaA && s.Raw&selectorLast != 0:
		idx = count - 1
	case s.Schema == SchemaA:
		idx = int(s.Raw>>selectorShift) & selectorMask
	default:
		idx = int(s.Raw)
	}
	if idx < 0 || idx >= count {
		return 0, fmt.Errorf("%w: selector 0x%04x resolves to resource %d of %d", ErrBounds, s.Raw, idx, count)
	}
	return idx, nil
}

// Entry is one asset record from a container index. Entries are values and
// immutable once parsed.
type Entry struct {
	ID               uint64
	Type             TypeTag
	Name             string
	Destination      string
	Position         uint64
	UncompressedSize uint32
	CompressedSize   uint32
	Container        int
	Selector         Selector
}

// String returns a short description for logs.
func (e Entry) String() string {
	return fmt.Sprintf("%s %s (container %d)", e.Type, e.Name, e.Container)
}

// Container groups resource files with the entries stored across them.
type Container struct {
	ID        int
	Dir       string
	IndexName string
	Resources []string
	Entries   []Entry

	seen map[string]struct{}
}

// IndexPath returns the path of the container's own index file.
func (c *Container) IndexPath() string {
	return joinPath(c.Dir, c.IndexName)
}

// addResource appends name unless the container already lists it.
func (c *Container) addResource(name string) {
	if c.seen == nil {
		c.seen = make(map[string]struct{}, len(c.Resources)+1)
		for _, r := range c.Resources {
			c.seen[r] = struct{}{}
		}
	}
	if _, ok := c.seen[name]; ok {
		return
	}
	c.seen[name] = struct{}{}
	c.Resources = append(c.Resources, name)
}

// Location is where an entry's bytes live on disk.
type Location struct {
	Path     string
	Offset   uint64
	Size     uint32
	FileSize int64
}
