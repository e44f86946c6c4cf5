package pool

import (
	"fmt"

	"github.com/meigma/assetlift/source"
)

// Kind identifies the asset type held by a pool.
type Kind int

// Pool kinds. The set is closed.
const (
	KindModel Kind = iota
	KindAnimation
	KindMaterial
	KindImage
)

// Kinds lists every pool kind in table order.
var Kinds = []Kind{KindModel, KindAnimation, KindMaterial, KindImage}

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindAnimation:
		return "animation"
	case KindMaterial:
		return "material"
	case KindImage:
		return "image"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("pool: unknown kind %q", s)
}

// Strategy returns the header strategy for k.
func (k Kind) Strategy() (Strategy, error) {
	if k < 0 || int(k) >= len(strategies) {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrLayout, int(k))
	}
	return strategies[k], nil
}

// Header is the kind-independent view of one decoded slot.
type Header struct {
	Address   uint64
	NamePtr   uint64
	StreamPtr uint64
	// Secondary holds the pointer fields compared against the placeholder
	// template, in a fixed per-kind order.
	Secondary []uint64
	// Detail is the kind-specific raw header.
	Detail any
}

// Summary carries the per-kind fields reported for Loaded slots. Fields that
// do not apply to a kind are zero.
type Summary struct {
	Bones     int
	Meshes    int
	Materials int
	Frames    int
	Framerate float32
	Textures  int
	Width     int
	Height    int
	Format    uint8
}

// Strategy describes one kind's header layout.
type Strategy interface {
	Kind() Kind
	Stride() uint32
	Decode(c *source.Cursor, addr uint64) (Header, error)
	Summarize(h Header) Summary
}

// Raw little-endian header layouts. Each begins with the name pointer and
// the stream descriptor pointer.

// ModelHeader is the 0x40-byte model header.
type ModelHeader struct {
	NamePtr       uint64
	StreamPtr     uint64
	BoneNamesPtr  uint64
	ParentsPtr    uint64
	MeshesPtr     uint64
	MaterialsPtr  uint64
	BoneCount     uint16
	MeshCount     uint16
	MaterialCount uint16
	_             [10]byte
}

// AnimationHeader is the 0x38-byte animation header.
type AnimationHeader struct {
	NamePtr      uint64
	StreamPtr    uint64
	BoneNamesPtr uint64
	DataPtr      uint64
	IndicesPtr   uint64
	FrameCount   uint16
	BoneCount    uint16
	Framerate    float32
	_            [8]byte
}

// MaterialHeader is the 0x28-byte material header.
type MaterialHeader struct {
	NamePtr      uint64
	StreamPtr    uint64
	TexturesPtr  uint64
	ConstantsPtr uint64
	TextureCount uint8
	_            [7]byte
}

// ImageHeader is the 0x28-byte image header.
type ImageHeader struct {
	NamePtr   uint64
	StreamPtr uint64
	MipsPtr   uint64
	Width     uint16
	Height    uint16
	Format    uint8
	_         [11]byte
}

var strategies = [...]Strategy{
	KindModel:     modelStrategy{},
	KindAnimation: animationStrategy{},
	KindMaterial:  materialStrategy{},
	KindImage:     imageStrategy{},
}

type modelStrategy struct{}

func (modelStrategy) Kind() Kind     { return KindModel }
func (modelStrategy) Stride() uint32 { return 0x40 }

func (modelStrategy) Decode(c *source.Cursor, addr uint64) (Header, error) {
	h, err := source.ReadStruct[ModelHeader](c, addr)
	if err != nil {
		return Header{}, err
	}
	return Header{
		Address:   addr,
		NamePtr:   h.NamePtr,
		StreamPtr: h.StreamPtr,
		Secondary: []uint64{h.StreamPtr, h.BoneNamesPtr, h.ParentsPtr, h.MeshesPtr, h.MaterialsPtr},
		Detail:    h,
	}, nil
}

func (modelStrategy) Summarize(h Header) Summary {
	d, _ := h.Detail.(ModelHeader) //nolint:errcheck // Detail is set by Decode
	return Summary{Bones: int(d.BoneCount), Meshes: int(d.MeshCount), Materials: int(d.MaterialCount)}
}

type animationStrategy struct{}

func (animationStrategy) Kind() Kind     { return KindAnimation }
func (animationStrategy) Stride() uint32 { return 0x38 }

func (animationStrategy) Decode(c *source.Cursor, addr uint64) (Header, error) {
	h, err := source.ReadStruct[AnimationHeader](c, addr)
	if err != nil {
		return Header{}, err
	}
	return Header{
		Address:   addr,
		NamePtr:   h.NamePtr,
		StreamPtr: h.StreamPtr,
		Secondary: []uint64{h.StreamPtr, h.BoneNamesPtr, h.DataPtr, h.IndicesPtr},
		Detail:    h,
	}, nil
}

func (animationStrategy) Summarize(h Header) Summary {
	d, _ := h.Detail.(AnimationHeader) //nolint:errcheck // Detail is set by Decode
	return Summary{Bones: int(d.BoneCount), Frames: int(d.FrameCount), Framerate: d.Framerate}
}

type materialStrategy struct{}

func (materialStrategy) Kind() Kind     { return KindMaterial }
func (materialStrategy) Stride() uint32 { return 0x28 }

func (materialStrategy) Decode(c *source.Cursor, addr uint64) (Header, error) {
	h, err := source.ReadStruct[MaterialHeader](c, addr)
	if err != nil {
		return Header{}, err
	}
	return Header{
		Address:   addr,
		NamePtr:   h.NamePtr,
		StreamPtr: h.StreamPtr,
		Secondary: []uint64{h.StreamPtr, h.TexturesPtr, h.ConstantsPtr},
		Detail:    h,
	}, nil
}

func (materialStrategy) Summarize(h Header) Summary {
	d, _ := h.Detail.(MaterialHeader) //nolint:errcheck // Detail is set by Decode
	return Summary{Textures: int(d.TextureCount)}
}

type imageStrategy struct{}

func (imageStrategy) Kind() Kind     { return KindImage }
func (imageStrategy) Stride() uint32 { return 0x28 }

func (imageStrategy) Decode(c *source.Cursor, addr uint64) (Header, error) {
	h, err := source.ReadStruct[ImageHeader](c, addr)
	if err != nil {
		return Header{}, err
	}
	return Header{
		Address:   addr,
		NamePtr:   h.NamePtr,
		StreamPtr: h.StreamPtr,
		Secondary: []uint64{h.StreamPtr, h.MipsPtr},
		Detail:    h,
	}, nil
}

func (imageStrategy) Summarize(h Header) Summary {
	d, _ := h.Detail.(ImageHeader) //nolint:errcheck // Detail is set by Decode
	return Summary{Width: int(d.Width), Height: int(d.Height), Format: d.Format}
}
