package cast

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/meigma/assetlift/internal/sizing"
	"github.com/meigma/assetlift/scene"
)

// PropType is a property's element type code.
type PropType uint16

// Property type codes.
const (
	TypeByte   PropType = 'b'
	TypeShort  PropType = 'h'
	TypeInt    PropType = 'i'
	TypeLong   PropType = 'l'
	TypeFloat  PropType = 'f'
	TypeDouble PropType = 'd'
	TypeString PropType = 's'
	TypeVec2   PropType = '2' | 'v'<<8
	TypeVec3   PropType = '3' | 'v'<<8
	TypeVec4   PropType = '4' | 'v'<<8
)

// ElemSize returns the encoded size of one element, or 0 for strings and
// unknown types.
func (t PropType) ElemSize() int {
	switch t {
	case TypeByte:
		return 1
	case TypeShort:
		return 2
	case TypeInt, TypeFloat:
		return 4
	case TypeLong, TypeDouble, TypeVec2:
		return 8
	case TypeVec3:
		return 12
	case TypeVec4:
		return 16
	default:
		return 0
	}
}

func (t PropType) String() string {
	if t>>8 == 0 {
		return string(rune(t))
	}
	return string([]byte{byte(t), byte(t >> 8)})
}

func indexType(w sizing.Width) PropType {
	switch w {
	case sizing.Width8:
		return TypeByte
	case sizing.Width16:
		return TypeShort
	default:
		return TypeInt
	}
}

// Property is a typed array of values in encoded little-endian form.
type Property struct {
	Type  PropType
	Count int
	data  []byte
}

var le = binary.LittleEndian

// String returns a string property.
func String(s string) Property {
	data := make([]byte, len(s)+1)
	copy(data, s)
	return Property{Type: TypeString, Count: 1, data: data}
}

// Byte returns a single-byte property.
func Byte(v uint8) Property {
	return Property{Type: TypeByte, Count: 1, data: []byte{v}}
}

// Int returns a single 32-bit property.
func Int(v int32) Property {
	return Property{Type: TypeInt, Count: 1, data: le.AppendUint32(nil, uint32(v))} //nolint:gosec // bit reinterpretation
}

// Float returns a single float property.
func Float(v float32) Property {
	return Floats([]float32{v})
}

// Floats returns a float array property.
func Floats(vs []float32) Property {
	data := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		data = le.AppendUint32(data, math.Float32bits(v))
	}
	return Property{Type: TypeFloat, Count: len(vs), data: data}
}

// Longs returns a 64-bit array property.
func Longs(vs []uint64) Property {
	data := make([]byte, 0, 8*len(vs))
	for _, v := range vs {
		data = le.AppendUint64(data, v)
	}
	return Property{Type: TypeLong, Count: len(vs), data: data}
}

// Indices returns an index array encoded at width w: bytes, shorts or ints.
func Indices(w sizing.Width, vs []uint32) Property {
	data := make([]byte, len(vs)*int(w))
	for i, v := range vs {
		sizing.PutIndex(data[i*int(w):], le, w, v)
	}
	return Property{Type: indexType(w), Count: len(vs), data: data}
}

// Vec2s returns a 2v array property.
func Vec2s(vs []scene.Vec2) Property {
	data := make([]byte, 0, 8*len(vs))
	for _, v := range vs {
		data = appendFloats(data, v[:])
	}
	return Property{Type: TypeVec2, Count: len(vs), data: data}
}

// Vec3s returns a 3v array property.
func Vec3s(vs []scene.Vec3) Property {
	data := make([]byte, 0, 12*len(vs))
	for _, v := range vs {
		data = appendFloats(data, v[:])
	}
	return Property{Type: TypeVec3, Count: len(vs), data: data}
}

// Vec4s returns a 4v array property.
func Vec4s(vs []scene.Vec4) Property {
	data := make([]byte, 0, 16*len(vs))
	for _, v := range vs {
		data = appendFloats(data, v[:])
	}
	return Property{Type: TypeVec4, Count: len(vs), data: data}
}

func appendFloats(data []byte, vs []float32) []byte {
	for _, f := range vs {
		data = le.AppendUint32(data, math.Float32bits(f))
	}
	return data
}

func (p Property) expect(t PropType) error {
	if p.Type != t {
		return fmt.Errorf("%w: property type %s, want %s", ErrFormat, p.Type, t)
	}
	return nil
}

// AsString decodes a string property.
func (p Property) AsString() (string, error) {
	if err := p.expect(TypeString); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(p.data, []byte{0})), nil
}

// AsInt decodes the first element of a byte, short or int property as a
// signed value.
func (p Property) AsInt() (int32, error) {
	if p.Count < 1 {
		return 0, fmt.Errorf("%w: empty %s property", ErrFormat, p.Type)
	}
	switch p.Type {
	case TypeByte:
		return int32(p.data[0]), nil
	case TypeShort:
		return int32(int16(le.Uint16(p.data))), nil //nolint:gosec // bit reinterpretation
	case TypeInt:
		return int32(le.Uint32(p.data)), nil //nolint:gosec // bit reinterpretation
	default:
		return 0, fmt.Errorf("%w: property type %s is not an integer", ErrFormat, p.Type)
	}
}

// AsIndices decodes an index array and checks it was written at width w.
func (p Property) AsIndices(w sizing.Width) ([]uint32, error) {
	if err := p.expect(indexType(w)); err != nil {
		return nil, err
	}
	out := make([]uint32, p.Count)
	for i := range out {
		out[i] = sizing.Index(p.data[i*int(w):], le, w)
	}
	return out, nil
}

// AsFloats decodes a float array.
func (p Property) AsFloats() ([]float32, error) {
	if err := p.expect(TypeFloat); err != nil {
		return nil, err
	}
	return floats(p.data, p.Count), nil
}

// AsLongs decodes a 64-bit array.
func (p Property) AsLongs() ([]uint64, error) {
	if err := p.expect(TypeLong); err != nil {
		return nil, err
	}
	out := make([]uint64, p.Count)
	for i := range out {
		out[i] = le.Uint64(p.data[i*8:])
	}
	return out, nil
}

// AsVec2s decodes a 2v array.
func (p Property) AsVec2s() ([]scene.Vec2, error) {
	if err := p.expect(TypeVec2); err != nil {
		return nil, err
	}
	fs := floats(p.data, 2*p.Count)
	out := make([]scene.Vec2, p.Count)
	for i := range out {
		out[i] = scene.Vec2(fs[2*i : 2*i+2])
	}
	return out, nil
}

// AsVec3s decodes a 3v array.
func (p Property) AsVec3s() ([]scene.Vec3, error) {
	if err := p.expect(TypeVec3); err != nil {
		return nil, err
	}
	fs := floats(p.data, 3*p.Count)
	out := make([]scene.Vec3, p.Count)
	for i := range out {
		out[i] = scene.Vec3(fs[3*i : 3*i+3])
	}
	return out, nil
}

// AsVec4s decodes a 4v array.
func (p Property) AsVec4s() ([]scene.Vec4, error) {
	if err := p.expect(TypeVec4); err != nil {
		return nil, err
	}
	fs := floats(p.data, 4*p.Count)
	out := make([]scene.Vec4, p.Count)
	for i := range out {
		out[i] = scene.Vec4(fs[4*i : 4*i+4])
	}
	return out, nil
}

func floats(data []byte, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(le.Uint32(data[i*4:]))
	}
	return out
}
