package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/meigma/assetlift/internal/binio"
	"github.com/meigma/assetlift/internal/sizing"
	"github.com/meigma/assetlift/scene"
)

// Raw payload layout constants, mirrored from the asset package.
const (
	payloadVersion = 1

	hasPositions = 1
	hasNormals   = 2
	hasColours   = 4
	hasUVs       = 8
	hasWeights   = 16
)

func u32(n int) uint32 {
	return uint32(n) //nolint:gosec // test sizes fit
}

func u8(n int) uint8 {
	return uint8(n) //nolint:gosec // test sizes fit
}

func payloadWriter(buf *bytes.Buffer, magic string) *binio.Writer {
	w := binio.NewWriter(buf, binary.LittleEndian)
	w.Bytes([]byte(magic))
	w.U16(payloadVersion)
	return w
}

func finish(tb testing.TB, w *binio.Writer, buf *bytes.Buffer) []byte {
	tb.Helper()
	if err := w.Err(); err != nil {
		tb.Fatalf("encode payload: %v", err)
	}
	return buf.Bytes()
}

// EncodeSkeleton encodes sk as an XSKL payload.
func EncodeSkeleton(tb testing.TB, sk *scene.Skeleton) []byte {
	tb.Helper()
	parents, err := sk.ParentIndices()
	if err != nil {
		tb.Fatalf("encode skeleton: %v", err)
	}
	var buf bytes.Buffer
	w := payloadWriter(&buf, "XSKL")
	w.U32(u32(len(sk.Bones)))
	for i, b := range sk.Bones {
		w.Str16(b.Name)
		w.I32(parents[i])
		w.Vec3(b.Position)
		w.Vec4(b.Rotation)
		w.Vec3(b.Scale)
	}
	return finish(tb, w, &buf)
}

// EncodeModel encodes m as an XMDL payload. Each mesh stores the material of
// its first layer.
func EncodeModel(tb testing.TB, m *scene.Model) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := payloadWriter(&buf, "XMDL")
	bones := uint64(m.BoneCount())
	boneWidth := sizing.WidthFor(bones)
	w.U32(u32(int(bones)))
	w.U32(u32(len(m.Meshes)))
	w.U32(u32(len(m.Materials)))

	for _, mesh := range m.Meshes {
		var presence uint8 = hasPositions
		if len(mesh.Normals) > 0 {
			presence |= hasNormals
		}
		if len(mesh.Colours) > 0 {
			presence |= hasColours
		}
		if len(mesh.UVLayers) > 0 {
			presence |= hasUVs
		}
		if mesh.MaxInfluence > 0 {
			presence |= hasWeights
		}
		material := int32(-1)
		if len(mesh.Materials) > 0 {
			material = int32(mesh.Materials[0]) //nolint:gosec // test sizes fit
		}

		vc := uint64(len(mesh.Positions))
		w.Str16(mesh.Name)
		w.U32(u32(int(vc)))
		w.U32(u32(len(mesh.Faces)))
		w.U8(presence)
		w.U8(u8(len(mesh.UVLayers)))
		w.U8(u8(mesh.MaxInfluence))
		w.I32(material)

		for _, p := range mesh.Positions {
			w.Vec3(p)
		}
		for _, n := range mesh.Normals {
			w.Vec3(n)
		}
		for _, c := range mesh.Colours {
			w.Bytes(c[:])
		}
		for _, layer := range mesh.UVLayers {
			for _, uv := range layer {
				w.Vec2(uv)
			}
		}
		for _, inf := range mesh.Influences {
			w.Index(boneWidth, inf.Bone)
			w.F32(inf.Weight)
		}
		vertexWidth := sizing.WidthFor(vc)
		for _, f := range mesh.Faces {
			for _, v := range f {
				w.Index(vertexWidth, v)
			}
		}
	}

	for _, mat := range m.Materials {
		w.Str16(mat.Name)
		w.U8(u8(len(mat.Textures)))
		for _, t := range mat.Textures {
			w.Str16(t.Slot)
			w.Str16(t.Path)
		}
	}

	if len(m.Morphs) > 0 {
		w.Bytes([]byte("MRPH"))
		w.U32(u32(len(m.Morphs)))
		for _, morph := range m.Morphs {
			w.Str16(morph.Name)
			w.U32(u32(morph.Mesh))
			w.U32(u32(len(morph.Deltas)))
			width := sizing.WidthFor(uint64(m.Meshes[morph.Mesh].VertexCount()))
			for _, d := range morph.Deltas {
				w.Index(width, d.Vertex)
				w.Vec3(d.Offset)
			}
		}
	}
	return finish(tb, w, &buf)
}

// EncodeAnimation encodes a as an XANM payload.
func EncodeAnimation(tb testing.TB, a *scene.Animation) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := payloadWriter(&buf, "XANM")
	w.F32(a.Framerate)
	w.U32(u32(a.FrameCount))
	w.Bool(a.Loop)
	w.U32(u32(len(a.Curves)))
	width := sizing.WidthFor(uint64(a.FrameCount)) //nolint:gosec // non-negative
	for _, c := range a.Curves {
		w.Str16(c.Bone)
		var mask uint8
		if c.Translation != nil {
			mask |= 1
		}
		if c.Rotation != nil {
			mask |= 2
		}
		if c.Scale != nil {
			mask |= 4
		}
		w.U8(mask)
		if c.Translation != nil {
			w.U32(u32(len(c.Translation)))
			for _, k := range c.Translation {
				w.Index(width, k.Frame)
				w.Vec3(k.Value)
			}
		}
		if c.Rotation != nil {
			w.U32(u32(len(c.Rotation)))
			for _, k := range c.Rotation {
				w.Index(width, k.Frame)
				w.Vec4(k.Value)
			}
		}
		if c.Scale != nil {
			w.U32(u32(len(c.Scale)))
			for _, k := range c.Scale {
				w.Index(width, k.Frame)
				w.Vec3(k.Value)
			}
		}
	}
	return finish(tb, w, &buf)
}

// Chain returns a skeleton of n bones where bone i's parent is (i-1)/2,
// a balanced tree in topological order.
func Chain(n int) *scene.Skeleton {
	bones := make([]*scene.Bone, n)
	for i := range bones {
		b := &scene.Bone{
			Name:     fmt.Sprintf("bone_%d", i),
			Position: scene.Vec3{float32(i), 0, 1},
			Rotation: scene.IdentityRotation,
			Scale:    scene.UnitScale,
		}
		if i > 0 {
			b.Parent = bones[(i-1)/2]
		}
		bones[i] = b
	}
	return &scene.Skeleton{Bones: bones}
}

// SampleModel returns a small valid model over sk: two meshes, one UV layer
// each, two influences per vertex and two materials. The second mesh carries
// a morph target.
func SampleModel(sk *scene.Skeleton) *scene.Model {
	bones := uint32(len(sk.Bones)) //nolint:gosec // test sizes fit
	quad := func(name string, z float32, mat int) *scene.Mesh {
		m := &scene.Mesh{
			Name:         name,
			Positions:    []scene.Vec3{{0, 0, z}, {1, 0, z}, {1, 1, z}, {0, 1, z}},
			Normals:      []scene.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
			Colours:      [][4]uint8{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}, {9, 9, 9, 9}},
			UVLayers:     [][]scene.Vec2{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}},
			MaxInfluence: 2,
			Faces:        [][3]uint32{{0, 1, 2}, {0, 2, 3}},
			Materials:    []int{mat},
		}
		for v := range uint32(4) {
			m.Influences = append(m.Influences,
				scene.Influence{Bone: v % bones, Weight: 0.75},
				scene.Influence{Bone: (bones - 1 - v%bones), Weight: 0.25})
		}
		return m
	}
	return &scene.Model{
		Skeleton: sk,
		Meshes:   []*scene.Mesh{quad("body", 0, 0), quad("head", 2, 1)},
		Materials: []*scene.Material{
			{Name: "skin", Textures: []scene.Texture{{Slot: scene.SlotDiffuse, Path: "skin_c.png"}, {Slot: scene.SlotNormal, Path: "skin_n.png"}}},
			{Name: "eyes", Textures: []scene.Texture{{Slot: scene.SlotDiffuse, Path: "eyes_c.png"}}},
		},
		Morphs: []*scene.Morph{{
			Name:   "blink",
			Mesh:   1,
			Deltas: []scene.MorphDelta{{Vertex: 2, Offset: scene.Vec3{0, -0.1, 0}}, {Vertex: 3, Offset: scene.Vec3{0, -0.1, 0}}},
		}},
	}
}

// SampleAnimation returns a two-curve animation over frameCount frames.
func SampleAnimation(frameCount int) *scene.Animation {
	last := uint32(frameCount - 1) //nolint:gosec // frameCount is positive in tests
	return &scene.Animation{
		Framerate:  30,
		FrameCount: frameCount,
		Loop:       true,
		Curves: []*scene.Curve{
			{
				Bone:        "bone_0",
				Translation: []scene.Key[scene.Vec3]{{Frame: 0, Value: scene.Vec3{0, 0, 0}}, {Frame: last, Value: scene.Vec3{0, 1, 0}}},
				Rotation:    []scene.Key[scene.Vec4]{{Frame: 0, Value: scene.IdentityRotation}, {Frame: last / 2, Value: scene.Vec4{0, 0.7071, 0, 0.7071}}},
			},
			{
				Bone:  "bone_1",
				Scale: []scene.Key[scene.Vec3]{{Frame: last, Value: scene.Vec3{2, 2, 2}}},
			},
		},
	}
}
