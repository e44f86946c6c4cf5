package semodel

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/meigma/assetlift/internal/assettype"
	"github.com/meigma/assetlift/internal/binio"
	"github.com/meigma/assetlift/internal/sizing"
	"github.com/meigma/assetlift/scene"
)

// Write encodes m. The model is validated first.
func Write(w io.Writer, m *scene.Model) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("semodel: %w", err)
	}
	parents, err := parentIndices(m)
	if err != nil {
		return fmt.Errorf("semodel: %w", err)
	}
	for _, mesh := range m.Meshes {
		if len(mesh.UVLayers) > 0xFF {
			return fmt.Errorf("%w: semodel mesh %q has %d uv layers", assettype.ErrUnsupported, mesh.Name, len(mesh.UVLayers))
		}
		// Material indices are stored one per uv layer.
		if len(mesh.Materials) > len(mesh.UVLayers) {
			return fmt.Errorf("%w: semodel mesh %q has %d materials for %d uv layers",
				assettype.ErrUnsupported, mesh.Name, len(mesh.Materials), len(mesh.UVLayers))
		}
	}

	bw := bufio.NewWriter(w)
	out := binio.NewWriter(bw, binary.LittleEndian)
	meshFlags := meshPresence(m.Meshes)
	writeHeader(out, m, meshFlags)

	bones := m.BoneCount()
	if bones > 0 {
		for _, b := range m.Skeleton.Bones {
			out.CString(b.Name)
		}
		for i, b := range m.Skeleton.Bones {
			out.U8(0)
			out.I32(parents[i])
			out.Vec3(b.Position)
			out.Vec4(b.Rotation)
			out.Vec3(b.Scale)
		}
	}

	boneWidth := widthFor(bones)
	for _, mesh := range m.Meshes {
		writeMesh(out, mesh, meshFlags, boneWidth)
	}
	for _, mat := range m.Materials {
		out.CString(mat.Name)
		out.U8(1)
		out.CString(mat.Texture(scene.SlotDiffuse))
		out.CString(mat.Texture(scene.SlotNormal))
		out.CString(mat.Texture(scene.SlotSpecular))
	}
	if len(m.Morphs) > 0 {
		writeMorphs(out, m)
	}

	if err := out.Err(); err != nil {
		return fmt.Errorf("semodel: write: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("semodel: flush: %w", err)
	}
	return nil
}

func parentIndices(m *scene.Model) ([]int32, error) {
	if m.Skeleton == nil {
		return nil, nil
	}
	return m.Skeleton.ParentIndices()
}

func writeHeader(out *binio.Writer, m *scene.Model, meshFlags uint8) {
	var data uint8
	if m.BoneCount() > 0 {
		data |= HasBones
	}
	if len(m.Meshes) > 0 {
		data |= HasMeshes
	}
	if len(m.Materials) > 0 {
		data |= HasMaterials
	}

	out.Bytes(Magic)
	out.U16(Version)
	out.U16(HeaderSize)
	out.U8(data)
	out.U8(BoneLocal | BoneScale)
	out.U8(meshFlags)
	out.U32(count(m.BoneCount()))
	out.U32(count(len(m.Meshes)))
	out.U32(count(len(m.Materials)))
	out.Zero(3)
}

func meshPresence(meshes []*scene.Mesh) uint8 {
	var flags uint8
	for _, mesh := range meshes {
		if len(mesh.UVLayers) > 0 {
			flags |= MeshUV
		}
		if len(mesh.Normals) > 0 {
			flags |= MeshNormals
		}
		if len(mesh.Colours) > 0 {
			flags |= MeshColours
		}
		if mesh.MaxInfluence > 0 {
			flags |= MeshWeights
		}
	}
	return flags
}

func writeMesh(out *binio.Writer, mesh *scene.Mesh, flags uint8, boneWidth sizing.Width) {
	vc := mesh.VertexCount()
	layers := len(mesh.UVLayers)
	out.U8(0)
	out.U8(uint8(layers))            //nolint:gosec // checked in Write
	out.U8(uint8(mesh.MaxInfluence)) //nolint:gosec // bounded by scene.MaxInfluences
	out.U32(count(vc))
	out.U32(count(len(mesh.Faces)))

	for _, p := range mesh.Positions {
		out.Vec3(p)
	}
	if flags&MeshUV != 0 {
		for v := range vc {
			for l := range layers {
				out.Vec2(mesh.UVLayers[l][v])
			}
		}
	}
	if flags&MeshNormals != 0 {
		for v := range vc {
			if len(mesh.Normals) == 0 {
				out.Vec3(scene.Vec3{})
				continue
			}
			out.Vec3(mesh.Normals[v])
		}
	}
	if flags&MeshColours != 0 {
		for v := range vc {
			if len(mesh.Colours) == 0 {
				out.Bytes([]byte{0xFF, 0xFF, 0xFF, 0xFF})
				continue
			}
			out.Bytes(mesh.Colours[v][:])
		}
	}
	if flags&MeshWeights != 0 {
		for _, inf := range mesh.Influences {
			out.Index(boneWidth, inf.Bone)
			out.F32(inf.Weight)
		}
	}

	faceWidth := widthFor(vc)
	for _, f := range mesh.Faces {
		out.Index(faceWidth, f[0])
		out.Index(faceWidth, f[1])
		out.Index(faceWidth, f[2])
	}
	for l := range layers {
		mat := -1
		if l < len(mesh.Materials) {
			mat = mesh.Materials[l]
		}
		out.I32(int32(mat)) //nolint:gosec // validated against the material count
	}
}

func writeMorphs(out *binio.Writer, m *scene.Model) {
	out.Bytes(MorphTag)
	out.U32(count(len(m.Morphs)))
	for _, morph := range m.Morphs {
		out.CString(morph.Name)
		out.U32(count(morph.Mesh))
		out.U32(count(len(morph.Deltas)))
		width := widthFor(m.Meshes[morph.Mesh].VertexCount())
		for _, d := range morph.Deltas {
			out.Index(width, d.Vertex)
			out.Vec3(d.Offset)
		}
	}
}

func count(n int) uint32 {
	return uint32(n) //nolint:gosec // scene sizes are bounded by validation
}

func widthFor(n int) sizing.Width {
	return sizing.WidthFor(uint64(n)) //nolint:gosec // counts are non-negative
}
