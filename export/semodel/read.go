package semodel

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/assetlift/internal/binio"
	"github.com/meigma/assetlift/internal/sizing"
	"github.com/meigma/assetlift/scene"
)

type header struct {
	data, bones, meshes            uint8
	boneCount, meshCount, matCount int
}

// Read decodes an SEModel file. Global bone transforms are skipped when
// local ones are present; otherwise they stand in for the local pose.
func Read(data []byte) (*scene.Model, error) {
	r := binio.NewReader(data, binary.LittleEndian)
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	m := &scene.Model{}
	if h.boneCount > 0 {
		sk, err := readBones(r, h)
		if err != nil {
			return nil, err
		}
		m.Skeleton = sk
	}

	boneWidth := sizing.WidthFor(uint64(h.boneCount)) //nolint:gosec // non-negative count
	for i := range h.meshCount {
		mesh, err := readMesh(r, h.meshes, boneWidth)
		if err != nil {
			return nil, fmt.Errorf("semodel mesh %d: %w", i, err)
		}
		m.Meshes = append(m.Meshes, mesh)
	}

	for range h.matCount {
		mat := &scene.Material{Name: r.CString()}
		if simple := r.U8(); simple != 1 && r.Err() == nil {
			return nil, fmt.Errorf("%w: semodel material %q is not a simple material", ErrFormat, mat.Name)
		}
		for _, slot := range []string{scene.SlotDiffuse, scene.SlotNormal, scene.SlotSpecular} {
			if path := r.CString(); path != "" {
				mat.Textures = append(mat.Textures, scene.Texture{Slot: slot, Path: path})
			}
		}
		m.Materials = append(m.Materials, mat)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: semodel: %w", ErrFormat, err)
	}

	if r.Peek(MorphTag) {
		r.Skip(len(MorphTag))
		morphs, err := readMorphs(r, m.Meshes)
		if err != nil {
			return nil, err
		}
		m.Morphs = morphs
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: semodel: %w", ErrFormat, err)
	}
	return m, nil
}

func readHeader(r *binio.Reader) (header, error) {
	var h header
	if !r.Expect(Magic) {
		return h, fmt.Errorf("%w: not an SEModel file", ErrFormat)
	}
	version := r.U16()
	size := r.U16()
	h.data = r.U8()
	h.bones = r.U8()
	h.meshes = r.U8()
	bones, meshes, mats := r.U32(), r.U32(), r.U32()
	r.Skip(3)
	if err := r.Err(); err != nil {
		return h, fmt.Errorf("%w: semodel header: %w", ErrFormat, err)
	}
	if version != Version || size != HeaderSize {
		return h, fmt.Errorf("%w: semodel version %d header size %#x", ErrFormat, version, size)
	}
	// Each bone, mesh and material occupies at least five bytes, which
	// bounds the counts by the remaining data before anything is allocated.
	if uint64(bones)+uint64(meshes)+uint64(mats) > uint64(r.Remaining())/5 { //nolint:gosec // Remaining is non-negative
		return h, fmt.Errorf("%w: semodel counts %d/%d/%d exceed file size", ErrFormat, bones, meshes, mats)
	}
	if h.data&HasBones != 0 {
		h.boneCount = int(bones)
	}
	if h.data&HasMeshes != 0 {
		h.meshCount = int(meshes)
	}
	if h.data&HasMaterials != 0 {
		h.matCount = int(mats)
	}
	return h, nil
}

func readBones(r *binio.Reader, h header) (*scene.Skeleton, error) {
	bones := make([]*scene.Bone, h.boneCount)
	for i := range bones {
		bones[i] = &scene.Bone{
			Name:     r.CString(),
			Rotation: scene.IdentityRotation,
			Scale:    scene.UnitScale,
		}
	}
	parents := make([]int32, h.boneCount)
	for i, b := range bones {
		r.U8()
		parents[i] = r.I32()
		if h.bones&BoneGlobal != 0 {
			pos, rot := r.Vec3(), r.Vec4()
			if h.bones&BoneLocal == 0 {
				b.Position, b.Rotation = pos, rot
			}
		}
		if h.bones&BoneLocal != 0 {
			b.Position = r.Vec3()
			b.Rotation = r.Vec4()
		}
		if h.bones&BoneScale != 0 {
			b.Scale = r.Vec3()
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: semodel bones: %w", ErrFormat, err)
	}
	sk, err := scene.BuildSkeleton(bones, parents)
	if err != nil {
		return nil, fmt.Errorf("%w: semodel: %w", ErrFormat, err)
	}
	return sk, nil
}

func readMesh(r *binio.Reader, flags uint8, boneWidth sizing.Width) (*scene.Mesh, error) {
	r.U8()
	layers := int(r.U8())
	mesh := &scene.Mesh{MaxInfluence: int(r.U8())}
	vc := r.U32()
	fc := r.U32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if mesh.MaxInfluence > scene.MaxInfluences {
		return nil, fmt.Errorf("%w: %d influences per vertex", ErrFormat, mesh.MaxInfluence)
	}
	faceWidth := sizing.WidthFor(uint64(vc))
	if uint64(vc)*12+uint64(fc)*3*uint64(faceWidth) > uint64(r.Remaining()) { //nolint:gosec // Remaining is non-negative
		return nil, fmt.Errorf("%w: %d vertices and %d faces exceed file size", ErrFormat, vc, fc)
	}
	n := int(vc)

	mesh.Positions = make([]scene.Vec3, n)
	for v := range mesh.Positions {
		mesh.Positions[v] = r.Vec3()
	}
	if flags&MeshUV != 0 && layers > 0 {
		mesh.UVLayers = make([][]scene.Vec2, layers)
		for l := range mesh.UVLayers {
			mesh.UVLayers[l] = make([]scene.Vec2, n)
		}
		for v := range n {
			for l := range layers {
				mesh.UVLayers[l][v] = r.Vec2()
			}
		}
	}
	if flags&MeshNormals != 0 {
		mesh.Normals = make([]scene.Vec3, n)
		for v := range mesh.Normals {
			mesh.Normals[v] = r.Vec3()
		}
	}
	if flags&MeshColours != 0 {
		mesh.Colours = make([][4]uint8, n)
		for v := range mesh.Colours {
			copy(mesh.Colours[v][:], r.Bytes(4))
		}
	}
	if flags&MeshWeights != 0 && mesh.MaxInfluence > 0 {
		mesh.Influences = make([]scene.Influence, n*mesh.MaxInfluence)
		for i := range mesh.Influences {
			mesh.Influences[i] = scene.Influence{Bone: r.Index(boneWidth), Weight: r.F32()}
		}
	} else {
		mesh.MaxInfluence = 0
	}

	mesh.Faces = make([][3]uint32, fc)
	for f := range mesh.Faces {
		mesh.Faces[f] = [3]uint32{r.Index(faceWidth), r.Index(faceWidth), r.Index(faceWidth)}
	}
	if layers > 0 {
		mesh.Materials = make([]int, layers)
		for l := range mesh.Materials {
			mesh.Materials[l] = int(r.I32())
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return mesh, nil
}

func readMorphs(r *binio.Reader, meshes []*scene.Mesh) ([]*scene.Morph, error) {
	count := r.Count(1 + 4 + 4)
	morphs := make([]*scene.Morph, 0, count)
	for range count {
		morph := &scene.Morph{Name: r.CString(), Mesh: int(r.U32())}
		n := r.Count(1 + 12)
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("%w: semodel morph: %w", ErrFormat, err)
		}
		if morph.Mesh >= len(meshes) {
			return nil, fmt.Errorf("%w: morph %q targets mesh %d of %d", ErrFormat, morph.Name, morph.Mesh, len(meshes))
		}
		width := sizing.WidthFor(uint64(meshes[morph.Mesh].VertexCount())) //nolint:gosec // non-negative count
		morph.Deltas = make([]scene.MorphDelta, n)
		for i := range morph.Deltas {
			morph.Deltas[i] = scene.MorphDelta{Vertex: r.Index(width), Offset: r.Vec3()}
		}
		morphs = append(morphs, morph)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: semodel morphs: %w", ErrFormat, err)
	}
	return morphs, nil
}
