package asset

import (
	"fmt"

	"github.com/meigma/assetlift/internal/binio"
	"github.com/meigma/assetlift/internal/sizing"
	"github.com/meigma/assetlift/scene"
)

// meshRecordMin is the smallest encoded mesh header.
const meshRecordMin = 2 + 4 + 4 + 1 + 1 + 1 + 4

// ReadModel decodes an XMDL payload. skel is the companion skeleton, or nil;
// its bone count must match the model's. Without one, the model's bones are
// synthesized as unnamed roots so weights stay addressable.
func ReadModel(data []byte, skel *scene.Skeleton) (*scene.Model, error) {
	r, err := open(data, MagicModel)
	if err != nil {
		return nil, err
	}
	boneCount := r.U32()
	meshCount := r.Count(meshRecordMin)
	materialCount := r.U32()
	if err := finish(r, "model header"); err != nil {
		return nil, err
	}

	m := &scene.Model{Skeleton: skel}
	switch {
	case skel != nil && uint64(len(skel.Bones)) != uint64(boneCount):
		return nil, fmt.Errorf("%w: model has %d bones, skeleton has %d", ErrFormat, boneCount, len(skel.Bones))
	case skel == nil && boneCount > 0:
		if uint64(boneCount) > uint64(r.Remaining()) {
			return nil, fmt.Errorf("%w: %d bones", ErrFormat, boneCount)
		}
		m.Skeleton = placeholderSkeleton(int(boneCount))
	}
	boneWidth := sizing.WidthFor(uint64(boneCount))

	materialIndex := make([]int32, meshCount)
	for i := range meshCount {
		mesh, mat, err := readMesh(r, boneWidth)
		if err != nil {
			return nil, fmt.Errorf("mesh %d: %w", i, err)
		}
		m.Meshes = append(m.Meshes, mesh)
		materialIndex[i] = mat
	}

	if uint64(materialCount) > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: %d materials", ErrFormat, materialCount)
	}
	for range materialCount {
		m.Materials = append(m.Materials, readMaterial(r))
	}
	if err := finish(r, "materials"); err != nil {
		return nil, err
	}

	for i, mesh := range m.Meshes {
		mat := int(materialIndex[i])
		if mat < -1 || mat >= len(m.Materials) {
			return nil, fmt.Errorf("%w: mesh %d material %d of %d", ErrFormat, i, mat, len(m.Materials))
		}
		layers := max(len(mesh.UVLayers), 1)
		if mat < 0 && len(mesh.UVLayers) == 0 {
			continue
		}
		mesh.Materials = make([]int, layers)
		for l := range mesh.Materials {
			mesh.Materials[l] = mat
		}
	}

	if r.Peek(MagicMorph[:]) {
		r.Skip(len(MagicMorph))
		morphs, err := readMorphs(r, m.Meshes)
		if err != nil {
			return nil, err
		}
		m.Morphs = morphs
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return m, nil
}

func placeholderSkeleton(n int) *scene.Skeleton {
	bones := make([]*scene.Bone, n)
	for i := range bones {
		bones[i] = &scene.Bone{
			Name:     fmt.Sprintf("bone_%d", i),
			Rotation: scene.IdentityRotation,
			Scale:    scene.UnitScale,
		}
	}
	return &scene.Skeleton{Bones: bones}
}

func readMesh(r *binio.Reader, boneWidth sizing.Width) (*scene.Mesh, int32, error) {
	mesh := &scene.Mesh{Name: r.Str16()}
	vc := r.U32()
	fc := r.U32()
	presence := r.U8()
	layers := int(r.U8())
	mesh.MaxInfluence = int(r.U8())
	material := r.I32()
	if err := finish(r, "mesh header"); err != nil {
		return nil, 0, err
	}
	if mesh.MaxInfluence > scene.MaxInfluences {
		return nil, 0, fmt.Errorf("%w: %d influences per vertex", ErrFormat, mesh.MaxInfluence)
	}
	// Every vertex carries at least a position.
	if uint64(vc)*12 > uint64(r.Remaining()) {
		return nil, 0, fmt.Errorf("%w: %d vertices", ErrFormat, vc)
	}
	n := int(vc)

	if presence&HasPositions != 0 {
		mesh.Positions = make([]scene.Vec3, n)
		for v := range mesh.Positions {
			mesh.Positions[v] = r.Vec3()
		}
	}
	if presence&HasNormals != 0 {
		mesh.Normals = make([]scene.Vec3, n)
		for v := range mesh.Normals {
			mesh.Normals[v] = r.Vec3()
		}
	}
	if presence&HasColours != 0 {
		mesh.Colours = make([][4]uint8, n)
		for v := range mesh.Colours {
			copy(mesh.Colours[v][:], r.Bytes(4))
		}
	}
	if presence&HasUVs != 0 {
		mesh.UVLayers = make([][]scene.Vec2, layers)
		for l := range mesh.UVLayers {
			uv := make([]scene.Vec2, n)
			for v := range uv {
				uv[v] = r.Vec2()
			}
			mesh.UVLayers[l] = uv
		}
	}
	if presence&HasWeights != 0 {
		mesh.Influences = make([]scene.Influence, n*mesh.MaxInfluence)
		for i := range mesh.Influences {
			mesh.Influences[i] = scene.Influence{Bone: r.Index(boneWidth), Weight: r.F32()}
		}
	} else {
		mesh.MaxInfluence = 0
	}

	vertexWidth := sizing.WidthFor(uint64(vc))
	if uint64(fc)*3*uint64(vertexWidth) > uint64(r.Remaining()) {
		return nil, 0, fmt.Errorf("%w: %d faces", ErrFormat, fc)
	}
	mesh.Faces = make([][3]uint32, fc)
	for f := range mesh.Faces {
		mesh.Faces[f] = [3]uint32{r.Index(vertexWidth), r.Index(vertexWidth), r.Index(vertexWidth)}
	}
	if err := finish(r, "mesh streams"); err != nil {
		return nil, 0, err
	}
	return mesh, material, nil
}

func readMaterial(r *binio.Reader) *scene.Material {
	mat := &scene.Material{Name: r.Str16()}
	slots := int(r.U8())
	for range slots {
		slot := r.Str16()
		path := r.Str16()
		if r.Err() != nil {
			break
		}
		mat.Textures = append(mat.Textures, scene.Texture{Slot: slot, Path: path})
	}
	return mat
}

func readMorphs(r *binio.Reader, meshes []*scene.Mesh) ([]*scene.Morph, error) {
	count := r.Count(2 + 4 + 4)
	morphs := make([]*scene.Morph, 0, count)
	for range count {
		morph := &scene.Morph{Name: r.Str16(), Mesh: int(r.U32())}
		n := r.Count(1 + 12)
		if err := finish(r, "morph header"); err != nil {
			return nil, err
		}
		if morph.Mesh >= len(meshes) {
			return nil, fmt.Errorf("%w: morph %q targets mesh %d of %d", ErrFormat, morph.Name, morph.Mesh, len(meshes))
		}
		width := sizing.WidthFor(uint64(meshes[morph.Mesh].VertexCount()))
		morph.Deltas = make([]scene.MorphDelta, n)
		for i := range morph.Deltas {
			morph.Deltas[i] = scene.MorphDelta{Vertex: r.Index(width), Offset: r.Vec3()}
		}
		morphs = append(morphs, morph)
	}
	if err := finish(r, "morphs"); err != nil {
		return nil, err
	}
	return morphs, nil
}

// ReadMaterial decodes a standalone XMTL payload.
func ReadMaterial(data []byte) (*scene.Material, error) {
	r, err := open(data, MagicMaterial)
	if err != nil {
		return nil, err
	}
	mat := readMaterial(r)
	if err := finish(r, "material"); err != nil {
		return nil, err
	}
	return mat, nil
}
