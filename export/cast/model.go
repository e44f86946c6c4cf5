package cast

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/meigma/assetlift/internal/assettype"
	"github.com/meigma/assetlift/internal/sizing"
	"github.com/meigma/assetlift/scene"
)

// Material type written for every material node.
const materialType = "pbr"

// WriteModel encodes m under a root and model node named name.
func WriteModel(w io.Writer, name string, m *scene.Model) error {
	root, err := ModelTree(name, m)
	if err != nil {
		return err
	}
	return Encode(w, root)
}

// ModelTree builds the node tree for m. Identity hashes are derived from
// each element's kind, position and name, so they are stable across runs.
func ModelTree(name string, m *scene.Model) (*Node, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("cast: %w", err)
	}
	for _, mesh := range m.Meshes {
		if len(mesh.UVLayers) > 0xFF {
			return nil, fmt.Errorf("%w: cast mesh %q has %d uv layers", assettype.ErrUnsupported, mesh.Name, len(mesh.UVLayers))
		}
	}
	root := NewNode(NodeRoot, "root")
	model := NewNode(NodeModel, "model/"+name).Set("n", String(name))
	root.Add(model)

	bones := m.BoneCount()
	if bones > 0 {
		parents, err := m.Skeleton.ParentIndices()
		if err != nil {
			return nil, fmt.Errorf("cast: %w", err)
		}
		skel := NewNode(NodeSkeleton, "skeleton/"+name)
		for i, b := range m.Skeleton.Bones {
			skel.Add(NewNode(NodeBone, fmt.Sprintf("bone/%d/%s", i, b.Name)).
				Set("n", String(b.Name)).
				Set("p", Int(parents[i])).
				Set("lp", Vec3s([]scene.Vec3{b.Position})).
				Set("lr", Vec4s([]scene.Vec4{b.Rotation})).
				Set("s", Vec3s([]scene.Vec3{b.Scale})))
		}
		model.Add(skel)
	}

	materials := make([]*Node, len(m.Materials))
	for i, mat := range m.Materials {
		n, err := materialNode(i, mat)
		if err != nil {
			return nil, err
		}
		materials[i] = n
	}
	meshes := make([]*Node, len(m.Meshes))
	boneWidth := widthFor(bones)
	for i, mesh := range m.Meshes {
		meshes[i] = meshNode(i, mesh, boneWidth, materials)
		model.Add(meshes[i])
	}
	for _, mat := range materials {
		model.Add(mat)
	}
	for i, morph := range m.Morphs {
		target := m.Meshes[morph.Mesh]
		vertices := make([]uint32, len(morph.Deltas))
		offsets := make([]scene.Vec3, len(morph.Deltas))
		for j, d := range morph.Deltas {
			vertices[j] = d.Vertex
			offsets[j] = d.Offset
		}
		model.Add(NewNode(NodeBlendShape, fmt.Sprintf("blendshape/%d/%s", i, morph.Name)).
			Set("n", String(morph.Name)).
			Set("b", Longs([]uint64{meshes[morph.Mesh].Hash})).
			Set("vi", Indices(widthFor(target.VertexCount()), vertices)).
			Set("vp", Vec3s(offsets)))
	}
	return root, nil
}

// materialNode stores each texture as a property named after its slot, so
// slot names must be unique and must not shadow the name or type property.
func materialNode(i int, mat *scene.Material) (*Node, error) {
	n := NewNode(NodeMaterial, fmt.Sprintf("material/%d/%s", i, mat.Name)).
		Set("n", String(mat.Name)).
		Set("t", String(materialType))
	for j, tex := range mat.Textures {
		if _, taken := n.Props[tex.Slot]; taken || tex.Slot == "" {
			return nil, fmt.Errorf("%w: cast material %q texture slot %q", assettype.ErrUnsupported, mat.Name, tex.Slot)
		}
		file := NewNode(NodeFile, fmt.Sprintf("file/%d/%d/%s", i, j, tex.Path)).Set("p", String(tex.Path))
		n.Set(tex.Slot, Longs([]uint64{file.Hash}))
		n.Add(file)
	}
	return n, nil
}

func meshNode(i int, mesh *scene.Mesh, boneWidth sizing.Width, materials []*Node) *Node {
	n := NewNode(NodeMesh, fmt.Sprintf("mesh/%d/%s", i, mesh.Name)).
		Set("n", String(mesh.Name)).
		Set("vp", Vec3s(mesh.Positions))
	n.Set("ul", Byte(uint8(len(mesh.UVLayers)))) //nolint:gosec // checked in ModelTree
	n.Set("mi", Byte(uint8(mesh.MaxInfluence)))  //nolint:gosec // bounded by scene.MaxInfluences
	if len(mesh.Normals) > 0 {
		n.Set("vn", Vec3s(mesh.Normals))
	}
	if len(mesh.Colours) > 0 {
		packed := make([]uint32, len(mesh.Colours))
		for v, c := range mesh.Colours {
			packed[v] = binary.LittleEndian.Uint32(c[:])
		}
		n.Set("vc", Indices(sizing.Width32, packed))
	}
	for l, layer := range mesh.UVLayers {
		n.Set(fmt.Sprintf("u%d", l), Vec2s(layer))
	}
	if mesh.MaxInfluence > 0 {
		bones := make([]uint32, len(mesh.Influences))
		weights := make([]float32, len(mesh.Influences))
		for k, inf := range mesh.Influences {
			bones[k] = inf.Bone
			weights[k] = inf.Weight
		}
		n.Set("wb", Indices(boneWidth, bones))
		n.Set("wv", Floats(weights))
	}

	faces := make([]uint32, 0, 3*len(mesh.Faces))
	for _, f := range mesh.Faces {
		faces = append(faces, f[0], f[1], f[2])
	}
	n.Set("f", Indices(widthFor(mesh.VertexCount()), faces))

	if len(mesh.Materials) > 0 {
		refs := make([]uint64, len(mesh.Materials))
		for l, mat := range mesh.Materials {
			if mat >= 0 {
				refs[l] = materials[mat].Hash
			}
		}
		n.Set("m", Longs(refs))
	}
	return n
}

func widthFor(n int) sizing.Width {
	return sizing.WidthFor(uint64(n)) //nolint:gosec // counts are non-negative
}

func decodeModel(n *Node) (*scene.Model, string, error) {
	name, err := optString(n, "n")
	if err != nil {
		return nil, "", err
	}
	m := &scene.Model{}
	if skels := n.ChildrenOf(NodeSkeleton); len(skels) > 0 {
		sk, err := decodeSkeleton(skels[0])
		if err != nil {
			return nil, "", err
		}
		m.Skeleton = sk
	}

	materialIndex := make(map[uint64]int)
	for i, mn := range n.ChildrenOf(NodeMaterial) {
		mat, err := decodeMaterial(mn)
		if err != nil {
			return nil, "", err
		}
		materialIndex[mn.Hash] = i
		m.Materials = append(m.Materials, mat)
	}

	meshIndex := make(map[uint64]int)
	boneWidth := widthFor(m.BoneCount())
	for i, mn := range n.ChildrenOf(NodeMesh) {
		mesh, err := decodeMesh(mn, boneWidth, materialIndex)
		if err != nil {
			return nil, "", fmt.Errorf("mesh %d: %w", i, err)
		}
		meshIndex[mn.Hash] = i
		m.Meshes = append(m.Meshes, mesh)
	}

	for _, bn := range n.ChildrenOf(NodeBlendShape) {
		morph, err := decodeBlendShape(bn, m.Meshes, meshIndex)
		if err != nil {
			return nil, "", err
		}
		m.Morphs = append(m.Morphs, morph)
	}
	if err := m.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: cast: %w", ErrFormat, err)
	}
	return m, name, nil
}

func decodeSkeleton(n *Node) (*scene.Skeleton, error) {
	boneNodes := n.ChildrenOf(NodeBone)
	bones := make([]*scene.Bone, len(boneNodes))
	parents := make([]int32, len(boneNodes))
	for i, bn := range boneNodes {
		b := &scene.Bone{Rotation: scene.IdentityRotation, Scale: scene.UnitScale}
		var err error
		if b.Name, err = optString(bn, "n"); err != nil {
			return nil, err
		}
		parents[i] = -1
		if p, ok := bn.Props["p"]; ok {
			if parents[i], err = p.AsInt(); err != nil {
				return nil, err
			}
		}
		if err := optVec3(bn, "lp", &b.Position); err != nil {
			return nil, err
		}
		if p, ok := bn.Props["lr"]; ok {
			vs, err := p.AsVec4s()
			if err != nil {
				return nil, err
			}
			if len(vs) > 0 {
				b.Rotation = vs[0]
			}
		}
		if err := optVec3(bn, "s", &b.Scale); err != nil {
			return nil, err
		}
		bones[i] = b
	}
	sk, err := scene.BuildSkeleton(bones, parents)
	if err != nil {
		return nil, fmt.Errorf("%w: cast: %w", ErrFormat, err)
	}
	return sk, nil
}

func decodeMaterial(n *Node) (*scene.Material, error) {
	name, err := optString(n, "n")
	if err != nil {
		return nil, err
	}
	mat := &scene.Material{Name: name}
	for _, fn := range n.ChildrenOf(NodeFile) {
		path, err := optString(fn, "p")
		if err != nil {
			return nil, err
		}
		for slot, p := range n.Props {
			if p.Type != TypeLong || slot == "n" || slot == "t" {
				continue
			}
			refs, err := p.AsLongs()
			if err != nil {
				return nil, err
			}
			if len(refs) > 0 && refs[0] == fn.Hash {
				mat.Textures = append(mat.Textures, scene.Texture{Slot: slot, Path: path})
				break
			}
		}
	}
	return mat, nil
}

func decodeMesh(n *Node, boneWidth sizing.Width, materials map[uint64]int) (*scene.Mesh, error) {
	mesh := &scene.Mesh{}
	var err error
	if mesh.Name, err = optString(n, "n"); err != nil {
		return nil, err
	}
	vp, err := n.Prop("vp")
	if err != nil {
		return nil, err
	}
	if mesh.Positions, err = vp.AsVec3s(); err != nil {
		return nil, err
	}
	if p, ok := n.Props["vn"]; ok {
		if mesh.Normals, err = p.AsVec3s(); err != nil {
			return nil, err
		}
	}
	if p, ok := n.Props["vc"]; ok {
		packed, err := p.AsIndices(sizing.Width32)
		if err != nil {
			return nil, err
		}
		mesh.Colours = make([][4]uint8, len(packed))
		for v, c := range packed {
			binary.LittleEndian.PutUint32(mesh.Colours[v][:], c)
		}
	}

	layers, err := optInt(n, "ul")
	if err != nil {
		return nil, err
	}
	for l := range int(layers) {
		p, err := n.Prop(fmt.Sprintf("u%d", l))
		if err != nil {
			return nil, err
		}
		uv, err := p.AsVec2s()
		if err != nil {
			return nil, err
		}
		mesh.UVLayers = append(mesh.UVLayers, uv)
	}

	mi, err := optInt(n, "mi")
	if err != nil {
		return nil, err
	}
	mesh.MaxInfluence = int(mi)
	if mesh.MaxInfluence > 0 {
		if err := decodeWeights(n, mesh, boneWidth); err != nil {
			return nil, err
		}
	}

	f, err := n.Prop("f")
	if err != nil {
		return nil, err
	}
	indices, err := f.AsIndices(widthFor(mesh.VertexCount()))
	if err != nil {
		return nil, fmt.Errorf("faces: %w", err)
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d face indices", ErrFormat, len(indices))
	}
	mesh.Faces = make([][3]uint32, len(indices)/3)
	for i := range mesh.Faces {
		mesh.Faces[i] = [3]uint32(indices[3*i : 3*i+3])
	}

	if p, ok := n.Props["m"]; ok {
		refs, err := p.AsLongs()
		if err != nil {
			return nil, err
		}
		mesh.Materials = make([]int, len(refs))
		for l, ref := range refs {
			idx, ok := materials[ref]
			if !ok {
				idx = -1
			}
			mesh.Materials[l] = idx
		}
	}
	return mesh, nil
}

func decodeWeights(n *Node, mesh *scene.Mesh, boneWidth sizing.Width) error {
	wb, err := n.Prop("wb")
	if err != nil {
		return err
	}
	wv, err := n.Prop("wv")
	if err != nil {
		return err
	}
	bones, err := wb.AsIndices(boneWidth)
	if err != nil {
		return fmt.Errorf("weight bones: %w", err)
	}
	weights, err := wv.AsFloats()
	if err != nil {
		return err
	}
	want := mesh.VertexCount() * mesh.MaxInfluence
	if len(bones) != want || len(weights) != want {
		return fmt.Errorf("%w: %d/%d weights for %d vertices × %d", ErrFormat, len(bones), len(weights), mesh.VertexCount(), mesh.MaxInfluence)
	}
	mesh.Influences = make([]scene.Influence, want)
	for k := range mesh.Influences {
		mesh.Influences[k] = scene.Influence{Bone: bones[k], Weight: weights[k]}
	}
	return nil
}

func decodeBlendShape(n *Node, meshes []*scene.Mesh, meshIndex map[uint64]int) (*scene.Morph, error) {
	name, err := optString(n, "n")
	if err != nil {
		return nil, err
	}
	b, err := n.Prop("b")
	if err != nil {
		return nil, err
	}
	refs, err := b.AsLongs()
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: blend shape %q has no base mesh", ErrFormat, name)
	}
	mesh, ok := meshIndex[refs[0]]
	if !ok {
		return nil, fmt.Errorf("%w: blend shape %q references unknown mesh %#x", ErrFormat, name, refs[0])
	}

	vi, err := n.Prop("vi")
	if err != nil {
		return nil, err
	}
	vertices, err := vi.AsIndices(widthFor(meshes[mesh].VertexCount()))
	if err != nil {
		return nil, err
	}
	vp, err := n.Prop("vp")
	if err != nil {
		return nil, err
	}
	offsets, err := vp.AsVec3s()
	if err != nil {
		return nil, err
	}
	if len(vertices) != len(offsets) {
		return nil, fmt.Errorf("%w: blend shape %q has %d vertices and %d offsets", ErrFormat, name, len(vertices), len(offsets))
	}
	morph := &scene.Morph{Name: name, Mesh: mesh, Deltas: make([]scene.MorphDelta, len(vertices))}
	for i := range vertices {
		morph.Deltas[i] = scene.MorphDelta{Vertex: vertices[i], Offset: offsets[i]}
	}
	return morph, nil
}

func optString(n *Node, name string) (string, error) {
	p, ok := n.Props[name]
	if !ok {
		return "", nil
	}
	return p.AsString()
}

func optInt(n *Node, name string) (int32, error) {
	p, ok := n.Props[name]
	if !ok {
		return 0, nil
	}
	return p.AsInt()
}

func optVec3(n *Node, name string, dst *scene.Vec3) error {
	p, ok := n.Props[name]
	if !ok {
		return nil
	}
	vs, err := p.AsVec3s()
	if err != nil {
		return err
	}
	if len(vs) > 0 {
		*dst = vs[0]
	}
	return nil
}
