// Package scene defines the canonical scene graph shared by the payload
// readers and the exporters.
//
// A Scene is built fresh for each request and owned by that request; it is
// never cached or shared.
package scene

// Vector types. Rotations are quaternions in x, y, z, w order.
type (
	Vec2 [2]float32
	Vec3 [3]float32
	Vec4 [4]float32
)

// IdentityRotation is the unit quaternion.
var IdentityRotation = Vec4{0, 0, 0, 1}

// UnitScale is the neutral scale.
var UnitScale = Vec3{1, 1, 1}

// MaxInfluences is the largest number of bone influences per vertex.
const MaxInfluences = 8

// Scene holds exactly one of Model or Animation.
type Scene struct {
	Name      string
	Model     *Model
	Animation *Animation
}

// Model is a skinned mesh collection.
type Model struct {
	Skeleton  *Skeleton
	Meshes    []*Mesh
	Materials []*Material
	Morphs    []*Morph
}

// BoneCount returns the number of skeleton bones, or 0 without a skeleton.
func (m *Model) BoneCount() int {
	if m.Skeleton == nil {
		return 0
	}
	return len(m.Skeleton.Bones)
}

// Skeleton is an ordered bone list. A bone's parent always appears earlier
// in Bones, so the list is a topological order of the tree.
type Skeleton struct {
	Bones []*Bone
}

// Bone is one joint with its bind pose relative to the parent.
type Bone struct {
	Name     string
	Parent   *Bone
	Position Vec3
	Rotation Vec4
	Scale    Vec3
}

// Mesh is one vertex/face buffer.
//
// Per-vertex streams are either empty or have len(Positions) elements.
// Influences is vertex-outer, influence-inner with MaxInfluence entries per
// vertex; unused slots carry zero weight.
type Mesh struct {
	Name         string
	Positions    []Vec3
	Normals      []Vec3
	Colours      [][4]uint8
	UVLayers     [][]Vec2
	MaxInfluence int
	Influences   []Influence
	Faces        [][3]uint32
	// Materials holds one material index per UV layer, or -1 for none.
	Materials []int
}

// VertexCount returns len(Positions).
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// Influence binds a vertex to a bone.
type Influence struct {
	Bone   uint32
	Weight float32
}

// VertexInfluences returns the influence slice for vertex v.
func (m *Mesh) VertexInfluences(v int) []Influence {
	k := m.MaxInfluence
	return m.Influences[v*k : (v+1)*k]
}

// Material is a name with named texture slots.
type Material struct {
	Name     string
	Textures []Texture
}

// Common texture slot names.
const (
	SlotDiffuse  = "diffuse"
	SlotNormal   = "normal"
	SlotSpecular = "specular"
)

// Texture binds an image path to a material slot.
type Texture struct {
	Slot string
	Path string
}

// Texture returns the path bound to slot, or "".
func (m *Material) Texture(slot string) string {
	for _, t := range m.Textures {
		if t.Slot == slot {
			return t.Path
		}
	}
	return ""
}

// Morph is a sparse per-vertex offset target on one mesh.
type Morph struct {
	Name   string
	Mesh   int
	Deltas []MorphDelta
}

// MorphDelta moves one vertex.
type MorphDelta struct {
	Vertex uint32
	Offset Vec3
}

// Animation is a set of per-bone curves.
type Animation struct {
	Framerate  float32
	FrameCount int
	Loop       bool
	Curves     []*Curve
}

// Curve holds the keyed channels of one bone. Each channel is ordered by
// frame.
type Curve struct {
	Bone        string
	Translation []Key[Vec3]
	Rotation    []Key[Vec4]
	Scale       []Key[Vec3]
}

// Key is one keyframe.
type Key[V any] struct {
	Frame uint32
	Value V
}
