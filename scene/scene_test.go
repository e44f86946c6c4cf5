package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(n int) []*Bone {
	bones := make([]*Bone, n)
	for i := range bones {
		bones[i] = &Bone{Name: "b", Rotation: IdentityRotation, Scale: UnitScale}
	}
	return bones
}

func TestBuildSkeleton(t *testing.T) {
	t.Parallel()

	bones := chain(4)
	sk, err := BuildSkeleton(bones, []int32{-1, 0, 1, 0})
	require.NoError(t, err)
	assert.Nil(t, sk.Bones[0].Parent)
	assert.Same(t, sk.Bones[1], sk.Bones[2].Parent)
	assert.Same(t, sk.Bones[0], sk.Bones[3].Parent)

	parents, err := sk.ParentIndices()
	require.NoError(t, err)
	assert.Equal(t, []int32{-1, 0, 1, 0}, parents)

	_, err = BuildSkeleton(chain(2), []int32{1, -1})
	require.ErrorIs(t, err, ErrInvalid, "forward parent reference")
	_, err = BuildSkeleton(chain(2), []int32{-1, 1})
	require.ErrorIs(t, err, ErrInvalid, "self parent")
}

func TestParentIndicesRejectsLaterParent(t *testing.T) {
	t.Parallel()

	bones := chain(2)
	bones[0].Parent = bones[1]
	_, err := (&Skeleton{Bones: bones}).ParentIndices()
	require.ErrorIs(t, err, ErrInvalid)
}

func triangle() *Mesh {
	return &Mesh{
		Name:         "tri",
		Positions:    []Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:      []Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		UVLayers:     [][]Vec2{{{0, 0}, {1, 0}, {0, 1}}},
		MaxInfluence: 1,
		Influences:   []Influence{{0, 1}, {1, 1}, {1, 1}},
		Faces:        [][3]uint32{{0, 1, 2}},
		Materials:    []int{0},
	}
}

func TestModelValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Model {
		sk, err := BuildSkeleton(chain(2), []int32{-1, 0})
		if err != nil {
			panic(err)
		}
		return &Model{
			Skeleton:  sk,
			Meshes:    []*Mesh{triangle()},
			Materials: []*Material{{Name: "m"}},
			Morphs:    []*Morph{{Name: "smile", Mesh: 0, Deltas: []MorphDelta{{Vertex: 2}}}},
		}
	}
	require.NoError(t, (&Scene{Model: valid()}).Validate())

	tests := []struct {
		name   string
		mutate func(*Model)
	}{
		{name: "normals length", mutate: func(m *Model) { m.Meshes[0].Normals = m.Meshes[0].Normals[:1] }},
		{name: "uv length", mutate: func(m *Model) { m.Meshes[0].UVLayers[0] = nil }},
		{name: "influence count", mutate: func(m *Model) { m.Meshes[0].MaxInfluence = 2 }},
		{name: "too many influences", mutate: func(m *Model) { m.Meshes[0].MaxInfluence = 9 }},
		{name: "influence bone", mutate: func(m *Model) { m.Meshes[0].Influences[0].Bone = 7 }},
		{name: "zero weight influence bone", mutate: func(m *Model) { m.Meshes[0].Influences[0] = Influence{Bone: 300} }},
		{name: "face index", mutate: func(m *Model) { m.Meshes[0].Faces[0][2] = 3 }},
		{name: "material index", mutate: func(m *Model) { m.Meshes[0].Materials[0] = 1 }},
		{name: "morph mesh", mutate: func(m *Model) { m.Morphs[0].Mesh = 1 }},
		{name: "morph vertex", mutate: func(m *Model) { m.Morphs[0].Deltas[0].Vertex = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := valid()
			tt.mutate(m)
			require.ErrorIs(t, (&Scene{Model: m}).Validate(), ErrInvalid)
		})
	}
}

func TestSceneValidateShape(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, (&Scene{}).Validate(), ErrInvalid)
	require.ErrorIs(t, (&Scene{Model: &Model{}, Animation: &Animation{}}).Validate(), ErrInvalid)

	anim := &Animation{Framerate: 30, FrameCount: 10, Curves: []*Curve{{
		Bone:        "root",
		Translation: []Key[Vec3]{{Frame: 0}, {Frame: 5}},
	}}}
	require.NoError(t, (&Scene{Animation: anim}).Validate())
	anim.Curves[0].Translation[1].Frame = 0
	require.NoError(t, (&Scene{Animation: anim}).Validate(), "equal frames are ordered")
	anim.Curves[0].Rotation = []Key[Vec4]{{Frame: 3}, {Frame: 1}}
	require.ErrorIs(t, (&Scene{Animation: anim}).Validate(), ErrInvalid)
}

func TestAnimationValidateFrameRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		frames  int
		curve   *Curve
		wantErr bool
	}{
		{name: "last frame", frames: 10, curve: &Curve{Bone: "a", Translation: []Key[Vec3]{{Frame: 0}, {Frame: 9}}}},
		{name: "empty channels", frames: 0, curve: &Curve{Bone: "a"}},
		{name: "translation at frame count", frames: 10, curve: &Curve{Bone: "a", Translation: []Key[Vec3]{{Frame: 10}}}, wantErr: true},
		{name: "rotation past frame count", frames: 10, curve: &Curve{Bone: "a", Rotation: []Key[Vec4]{{Frame: 0}, {Frame: 300}}}, wantErr: true},
		{name: "scale with zero frames", frames: 0, curve: &Curve{Bone: "a", Scale: []Key[Vec3]{{Frame: 0}}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := (&Animation{Framerate: 30, FrameCount: tt.frames, Curves: []*Curve{tt.curve}}).Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMaterialTexture(t *testing.T) {
	t.Parallel()

	m := &Material{Textures: []Texture{{Slot: SlotDiffuse, Path: "d.png"}}}
	assert.Equal(t, "d.png", m.Texture(SlotDiffuse))
	assert.Empty(t, m.Texture(SlotNormal))
}
