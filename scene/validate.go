package scene

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("scene: invalid")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the structural invariants every exporter relies on.
func (s *Scene) Validate() error {
	switch {
	case s.Model != nil && s.Animation != nil:
		return invalid("scene %q has both a model and an animation", s.Name)
	case s.Model != nil:
		return s.Model.Validate()
	case s.Animation != nil:
		return s.Animation.Validate()
	default:
		return invalid("scene %q is empty", s.Name)
	}
}

// Validate checks skeleton order, stream lengths and index ranges.
func (m *Model) Validate() error {
	if m.Skeleton != nil {
		if _, err := m.Skeleton.ParentIndices(); err != nil {
			return err
		}
	}
	bones := uint64(m.BoneCount())
	for i, mesh := range m.Meshes {
		if err := mesh.validate(bones, len(m.Materials)); err != nil {
			return fmt.Errorf("mesh %d %q: %w", i, mesh.Name, err)
		}
	}
	for i, morph := range m.Morphs {
		if morph.Mesh < 0 || morph.Mesh >= len(m.Meshes) {
			return invalid("morph %d %q targets mesh %d of %d", i, morph.Name, morph.Mesh, len(m.Meshes))
		}
		vc := uint32(m.Meshes[morph.Mesh].VertexCount()) //nolint:gosec // vertex counts fit in uint32
		for _, d := range morph.Deltas {
			if d.Vertex >= vc {
				return invalid("morph %q vertex %d of %d", morph.Name, d.Vertex, vc)
			}
		}
	}
	return nil
}

func (m *Mesh) validate(bones uint64, materials int) error {
	vc := len(m.Positions)
	if n := len(m.Normals); n != 0 && n != vc {
		return invalid("%d normals for %d vertices", n, vc)
	}
	if n := len(m.Colours); n != 0 && n != vc {
		return invalid("%d colours for %d vertices", n, vc)
	}
	for l, layer := range m.UVLayers {
		if len(layer) != vc {
			return invalid("uv layer %d has %d entries for %d vertices", l, len(layer), vc)
		}
	}
	if m.MaxInfluence < 0 || m.MaxInfluence > MaxInfluences {
		return invalid("max influence %d outside [0, %d]", m.MaxInfluence, MaxInfluences)
	}
	if len(m.Influences) != vc*m.MaxInfluence {
		return invalid("%d influences for %d vertices × %d", len(m.Influences), vc, m.MaxInfluence)
	}
	for _, inf := range m.Influences {
		if uint64(inf.Bone) >= bones {
			return invalid("influence bone %d of %d", inf.Bone, bones)
		}
	}
	for f, face := range m.Faces {
		for _, v := range face {
			if int64(v) >= int64(vc) {
				return invalid("face %d index %d of %d", f, v, vc)
			}
		}
	}
	for _, mat := range m.Materials {
		if mat < -1 || mat >= materials {
			return invalid("material index %d of %d", mat, materials)
		}
	}
	return nil
}

// ParentIndices returns each bone's parent index, -1 for roots. Every
// parent must appear earlier in Bones.
func (s *Skeleton) ParentIndices() ([]int32, error) {
	index := make(map[*Bone]int, len(s.Bones))
	out := make([]int32, len(s.Bones))
	for i, b := range s.Bones {
		if b == nil {
			return nil, invalid("bone %d is nil", i)
		}
		if _, dup := index[b]; dup {
			return nil, invalid("bone %d %q listed twice", i, b.Name)
		}
		out[i] = -1
		if b.Parent != nil {
			p, ok := index[b.Parent]
			if !ok {
				return nil, invalid("bone %d %q has a parent that does not precede it", i, b.Name)
			}
			out[i] = int32(p) //nolint:gosec // bone counts fit in int32
		}
		index[b] = i
	}
	return out, nil
}

// Validate checks that every channel is ordered by frame and that every key
// lies inside [0, FrameCount).
func (a *Animation) Validate() error {
	if a.FrameCount < 0 {
		return invalid("negative frame count %d", a.FrameCount)
	}
	for _, c := range a.Curves {
		if !ordered(c.Translation) || !ordered(c.Rotation) || !ordered(c.Scale) {
			return invalid("curve %q keys are not ordered by frame", c.Bone)
		}
		for _, f := range []int64{lastFrame(c.Translation), lastFrame(c.Rotation), lastFrame(c.Scale)} {
			if f >= int64(a.FrameCount) {
				return invalid("curve %q key at frame %d of %d", c.Bone, f, a.FrameCount)
			}
		}
	}
	return nil
}

// lastFrame returns the frame of the final key, -1 for an empty channel.
// Keys must already be ordered.
func lastFrame[V any](keys []Key[V]) int64 {
	if len(keys) == 0 {
		return -1
	}
	return int64(keys[len(keys)-1].Frame)
}

func ordered[V any](keys []Key[V]) bool {
	for i := 1; i < len(keys); i++ {
		if keys[i].Frame < keys[i-1].Frame {
			return false
		}
	}
	return true
}

// BuildSkeleton links bones from parallel name and parent-index slices. A
// parent index must be negative (root) or refer to an earlier bone.
func BuildSkeleton(bones []*Bone, parents []int32) (*Skeleton, error) {
	if len(bones) != len(parents) {
		return nil, invalid("%d bones with %d parent indices", len(bones), len(parents))
	}
	for i, p := range parents {
		switch {
		case p < 0:
			bones[i].Parent = nil
		case int(p) >= i:
			return nil, invalid("bone %d %q parent %d does not precede it", i, bones[i].Name, p)
		default:
			bones[i].Parent = bones[p]
		}
	}
	return &Skeleton{Bones: bones}, nil
}
