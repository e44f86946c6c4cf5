package cast

import (
	"fmt"
	"io"

	"github.com/meigma/assetlift/scene"
)

// Curve key properties.
const (
	keyTranslation = "t"
	keyRotation    = "rq"
	keyScale       = "s"
	curveMode      = "absolute"
)

// WriteAnimation encodes a under a root and animation node named name.
func WriteAnimation(w io.Writer, name string, a *scene.Animation) error {
	root, err := AnimationTree(name, a)
	if err != nil {
		return err
	}
	return Encode(w, root)
}

// AnimationTree builds the node tree for a. Each present channel of a bone
// curve becomes one curve node.
func AnimationTree(name string, a *scene.Animation) (*Node, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("cast: %w", err)
	}
	root := NewNode(NodeRoot, "root")
	anim := NewNode(NodeAnimation, "animation/"+name).
		Set("n", String(name)).
		Set("fr", Float(a.Framerate)).
		Set("fc", Int(int32(a.FrameCount))) //nolint:gosec // frame counts fit in int32
	if a.Loop {
		anim.Set("lo", Byte(1))
	} else {
		anim.Set("lo", Byte(0))
	}
	root.Add(anim)

	width := widthFor(a.FrameCount)
	for i, c := range a.Curves {
		curve := func(key string, frames []uint32, values Property) {
			anim.Add(NewNode(NodeCurve, fmt.Sprintf("curve/%d/%s/%s", i, c.Bone, key)).
				Set("nn", String(c.Bone)).
				Set("kp", String(key)).
				Set("kb", Indices(width, frames)).
				Set("kv", values).
				Set("m", String(curveMode)))
		}
		if c.Translation != nil {
			frames, values := splitKeys(c.Translation)
			curve(keyTranslation, frames, Vec3s(values))
		}
		if c.Rotation != nil {
			frames, values := splitKeys(c.Rotation)
			curve(keyRotation, frames, Vec4s(values))
		}
		if c.Scale != nil {
			frames, values := splitKeys(c.Scale)
			curve(keyScale, frames, Vec3s(values))
		}
	}
	return root, nil
}

func splitKeys[V any](keys []scene.Key[V]) ([]uint32, []V) {
	frames := make([]uint32, len(keys))
	values := make([]V, len(keys))
	for i, k := range keys {
		frames[i] = k.Frame
		values[i] = k.Value
	}
	return frames, values
}

func joinKeys[V any](frames []uint32, values []V) ([]scene.Key[V], error) {
	if len(frames) != len(values) {
		return nil, fmt.Errorf("%w: %d key frames with %d values", ErrFormat, len(frames), len(values))
	}
	keys := make([]scene.Key[V], len(frames))
	for i := range keys {
		keys[i] = scene.Key[V]{Frame: frames[i], Value: values[i]}
	}
	return keys, nil
}

func decodeAnimation(n *Node) (*scene.Animation, string, error) {
	name, err := optString(n, "n")
	if err != nil {
		return nil, "", err
	}
	a := &scene.Animation{}
	if p, ok := n.Props["fr"]; ok {
		fr, err := p.AsFloats()
		if err != nil {
			return nil, "", err
		}
		if len(fr) > 0 {
			a.Framerate = fr[0]
		}
	}
	fc, err := optInt(n, "fc")
	if err != nil {
		return nil, "", err
	}
	a.FrameCount = int(fc)
	loop, err := optInt(n, "lo")
	if err != nil {
		return nil, "", err
	}
	a.Loop = loop != 0

	width := widthFor(max(a.FrameCount, 0))
	byBone := make(map[string]*scene.Curve)
	for _, cn := range n.ChildrenOf(NodeCurve) {
		bone, err := optString(cn, "nn")
		if err != nil {
			return nil, "", err
		}
		key, err := optString(cn, "kp")
		if err != nil {
			return nil, "", err
		}
		kb, err := cn.Prop("kb")
		if err != nil {
			return nil, "", err
		}
		frames, err := kb.AsIndices(width)
		if err != nil {
			return nil, "", fmt.Errorf("curve %q: %w", bone, err)
		}
		kv, err := cn.Prop("kv")
		if err != nil {
			return nil, "", err
		}

		c, ok := byBone[bone]
		if !ok {
			c = &scene.Curve{Bone: bone}
			byBone[bone] = c
			a.Curves = append(a.Curves, c)
		}
		switch key {
		case keyTranslation, keyScale:
			values, err := kv.AsVec3s()
			if err != nil {
				return nil, "", err
			}
			keys, err := joinKeys(frames, values)
			if err != nil {
				return nil, "", err
			}
			if key == keyTranslation {
				c.Translation = keys
			} else {
				c.Scale = keys
			}
		case keyRotation:
			values, err := kv.AsVec4s()
			if err != nil {
				return nil, "", err
			}
			if c.Rotation, err = joinKeys(frames, values); err != nil {
				return nil, "", err
			}
		default:
			return nil, "", fmt.Errorf("%w: curve %q has unknown key property %q", ErrFormat, bone, key)
		}
	}
	if err := a.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: cast: %w", ErrFormat, err)
	}
	return a, name, nil
}
