package asset

import (
	"fmt"

	"github.com/meigma/assetlift/internal/binio"
	"github.com/meigma/assetlift/internal/sizing"
	"github.com/meigma/assetlift/scene"
)

// ReadAnimation decodes an XANM payload. Key frame indices use the width of
// the frame count.
func ReadAnimation(data []byte) (*scene.Animation, error) {
	r, err := open(data, MagicAnimation)
	if err != nil {
		return nil, err
	}
	anim := &scene.Animation{Framerate: r.F32()}
	frames := r.U32()
	anim.FrameCount = int(frames)
	anim.Loop = r.U8() != 0
	count := r.Count(2 + 1)
	if err := finish(r, "animation header"); err != nil {
		return nil, err
	}

	width := sizing.WidthFor(uint64(frames))
	anim.Curves = make([]*scene.Curve, 0, count)
	for range count {
		c := &scene.Curve{Bone: r.Str16()}
		mask := r.U8()
		if mask&ChannelTranslation != 0 {
			c.Translation = readVec3Keys(r, width)
		}
		if mask&ChannelRotation != 0 {
			c.Rotation = readVec4Keys(r, width)
		}
		if mask&ChannelScale != 0 {
			c.Scale = readVec3Keys(r, width)
		}
		if err := finish(r, "curve "+c.Bone); err != nil {
			return nil, err
		}
		anim.Curves = append(anim.Curves, c)
	}
	if err := anim.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return anim, nil
}

func readVec3Keys(r *binio.Reader, width sizing.Width) []scene.Key[scene.Vec3] {
	keys := make([]scene.Key[scene.Vec3], r.Count(int(width)+12))
	for i := range keys {
		keys[i] = scene.Key[scene.Vec3]{Frame: r.Index(width), Value: r.Vec3()}
	}
	return keys
}

func readVec4Keys(r *binio.Reader, width sizing.Width) []scene.Key[scene.Vec4] {
	keys := make([]scene.Key[scene.Vec4], r.Count(int(width)+16))
	for i := range keys {
		keys[i] = scene.Key[scene.Vec4]{Frame: r.Index(width), Value: r.Vec4()}
	}
	return keys
}
