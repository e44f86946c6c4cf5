package asset

import (
	"fmt"

	"github.com/meigma/assetlift/scene"
)

// boneRecordMin is the smallest encoded bone: an empty name, the parent
// index and the pose.
const boneRecordMin = 2 + 4 + 12 + 16 + 12

// ReadSkeleton decodes an XSKL payload. Parent indices are resolved into
// back-references; a parent must precede its child.
func ReadSkeleton(data []byte) (*scene.Skeleton, error) {
	r, err := open(data, MagicSkeleton)
	if err != nil {
		return nil, err
	}
	count := r.Count(boneRecordMin)
	bones := make([]*scene.Bone, count)
	parents := make([]int32, count)
	for i := range count {
		b := &scene.Bone{Name: r.Str16()}
		parents[i] = r.I32()
		b.Position = r.Vec3()
		b.Rotation = r.Vec4()
		b.Scale = r.Vec3()
		bones[i] = b
	}
	if err := finish(r, "skeleton"); err != nil {
		return nil, err
	}
	sk, err := scene.BuildSkeleton(bones, parents)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return sk, nil
}
