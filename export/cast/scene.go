package cast

import (
	"fmt"
	"io"

	"github.com/meigma/assetlift/scene"
)

// Write encodes a model or animation scene.
func Write(w io.Writer, sc *scene.Scene) error {
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("cast: %w", err)
	}
	if sc.Model != nil {
		return WriteModel(w, sc.Name, sc.Model)
	}
	return WriteAnimation(w, sc.Name, sc.Animation)
}

// Read decodes the first model or animation under the root node.
func Read(data []byte) (*scene.Scene, error) {
	root, err := Decode(data)
	if err != nil {
		return nil, err
	}
	for _, n := range root.Children {
		switch n.ID {
		case NodeModel:
			m, name, err := decodeModel(n)
			if err != nil {
				return nil, err
			}
			return &scene.Scene{Name: name, Model: m}, nil
		case NodeAnimation:
			a, name, err := decodeAnimation(n)
			if err != nil {
				return nil, err
			}
			return &scene.Scene{Name: name, Animation: a}, nil
		}
	}
	return nil, fmt.Errorf("%w: cast root holds no model or animation", ErrFormat)
}
