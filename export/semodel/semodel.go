// Package semodel reads and writes the SEModel flat binary model format.
//
// A file is a fixed header followed by bone names, bone records, meshes,
// materials and an optional morph block tagged "SEMorph". Presence bits in
// the header apply to every record of their kind: a stream one mesh lacks
// while another carries it is written zero-filled.
package semodel

import (
	"github.com/meigma/assetlift/internal/assettype"
)

// ErrFormat is returned for malformed files.
var ErrFormat = assettype.ErrFormat

// Magic and tag literals.
var (
	Magic    = []byte("SEModel")
	MorphTag = []byte("SEMorph")
)

const (
	// Version is the only version read or written.
	Version = 1
	// HeaderSize is the declared size of the fixed header.
	HeaderSize = 0x14
)

// Data presence bits.
const (
	HasBones = 1 << iota
	HasMeshes
	HasMaterials
)

// Bone presence bits.
const (
	BoneGlobal = 1 << iota
	BoneLocal
	BoneScale
)

// Mesh presence bits.
const (
	MeshUV = 1 << iota
	MeshNormals
	MeshColours
	MeshWeights
)
