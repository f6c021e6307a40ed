package pmd

import (
	"math"
	"strings"
)

// Signature is the literal every model file starts with.
const Signature = "Pmd"

// Record sizes of the fixed-width blocks, in bytes.
const (
	HeaderSize   = 4 + nameSize + commentSize
	VertexSize   = 38
	IndexSize    = 2
	MaterialSize = 70
	BoneSize     = 52

	nameSize    = 20
	commentSize = 256
	texPathSize = 20
)

// NoParent marks a root bone.
const NoParent uint32 = 0xFFFFFFFF

// NoToon marks a material without a toon ramp.
const NoToon int8 = -1

// Header holds the descriptive fields following the signature.
type Header struct {
	Version float32
	Name    string
	Comment string
}

// Vertex is one 38-byte vertex record.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
	Bones    [2]uint16 // the two influencing bones
	Weight   uint8     // 0–255 weight of Bones[0]; Bones[1] gets 255−Weight
	Edge     bool
}

// Weights returns the blend factors of both bones, summing to 1.
func (v Vertex) Weights() (float32, float32) {
	w := float32(v.Weight) / 255
	return w, 1 - w
}

// Material covers IndexCount consecutive indices, following the previous
// material's range.
type Material struct {
	Diffuse     [3]float32
	Alpha       float32
	Specularity float32
	Specular    [3]float32
	Ambient     [3]float32
	Toon        int8 // palette slot 0..9, NoToon for none
	Edge        bool
	IndexCount  uint32
	TexturePath string // empty means no texture
}

// SphereMode says how a sphere map combines with the base color.
type SphereMode int

const (
	SphereNone SphereMode = iota
	SphereMultiply
	SphereAdd
)

// Textures splits TexturePath into the base texture and the optional
// sphere map ("base.bmp*env.sph"). A lone .sph/.spa name is a sphere map
// without a base texture.
func (m Material) Textures() (base, sphere string, mode SphereMode) {
	base = m.TexturePath
	if i := strings.IndexByte(base, '*'); i >= 0 {
		base, sphere = base[:i], base[i+1:]
	} else if sphereModeOf(base) != SphereNone {
		base, sphere = "", base
	}
	return base, sphere, sphereModeOf(sphere)
}

func sphereModeOf(name string) SphereMode {
	n := strings.ToLower(name)
	switch {
	case strings.HasSuffix(n, ".sph"):
		return SphereMultiply
	case strings.HasSuffix(n, ".spa"):
		return SphereAdd
	}
	return SphereNone
}

// Bone is a flat bone record as stored in the file.
type Bone struct {
	Index  uint32
	Name   string
	Parent uint32 // NoParent for roots
	Start  [3]float32
	End    [3]float32
}

// IsRoot reports whether the bone has no parent.
func (b Bone) IsRoot() bool {
	return b.Parent == NoParent
}

// Model is a fully decoded model file. It is not modified after decoding.
type Model struct {
	Header    Header
	Vertices  []Vertex
	Indices   []uint16
	Materials []Material
	Bones     []Bone
}

// Bounds returns the axis-aligned bounding box of all vertex positions.
// An empty model yields zero vectors.
func (m *Model) Bounds() (lo, hi [3]float32) {
	if len(m.Vertices) == 0 {
		return lo, hi
	}
	lo = [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi = [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for _, v := range m.Vertices {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], v.Position[k])
			hi[k] = max(hi[k], v.Position[k])
		}
	}
	return lo, hi
}
