package actor

import (
	"iter"

	"pmd-renderer/internal/backend"
	"pmd-renderer/internal/pmd"
	"pmd-renderer/internal/texture"
)

// Material is a decoded material with its index range and resolved textures.
type Material struct {
	pmd.Material

	Offset int // first index of the range
	Count  int // number of indices

	Texture    backend.Texture
	Sphere     backend.Texture
	SphereMode pmd.SphereMode
	Toon       backend.Texture
}

// DrawRange is one draw call: Count indices starting at Offset, drawn with Material.
type DrawRange struct {
	Offset   int
	Count    int
	Material *Material
}

// MaterialTable holds the materials of one model in file order.
type MaterialTable struct {
	materials []Material
}

// NewMaterialTable assigns consecutive index ranges and resolves every
// texture reference through cache.
func NewMaterialTable(src []pmd.Material, cache *texture.Cache) *MaterialTable {
	t := &MaterialTable{materials: make([]Material, len(src))}
	offset := 0
	for i, m := range src {
		base, sphere, mode := m.Textures()
		sphereKind := backend.TextureWhite
		if mode == pmd.SphereAdd {
			sphereKind = backend.TextureBlack
		}
		t.materials[i] = Material{
			Material:   m,
			Offset:     offset,
			Count:      int(m.IndexCount),
			Texture:    cache.Resolve(base, backend.TextureWhite),
			Sphere:     cache.Resolve(sphere, sphereKind),
			SphereMode: mode,
			Toon:       cache.ResolveToon(m.Toon),
		}
		offset += int(m.IndexCount)
	}
	return t
}

func (t *MaterialTable) Len() int { return len(t.materials) }

// At returns material i.
func (t *MaterialTable) At(i int) *Material { return &t.materials[i] }

// Ranges yields one DrawRange per non-empty material in file order. The
// sequence is computed on iteration and can be ranged over any number of
// times.
func (t *MaterialTable) Ranges() iter.Seq[DrawRange] {
	return func(yield func(DrawRange) bool) {
		for i := range t.materials {
			m := &t.materials[i]
			if m.Count == 0 {
				continue
			}
			if !yield(DrawRange{Offset: m.Offset, Count: m.Count, Material: m}) {
				return
			}
		}
	}
}
