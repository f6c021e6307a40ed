// Package pmdtest builds small models for tests.
package pmdtest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"pmd-renderer/internal/pmd"
)

// TwoBone returns a quad (4 vertices, 6 indices, one material) skinned to
// a root bone and one child: the bottom edge follows the root, the top edge
// follows the child.
func TwoBone() *pmd.Model {
	return &pmd.Model{
		Header: pmd.Header{Version: 1, Name: "四角", Comment: "two bone quad"},
		Vertices: []pmd.Vertex{
			{Position: [3]float32{-1, 0, 0}, Normal: [3]float32{0, 0, -1}, UV: [2]float32{0, 1}, Bones: [2]uint16{0, 1}, Weight: 255},
			{Position: [3]float32{1, 0, 0}, Normal: [3]float32{0, 0, -1}, UV: [2]float32{1, 1}, Bones: [2]uint16{0, 1}, Weight: 255},
			{Position: [3]float32{1, 2, 0}, Normal: [3]float32{0, 0, -1}, UV: [2]float32{1, 0}, Bones: [2]uint16{0, 1}, Weight: 0, Edge: true},
			{Position: [3]float32{-1, 2, 0}, Normal: [3]float32{0, 0, -1}, UV: [2]float32{0, 0}, Bones: [2]uint16{0, 1}, Weight: 0, Edge: true},
		},
		Indices: []uint16{0, 1, 2, 0, 2, 3},
		Materials: []pmd.Material{{
			Diffuse:     [3]float32{0.8, 0.8, 0.8},
			Alpha:       1,
			Specularity: 5,
			Specular:    [3]float32{0.1, 0.1, 0.1},
			Ambient:     [3]float32{0.2, 0.2, 0.2},
			Toon:        pmd.NoToon,
			Edge:        true,
			IndexCount:  6,
		}},
		Bones: []pmd.Bone{
			{Index: 0, Name: "センター", Parent: pmd.NoParent, Start: [3]float32{0, 0, 0}, End: [3]float32{0, 1, 0}},
			{Index: 1, Name: "arm", Parent: 0, Start: [3]float32{0, 1, 0}, End: [3]float32{0, 2, 0}},
		},
	}
}

// Chain returns a model whose skeleton is the chain root → a → b, plus a
// second root with no children. Two materials split its six indices.
func Chain() *pmd.Model {
	m := TwoBone()
	m.Materials = []pmd.Material{
		{Diffuse: [3]float32{1, 0, 0}, Alpha: 1, Toon: 0, IndexCount: 3, TexturePath: "body.bmp"},
		{Diffuse: [3]float32{0, 0, 1}, Alpha: 0.5, Toon: pmd.NoToon, IndexCount: 3, TexturePath: "face.tga*env.spa"},
	}
	m.Bones = []pmd.Bone{
		{Index: 0, Name: "root", Parent: pmd.NoParent, Start: [3]float32{0, 0, 0}},
		{Index: 1, Name: "a", Parent: 0, Start: [3]float32{0, 1, 0}},
		{Index: 2, Name: "b", Parent: 1, Start: [3]float32{0, 2.5, 0.25}},
		{Index: 3, Name: "prop", Parent: pmd.NoParent, Start: [3]float32{3, 0, 0}},
	}
	return m
}

// Encode returns the file bytes of m, failing tb on error.
func Encode(tb testing.TB, m *pmd.Model) []byte {
	tb.Helper()
	var buf bytes.Buffer
	if err := pmd.Encode(&buf, m); err != nil {
		tb.Fatalf("pmd.Encode: %v", err)
	}
	return buf.Bytes()
}

// WriteFile encodes m into dir/name and returns the path.
func WriteFile(tb testing.TB, dir, name string, m *pmd.Model) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Encode(tb, m), 0644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}
