package pmd

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// Parse reads and decodes a model file.
func Parse(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "pmd: read %s", path)
	}
	m, err := Decode(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "pmd: decode %s", path)
	}
	return m, nil
}

// Decode parses a complete model from data.
//
// Validation is eager: every index is checked against the vertex count and
// the material index counts must partition the index array exactly, so a
// returned Model is always safe to render. On failure the error is a
// *FormatError or *TruncatedInputError (matching ErrFormat or ErrTruncated)
// and no Model is returned.
func Decode(data []byte) (*Model, error) {
	r := &reader{data: data}

	sig := r.take(len(Signature), "signature")
	if r.err == nil && string(sig) != Signature {
		r.fail(0, "signature", fmt.Sprintf("got %q, want %q", sig, Signature))
	}

	m := &Model{}
	m.Header.Version = r.f32("header.version")
	m.Header.Name = r.str(nameSize, "header.name")
	m.Header.Comment = r.str(commentSize, "header.comment")

	m.Vertices = r.vertices()
	m.Indices = r.indices(len(m.Vertices))
	m.Materials = r.materials(len(m.Indices))
	m.Bones = r.bones()

	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}

func (r *reader) vertices() []Vertex {
	base := r.off + 4
	n, b := r.block(VertexSize, "vertices")
	if r.err != nil {
		return nil
	}
	verts := make([]Vertex, n)
	for i := range verts {
		rec := b[i*VertexSize : (i+1)*VertexSize]
		verts[i] = ReadVertex(rec)
		if edge := rec[37]; edge > 1 {
			r.fail(base+i*VertexSize+37, fmt.Sprintf("vertices[%d].edge", i), fmt.Sprintf("flag %d is not 0 or 1", edge))
			return nil
		}
	}
	return verts
}

func (r *reader) indices(vertexCount int) []uint16 {
	base := r.off + 4
	n, b := r.block(IndexSize, "indices")
	if r.err != nil {
		return nil
	}
	idx := make([]uint16, n)
	for i := range idx {
		v := binary.LittleEndian.Uint16(b[i*IndexSize:])
		if int(v) >= vertexCount {
			r.fail(base+i*IndexSize, fmt.Sprintf("indices[%d]", i),
				fmt.Sprintf("vertex %d out of range (%d vertices)", v, vertexCount))
			return nil
		}
		idx[i] = v
	}
	return idx
}

func (r *reader) materials(indexCount int) []Material {
	base := r.off + 4
	n, b := r.block(MaterialSize, "materials")
	if r.err != nil {
		return nil
	}
	mats := make([]Material, n)
	var sum uint64
	for i := range mats {
		rec := b[i*MaterialSize : (i+1)*MaterialSize]
		m := Material{
			Diffuse:     vec3At(rec[0:]),
			Alpha:       lef32(rec[12:]),
			Specularity: lef32(rec[16:]),
			Specular:    vec3At(rec[20:]),
			Ambient:     vec3At(rec[32:]),
			Toon:        int8(rec[44]),
			Edge:        rec[45] != 0,
			IndexCount:  le32(rec[46:]),
			TexturePath: decodeString(rec[50:70]),
		}
		if rec[45] > 1 {
			r.fail(base+i*MaterialSize+45, fmt.Sprintf("materials[%d].edge", i), fmt.Sprintf("flag %d is not 0 or 1", rec[45]))
			return nil
		}
		sum += uint64(m.IndexCount)
		mats[i] = m
	}
	if sum != uint64(indexCount) {
		r.fail(base, "materials.indexCount",
			fmt.Sprintf("material index counts sum to %d, index array has %d", sum, indexCount))
		return nil
	}
	return mats
}

func (r *reader) bones() []Bone {
	n, b := r.block(BoneSize, "bones")
	if r.err != nil {
		return nil
	}
	bones := make([]Bone, n)
	for i := range bones {
		rec := b[i*BoneSize : (i+1)*BoneSize]
		bones[i] = Bone{
			Index:  le32(rec[0:]),
			Name:   decodeString(rec[4:24]),
			Parent: le32(rec[24:]),
			Start:  vec3At(rec[28:]),
			End:    vec3At(rec[40:]),
		}
	}
	return bones
}

// ReadVertex decodes one 38-byte vertex record. b must hold at least
// VertexSize bytes. Backends reading a mapped vertex buffer use it too.
func ReadVertex(b []byte) Vertex {
	_ = b[VertexSize-1]
	return Vertex{
		Position: vec3At(b[0:]),
		Normal:   vec3At(b[12:]),
		UV:       [2]float32{lef32(b[24:]), lef32(b[28:])},
		Bones:    [2]uint16{binary.LittleEndian.Uint16(b[32:]), binary.LittleEndian.Uint16(b[34:])},
		Weight:   b[36],
		Edge:     b[37] != 0,
	}
}
