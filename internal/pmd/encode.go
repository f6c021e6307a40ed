package pmd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Encode writes m in the exact layout Decode reads, so Decode(Encode(m))
// reproduces m. Strings are Shift-JIS encoded, must fit their fields and
// are zero padded. Re-encoding a decoded file therefore matches the
// original bytes only when its strings are valid Shift-JIS followed by
// zero padding.
func Encode(w io.Writer, m *Model) error {
	var buf bytes.Buffer
	buf.Grow(len(Signature) + HeaderSize + 16 +
		len(m.Vertices)*VertexSize + len(m.Indices)*IndexSize +
		len(m.Materials)*MaterialSize + len(m.Bones)*BoneSize)

	buf.WriteString(Signature)
	putF32(&buf, m.Header.Version)
	if err := putString(&buf, m.Header.Name, nameSize, "header.name"); err != nil {
		return err
	}
	if err := putString(&buf, m.Header.Comment, commentSize, "header.comment"); err != nil {
		return err
	}

	putU32(&buf, uint32(len(m.Vertices)))
	rec := make([]byte, VertexSize)
	for _, v := range m.Vertices {
		PutVertex(rec, v)
		buf.Write(rec)
	}

	putU32(&buf, uint32(len(m.Indices)))
	for _, i := range m.Indices {
		buf.Write(binary.LittleEndian.AppendUint16(nil, i))
	}

	putU32(&buf, uint32(len(m.Materials)))
	for i, mat := range m.Materials {
		putVec3(&buf, mat.Diffuse)
		putF32(&buf, mat.Alpha)
		putF32(&buf, mat.Specularity)
		putVec3(&buf, mat.Specular)
		putVec3(&buf, mat.Ambient)
		buf.WriteByte(byte(mat.Toon))
		buf.WriteByte(boolByte(mat.Edge))
		putU32(&buf, mat.IndexCount)
		if err := putString(&buf, mat.TexturePath, texPathSize, fmt.Sprintf("materials[%d].texture", i)); err != nil {
			return err
		}
	}

	putU32(&buf, uint32(len(m.Bones)))
	for i, b := range m.Bones {
		putU32(&buf, b.Index)
		if err := putString(&buf, b.Name, nameSize, fmt.Sprintf("bones[%d].name", i)); err != nil {
			return err
		}
		putU32(&buf, b.Parent)
		putVec3(&buf, b.Start)
		putVec3(&buf, b.End)
	}

	_, err := w.Write(buf.Bytes())
	return errors.Wrap(err, "pmd: write")
}

// PutVertex encodes v into the first VertexSize bytes of b.
func PutVertex(b []byte, v Vertex) {
	_ = b[VertexSize-1]
	for k := 0; k < 3; k++ {
		binary.LittleEndian.PutUint32(b[k*4:], math.Float32bits(v.Position[k]))
		binary.LittleEndian.PutUint32(b[12+k*4:], math.Float32bits(v.Normal[k]))
	}
	binary.LittleEndian.PutUint32(b[24:], math.Float32bits(v.UV[0]))
	binary.LittleEndian.PutUint32(b[28:], math.Float32bits(v.UV[1]))
	binary.LittleEndian.PutUint16(b[32:], v.Bones[0])
	binary.LittleEndian.PutUint16(b[34:], v.Bones[1])
	b[36] = v.Weight
	b[37] = boolByte(v.Edge)
}

func putU32(buf *bytes.Buffer, v uint32) {
	buf.Write(binary.LittleEndian.AppendUint32(nil, v))
}

func putF32(buf *bytes.Buffer, v float32) {
	putU32(buf, math.Float32bits(v))
}

func putVec3(buf *bytes.Buffer, v [3]float32) {
	for _, c := range v {
		putF32(buf, c)
	}
}

func putString(buf *bytes.Buffer, s string, n int, field string) error {
	b, err := encodeString(s, n, field)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
