package backend

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// PutMatrices writes ms into dst in the skinning buffer layout. dst must
// hold len(ms)*MatrixSize bytes.
func PutMatrices(dst []byte, ms []mgl32.Mat4) {
	for i, m := range ms {
		off := i * MatrixSize
		for k, v := range m {
			binary.LittleEndian.PutUint32(dst[off+k*4:], math.Float32bits(v))
		}
	}
}

// ReadMatrices decodes n matrices from src into dst, reusing dst when it
// has the capacity.
func ReadMatrices(src []byte, n int, dst []mgl32.Mat4) []mgl32.Mat4 {
	if cap(dst) < n {
		dst = make([]mgl32.Mat4, n)
	}
	dst = dst[:n]
	for i := range dst {
		off := i * MatrixSize
		for k := range dst[i] {
			dst[i][k] = math.Float32frombits(binary.LittleEndian.Uint32(src[off+k*4:]))
		}
	}
	return dst
}
