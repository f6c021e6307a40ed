// Package backend defines what the actor runtime needs from a rendering
// backend: GPU-visible buffers, textures and a write fence. Implementations
// wrap a real graphics API or, in this repository, the CPU rasterizer.
package backend

import "fmt"

// Buffer is an opaque buffer handle. The zero value is never a valid buffer.
type Buffer uint32

// Texture is an opaque texture handle. The zero value is never a valid texture.
type Texture uint32

// Usage tells the backend how a buffer will be bound.
type Usage int

const (
	UsageVertex Usage = iota
	UsageIndex
	UsageSkinning
)

func (u Usage) String() string {
	switch u {
	case UsageVertex:
		return "vertex"
	case UsageIndex:
		return "index"
	case UsageSkinning:
		return "skinning"
	}
	return fmt.Sprintf("usage(%d)", int(u))
}

// TextureKind selects a built-in placeholder texture.
type TextureKind int

const (
	TextureWhite TextureKind = iota // diffuse and multiplicative sphere maps
	TextureBlack                    // additive sphere maps
	TextureGray                     // toon ramps
)

func (k TextureKind) String() string {
	switch k {
	case TextureWhite:
		return "white"
	case TextureBlack:
		return "black"
	case TextureGray:
		return "gray"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Backend is the capability set consumed by the actor runtime.
//
// Map returns memory the caller may write until Unmap. SafeToWrite reports
// whether the GPU has finished reading b; WaitSafeToWrite blocks until it
// has. Callers must wait before mapping a buffer that was submitted for a
// previous frame.
//
// Textures returned by LoadTexture belong to the caller until
// ReleaseTexture. Default textures are owned by the backend and are never
// released.
type Backend interface {
	AllocateBuffer(size int, usage Usage) (Buffer, error)
	Map(b Buffer) ([]byte, error)
	Unmap(b Buffer) error
	ReleaseBuffer(b Buffer) error

	LoadTexture(path string) (Texture, error)
	DefaultTexture(kind TextureKind) Texture
	ReleaseTexture(t Texture) error

	SafeToWrite(b Buffer) bool
	WaitSafeToWrite(b Buffer)
}

// Layout constants of the buffers shared with backends.
const (
	VertexStride = 38 // bytes per vertex, the file record layout
	IndexWidth   = 2  // bytes per index
	MatrixSize   = 64 // 16 little-endian float32, column-major
)

// Geometry describes an actor's static buffers.
type Geometry struct {
	Vertices     Buffer
	Indices      Buffer
	VertexCount  int
	IndexCount   int
	VertexStride int
	IndexWidth   int
}

// SkinningView describes the skinning buffer a backend should read this
// frame. Matrix i belongs to bone i.
type SkinningView struct {
	Buffer Buffer
	Bones  int
}
