// Package raster is a CPU implementation of the render backend: buffers
// live in process memory and Draw rasterizes an actor into an image.
package raster

import (
	"image"
	"image/color"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"pmd-renderer/internal/backend"
	"pmd-renderer/internal/logging"
	"pmd-renderer/internal/mathutil"
	"pmd-renderer/internal/texture"
)

type buffer struct {
	data   []byte
	usage  backend.Usage
	mapped bool
}

// Backend is a backend.Backend on CPU memory.
//
// A buffer read by Draw stays in flight until Present or WaitSafeToWrite;
// mapping an in-flight buffer is an error. A Backend is not safe for
// concurrent use; run one per goroutine.
type Backend struct {
	buffers    map[backend.Buffer]*buffer
	inFlight   map[backend.Buffer]bool
	textures   map[backend.Texture]*image.NRGBA
	defaults   [3]backend.Texture
	nextBuffer backend.Buffer
	nextTex    backend.Texture

	light LightConfig

	// per-draw scratch, reused across frames
	fb    *FrameBuffer
	st    stream
	view  []mathutil.Vec3
	skin  []mgl32.Mat4
	stats Stats
}

// Stats counts the work of the latest Draw.
type Stats struct {
	Ranges    int
	Triangles int
}

var _ backend.Backend = (*Backend)(nil)

// New returns an empty backend with the placeholder textures installed.
func New() *Backend {
	b := &Backend{
		buffers:  make(map[backend.Buffer]*buffer),
		inFlight: make(map[backend.Buffer]bool),
		textures: make(map[backend.Texture]*image.NRGBA),
		light:    DefaultLightConfig(),
	}
	b.defaults[backend.TextureWhite] = b.addTexture(solid(color.NRGBA{255, 255, 255, 255}))
	b.defaults[backend.TextureBlack] = b.addTexture(solid(color.NRGBA{0, 0, 0, 255}))
	b.defaults[backend.TextureGray] = b.addTexture(solid(color.NRGBA{204, 204, 204, 255}))
	return b
}

func solid(c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, c)
	return img
}

func (b *Backend) addTexture(img *image.NRGBA) backend.Texture {
	b.nextTex++
	b.textures[b.nextTex] = img
	return b.nextTex
}

func (b *Backend) AllocateBuffer(size int, usage backend.Usage) (backend.Buffer, error) {
	if size < 0 {
		return 0, errors.Errorf("raster: negative %s buffer size %d", usage, size)
	}
	b.nextBuffer++
	b.buffers[b.nextBuffer] = &buffer{data: make([]byte, size), usage: usage}
	return b.nextBuffer, nil
}

func (b *Backend) lookup(h backend.Buffer) (*buffer, error) {
	buf, ok := b.buffers[h]
	if !ok {
		return nil, errors.Errorf("raster: unknown buffer %d", h)
	}
	return buf, nil
}

func (b *Backend) Map(h backend.Buffer) ([]byte, error) {
	buf, err := b.lookup(h)
	if err != nil {
		return nil, err
	}
	if b.inFlight[h] {
		return nil, errors.Errorf("raster: map of in-flight %s buffer %d", buf.usage, h)
	}
	if buf.mapped {
		return nil, errors.Errorf("raster: %s buffer %d already mapped", buf.usage, h)
	}
	buf.mapped = true
	return buf.data, nil
}

func (b *Backend) Unmap(h backend.Buffer) error {
	buf, err := b.lookup(h)
	if err != nil {
		return err
	}
	if !buf.mapped {
		return errors.Errorf("raster: %s buffer %d is not mapped", buf.usage, h)
	}
	buf.mapped = false
	return nil
}

func (b *Backend) ReleaseBuffer(h backend.Buffer) error {
	if _, err := b.lookup(h); err != nil {
		return err
	}
	delete(b.buffers, h)
	delete(b.inFlight, h)
	return nil
}

// LoadTexture decodes the image file at path.
func (b *Backend) LoadTexture(path string) (backend.Texture, error) {
	img, err := texture.Decode(path)
	if err != nil {
		return 0, err
	}
	h := b.addTexture(img)
	logging.Logger().Debug("raster: texture loaded",
		slog.String("path", path),
		slog.Int("width", img.Rect.Dx()),
		slog.Int("height", img.Rect.Dy()))
	return h, nil
}

func (b *Backend) DefaultTexture(kind backend.TextureKind) backend.Texture {
	if int(kind) < 0 || int(kind) >= len(b.defaults) {
		return b.defaults[backend.TextureWhite]
	}
	return b.defaults[kind]
}

// ReleaseTexture drops a texture returned by LoadTexture. Placeholders
// cannot be released.
func (b *Backend) ReleaseTexture(h backend.Texture) error {
	for _, d := range b.defaults {
		if h == d {
			return errors.Errorf("raster: texture %d is a placeholder", h)
		}
	}
	if _, ok := b.textures[h]; !ok {
		return errors.Errorf("raster: unknown texture %d", h)
	}
	delete(b.textures, h)
	return nil
}

// Texture returns the image behind h, or nil.
func (b *Backend) Texture(h backend.Texture) *image.NRGBA { return b.textures[h] }

func (b *Backend) SafeToWrite(h backend.Buffer) bool { return !b.inFlight[h] }

// WaitSafeToWrite retires h. Draw finishes before returning, so there is
// never anything left to wait for.
func (b *Backend) WaitSafeToWrite(h backend.Buffer) {
	delete(b.inFlight, h)
}

// Present ends the frame and retires every buffer read since the last
// Present.
func (b *Backend) Present() {
	clear(b.inFlight)
}

// Stats reports the latest Draw.
func (b *Backend) Stats() Stats { return b.stats }

// Live returns the number of allocated buffers.
func (b *Backend) Live() int { return len(b.buffers) }

// LiveTextures returns the number of loaded textures, placeholders excluded.
func (b *Backend) LiveTextures() int { return len(b.textures) - len(b.defaults) }
