// Package texture locates, decodes and caches the textures a model refers to.
package texture

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// Decode reads an image file referenced by a model. Sphere maps (.sph,
// .spa) are BMP files under another extension. The decoder is picked by
// extension; unknown extensions are sniffed by magic number. TGA has no
// magic number and is only read from .tga files.
func Decode(path string) (*image.NRGBA, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "texture: read %s", path)
	}

	r := bytes.NewReader(raw)
	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bmp", ".sph", ".spa":
		img, err = bmp.Decode(r)
	case ".tga":
		img, err = tga.Decode(r)
	case ".webp":
		img, err = webp.Decode(r)
	case ".png":
		img, err = png.Decode(r)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(r)
	default:
		img, err = sniff(raw, r)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "texture: decode %s", path)
	}
	return toNRGBA(img), nil
}

// sniff picks a decoder from the leading bytes. The image package registry
// is not used because the tga package registers an empty magic string that
// matches every input.
func sniff(raw []byte, r io.Reader) (image.Image, error) {
	switch {
	case bytes.HasPrefix(raw, []byte("\x89PNG\r\n\x1a\n")):
		return png.Decode(r)
	case bytes.HasPrefix(raw, []byte("\xff\xd8")):
		return jpeg.Decode(r)
	case bytes.HasPrefix(raw, []byte("BM")):
		return bmp.Decode(r)
	case len(raw) >= 12 && string(raw[:4]) == "RIFF" && string(raw[8:12]) == "WEBP":
		return webp.Decode(r)
	}
	return nil, errors.New("unknown image format")
}

// toNRGBA converts any image to NRGBA with its origin at (0, 0).
func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
