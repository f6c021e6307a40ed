package raster

import (
	"image"

	"golang.org/x/image/draw"
)

// Downsample reduces img to size×size with premultiplied-alpha-aware
// Catmull-Rom filtering, avoiding dark fringes at transparent edges.
func Downsample(img *image.NRGBA, size int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() <= size && b.Dy() <= size {
		return img
	}

	premul := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			si := img.PixOffset(x, y)
			di := premul.PixOffset(x, y)
			a := float64(img.Pix[si+3]) / 255.0
			for c := range 3 {
				premul.Pix[di+c] = uint8(float64(img.Pix[si+c])*a + 0.5)
			}
			premul.Pix[di+3] = img.Pix[si+3]
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), premul, premul.Bounds(), draw.Src, nil)

	out := image.NewNRGBA(dst.Bounds())
	for i := 0; i < len(dst.Pix); i += 4 {
		a := float64(dst.Pix[i+3])
		if a > 1 {
			inv := 255.0 / a
			for c := range 3 {
				out.Pix[i+c] = clamp255(float64(dst.Pix[i+c]) * inv)
			}
		}
		out.Pix[i+3] = dst.Pix[i+3]
	}
	return out
}
