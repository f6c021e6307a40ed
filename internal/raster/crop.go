package raster

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// CropAndCenter crops img to its non-transparent pixels and scales the
// result so its longer side spans fill×size, centered on a size×size
// transparent canvas. A fully transparent image comes back as an empty
// canvas.
func CropAndCenter(img *image.NRGBA, size int, fill float64) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
	box := opaqueBounds(img)
	if box.Empty() {
		return canvas
	}

	scale := float64(size) * fill / math.Max(float64(box.Dx()), float64(box.Dy()))
	w := max(int(float64(box.Dx())*scale+0.5), 1)
	h := max(int(float64(box.Dy())*scale+0.5), 1)
	off := image.Pt((size-w)/2, (size-h)/2)

	draw.CatmullRom.Scale(canvas, image.Rectangle{Min: off, Max: off.Add(image.Pt(w, h))}, img, box, draw.Src, nil)
	return canvas
}

// opaqueBounds returns the smallest rectangle holding every pixel with
// nonzero alpha.
func opaqueBounds(img *image.NRGBA) image.Rectangle {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			if row[x*4+3] == 0 {
				continue
			}
			minX = min(minX, b.Min.X+x)
			maxX = max(maxX, b.Min.X+x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
