package raster

import (
	"image"
	"math"

	"pmd-renderer/internal/mathutil"
	"pmd-renderer/internal/pmd"
)

// stream holds one draw's vertices in screen space.
type stream struct {
	px, py, pz []float64
	uv         [][2]float32
	sphere     [][2]float64 // sphere map coordinates from view-space normals
}

func (s *stream) reset(n int) {
	s.px = grow(s.px, n)
	s.py = grow(s.py, n)
	s.pz = grow(s.pz, n)
	if cap(s.uv) < n {
		s.uv = make([][2]float32, n)
	}
	s.uv = s.uv[:n]
	if cap(s.sphere) < n {
		s.sphere = make([][2]float64, n)
	}
	s.sphere = s.sphere[:n]
}

func grow(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}

// surface is the material state of one draw range.
type surface struct {
	tex         *image.NRGBA // nil draws the tint only
	sphere      *image.NRGBA
	sphereMode  pmd.SphereMode
	tint        [3]float64 // linear multiplier
	alpha       float64
	specularity float64
}

// rasterize fills one triangle with texture mapping, z-buffer, alpha
// blending, flat lighting and ACES tone mapping.
//
// Hot path: no allocation inside the pixel loop.
func rasterize(fb *FrameBuffer, s *stream, vi [3]int, sf *surface, lc *LightConfig) {
	n := len(s.px)
	for _, i := range vi {
		if i < 0 || i >= n {
			return
		}
	}

	x0, y0, z0 := s.px[vi[0]], s.py[vi[0]], s.pz[vi[0]]
	x1, y1, z1 := s.px[vi[1]], s.py[vi[1]], s.pz[vi[1]]
	x2, y2, z2 := s.px[vi[2]], s.py[vi[2]], s.pz[vi[2]]

	// Face normal for flat shading. Screen y points down.
	e1 := mathutil.Vec3{x1 - x0, y0 - y1, z1 - z0}
	e2 := mathutil.Vec3{x2 - x0, y0 - y2, z2 - z0}
	normal := e1.Cross(e2)
	if normal.Len() < 1e-8 {
		return
	}
	shade := lc.Shade(normal.Normalize(), sf.specularity)

	minX := max(int(math.Min(math.Min(x0, x1), x2)), 0)
	maxX := min(int(math.Max(math.Max(x0, x1), x2))+1, fb.Width-1)
	minY := max(int(math.Min(math.Min(y0, y1), y2)), 0)
	maxY := min(int(math.Max(math.Max(y0, y1), y2))+1, fb.Height-1)
	if minX > maxX || minY > maxY {
		return
	}

	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if det > -1e-8 && det < 1e-8 {
		return
	}
	invDet := 1.0 / det

	dy12 := y1 - y2
	dx21 := x2 - x1
	dy20 := y2 - y0
	dx02 := x0 - x2

	uv0, uv1, uv2 := s.uv[vi[0]], s.uv[vi[1]], s.uv[vi[2]]
	sp0, sp1, sp2 := s.sphere[vi[0]], s.sphere[vi[1]], s.sphere[vi[2]]
	gain := shade * lc.Exposure

	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) - y2
		rowOff := sy * fb.Width
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) - x2
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1
			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}

			z := w0*z0 + w1*z1 + w2*z2
			zIdx := rowOff + sx
			if z <= fb.ZBuf[zIdx] {
				continue
			}

			var cr, cg, cb, ca uint8 = 255, 255, 255, 255
			if sf.tex != nil {
				u := w0*float64(uv0[0]) + w1*float64(uv1[0]) + w2*float64(uv2[0])
				v := w0*float64(uv0[1]) + w1*float64(uv1[1]) + w2*float64(uv2[1])
				cr, cg, cb, ca = SampleTexture(sf.tex, u, v)
			}
			alpha := float64(ca) / 255 * sf.alpha
			if alpha < 8.0/255 {
				continue
			}

			lr := srgbToLinear[cr] * sf.tint[0]
			lg := srgbToLinear[cg] * sf.tint[1]
			lb := srgbToLinear[cb] * sf.tint[2]

			if sf.sphere != nil {
				su := w0*sp0[0] + w1*sp1[0] + w2*sp2[0]
				sv := w0*sp0[1] + w1*sp1[1] + w2*sp2[1]
				mr, mg, mb, _ := SampleClamped(sf.sphere, su, sv)
				switch sf.sphereMode {
				case pmd.SphereMultiply:
					lr *= srgbToLinear[mr]
					lg *= srgbToLinear[mg]
					lb *= srgbToLinear[mb]
				case pmd.SphereAdd:
					lr += srgbToLinear[mr]
					lg += srgbToLinear[mg]
					lb += srgbToLinear[mb]
				}
			}

			fr := math.Pow(ACESTonemap(lr*gain), lc.InvGamma) * 255
			fg := math.Pow(ACESTonemap(lg*gain), lc.InvGamma) * 255
			fbl := math.Pow(ACESTonemap(lb*gain), lc.InvGamma) * 255

			fb.ZBuf[zIdx] = z
			px := zIdx * 4
			if alpha >= 1 {
				fb.Color[px] = clamp255(fr)
				fb.Color[px+1] = clamp255(fg)
				fb.Color[px+2] = clamp255(fbl)
				fb.Color[px+3] = 255
				continue
			}

			// Source-over onto whatever is already there.
			dstA := float64(fb.Color[px+3]) / 255
			outA := alpha + dstA*(1-alpha)
			fb.Color[px] = over(fr, fb.Color[px], alpha, dstA, outA)
			fb.Color[px+1] = over(fg, fb.Color[px+1], alpha, dstA, outA)
			fb.Color[px+2] = over(fbl, fb.Color[px+2], alpha, dstA, outA)
			fb.Color[px+3] = clamp255(outA * 255)
		}
	}
}

func over(src float64, dst uint8, alpha, dstA, outA float64) uint8 {
	return clamp255((src*alpha + float64(dst)*dstA*(1-alpha)) / outA)
}
