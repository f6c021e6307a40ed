package raster

import (
	"math"

	"pmd-renderer/internal/mathutil"
)

// DefaultFOV is the vertical field of view of perspective cameras, in degrees.
const DefaultFOV = 30.0

// Camera frames a model for Draw. The model is fitted to the image from its
// bind-pose bounds, so the framing stays put while the skeleton animates.
type Camera struct {
	Yaw         float64 // degrees about +Y, 0 looks at the model's front
	Pitch       float64 // degrees about +X
	Size        int     // output width and height in pixels
	Supersample int     // render at Size×Supersample, then downsample
	Margin      int     // border in output pixels
	Perspective bool
	FOV         float64 // degrees; 0 uses DefaultFOV
}

// DefaultCamera returns a front view at 512×512 with 2× supersampling.
func DefaultCamera() Camera {
	return Camera{Size: 512, Supersample: 2, Margin: 16}
}

// View returns the rotation from model space into view space. View space
// looks down +Z, so smaller z is nearer.
func (c Camera) View() mathutil.Mat3 {
	return mathutil.Mat3Mul(mathutil.RotX(mathutil.Deg2Rad(c.Pitch)), mathutil.RotY(mathutil.Deg2Rad(c.Yaw)))
}

func (c Camera) renderSize() int {
	return c.Size * max(c.Supersample, 1)
}

// framing maps view-space points to pixels.
type framing struct {
	center  mathutil.Vec3
	scale   float64
	half    float64
	persp   bool
	camDist float64
}

// frame fits the view-space box lo..hi into a size×size target.
func (c Camera) frame(lo, hi mathutil.Vec3, size int) framing {
	center := lo.Add(hi).Scale(0.5)
	span := max(hi[0]-lo[0], hi[1]-lo[1], 0.001)
	margin := c.Margin * max(c.Supersample, 1)

	f := framing{
		center: center,
		scale:  float64(size-2*margin) / span,
		half:   float64(size) / 2,
	}
	if c.Perspective {
		fov := c.FOV
		if fov == 0 {
			fov = DefaultFOV
		}
		f.persp = true
		f.camDist = (span / 2) / math.Tan(mathutil.Deg2Rad(fov/2))
	}
	return f
}

// project returns screen x, screen y and a depth where larger is nearer.
func (f framing) project(t mathutil.Vec3) (x, y, z float64) {
	dx, dy := t[0]-f.center[0], t[1]-f.center[1]
	if f.persp {
		depth := math.Max(f.camDist+t[2]-f.center[2], 0.1)
		factor := f.camDist / depth
		dx *= factor
		dy *= factor
	}
	return dx*f.scale + f.half, -dy*f.scale + f.half, -t[2]
}
