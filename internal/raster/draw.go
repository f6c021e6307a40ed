package raster

import (
	"encoding/binary"
	"image"
	"iter"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"pmd-renderer/internal/actor"
	"pmd-renderer/internal/backend"
	"pmd-renderer/internal/mathutil"
	"pmd-renderer/internal/pmd"
)

// Drawable is what Draw needs from an actor.
type Drawable interface {
	Geometry() backend.Geometry
	Skinning() backend.SkinningView
	DrawRanges() iter.Seq[actor.DrawRange]
}

// Draw renders d into a cam.Size square image. Vertices are skinned from
// the bytes of d's buffers exactly as a GPU vertex stage would read them:
// two bones per vertex blended by weight/255.
//
// Every buffer read stays in flight until Present.
func (b *Backend) Draw(d Drawable, cam Camera) (*image.NRGBA, error) {
	if cam.Size <= 0 {
		return nil, errors.Errorf("raster: invalid image size %d", cam.Size)
	}
	geo := d.Geometry()
	sv := d.Skinning()
	if geo.VertexStride != backend.VertexStride || geo.IndexWidth != backend.IndexWidth {
		return nil, errors.Errorf("raster: unsupported layout (stride %d, index width %d)", geo.VertexStride, geo.IndexWidth)
	}

	vdata, err := b.readable(geo.Vertices, geo.VertexCount*geo.VertexStride)
	if err != nil {
		return nil, errors.Wrap(err, "raster: vertices")
	}
	idata, err := b.readable(geo.Indices, geo.IndexCount*geo.IndexWidth)
	if err != nil {
		return nil, errors.Wrap(err, "raster: indices")
	}
	sdata, err := b.readable(sv.Buffer, sv.Bones*backend.MatrixSize)
	if err != nil {
		return nil, errors.Wrap(err, "raster: skinning")
	}
	b.inFlight[geo.Vertices] = true
	b.inFlight[geo.Indices] = true
	b.inFlight[sv.Buffer] = true

	b.skin = backend.ReadMatrices(sdata, sv.Bones, b.skin)
	lo, hi := b.transform(vdata, geo.VertexCount, cam.View())

	size := cam.renderSize()
	fr := cam.frame(lo, hi, size)
	for i, t := range b.view {
		b.st.px[i], b.st.py[i], b.st.pz[i] = fr.project(t)
	}

	if b.fb == nil || b.fb.Width != size {
		b.fb = NewFrameBuffer(size, size)
	} else {
		b.fb.Clear()
	}

	b.stats = Stats{}
	for r := range d.DrawRanges() {
		sf := b.surface(r.Material)
		end := min(r.Offset+r.Count, geo.IndexCount)
		for k := r.Offset; k+2 < end; k += 3 {
			vi := [3]int{
				int(binary.LittleEndian.Uint16(idata[2*k:])),
				int(binary.LittleEndian.Uint16(idata[2*k+2:])),
				int(binary.LittleEndian.Uint16(idata[2*k+4:])),
			}
			rasterize(b.fb, &b.st, vi, &sf, &b.light)
			b.stats.Triangles++
		}
		b.stats.Ranges++
	}

	img := b.fb.Image()
	if cam.Supersample > 1 {
		img = Downsample(img, cam.Size)
	}
	return img, nil
}

func (b *Backend) readable(h backend.Buffer, n int) ([]byte, error) {
	buf, err := b.lookup(h)
	if err != nil {
		return nil, err
	}
	if buf.mapped {
		return nil, errors.Errorf("buffer %d is mapped", h)
	}
	if len(buf.data) < n {
		return nil, errors.Errorf("buffer %d holds %d bytes, need %d", h, len(buf.data), n)
	}
	return buf.data, nil
}

// transform skins every vertex, rotates it into view space and fills the
// stream's texture and sphere coordinates. It returns the view-space
// bounds of the bind pose.
func (b *Backend) transform(vdata []byte, n int, view mathutil.Mat3) (lo, hi mathutil.Vec3) {
	lo = mathutil.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi = mathutil.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	if cap(b.view) < n {
		b.view = make([]mathutil.Vec3, n)
	}
	b.view = b.view[:n]
	b.st.reset(n)

	for i := range n {
		v := pmd.ReadVertex(vdata[i*backend.VertexStride:])
		bind := view.MulVec3(mathutil.Vec3From32(v.Position))
		lo, hi = lo.Min(bind), hi.Max(bind)

		m := b.blend(v)
		p := m.Mul4x1(mgl32.Vec3(v.Position).Vec4(1))
		nrm := m.Mat3().Mul3x1(mgl32.Vec3(v.Normal))

		b.view[i] = view.MulVec3(mathutil.Vec3From32(p.Vec3()))
		vn := view.MulVec3(mathutil.Vec3From32(nrm)).Normalize()
		b.st.uv[i] = v.UV
		b.st.sphere[i] = [2]float64{vn[0]*0.5 + 0.5, 0.5 - vn[1]*0.5}
	}
	if n == 0 {
		lo, hi = mathutil.Vec3{}, mathutil.Vec3{}
	}
	return lo, hi
}

// blend returns the linear blend of the vertex's two skinning matrices.
// Bone references past the skeleton skin as identity.
func (b *Backend) blend(v pmd.Vertex) mgl32.Mat4 {
	w0, w1 := v.Weights()
	return b.bone(v.Bones[0]).Mul(w0).Add(b.bone(v.Bones[1]).Mul(w1))
}

func (b *Backend) bone(i uint16) mgl32.Mat4 {
	if int(i) < len(b.skin) {
		return b.skin[i]
	}
	return mgl32.Ident4()
}

func (b *Backend) surface(m *actor.Material) surface {
	sf := surface{
		tex:         b.textures[m.Texture],
		sphereMode:  m.SphereMode,
		alpha:       float64(m.Alpha),
		specularity: float64(m.Specularity),
	}
	if m.Texture == b.defaults[backend.TextureWhite] {
		sf.tex = nil
	}
	if m.SphereMode != pmd.SphereNone {
		sf.sphere = b.textures[m.Sphere]
	}
	for k := range sf.tint {
		sf.tint[k] = min(float64(m.Diffuse[k])+float64(m.Ambient[k]), 1)
	}
	return sf
}
