// Package actor runs one loaded model: it owns the model's GPU-visible
// buffers, evaluates its skeleton every frame and hands draw ranges to the
// backend.
package actor

import (
	"encoding/binary"
	"iter"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"pmd-renderer/internal/backend"
	"pmd-renderer/internal/logging"
	"pmd-renderer/internal/mathutil"
	"pmd-renderer/internal/pmd"
	"pmd-renderer/internal/skeleton"
	"pmd-renderer/internal/texture"
)

// Options configures Load.
type Options struct {
	ToonDir   string // shared toon ramps, searched after the model directory
	Animation Animation
}

// Actor is a loaded model bound to a backend.
//
// An Actor is driven by a single frame loop: Update, then the backend reads
// Skinning() and DrawRanges(). The skinning buffer is double buffered;
// Update writes the copy the backend is not showing and waits on the
// backend's fence for it before mapping.
type Actor struct {
	be        backend.Backend
	model     *pmd.Model
	hier      *skeleton.Hierarchy
	materials *MaterialTable
	cache     *texture.Cache
	swing     swing

	vertices backend.Buffer
	indices  backend.Buffer
	skin     [2]backend.Buffer
	visible  int

	elapsed  time.Duration
	pose     skeleton.Pose
	world    []mathutil.Mat4
	skinning []mathutil.Mat4
	staged   []mgl32.Mat4

	released bool
}

// Load reads the model at path and binds it to be. Textures are resolved
// relative to the model's directory.
func Load(path string, be backend.Backend, opts Options) (*Actor, error) {
	m, err := pmd.Parse(path)
	if err != nil {
		return nil, err
	}
	a, err := LoadModel(m, filepath.Dir(path), be, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "actor: load %s", path)
	}
	return a, nil
}

// LoadModel binds an already decoded model to be. dir is the base for
// relative texture references.
func LoadModel(m *pmd.Model, dir string, be backend.Backend, opts Options) (*Actor, error) {
	h, err := skeleton.Build(m.Bones)
	if err != nil {
		return nil, err
	}

	a := &Actor{
		be:      be,
		model:   m,
		hier:    h,
		swing:   newSwing(opts.Animation, h),
		pose:    make(skeleton.Pose),
		staged:  make([]mgl32.Mat4, h.Len()),
		visible: 1,
	}
	a.cache = texture.NewCache(be, dir, opts.ToonDir)
	a.materials = NewMaterialTable(m.Materials, a.cache)

	if err := a.allocate(); err != nil {
		a.releaseResources()
		return nil, err
	}
	if err := a.upload(); err != nil {
		a.releaseResources()
		return nil, err
	}

	// Stage the bind pose so the visible skinning buffer is valid before
	// the first Update.
	a.world = skeleton.Evaluate(h, nil, a.world)
	if err := a.stage(); err != nil {
		a.releaseResources()
		return nil, err
	}

	logging.Logger().Info("actor: loaded",
		slog.String("name", m.Header.Name),
		slog.Int("vertices", len(m.Vertices)),
		slog.Int("indices", len(m.Indices)),
		slog.Int("materials", len(m.Materials)),
		slog.Int("bones", h.Len()),
		slog.Int("textures", a.cache.Loads()))
	return a, nil
}

func (a *Actor) allocate() error {
	var err error
	if a.vertices, err = a.alloc(len(a.model.Vertices)*backend.VertexStride, backend.UsageVertex); err != nil {
		return err
	}
	if a.indices, err = a.alloc(len(a.model.Indices)*backend.IndexWidth, backend.UsageIndex); err != nil {
		return err
	}
	for i := range a.skin {
		if a.skin[i], err = a.alloc(a.hier.Len()*backend.MatrixSize, backend.UsageSkinning); err != nil {
			return err
		}
	}
	return nil
}

func (a *Actor) alloc(size int, usage backend.Usage) (backend.Buffer, error) {
	b, err := a.be.AllocateBuffer(size, usage)
	if err != nil {
		return 0, &ResourceAllocationError{Usage: usage, Size: size, Err: err}
	}
	logging.Logger().Debug("actor: buffer allocated",
		slog.String("usage", usage.String()),
		slog.Int("size", size))
	return b, nil
}

// upload copies the static geometry into the vertex and index buffers.
func (a *Actor) upload() error {
	vb, err := a.be.Map(a.vertices)
	if err != nil {
		return errors.Wrap(err, "actor: map vertex buffer")
	}
	for i, v := range a.model.Vertices {
		pmd.PutVertex(vb[i*backend.VertexStride:], v)
	}
	if err := a.be.Unmap(a.vertices); err != nil {
		return errors.Wrap(err, "actor: unmap vertex buffer")
	}

	ib, err := a.be.Map(a.indices)
	if err != nil {
		return errors.Wrap(err, "actor: map index buffer")
	}
	for i, idx := range a.model.Indices {
		binary.LittleEndian.PutUint16(ib[i*backend.IndexWidth:], idx)
	}
	return errors.Wrap(a.be.Unmap(a.indices), "actor: unmap index buffer")
}

// Update advances the animation clock by elapsed and recomputes every bone.
//
// With animate false all overrides are identity and the clock stands still,
// so the skinning buffer holds the bind pose. With animate true the
// configured bones swing about their joints; reverse flips the swing
// direction. When Update returns, the buffer reported by Skinning() is
// complete for this frame.
func (a *Actor) Update(elapsed time.Duration, animate, reverse bool) error {
	if a.released {
		return ErrReleased
	}
	if animate {
		a.elapsed += elapsed
	}
	a.swing.pose(a.pose, a.elapsed, animate, reverse)
	a.world = skeleton.Evaluate(a.hier, a.pose, a.world)
	return a.stage()
}

// stage writes the skinning matrices of a.world into the hidden skinning
// buffer and makes it the visible one.
func (a *Actor) stage() error {
	next := 1 - a.visible
	buf := a.skin[next]
	if !a.be.SafeToWrite(buf) {
		a.be.WaitSafeToWrite(buf)
	}

	a.skinning = skeleton.Skinning(a.hier, a.world, a.skinning)
	for i, m := range a.skinning {
		a.staged[i] = m.GL()
	}

	dst, err := a.be.Map(buf)
	if err != nil {
		return errors.Wrap(err, "actor: map skinning buffer")
	}
	backend.PutMatrices(dst, a.staged)
	if err := a.be.Unmap(buf); err != nil {
		return errors.Wrap(err, "actor: unmap skinning buffer")
	}
	a.visible = next
	return nil
}

// ResetTime rewinds the animation clock to zero.
func (a *Actor) ResetTime() { a.elapsed = 0 }

// Elapsed returns the animation clock.
func (a *Actor) Elapsed() time.Duration { return a.elapsed }

// DrawRanges yields the draw calls for the whole index array in material
// order. It is safe to iterate repeatedly.
func (a *Actor) DrawRanges() iter.Seq[DrawRange] {
	return a.materials.Ranges()
}

// Release frees every backend buffer and every texture the actor loaded.
// Calling it again does nothing.
func (a *Actor) Release() {
	if a.released {
		return
	}
	a.releaseResources()
	a.released = true
}

func (a *Actor) releaseResources() {
	a.releaseBuffers()
	a.cache.Release()
}

func (a *Actor) releaseBuffers() {
	for _, b := range []*backend.Buffer{&a.vertices, &a.indices, &a.skin[0], &a.skin[1]} {
		if *b == 0 {
			continue
		}
		if err := a.be.ReleaseBuffer(*b); err != nil {
			logging.Logger().Warn("actor: release buffer", slog.Any("err", err))
		}
		*b = 0
	}
}

// Geometry describes the static vertex and index buffers.
func (a *Actor) Geometry() backend.Geometry {
	return backend.Geometry{
		Vertices:     a.vertices,
		Indices:      a.indices,
		VertexCount:  len(a.model.Vertices),
		IndexCount:   len(a.model.Indices),
		VertexStride: backend.VertexStride,
		IndexWidth:   backend.IndexWidth,
	}
}

// Skinning returns the skinning buffer holding the latest Update.
//
// Matrix i is bone i's world transform times its inverse bind transform,
// so it maps bind-pose model space to posed model space and is identity at
// the bind pose. Backends apply it to vertices directly; World() holds the
// world transforms themselves.
func (a *Actor) Skinning() backend.SkinningView {
	return backend.SkinningView{Buffer: a.skin[a.visible], Bones: a.hier.Len()}
}

// World returns the world transform of every bone from the latest Update,
// indexed by bone. The slice is overwritten by the next Update.
func (a *Actor) World() []mathutil.Mat4 { return a.world }

func (a *Actor) Model() *pmd.Model { return a.model }
func (a *Actor) Hierarchy() *skeleton.Hierarchy { return a.hier }
func (a *Actor) Materials() *MaterialTable { return a.materials }
func (a *Actor) Released() bool { return a.released }
func (a *Actor) TextureCache() *texture.Cache { return a.cache }
