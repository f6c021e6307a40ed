package actor_test

import (
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"pmd-renderer/internal/actor"
	"pmd-renderer/internal/backend"
	"pmd-renderer/internal/backend/backendtest"
	"pmd-renderer/internal/mathutil"
	"pmd-renderer/internal/pmd"
	"pmd-renderer/internal/pmd/pmdtest"
)

func load(t *testing.T, m *pmd.Model, opts actor.Options) (*actor.Actor, *backendtest.Fake) {
	t.Helper()
	fake := backendtest.New()
	path := pmdtest.WriteFile(t, t.TempDir(), "model.pmd", m)
	a, err := actor.Load(path, fake, opts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(a.Release)
	return a, fake
}

func skinningMatrices(t *testing.T, fake *backendtest.Fake, a *actor.Actor) []mgl32.Mat4 {
	t.Helper()
	view := a.Skinning()
	data, err := fake.Map(view.Buffer)
	if err != nil {
		t.Fatalf("Map skinning: %v", err)
	}
	return backend.ReadMatrices(data, view.Bones, nil)
}

func TestTwoBoneBindPose(t *testing.T) {
	a, fake := load(t, pmdtest.TwoBone(), actor.Options{})

	geo := a.Geometry()
	if geo.VertexCount != 4 || geo.IndexCount != 6 {
		t.Fatalf("geometry = %d vertices, %d indices, want 4, 6", geo.VertexCount, geo.IndexCount)
	}
	if got := len(fake.Buffers[geo.Vertices]); got != 4*backend.VertexStride {
		t.Errorf("vertex buffer size = %d, want %d", got, 4*backend.VertexStride)
	}
	if got := len(fake.Buffers[geo.Indices]); got != 6*backend.IndexWidth {
		t.Errorf("index buffer size = %d, want %d", got, 6*backend.IndexWidth)
	}

	ranges := slices.Collect(a.DrawRanges())
	if len(ranges) != 1 {
		t.Fatalf("DrawRanges yielded %d ranges, want 1", len(ranges))
	}
	if r := ranges[0]; r.Offset != 0 || r.Count != 6 {
		t.Errorf("range = [%d, +%d), want [0, +6)", r.Offset, r.Count)
	}

	if err := a.Update(16*time.Millisecond, false, false); err != nil {
		t.Fatalf("Update: %v", err)
	}
	for i, w := range a.World() {
		if want := a.Hierarchy().BindWorld(i); w != want {
			t.Errorf("world(%d) = %v, want bind pose %v", i, w, want)
		}
	}
	for i, m := range skinningMatrices(t, fake, a) {
		if !m.ApproxEqualThreshold(mgl32.Ident4(), 1e-6) {
			t.Errorf("skinning(%d) = %v, want identity", i, m)
		}
	}
	// The arm's world transform is a translation; its skinning matrix is not.
	if a.World()[1].IsIdentity() {
		t.Error("arm world transform is identity at bind pose")
	}
	if a.Elapsed() != 0 {
		t.Errorf("Elapsed() = %v while not animating, want 0", a.Elapsed())
	}
}

func TestUploadGeometry(t *testing.T) {
	m := pmdtest.TwoBone()
	a, fake := load(t, m, actor.Options{})
	geo := a.Geometry()

	vb := fake.Buffers[geo.Vertices]
	for i, want := range m.Vertices {
		if got := pmd.ReadVertex(vb[i*backend.VertexStride:]); got != want {
			t.Errorf("vertex %d = %+v, want %+v", i, got, want)
		}
	}
	ib := fake.Buffers[geo.Indices]
	for i, want := range m.Indices {
		if got := uint16(ib[2*i]) | uint16(ib[2*i+1])<<8; got != want {
			t.Errorf("index %d = %d, want %d", i, got, want)
		}
	}
}

func TestLoadTruncated(t *testing.T) {
	data := pmdtest.Encode(t, pmdtest.TwoBone())
	vertexStart := len(pmd.Signature) + pmd.HeaderSize + 4

	tests := []struct {
		name  string
		size  int
		field string
	}{
		{"mid vertex block", vertexStart + pmd.VertexSize + 10, "vertices"},
		{"mid bone block", len(data) - 10, "bones"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "short.pmd")
			if err := os.WriteFile(path, data[:tt.size], 0644); err != nil {
				t.Fatal(err)
			}

			fake := backendtest.New()
			a, err := actor.Load(path, fake, actor.Options{})
			if a != nil {
				t.Error("Load returned an actor for a truncated file")
			}
			var te *pmd.TruncatedInputError
			if !errors.As(err, &te) {
				t.Fatalf("Load error = %v, want *pmd.TruncatedInputError", err)
			}
			if te.Field != tt.field {
				t.Errorf("truncated field = %q, want %q", te.Field, tt.field)
			}
			if !errors.Is(err, pmd.ErrTruncated) {
				t.Errorf("errors.Is(err, ErrTruncated) = false for %v", err)
			}
			if fake.Live() != 0 || fake.LiveTextures() != 0 {
				t.Errorf("%d buffers, %d textures allocated for a rejected file", fake.Live(), fake.LiveTextures())
			}
		})
	}
}

func TestLoadAllocationFailure(t *testing.T) {
	for _, usage := range []backend.Usage{backend.UsageVertex, backend.UsageIndex, backend.UsageSkinning} {
		t.Run(usage.String(), func(t *testing.T) {
			fake := backendtest.New()
			fake.FailUsage[usage] = true

			a, err := actor.LoadModel(pmdtest.Chain(), t.TempDir(), fake, actor.Options{})
			if a != nil {
				t.Error("LoadModel returned an actor after allocation failure")
			}
			var re *actor.ResourceAllocationError
			if !errors.As(err, &re) {
				t.Fatalf("error = %v, want *actor.ResourceAllocationError", err)
			}
			if re.Usage != usage {
				t.Errorf("failed usage = %s, want %s", re.Usage, usage)
			}
			if !errors.Is(err, backendtest.ErrInjected) {
				t.Errorf("cause not preserved: %v", err)
			}
			if fake.Live() != 0 {
				t.Errorf("%d buffers leaked", fake.Live())
			}
			if fake.TotalLoads() == 0 {
				t.Fatal("no textures loaded before the failure")
			}
			if fake.LiveTextures() != 0 {
				t.Errorf("%d textures leaked", fake.LiveTextures())
			}
		})
	}
}

func TestLoadRejectsBadSkeleton(t *testing.T) {
	m := pmdtest.TwoBone()
	m.Bones[1].Name = m.Bones[0].Name

	fake := backendtest.New()
	_, err := actor.LoadModel(m, t.TempDir(), fake, actor.Options{})
	if !errors.Is(err, pmd.ErrFormat) {
		t.Fatalf("error = %v, want ErrFormat", err)
	}
	if fake.Live() != 0 {
		t.Errorf("%d buffers allocated for a rejected skeleton", fake.Live())
	}
}

func TestUpdateAlternatesSkinningBuffers(t *testing.T) {
	a, fake := load(t, pmdtest.TwoBone(), actor.Options{})

	var seen []backend.Buffer
	for range 4 {
		before := a.Skinning().Buffer
		// The visible buffer is in flight; Update must not touch it.
		fake.Busy[before] = true
		if err := a.Update(10*time.Millisecond, true, false); err != nil {
			t.Fatalf("Update: %v", err)
		}
		after := a.Skinning().Buffer
		if after == before {
			t.Fatalf("Update wrote the visible buffer %d", before)
		}
		seen = append(seen, after)
		delete(fake.Busy, before)
	}
	if seen[0] != seen[2] || seen[1] != seen[3] || seen[0] == seen[1] {
		t.Errorf("visible buffers = %v, want two alternating handles", seen)
	}
	if len(fake.Waits) != 0 {
		t.Errorf("waited on %v; the hidden buffer was never busy", fake.Waits)
	}
}

func TestUpdateWaitsForBusyBuffer(t *testing.T) {
	a, fake := load(t, pmdtest.TwoBone(), actor.Options{})

	visible := a.Skinning().Buffer
	var hidden backend.Buffer
	for b, u := range fake.Usages {
		if u == backend.UsageSkinning && b != visible {
			hidden = b
		}
	}
	fake.Busy[hidden] = true

	if err := a.Update(0, false, false); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !slices.Equal(fake.Waits, []backend.Buffer{hidden}) {
		t.Errorf("waits = %v, want [%d]", fake.Waits, hidden)
	}
	if a.Skinning().Buffer != hidden {
		t.Errorf("visible = %d, want %d", a.Skinning().Buffer, hidden)
	}
}

func TestAnimationMovesChildOnly(t *testing.T) {
	a, fake := load(t, pmdtest.TwoBone(), actor.Options{})

	// A quarter period puts the swing at its peak.
	if err := a.Update(500*time.Millisecond, true, false); err != nil {
		t.Fatalf("Update: %v", err)
	}
	skin := skinningMatrices(t, fake, a)
	if !skin[0].ApproxEqualThreshold(mgl32.Ident4(), 1e-6) {
		t.Errorf("root skinning = %v, want identity", skin[0])
	}
	if skin[1].ApproxEqualThreshold(mgl32.Ident4(), 1e-3) {
		t.Error("child skinning is identity while animating")
	}

	// The joint itself stays put.
	joint := mathutil.Vec3{0, 1, 0}
	if got := mathutil.Mat4FromGL(skin[1]).MulPoint(joint); got.Sub(joint).Len() > 1e-5 {
		t.Errorf("joint moved to %v", got)
	}
	// The top of the quad swings 30° about +Z: x becomes -sin(30°).
	top := mathutil.Mat4FromGL(skin[1]).MulPoint(mathutil.Vec3{0, 2, 0})
	if want := (mathutil.Vec3{-0.5, 1 + 0.8660254, 0}); top.Sub(want).Len() > 1e-5 {
		t.Errorf("top = %v, want %v", top, want)
	}
}

func TestReverseFlipsDirection(t *testing.T) {
	forward, _ := load(t, pmdtest.TwoBone(), actor.Options{})
	backward, _ := load(t, pmdtest.TwoBone(), actor.Options{})

	dt := 300 * time.Millisecond
	if err := forward.Update(dt, true, false); err != nil {
		t.Fatal(err)
	}
	if err := backward.Update(dt, true, true); err != nil {
		t.Fatal(err)
	}
	tip := mathutil.Vec3{0, 2, 0}
	fx := mathutil.Mat4Mul(forward.World()[1], forward.Hierarchy().InverseBind(1)).MulPoint(tip)[0]
	bx := mathutil.Mat4Mul(backward.World()[1], backward.Hierarchy().InverseBind(1)).MulPoint(tip)[0]
	if fx > -1e-3 || math.Abs(fx+bx) > 1e-12 {
		t.Errorf("tip x = %v forward, %v reversed; want mirror images", fx, bx)
	}
}

func TestResetTime(t *testing.T) {
	a, _ := load(t, pmdtest.TwoBone(), actor.Options{})
	if err := a.Update(time.Second, true, false); err != nil {
		t.Fatal(err)
	}
	if a.Elapsed() != time.Second {
		t.Errorf("Elapsed() = %v, want 1s", a.Elapsed())
	}
	a.ResetTime()
	if err := a.Update(0, true, false); err != nil {
		t.Fatal(err)
	}
	for i, w := range a.World() {
		if !w.ApproxEqual(a.Hierarchy().BindWorld(i), 1e-12) {
			t.Errorf("world(%d) at t=0 = %v, want bind pose", i, w)
		}
	}
}

func TestDrawRangesRestartable(t *testing.T) {
	m := pmdtest.Chain()
	m.Materials = append(m.Materials, pmd.Material{Alpha: 1, Toon: pmd.NoToon})
	a, _ := load(t, m, actor.Options{})

	first := slices.Collect(a.DrawRanges())
	second := slices.Collect(a.DrawRanges())
	if len(first) != 2 {
		t.Fatalf("got %d ranges, want 2 (empty material skipped)", len(first))
	}
	if !slices.Equal(first, second) {
		t.Errorf("second iteration = %v, want %v", second, first)
	}
	if first[1].Offset != 3 || first[1].Count != 3 {
		t.Errorf("second range = [%d, +%d), want [3, +3)", first[1].Offset, first[1].Count)
	}

	// Stopping early must not break later iterations.
	for range a.DrawRanges() {
		break
	}
	if n := len(slices.Collect(a.DrawRanges())); n != 2 {
		t.Errorf("after early break got %d ranges, want 2", n)
	}
}

func TestRelease(t *testing.T) {
	fake := backendtest.New()
	a, err := actor.LoadModel(pmdtest.TwoBone(), t.TempDir(), fake, actor.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if fake.Live() != 4 {
		t.Fatalf("live buffers = %d, want 4", fake.Live())
	}

	a.Release()
	a.Release()
	if fake.Live() != 0 {
		t.Errorf("live buffers after Release = %d, want 0", fake.Live())
	}
	for b, n := range fake.Released {
		if n != 1 {
			t.Errorf("buffer %d released %d times", b, n)
		}
	}
	if err := a.Update(0, false, false); !errors.Is(err, actor.ErrReleased) {
		t.Errorf("Update after Release = %v, want ErrReleased", err)
	}
}

func TestReleaseFreesTextures(t *testing.T) {
	fake := backendtest.New()
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		a, err := actor.LoadModel(pmdtest.Chain(), dir, fake, actor.Options{})
		if err != nil {
			t.Fatal(err)
		}
		// body.bmp, face.tga and env.spa
		if got := fake.LiveTextures(); got != 3 {
			t.Fatalf("cycle %d: live textures = %d, want 3", i, got)
		}
		a.Release()
		a.Release()
		if got := fake.LiveTextures(); got != 0 {
			t.Fatalf("cycle %d: live textures after Release = %d, want 0", i, got)
		}
	}
	if fake.Live() != 0 {
		t.Errorf("live buffers = %d, want 0", fake.Live())
	}
}
