package skeleton

import (
	"math"
	"testing"

	"pmd-renderer/internal/mathutil"
	"pmd-renderer/internal/pmd/pmdtest"
)

func chain(t *testing.T) *Hierarchy {
	t.Helper()
	h, err := Build(pmdtest.Chain().Bones)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return h
}

func samplePose() Pose {
	return Pose{
		0: mathutil.RotationAbout(mathutil.Vec3{0, 0, 1}, 0.3),
		1: mathutil.RotationAbout(mathutil.Vec3{1, 0, 0}, -1.1),
		2: mathutil.RotationAbout(mathutil.Vec3{0, 1, 1}, 2.0),
	}
}

func TestEvaluateIdentityIsBindPose(t *testing.T) {
	h := chain(t)
	identity := Pose{}
	for i := 0; i < h.Len(); i++ {
		identity[i] = mathutil.Mat4Identity()
	}

	for name, pose := range map[string]Pose{"nil": nil, "explicit identity": identity} {
		t.Run(name, func(t *testing.T) {
			world := Evaluate(h, pose, nil)
			for i := range world {
				if world[i] != h.BindWorld(i) {
					t.Errorf("world(%d) = %v, want bind pose %v", i, world[i], h.BindWorld(i))
				}
			}
		})
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	h := chain(t)
	pose := samplePose()
	first := Evaluate(h, pose, nil)

	// Prior contents of the buffer must not leak into the result.
	dirty := make([]mathutil.Mat4, h.Len())
	for i := range dirty {
		for k := range dirty[i] {
			dirty[i][k] = math.NaN()
		}
	}

	for run := 0; run < 5; run++ {
		got := Evaluate(h, pose, dirty)
		if &got[0] != &dirty[0] {
			t.Fatal("Evaluate reallocated a buffer of sufficient capacity")
		}
		for i := range got {
			for k := range got[i] {
				if math.Float64bits(got[i][k]) != math.Float64bits(first[i][k]) {
					t.Fatalf("run %d: world(%d)[%d] = %v, want %v", run, i, k, got[i][k], first[i][k])
				}
			}
		}
	}
}

func TestEvaluateChainComposition(t *testing.T) {
	h := chain(t)
	pose := samplePose()
	world := Evaluate(h, pose, nil)

	local := func(i int) mathutil.Mat4 {
		return mathutil.Mat4Mul(h.Node(i).Local, pose[i])
	}
	if want := local(0); world[0] != want {
		t.Errorf("world(root) = %v, want %v", world[0], want)
	}
	if want := mathutil.Mat4Mul(world[0], local(1)); world[1] != want {
		t.Errorf("world(a) != world(root) × local(a)")
	}
	if want := mathutil.Mat4Mul(world[1], local(2)); world[2] != want {
		t.Errorf("world(b) != world(a) × local(b)")
	}

	// Associativity along the chain, up to rounding.
	direct := mathutil.Mat4Mul(local(0), mathutil.Mat4Mul(local(1), local(2)))
	if !world[2].ApproxEqual(direct, 1e-12) {
		t.Errorf("world(b) = %v, want %v", world[2], direct)
	}

	// The untouched second root keeps its bind pose.
	if world[3] != h.BindWorld(3) {
		t.Errorf("world(prop) = %v, want %v", world[3], h.BindWorld(3))
	}
}

func TestEvaluateRotatesSubtreeAboutJoint(t *testing.T) {
	h := chain(t)
	world := Evaluate(h, Pose{1: mathutil.RotationAbout(mathutil.Vec3{0, 0, 1}, math.Pi/2)}, nil)

	// Joint a stays put; b swings around it.
	if got := world[1].Translation(); got != (mathutil.Vec3{0, 1, 0}) {
		t.Errorf("joint a moved to %v", got)
	}
	got := world[2].Translation()
	want := mathutil.Vec3{-1.5, 1, 0.25}
	for k := range got {
		if math.Abs(got[k]-want[k]) > 1e-12 {
			t.Fatalf("joint b = %v, want %v", got, want)
		}
	}
}

func TestSkinningAtBindPoseIsIdentity(t *testing.T) {
	h := chain(t)
	skin := Skinning(h, Evaluate(h, nil, nil), nil)
	for i, m := range skin {
		if !m.IsIdentity() {
			t.Errorf("skinning(%d) = %v, want identity", i, m)
		}
	}
}

func TestEvaluateReallocatesShortBuffer(t *testing.T) {
	h := chain(t)
	got := Evaluate(h, nil, make([]mathutil.Mat4, 1))
	if len(got) != h.Len() {
		t.Errorf("len = %d, want %d", len(got), h.Len())
	}
}
