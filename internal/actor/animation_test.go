package actor

import (
	"math"
	"testing"
	"time"

	"pmd-renderer/internal/pmd/pmdtest"
	"pmd-renderer/internal/skeleton"
)

func TestSwingDefaults(t *testing.T) {
	h, err := skeleton.Build(pmdtest.Chain().Bones)
	if err != nil {
		t.Fatal(err)
	}
	s := newSwing(Animation{}, h)

	// Every non-root bone in evaluation order.
	if len(s.bones) != 2 || s.bones[0] != 1 || s.bones[1] != 2 {
		t.Errorf("bones = %v, want [1 2]", s.bones)
	}
	if s.period != 2*time.Second {
		t.Errorf("period = %v, want 2s", s.period)
	}

	tests := []struct {
		t       time.Duration
		reverse bool
		want    float64
	}{
		{0, false, 0},
		{500 * time.Millisecond, false, math.Pi / 6},
		{500 * time.Millisecond, true, -math.Pi / 6},
		{1500 * time.Millisecond, false, -math.Pi / 6},
		{2 * time.Second, false, 0},
	}
	for _, tt := range tests {
		if got := s.angle(tt.t, tt.reverse); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("angle(%v, %v) = %v, want %v", tt.t, tt.reverse, got, tt.want)
		}
	}
}

func TestSwingAmplitude(t *testing.T) {
	h, err := skeleton.Build(pmdtest.Chain().Bones)
	if err != nil {
		t.Fatal(err)
	}
	zero, quarter := 0.0, math.Pi/4

	tests := []struct {
		name      string
		amplitude *float64
		want      float64
	}{
		{"unset", nil, math.Pi / 6},
		{"zero", &zero, 0},
		{"45 degrees", &quarter, math.Pi / 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSwing(Animation{Amplitude: tt.amplitude}, h)
			if got := s.angle(500*time.Millisecond, false); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("peak angle = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSwingNamedBones(t *testing.T) {
	h, err := skeleton.Build(pmdtest.Chain().Bones)
	if err != nil {
		t.Fatal(err)
	}
	s := newSwing(Animation{Bones: []string{"b", "missing", "prop"}, Period: time.Second}, h)
	if len(s.bones) != 2 || s.bones[0] != 2 || s.bones[1] != 3 {
		t.Errorf("bones = %v, want [2 3]", s.bones)
	}

	pose := skeleton.Pose{0: {}}
	s.pose(pose, 250*time.Millisecond, true, false)
	if _, ok := pose[0]; ok {
		t.Error("stale override survived pose()")
	}
	if len(pose) != 2 {
		t.Errorf("pose has %d overrides, want 2", len(pose))
	}

	s.pose(pose, 250*time.Millisecond, false, false)
	if len(pose) != 0 {
		t.Errorf("disabled pose has %d overrides, want 0", len(pose))
	}
}
