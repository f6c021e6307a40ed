package actor

import (
	"log/slog"
	"math"
	"time"

	"pmd-renderer/internal/logging"
	"pmd-renderer/internal/mathutil"
	"pmd-renderer/internal/skeleton"
)

// Animation configures the procedural swing applied while animating.
// Zero fields take the defaults below; a nil Amplitude is 30°, so a zero
// amplitude can still be asked for.
type Animation struct {
	Bones     []string      // bones to swing; empty means every non-root bone
	Axis      [3]float64    // local rotation axis, default +Z
	Amplitude *float64      // peak angle in radians
	Period    time.Duration // default 2s
}

const (
	defaultAmplitude = 30 * math.Pi / 180
	defaultPeriod    = 2 * time.Second
)

// swing is an Animation resolved against one skeleton.
type swing struct {
	bones     []int
	axis      mathutil.Vec3
	amplitude float64
	period    time.Duration
}

func newSwing(a Animation, h *skeleton.Hierarchy) swing {
	s := swing{
		axis:      mathutil.Vec3(a.Axis),
		amplitude: defaultAmplitude,
		period:    a.Period,
	}
	if s.axis == (mathutil.Vec3{}) {
		s.axis = mathutil.Vec3{0, 0, 1}
	}
	if a.Amplitude != nil {
		s.amplitude = *a.Amplitude
	}
	if s.period <= 0 {
		s.period = defaultPeriod
	}

	if len(a.Bones) == 0 {
		for _, i := range h.Order() {
			if h.Parent(i) >= 0 {
				s.bones = append(s.bones, i)
			}
		}
		return s
	}
	for _, name := range a.Bones {
		i, ok := h.Lookup(name)
		if !ok {
			logging.Logger().Warn("actor: animated bone not in model", slog.String("bone", name))
			continue
		}
		s.bones = append(s.bones, i)
	}
	return s
}

// angle is the swing angle at time t; reverse flips the direction.
func (s swing) angle(t time.Duration, reverse bool) float64 {
	dir := 1.0
	if reverse {
		dir = -1
	}
	phase := 2 * math.Pi * t.Seconds() / s.period.Seconds()
	return dir * s.amplitude * math.Sin(phase)
}

// pose fills dst with the overrides at time t. A disabled swing leaves dst
// empty, which evaluates to the bind pose.
func (s swing) pose(dst skeleton.Pose, t time.Duration, enabled, reverse bool) {
	clear(dst)
	if !enabled {
		return
	}
	r := mathutil.RotationAbout(s.axis, s.angle(t, reverse))
	for _, i := range s.bones {
		dst[i] = r
	}
}
