package mathutil

import "math"

// Quat represents a quaternion (x, y, z, w).
type Quat [4]float64

// QuatAxisAngle returns the rotation of angle radians about axis.
// A zero axis yields the identity rotation.
func QuatAxisAngle(axis Vec3, angle float64) Quat {
	n := axis.Normalize()
	if n == (Vec3{}) {
		return Quat{0, 0, 0, 1}
	}
	s, c := math.Sincos(angle * 0.5)
	return Quat{n[0] * s, n[1] * s, n[2] * s, c}
}

// QuatToMat3 converts a unit quaternion to a 3×3 rotation matrix.
func QuatToMat3(q Quat) Mat3 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return Mat3{
		1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy),
		2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx),
		2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy),
	}
}

// RotationAbout returns a Mat4 rotating angle radians about axis through the origin.
func RotationAbout(axis Vec3, angle float64) Mat4 {
	return FromMat3Translation(QuatToMat3(QuatAxisAngle(axis, angle)), Vec3{})
}
