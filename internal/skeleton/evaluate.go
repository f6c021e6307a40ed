package skeleton

import "pmd-renderer/internal/mathutil"

// Pose holds per-bone local overrides keyed by bone index. Bones without
// an entry use identity, so a nil Pose is the bind pose.
type Pose map[int]mathutil.Mat4

// Evaluate computes the world transform of every bone into dst and returns
// it. dst is reused when it has the capacity and is fully overwritten;
// nothing from earlier contents survives.
//
// world(i) = world(parent) × local(i) × pose[i], walking h.Order() so a
// parent is final before any child reads it.
func Evaluate(h *Hierarchy, pose Pose, dst []mathutil.Mat4) []mathutil.Mat4 {
	n := h.Len()
	if cap(dst) < n {
		dst = make([]mathutil.Mat4, n)
	}
	dst = dst[:n]

	for _, i := range h.order {
		nd := &h.nodes[i]
		local := nd.Local
		if o, ok := pose[i]; ok {
			local = mathutil.Mat4Mul(local, o)
		}
		if nd.Parent >= 0 {
			dst[i] = mathutil.Mat4Mul(dst[nd.Parent], local)
		} else {
			dst[i] = local
		}
	}
	return dst
}

// Skinning converts world transforms into the matrices applied to
// bind-pose vertices: world(i) × inverseBind(i). At the bind pose every
// result is identity.
func Skinning(h *Hierarchy, world []mathutil.Mat4, dst []mathutil.Mat4) []mathutil.Mat4 {
	n := h.Len()
	if cap(dst) < n {
		dst = make([]mathutil.Mat4, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = mathutil.Mat4Mul(world[i], h.invBind[i])
	}
	return dst
}
