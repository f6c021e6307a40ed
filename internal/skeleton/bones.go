// Package skeleton builds the bone forest of a model and evaluates its
// world transforms.
package skeleton

import (
	"fmt"

	"pmd-renderer/internal/mathutil"
	"pmd-renderer/internal/pmd"
)

// Node is one bone of the forest. Nodes live in an arena indexed by bone
// index; relations are indices, never pointers.
type Node struct {
	Index    int
	Name     string
	Parent   int // -1 for roots
	Children []int
	Start    mathutil.Vec3
	Local    mathutil.Mat4 // bind-pose transform relative to the parent
}

// Hierarchy is the immutable bone forest of one model.
type Hierarchy struct {
	nodes     []Node
	roots     []int
	order     []int
	depth     []int
	byName    map[string]int
	bindWorld []mathutil.Mat4
	invBind   []mathutil.Mat4
}

// Build constructs the forest from flat bone records.
//
// Bone indices must be dense and equal to their record position, names
// unique, and every parent either pmd.NoParent or an existing bone that is
// not a descendant. The bind pose is translation only: each bone is offset
// from its parent's start position, roots from the origin.
func Build(bones []pmd.Bone) (*Hierarchy, error) {
	n := len(bones)
	h := &Hierarchy{
		nodes:  make([]Node, n),
		byName: make(map[string]int, n),
		depth:  make([]int, n),
	}

	for i, b := range bones {
		if b.Index != uint32(i) {
			return nil, &pmd.FormatError{
				Offset: -1,
				Field:  fmt.Sprintf("bones[%d].index", i),
				Reason: fmt.Sprintf("index %d does not match record position", b.Index),
			}
		}
		if first, dup := h.byName[b.Name]; dup {
			return nil, &DuplicateNameError{Name: b.Name, First: first, Second: i}
		}
		h.byName[b.Name] = i

		parent := -1
		if !b.IsRoot() {
			if b.Parent >= uint32(n) {
				return nil, &DanglingParentError{Bone: i, Parent: b.Parent, Count: n}
			}
			if b.Parent == uint32(i) {
				return nil, &CycleError{Bone: i}
			}
			parent = int(b.Parent)
		}
		h.nodes[i] = Node{Index: i, Name: b.Name, Parent: parent, Start: mathutil.Vec3From32(b.Start)}
	}

	for i := range h.nodes {
		if p := h.nodes[i].Parent; p >= 0 {
			h.nodes[p].Children = append(h.nodes[p].Children, i)
		} else {
			h.roots = append(h.roots, i)
		}
	}

	if err := h.buildOrder(); err != nil {
		return nil, err
	}

	for _, i := range h.order {
		nd := &h.nodes[i]
		if nd.Parent < 0 {
			nd.Local = mathutil.Translate(nd.Start)
		} else {
			nd.Local = mathutil.Translate(nd.Start.Sub(h.nodes[nd.Parent].Start))
		}
	}

	h.bindWorld = Evaluate(h, nil, nil)
	h.invBind = make([]mathutil.Mat4, n)
	for i, w := range h.bindWorld {
		h.invBind[i] = w.InverseAffine()
	}
	return h, nil
}

// buildOrder fills the pre-order walk. Any node the walk never reaches
// sits on a parent cycle.
func (h *Hierarchy) buildOrder() error {
	n := len(h.nodes)
	h.order = make([]int, 0, n)
	visited := make([]bool, n)

	stack := make([]int, 0, n)
	for i := len(h.roots) - 1; i >= 0; i-- {
		stack = append(stack, h.roots[i])
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited[i] = true
		h.order = append(h.order, i)
		if p := h.nodes[i].Parent; p >= 0 {
			h.depth[i] = h.depth[p] + 1
		}
		ch := h.nodes[i].Children
		for k := len(ch) - 1; k >= 0; k-- {
			stack = append(stack, ch[k])
		}
	}

	for i, ok := range visited {
		if ok {
			continue
		}
		// Unreached nodes hang below a cycle; n parent steps land on it.
		j := i
		for k := 0; k < n; k++ {
			j = h.nodes[j].Parent
		}
		return &CycleError{Bone: j}
	}
	return nil
}

// Len returns the number of bones.
func (h *Hierarchy) Len() int { return len(h.nodes) }

// Node returns bone i.
func (h *Hierarchy) Node(i int) Node { return h.nodes[i] }

// Parent returns the parent of bone i, or -1 for a root.
func (h *Hierarchy) Parent(i int) int { return h.nodes[i].Parent }

// Children returns the children of bone i in ascending index order.
// The slice must not be modified.
func (h *Hierarchy) Children(i int) []int { return h.nodes[i].Children }

// Roots returns the root bones in ascending index order.
func (h *Hierarchy) Roots() []int { return h.roots }

// Depth returns the number of ancestors of bone i.
func (h *Hierarchy) Depth(i int) int { return h.depth[i] }

// Order returns the pre-order walk: roots ascending, each subtree complete
// before the next sibling. Every parent precedes its children. The order
// is fixed at Build time; the slice must not be modified.
func (h *Hierarchy) Order() []int { return h.order }

// Lookup returns the index of the bone called name.
func (h *Hierarchy) Lookup(name string) (int, bool) {
	i, ok := h.byName[name]
	return i, ok
}

// BindWorld returns the bind-pose world transform of bone i.
func (h *Hierarchy) BindWorld(i int) mathutil.Mat4 { return h.bindWorld[i] }

// InverseBind returns the inverse of BindWorld(i).
func (h *Hierarchy) InverseBind(i int) mathutil.Mat4 { return h.invBind[i] }
