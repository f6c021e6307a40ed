package skeleton

import (
	"fmt"

	"pmd-renderer/internal/pmd"
)

// DuplicateNameError reports two bones sharing a name. Lookups by name
// would be ambiguous, so the skeleton is rejected.
type DuplicateNameError struct {
	Name          string
	First, Second int
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("skeleton: bone name %q used by bones %d and %d", e.Name, e.First, e.Second)
}

func (e *DuplicateNameError) Is(target error) bool { return target == pmd.ErrFormat }

// DanglingParentError reports a parent index that names no bone.
type DanglingParentError struct {
	Bone   int
	Parent uint32
	Count  int
}

func (e *DanglingParentError) Error() string {
	return fmt.Sprintf("skeleton: bone %d has parent %d, skeleton has %d bones", e.Bone, e.Parent, e.Count)
}

// CycleError reports a bone that is its own ancestor.
type CycleError struct {
	Bone int
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("skeleton: bone %d is its own ancestor", e.Bone)
}

func (e *CycleError) Is(target error) bool { return target == pmd.ErrFormat }
