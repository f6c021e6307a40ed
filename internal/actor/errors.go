package actor

import (
	"fmt"

	"github.com/pkg/errors"

	"pmd-renderer/internal/backend"
)

// ErrReleased is returned by operations on a released actor.
var ErrReleased = errors.New("actor: released")

// ResourceAllocationError reports a buffer the backend could not provide.
// The failed load leaves no buffers behind.
type ResourceAllocationError struct {
	Usage backend.Usage
	Size  int
	Err   error
}

func (e *ResourceAllocationError) Error() string {
	return fmt.Sprintf("actor: allocate %d-byte %s buffer: %v", e.Size, e.Usage, e.Err)
}

func (e *ResourceAllocationError) Unwrap() error { return e.Err }
