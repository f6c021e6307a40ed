// Package backendtest provides an in-memory backend that records every call.
package backendtest

import (
	"github.com/pkg/errors"

	"pmd-renderer/internal/backend"
)

// Fixed placeholder handles returned by DefaultTexture.
const (
	White backend.Texture = 1
	Black backend.Texture = 2
	Gray  backend.Texture = 3
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("backendtest: injected failure")

// Fake is a backend.Backend over plain byte slices.
type Fake struct {
	Buffers  map[backend.Buffer][]byte
	Usages   map[backend.Buffer]backend.Usage
	Released map[backend.Buffer]int // release count per buffer

	Loads       map[string]int             // LoadTexture calls per path
	Textures    map[backend.Texture]string // loaded, unreleased textures
	FailUsage   map[backend.Usage]bool
	FailTexture map[string]bool

	// Busy buffers report false from SafeToWrite until waited on.
	Busy  map[backend.Buffer]bool
	Waits []backend.Buffer

	nextBuffer  backend.Buffer
	nextTexture backend.Texture
}

var _ backend.Backend = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Buffers:     make(map[backend.Buffer][]byte),
		Usages:      make(map[backend.Buffer]backend.Usage),
		Released:    make(map[backend.Buffer]int),
		Loads:       make(map[string]int),
		Textures:    make(map[backend.Texture]string),
		FailUsage:   make(map[backend.Usage]bool),
		FailTexture: make(map[string]bool),
		Busy:        make(map[backend.Buffer]bool),
		nextTexture: 100,
	}
}

func (f *Fake) AllocateBuffer(size int, usage backend.Usage) (backend.Buffer, error) {
	if f.FailUsage[usage] {
		return 0, errors.Wrapf(ErrInjected, "allocate %s buffer", usage)
	}
	f.nextBuffer++
	f.Buffers[f.nextBuffer] = make([]byte, size)
	f.Usages[f.nextBuffer] = usage
	return f.nextBuffer, nil
}

func (f *Fake) Map(b backend.Buffer) ([]byte, error) {
	data, ok := f.Buffers[b]
	if !ok {
		return nil, errors.Errorf("backendtest: map unknown buffer %d", b)
	}
	return data, nil
}

func (f *Fake) Unmap(b backend.Buffer) error {
	if _, ok := f.Buffers[b]; !ok {
		return errors.Errorf("backendtest: unmap unknown buffer %d", b)
	}
	return nil
}

func (f *Fake) ReleaseBuffer(b backend.Buffer) error {
	f.Released[b]++
	delete(f.Buffers, b)
	return nil
}

func (f *Fake) LoadTexture(path string) (backend.Texture, error) {
	f.Loads[path]++
	if f.FailTexture[path] {
		return 0, errors.Wrapf(ErrInjected, "load %s", path)
	}
	f.nextTexture++
	f.Textures[f.nextTexture] = path
	return f.nextTexture, nil
}

func (f *Fake) ReleaseTexture(t backend.Texture) error {
	if _, ok := f.Textures[t]; !ok {
		return errors.Errorf("backendtest: release unknown texture %d", t)
	}
	delete(f.Textures, t)
	return nil
}

func (f *Fake) DefaultTexture(kind backend.TextureKind) backend.Texture {
	switch kind {
	case backend.TextureBlack:
		return Black
	case backend.TextureGray:
		return Gray
	}
	return White
}

func (f *Fake) SafeToWrite(b backend.Buffer) bool { return !f.Busy[b] }

func (f *Fake) WaitSafeToWrite(b backend.Buffer) {
	f.Waits = append(f.Waits, b)
	delete(f.Busy, b)
}

// Live returns the number of allocated, unreleased buffers.
func (f *Fake) Live() int { return len(f.Buffers) }

// LiveTextures returns the number of loaded, unreleased textures.
func (f *Fake) LiveTextures() int { return len(f.Textures) }

// TotalLoads sums LoadTexture calls over all paths.
func (f *Fake) TotalLoads() int {
	n := 0
	for _, c := range f.Loads {
		n += c
	}
	return n
}
