package pmd

import (
	"encoding/binary"
	"math"
)

// reader walks a byte slice, tracking the offset for error reports.
// The first failure sticks; later reads return zero values.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) remaining() int {
	return len(r.data) - r.off
}

// take returns the next n bytes, or nil after recording a truncation.
func (r *reader) take(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.remaining() {
		r.err = &TruncatedInputError{Offset: r.off, Field: field, Need: n, Have: r.remaining()}
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u32(field string) uint32 {
	b := r.take(4, field)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) f32(field string) float32 {
	return math.Float32frombits(r.u32(field))
}

func (r *reader) str(n int, field string) string {
	b := r.take(n, field)
	if b == nil {
		return ""
	}
	return decodeString(b)
}

// block reads a uint32 count followed by count records of size bytes.
// The count is checked against the remaining input before anything is
// allocated, so a corrupt count cannot request gigabytes.
func (r *reader) block(size int, field string) (int, []byte) {
	n := r.u32(field + ".count")
	if r.err != nil {
		return 0, nil
	}
	need := uint64(n) * uint64(size)
	if need > uint64(r.remaining()) {
		r.err = &TruncatedInputError{Offset: r.off, Field: field, Need: int(min(need, math.MaxInt32)), Have: r.remaining()}
		return 0, nil
	}
	return int(n), r.take(int(need), field)
}

func (r *reader) fail(off int, field, reason string) {
	if r.err == nil {
		r.err = &FormatError{Offset: off, Field: field, Reason: reason}
	}
}

func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

func lef32(b []byte) float32 { return math.Float32frombits(le32(b)) }

func vec3At(b []byte) [3]float32 {
	return [3]float32{lef32(b[0:]), lef32(b[4:]), lef32(b[8:])}
}
