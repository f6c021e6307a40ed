package pmd

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinels matched by errors.Is on every decoding error.
var (
	ErrFormat    = errors.New("pmd: format error")
	ErrTruncated = errors.New("pmd: truncated input")
)

// FormatError reports a field whose value breaks the file contract.
type FormatError struct {
	Offset int    // byte offset of the field
	Field  string // e.g. "indices[12]" or "materials.indexCount"
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("pmd: %s at offset %d: %s", e.Field, e.Offset, e.Reason)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// TruncatedInputError reports a field that needs more bytes than remain.
type TruncatedInputError struct {
	Offset int
	Field  string
	Need   int
	Have   int
}

func (e *TruncatedInputError) Error() string {
	return fmt.Sprintf("pmd: %s at offset %d: need %d bytes, have %d", e.Field, e.Offset, e.Need, e.Have)
}

func (e *TruncatedInputError) Is(target error) bool { return target == ErrTruncated }
