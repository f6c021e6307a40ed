package pmd

import (
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/japanese"
)

// decodeString converts a NUL-padded Shift-JIS field to UTF-8.
// Bytes after the first NUL are ignored.
func decodeString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	s, err := japanese.ShiftJIS.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// encodeString writes s as Shift-JIS into a zeroed field of size n.
func encodeString(s string, n int, field string) ([]byte, error) {
	out := make([]byte, n)
	enc, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.Wrapf(err, "pmd: encode %s", field)
	}
	if len(enc) > n {
		return nil, errors.Errorf("pmd: %s %q is %d bytes, field holds %d", field, s, len(enc), n)
	}
	copy(out, enc)
	return out, nil
}
