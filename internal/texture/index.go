package texture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Normalize returns the cache key of a texture reference found in a model
// under baseDir. Model files use Windows separators and arbitrary case, so
// "Tex\\Body.BMP" and "tex/body.bmp" share a key.
func Normalize(baseDir, ref string) string {
	return strings.ToLower(filepath.ToSlash(join(baseDir, ref)))
}

func join(baseDir, ref string) string {
	ref = strings.ReplaceAll(ref, "\\", "/")
	p := filepath.FromSlash(ref)
	if !filepath.IsAbs(p) && baseDir != "" {
		p = filepath.Join(baseDir, p)
	}
	return filepath.Clean(p)
}

// Locate finds the file a reference points at. The last path element is
// matched case-insensitively when the exact name does not exist. It returns
// the joined path and false when nothing matches.
func Locate(baseDir, ref string) (string, bool) {
	p := join(baseDir, ref)
	if info, err := os.Stat(p); err == nil && !info.IsDir() {
		return p, true
	}

	dir, base := filepath.Split(p)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return p, false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), base) {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return p, false
}

// ToonName returns the shared toon ramp file of palette slot index
// (0 → "toon01.bmp"). Slots outside 0..9 have no file.
func ToonName(index int8) (string, bool) {
	if index < 0 || index > 9 {
		return "", false
	}
	return fmt.Sprintf("toon%02d.bmp", int(index)+1), true
}
