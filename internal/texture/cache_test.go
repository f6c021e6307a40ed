package texture

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"

	"pmd-renderer/internal/backend"
	"pmd-renderer/internal/backend/backendtest"
)

func TestResolveLoadsOnce(t *testing.T) {
	fake := backendtest.New()
	c := NewCache(fake, "/models/miku", "")

	first := c.Resolve("body.bmp", backend.TextureWhite)
	second := c.Resolve("body.bmp", backend.TextureWhite)
	if first != second {
		t.Errorf("second Resolve = %d, want %d", second, first)
	}
	if got := fake.TotalLoads(); got != 1 {
		t.Errorf("backend loads = %d, want 1", got)
	}
	if c.Loads() != 1 || c.Len() != 1 {
		t.Errorf("Loads() = %d, Len() = %d, want 1, 1", c.Loads(), c.Len())
	}
}

func TestResolveNormalizesPath(t *testing.T) {
	fake := backendtest.New()
	c := NewCache(fake, "/models/miku", "")

	a := c.Resolve(`Tex\Body.BMP`, backend.TextureWhite)
	b := c.Resolve("tex/body.bmp", backend.TextureWhite)
	d := c.Resolve("./tex/../tex/body.bmp", backend.TextureWhite)
	if a != b || b != d {
		t.Errorf("handles %d, %d, %d differ for the same file", a, b, d)
	}
	if got := fake.TotalLoads(); got != 1 {
		t.Errorf("backend loads = %d, want 1", got)
	}

	if other := c.Resolve("face.bmp", backend.TextureWhite); other == a {
		t.Error("distinct paths share a handle")
	}
}

func TestResolveEmptyUsesDefault(t *testing.T) {
	fake := backendtest.New()
	c := NewCache(fake, "", "")

	tests := []struct {
		kind backend.TextureKind
		want backend.Texture
	}{
		{backend.TextureWhite, backendtest.White},
		{backend.TextureBlack, backendtest.Black},
		{backend.TextureGray, backendtest.Gray},
	}
	for _, tt := range tests {
		if got := c.Resolve("", tt.kind); got != tt.want {
			t.Errorf("Resolve(\"\", %v) = %d, want %d", tt.kind, got, tt.want)
		}
	}
	if fake.TotalLoads() != 0 {
		t.Error("empty path reached the backend")
	}
}

func TestResolveFailureFallsBack(t *testing.T) {
	fake := backendtest.New()
	c := NewCache(fake, "/m", "")
	fake.FailTexture[filepath.Join("/m", "broken.spa")] = true

	for i := 0; i < 3; i++ {
		if got := c.Resolve("broken.spa", backend.TextureBlack); got != backendtest.Black {
			t.Fatalf("Resolve = %d, want black placeholder", got)
		}
	}
	if got := fake.TotalLoads(); got != 1 {
		t.Errorf("failed texture loaded %d times, want 1", got)
	}
}

func TestReleaseReturnsLoadedTextures(t *testing.T) {
	fake := backendtest.New()
	c := NewCache(fake, "/m", "")
	fake.FailTexture[filepath.Join("/m", "broken.bmp")] = true

	c.Resolve("body.bmp", backend.TextureWhite)
	c.Resolve("BODY.bmp", backend.TextureWhite)
	c.Resolve("face.png", backend.TextureWhite)
	c.Resolve("broken.bmp", backend.TextureWhite)
	c.Resolve("", backend.TextureBlack)
	if got := fake.LiveTextures(); got != 2 {
		t.Fatalf("live textures = %d, want 2", got)
	}
	if c.Owned() != 2 {
		t.Errorf("Owned() = %d, want 2", c.Owned())
	}

	c.Release()
	if got := fake.LiveTextures(); got != 0 {
		t.Errorf("live textures after Release = %d, want 0", got)
	}
	if c.Len() != 0 || c.Owned() != 0 {
		t.Errorf("Len() = %d, Owned() = %d after Release, want 0, 0", c.Len(), c.Owned())
	}

	c.Release()
	if got := fake.LiveTextures(); got != 0 {
		t.Errorf("second Release changed live textures to %d", got)
	}
}

func TestResolveToon(t *testing.T) {
	modelDir := t.TempDir()
	toonDir := t.TempDir()
	writeFile(t, filepath.Join(modelDir, "toon01.bmp"))
	writeFile(t, filepath.Join(toonDir, "TOON03.BMP"))

	fake := backendtest.New()
	c := NewCache(fake, modelDir, toonDir)

	if h := c.ResolveToon(0); h == backendtest.Gray {
		t.Error("toon01 in model dir not loaded")
	}
	if fake.Loads[filepath.Join(modelDir, "toon01.bmp")] != 1 {
		t.Errorf("loads = %v", fake.Loads)
	}
	if h := c.ResolveToon(2); h == backendtest.Gray {
		t.Error("toon03 in shared dir not loaded")
	}
	if fake.Loads[filepath.Join(toonDir, "TOON03.BMP")] != 1 {
		t.Errorf("case-insensitive toon lookup failed: %v", fake.Loads)
	}
	if h := c.ResolveToon(5); h != backendtest.Gray {
		t.Errorf("missing toon06 = %d, want gray placeholder", h)
	}
	if h := c.ResolveToon(-1); h != backendtest.Gray {
		t.Errorf("no toon = %d, want gray placeholder", h)
	}

	c.ResolveToon(0)
	c.ResolveToon(5)
	if got := fake.TotalLoads(); got != 2 {
		t.Errorf("backend loads = %d, want 2", got)
	}
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Body.BMP"))

	p, ok := Locate(dir, "body.bmp")
	if !ok || p != filepath.Join(dir, "Body.BMP") {
		t.Errorf("Locate = %q, %v", p, ok)
	}
	if _, ok := Locate(dir, "missing.bmp"); ok {
		t.Error("Locate found a missing file")
	}
}

func TestToonName(t *testing.T) {
	tests := []struct {
		index int8
		want  string
		ok    bool
	}{
		{0, "toon01.bmp", true},
		{9, "toon10.bmp", true},
		{10, "", false},
		{-1, "", false},
	}
	for _, tt := range tests {
		got, ok := ToonName(tt.index)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ToonName(%d) = %q, %v; want %q, %v", tt.index, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDecode(t *testing.T) {
	dir := t.TempDir()
	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
		}
	}

	encodePNG := func(w io.Writer) error { return png.Encode(w, src) }
	tests := []struct {
		name   string
		encode func(io.Writer) error
	}{
		{"a.bmp", func(w io.Writer) error { return bmp.Encode(w, src) }},
		{"env.SPH", func(w io.Writer) error { return bmp.Encode(w, src) }},
		{"body.png", encodePNG},
		{"face.PNG", encodePNG},
		{"skin.jpg", func(w io.Writer) error { return jpeg.Encode(w, src, &jpeg.Options{Quality: 100}) }},
		{"hair.jpeg", func(w io.Writer) error { return jpeg.Encode(w, src, nil) }},
		{"sniffed.tex", encodePNG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			f, err := os.Create(path)
			if err != nil {
				t.Fatal(err)
			}
			if err := tt.encode(f); err != nil {
				t.Fatal(err)
			}
			f.Close()

			img, err := Decode(path)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
				t.Errorf("bounds = %v, want 8x8", img.Bounds())
			}
			if got := img.NRGBAAt(4, 4); got.R < 240 || got.G > 15 || got.A != 255 {
				t.Errorf("pixel (4,4) = %v, want opaque red", got)
			}
		})
	}

	for _, name := range []string{"bad.bmp", "bad.png", "bad.tex"} {
		bad := filepath.Join(dir, name)
		os.WriteFile(bad, []byte("not an image"), 0644)
		if _, err := Decode(bad); err == nil {
			t.Errorf("Decode(%s) accepted garbage", name)
		}
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}
