package texture

import (
	"log/slog"
	"strings"

	"pmd-renderer/internal/backend"
	"pmd-renderer/internal/logging"
)

// Loader is the part of a backend the cache drives.
type Loader interface {
	LoadTexture(path string) (backend.Texture, error)
	DefaultTexture(kind backend.TextureKind) backend.Texture
	ReleaseTexture(t backend.Texture) error
}

// Cache deduplicates texture loads by normalized path. One cache belongs
// to one actor and is used from its frame loop only.
type Cache struct {
	loader  Loader
	baseDir string
	toonDir string
	items   map[string]backend.Texture
	owned   []backend.Texture // loaded by this cache, placeholders excluded
	loads   int
}

// NewCache returns a cache resolving relative references against baseDir.
// toonDir is searched for shared toon ramps the model directory lacks.
func NewCache(loader Loader, baseDir, toonDir string) *Cache {
	return &Cache{
		loader:  loader,
		baseDir: baseDir,
		toonDir: toonDir,
		items:   make(map[string]backend.Texture),
	}
}

// Resolve returns the texture for ref, loading it on first use. An empty
// reference resolves to the kind's placeholder. A texture that fails to
// load is logged once and replaced by the placeholder for good.
func (c *Cache) Resolve(ref string, kind backend.TextureKind) backend.Texture {
	if strings.TrimSpace(ref) == "" {
		return c.loader.DefaultTexture(kind)
	}

	key := Normalize(c.baseDir, ref)
	if h, ok := c.items[key]; ok {
		return h
	}

	path, _ := Locate(c.baseDir, ref)
	h := c.load(path, kind)
	c.items[key] = h
	return h
}

// ResolveToon returns the toon ramp of palette slot index, looking in the
// model directory first and then the shared toon directory.
func (c *Cache) ResolveToon(index int8) backend.Texture {
	name, ok := ToonName(index)
	if !ok {
		return c.loader.DefaultTexture(backend.TextureGray)
	}

	key := "toon:" + name
	if h, ok := c.items[key]; ok {
		return h
	}

	var h backend.Texture
	if path, found := c.findToon(name); found {
		h = c.load(path, backend.TextureGray)
	} else {
		logging.Logger().Debug("texture: toon ramp not found, using placeholder", slog.String("name", name))
		h = c.loader.DefaultTexture(backend.TextureGray)
	}
	c.items[key] = h
	return h
}

func (c *Cache) findToon(name string) (string, bool) {
	if p, ok := Locate(c.baseDir, name); ok {
		return p, true
	}
	if c.toonDir != "" {
		return Locate(c.toonDir, name)
	}
	return "", false
}

func (c *Cache) load(path string, kind backend.TextureKind) backend.Texture {
	c.loads++
	h, err := c.loader.LoadTexture(path)
	if err != nil {
		logging.Logger().Warn("texture: load failed, using placeholder",
			slog.String("path", path),
			slog.String("placeholder", kind.String()),
			slog.Any("err", err))
		return c.loader.DefaultTexture(kind)
	}
	c.owned = append(c.owned, h)
	return h
}

// Release returns every texture this cache loaded to the backend and
// empties the cache. Placeholders stay with the backend.
func (c *Cache) Release() {
	for _, h := range c.owned {
		if err := c.loader.ReleaseTexture(h); err != nil {
			logging.Logger().Warn("texture: release failed", slog.Any("err", err))
		}
	}
	c.owned = nil
	clear(c.items)
}

// Len returns the number of cached references.
func (c *Cache) Len() int { return len(c.items) }

// Owned returns the number of loaded textures the cache holds.
func (c *Cache) Owned() int { return len(c.owned) }

// Loads returns how many times the backend loader was invoked.
func (c *Cache) Loads() int { return c.loads }
