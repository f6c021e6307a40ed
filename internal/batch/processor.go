// Package batch renders many models to WebP images on a worker pool.
package batch

import (
	"context"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"

	"pmd-renderer/internal/actor"
	"pmd-renderer/internal/logging"
	"pmd-renderer/internal/raster"
)

// Config holds the settings shared by every job of a run.
type Config struct {
	ModelDir  string // image paths mirror model paths relative to this
	OutputDir string
	Camera    raster.Camera
	Actor     actor.Options
	Elapsed   time.Duration // animation time of the rendered frame
	Animate   bool
	Reverse   bool
	Fill      float64 // crop to content and span this share of the image; 0 keeps the camera framing
	Workers   int
	Progress  io.Writer // progress bar destination; nil hides it
}

// Result holds the outcome of rendering one model.
type Result struct {
	Model     string `json:"model"`
	Name      string `json:"name,omitempty"`
	Image     string `json:"image,omitempty"`
	Vertices  int    `json:"vertices,omitempty"`
	Bones     int    `json:"bones,omitempty"`
	Materials int    `json:"materials,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// Discover returns every .pmd file under dir, sorted by path.
func Discover(dir string) ([]string, error) {
	var models []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pmd") {
			models = append(models, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "batch: scan %s", dir)
	}
	return models, nil
}

// Run renders every model using cfg.Workers goroutines, each with its own
// backend. Results are in the order of models. Models not yet started when
// ctx is cancelled are reported as failed with the context error.
func Run(ctx context.Context, cfg Config, models []string) []Result {
	results := make([]Result, len(models))
	workers := max(cfg.Workers, 1)

	progress := cfg.Progress
	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(len(models),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("rendering"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("models"),
		progressbar.OptionShowIts(),
	)
	defer bar.Close()

	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			be := raster.New()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					results[i] = Result{Model: models[i], Error: err.Error()}
				} else {
					results[i] = Render(be, cfg, models[i])
				}
				bar.Add(1)
			}
		}()
	}

	for i := range models {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// Render loads one model, poses it and writes its WebP image.
func Render(be *raster.Backend, cfg Config, model string) Result {
	res := Result{Model: model}
	log := logging.Logger().With(slog.String("model", model))

	a, err := actor.Load(model, be, cfg.Actor)
	if err != nil {
		log.Warn("batch: load failed", slog.Any("err", err))
		res.Error = err.Error()
		return res
	}
	defer a.Release()
	defer be.Present()

	m := a.Model()
	res.Name = m.Header.Name
	res.Vertices = len(m.Vertices)
	res.Bones = a.Hierarchy().Len()
	res.Materials = a.Materials().Len()

	if err := a.Update(cfg.Elapsed, cfg.Animate, cfg.Reverse); err != nil {
		res.Error = err.Error()
		return res
	}
	img, err := be.Draw(a, cfg.Camera)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	if cfg.Fill > 0 {
		img = raster.CropAndCenter(img, cfg.Camera.Size, cfg.Fill)
	}

	res.Image = imageName(cfg.ModelDir, model)
	out := filepath.Join(cfg.OutputDir, filepath.FromSlash(res.Image))
	if err := writeWebP(out, img); err != nil {
		log.Warn("batch: write failed", slog.Any("err", err))
		res.Error = err.Error()
		return res
	}
	log.Debug("batch: rendered", slog.String("image", out))
	res.Success = true
	return res
}

// imageName is the output path of a model relative to the output
// directory: its path under modelDir with a .webp extension, or just its
// base name when it lies outside modelDir.
func imageName(modelDir, model string) string {
	rel, err := filepath.Rel(modelDir, model)
	if err != nil || modelDir == "" || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(model)
	}
	return filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)) + ".webp")
}

// writeWebP encodes img losslessly to path, creating parent directories.
func writeWebP(path string, img image.Image) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "batch: create output dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "batch: create image")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "batch: close image")
		}
	}()
	if err := nativewebp.Encode(f, img, nil); err != nil {
		return errors.Wrap(err, "batch: webp encode")
	}
	return nil
}
