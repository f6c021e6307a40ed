package config

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"pmd-renderer/internal/actor"
	"pmd-renderer/internal/raster"
)

// Config holds all configurable paths and render settings.
type Config struct {
	// Paths
	ModelDir  string `json:"model_dir" yaml:"model_dir"`
	ToonDir   string `json:"toon_dir" yaml:"toon_dir"`
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Render settings
	RenderSize  int     `json:"render_size" yaml:"render_size"`
	Supersample int     `json:"supersample" yaml:"supersample"`
	Workers     int     `json:"workers" yaml:"workers"`
	Yaw         float64 `json:"yaw" yaml:"yaw"`
	Pitch       float64 `json:"pitch" yaml:"pitch"`
	Perspective bool    `json:"perspective" yaml:"perspective"`
	FOV         float64 `json:"fov" yaml:"fov"`
	FillRatio   float64 `json:"fill_ratio" yaml:"fill_ratio"` // 0 keeps the camera framing

	// Animation
	Animate   bool      `json:"animate" yaml:"animate"`
	Reverse   bool      `json:"reverse" yaml:"reverse"`
	Time      float64   `json:"time" yaml:"time"` // seconds into the animation
	Animation Animation `json:"animation" yaml:"animation"`
}

// Animation configures the procedural swing.
type Animation struct {
	Bones     []string   `json:"bones" yaml:"bones"`
	Axis      [3]float64 `json:"axis" yaml:"axis"`
	Amplitude *float64   `json:"amplitude_deg" yaml:"amplitude_deg"` // nil keeps the actor default
	Period    float64    `json:"period_sec" yaml:"period_sec"`
}

// Load reads a config file. Files ending in .yaml or .yml are YAML,
// anything else is JSON. Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: read %s", path)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: parse %s", path)
	}
	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
// Zero values leave the file's setting alone.
type Flags struct {
	ModelDir  string
	ToonDir   string
	OutputDir string
	Size      int
	Workers   int
	Time      float64
	Fill      float64
	Animate   bool
	Reverse   bool
}

// Resolve applies flags, then fills any empty field with its default.
func (c *Config) Resolve(flags Flags) {
	if flags.ModelDir != "" {
		c.ModelDir = flags.ModelDir
	}
	if flags.ToonDir != "" {
		c.ToonDir = flags.ToonDir
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Size > 0 {
		c.RenderSize = flags.Size
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Time > 0 {
		c.Time = flags.Time
	}
	if flags.Fill > 0 {
		c.FillRatio = flags.Fill
	}
	c.Animate = c.Animate || flags.Animate
	c.Reverse = c.Reverse || flags.Reverse

	if c.ModelDir == "" {
		c.ModelDir = "."
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(c.ModelDir, "renders")
	} else if !filepath.IsAbs(c.OutputDir) && flags.OutputDir == "" {
		c.OutputDir = filepath.Join(c.ModelDir, c.OutputDir)
	}
	if c.ToonDir != "" && !filepath.IsAbs(c.ToonDir) && flags.ToonDir == "" {
		c.ToonDir = filepath.Join(c.ModelDir, c.ToonDir)
	}

	if c.RenderSize <= 0 {
		c.RenderSize = 512
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	c.FillRatio = min(max(c.FillRatio, 0), 1)
}

// ActorOptions converts the animation settings for actor.Load.
// Unset amplitude and period keep the actor defaults.
func (c *Config) ActorOptions() actor.Options {
	a := c.Animation
	opts := actor.Options{
		ToonDir: c.ToonDir,
		Animation: actor.Animation{
			Bones:  a.Bones,
			Axis:   a.Axis,
			Period: time.Duration(a.Period * float64(time.Second)),
		},
	}
	if a.Amplitude != nil {
		rad := *a.Amplitude * math.Pi / 180
		opts.Animation.Amplitude = &rad
	}
	return opts
}

// Camera returns the render camera.
func (c *Config) Camera() raster.Camera {
	return raster.Camera{
		Yaw:         c.Yaw,
		Pitch:       c.Pitch,
		Size:        c.RenderSize,
		Supersample: c.Supersample,
		Margin:      c.RenderSize / 32,
		Perspective: c.Perspective,
		FOV:         c.FOV,
	}
}

// Elapsed returns the animation time as a duration.
func (c *Config) Elapsed() time.Duration {
	return time.Duration(c.Time * float64(time.Second))
}
