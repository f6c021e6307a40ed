// Package viewer is the interactive frame loop behind cmd/pmdview, kept
// free of any windowing code: input arrives as events on a bus and every
// Step produces one image.
package viewer

import (
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/pkg/errors"

	"pmd-renderer/internal/actor"
	"pmd-renderer/internal/event"
	"pmd-renderer/internal/logging"
	"pmd-renderer/internal/raster"
)

// Viewer owns at most one actor and renders it with a software backend.
type Viewer struct {
	be    *raster.Backend
	opts  actor.Options
	cam   raster.Camera
	actor *actor.Actor
	path  string

	animate bool
	reverse bool
	shot    string
	err     error

	unsubscribe func()
}

// New returns a viewer subscribed to bus.
func New(bus *event.Bus, cam raster.Camera, opts actor.Options) *Viewer {
	v := &Viewer{be: raster.New(), opts: opts, cam: cam}
	v.unsubscribe = bus.Subscribe(v.handle)
	return v
}

// SetAnimation sets the initial animation state.
func (v *Viewer) SetAnimation(animate, reverse bool) {
	v.animate, v.reverse = animate, reverse
}

// Load replaces the current model. On failure the current model stays.
func (v *Viewer) Load(path string) error {
	a, err := actor.Load(path, v.be, v.opts)
	if err != nil {
		return err
	}
	if v.actor != nil {
		v.actor.Release()
	}
	v.actor, v.path = a, path
	return nil
}

func (v *Viewer) handle(ev event.Event) {
	log := logging.Logger()
	switch ev := ev.(type) {
	case event.ToggleAnimation:
		v.animate = !v.animate
		log.Debug("viewer: animation", slog.Bool("on", v.animate))
	case event.ToggleReverse:
		v.reverse = !v.reverse
		log.Debug("viewer: reverse", slog.Bool("on", v.reverse))
	case event.ResetTime:
		if v.actor != nil {
			v.actor.ResetTime()
		}
	case event.Orbit:
		v.cam.Yaw += ev.Yaw
		v.cam.Pitch = min(max(v.cam.Pitch+ev.Pitch, -89), 89)
	case event.LoadModel:
		if err := v.Load(ev.Path); err != nil {
			log.Warn("viewer: load failed", slog.String("path", ev.Path), slog.Any("err", err))
			v.err = err
		}
	case event.Screenshot:
		v.shot = ev.Path
	}
}

// Step advances the animation by dt and renders a frame. With no model
// loaded it returns nil. A pending screenshot is written from this frame.
func (v *Viewer) Step(dt time.Duration) (*image.NRGBA, error) {
	if v.actor == nil {
		return nil, nil
	}
	if err := v.actor.Update(dt, v.animate, v.reverse); err != nil {
		return nil, err
	}
	img, err := v.be.Draw(v.actor, v.cam)
	v.be.Present()
	if err != nil {
		return nil, err
	}

	if v.shot != "" {
		path := v.shot
		v.shot = ""
		if err := Save(path, img); err != nil {
			return img, err
		}
		logging.Logger().Info("viewer: screenshot", slog.String("path", path))
	}
	return img, nil
}

// Err returns and clears the last error raised by an event handler.
func (v *Viewer) Err() error {
	err := v.err
	v.err = nil
	return err
}

// Animating reports the animation toggles.
func (v *Viewer) Animating() (animate, reverse bool) { return v.animate, v.reverse }

// Actor returns the current actor, or nil.
func (v *Viewer) Actor() *actor.Actor { return v.actor }

// Path returns the file of the current model.
func (v *Viewer) Path() string { return v.path }

// Camera returns the current camera.
func (v *Viewer) Camera() raster.Camera { return v.cam }

// Close releases the model and leaves the bus.
func (v *Viewer) Close() {
	v.unsubscribe()
	if v.actor != nil {
		v.actor.Release()
		v.actor = nil
	}
}

// Save writes img as WebP when path ends in .webp and as PNG otherwise.
func Save(path string, img image.Image) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "viewer: create screenshot dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "viewer: create screenshot")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "viewer: close screenshot")
		}
	}()

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		err = nativewebp.Encode(f, img, nil)
	} else {
		err = png.Encode(f, img)
	}
	return errors.Wrapf(err, "viewer: encode %s", path)
}
