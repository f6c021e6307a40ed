package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"pmd-renderer/internal/config"
	"pmd-renderer/internal/event"
	"pmd-renderer/internal/logging"
	"pmd-renderer/internal/viewer"
)

const tps = 60

// game adapts the viewer to Ebiten: keys become events and each tick draws
// one frame.
type game struct {
	bus    *event.Bus
	view   *viewer.Viewer
	size   int
	shots  string
	nshot  int
	last   time.Time
	frame  *image.NRGBA
	screen *ebiten.Image
	pix    []byte
}

var background = color.RGBA{0x30, 0x30, 0x38, 0xff}

var keyEvents = []struct {
	key ebiten.Key
	ev  event.Event
}{
	{ebiten.KeySpace, event.ToggleAnimation{}},
	{ebiten.KeyR, event.ToggleReverse{}},
	{ebiten.Key0, event.ResetTime{}},
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	for _, k := range keyEvents {
		if inpututil.IsKeyJustPressed(k.key) {
			g.bus.Publish(k.ev)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		g.nshot++
		g.bus.Publish(event.Screenshot{Path: filepath.Join(g.shots, fmt.Sprintf("shot%03d.png", g.nshot))})
	}

	var yaw, pitch float64
	if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
		yaw -= 2
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
		yaw += 2
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
		pitch -= 2
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
		pitch += 2
	}
	if yaw != 0 || pitch != 0 {
		g.bus.Publish(event.Orbit{Yaw: yaw, Pitch: pitch})
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyL) {
		g.bus.Publish(event.LoadModel{Path: g.view.Path()})
	}
	if err := g.view.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	now := time.Now()
	dt := now.Sub(g.last)
	g.last = now

	frame, err := g.view.Step(dt)
	if err != nil {
		return err
	}
	g.frame = frame
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.frame == nil {
		return
	}
	if g.screen == nil {
		g.screen = ebiten.NewImage(g.size, g.size)
		g.pix = make([]byte, len(g.frame.Pix))
	}
	// Ebiten takes premultiplied alpha.
	src := g.frame.Pix
	for i := 0; i+3 < len(src) && i+3 < len(g.pix); i += 4 {
		a := uint16(src[i+3])
		g.pix[i] = uint8(uint16(src[i]) * a / 255)
		g.pix[i+1] = uint8(uint16(src[i+1]) * a / 255)
		g.pix[i+2] = uint8(uint16(src[i+2]) * a / 255)
		g.pix[i+3] = src[i+3]
	}
	g.screen.WritePixels(g.pix)
	screen.Fill(background)
	screen.DrawImage(g.screen, nil)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.size, g.size
}

func main() {
	configFile := flag.String("config", "", "Path to a JSON or YAML config file")
	toonDir := flag.String("toon", "", "Directory with shared toon01.bmp..toon10.bmp")
	size := flag.Int("size", 0, "Window size in pixels (default: 512)")
	shots := flag.String("shots", ".", "Screenshot directory")
	animate := flag.Bool("animate", false, "Start with the animation running")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: pmdview [flags] model.pmd\n\n")
		fmt.Fprintf(os.Stderr, "keys: space animation, R reverse, 0 reset time, S screenshot, L reload, arrows orbit, Esc quit\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	logging.SetLogger(logging.NewText(os.Stderr, *verbose))

	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.Resolve(config.Flags{ToonDir: *toonDir, Size: *size, Animate: *animate})

	var bus event.Bus
	view := viewer.New(&bus, cfg.Camera(), cfg.ActorOptions())
	defer view.Close()
	view.SetAnimation(cfg.Animate, cfg.Reverse)
	if err := view.Load(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	g := &game{bus: &bus, view: view, size: cfg.RenderSize, shots: *shots, last: time.Now()}
	ebiten.SetWindowTitle("pmdview - " + filepath.Base(flag.Arg(0)))
	ebiten.SetWindowSize(cfg.RenderSize, cfg.RenderSize)
	ebiten.SetTPS(tps)
	if err := ebiten.RunGame(g); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
