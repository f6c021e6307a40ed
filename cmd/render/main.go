package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"pmd-renderer/internal/batch"
	"pmd-renderer/internal/config"
	"pmd-renderer/internal/logging"
)

func main() {
	configFile := flag.String("config", "", "Path to a JSON or YAML config file")
	modelDir := flag.String("models", "", "Directory scanned for .pmd files when no files are given (default: .)")
	outputDir := flag.String("output", "", "Output directory (default: <models>/renders)")
	toonDir := flag.String("toon", "", "Directory with shared toon01.bmp..toon10.bmp")
	size := flag.Int("size", 0, "Output image size in pixels (default: 512)")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	at := flag.Float64("time", 0, "Animation time in seconds")
	animate := flag.Bool("animate", false, "Apply the procedural swing")
	reverse := flag.Bool("reverse", false, "Swing in the opposite direction")
	fill := flag.Float64("fill", 0, "Crop to the rendered model and fill this share of the image (0-1, default: camera framing)")
	testN := flag.Int("test", 0, "Render only the first N models")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

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
	cfg.Resolve(config.Flags{
		ModelDir:  *modelDir,
		ToonDir:   *toonDir,
		OutputDir: *outputDir,
		Size:      *size,
		Workers:   *workers,
		Time:      *at,
		Fill:      *fill,
		Animate:   *animate,
		Reverse:   *reverse,
	})

	models := flag.Args()
	if len(models) == 0 {
		var err error
		models, err = batch.Discover(cfg.ModelDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *testN > 0 && *testN < len(models) {
		models = models[:*testN]
	}
	if len(models) == 0 {
		fmt.Println("No models to render.")
		os.Exit(0)
	}

	fmt.Printf("PMD renderer → WebP\n")
	fmt.Printf("Models: %d, Workers: %d, Size: %d\n", len(models), cfg.Workers, cfg.RenderSize)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Println("------------------------------------------------------------")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	results := batch.Run(ctx, batch.Config{
		ModelDir:  cfg.ModelDir,
		OutputDir: cfg.OutputDir,
		Camera:    cfg.Camera(),
		Actor:     cfg.ActorOptions(),
		Elapsed:   cfg.Elapsed(),
		Animate:   cfg.Animate,
		Reverse:   cfg.Reverse,
		Fill:      cfg.FillRatio,
		Workers:   cfg.Workers,
		Progress:  os.Stderr,
	}, models)

	fmt.Println()
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", time.Since(start).Seconds())

	m := batch.NewManifest(results)
	fmt.Printf("Rendered: %d/%d\n", m.Rendered, m.Models)
	if m.Failed > 0 {
		fmt.Printf("\nFailed (%d):\n", m.Failed)
		shown := 0
		for _, r := range results {
			if r.Success {
				continue
			}
			if shown == 20 {
				fmt.Printf("  ... and %d more\n", m.Failed-shown)
				break
			}
			fmt.Printf("  %s: %s\n", r.Model, r.Error)
			shown++
		}
	}

	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := batch.WriteManifest(manifestPath, results); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if m.Failed > 0 {
		os.Exit(1)
	}
}
