package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"dropview/internal/batch"
	"dropview/internal/capture"
	"dropview/internal/config"
	"dropview/internal/logging"
	"dropview/internal/texture"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to dropview.toml")
	inputDir := flag.String("input", "", "Directory of drops: one per sub-directory or loose model file")
	outputDir := flag.String("output", "", "Output directory (default: ./renders)")
	assetDir := flag.String("assets", "", "Directory searched for references a drop does not carry")
	testN := flag.Int("test", 0, "Render only the first N drops")
	only := flag.String("only", "", "Render only the drop with this name")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	size := flag.Int("size", 0, "Output edge in pixels (default: 512)")
	format := flag.String("format", "", "webp or png (default: webp)")
	env := flag.String("env", "", "Lighting environment: studio, sunset, city, night, forest")
	quality := flag.String("quality", "", "Viewer quality: low, medium, high")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")

	flag.Parse()

	if *inputDir == "" {
		fmt.Fprintln(os.Stderr, "Error: -input is required.")
		flag.Usage()
		os.Exit(2)
	}

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		OutputDir:   *outputDir,
		AssetDir:    *assetDir,
		Environment: *env,
		Quality:     *quality,
		Format:      *format,
		Size:        *size,
		Workers:     *workers,
		LogLevel:    *logLevel,
	})
	if err := logging.SetLevel(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	opts, err := capture.OptionsFrom(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	jobs, err := batch.Discover(*inputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *only != "" {
		var filtered []batch.Job
		for _, j := range jobs {
			if j.Name == *only {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}

	// Limit for testing
	if *testN > 0 && *testN < len(jobs) {
		jobs = jobs[:*testN]
	}

	if len(jobs) == 0 {
		fmt.Println("No drops to render.")
		os.Exit(0)
	}

	// Build the asset index
	var fallback fs.FS
	if cfg.Loading.AssetDir != "" {
		idx, err := texture.BuildIndex(cfg.Loading.AssetDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error indexing assets: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Assets: %d indexed\n", idx.Len())
		fallback = idx
	}

	fmt.Printf("dropview batch capture → %s\n", opts.Format)
	fmt.Printf("Drops: %d, Workers: %d, Size: %d (x%d)\n", len(jobs), cfg.Loading.Workers, opts.Size, opts.Supersample)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Println("------------------------------------------------------------")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	results := batch.Run(ctx, batch.Config{
		OutputDir: cfg.OutputDir,
		Capture:   opts,
		Workers:   cfg.Loading.Workers,
		Fallback:  fallback,
		Log:       logging.Default(),
		Progress:  2 * time.Second,
	}, jobs)

	elapsed := time.Since(start)
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", elapsed.Seconds())

	// Count results
	var failed []batch.Result
	warnings := 0
	for _, r := range results {
		warnings += len(r.Warnings)
		if !r.Success {
			failed = append(failed, r)
		}
	}

	fmt.Printf("Rendered: %d/%d (%d warnings)\n", len(results)-len(failed), len(results), warnings)

	if len(failed) > 0 {
		fmt.Printf("\nFailed (%d):\n", len(failed))
		for _, r := range failed[:min(len(failed), 20)] {
			fmt.Printf("  %s: %s\n", r.Name, r.Error)
		}
	}

	// Write manifest
	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := batch.WriteManifest(manifestPath, results); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if len(failed) > 0 {
		os.Exit(1)
	}
}
