package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"dropview/internal/blob"
	"dropview/internal/capture"
	"dropview/internal/config"
	"dropview/internal/dispatch"
	"dropview/internal/logging"
	"dropview/internal/session"
	"dropview/internal/texture"
)

func main() {
	configFile := flag.String("config", "", "Path to dropview.toml")
	out := flag.String("o", "", "Output file (default: <model>.webp next to the output dir)")
	assetDir := flag.String("assets", "", "Directory searched for references the drop does not carry")
	size := flag.Int("size", 0, "Output edge in pixels (default: 512)")
	format := flag.String("format", "", "webp or png (default: from -o, else webp)")
	env := flag.String("env", "", "Lighting environment: studio, sunset, city, night, forest")
	quality := flag.String("quality", "", "Viewer quality: low, medium, high")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: capture [flags] FILE...\n\nLoads FILE... as a single drop and writes a still image.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if *format == "" && strings.EqualFold(filepath.Ext(*out), ".png") {
		*format = "png"
	}
	cfg.Resolve(config.Flags{
		AssetDir:    *assetDir,
		Environment: *env,
		Quality:     *quality,
		Format:      *format,
		Size:        *size,
		LogLevel:    *logLevel,
	})
	if err := logging.SetLevel(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	log := logging.Default()

	opts, err := capture.OptionsFrom(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var files []blob.File
	for _, p := range flag.Args() {
		f, err := blob.ReadFile(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		files = append(files, f)
	}

	dopts := []dispatch.Option{dispatch.WithLogger(log)}
	if cfg.Loading.AssetDir != "" {
		idx, err := texture.BuildIndex(cfg.Loading.AssetDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error indexing assets: %v\n", err)
			os.Exit(1)
		}
		dopts = append(dopts, dispatch.WithFallback(idx))
	}
	store := blob.NewStore()
	s := session.New(store, dispatch.New(store, dopts...), session.WithLogger(log))
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := s.DropAndWait(ctx, files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	path := *out
	if path == "" {
		primary := s.Primary()
		path = filepath.Join(cfg.OutputDir, strings.TrimSuffix(primary, filepath.Ext(primary))+opts.Format.Ext())
	}
	if err := capture.WriteFile(path, res, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	fmt.Printf("%s: %d triangles → %s\n", s.Primary(), res.Triangles(), path)
}
