package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"dropview/internal/blob"
	"dropview/internal/capture"
	"dropview/internal/config"
	"dropview/internal/dispatch"
	"dropview/internal/dropwatch"
	"dropview/internal/logging"
	"dropview/internal/session"
	"dropview/internal/texture"
)

func main() {
	configFile := flag.String("config", "", "Path to dropview.toml")
	dir := flag.String("dir", "", "Drop directory to watch")
	outputDir := flag.String("output", "", "Where captures are written (default: ./renders)")
	assetDir := flag.String("assets", "", "Directory searched for references a drop does not carry")
	existing := flag.Bool("existing", false, "Drop the directory's current contents on start")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	flag.Parse()

	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.Resolve(config.Flags{OutputDir: *outputDir, AssetDir: *assetDir, LogLevel: *logLevel})
	if *dir != "" {
		cfg.Watch.Dir = *dir
	}
	if cfg.Watch.Dir == "" {
		fmt.Fprintln(os.Stderr, "Error: no drop directory. Use -dir or [watch] dir in the config.")
		os.Exit(2)
	}
	if err := logging.SetLevel(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	log := logging.Default()

	opts, err := capture.OptionsFrom(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sink := func(o session.Outcome) {
		if o.Err != nil {
			log.Error("load failed", "primary", o.Primary, "generation", o.Generation, "err", o.Err)
			return
		}
		name := strings.TrimSuffix(o.Primary, filepath.Ext(o.Primary))
		path := filepath.Join(cfg.OutputDir, name+opts.Format.Ext())
		if err := capture.WriteFile(path, o.Result, opts); err != nil {
			log.Error("capture failed", "primary", o.Primary, "err", err)
			return
		}
		log.Info("captured", "primary", o.Primary, "transition", o.Transition, "out", path)
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
	s := session.New(store, dispatch.New(store, dopts...), session.WithSink(sink), session.WithLogger(log))
	defer s.Close()

	wopts := []dropwatch.Option{dropwatch.WithDebounce(cfg.Watch.Debounce()), dropwatch.WithLogger(log)}
	if *existing {
		wopts = append(wopts, dropwatch.WithExisting())
	}
	w, err := dropwatch.New(cfg.Watch.Dir, dropwatch.ForSession(s), wopts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("watching", "dir", cfg.Watch.Dir, "out", cfg.OutputDir)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
