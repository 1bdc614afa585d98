package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"dropview/internal/blob"
	"dropview/internal/dispatch"
	"dropview/internal/logging"
	"dropview/internal/resource"
	"dropview/internal/session"
	"dropview/internal/texture"
)

func main() {
	asYAML := flag.Bool("yaml", false, "Print the report as YAML")
	assetDir := flag.String("assets", "", "Directory searched for references the drop does not carry")
	verbose := flag.Bool("v", false, "Log loader activity to stderr")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: inspect [flags] FILE...\n\nLoads FILE... as a single drop and reports what was found.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var files []blob.File
	var names []string
	for _, p := range flag.Args() {
		f, err := blob.ReadFile(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		files = append(files, f)
		names = append(names, resource.Basename(f.Name))
	}

	logger := logging.Discard()
	if *verbose {
		logger = logging.Default()
	}
	var opts []dispatch.Option
	opts = append(opts, dispatch.WithLogger(logger))
	if *assetDir != "" {
		idx, err := texture.BuildIndex(*assetDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error indexing assets: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, dispatch.WithFallback(idx))
	}

	store := blob.NewStore()
	s := session.New(store, dispatch.New(store, opts...), session.WithLogger(logger))
	defer s.Close()

	res, err := s.DropAndWait(context.Background(), files)
	r := newReport(names, s.Primary(), s.Resources(), res, err)

	if *asYAML {
		if err := r.writeYAML(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else {
		r.writeText(os.Stdout)
	}
	if err != nil {
		os.Exit(1)
	}
}
