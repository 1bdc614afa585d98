// Package batch captures many drops at once. Every sub-directory of the
// input directory is one drop, and so is every model file lying directly in
// it.
package batch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"dropview/internal/blob"
	"dropview/internal/capture"
	"dropview/internal/dispatch"
	"dropview/internal/format"
	"dropview/internal/loaderr"
	"dropview/internal/logging"
	"dropview/internal/session"
)

// Config holds all shared resources for a batch run.
type Config struct {
	OutputDir string
	Capture   capture.Options
	Workers   int
	Fallback  fs.FS // searched for references a drop does not carry; may be nil
	Log       *log.Logger

	// Progress is how often a progress line is logged. Zero disables it.
	Progress time.Duration
}

// Job is one drop: a name for its output and the files dropped together.
type Job struct {
	Name  string
	Paths []string
}

// Result holds the outcome of processing one job.
type Result struct {
	Name       string
	Primary    string
	Image      string // relative to the output directory
	Meshes     int
	Triangles  int
	Animations int
	Warnings   []string
	Success    bool
	Error      string
	Kind       loaderr.Kind
}

// Discover lists the jobs under dir in name order. Files inside a
// sub-directory are dropped in path order, nested folders included.
func Discover(dir string) ([]Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	var jobs []Job
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if !e.IsDir() {
			if format.IsModel(e.Name()) {
				jobs = append(jobs, Job{Name: stem(e.Name()), Paths: []string{path}})
			}
			continue
		}
		var paths []string
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				paths = append(paths, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("batch: %w", err)
		}
		if len(paths) > 0 {
			sort.Strings(paths)
			jobs = append(jobs, Job{Name: e.Name(), Paths: paths})
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs, nil
}

// Run processes all jobs using a worker pool. Results are in job order. A
// canceled ctx stops jobs that have not started; they report the context
// error.
func Run(ctx context.Context, cfg Config, jobs []Job) []Result {
	if cfg.Log == nil {
		cfg.Log = logging.Default()
	}
	workers := max(cfg.Workers, 1)
	store := blob.NewStore()
	d := dispatch.New(store, dispatch.WithFallback(cfg.Fallback), dispatch.WithLogger(cfg.Log))

	total := len(jobs)
	results := make([]Result, total)
	var processed atomic.Int64
	start := time.Now()

	done := make(chan struct{})
	if cfg.Progress > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Progress)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if p := processed.Load(); p > 0 {
						rate := float64(p) / time.Since(start).Seconds()
						cfg.Log.Info("progress", "done", p, "total", total, "rate", fmt.Sprintf("%.1f/s", rate))
					}
				}
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Name: job.Name, Error: err.Error()}
			} else {
				results[i] = processJob(gctx, cfg, store, d, job)
			}
			processed.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	close(done)

	if live := store.Live(); live != 0 {
		cfg.Log.Warn("handles still live after batch", "count", live)
	}
	return results
}

func processJob(ctx context.Context, cfg Config, store *blob.Store, d *dispatch.Dispatcher, job Job) Result {
	r := Result{Name: job.Name}
	fail := func(err error) Result {
		r.Error = err.Error()
		r.Kind = loaderr.KindOf(err)
		cfg.Log.Error("job failed", "job", job.Name, "err", err)
		return r
	}

	files := make([]blob.File, 0, len(job.Paths))
	for _, p := range job.Paths {
		f, err := blob.ReadFile(p)
		if err != nil {
			return fail(err)
		}
		files = append(files, f)
	}

	s := session.New(store, d, session.WithLogger(cfg.Log))
	defer s.Close()

	res, err := s.DropAndWait(ctx, files)
	r.Primary = s.Primary()
	if err != nil {
		return fail(err)
	}

	r.Image = job.Name + cfg.Capture.Format.Ext()
	if err := capture.WriteFile(filepath.Join(cfg.OutputDir, r.Image), res, cfg.Capture); err != nil {
		r.Image = ""
		return fail(err)
	}
	r.Meshes = len(res.Renderables())
	r.Triangles = res.Triangles()
	r.Animations = len(res.Animations)
	r.Warnings = res.Warnings
	r.Success = true
	return r
}

func stem(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
