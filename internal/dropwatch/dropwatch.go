// Package dropwatch turns a directory into a drop zone: files written into
// it are collected until the directory has been quiet for a while, then
// dropped onto a session together.
package dropwatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"dropview/internal/blob"
	"dropview/internal/logging"
	"dropview/internal/session"
)

// DefaultDebounce is used when no debounce is configured.
const DefaultDebounce = 300 * time.Millisecond

// Dropper receives each batch of files.
type Dropper interface {
	Drop(ctx context.Context, files []blob.File) error
}

// DropperFunc adapts a function to Dropper.
type DropperFunc func(ctx context.Context, files []blob.File) error

func (f DropperFunc) Drop(ctx context.Context, files []blob.File) error { return f(ctx, files) }

// ForSession drops onto s. Load outcomes reach the session's sink.
func ForSession(s *session.Session) Dropper {
	return DropperFunc(func(ctx context.Context, files []blob.File) error {
		_, err := s.Drop(ctx, files)
		return err
	})
}

// Watcher watches a directory tree and feeds settled changes to a Dropper.
type Watcher struct {
	dir      string
	debounce time.Duration
	existing bool
	drop     Dropper
	log      *log.Logger
	fsw      *fsnotify.Watcher

	pending map[string]int // path -> arrival order
	seq     int
}

// Option configures a Watcher.
type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExisting drops whatever the directory already holds when Run starts.
func WithExisting() Option {
	return func(w *Watcher) { w.existing = true }
}

func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// New starts watching dir and every directory below it.
func New(dir string, d Dropper, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("dropwatch: %w", err)
	}
	w := &Watcher{
		dir:      dir,
		debounce: DefaultDebounce,
		drop:     d,
		log:      logging.Discard(),
		fsw:      fsw,
		pending:  make(map[string]int),
	}
	for _, o := range opts {
		o(w)
	}
	if _, err := w.addTree(dir, false); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers drops until ctx is done. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if w.existing {
		if _, err := w.addTree(w.dir, true); err != nil {
			return err
		}
		w.flush(ctx)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case e, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(e) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", "err", err)
		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// handle records e and reports whether the debounce should restart.
func (w *Watcher) handle(e fsnotify.Event) bool {
	if e.Op&(fsnotify.Create|fsnotify.Write) == 0 || ignored(e.Name) {
		return false
	}
	st, err := os.Stat(e.Name)
	if err != nil {
		return false
	}
	if st.IsDir() {
		// Files copied in with the directory may predate its watch.
		n, err := w.addTree(e.Name, true)
		if err != nil {
			w.log.Warn("watch directory", "dir", e.Name, "err", err)
		}
		return n > 0
	}
	if !st.Mode().IsRegular() {
		return false
	}
	w.enqueue(e.Name)
	return true
}

func (w *Watcher) enqueue(path string) {
	if _, ok := w.pending[path]; ok {
		return
	}
	w.seq++
	w.pending[path] = w.seq
}

// addTree watches root and its sub-directories. With enqueue set, regular
// files found on the way are queued; the count is returned.
func (w *Watcher) addTree(root string, enqueue bool) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && ignored(p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.fsw.Add(p)
		}
		if enqueue && d.Type().IsRegular() {
			w.enqueue(p)
			n++
		}
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("dropwatch: %w", err)
	}
	return n, nil
}

// flush reads the pending files in arrival order and drops them. Files that
// vanished in the meantime are skipped.
func (w *Watcher) flush(ctx context.Context) {
	if len(w.pending) == 0 {
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return w.pending[paths[i]] < w.pending[paths[j]] })
	clear(w.pending)

	files := make([]blob.File, 0, len(paths))
	for _, p := range paths {
		f, err := blob.ReadFile(p)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				w.log.Warn("skip file", "path", p, "err", err)
			}
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return
	}

	w.log.Info("drop", "files", len(files))
	if err := w.drop.Drop(ctx, files); err != nil {
		w.log.Warn("drop rejected", "err", err)
	}
}

// ignored skips dotfiles and editor or download temporaries.
func ignored(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") ||
		strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, ".part") ||
		strings.HasSuffix(base, ".crdownload")
}
