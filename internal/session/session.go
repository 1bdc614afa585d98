// Package session is the drop-session controller: it turns file drops into
// resource map updates and loads, and owns the lifetime of every handle it
// creates.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"dropview/internal/blob"
	"dropview/internal/format"
	"dropview/internal/loaderr"
	"dropview/internal/logging"
	"dropview/internal/resource"
	"dropview/internal/scene"
)

var (
	// ErrSuperseded is the result of a load that a newer drop replaced before
	// it completed.
	ErrSuperseded = errors.New("session: load superseded by a newer drop")
	ErrClosed     = errors.New("session: closed")
)

// Loader loads a primary file against a resource map snapshot.
// *dispatch.Dispatcher implements it.
type Loader interface {
	Load(ctx context.Context, primary string, m resource.Map) (*scene.Result, error)
}

// Transition is the kind of state change a drop caused.
type Transition int

const (
	// Replace: the drop held a model file and became the new session.
	Replace Transition = iota
	// Augment: the drop held only assets and was merged into the session.
	Augment
)

func (t Transition) String() string {
	if t == Augment {
		return "augment"
	}
	return "replace"
}

// Outcome is what the sink receives when the current load finishes.
type Outcome struct {
	Generation uint64
	Primary    string
	Transition Transition
	Result     *scene.Result
	Err        error
}

// Sink receives outcomes of loads that were still current when they
// finished, in completion order. It is never called concurrently with itself.
// A sink may drop into its own session: the new outcome is queued and
// delivered after the sink returns. The load's Done channel is closed before
// its outcome is delivered.
type Sink func(Outcome)

// Load is one in-flight or finished load.
type Load struct {
	Generation uint64
	Primary    string
	Transition Transition

	done   chan struct{}
	res    *scene.Result
	err    error
	cancel context.CancelFunc
}

// Done is closed when the load has finished.
func (l *Load) Done() <-chan struct{} { return l.done }

// Wait blocks until the load finishes or ctx is done. A load replaced by a
// newer drop returns ErrSuperseded.
func (l *Load) Wait(ctx context.Context) (*scene.Result, error) {
	select {
	case <-l.done:
		return l.res, l.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Session holds the primary file and resource map across drops.
// Safe for concurrent use.
type Session struct {
	store  *blob.Store
	loader Loader
	sink   Sink
	log    *log.Logger

	mu        sync.Mutex
	primary   string
	resources resource.Map
	shadowed  []*blob.Handle // overridden by augments, revoked with the map
	gen       uint64
	current   *Load
	closed    bool

	deliverMu  sync.Mutex
	pending    []Outcome
	delivering bool
}

// Option configures a Session.
type Option func(*Session)

// WithSink sets the function current outcomes are delivered to.
func WithSink(fn Sink) Option {
	return func(s *Session) { s.sink = fn }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.log = l }
}

// New returns an empty session creating handles in store.
func New(store *blob.Store, loader Loader, opts ...Option) *Session {
	s := &Session{
		store:  store,
		loader: loader,
		log:    logging.Discard(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Drop handles one drop event.
//
// If any file is a model, the first one in drop order becomes the primary:
// the previous map is revoked, a fresh map is built from exactly the dropped
// files and a load starts. Otherwise the files are merged into the current
// map and the current primary is reloaded; with no primary yet this is a
// loaderr.KindUserInput error and nothing changes. An empty drop does
// nothing and returns (nil, nil).
//
// The map is fully updated before the load starts. Starting a load cancels
// the previous one, which then finishes with ErrSuperseded.
func (s *Session) Drop(ctx context.Context, files []blob.File) (*Load, error) {
	if len(files) == 0 {
		return nil, nil
	}
	model := ""
	for _, f := range files {
		if name := resource.Basename(f.Name); format.IsModel(name) {
			model = name
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	transition := Replace
	if model != "" {
		s.revokeLocked()
		s.resources = resource.Create(s.store, files)
		s.primary = model
	} else {
		if s.primary == "" {
			s.log.Warn("drop rejected", "files", len(files), "reason", "no model")
			return nil, loaderr.UserInput(loaderr.ErrNoModel)
		}
		transition = Augment
		additions := resource.Create(s.store, files)
		s.shadowed = append(s.shadowed, resource.Overridden(s.resources, additions)...)
		s.resources = resource.Merge(s.resources, additions)
	}

	s.gen++
	if s.current != nil {
		s.current.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	l := &Load{
		Generation: s.gen,
		Primary:    s.primary,
		Transition: transition,
		done:       make(chan struct{}),
		cancel:     cancel,
	}
	s.current = l
	s.log.Info("drop",
		"transition", transition,
		"primary", s.primary,
		"files", len(files),
		"resources", s.resources.Len(),
		"generation", l.Generation,
	)

	go s.run(loadCtx, l, s.resources)
	return l, nil
}

// DropAndWait is Drop followed by Wait.
func (s *Session) DropAndWait(ctx context.Context, files []blob.File) (*scene.Result, error) {
	l, err := s.Drop(ctx, files)
	if err != nil || l == nil {
		return nil, err
	}
	return l.Wait(ctx)
}

func (s *Session) run(ctx context.Context, l *Load, snapshot resource.Map) {
	res, err := s.loader.Load(ctx, l.Primary, snapshot)
	l.cancel()

	s.deliverMu.Lock()
	s.mu.Lock()
	stale := l.Generation != s.gen || s.closed
	s.mu.Unlock()

	if stale {
		l.res, l.err = nil, ErrSuperseded
		s.log.Debug("load discarded", "primary", l.Primary, "generation", l.Generation)
		close(l.done)
		s.deliverMu.Unlock()
		return
	}
	l.res, l.err = res, err
	if err != nil {
		s.log.Error("load failed", "primary", l.Primary, "generation", l.Generation, "err", err)
	}
	close(l.done)
	if s.sink == nil {
		s.deliverMu.Unlock()
		return
	}
	s.pending = append(s.pending, Outcome{
		Generation: l.Generation,
		Primary:    l.Primary,
		Transition: l.Transition,
		Result:     res,
		Err:        err,
	})
	s.deliverLocked()
}

// deliverLocked drains the pending outcomes into the sink with deliverMu
// released around each call. Only one goroutine drains at a time; others
// just enqueue. It returns with deliverMu unlocked.
func (s *Session) deliverLocked() {
	if s.delivering {
		s.deliverMu.Unlock()
		return
	}
	s.delivering = true
	for len(s.pending) > 0 {
		o := s.pending[0]
		s.pending = s.pending[1:]
		s.deliverMu.Unlock()
		s.sink(o)
		s.deliverMu.Lock()
	}
	s.delivering = false
	s.deliverMu.Unlock()
}

// revokeLocked releases the whole map plus every handle an augment shadowed.
func (s *Session) revokeLocked() {
	resource.RevokeAll(s.store, s.resources)
	for _, h := range s.shadowed {
		s.store.Revoke(h)
	}
	s.shadowed = nil
	s.resources = resource.Map{}
}

// Primary returns the current primary file name, or "" while empty.
func (s *Session) Primary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primary
}

// Resources returns the current resource map.
func (s *Session) Resources() resource.Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resources
}

// Generation returns the number of transitions so far.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Close cancels the current load and revokes every handle. Later drops
// fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.current != nil {
		s.current.cancel()
	}
	s.revokeLocked()
	s.primary = ""
}
