// Package dispatch selects the parser for a primary model file, drives it
// against one resource map snapshot, and normalizes the output into a
// scene.Result.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/charmbracelet/log"

	"dropview/internal/blob"
	"dropview/internal/fbx"
	"dropview/internal/format"
	"dropview/internal/gltf"
	"dropview/internal/loaderr"
	"dropview/internal/logging"
	"dropview/internal/obj"
	"dropview/internal/resolve"
	"dropview/internal/resource"
	"dropview/internal/scene"
	"dropview/internal/stl"
	"dropview/internal/texture"
)

// SceneParser parses a format that references other files on its own.
type SceneParser func(ctx context.Context, name string, data []byte, f texture.Fetcher) (*scene.Result, error)

// Parsers is the dispatch table. Every entry receives the per-load resolver
// where the format has references to follow.
type Parsers struct {
	OBJ  func(ctx context.Context, name string, data []byte, lib *obj.Library) (*scene.Result, error)
	MTL  func(ctx context.Context, name string, data []byte, f texture.Fetcher) (*obj.Library, error)
	GLTF SceneParser
	FBX  SceneParser
	STL  func(ctx context.Context, name string, data []byte) (*stl.Geometry, error)
}

// DefaultParsers returns the module's own parsers.
func DefaultParsers() Parsers {
	return Parsers{
		OBJ:  obj.Parse,
		MTL:  obj.ParseMaterials,
		GLTF: gltf.Parse,
		FBX:  fbx.Parse,
		STL:  stl.Parse,
	}
}

// Dispatcher loads primary files. It never mutates the maps it is given.
type Dispatcher struct {
	store    *blob.Store
	fallback fs.FS
	parsers  Parsers
	log      *log.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithFallback sets the filesystem consulted for references that are not in
// the resource map.
func WithFallback(fsys fs.FS) Option {
	return func(d *Dispatcher) { d.fallback = fsys }
}

// WithParsers replaces the dispatch table. Nil entries keep the defaults.
func WithParsers(p Parsers) Option {
	return func(d *Dispatcher) {
		if p.OBJ != nil {
			d.parsers.OBJ = p.OBJ
		}
		if p.MTL != nil {
			d.parsers.MTL = p.MTL
		}
		if p.GLTF != nil {
			d.parsers.GLTF = p.GLTF
		}
		if p.FBX != nil {
			d.parsers.FBX = p.FBX
		}
		if p.STL != nil {
			d.parsers.STL = p.STL
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// New returns a dispatcher reading handles from store.
func New(store *blob.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:   store,
		parsers: DefaultParsers(),
		log:     logging.Discard(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Load parses primary, which must be a key of m. All references the parser
// follows are resolved against m through one resolver built for this call.
//
// Failures are *loaderr.Error values: InvariantViolation when primary is not
// a loadable model in m, ReferenceMissing for unresolved references, Parse for
// everything the parser rejects. Context errors are returned as they are.
func (d *Dispatcher) Load(ctx context.Context, primary string, m resource.Map) (*scene.Result, error) {
	h, ok := m.Get(primary)
	if !ok {
		return nil, loaderr.InvariantViolation(primary, errors.New("primary file is not in the resource map"))
	}
	c := format.Classify(primary)
	if c.Kind != format.Model {
		return nil, loaderr.InvariantViolation(primary, fmt.Errorf("not a model file (%s)", c))
	}
	data, err := d.store.Open(h.Address)
	if err != nil {
		return nil, loaderr.InvariantViolation(primary, err)
	}

	start := time.Now()
	r := resolve.New(m, d.store, d.fallback)
	d.log.Debug("dispatch", "file", primary, "format", c.Format, "resources", m.Len())

	var res *scene.Result
	switch c.Format {
	case format.OBJ:
		res, err = d.loadOBJ(ctx, primary, data, r)
	case format.GLTFBinary, format.GLTFText:
		res, err = d.parsers.GLTF(ctx, primary, data, r)
	case format.FBX:
		res, err = d.parsers.FBX(ctx, primary, data, r)
	case format.STL:
		res, err = d.loadSTL(ctx, primary, data)
	default:
		return nil, loaderr.InvariantViolation(primary, fmt.Errorf("no parser for %s", c.Format))
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		err = classify(primary, err)
		d.log.Debug("load failed", "file", primary, "err", err)
		return nil, err
	}
	if res == nil || res.Root == nil {
		return nil, loaderr.Parse(primary, errors.New("parser returned no scene"))
	}
	if res.Animations == nil {
		res.Animations = []scene.Clip{}
	}

	d.log.Info("loaded",
		"file", primary,
		"format", c.Format,
		"meshes", len(res.Renderables()),
		"triangles", res.Triangles(),
		"animations", len(res.Animations),
		"took", time.Since(start).Round(time.Millisecond),
	)
	for _, w := range res.Warnings {
		d.log.Warn(w, "file", primary)
	}
	return res, nil
}

// loadOBJ pairs the geometry with the first material library in the map,
// whatever its name. The library is parsed before the geometry.
func (d *Dispatcher) loadOBJ(ctx context.Context, name string, data []byte, r *resolve.Resolver) (*scene.Result, error) {
	var lib *obj.Library
	if key, ok := r.Resources().Find(format.IsMaterialLibrary); ok {
		mdata, err := r.Fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		lib, err = d.parsers.MTL(ctx, key, mdata, r)
		if err != nil {
			return nil, loaderr.Parse(key, err)
		}
		d.log.Debug("paired material library", "file", name, "mtl", key, "materials", len(lib.Order))
	}
	res, err := d.parsers.OBJ(ctx, name, data, lib)
	if err != nil {
		return nil, err
	}
	res.Animations = []scene.Clip{}
	return res, nil
}

// loadSTL wraps the geometry in one node with the neutral material.
func (d *Dispatcher) loadSTL(ctx context.Context, name string, data []byte) (*scene.Result, error) {
	g, err := d.parsers.STL(ctx, name, data)
	if err != nil {
		return nil, err
	}
	mesh := g.Mesh()
	mesh.Material = scene.NeutralMaterial()
	nodeName := g.Name
	if nodeName == "" {
		nodeName = "mesh"
	}
	return &scene.Result{
		Root:       scene.NewGroup(name, scene.NewNode(nodeName, mesh)),
		Animations: []scene.Clip{},
	}, nil
}

// classify gives untyped parser failures the Parse kind.
func classify(name string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if loaderr.KindOf(err) != loaderr.KindNone {
		return err
	}
	return loaderr.Parse(name, err)
}
