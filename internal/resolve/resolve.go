// Package resolve rewrites references found inside model files so they load
// from the resource map instead of the network or disk.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"dropview/internal/blob"
	"dropview/internal/loaderr"
	"dropview/internal/resource"
)

var errNoFallback = errors.New("not in resource map and no fallback filesystem")

// Resolver resolves references against a fixed snapshot of a resource map.
// It only reads the map; build a new Resolver for every load.
type Resolver struct {
	resources resource.Map
	store     *blob.Store
	fallback  fs.FS
}

// New returns a resolver over m. fallback is consulted for references that
// are not in m and may be nil, in which case such references fail.
func New(m resource.Map, store *blob.Store, fallback fs.FS) *Resolver {
	return &Resolver{resources: m, store: store, fallback: fallback}
}

// Resolve returns the handle address for the bare name of requested, or
// requested unchanged when the name is not in the map.
func (r *Resolver) Resolve(requested string) string {
	if h, ok := r.resources.Get(resource.Basename(requested)); ok {
		return h.Address
	}
	return requested
}

// Lookup returns the handle a reference resolves to, if any.
func (r *Resolver) Lookup(requested string) (*blob.Handle, bool) {
	return r.resources.Get(resource.Basename(requested))
}

// Resources returns the snapshot the resolver reads from.
func (r *Resolver) Resources() resource.Map {
	return r.resources
}

// Fetch resolves requested and returns its bytes. Failures are
// loaderr.KindReferenceMissing.
func (r *Resolver) Fetch(ctx context.Context, requested string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr := r.Resolve(requested)
	if blob.IsAddress(addr) {
		data, err := r.store.Open(addr)
		if err != nil {
			return nil, loaderr.ReferenceMissing(requested, err)
		}
		return data, nil
	}
	if r.fallback == nil {
		return nil, loaderr.ReferenceMissing(requested, errNoFallback)
	}
	name, ok := fallbackPath(addr)
	if !ok {
		return nil, loaderr.ReferenceMissing(requested, fmt.Errorf("invalid path %q", addr))
	}
	data, err := fs.ReadFile(r.fallback, name)
	if err != nil {
		return nil, loaderr.ReferenceMissing(requested, err)
	}
	return data, nil
}

// fallbackPath turns a reference into an io/fs path: slash separated,
// unrooted, cleaned.
func fallbackPath(ref string) (string, bool) {
	p := strings.ReplaceAll(ref, `\`, "/")
	p = strings.TrimLeft(path.Clean("/"+p), "/")
	if p == "" {
		return "", false
	}
	return p, fs.ValidPath(p)
}
