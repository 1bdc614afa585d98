// Package resource manages the mapping from bare filenames to blob handles
// for every file currently in play.
package resource

import (
	"strings"

	"dropview/internal/blob"
)

// DuplicateNamePolicy decides what Create does when two files share a name.
type DuplicateNamePolicy int

const (
	// LastWriteWins keeps the later file's handle. The earlier handle is
	// dropped from the map without being revoked.
	LastWriteWins DuplicateNamePolicy = iota
)

// MergeOverridePolicy decides what Merge does with handles it shadows.
type MergeOverridePolicy int

const (
	// MergeKeepsOverridden leaves shadowed handles unrevoked; callers that
	// care use Overridden and revoke them.
	MergeKeepsOverridden MergeOverridePolicy = iota
)

const (
	DuplicatePolicy = LastWriteWins
	MergePolicy     = MergeKeepsOverridden
)

// Basename strips every directory component from p, accepting both forward
// and backward slashes.
func Basename(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Map is an insertion-ordered mapping from bare filename to handle.
// A Map is never mutated after it is built; every operation returns a new one.
type Map struct {
	keys    []string
	entries map[string]*blob.Handle
}

func newMap(n int) Map {
	return Map{keys: make([]string, 0, n), entries: make(map[string]*blob.Handle, n)}
}

func (m *Map) set(name string, h *blob.Handle) {
	if _, ok := m.entries[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.entries[name] = h
}

// Create allocates one handle per file, keyed by bare filename.
func Create(store *blob.Store, files []blob.File) Map {
	m := newMap(len(files))
	for _, f := range files {
		f.Name = Basename(f.Name)
		h := store.Create(f)
		// DuplicatePolicy: set overwrites.
		m.set(f.Name, h)
	}
	return m
}

// Merge returns base with additions layered on top. Shadowed handles are not
// revoked (MergePolicy).
func Merge(base, additions Map) Map {
	m := newMap(base.Len() + additions.Len())
	for _, k := range base.keys {
		m.set(k, base.entries[k])
	}
	for _, k := range additions.keys {
		m.set(k, additions.entries[k])
	}
	return m
}

// Overridden returns the handles of base that Merge(base, additions) would
// shadow, in base order.
func Overridden(base, additions Map) []*blob.Handle {
	var out []*blob.Handle
	for _, k := range base.keys {
		if nh, ok := additions.entries[k]; ok && nh != base.entries[k] {
			out = append(out, base.entries[k])
		}
	}
	return out
}

// RevokeAll releases every handle in m. Calling it twice is harmless.
func RevokeAll(store *blob.Store, m Map) {
	for _, k := range m.keys {
		store.Revoke(m.entries[k])
	}
}

// Get returns the handle for a bare name.
func (m Map) Get(name string) (*blob.Handle, bool) {
	h, ok := m.entries[name]
	return h, ok
}

func (m Map) Has(name string) bool {
	_, ok := m.entries[name]
	return ok
}

func (m Map) Len() int { return len(m.keys) }

// Keys returns the names in insertion order.
func (m Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Handles returns the handles in key order.
func (m Map) Handles() []*blob.Handle {
	out := make([]*blob.Handle, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.entries[k]
	}
	return out
}

// Find returns the first key, in insertion order, for which match is true.
func (m Map) Find(match func(name string) bool) (string, bool) {
	for _, k := range m.keys {
		if match(k) {
			return k, true
		}
	}
	return "", false
}
