// Package blob provides short-lived, revocable handles to file bytes.
//
// A Store hands out one Handle per file. Each handle has an address that can be
// passed around like a URL and read back with Open until the handle is revoked.
// Reading a revoked handle fails with ErrRevoked instead of returning stale bytes.
package blob

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

// Scheme prefixes every address minted by a Store.
const Scheme = "blob:dropview/"

var (
	ErrRevoked        = errors.New("blob: handle revoked")
	ErrUnknownAddress = errors.New("blob: unknown address")
)

// File is a raw dropped file: a bare name and its bytes.
type File struct {
	Name string
	Data []byte
}

// ReadFile reads a file from disk. The name keeps only the base name.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("blob: read %s: %w", path, err)
	}
	return File{Name: filepath.Base(path), Data: data}, nil
}

// Handle is an opaque reference to a file's bytes.
type Handle struct {
	Name    string
	Address string
	MIME    string
	Size    int
}

type entry struct {
	data    []byte
	revoked bool
}

// Store owns handle bytes until they are revoked. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	live    int
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Create allocates a new handle for f.
func (s *Store) Create(f File) *Handle {
	h := &Handle{
		Name:    f.Name,
		Address: Scheme + uuid.NewString(),
		MIME:    sniff(f.Data),
		Size:    len(f.Data),
	}

	s.mu.Lock()
	s.entries[h.Address] = &entry{data: f.Data}
	s.live++
	s.mu.Unlock()
	return h
}

// Revoke releases the bytes behind h. Revoking a nil or already revoked
// handle is a no-op.
func (s *Store) Revoke(h *Handle) {
	if h == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[h.Address]
	if !ok || e.revoked {
		return
	}
	// Tombstone stays so later reads report ErrRevoked rather than ErrUnknownAddress.
	e.revoked = true
	e.data = nil
	s.live--
}

// Open returns the bytes behind address.
func (s *Store) Open(address string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[address]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAddress, address)
	}
	if e.revoked {
		return nil, fmt.Errorf("%w: %s", ErrRevoked, address)
	}
	return e.data, nil
}

// IsLive reports whether address names an unrevoked handle.
func (s *Store) IsLive(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[address]
	return ok && !e.revoked
}

// Live returns the number of unrevoked handles.
func (s *Store) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// IsAddress reports whether addr was minted by a Store.
func IsAddress(addr string) bool {
	return strings.HasPrefix(addr, Scheme)
}

func sniff(data []byte) string {
	head := data
	if len(head) > 262 {
		head = head[:262]
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}
