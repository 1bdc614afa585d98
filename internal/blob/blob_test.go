package blob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOpenRevoke(t *testing.T) {
	s := NewStore()
	h := s.Create(File{Name: "a.obj", Data: []byte("v 0 0 0\n")})

	assert.True(t, IsAddress(h.Address))
	assert.Equal(t, "a.obj", h.Name)
	assert.Equal(t, 8, h.Size)
	assert.Equal(t, 1, s.Live())

	data, err := s.Open(h.Address)
	require.NoError(t, err)
	assert.Equal(t, "v 0 0 0\n", string(data))

	s.Revoke(h)
	assert.Equal(t, 0, s.Live())
	assert.False(t, s.IsLive(h.Address))

	_, err = s.Open(h.Address)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestRevokeTwice(t *testing.T) {
	s := NewStore()
	h := s.Create(File{Name: "a.png"})
	assert.NotPanics(t, func() {
		s.Revoke(h)
		s.Revoke(h)
		s.Revoke(nil)
	})
	assert.Equal(t, 0, s.Live())
}

func TestAddressesAreUnique(t *testing.T) {
	s := NewStore()
	a := s.Create(File{Name: "same.png"})
	b := s.Create(File{Name: "same.png"})
	assert.NotEqual(t, a.Address, b.Address)
	assert.Equal(t, 2, s.Live())
}

func TestOpenUnknown(t *testing.T) {
	_, err := NewStore().Open("blob:dropview/nope")
	assert.ErrorIs(t, err, ErrUnknownAddress)
}

func TestSniffMIME(t *testing.T) {
	s := NewStore()
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	assert.Equal(t, "image/png", s.Create(File{Name: "t.png", Data: png}).MIME)
	assert.Equal(t, "application/octet-stream", s.Create(File{Name: "m.obj", Data: []byte("o x")}).MIME)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chair.mtl")
	require.NoError(t, os.WriteFile(path, []byte("newmtl a"), 0o644))

	f, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "chair.mtl", f.Name)
	assert.Equal(t, "newmtl a", string(f.Data))

	_, err = ReadFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
