package batch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropview/internal/capture"
	"dropview/internal/loaderr"
	"dropview/internal/logging"
)

const triangleSTL = `solid tri
facet normal 0 0 1
 outer loop
  vertex 0 0 0
  vertex 1 0 0
  vertex 0 1 0
 endloop
endfacet
endsolid tri
`

const pyramidOBJ = `mtllib pyr.mtl
v 0 0 0
v 1 0 0
v 0 1 0
v 0 0 1
usemtl blue
f 1 2 3
f 1 2 4
f 1 3 4
f 2 3 4
`

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func fixture(t *testing.T) string {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "tri", "tri.stl"), triangleSTL)
	write(t, filepath.Join(dir, "pyr", "pyr.obj"), pyramidOBJ)
	write(t, filepath.Join(dir, "pyr", "materials", "pyr.mtl"), "newmtl blue\nKd 0 0 1\n")
	write(t, filepath.Join(dir, "loose.stl"), triangleSTL)
	write(t, filepath.Join(dir, "notes.txt"), "not a model")
	write(t, filepath.Join(dir, "junk", "readme.txt"), "no model here")
	write(t, filepath.Join(dir, "bad", "broken.glb"), "not a glb")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0755))
	return dir
}

func TestDiscover(t *testing.T) {
	dir := fixture(t)
	jobs, err := Discover(dir)
	require.NoError(t, err)

	var names []string
	for _, j := range jobs {
		names = append(names, j.Name)
	}
	assert.Equal(t, []string{"bad", "junk", "loose", "pyr", "tri"}, names)
	assert.Len(t, jobs[3].Paths, 2)
}

func TestDiscoverMissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	dir := fixture(t)
	out := t.TempDir()
	jobs, err := Discover(dir)
	require.NoError(t, err)

	opts := capture.DefaultOptions(16)
	opts.Format = capture.PNG
	results := Run(context.Background(), Config{
		OutputDir: out,
		Capture:   opts,
		Workers:   2,
		Log:       logging.Discard(),
	}, jobs)
	require.Len(t, results, len(jobs))

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}

	assert.Equal(t, loaderr.KindParse, byName["bad"].Kind)
	assert.Equal(t, loaderr.KindUserInput, byName["junk"].Kind)

	pyr := byName["pyr"]
	require.True(t, pyr.Success, pyr.Error)
	assert.Equal(t, "pyr.obj", pyr.Primary)
	assert.Equal(t, "pyr.png", pyr.Image)
	assert.Equal(t, 4, pyr.Triangles)
	assert.FileExists(t, filepath.Join(out, "pyr.png"))

	assert.True(t, byName["tri"].Success)
	assert.True(t, byName["loose"].Success)
	assert.FileExists(t, filepath.Join(out, "loose.png"))
}

func TestRunCanceled(t *testing.T) {
	dir := fixture(t)
	jobs, err := Discover(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := Run(ctx, Config{OutputDir: t.TempDir(), Capture: capture.DefaultOptions(8), Log: logging.Discard()}, jobs)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.NotEmpty(t, r.Error)
	}
}

func TestWriteManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	err := WriteManifest(path, []Result{
		{Name: "tri", Primary: "tri.stl", Image: "tri.webp", Triangles: 1, Success: true},
		{Name: "junk", Error: "no model", Kind: loaderr.KindUserInput},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []ManifestEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "tri.webp", entries[0].Image)
	assert.Empty(t, entries[0].ErrorKind)
	assert.Equal(t, "user input", entries[1].ErrorKind)
}
