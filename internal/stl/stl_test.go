package stl

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"dropview/internal/mathutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const asciiTri = `solid tri
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 0 1 0
    endloop
  endfacet
  facet normal 0 0 0
    outer loop
      vertex 0 0 0
      vertex 0 1 0
      vertex 1 0 0
    endloop
  endfacet
endsolid tri
`

func binarySTL(header string, tris ...Triangle) []byte {
	buf := make([]byte, headerSize+4+facetSize*len(tris))
	copy(buf, header)
	binary.LittleEndian.PutUint32(buf[headerSize:], uint32(len(tris)))
	off := headerSize + 4
	put := func(v mathutil.Vec3) {
		for k := 0; k < 3; k++ {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v[k])))
			off += 4
		}
	}
	for _, t := range tris {
		put(t.Normal)
		for _, v := range t.V {
			put(v)
		}
		off += 2
	}
	return buf
}

var unitTri = Triangle{
	Normal: mathutil.Vec3{0, 0, 1},
	V:      [3]mathutil.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
}

func TestParseASCII(t *testing.T) {
	g, err := Parse(context.Background(), "tri.stl", []byte(asciiTri))
	require.NoError(t, err)
	assert.False(t, g.Binary)
	assert.Equal(t, "tri", g.Name)
	require.Len(t, g.Triangles, 2)
	assert.Equal(t, unitTri, g.Triangles[0])
}

func TestParseBinary(t *testing.T) {
	g, err := Parse(context.Background(), "tri.stl", binarySTL("exported by tool", unitTri, unitTri))
	require.NoError(t, err)
	assert.True(t, g.Binary)
	assert.Equal(t, "tri.stl", g.Name)
	require.Len(t, g.Triangles, 2)
	assert.Equal(t, unitTri, g.Triangles[1])
}

func TestBinaryWithSolidHeader(t *testing.T) {
	data := binarySTL("solid but actually binary", unitTri)
	assert.True(t, IsBinary(data))
	g, err := Parse(context.Background(), "x.stl", data)
	require.NoError(t, err)
	assert.Len(t, g.Triangles, 1)
}

func TestParseErrors(t *testing.T) {
	tests := map[string][]byte{
		"short binary":     []byte("tiny"),
		"truncated binary": binarySTL("h", unitTri)[:100],
		"two vertices":     []byte("solid x\nfacet normal 0 0 1\nouter loop\nvertex 0 0 0\nvertex 1 0 0\nendloop\nendfacet\nendsolid\n"),
		"bad number":       []byte("solid x\nfacet normal 0 0 1\nouter loop\nvertex 0 zero 0\n"),
		"unterminated":     []byte("solid x\nfacet normal 0 0 1\nouter loop\nvertex 0 0 0\n"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(context.Background(), "bad.stl", data)
			assert.Error(t, err)
		})
	}
}

func TestMesh(t *testing.T) {
	g, err := Parse(context.Background(), "tri.stl", []byte(asciiTri))
	require.NoError(t, err)
	m := g.Mesh()
	require.NoError(t, m.Validate())
	assert.Equal(t, 2, m.Triangles())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, m.Indices)
	// The second facet has a zero normal, recomputed from winding.
	assert.Equal(t, mathutil.Vec3{0, 0, -1}, m.Normals[3])
	assert.Nil(t, m.Material)
}
