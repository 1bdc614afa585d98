package obj

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"dropview/internal/mathutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cube = `# two faces of a cube
mtllib cube.mtl
o cube
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 0 0 1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 -1
usemtl red
f 1/1/1 2/2/1 3/3/1 4/4/1
usemtl blue
f -5 -4 -1
`

const cubeMTL = `newmtl red
Kd 1 0 0
Ns 10
d 0.5
map_Kd -s 1 1 1 textures\red.png

newmtl blue
Kd 0 0 1
Tr 0.25
`

type mapFetcher map[string][]byte

func (m mapFetcher) Resolve(ref string) string { return ref }

func (m mapFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	if d, ok := m[ref]; ok {
		return d, nil
	}
	return nil, errors.New("not found")
}

func redPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestParseMaterials(t *testing.T) {
	f := mapFetcher{`textures\red.png`: redPNG(t)}
	lib, err := ParseMaterials(context.Background(), "cube.mtl", []byte(cubeMTL), f)
	require.NoError(t, err)

	assert.Equal(t, []string{"red", "blue"}, lib.Order)
	red, ok := lib.Get("red")
	require.True(t, ok)
	assert.Equal(t, uint8(255), red.Diffuse.R)
	assert.Equal(t, 0.5, red.Opacity)
	assert.Equal(t, 10.0, red.Shininess)
	require.NotNil(t, red.DiffuseMap)
	assert.Equal(t, `textures\red.png`, red.DiffuseMap.Ref)

	blue, _ := lib.Get("blue")
	assert.InDelta(t, 0.75, blue.Opacity, 1e-9)
	assert.Nil(t, blue.DiffuseMap)
	assert.Empty(t, lib.Warnings)
}

func TestParseMaterialsMissingTextureIsWarning(t *testing.T) {
	lib, err := ParseMaterials(context.Background(), "cube.mtl", []byte(cubeMTL), mapFetcher{})
	require.NoError(t, err)
	red, _ := lib.Get("red")
	assert.Nil(t, red.DiffuseMap)
	require.Len(t, lib.Warnings, 1)
	assert.Contains(t, lib.Warnings[0], "red.png")
}

func TestParseMaterialsErrors(t *testing.T) {
	_, err := ParseMaterials(context.Background(), "bad.mtl", []byte("Kd 1 1 1\n"), mapFetcher{})
	assert.ErrorContains(t, err, "line 1")

	_, err = ParseMaterials(context.Background(), "bad.mtl", []byte("newmtl a\nKd x y z\n"), mapFetcher{})
	assert.ErrorContains(t, err, "line 2")
}

func TestMapFilename(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"a.png"}, "a.png"},
		{[]string{"-clamp", "on", "a.png"}, "a.png"},
		{[]string{"-o", "0", "0", "0", "-bm", "1", "my", "file.png"}, "my file.png"},
	}
	for _, tt := range tests {
		got, err := mapFilename(tt.args)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := mapFilename([]string{"-clamp", "on"})
	assert.Error(t, err)
}

func TestParseWithLibrary(t *testing.T) {
	ctx := context.Background()
	lib, err := ParseMaterials(ctx, "cube.mtl", []byte(cubeMTL), mapFetcher{`textures\red.png`: redPNG(t)})
	require.NoError(t, err)

	res, err := Parse(ctx, "cube.obj", []byte(cube), lib)
	require.NoError(t, err)
	assert.Empty(t, res.Animations)
	assert.NotNil(t, res.Animations)

	require.Len(t, res.Root.Children, 1)
	node := res.Root.Children[0]
	assert.Equal(t, "cube", node.Name)
	require.Len(t, node.Meshes, 2)

	quad := node.Meshes[0]
	assert.Equal(t, "red", quad.Material.Name)
	assert.Equal(t, []int{0, 1, 2, 0, 2, 3}, quad.Indices)
	assert.Len(t, quad.UVs, 4)
	assert.Equal(t, mathutil.Vec3{0, 0, -1}, quad.Normals[0])
	require.NoError(t, quad.Validate())

	tri := node.Meshes[1]
	assert.Equal(t, "blue", tri.Material.Name)
	assert.Equal(t, []mathutil.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}}, tri.Positions)
	assert.Nil(t, tri.UVs)
	assert.Equal(t, 3, res.Triangles())
}

func TestParseWithoutLibraryUsesDefault(t *testing.T) {
	res, err := Parse(context.Background(), "cube.obj", []byte(cube), nil)
	require.NoError(t, err)
	mats := res.Materials()
	require.Len(t, mats, 1)
	assert.True(t, mats[0].Default)
	assert.Empty(t, res.Warnings)
}

func TestParseMissingMaterialWarns(t *testing.T) {
	lib := &Library{Name: "other.mtl"}
	res, err := Parse(context.Background(), "cube.obj", []byte(cube), lib)
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 2)
	for _, m := range res.Materials() {
		assert.True(t, m.Default)
	}
}

func TestDecode(t *testing.T) {
	dec, err := Decode(context.Background(), "cube.obj", []byte(cube))
	require.NoError(t, err)
	assert.Equal(t, []string{"cube.mtl"}, dec.Libraries)
	require.Len(t, dec.Objects, 1)
	assert.Len(t, dec.Objects[0].Faces, 2)
}

func TestDecodeImplicitObjectAndContinuation(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 \\\n 3\nl 1 2\n"
	dec, err := Decode(context.Background(), "tri.obj", []byte(src))
	require.NoError(t, err)
	require.Len(t, dec.Objects, 1)
	assert.Equal(t, "tri.obj", dec.Objects[0].Name)
	assert.Equal(t, []int{0, 1, 2}, dec.Objects[0].Faces[0].Vertices)
	assert.Equal(t, []string{"obj: statement not supported: l"}, dec.Warnings)
}

func TestDecodeErrors(t *testing.T) {
	tests := map[string]string{
		"zero index":   "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n",
		"out of range": "v 0 0 0\nf 1 2 3\n",
		"short face":   "v 0 0 0\nv 1 0 0\nf 1 2\n",
		"bad vertex":   "v 0 zero 0\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(context.Background(), "bad.obj", []byte(src))
			assert.Error(t, err)
		})
	}
}

func TestParseCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Parse(ctx, "cube.obj", []byte(cube), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
