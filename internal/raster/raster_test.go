package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropview/internal/mathutil"
	"dropview/internal/scene"
)

func squareScene(mat *scene.Material) *scene.Result {
	m := &scene.Mesh{
		Name:      "square",
		Positions: []mathutil.Vec3{{-1, -1, 0}, {1, -1, 0}, {1, 1, 0}, {-1, 1, 0}},
		UVs:       [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Indices:   []int{0, 1, 2, 0, 2, 3},
		Material:  mat,
	}
	m.ComputeNormals()
	return &scene.Result{Root: scene.NewGroup("root", scene.NewNode("square", m))}
}

func pixel(img *image.NRGBA, x, y int) color.NRGBA {
	return img.NRGBAAt(x, y)
}

func TestRenderOpaque(t *testing.T) {
	img := Render(squareScene(scene.NeutralMaterial()), DefaultOptions(64))
	require.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())

	center := pixel(img, 32, 32)
	assert.Equal(t, uint8(255), center.A)
	assert.Greater(t, center.R, uint8(0))
	assert.Equal(t, uint8(0), pixel(img, 0, 0).A)
}

func TestRenderSupersample(t *testing.T) {
	opts := DefaultOptions(32)
	opts.Supersample = 3
	img := Render(squareScene(nil), opts)
	assert.Equal(t, 96, img.Bounds().Dx())
}

func TestRenderTranslucent(t *testing.T) {
	mat := scene.NeutralMaterial()
	mat.Opacity = 0.5
	img := Render(squareScene(mat), DefaultOptions(64))
	assert.Equal(t, uint8(128), pixel(img, 32, 32).A)
}

func TestRenderEmptyScene(t *testing.T) {
	img := Render(&scene.Result{Root: scene.NewGroup("empty")}, DefaultOptions(16))
	for i := 3; i < len(img.Pix); i += 4 {
		require.Zero(t, img.Pix[i])
	}
}

func TestRenderTexture(t *testing.T) {
	tex := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(tex.Pix); i += 4 {
		tex.Pix[i], tex.Pix[i+3] = 255, 255 // red
	}
	mat := scene.DefaultMaterial()
	mat.Diffuse = color.NRGBA{255, 255, 255, 255}
	mat.DiffuseMap = &scene.Texture{Ref: "red.png", Image: tex}

	img := Render(squareScene(mat), DefaultOptions(64))
	c := pixel(img, 32, 32)
	assert.Greater(t, c.R, c.G)
	assert.Greater(t, c.R, c.B)
}

func TestSampleTextureBottomUp(t *testing.T) {
	tex := image.NewNRGBA(image.Rect(0, 0, 1, 2))
	tex.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255}) // top row
	tex.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255}) // bottom row

	r, _, b, _ := SampleTexture(tex, 0, 0)
	assert.Equal(t, uint8(0), r)
	assert.Equal(t, uint8(255), b)

	r, _, _, _ = SampleTexture(tex, 0, 0.999)
	assert.Greater(t, r, uint8(200))
}

func TestPreset(t *testing.T) {
	for _, name := range []string{"studio", "sunset", "city", "night", "forest", ""} {
		lc, err := Preset(name)
		require.NoError(t, err, name)
		assert.Greater(t, lc.ComputeShade(mathutil.Vec3{0, 1, 0}), 0.0, name)
	}
	_, err := Preset("moon")
	assert.Error(t, err)
}
