package texture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/ftrvxmtrx/tga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	img, err := Decode("red.png", pngBytes(t, color.NRGBA{R: 255, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.NRGBAAt(1, 1))

	_, err = Decode("junk.png", []byte("not an image"))
	assert.Error(t, err)
	_, err = Decode("empty.png", nil)
	assert.Error(t, err)
}

func TestDecodeFormats(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+2], src.Pix[i+3] = 200, 40, 255
	}
	encode := func(enc func(*bytes.Buffer) error) []byte {
		var buf bytes.Buffer
		require.NoError(t, enc(&buf))
		return buf.Bytes()
	}
	cases := map[string][]byte{
		"wood.png":  encode(func(b *bytes.Buffer) error { return png.Encode(b, src) }),
		"wood.jpg":  encode(func(b *bytes.Buffer) error { return jpeg.Encode(b, src, nil) }),
		"wood.gif":  encode(func(b *bytes.Buffer) error { return gif.Encode(b, src, nil) }),
		"wood.tga":  encode(func(b *bytes.Buffer) error { return tga.Encode(b, src) }),
		"wood.tex":  encode(func(b *bytes.Buffer) error { return tga.Encode(b, src) }),
		"wood.JPEG": encode(func(b *bytes.Buffer) error { return jpeg.Encode(b, src, nil) }),
	}
	for name, data := range cases {
		img, err := Decode(name, data)
		require.NoError(t, err, name)
		assert.Equal(t, src.Bounds(), img.Bounds(), name)
		assert.InDelta(t, 200, int(img.NRGBAAt(1, 1).R), 8, name)
	}
}

// A PNG named like another format is still decoded by its content.
func TestDecodeSniffsContent(t *testing.T) {
	img, err := Decode("textures/wood.bmp", pngBytes(t, color.NRGBA{B: 255, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, img.NRGBAAt(0, 0))
}

func TestToNRGBAGray(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 1, 1))
	g.Pix[0] = 100
	n := toNRGBA(g)
	assert.Equal(t, color.NRGBA{R: 100, G: 100, B: 100, A: 255}, n.NRGBAAt(0, 0))
}

type fakeFetcher struct {
	files map[string][]byte
	calls int
}

func (f *fakeFetcher) Resolve(ref string) string { return "addr:" + filepath.Base(ref) }

func (f *fakeFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	f.calls++
	data, ok := f.files[filepath.Base(ref)]
	if !ok {
		return nil, errors.New("missing")
	}
	return data, nil
}

func TestCacheDecodesOnce(t *testing.T) {
	f := &fakeFetcher{files: map[string][]byte{"wood.png": pngBytes(t, color.NRGBA{G: 255, A: 255})}}
	c := NewCache(f)
	ctx := context.Background()

	a, err := c.Load(ctx, "wood.png")
	require.NoError(t, err)
	b, err := c.Load(ctx, "textures/wood.png")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, "addr:wood.png", a.Address)
	assert.Equal(t, "wood.png", a.Ref)

	_, err = c.Load(ctx, "stone.png")
	assert.Error(t, err)
	_, err = c.Load(ctx, "stone.png")
	assert.Error(t, err)
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, 2, c.Len())
}

func TestIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "textures"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "textures", "Wood.PNG"), []byte("wood"), 0o644))

	idx, err := BuildIndex(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())

	p, ok := idx.ResolvePath(`..\maps\wood.png`)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "a", "textures", "Wood.PNG"), p)

	data, err := fs.ReadFile(idx, "other/wood.png")
	require.NoError(t, err)
	assert.Equal(t, "wood", string(data))

	_, err = idx.Open("nope.png")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
