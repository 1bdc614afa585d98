package postprocess

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// Frame crops img to its visible pixels and centres the result on a
// size×size transparent canvas, leaving margin (a fraction of size) clear
// on the longest side. An image with nothing visible comes back as an empty
// canvas.
func Frame(img *image.NRGBA, size int, margin float64) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
	box, ok := OpaqueBounds(img)
	if !ok || size <= 0 {
		return canvas
	}
	if margin < 0 {
		margin = 0
	}
	if margin > 0.45 {
		margin = 0.45
	}

	fit := float64(size) * (1 - 2*margin)
	longest := box.Dx()
	if box.Dy() > longest {
		longest = box.Dy()
	}
	scale := fit / float64(longest)
	w := max(int(float64(box.Dx())*scale+0.5), 1)
	h := max(int(float64(box.Dy())*scale+0.5), 1)

	dst := image.Rect(0, 0, w, h).Add(image.Pt((size-w)/2, (size-h)/2))
	draw.CatmullRom.Scale(canvas, dst, img, box, draw.Src, nil)
	return canvas
}

// OpaqueBounds is the smallest rectangle holding every pixel with non-zero
// alpha.
func OpaqueBounds(img *image.NRGBA) (image.Rectangle, bool) {
	b := img.Bounds()
	box := image.Rectangle{Min: b.Max, Max: b.Min}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			if row[x*4+3] == 0 {
				continue
			}
			px := b.Min.X + x
			box.Min.X = min(box.Min.X, px)
			box.Min.Y = min(box.Min.Y, y)
			box.Max.X = max(box.Max.X, px+1)
			box.Max.Y = max(box.Max.Y, y+1)
		}
	}
	if box.Empty() {
		return image.Rectangle{}, false
	}
	return box, true
}

// Flatten composites img over an opaque background colour.
func Flatten(img *image.NRGBA, bg color.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	bg.A = 255
	draw.Draw(out, out.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Over)
	return out
}

// ParseBackground reads "transparent" or a #rrggbb colour. ok is false for
// a transparent background.
func ParseBackground(s string) (c color.NRGBA, ok bool, err error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "transparent" || s == "none" {
		return color.NRGBA{}, false, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return color.NRGBA{}, false, fmt.Errorf("background %q: want #rrggbb or transparent", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, false, fmt.Errorf("background %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true, nil
}
