// Package postprocess turns raw supersampled renders into finished captures.
package postprocess

import (
	"image"

	"golang.org/x/image/draw"
)

// Downsample shrinks a supersampled render to size×size. Filtering happens
// on premultiplied colour so transparent edges do not pick up dark fringes.
// Images already at or below size are returned as is.
func Downsample(img *image.NRGBA, size int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() <= size && b.Dy() <= size {
		return img
	}

	premul := image.NewRGBA(b)
	draw.Draw(premul, b, img, b.Min, draw.Src)

	small := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(small, small.Bounds(), premul, b, draw.Src, nil)

	out := image.NewNRGBA(small.Bounds())
	for i := 0; i < len(small.Pix); i += 4 {
		a := small.Pix[i+3]
		out.Pix[i+3] = a
		if a == 0 {
			continue
		}
		inv := 255 / float64(a)
		out.Pix[i] = clamp8(float64(small.Pix[i]) * inv)
		out.Pix[i+1] = clamp8(float64(small.Pix[i+1]) * inv)
		out.Pix[i+2] = clamp8(float64(small.Pix[i+2]) * inv)
	}
	return out
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
