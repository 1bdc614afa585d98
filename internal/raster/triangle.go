package raster

import (
	"image"
	"image/color"
	"math"
)

// Vertex is a projected vertex: screen position, depth (larger is nearer),
// texture coordinate and the light reaching it.
type Vertex struct {
	X, Y, Z float64
	U, V    float64
	Shade   float64
}

// Surface is what a triangle is painted with.
type Surface struct {
	Texture *image.NRGBA // nil paints Color alone
	Color   color.NRGBA  // multiplied with the texel; A is the opacity
	Blend   bool         // alpha-blend over the buffer without writing depth
}

// RasterizeTriangle fills one triangle with z-buffering, Gouraud-interpolated
// lighting, ACES tone mapping and sRGB output. Opaque surfaces write depth;
// blended ones test against it and composite source-over.
//
// This is the hot path: no allocation inside the pixel loop.
func RasterizeTriangle(fb *FrameBuffer, v [3]Vertex, s *Surface, lc *LightConfig) {
	x0, y0 := v[0].X, v[0].Y
	x1, y1 := v[1].X, v[1].Y
	x2, y2 := v[2].X, v[2].Y

	// Bounding box
	minX := int(math.Floor(math.Min(math.Min(x0, x1), x2)))
	maxX := int(math.Ceil(math.Max(math.Max(x0, x1), x2)))
	minY := int(math.Floor(math.Min(math.Min(y0, y1), y2)))
	maxY := int(math.Ceil(math.Max(math.Max(y0, y1), y2)))
	if minX < 0 {
		minX = 0
	}
	if maxX >= fb.Width {
		maxX = fb.Width - 1
	}
	if minY < 0 {
		minY = 0
	}
	if maxY >= fb.Height {
		maxY = fb.Height - 1
	}
	if minX > maxX || minY > maxY {
		return
	}

	// Barycentric setup
	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if det > -1e-8 && det < 1e-8 {
		return
	}
	invDet := 1.0 / det
	dy12 := y1 - y2
	dx21 := x2 - x1
	dy20 := y2 - y0
	dx02 := x0 - x2

	baseR := float64(s.Color.R) / 255
	baseG := float64(s.Color.G) / 255
	baseB := float64(s.Color.B) / 255
	opacity := float64(s.Color.A) / 255
	tex := s.Texture
	exposure := lc.Exposure
	invGamma := lc.InvGamma

	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) + 0.5 - y2
		rowOff := sy * fb.Width
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) + 0.5 - x2
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1
			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}

			z := w0*v[0].Z + w1*v[1].Z + w2*v[2].Z
			zIdx := rowOff + sx
			if z <= fb.ZBuf[zIdx] {
				continue
			}

			var lr, lg, lb float64
			alpha := opacity
			if tex != nil {
				u := w0*v[0].U + w1*v[1].U + w2*v[2].U
				vv := w0*v[0].V + w1*v[1].V + w2*v[2].V
				cr, cg, cb, ca := SampleTexture(tex, u, vv)
				lr = srgbToLinear[cr] * baseR
				lg = srgbToLinear[cg] * baseG
				lb = srgbToLinear[cb] * baseB
				alpha *= float64(ca) / 255
			} else {
				lr = srgbToLinear[s.Color.R]
				lg = srgbToLinear[s.Color.G]
				lb = srgbToLinear[s.Color.B]
			}
			// Skip transparent texels
			if alpha < 8.0/255 {
				continue
			}

			shade := (w0*v[0].Shade + w1*v[1].Shade + w2*v[2].Shade) * exposure
			fr := math.Pow(ACESTonemap(lr*shade*lc.Tint[0]), invGamma) * 255
			fg := math.Pow(ACESTonemap(lg*shade*lc.Tint[1]), invGamma) * 255
			fbl := math.Pow(ACESTonemap(lb*shade*lc.Tint[2]), invGamma) * 255

			pxIdx := zIdx * 4
			if !s.Blend {
				fb.ZBuf[zIdx] = z
				fb.Color[pxIdx] = clamp255(fr)
				fb.Color[pxIdx+1] = clamp255(fg)
				fb.Color[pxIdx+2] = clamp255(fbl)
				fb.Color[pxIdx+3] = clamp255(alpha * 255)
				continue
			}

			// Source-over onto whatever is behind; the buffer is not
			// premultiplied.
			dstA := float64(fb.Color[pxIdx+3]) / 255 * (1 - alpha)
			outA := alpha + dstA
			fb.Color[pxIdx] = clamp255((fr*alpha + float64(fb.Color[pxIdx])*dstA) / outA)
			fb.Color[pxIdx+1] = clamp255((fg*alpha + float64(fb.Color[pxIdx+1])*dstA) / outA)
			fb.Color[pxIdx+2] = clamp255((fbl*alpha + float64(fb.Color[pxIdx+2])*dstA) / outA)
			fb.Color[pxIdx+3] = clamp255(outA * 255)
		}
	}
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
