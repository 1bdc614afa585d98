// Package raster is a software renderer for loaded scenes, used for still
// captures.
package raster

import (
	"image"
	"image/color"
	"sort"

	"dropview/internal/mathutil"
	"dropview/internal/scene"
	"dropview/internal/viewmatrix"
)

// Options controls a still render.
type Options struct {
	Size        int // output edge before supersampling
	Supersample int
	Camera      viewmatrix.Camera // framed onto the scene bounds
	Light       LightConfig
}

// DefaultOptions renders from the viewer's starting camera in the studio
// environment.
func DefaultOptions(size int) Options {
	return Options{
		Size:        size,
		Supersample: 1,
		Camera:      viewmatrix.Default(viewmatrix.DefaultFOV),
		Light:       DefaultLightConfig(),
	}
}

type drawItem struct {
	verts   []Vertex
	indices []int
	surface Surface
	depth   float64 // mean vertex depth, for back-to-front blending
}

// Render draws every mesh of res into a (Size×Supersample)² image with a
// transparent background. Opaque meshes are drawn first, then translucent
// ones back to front.
func Render(res *scene.Result, opts Options) *image.NRGBA {
	ss := opts.Supersample
	if ss < 1 {
		ss = 1
	}
	renderSize := opts.Size * ss
	fb := NewFrameBuffer(renderSize, renderSize)

	lo, hi, ok := res.Bounds()
	if !ok {
		return fb.Image()
	}
	proj := opts.Camera.Fit(lo, hi).Projector(renderSize)
	lc := opts.Light

	var blended []drawItem
	for _, rd := range res.Renderables() {
		item := prepare(rd, proj, &lc)
		if len(item.verts) == 0 {
			continue
		}
		if item.surface.Blend {
			blended = append(blended, item)
			continue
		}
		item.draw(fb, &lc)
	}

	sort.SliceStable(blended, func(i, j int) bool { return blended[i].depth < blended[j].depth })
	for _, item := range blended {
		item.draw(fb, &lc)
	}
	return fb.Image()
}

func (d *drawItem) draw(fb *FrameBuffer, lc *LightConfig) {
	for t := 0; t+2 < len(d.indices); t += 3 {
		a, b, c := d.indices[t], d.indices[t+1], d.indices[t+2]
		if a < 0 || b < 0 || c < 0 || a >= len(d.verts) || b >= len(d.verts) || c >= len(d.verts) {
			continue
		}
		RasterizeTriangle(fb, [3]Vertex{d.verts[a], d.verts[b], d.verts[c]}, &d.surface, lc)
	}
}

// prepare projects a mesh and lights its vertices in view space.
func prepare(rd scene.Renderable, proj viewmatrix.Projector, lc *LightConfig) drawItem {
	m := rd.Mesh
	item := drawItem{indices: m.Indices, surface: surfaceFor(m)}
	if len(m.Positions) == 0 {
		return item
	}

	normalMat := mathutil.Mat3Mul(proj.View(), rd.World.Upper3().NormalMatrix())
	hasUV := len(m.UVs) == len(m.Positions)
	item.verts = make([]Vertex, len(m.Positions))
	for i, p := range m.Positions {
		x, y, z := proj.Project(rd.World.MulPoint(p))
		v := Vertex{X: x, Y: y, Z: z, Shade: 1}
		if i < len(m.Normals) {
			v.Shade = lc.ComputeShade(normalMat.MulVec3(m.Normals[i]).Normalize())
		}
		if hasUV {
			v.U, v.V = m.UVs[i][0], m.UVs[i][1]
		}
		item.verts[i] = v
		item.depth += z
	}
	item.depth /= float64(len(item.verts))
	if !hasUV && item.surface.Texture != nil {
		// Textured material on a mesh without coordinates: flat average.
		r, g, b, _ := averageColor(item.surface.Texture)
		item.surface.Color = multiply(item.surface.Color, r, g, b)
		item.surface.Texture = nil
	}
	return item
}

func surfaceFor(m *scene.Mesh) Surface {
	mat := m.Material
	if mat == nil {
		mat = scene.DefaultMaterial()
	}
	s := Surface{Color: mat.Diffuse}
	s.Color.A = clamp255(mathutil.Clamp01(mat.Opacity) * 255)
	if mat.DiffuseMap != nil && mat.DiffuseMap.Image != nil {
		s.Texture = mat.DiffuseMap.Image
	}
	s.Blend = s.Color.A < 255
	return s
}

func multiply(c color.NRGBA, r, g, b uint8) color.NRGBA {
	c.R = uint8(uint16(c.R) * uint16(r) / 255)
	c.G = uint8(uint16(c.G) * uint16(g) / 255)
	c.B = uint8(uint16(c.B) * uint16(b) / 255)
	return c
}

func averageColor(tex *image.NRGBA) (uint8, uint8, uint8, uint8) {
	b := tex.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 160, 160, 170, 255
	}

	var sumR, sumG, sumB float64
	total := w * h
	stride := tex.Stride
	for y := 0; y < h; y++ {
		off := y * stride
		for x := 0; x < w; x++ {
			i := off + x*4
			sumR += float64(tex.Pix[i])
			sumG += float64(tex.Pix[i+1])
			sumB += float64(tex.Pix[i+2])
		}
	}
	n := float64(total)
	return uint8(sumR/n + 0.5), uint8(sumG/n + 0.5), uint8(sumB/n + 0.5), 255
}
