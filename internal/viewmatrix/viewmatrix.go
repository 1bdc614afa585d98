// Package viewmatrix holds the still camera: the viewer's default viewpoint,
// framing a model's bounds, and perspective projection to screen space.
package viewmatrix

import (
	"math"

	"dropview/internal/mathutil"
)

// DefaultEye is where the viewer's camera starts, looking at the origin.
var DefaultEye = mathutil.Vec3{5, 5, 5}

// DefaultFOV is the vertical field of view in degrees.
const DefaultFOV = 45.0

const near = 0.01

// Camera is a perspective camera. FOV is vertical, in degrees.
type Camera struct {
	Eye    mathutil.Vec3
	Target mathutil.Vec3
	Up     mathutil.Vec3
	FOV    float64
}

// Default returns the viewer's starting camera with the given FOV; zero
// means DefaultFOV.
func Default(fov float64) Camera {
	if fov <= 0 || fov >= 180 {
		fov = DefaultFOV
	}
	return Camera{Eye: DefaultEye, Target: mathutil.Vec3{}, Up: mathutil.Up, FOV: fov}
}

// View returns the world-to-view rotation. Rows are right, up and back, so
// the camera looks down -Z in view space.
func (c Camera) View() mathutil.Mat3 {
	f := c.Target.Sub(c.Eye).Normalize()
	r := f.Cross(c.Up)
	if r.Len() < 1e-9 {
		// Looking straight along Up.
		r = f.Cross(mathutil.Vec3{0, 0, 1})
	}
	r = r.Normalize()
	u := r.Cross(f)
	return mathutil.Mat3{
		r[0], r[1], r[2],
		u[0], u[1], u[2],
		-f[0], -f[1], -f[2],
	}
}

// Fit keeps the viewing direction and moves the camera so the bounding
// sphere of [lo, hi] fills the vertical field of view.
func (c Camera) Fit(lo, hi mathutil.Vec3) Camera {
	center := lo.Add(hi).Scale(0.5)
	radius := hi.Sub(lo).Len() / 2
	if radius < 1e-6 {
		radius = 1
	}
	dir := c.Eye.Sub(c.Target)
	if dir.Len() < 1e-9 {
		dir = DefaultEye
	}
	dist := radius / math.Sin(mathutil.Radians(c.FOV)/2)
	c.Target = center
	c.Eye = center.Add(dir.Normalize().Scale(dist))
	return c
}

// Projector maps world points to a square render target.
type Projector struct {
	view  mathutil.Mat3
	eye   mathutil.Vec3
	half  float64
	focal float64
}

// Projector prepares projection into a size×size target.
func (c Camera) Projector(size int) Projector {
	half := float64(size) / 2
	return Projector{
		view:  c.View(),
		eye:   c.Eye,
		half:  half,
		focal: half / math.Tan(mathutil.Radians(c.FOV)/2),
	}
}

// View returns the rotation used for view-space lighting.
func (p Projector) View() mathutil.Mat3 { return p.view }

// Project returns screen x, y and a depth that grows toward the camera.
func (p Projector) Project(v mathutil.Vec3) (x, y, z float64) {
	t := p.view.MulVec3(v.Sub(p.eye))
	depth := -t[2]
	if depth < near {
		depth = near
	}
	return p.half + t[0]/depth*p.focal, p.half - t[1]/depth*p.focal, t[2]
}

// ProjectVertices transforms world-space vertices to screen coordinates.
// Returns px, py, pz slices (screen X, screen Y, depth).
func (p Projector) ProjectVertices(verts []mathutil.Vec3) ([]float64, []float64, []float64) {
	n := len(verts)
	px := make([]float64, n)
	py := make([]float64, n)
	pz := make([]float64, n)
	for i, v := range verts {
		px[i], py[i], pz[i] = p.Project(v)
	}
	return px, py, pz
}
