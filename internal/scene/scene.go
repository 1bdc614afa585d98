// Package scene is the normalized result every format parser produces: a node
// tree of triangle meshes with materials, plus the animation clips the file
// declares.
package scene

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"dropview/internal/mathutil"
)

// Texture is an image referenced by a material.
type Texture struct {
	Ref     string // as written in the model file
	Address string // what the reference resolved to
	Image   *image.NRGBA
}

// Material is the subset of surface properties the viewer renders.
type Material struct {
	Name        string
	Diffuse     color.NRGBA
	Opacity     float64
	Shininess   float64
	DiffuseMap  *Texture
	DoubleSided bool

	// Default marks a material the loader made up because the file named none.
	Default bool
}

// DefaultMaterial is assigned to geometry that references no material.
func DefaultMaterial() *Material {
	return &Material{
		Name:      "default",
		Diffuse:   color.NRGBA{R: 0xd9, G: 0xd9, B: 0xd9, A: 0xff},
		Opacity:   1,
		Shininess: 30,
		Default:   true,
	}
}

// NeutralMaterial is the opaque #cccccc material given to geometry-only formats.
func NeutralMaterial() *Material {
	return &Material{
		Name:    "neutral",
		Diffuse: color.NRGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff},
		Opacity: 1,
		Default: true,
	}
}

// Mesh is an indexed triangle list. Normals and UVs are either empty or
// parallel to Positions. UV origin is the bottom-left of the image.
type Mesh struct {
	Name      string
	Positions []mathutil.Vec3
	Normals   []mathutil.Vec3
	UVs       [][2]float64
	Indices   []int
	Material  *Material
}

// Triangles returns the number of triangles.
func (m *Mesh) Triangles() int {
	return len(m.Indices) / 3
}

// Validate checks that the index list is whole triangles inside Positions and
// that per-vertex attributes line up.
func (m *Mesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("scene: mesh %q: %d indices is not a triangle list", m.Name, len(m.Indices))
	}
	for _, i := range m.Indices {
		if i < 0 || i >= len(m.Positions) {
			return fmt.Errorf("scene: mesh %q: index %d out of range [0,%d)", m.Name, i, len(m.Positions))
		}
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Positions) {
		return fmt.Errorf("scene: mesh %q: %d normals for %d positions", m.Name, len(m.Normals), len(m.Positions))
	}
	if len(m.UVs) != 0 && len(m.UVs) != len(m.Positions) {
		return fmt.Errorf("scene: mesh %q: %d uvs for %d positions", m.Name, len(m.UVs), len(m.Positions))
	}
	return nil
}

// ComputeNormals fills Normals with area-weighted vertex normals when the
// mesh has none.
func (m *Mesh) ComputeNormals() {
	if len(m.Normals) == len(m.Positions) && len(m.Normals) > 0 {
		return
	}
	normals := make([]mathutil.Vec3, len(m.Positions))
	for t := 0; t+2 < len(m.Indices); t += 3 {
		a, b, c := m.Indices[t], m.Indices[t+1], m.Indices[t+2]
		n := m.Positions[b].Sub(m.Positions[a]).Cross(m.Positions[c].Sub(m.Positions[a]))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	m.Normals = normals
}

// Node is one element of the scene tree.
type Node struct {
	Name      string
	Transform mathutil.Mat4 // local, relative to the parent
	Meshes    []*Mesh
	Children  []*Node
}

// NewNode returns a node with an identity transform.
func NewNode(name string, meshes ...*Mesh) *Node {
	return &Node{Name: name, Transform: mathutil.Mat4Identity(), Meshes: meshes}
}

// NewGroup returns a mesh-less node holding children.
func NewGroup(name string, children ...*Node) *Node {
	n := NewNode(name)
	n.Children = children
	return n
}

// Add appends children to n.
func (n *Node) Add(children ...*Node) {
	n.Children = append(n.Children, children...)
}

// Walk visits n and its descendants depth-first, parents before children,
// passing each node's world transform. Returning an error stops the walk.
func Walk(n *Node, fn func(n *Node, world mathutil.Mat4) error) error {
	if n == nil {
		return nil
	}
	return walk(n, mathutil.Mat4Identity(), fn)
}

func walk(n *Node, parent mathutil.Mat4, fn func(*Node, mathutil.Mat4) error) error {
	world := mathutil.Mat4Mul(parent, n.Transform)
	if err := fn(n, world); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := walk(c, world, fn); err != nil {
			return err
		}
	}
	return nil
}

// Clip is an animation clip as declared by the model file.
type Clip struct {
	Name     string
	Duration float64 // seconds
	Channels int
}

// Result is what a load produces and what the render layer consumes.
type Result struct {
	Root       *Node
	Animations []Clip
	Warnings   []string
}

// Warnf records a non-fatal problem found while loading.
func (r *Result) Warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Renderable is a mesh with the world transform of the node that holds it.
type Renderable struct {
	Node  *Node
	Mesh  *Mesh
	World mathutil.Mat4
}

// Renderables lists every mesh in the tree in walk order.
func (r *Result) Renderables() []Renderable {
	var out []Renderable
	Walk(r.Root, func(n *Node, world mathutil.Mat4) error {
		for _, m := range n.Meshes {
			out = append(out, Renderable{Node: n, Mesh: m, World: world})
		}
		return nil
	})
	return out
}

// Materials lists the distinct materials in use, in first-use order.
func (r *Result) Materials() []*Material {
	seen := make(map[*Material]bool)
	var out []*Material
	for _, rd := range r.Renderables() {
		if m := rd.Mesh.Material; m != nil && !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// Triangles counts triangles across all meshes.
func (r *Result) Triangles() int {
	n := 0
	for _, rd := range r.Renderables() {
		n += rd.Mesh.Triangles()
	}
	return n
}

// Bounds returns the world-space bounding box of every referenced vertex.
// ok is false when the scene has no geometry.
func (r *Result) Bounds() (lo, hi mathutil.Vec3, ok bool) {
	lo = mathutil.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi = mathutil.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, rd := range r.Renderables() {
		for _, i := range rd.Mesh.Indices {
			if i < 0 || i >= len(rd.Mesh.Positions) {
				continue
			}
			p := rd.World.MulPoint(rd.Mesh.Positions[i])
			lo = lo.Min(p)
			hi = hi.Max(p)
			ok = true
		}
	}
	if !ok {
		return mathutil.Vec3{}, mathutil.Vec3{}, false
	}
	return lo, hi, true
}
