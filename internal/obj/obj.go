// Package obj parses Wavefront OBJ geometry (*.obj) and its material
// libraries (*.mtl) into a scene.
//
// Supported statements: v, vn, vt, f, o, g, usemtl, s and mtllib. Polygons
// are triangulated as fans. Negative indices count back from the last
// element declared.
package obj

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"dropview/internal/mathutil"
	"dropview/internal/scene"
)

const noIndex = -1

// Decoded is an OBJ file before it is turned into a scene.
type Decoded struct {
	Name      string
	Objects   []*Object
	Libraries []string // mtllib names as written, for diagnostics only
	Warnings  []string

	vertices []mathutil.Vec3
	normals  []mathutil.Vec3
	uvs      [][2]float64
}

// Object is an "o" or "g" block.
type Object struct {
	Name  string
	Faces []Face
}

// Face is one polygon. Uvs and Normals hold noIndex where a corner has none.
type Face struct {
	Vertices []int
	Uvs      []int
	Normals  []int
	Material string
	Smooth   bool
}

// Parse parses an OBJ file and builds the scene. lib may be nil; faces whose
// material is not in lib get one shared default material.
func Parse(ctx context.Context, name string, data []byte, lib *Library) (*scene.Result, error) {
	dec, err := Decode(ctx, name, data)
	if err != nil {
		return nil, err
	}
	res := dec.Scene(lib)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Decode parses the statements of an OBJ file.
func Decode(ctx context.Context, name string, data []byte) (*Decoded, error) {
	d := &decoder{out: &Decoded{Name: name}}
	if err := scanLines(ctx, data, d.parseLine); err != nil {
		return nil, fmt.Errorf("obj: %s: %w", name, err)
	}
	return d.out, nil
}

type decoder struct {
	out      *Decoded
	object   *Object
	material string
	smooth   bool
	line     int
	skipped  map[string]bool
}

func (d *decoder) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", d.line, fmt.Sprintf(format, args...))
}

func (d *decoder) parseLine(lineNo int, line string) error {
	d.line = lineNo
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	args := fields[1:]
	switch fields[0] {
	case "v":
		v, err := parseVec3(args)
		if err != nil {
			return d.errorf("v: %v", err)
		}
		d.out.vertices = append(d.out.vertices, v)
	case "vn":
		v, err := parseVec3(args)
		if err != nil {
			return d.errorf("vn: %v", err)
		}
		d.out.normals = append(d.out.normals, v)
	case "vt":
		if len(args) < 1 {
			return d.errorf("vt: missing coordinates")
		}
		var uv [2]float64
		for i := 0; i < 2 && i < len(args); i++ {
			f, err := strconv.ParseFloat(args[i], 64)
			if err != nil {
				return d.errorf("vt: %v", err)
			}
			uv[i] = f
		}
		d.out.uvs = append(d.out.uvs, uv)
	case "f":
		return d.parseFace(args)
	case "o", "g":
		name := strings.Join(args, " ")
		if name == "" {
			name = fmt.Sprintf("unnamed%d", d.line)
		}
		d.object = &Object{Name: name}
		d.out.Objects = append(d.out.Objects, d.object)
	case "usemtl":
		if len(args) < 1 {
			return d.errorf("usemtl with no name")
		}
		d.material = strings.Join(args, " ")
	case "mtllib":
		d.out.Libraries = append(d.out.Libraries, args...)
	case "s":
		if len(args) < 1 {
			return d.errorf("s with no value")
		}
		d.smooth = args[0] != "0" && args[0] != "off"
	default:
		if d.skipped == nil {
			d.skipped = make(map[string]bool)
		}
		if !d.skipped[fields[0]] {
			d.skipped[fields[0]] = true
			d.out.Warnings = append(d.out.Warnings, "obj: statement not supported: "+fields[0])
		}
	}
	return nil
}

// parseFace parses f v1[/vt1][/vn1] v2[/vt2][/vn2] v3[/vt3][/vn3] ...
func (d *decoder) parseFace(args []string) error {
	if len(args) < 3 {
		return d.errorf("face with %d vertices", len(args))
	}
	if d.object == nil {
		// Faces before any o/g line go to an implicit object.
		d.object = &Object{Name: d.out.Name}
		d.out.Objects = append(d.out.Objects, d.object)
	}
	face := Face{
		Vertices: make([]int, len(args)),
		Uvs:      make([]int, len(args)),
		Normals:  make([]int, len(args)),
		Material: d.material,
		Smooth:   d.smooth,
	}
	for i, a := range args {
		parts := strings.Split(a, "/")
		var err error
		if face.Vertices[i], err = resolveIndex(parts[0], len(d.out.vertices)); err != nil {
			return d.errorf("face vertex %q: %v", a, err)
		}
		face.Uvs[i], face.Normals[i] = noIndex, noIndex
		if len(parts) > 1 && parts[1] != "" {
			if face.Uvs[i], err = resolveIndex(parts[1], len(d.out.uvs)); err != nil {
				return d.errorf("face uv %q: %v", a, err)
			}
		}
		if len(parts) > 2 && parts[2] != "" {
			if face.Normals[i], err = resolveIndex(parts[2], len(d.out.normals)); err != nil {
				return d.errorf("face normal %q: %v", a, err)
			}
		}
	}
	d.object.Faces = append(d.object.Faces, face)
	return nil
}

// resolveIndex turns a 1-based or negative relative index into a 0-based one
// and checks it against the n elements declared so far.
func resolveIndex(s string, n int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	var i int
	switch {
	case v > 0:
		i = v - 1
	case v < 0:
		i = n + v
	default:
		return 0, fmt.Errorf("index 0")
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("index %d out of range (%d declared)", v, n)
	}
	return i, nil
}

func parseVec3(args []string) (mathutil.Vec3, error) {
	var v mathutil.Vec3
	if len(args) < 3 {
		return v, fmt.Errorf("need 3 components, got %d", len(args))
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

// Scene builds the node tree: one group for the file, one node per object
// and one mesh per run of faces sharing a material.
func (dec *Decoded) Scene(lib *Library) *scene.Result {
	res := &scene.Result{Root: scene.NewGroup(dec.Name), Animations: []scene.Clip{}}
	res.Warnings = append(res.Warnings, dec.Warnings...)
	if lib != nil {
		res.Warnings = append(res.Warnings, lib.Warnings...)
	}

	var fallback *scene.Material
	missing := make(map[string]bool)
	materialFor := func(name string) *scene.Material {
		if m, ok := lib.Get(name); ok {
			return m
		}
		if name != "" && lib != nil && !missing[name] {
			missing[name] = true
			res.Warnf("obj: material %q not found in %s, using default", name, lib.Name)
		}
		if fallback == nil {
			fallback = scene.DefaultMaterial()
		}
		return fallback
	}

	for _, ob := range dec.Objects {
		if len(ob.Faces) == 0 {
			continue
		}
		node := scene.NewNode(ob.Name)
		var b *meshBuilder
		for i := range ob.Faces {
			f := &ob.Faces[i]
			if b == nil || f.Material != b.material {
				if b != nil {
					node.Meshes = append(node.Meshes, b.finish())
				}
				b = &meshBuilder{
					dec:      dec,
					material: f.Material,
					mesh: &scene.Mesh{
						Name:     fmt.Sprintf("%s_%d", ob.Name, len(node.Meshes)),
						Material: materialFor(f.Material),
					},
				}
			}
			b.addFace(f)
		}
		node.Meshes = append(node.Meshes, b.finish())
		res.Root.Add(node)
	}
	return res
}

type meshBuilder struct {
	dec      *Decoded
	material string
	mesh     *scene.Mesh
	hasUV    bool
}

// addFace copies the face corners into the mesh and fans the polygon.
func (b *meshBuilder) addFace(f *Face) {
	m := b.mesh
	base := len(m.Positions)
	faceNormal := b.dec.vertices[f.Vertices[1]].Sub(b.dec.vertices[f.Vertices[0]]).
		Cross(b.dec.vertices[f.Vertices[2]].Sub(b.dec.vertices[f.Vertices[0]])).Normalize()
	for i := range f.Vertices {
		m.Positions = append(m.Positions, b.dec.vertices[f.Vertices[i]])
		if f.Normals[i] != noIndex {
			m.Normals = append(m.Normals, b.dec.normals[f.Normals[i]])
		} else {
			m.Normals = append(m.Normals, faceNormal)
		}
		var uv [2]float64
		if f.Uvs[i] != noIndex {
			uv = b.dec.uvs[f.Uvs[i]]
			b.hasUV = true
		}
		m.UVs = append(m.UVs, uv)
	}
	for i := 2; i < len(f.Vertices); i++ {
		m.Indices = append(m.Indices, base, base+i-1, base+i)
	}
}

func (b *meshBuilder) finish() *scene.Mesh {
	if !b.hasUV {
		b.mesh.UVs = nil
	}
	return b.mesh
}
