package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"dropview/internal/format"
	"dropview/internal/mathutil"
	"dropview/internal/resource"
	"dropview/internal/scene"
)

type report struct {
	Files      []fileInfo     `yaml:"files"`
	Primary    string         `yaml:"primary,omitempty"`
	Resources  []resourceInfo `yaml:"resources"`
	Scene      *nodeInfo      `yaml:"scene,omitempty"`
	Triangles  int            `yaml:"triangles"`
	Bounds     *[2][3]float64 `yaml:"bounds,omitempty,flow"`
	Materials  []materialInfo `yaml:"materials,omitempty"`
	Animations []scene.Clip   `yaml:"animations,omitempty"`
	Warnings   []string       `yaml:"warnings,omitempty"`
	Error      string         `yaml:"error,omitempty"`
}

type fileInfo struct {
	Name  string `yaml:"name"`
	Class string `yaml:"class"`
}

type resourceInfo struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	MIME    string `yaml:"mime"`
	Size    int    `yaml:"size"`
}

type nodeInfo struct {
	Name        string      `yaml:"name"`
	Transformed bool        `yaml:"transformed,omitempty"`
	Meshes      []meshInfo  `yaml:"meshes,omitempty"`
	Children    []*nodeInfo `yaml:"children,omitempty"`
}

type meshInfo struct {
	Name      string `yaml:"name"`
	Vertices  int    `yaml:"vertices"`
	Triangles int    `yaml:"triangles"`
	Material  string `yaml:"material,omitempty"`
}

type materialInfo struct {
	Name    string  `yaml:"name"`
	Diffuse string  `yaml:"diffuse"`
	Opacity float64 `yaml:"opacity"`
	Texture string  `yaml:"texture,omitempty"`
	Default bool    `yaml:"default,omitempty"`
}

func newReport(names []string, primary string, m resource.Map, res *scene.Result, loadErr error) report {
	r := report{Primary: primary}
	for _, n := range names {
		r.Files = append(r.Files, fileInfo{Name: n, Class: format.Classify(n).String()})
	}
	for _, k := range m.Keys() {
		h, _ := m.Get(k)
		r.Resources = append(r.Resources, resourceInfo{Name: k, Address: h.Address, MIME: h.MIME, Size: h.Size})
	}
	if loadErr != nil {
		r.Error = loadErr.Error()
	}
	if res == nil {
		return r
	}

	r.Scene = describe(res.Root)
	r.Triangles = res.Triangles()
	if lo, hi, ok := res.Bounds(); ok {
		r.Bounds = &[2][3]float64{round3(lo), round3(hi)}
	}
	for _, mat := range res.Materials() {
		mi := materialInfo{
			Name:    mat.Name,
			Diffuse: fmt.Sprintf("#%02x%02x%02x", mat.Diffuse.R, mat.Diffuse.G, mat.Diffuse.B),
			Opacity: mat.Opacity,
			Default: mat.Default,
		}
		if mat.DiffuseMap != nil {
			mi.Texture = mat.DiffuseMap.Ref
		}
		r.Materials = append(r.Materials, mi)
	}
	r.Animations = res.Animations
	r.Warnings = res.Warnings
	return r
}

func describe(n *scene.Node) *nodeInfo {
	if n == nil {
		return nil
	}
	ni := &nodeInfo{Name: n.Name, Transformed: !n.Transform.IsIdentity()}
	for _, m := range n.Meshes {
		mi := meshInfo{Name: m.Name, Vertices: len(m.Positions), Triangles: m.Triangles()}
		if m.Material != nil {
			mi.Material = m.Material.Name
		}
		ni.Meshes = append(ni.Meshes, mi)
	}
	for _, c := range n.Children {
		ni.Children = append(ni.Children, describe(c))
	}
	return ni
}

func round3(v mathutil.Vec3) [3]float64 {
	var out [3]float64
	for i := range v {
		out[i] = math.Round(v[i]*1000) / 1000
	}
	return out
}

func (r report) writeYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func (r report) writeText(w io.Writer) {
	fmt.Fprintln(w, "Files:")
	for _, f := range r.Files {
		fmt.Fprintf(w, "  %-32s %s\n", f.Name, f.Class)
	}
	fmt.Fprintf(w, "Resource map (%d):\n", len(r.Resources))
	for _, res := range r.Resources {
		fmt.Fprintf(w, "  %-32s %s  %s  %d bytes\n", res.Name, res.Address, res.MIME, res.Size)
	}
	if r.Primary != "" {
		fmt.Fprintf(w, "Primary: %s\n", r.Primary)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}
	if r.Scene != nil {
		fmt.Fprintln(w, "Scene:")
		writeNode(w, r.Scene, 1)
		fmt.Fprintf(w, "Triangles: %d\n", r.Triangles)
	}
	if r.Bounds != nil {
		fmt.Fprintf(w, "Bounds: %v .. %v\n", r.Bounds[0], r.Bounds[1])
	}
	if len(r.Materials) > 0 {
		fmt.Fprintln(w, "Materials:")
		for _, m := range r.Materials {
			line := fmt.Sprintf("  %s %s opacity=%.2f", m.Name, m.Diffuse, m.Opacity)
			if m.Texture != "" {
				line += " texture=" + m.Texture
			}
			if m.Default {
				line += " (default)"
			}
			fmt.Fprintln(w, line)
		}
	}
	if len(r.Animations) > 0 {
		fmt.Fprintln(w, "Animations:")
		for _, a := range r.Animations {
			fmt.Fprintf(w, "  %s %.2fs %d channels\n", a.Name, a.Duration, a.Channels)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings (%d):\n", len(r.Warnings))
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  %s\n", warn)
		}
	}
}

func writeNode(w io.Writer, n *nodeInfo, depth int) {
	indent := strings.Repeat("  ", depth)
	if n.Transformed {
		fmt.Fprintf(w, "%s%s (transformed)\n", indent, n.Name)
	} else {
		fmt.Fprintf(w, "%s%s\n", indent, n.Name)
	}
	for _, m := range n.Meshes {
		fmt.Fprintf(w, "%s  · %s: %d verts, %d tris, material=%q\n", indent, m.Name, m.Vertices, m.Triangles, m.Material)
	}
	for _, c := range n.Children {
		writeNode(w, c, depth+1)
	}
}
