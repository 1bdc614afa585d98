package gltf

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"

	gltflib "github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"dropview/internal/mathutil"
	"dropview/internal/scene"
	"dropview/internal/texture"
)

// Parse loads a .gltf or .glb file into a scene. Missing buffers fail the load
// as missing references; missing or undecodable images are warnings.
func Parse(ctx context.Context, name string, data []byte, f texture.Fetcher) (*scene.Result, error) {
	doc, err := decodeDocument(ctx, data, f)
	if err != nil {
		return nil, wrap(name, err)
	}
	b := &builder{
		ctx:       ctx,
		doc:       doc,
		cache:     texture.NewCache(f),
		res:       &scene.Result{Animations: []scene.Clip{}},
		materials: make(map[int]*scene.Material),
		visiting:  make(map[int]bool),
	}
	root, err := b.buildScene(name)
	if err != nil {
		return nil, wrap(name, err)
	}
	b.res.Root = root
	clips, err := readAnimations(doc)
	if err != nil {
		return nil, wrap(name, err)
	}
	b.res.Animations = clips
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.res, nil
}

func wrap(name string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("gltf: %s: %w", name, err)
}

type builder struct {
	ctx       context.Context
	doc       *gltflib.Document
	cache     *texture.Cache
	res       *scene.Result
	materials map[int]*scene.Material
	fallback  *scene.Material
	visiting  map[int]bool
}

// buildScene builds the default scene, or the first one, under a group named
// after the file.
func (b *builder) buildScene(name string) (*scene.Node, error) {
	root := scene.NewGroup(name)
	if len(b.doc.Scenes) == 0 {
		return root, nil
	}
	idx := 0
	if b.doc.Scene != nil {
		idx = int(*b.doc.Scene)
	}
	if idx < 0 || idx >= len(b.doc.Scenes) {
		return nil, fmt.Errorf("scene %d out of range", idx)
	}
	for _, ni := range b.doc.Scenes[idx].Nodes {
		n, err := b.buildNode(int(ni))
		if err != nil {
			return nil, err
		}
		root.Add(n)
	}
	return root, nil
}

func (b *builder) buildNode(index int) (*scene.Node, error) {
	if index < 0 || index >= len(b.doc.Nodes) {
		return nil, fmt.Errorf("node %d out of range", index)
	}
	if b.visiting[index] {
		return nil, fmt.Errorf("node %d is its own ancestor", index)
	}
	b.visiting[index] = true
	defer delete(b.visiting, index)

	src := b.doc.Nodes[index]
	n := scene.NewNode(src.Name)
	if n.Name == "" {
		n.Name = fmt.Sprintf("node_%d", index)
	}
	n.Transform = nodeTransform(src)

	if src.Mesh != nil {
		meshes, err := b.buildMesh(int(*src.Mesh))
		if err != nil {
			return nil, err
		}
		n.Meshes = meshes
	}
	for _, ci := range src.Children {
		c, err := b.buildNode(int(ci))
		if err != nil {
			return nil, err
		}
		n.Add(c)
	}
	return n, nil
}

// nodeTransform returns the node matrix when one is given, else T × R × S.
// Omitted properties decode to zero values and are treated as identity.
func nodeTransform(n *gltflib.Node) mathutil.Mat4 {
	var m [16]float64
	nonZero, identity := false, true
	for i, v := range n.Matrix {
		m[i] = float64(v)
		if m[i] != 0 {
			nonZero = true
		}
		if want := float64(btoi(i%5 == 0)); m[i] != want {
			identity = false
		}
	}
	if nonZero && !identity {
		return mathutil.Mat4FromColumnMajor(m)
	}

	t := mathutil.Vec3{float64(n.Translation[0]), float64(n.Translation[1]), float64(n.Translation[2])}
	q := mathutil.Quat{float64(n.Rotation[0]), float64(n.Rotation[1]), float64(n.Rotation[2]), float64(n.Rotation[3])}
	s := mathutil.Vec3{float64(n.Scale[0]), float64(n.Scale[1]), float64(n.Scale[2])}
	if s == (mathutil.Vec3{}) {
		s = mathutil.Vec3{1, 1, 1}
	}
	return mathutil.ComposeTRS(t, mathutil.QuatToMat3(q.Normalize()), s)
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

// buildMesh turns each triangle primitive into a mesh. Other primitive modes
// are skipped with a warning.
func (b *builder) buildMesh(index int) ([]*scene.Mesh, error) {
	if index < 0 || index >= len(b.doc.Meshes) {
		return nil, fmt.Errorf("mesh %d out of range", index)
	}
	src := b.doc.Meshes[index]
	var out []*scene.Mesh
	for pi, p := range src.Primitives {
		if p.Mode != gltflib.PrimitiveTriangles {
			b.res.Warnf("gltf: mesh %q primitive %d: mode %v not rendered", src.Name, pi, p.Mode)
			continue
		}
		m, err := b.buildPrimitive(p)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d: %w", index, pi, err)
		}
		m.Name = src.Name
		if len(src.Primitives) > 1 {
			m.Name = fmt.Sprintf("%s_%d", src.Name, pi)
		}
		out = append(out, m)
	}
	return out, nil
}

func (b *builder) accessor(index int) (*gltflib.Accessor, error) {
	if index < 0 || index >= len(b.doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", index)
	}
	acc := b.doc.Accessors[index]
	if err := checkAccessor(b.doc, index, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (b *builder) buildPrimitive(p *gltflib.Primitive) (*scene.Mesh, error) {
	posIdx, ok := p.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("no POSITION attribute")
	}
	acc, err := b.accessor(int(posIdx))
	if err != nil {
		return nil, err
	}
	pos, err := modeler.ReadPosition(b.doc, acc, nil)
	if err != nil {
		return nil, fmt.Errorf("POSITION: %w", err)
	}
	m := &scene.Mesh{Positions: make([]mathutil.Vec3, len(pos))}
	for i, v := range pos {
		m.Positions[i] = mathutil.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
	}

	if ni, ok := p.Attributes["NORMAL"]; ok {
		acc, err := b.accessor(int(ni))
		if err != nil {
			return nil, err
		}
		normals, err := modeler.ReadNormal(b.doc, acc, nil)
		if err != nil {
			return nil, fmt.Errorf("NORMAL: %w", err)
		}
		if len(normals) == len(pos) {
			m.Normals = make([]mathutil.Vec3, len(normals))
			for i, v := range normals {
				m.Normals[i] = mathutil.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
			}
		}
	}

	if ti, ok := p.Attributes["TEXCOORD_0"]; ok {
		acc, err := b.accessor(int(ti))
		if err != nil {
			return nil, err
		}
		uvs, err := modeler.ReadTextureCoord(b.doc, acc, nil)
		if err != nil {
			return nil, fmt.Errorf("TEXCOORD_0: %w", err)
		}
		if len(uvs) == len(pos) {
			m.UVs = make([][2]float64, len(uvs))
			for i, v := range uvs {
				m.UVs[i] = [2]float64{float64(v[0]), 1 - float64(v[1])}
			}
		}
	}

	if p.Indices != nil {
		acc, err := b.accessor(int(*p.Indices))
		if err != nil {
			return nil, err
		}
		idx, err := modeler.ReadIndices(b.doc, acc, nil)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		m.Indices = make([]int, len(idx))
		for i, v := range idx {
			m.Indices[i] = int(v)
		}
	} else {
		m.Indices = make([]int, len(pos))
		for i := range m.Indices {
			m.Indices[i] = i
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(m.Normals) == 0 {
		m.ComputeNormals()
	}

	if p.Material != nil {
		mat, err := b.material(int(*p.Material))
		if err != nil {
			return nil, err
		}
		m.Material = mat
	} else {
		if b.fallback == nil {
			b.fallback = scene.DefaultMaterial()
		}
		m.Material = b.fallback
	}
	return m, nil
}

// material converts a glTF material once per index.
func (b *builder) material(index int) (*scene.Material, error) {
	if m, ok := b.materials[index]; ok {
		return m, nil
	}
	if index < 0 || index >= len(b.doc.Materials) {
		return nil, fmt.Errorf("material %d out of range", index)
	}
	src := b.doc.Materials[index]
	factor := [4]float64{1, 1, 1, 1}
	var texInfo *gltflib.TextureInfo
	if pbr := src.PBRMetallicRoughness; pbr != nil {
		f := pbr.BaseColorFactorOrDefault()
		factor = [4]float64{float64(f[0]), float64(f[1]), float64(f[2]), float64(f[3])}
		texInfo = pbr.BaseColorTexture
	}
	opacity := factor[3]
	if src.AlphaMode != gltflib.AlphaBlend {
		opacity = 1
	}
	m := &scene.Material{
		Name: src.Name,
		Diffuse: color.NRGBA{
			R: uint8(mathutil.Clamp01(linearToSRGB(factor[0]))*255 + 0.5),
			G: uint8(mathutil.Clamp01(linearToSRGB(factor[1]))*255 + 0.5),
			B: uint8(mathutil.Clamp01(linearToSRGB(factor[2]))*255 + 0.5),
			A: uint8(mathutil.Clamp01(opacity)*255 + 0.5),
		},
		Opacity:     opacity,
		DoubleSided: src.DoubleSided,
	}
	if texInfo != nil {
		m.DiffuseMap = b.loadTexture(int(texInfo.Index))
	}
	b.materials[index] = m
	return m, nil
}

// loadTexture returns nil and records a warning when the image cannot be
// loaded.
func (b *builder) loadTexture(index int) *scene.Texture {
	if index < 0 || index >= len(b.doc.Textures) || b.doc.Textures[index].Source == nil {
		b.res.Warnf("gltf: texture %d has no image", index)
		return nil
	}
	ii := int(*b.doc.Textures[index].Source)
	if ii < 0 || ii >= len(b.doc.Images) {
		b.res.Warnf("gltf: texture %d: image %d out of range", index, ii)
		return nil
	}
	img := b.doc.Images[ii]

	var (
		data []byte
		ref  string
		err  error
	)
	switch {
	case img.BufferView != nil:
		ref = fmt.Sprintf("bufferView:%d", *img.BufferView)
		data, err = bufferViewBytes(b.doc, int(*img.BufferView))
	case isDataURI(img.URI):
		ref = "data-uri"
		data, err = decodeDataURI(img.URI)
	case img.URI != "":
		tex, err := b.cache.Load(b.ctx, unescape(img.URI))
		if err != nil {
			b.res.Warnf("gltf: image %q: %v", img.URI, err)
			return nil
		}
		return tex
	default:
		b.res.Warnf("gltf: image %d has neither uri nor bufferView", ii)
		return nil
	}
	if err != nil {
		b.res.Warnf("gltf: image %d: %v", ii, err)
		return nil
	}
	decoded, err := texture.Decode(ref, data)
	if err != nil {
		b.res.Warnf("gltf: image %d: %v", ii, err)
		return nil
	}
	return &scene.Texture{Ref: ref, Image: decoded}
}

// linearToSRGB converts a linear colour factor to display space, so flat
// colours match texture texels, which are stored in sRGB.
func linearToSRGB(v float64) float64 {
	if v <= 0.0031308 {
		return v * 12.92
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}

// readAnimations returns one clip per declared animation. The duration is
// the largest sampler input time, taken from the input accessor's max.
func readAnimations(doc *gltflib.Document) ([]scene.Clip, error) {
	clips := make([]scene.Clip, 0, len(doc.Animations))
	for i, a := range doc.Animations {
		c := scene.Clip{Name: a.Name, Channels: len(a.Channels)}
		if c.Name == "" {
			c.Name = fmt.Sprintf("animation_%d", i)
		}
		for _, s := range a.Samplers {
			if int(s.Input) >= len(doc.Accessors) {
				return nil, fmt.Errorf("animation %d: input accessor %d out of range", i, s.Input)
			}
			if max := doc.Accessors[s.Input].Max; len(max) > 0 && float64(max[0]) > c.Duration {
				c.Duration = float64(max[0])
			}
		}
		clips = append(clips, c)
	}
	return clips, nil
}
