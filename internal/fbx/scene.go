package fbx

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/color"
	"strings"

	"dropview/internal/mathutil"
	"dropview/internal/scene"
	"dropview/internal/texture"
)

// MinVersion is the oldest FBX version Parse accepts (7.0).
const MinVersion = 7000

// ktimePerSecond is the FBX time unit.
const ktimePerSecond = 46186158000

// Parse loads a binary or ASCII FBX file into a scene. Textures are fetched
// through f; a texture that cannot be loaded is a warning.
func Parse(ctx context.Context, name string, data []byte, f texture.Fetcher) (*scene.Result, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("fbx: %s: %w", name, err)
	}
	b := &builder{
		ctx:       ctx,
		doc:       doc,
		cache:     texture.NewCache(f),
		res:       &scene.Result{Animations: []scene.Clip{}},
		materials: make(map[int64]*scene.Material),
		visiting:  make(map[int64]bool),
	}
	root, err := b.buildTree(name)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("fbx: %s: %w", name, err)
	}
	b.res.Root = root
	b.res.Animations = b.animations()
	return b.res, nil
}

// Document is a decoded FBX file: the record tree plus the object graph
// described by its Objects and Connections sections.
type Document struct {
	Version uint32
	Binary  bool
	Root    *Node

	objects  map[int64]*object
	order    []int64
	children map[int64][]link
	parents  map[int64][]int64
}

type object struct {
	id    int64
	class string // record name: Model, Geometry, Material...
	kind  string // subtype: Mesh, Null, LimbNode...
	name  string
	node  *Node
}

// link is one connection from a parent to a child object. prop names the
// parent property an object-property connection targets.
type link struct {
	id   int64
	prop string
}

// Decode parses either encoding and indexes the object graph. Files older
// than MinVersion are rejected.
func Decode(data []byte) (*Document, error) {
	doc := &Document{}
	var err error
	if IsBinary(data) {
		doc.Binary = true
		doc.Root, doc.Version, err = decodeBinary(data)
	} else {
		doc.Root, err = decodeASCII(data)
		if err == nil {
			v, _ := doc.Root.Child("FBXHeaderExtension").Child("FBXVersion").Int(0)
			doc.Version = uint32(v)
		}
	}
	if err != nil {
		return nil, err
	}
	if doc.Version == 0 {
		return nil, errors.New("no FBX version")
	}
	if doc.Version < MinVersion {
		return nil, fmt.Errorf("version %d.%d is not supported, need 7.0 or later", doc.Version/1000, doc.Version%1000/100)
	}
	objs := doc.Root.Child("Objects")
	if objs == nil {
		return nil, errors.New("no Objects section")
	}
	doc.index(objs)
	return doc, nil
}

func (d *Document) index(objs *Node) {
	d.objects = make(map[int64]*object)
	d.children = make(map[int64][]link)
	d.parents = make(map[int64][]int64)
	for _, n := range objs.Children {
		id, ok := n.Int(0)
		if !ok {
			continue
		}
		if _, dup := d.objects[id]; dup {
			continue
		}
		d.objects[id] = &object{id: id, class: n.Name, kind: n.Str(2), name: objectName(n.Str(1)), node: n}
		d.order = append(d.order, id)
	}
	for _, c := range d.Root.Child("Connections").All("C") {
		child, ok1 := c.Int(1)
		parent, ok2 := c.Int(2)
		if !ok1 || !ok2 {
			continue
		}
		l := link{id: child}
		if c.Str(0) == "OP" {
			l.prop = c.Str(3)
		}
		d.children[parent] = append(d.children[parent], l)
		d.parents[child] = append(d.parents[child], parent)
	}
}

// Objects returns the ids of every object of the given class, in file order.
func (d *Document) Objects(class string) []int64 {
	var out []int64
	for _, id := range d.order {
		if d.objects[id].class == class {
			out = append(out, id)
		}
	}
	return out
}

// linked returns the objects of a class connected under parent, in
// connection order.
func (d *Document) linked(parent int64, class string) []*object {
	var out []*object
	for _, l := range d.children[parent] {
		if o, ok := d.objects[l.id]; ok && o.class == class {
			out = append(out, o)
		}
	}
	return out
}

func (d *Document) linkedProp(parent int64, class, prop string) *object {
	for _, l := range d.children[parent] {
		if o, ok := d.objects[l.id]; ok && o.class == class && l.prop == prop {
			return o
		}
	}
	return nil
}

type builder struct {
	ctx       context.Context
	doc       *Document
	cache     *texture.Cache
	res       *scene.Result
	materials map[int64]*scene.Material
	fallback  *scene.Material
	visiting  map[int64]bool
}

// buildTree hangs models connected to the scene root (id 0) under a group
// named after the file. Models whose parent is not a model are treated as
// top-level.
func (b *builder) buildTree(name string) (*scene.Node, error) {
	root := scene.NewGroup(name)
	for _, id := range b.doc.Objects("Model") {
		if b.hasModelParent(id) {
			continue
		}
		n, err := b.buildModel(id)
		if err != nil {
			return nil, err
		}
		root.Add(n)
	}
	return root, nil
}

func (b *builder) hasModelParent(id int64) bool {
	for _, p := range b.doc.parents[id] {
		if o, ok := b.doc.objects[p]; ok && o.class == "Model" {
			return true
		}
	}
	return false
}

func (b *builder) buildModel(id int64) (*scene.Node, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, err
	}
	if b.visiting[id] {
		return nil, fmt.Errorf("model %d is its own ancestor", id)
	}
	b.visiting[id] = true
	defer delete(b.visiting, id)

	o := b.doc.objects[id]
	n := scene.NewNode(o.name)
	n.Transform = modelTransform(properties(o.node))

	var slots []*scene.Material
	for _, m := range b.doc.linked(id, "Material") {
		slots = append(slots, b.material(m))
	}
	for _, g := range b.doc.linked(id, "Geometry") {
		if g.kind != "Mesh" {
			b.res.Warnf("fbx: geometry %q: %s geometry not rendered", g.name, g.kind)
			continue
		}
		meshes, err := b.buildGeometry(g, slots)
		if err != nil {
			return nil, err
		}
		n.Meshes = append(n.Meshes, meshes...)
	}
	for _, c := range b.doc.linked(id, "Model") {
		child, err := b.buildModel(c.id)
		if err != nil {
			return nil, err
		}
		n.Add(child)
	}
	return n, nil
}

// modelTransform composes T × Rpre × R × S from a model's local properties.
// Rotations are Euler degrees applied X, then Y, then Z.
func modelTransform(props map[string][]any) mathutil.Mat4 {
	t := propVec3(props, "Lcl Translation", [3]float64{})
	r := propVec3(props, "Lcl Rotation", [3]float64{})
	pre := propVec3(props, "PreRotation", [3]float64{})
	s := propVec3(props, "Lcl Scaling", [3]float64{1, 1, 1})
	rot := mathutil.Mat3Mul(mathutil.EulerXYZ(mathutil.Vec3(pre)), mathutil.EulerXYZ(mathutil.Vec3(r)))
	return mathutil.ComposeTRS(mathutil.Vec3(t), rot, mathutil.Vec3(s))
}

// material converts an FBX material once per object id.
func (b *builder) material(o *object) *scene.Material {
	if m, ok := b.materials[o.id]; ok {
		return m
	}
	props := properties(o.node)
	diffuse := propVec3(props, "DiffuseColor", [3]float64{0.8, 0.8, 0.8})
	if _, ok := props["DiffuseColor"]; !ok {
		diffuse = propVec3(props, "Diffuse", diffuse)
	}
	opacity := 1.0
	if v, ok := propFloat(props, "Opacity"); ok {
		opacity = v
	} else if v, ok := propFloat(props, "TransparencyFactor"); ok {
		opacity = 1 - v
	}
	opacity = mathutil.Clamp01(opacity)
	shininess, ok := propFloat(props, "Shininess")
	if !ok {
		shininess, _ = propFloat(props, "ShininessExponent")
	}

	m := &scene.Material{
		Name: o.name,
		Diffuse: color.NRGBA{
			R: uint8(mathutil.Clamp01(diffuse[0])*255 + 0.5),
			G: uint8(mathutil.Clamp01(diffuse[1])*255 + 0.5),
			B: uint8(mathutil.Clamp01(diffuse[2])*255 + 0.5),
			A: uint8(opacity*255 + 0.5),
		},
		Opacity:   opacity,
		Shininess: shininess,
	}
	tex := b.doc.linkedProp(o.id, "Texture", "DiffuseColor")
	if tex == nil {
		if all := b.doc.linked(o.id, "Texture"); len(all) > 0 {
			tex = all[0]
		}
	}
	if tex != nil {
		m.DiffuseMap = b.loadTexture(tex)
	}
	b.materials[o.id] = m
	return m
}

// loadTexture prefers embedded video content, then the relative file name,
// then the absolute one. Returns nil with a warning when none loads.
func (b *builder) loadTexture(o *object) *scene.Texture {
	rel := o.node.ChildStr("RelativeFilename")
	abs := o.node.ChildStr("FileName")
	if abs == "" {
		abs = o.node.ChildStr("Filename")
	}

	for _, v := range b.doc.linked(o.id, "Video") {
		content := videoContent(v.node)
		if len(content) == 0 {
			continue
		}
		ref := v.node.ChildStr("RelativeFilename")
		if ref == "" {
			ref = rel
		}
		img, err := texture.Decode(ref, content)
		if err != nil {
			b.res.Warnf("fbx: texture %q: embedded image: %v", o.name, err)
			break
		}
		return &scene.Texture{Ref: ref, Image: img}
	}

	var lastErr error
	tried := ""
	for _, ref := range []string{rel, abs} {
		if ref == "" || ref == tried {
			continue
		}
		tried = ref
		tex, err := b.cache.Load(b.ctx, ref)
		if err == nil {
			return tex
		}
		lastErr = err
	}
	if lastErr == nil {
		b.res.Warnf("fbx: texture %q names no file", o.name)
	} else {
		b.res.Warnf("fbx: texture %q: %v", o.name, lastErr)
	}
	return nil
}

// videoContent returns the embedded file bytes. ASCII files store them as
// base64, possibly split over several strings.
func videoContent(n *Node) []byte {
	c := n.Child("Content")
	if c == nil {
		return nil
	}
	if raw, ok := c.Prop(0).([]byte); ok {
		return raw
	}
	var sb strings.Builder
	for _, p := range c.Props {
		if s, ok := p.(string); ok {
			sb.WriteString(s)
		}
	}
	if sb.Len() == 0 {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(sb.String())
	if err != nil {
		return nil
	}
	return data
}

// animations summarizes every AnimationStack. The duration comes from the
// stack's local time span, or from the latest key when the span is empty.
func (b *builder) animations() []scene.Clip {
	clips := []scene.Clip{}
	for i, id := range b.doc.Objects("AnimationStack") {
		o := b.doc.objects[id]
		c := scene.Clip{Name: o.name}
		if c.Name == "" {
			c.Name = fmt.Sprintf("animation_%d", i)
		}
		props := properties(o.node)
		start, _ := propInt(props, "LocalStart")
		stop, _ := propInt(props, "LocalStop")

		var lastKey int64
		for _, layer := range b.doc.linked(id, "AnimationLayer") {
			for _, cn := range b.doc.linked(layer.id, "AnimationCurveNode") {
				c.Channels++
				for _, curve := range b.doc.linked(cn.id, "AnimationCurve") {
					for _, k := range curve.node.Ints("KeyTime") {
						if k > lastKey {
							lastKey = k
						}
					}
				}
			}
		}
		span := stop - start
		if span <= 0 {
			span = lastKey
		}
		c.Duration = float64(span) / ktimePerSecond
		clips = append(clips, c)
	}
	return clips
}

func propInt(props map[string][]any, name string) (int64, bool) {
	v := props[name]
	if len(v) < 1 {
		return 0, false
	}
	return toInt(v[0])
}
