package fbx

import (
	"fmt"

	"dropview/internal/mathutil"
	"dropview/internal/scene"
)

// layer is one LayerElement* block: per-element data plus how it maps onto
// the polygon structure.
type layer struct {
	mapping string
	direct  []float64
	index   []int64
	size    int
}

func readLayer(g *Node, element, data, index string, size int) *layer {
	n := g.Child(element)
	if n == nil {
		return nil
	}
	l := &layer{
		mapping: n.ChildStr("MappingInformationType"),
		direct:  n.Floats(data),
		size:    size,
	}
	switch n.ChildStr("ReferenceInformationType") {
	case "IndexToDirect", "Index":
		l.index = n.Ints(index)
	}
	if len(l.direct) == 0 {
		return nil
	}
	return l
}

// at returns the element for polygon vertex pv of polygon poly, whose
// control point is cp.
func (l *layer) at(pv, cp, poly int) ([]float64, error) {
	i := pv
	switch l.mapping {
	case "ByVertice", "ByVertex", "ByControlPoint":
		i = cp
	case "ByPolygon":
		i = poly
	case "AllSame":
		i = 0
	}
	if l.index != nil {
		if i < 0 || i >= len(l.index) {
			return nil, fmt.Errorf("layer index %d out of range", i)
		}
		i = int(l.index[i])
	}
	if i < 0 || (i+1)*l.size > len(l.direct) {
		return nil, fmt.Errorf("layer element %d out of range", i)
	}
	return l.direct[i*l.size : (i+1)*l.size], nil
}

// materialSlots returns the material slot of each polygon, or nil when every
// polygon uses slot 0.
func materialSlots(g *Node, polygons int) []int64 {
	n := g.Child("LayerElementMaterial")
	if n == nil {
		return nil
	}
	slots := n.Ints("Materials")
	if len(slots) == 0 {
		return nil
	}
	if n.ChildStr("MappingInformationType") == "AllSame" || len(slots) < polygons {
		all := make([]int64, polygons)
		for i := range all {
			all[i] = slots[0]
		}
		return all
	}
	return slots
}

// buildGeometry fans every polygon into triangles and splits them into one
// mesh per material slot. Each polygon vertex becomes its own mesh vertex.
func (b *builder) buildGeometry(g *object, slots []*scene.Material) ([]*scene.Mesh, error) {
	vertices := g.node.Floats("Vertices")
	polyIndex := g.node.Ints("PolygonVertexIndex")
	if len(vertices)%3 != 0 {
		return nil, fmt.Errorf("geometry %q: %d vertex components", g.name, len(vertices))
	}
	controlPoints := len(vertices) / 3

	normals := readLayer(g.node, "LayerElementNormal", "Normals", "NormalsIndex", 3)
	uvs := readLayer(g.node, "LayerElementUV", "UV", "UVIndex", 2)

	// Split polygons first so the material layer can be indexed by polygon.
	var polygons [][2]int // [start, end) into polyIndex
	start := 0
	for i, v := range polyIndex {
		if v < 0 {
			polygons = append(polygons, [2]int{start, i + 1})
			start = i + 1
		}
	}
	if start != len(polyIndex) {
		b.res.Warnf("fbx: geometry %q: unterminated last polygon dropped", g.name)
	}
	polySlots := materialSlots(g.node, len(polygons))

	bySlot := make(map[int64]*scene.Mesh)
	var order []int64
	skipped := 0
	for pi, span := range polygons {
		if span[1]-span[0] < 3 {
			skipped++
			continue
		}
		var slot int64
		if polySlots != nil && pi < len(polySlots) {
			slot = polySlots[pi]
		}
		m, ok := bySlot[slot]
		if !ok {
			m = &scene.Mesh{Name: g.name, Material: b.slotMaterial(slots, slot)}
			bySlot[slot] = m
			order = append(order, slot)
		}

		base := len(m.Positions)
		for pv := span[0]; pv < span[1]; pv++ {
			cp := int(polyIndex[pv])
			if cp < 0 {
				cp = ^cp
			}
			if cp >= controlPoints {
				return nil, fmt.Errorf("geometry %q: control point %d out of range [0,%d)", g.name, cp, controlPoints)
			}
			m.Positions = append(m.Positions, mathutil.Vec3{vertices[cp*3], vertices[cp*3+1], vertices[cp*3+2]})
			if normals != nil {
				v, err := normals.at(pv, cp, pi)
				if err != nil {
					return nil, fmt.Errorf("geometry %q: normals: %w", g.name, err)
				}
				m.Normals = append(m.Normals, mathutil.Vec3{v[0], v[1], v[2]})
			}
			if uvs != nil {
				v, err := uvs.at(pv, cp, pi)
				if err != nil {
					return nil, fmt.Errorf("geometry %q: uvs: %w", g.name, err)
				}
				m.UVs = append(m.UVs, [2]float64{v[0], v[1]})
			}
		}
		for i := 2; i < span[1]-span[0]; i++ {
			m.Indices = append(m.Indices, base, base+i-1, base+i)
		}
	}
	if skipped > 0 {
		b.res.Warnf("fbx: geometry %q: %d degenerate polygons skipped", g.name, skipped)
	}

	out := make([]*scene.Mesh, 0, len(order))
	for _, slot := range order {
		m := bySlot[slot]
		if len(order) > 1 {
			m.Name = fmt.Sprintf("%s_%d", g.name, slot)
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if len(m.Normals) == 0 {
			m.ComputeNormals()
		}
		out = append(out, m)
	}
	return out, nil
}

func (b *builder) slotMaterial(slots []*scene.Material, slot int64) *scene.Material {
	if slot >= 0 && slot < int64(len(slots)) {
		return slots[slot]
	}
	if b.fallback == nil {
		b.fallback = scene.DefaultMaterial()
	}
	return b.fallback
}
