// Package fbx reads Autodesk FBX 7.x files, binary and ASCII, and converts
// their meshes, materials, textures and animation stacks into a scene.
package fbx

import (
	"strings"
)

// Node is one record of the FBX document tree. Both encodings decode into it.
//
// Property values are normalized: integers to int64, reals to float64,
// strings to string, raw data to []byte, and arrays to []int64, []float64
// or []bool.
type Node struct {
	Name     string
	Props    []any
	Children []*Node
}

// Child returns the first child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// All returns every child with the given name.
func (n *Node) All(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Prop returns property i, or nil.
func (n *Node) Prop(i int) any {
	if n == nil || i < 0 || i >= len(n.Props) {
		return nil
	}
	return n.Props[i]
}

// Str returns property i as a string.
func (n *Node) Str(i int) string {
	switch v := n.Prop(i).(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

// Int returns property i as an integer.
func (n *Node) Int(i int) (int64, bool) {
	return toInt(n.Prop(i))
}

// Float returns property i as a real.
func (n *Node) Float(i int) (float64, bool) {
	return toFloat(n.Prop(i))
}

// Floats returns the numeric array in property 0 of the named child, as
// written by both encodings.
func (n *Node) Floats(child string) []float64 {
	c := n.Child(child)
	if c == nil {
		return nil
	}
	return floatArray(c.Props)
}

// Ints is Floats for integer arrays.
func (n *Node) Ints(child string) []int64 {
	c := n.Child(child)
	if c == nil {
		return nil
	}
	return intArray(c.Props)
}

// ChildStr returns property 0 of the named child as a string.
func (n *Node) ChildStr(child string) string {
	return n.Child(child).Str(0)
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case float64:
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	}
	return 0, false
}

// floatArray flattens props into reals. Binary files store one array
// property; ASCII files may list the values as separate properties.
func floatArray(props []any) []float64 {
	if len(props) == 1 {
		switch a := props[0].(type) {
		case []float64:
			return a
		case []int64:
			out := make([]float64, len(a))
			for i, v := range a {
				out[i] = float64(v)
			}
			return out
		}
	}
	out := make([]float64, 0, len(props))
	for _, p := range props {
		if f, ok := toFloat(p); ok {
			out = append(out, f)
		}
	}
	return out
}

func intArray(props []any) []int64 {
	if len(props) == 1 {
		switch a := props[0].(type) {
		case []int64:
			return a
		case []float64:
			out := make([]int64, len(a))
			for i, v := range a {
				out[i] = int64(v)
			}
			return out
		}
	}
	out := make([]int64, 0, len(props))
	for _, p := range props {
		if v, ok := toInt(p); ok {
			out = append(out, v)
		}
	}
	return out
}

// objectName strips the class from an object name. Binary files write
// "Name\x00\x01Class", ASCII files write "Class::Name".
func objectName(s string) string {
	if i := strings.Index(s, "\x00\x01"); i >= 0 {
		return s[:i]
	}
	if i := strings.Index(s, "::"); i >= 0 {
		return s[i+2:]
	}
	return s
}

// properties reads a Properties70 block into a name → values map. Each P
// record is: name, type, label, flags, values...
func properties(n *Node) map[string][]any {
	out := make(map[string][]any)
	for _, p := range n.Child("Properties70").All("P") {
		name := p.Str(0)
		if name == "" {
			continue
		}
		if len(p.Props) > 4 {
			out[name] = p.Props[4:]
		} else {
			out[name] = nil
		}
	}
	return out
}

func propVec3(props map[string][]any, name string, def [3]float64) [3]float64 {
	v := props[name]
	if len(v) < 3 {
		return def
	}
	var out [3]float64
	for i := 0; i < 3; i++ {
		f, ok := toFloat(v[i])
		if !ok {
			return def
		}
		out[i] = f
	}
	return out
}

func propFloat(props map[string][]any, name string) (float64, bool) {
	v := props[name]
	if len(v) < 1 {
		return 0, false
	}
	return toFloat(v[0])
}
