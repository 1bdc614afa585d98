package scene

import (
	"errors"
	"testing"

	"dropview/internal/mathutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad(mat *Material) *Mesh {
	return &Mesh{
		Name:      "quad",
		Positions: []mathutil.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Indices:   []int{0, 1, 2, 0, 2, 3},
		Material:  mat,
	}
}

func TestWalkAccumulatesTransforms(t *testing.T) {
	child := NewNode("child", quad(nil))
	child.Transform = mathutil.FromMat3Translation(mathutil.Mat3Identity(), mathutil.Vec3{0, 2, 0})
	root := NewGroup("root", child)
	root.Transform = mathutil.FromMat3Translation(mathutil.Mat3Identity(), mathutil.Vec3{1, 0, 0})

	var names []string
	var childWorld mathutil.Mat4
	err := Walk(root, func(n *Node, world mathutil.Mat4) error {
		names = append(names, n.Name)
		if n == child {
			childWorld = world
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "child"}, names)
	assert.Equal(t, mathutil.Vec3{1, 2, 0}, childWorld.Translation())
}

func TestWalkStops(t *testing.T) {
	stop := errors.New("stop")
	root := NewGroup("root", NewNode("a"), NewNode("b"))
	var seen int
	err := Walk(root, func(n *Node, _ mathutil.Mat4) error {
		seen++
		if n.Name == "a" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, seen)
	assert.NoError(t, Walk(nil, nil))
}

func TestRenderablesAndMaterials(t *testing.T) {
	shared := DefaultMaterial()
	other := NeutralMaterial()
	res := &Result{Root: NewGroup("root",
		NewNode("a", quad(shared)),
		NewNode("b", quad(other), quad(shared)),
	)}

	assert.Len(t, res.Renderables(), 3)
	assert.Equal(t, []*Material{shared, other}, res.Materials())
	assert.Equal(t, 6, res.Triangles())
}

func TestBounds(t *testing.T) {
	n := NewNode("a", quad(nil))
	n.Transform = mathutil.ComposeTRS(mathutil.Vec3{0, 0, 5}, mathutil.Mat3Identity(), mathutil.Vec3{2, 2, 2})
	res := &Result{Root: NewGroup("root", n)}

	lo, hi, ok := res.Bounds()
	require.True(t, ok)
	assert.Equal(t, mathutil.Vec3{0, 0, 5}, lo)
	assert.Equal(t, mathutil.Vec3{2, 2, 5}, hi)

	_, _, ok = (&Result{Root: NewGroup("empty")}).Bounds()
	assert.False(t, ok)
}

func TestMeshValidate(t *testing.T) {
	m := quad(nil)
	assert.NoError(t, m.Validate())

	m.Indices = append(m.Indices, 1)
	assert.Error(t, m.Validate())

	m = quad(nil)
	m.Indices[0] = 9
	assert.Error(t, m.Validate())

	m = quad(nil)
	m.UVs = [][2]float64{{0, 0}}
	assert.Error(t, m.Validate())
}

func TestComputeNormals(t *testing.T) {
	m := quad(nil)
	m.ComputeNormals()
	require.Len(t, m.Normals, 4)
	for _, n := range m.Normals {
		assert.InDelta(t, 1.0, n[2], 1e-9)
	}
}

func TestMaterials(t *testing.T) {
	n := NeutralMaterial()
	assert.Equal(t, uint8(0xcc), n.Diffuse.R)
	assert.Equal(t, uint8(0xcc), n.Diffuse.G)
	assert.Equal(t, uint8(0xcc), n.Diffuse.B)
	assert.Equal(t, 1.0, n.Opacity)
	assert.True(t, DefaultMaterial().Default)
}

func TestWarnf(t *testing.T) {
	var r Result
	r.Warnf("texture %q missing", "a.png")
	assert.Equal(t, []string{`texture "a.png" missing`}, r.Warnings)
}
