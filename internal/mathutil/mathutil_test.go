package mathutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func assertVec(t *testing.T, want, got Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "component %d", i)
	}
}

func TestComposeTRS(t *testing.T) {
	m := ComposeTRS(Vec3{1, 2, 3}, EulerXYZ(Vec3{0, 0, 90}), Vec3{2, 2, 2})
	assertVec(t, Vec3{1, 4, 3}, m.MulPoint(Vec3{1, 0, 0}))
	assertVec(t, Vec3{1, 2, 3}, m.Translation())
	assert.False(t, m.IsIdentity())
	assert.True(t, Mat4Identity().IsIdentity())
}

func TestMat4FromColumnMajor(t *testing.T) {
	m := Mat4FromColumnMajor([16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 5, 6, 7, 1})
	assertVec(t, Vec3{5, 6, 7}, m.Translation())
}

func TestNormalMatrix(t *testing.T) {
	r := Mat3Mul(EulerXYZ(Vec3{0, 17, 0}), EulerXYZ(Vec3{63, 0, 0}))
	n := r.NormalMatrix()
	// rotations are orthogonal, so normals rotate like points
	for i := range r {
		assert.InDelta(t, r[i], n[i], 1e-9, "element %d", i)
	}

	scaled := ComposeTRS(Vec3{}, Mat3Identity(), Vec3{2, 1, 1}).Upper3()
	assertVec(t, Vec3{0.5, 0, 0}, scaled.NormalMatrix().MulVec3(Vec3{1, 0, 0}))
	assert.Equal(t, Mat3Identity(), Mat3{}.NormalMatrix())
}

func TestEulerXYZ(t *testing.T) {
	// X turns +Y onto +Z, which Z then leaves alone.
	m := EulerXYZ(Vec3{90, 0, 90})
	assertVec(t, Vec3{0, 0, 1}, m.MulVec3(Vec3{0, 1, 0}))
	assertVec(t, Vec3{0, 1, 0}, m.MulVec3(Vec3{1, 0, 0}))
}

func TestQuatToMat3(t *testing.T) {
	s := math.Sqrt(0.5)
	m := QuatToMat3(Quat{0, s, 0, s}) // 90° about Y
	assertVec(t, Vec3{0, 0, -1}, m.MulVec3(Vec3{1, 0, 0}))
	assert.Equal(t, Quat{0, 0, 0, 1}, Quat{}.Normalize())
}

func TestVec3(t *testing.T) {
	a, b := Vec3{1, 5, -2}, Vec3{3, 0, 1}
	assert.Equal(t, Vec3{1, 0, -2}, a.Min(b))
	assert.Equal(t, Vec3{3, 5, 1}, a.Max(b))
	assertVec(t, Vec3{0, 0, 1}, Vec3{1, 0, 0}.Cross(Vec3{0, 1, 0}))
	assert.InDelta(t, 1, Vec3{3, 4, 0}.Normalize().Len(), 1e-12)
	assert.Equal(t, Vec3{}, Vec3{}.Normalize())
	assert.InDelta(t, math.Pi, Radians(180), 1e-12)
	assert.Equal(t, 1.0, Clamp01(4))
}
