package mathutil

import "math"

// Mat3 is a row-major 3×3 matrix: element (r, c) is at r*3+c.
type Mat3 [9]float64

func Mat3Identity() Mat3 {
	return Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Mat3Mul returns a × b.
func Mat3Mul(a, b Mat3) Mat3 {
	var m Mat3
	for i := range m {
		r, c := i/3*3, i%3
		m[i] = a[r]*b[c] + a[r+1]*b[3+c] + a[r+2]*b[6+c]
	}
	return m
}

func (m Mat3) row(r int) Vec3 {
	return Vec3{m[r*3], m[r*3+1], m[r*3+2]}
}

// MulVec3 returns M × v.
func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{m.row(0).Dot(v), m.row(1).Dot(v), m.row(2).Dot(v)}
}

// NormalMatrix returns the inverse transpose, which carries surface normals
// through a non-uniformly scaled transform. The rows of the cofactor matrix
// are cross products of the other two rows. A singular matrix yields the
// identity.
func (m Mat3) NormalMatrix() Mat3 {
	r0, r1, r2 := m.row(0), m.row(1), m.row(2)
	c0, c1, c2 := r1.Cross(r2), r2.Cross(r0), r0.Cross(r1)
	det := r0.Dot(c0)
	if det == 0 {
		return Mat3Identity()
	}
	k := 1 / det
	return Mat3{
		c0[0] * k, c0[1] * k, c0[2] * k,
		c1[0] * k, c1[1] * k, c1[2] * k,
		c2[0] * k, c2[1] * k, c2[2] * k,
	}
}

// EulerXYZ returns the rotation for Euler angles in degrees, applied about
// X first, then Y, then Z (Rz × Ry × Rx).
func EulerXYZ(deg Vec3) Mat3 {
	sx, cx := math.Sincos(Radians(deg[0]))
	sy, cy := math.Sincos(Radians(deg[1]))
	sz, cz := math.Sincos(Radians(deg[2]))
	return Mat3{
		cz * cy, cz*sy*sx - sz*cx, cz*sy*cx + sz*sx,
		sz * cy, sz*sy*sx + cz*cx, sz*sy*cx - cz*sx,
		-sy, cy * sx, cy * cx,
	}
}
