package mathutil

import "math"

// Up is the viewer's world up axis (Y-up, right-handed).
var Up = Vec3{0, 1, 0}

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
