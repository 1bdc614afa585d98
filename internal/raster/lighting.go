package raster

import (
	"fmt"
	"math"

	"dropview/internal/mathutil"
)

// LightConfig holds precomputed lighting parameters. Directions are in view
// space.
type LightConfig struct {
	LightDir  mathutil.Vec3
	RimDir    mathutil.Vec3
	ViewDir   mathutil.Vec3
	HalfMain  mathutil.Vec3 // precomputed half-vector for Blinn-Phong
	Ambient   float64
	Hemi      float64
	Direct    float64
	Rim       float64
	SpecInt   float64
	SpecPow   float64
	Exposure  float64
	Tint      [3]float64 // linear light colour
	SRGBGamma float64
	InvGamma  float64
}

// DefaultLightConfig returns the studio preset.
func DefaultLightConfig() LightConfig {
	return newLightConfig(mathutil.Vec3{180, 260, 140}, mathutil.Vec3{-160, 130, -210})
}

func newLightConfig(light, rim mathutil.Vec3) LightConfig {
	lightDir := light.Normalize()
	viewDir := mathutil.Vec3{0, 0, -1}
	return LightConfig{
		LightDir:  lightDir,
		RimDir:    rim.Normalize(),
		ViewDir:   viewDir,
		HalfMain:  lightDir.Sub(viewDir).Normalize(),
		Ambient:   0.35,
		Hemi:      0.30,
		Direct:    0.90,
		Rim:       0.35,
		SpecInt:   0.25,
		SpecPow:   24.0,
		Exposure:  1.0,
		Tint:      [3]float64{1, 1, 1},
		SRGBGamma: 2.2,
		InvGamma:  1.0 / 2.2,
	}
}

// Preset returns the lighting for one of the viewer's environments:
// studio, sunset, city, night or forest.
func Preset(name string) (LightConfig, error) {
	lc := DefaultLightConfig()
	switch name {
	case "", "studio":
	case "sunset":
		lc = newLightConfig(mathutil.Vec3{300, 60, 80}, mathutil.Vec3{-200, 80, -150})
		lc.Tint = [3]float64{1.0, 0.78, 0.58}
		lc.Direct = 1.1
	case "city":
		lc.Tint = [3]float64{0.94, 0.97, 1.04}
		lc.Ambient = 0.45
		lc.Hemi = 0.40
		lc.Direct = 0.75
	case "night":
		lc = newLightConfig(mathutil.Vec3{-120, 220, 160}, mathutil.Vec3{160, 100, -200})
		lc.Tint = [3]float64{0.55, 0.65, 1.0}
		lc.Ambient = 0.20
		lc.Direct = 0.70
		lc.SpecInt = 0.4
	case "forest":
		lc.Tint = [3]float64{0.84, 1.0, 0.78}
		lc.Hemi = 0.45
		lc.Direct = 0.70
	default:
		return LightConfig{}, fmt.Errorf("raster: unknown environment %q", name)
	}
	return lc, nil
}

// ComputeShade returns the combined lighting scalar for a view-space normal.
func (lc *LightConfig) ComputeShade(normal mathutil.Vec3) float64 {
	// Lambertian (abs for double-sided)
	ndlMain := math.Abs(normal.Dot(lc.LightDir))
	ndlRim := math.Abs(normal.Dot(lc.RimDir))

	// Hemisphere fill
	hemi := (1.0-math.Abs(normal[1]))*0.5 + 0.5
	hemiLight := hemi * lc.Hemi

	// Blinn-Phong specular
	ndh := math.Abs(normal.Dot(lc.HalfMain))
	spec := math.Pow(ndh, lc.SpecPow) * lc.SpecInt

	return lc.Ambient + hemiLight + ndlMain*lc.Direct + ndlRim*lc.Rim + spec
}

// Precomputed sRGB-to-linear lookup table (256 entries).
var srgbToLinear [256]float64

func init() {
	for i := 0; i < 256; i++ {
		srgbToLinear[i] = math.Pow(float64(i)/255.0, 2.2)
	}
}

// ACESTonemap applies ACES Filmic tone mapping to a linear value.
func ACESTonemap(x float64) float64 {
	return (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
}
