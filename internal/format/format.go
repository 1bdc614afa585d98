// Package format classifies dropped filenames into model formats and assets.
package format

import "strings"

// Format is a primary model format the loader can dispatch on.
type Format int

const (
	None Format = iota
	GLTFBinary
	GLTFText
	OBJ
	FBX
	STL
)

func (f Format) String() string {
	switch f {
	case GLTFBinary:
		return "GLTF_BINARY"
	case GLTFText:
		return "GLTF_TEXT"
	case OBJ:
		return "OBJ"
	case FBX:
		return "FBX"
	case STL:
		return "STL"
	}
	return "NONE"
}

// Extensions lists the lower-case extensions (without dot) mapped to f.
func (f Format) Extensions() []string {
	for ext, ff := range byExt {
		if ff == f {
			return []string{ext}
		}
	}
	return nil
}

var byExt = map[string]Format{
	"glb":  GLTFBinary,
	"gltf": GLTFText,
	"obj":  OBJ,
	"fbx":  FBX,
	"stl":  STL,
}

// MaterialLibraryExt is the companion materials-file extension for OBJ.
const MaterialLibraryExt = "mtl"

// Kind separates primary model files from everything else.
type Kind int

const (
	Asset Kind = iota
	Model
)

func (k Kind) String() string {
	if k == Model {
		return "model"
	}
	return "asset"
}

// Classification is the result of Classify.
type Classification struct {
	Kind   Kind
	Format Format
}

func (c Classification) String() string {
	if c.Kind == Model {
		return "model(" + c.Format.String() + ")"
	}
	return "asset"
}

// Ext returns the lower-cased last dot-separated segment of name, or "" if
// name has no dot.
func Ext(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Classify maps a filename to Model(format) or Asset. It is pure and total.
func Classify(name string) Classification {
	if f, ok := byExt[Ext(name)]; ok {
		return Classification{Kind: Model, Format: f}
	}
	return Classification{Kind: Asset}
}

func IsModel(name string) bool {
	return Classify(name).Kind == Model
}

// IsMaterialLibrary reports whether name carries the .mtl extension.
func IsMaterialLibrary(name string) bool {
	return Ext(name) == MaterialLibraryExt
}
