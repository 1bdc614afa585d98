package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Classification
	}{
		{"robot.glb", Classification{Model, GLTFBinary}},
		{"x.GLB", Classification{Model, GLTFBinary}},
		{"scene.gltf", Classification{Model, GLTFText}},
		{"chair.obj", Classification{Model, OBJ}},
		{"Rig.Fbx", Classification{Model, FBX}},
		{"part.stl", Classification{Model, STL}},
		{"chair.mtl", Classification{Asset, None}},
		{"texture.png", Classification{Asset, None}},
		{"archive.obj.zip", Classification{Asset, None}},
		{"obj", Classification{Asset, None}},
		{"", Classification{Asset, None}},
		{"trailing.", Classification{Asset, None}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.name))
		})
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, Classify("x.glb"), Classify("x.GLB"))
	assert.Equal(t, Classification{Model, GLTFBinary}, Classify("x.GLB"))
}

func TestIsMaterialLibrary(t *testing.T) {
	assert.True(t, IsMaterialLibrary("mesh.mtl"))
	assert.True(t, IsMaterialLibrary("MESH.MTL"))
	assert.False(t, IsMaterialLibrary("mesh.obj"))
	assert.False(t, IsMaterialLibrary("mtl"))
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, []string{"stl"}, STL.Extensions())
	assert.Nil(t, None.Extensions())
	assert.Equal(t, "GLTF_TEXT", GLTFText.String())
	assert.Equal(t, "model(OBJ)", Classify("a.obj").String())
	assert.Equal(t, "asset", Classify("a.png").String())
}
