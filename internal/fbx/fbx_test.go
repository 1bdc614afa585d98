package fbx

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"dropview/internal/blob"
	"dropview/internal/mathutil"
	"dropview/internal/resolve"
	"dropview/internal/resource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadASCII = `; FBX 7.4.0 project file
FBXHeaderExtension:  {
	FBXHeaderVersion: 1003
	FBXVersion: 7400
}
Objects:  {
	Geometry: 100, "Geometry::Quad", "Mesh" {
		Vertices: *12 {
			a: 0,0,0,1,0,0,1,1,0,0,1,0
		}
		PolygonVertexIndex: *4 {
			a: 0,1,2,-4
		}
		LayerElementUV: 0 {
			MappingInformationType: "ByPolygonVertex"
			ReferenceInformationType: "IndexToDirect"
			UV: *8 {
				a: 0,0,1,0,1,1,0,1
			}
			UVIndex: *4 {
				a: 0,1,2,3
			}
		}
	}
	Model: 200, "Model::Quad", "Mesh" {
		Properties70:  {
			P: "Lcl Translation", "Lcl Translation", "", "A",2,0,0
		}
	}
	Material: 300, "Material::Red", "" {
		Properties70:  {
			P: "DiffuseColor", "Color", "", "A",1,0,0
			P: "Opacity", "double", "Number", "",0.5
		}
	}
	Texture: 400, "Texture::wood", "" {
		FileName: "C:\art\wood.png"
		RelativeFilename: "..\textures\wood.png"
	}
	AnimationStack: 500, "AnimStack::Take 001", "" {
		Properties70:  {
			P: "LocalStop", "KTime", "Time", "",46186158000
		}
	}
	AnimationLayer: 600, "AnimLayer::BaseLayer", "" {
	}
	AnimationCurveNode: 700, "AnimCurveNode::T", "" {
	}
}
Connections:  {
	C: "OO",200,0
	C: "OO",100,200
	C: "OO",300,200
	C: "OP",400,300, "DiffuseColor"
	C: "OO",600,500
	C: "OO",700,600
}
`

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func resolverFor(t *testing.T, files ...blob.File) *resolve.Resolver {
	t.Helper()
	s := blob.NewStore()
	return resolve.New(resource.Create(s, files), s, nil)
}

func TestParseASCII(t *testing.T) {
	r := resolverFor(t, blob.File{Name: "wood.png", Data: pngBytes(t)})
	res, err := Parse(context.Background(), "quad.fbx", []byte(quadASCII), r)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "quad.fbx", res.Root.Name)

	require.Len(t, res.Root.Children, 1)
	node := res.Root.Children[0]
	assert.Equal(t, "Quad", node.Name)
	assert.Equal(t, mathutil.Vec3{2, 0, 0}, node.Transform.Translation())

	require.Len(t, node.Meshes, 1)
	mesh := node.Meshes[0]
	assert.Equal(t, 2, mesh.Triangles())
	assert.Len(t, mesh.Positions, 4)
	assert.Len(t, mesh.Normals, 4)
	assert.Equal(t, [2]float64{1, 1}, mesh.UVs[2])

	mat := mesh.Material
	assert.Equal(t, "Red", mat.Name)
	assert.Equal(t, uint8(255), mat.Diffuse.R)
	assert.Equal(t, uint8(0), mat.Diffuse.G)
	assert.InDelta(t, 0.5, mat.Opacity, 1e-9)
	require.NotNil(t, mat.DiffuseMap)
	assert.Equal(t, 2, mat.DiffuseMap.Image.Bounds().Dx())

	require.Len(t, res.Animations, 1)
	assert.Equal(t, "Take 001", res.Animations[0].Name)
	assert.InDelta(t, 1.0, res.Animations[0].Duration, 1e-9)
	assert.Equal(t, 1, res.Animations[0].Channels)
}

func TestParseMissingTextureIsWarning(t *testing.T) {
	res, err := Parse(context.Background(), "quad.fbx", []byte(quadASCII), resolverFor(t))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "wood")
	assert.Nil(t, res.Root.Children[0].Meshes[0].Material.DiffuseMap)
}

func TestParseOldVersion(t *testing.T) {
	doc := strings.Replace(quadASCII, "FBXVersion: 7400", "FBXVersion: 6100", 1)
	_, err := Parse(context.Background(), "old.fbx", []byte(doc), resolverFor(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "6.1")
}

func TestDecodeASCIIErrors(t *testing.T) {
	tests := map[string]string{
		"unclosed":     "Objects: {\n Model: 1, \"a\", \"Null\" {\n",
		"stray brace":  "}\n",
		"unterminated": "Name: \"abc\n",
		"no version":   "Objects: {\n}\n",
		"no objects":   "FBXHeaderExtension: {\n FBXVersion: 7400\n}\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestDecodeASCIIValues(t *testing.T) {
	root, err := decodeASCII([]byte("A: 1, 2.5, \"s\", T\nB: ,\nC: *2 {\n a: 1.5,2\n}\n"))
	require.NoError(t, err)
	a := root.Child("A")
	require.NotNil(t, a)
	assert.Equal(t, []any{int64(1), 2.5, "s", "T"}, a.Props)
	assert.Equal(t, []any{"", ""}, root.Child("B").Props)
	assert.Equal(t, []float64{1.5, 2}, root.Floats("C"))
	assert.Empty(t, root.Child("C").Children)
}

// bnode is a record for the binary test writer.
type bnode struct {
	name     string
	props    []any
	children []bnode
}

// writeBinary encodes records as a 32-bit-offset binary FBX file.
func writeBinary(t *testing.T, version uint32, nodes ...bnode) []byte {
	t.Helper()
	buf := []byte(binaryMagic)
	buf = append(buf, 0x1A, 0x00)
	buf = binary.LittleEndian.AppendUint32(buf, version)
	for _, n := range nodes {
		buf = writeNode(t, buf, n)
	}
	return append(buf, make([]byte, 13)...)
}

func writeNode(t *testing.T, buf []byte, n bnode) []byte {
	le := binary.LittleEndian
	start := len(buf)
	buf = append(buf, make([]byte, 12)...)
	buf = append(buf, byte(len(n.name)))
	buf = append(buf, n.name...)
	propStart := len(buf)
	for _, p := range n.props {
		buf = writeProp(t, buf, p)
	}
	propLen := len(buf) - propStart
	for _, c := range n.children {
		buf = writeNode(t, buf, c)
	}
	if len(n.children) > 0 {
		buf = append(buf, make([]byte, 13)...)
	}
	le.PutUint32(buf[start:], uint32(len(buf)))
	le.PutUint32(buf[start+4:], uint32(len(n.props)))
	le.PutUint32(buf[start+8:], uint32(propLen))
	return buf
}

func writeProp(t *testing.T, buf []byte, p any) []byte {
	le := binary.LittleEndian
	switch v := p.(type) {
	case int64:
		buf = append(buf, 'L')
		return le.AppendUint64(buf, uint64(v))
	case string:
		buf = append(buf, 'S')
		buf = le.AppendUint32(buf, uint32(len(v)))
		return append(buf, v...)
	case []float64:
		// Zlib-encoded, as exporters write large arrays.
		var raw []byte
		for _, f := range v {
			raw = le.AppendUint64(raw, math.Float64bits(f))
		}
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		_, err := zw.Write(raw)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		buf = append(buf, 'd')
		buf = le.AppendUint32(buf, uint32(len(v)))
		buf = le.AppendUint32(buf, 1)
		buf = le.AppendUint32(buf, uint32(z.Len()))
		return append(buf, z.Bytes()...)
	case []int32:
		buf = append(buf, 'i')
		buf = le.AppendUint32(buf, uint32(len(v)))
		buf = le.AppendUint32(buf, 0)
		buf = le.AppendUint32(buf, uint32(len(v)*4))
		for _, i := range v {
			buf = le.AppendUint32(buf, uint32(i))
		}
		return buf
	}
	t.Fatalf("writeProp: unsupported %T", p)
	return nil
}

func triangleBinary(t *testing.T) []byte {
	return writeBinary(t, 7400,
		bnode{name: "Objects", children: []bnode{
			{name: "Geometry", props: []any{int64(1), "Tri\x00\x01Geometry", "Mesh"}, children: []bnode{
				{name: "Vertices", props: []any{[]float64{0, 0, 0, 1, 0, 0, 0, 1, 0}}},
				{name: "PolygonVertexIndex", props: []any{[]int32{0, 1, -3}}},
			}},
			{name: "Model", props: []any{int64(2), "Tri\x00\x01Model", "Mesh"}},
		}},
		bnode{name: "Connections", children: []bnode{
			{name: "C", props: []any{"OO", int64(2), int64(0)}},
			{name: "C", props: []any{"OO", int64(1), int64(2)}},
		}},
	)
}

func TestParseBinary(t *testing.T) {
	data := triangleBinary(t)
	require.True(t, IsBinary(data))

	doc, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, doc.Binary)
	assert.Equal(t, uint32(7400), doc.Version)
	assert.Equal(t, []int64{1}, doc.Objects("Geometry"))

	res, err := Parse(context.Background(), "tri.fbx", data, resolverFor(t))
	require.NoError(t, err)
	require.Len(t, res.Root.Children, 1)
	node := res.Root.Children[0]
	assert.Equal(t, "Tri", node.Name)
	require.Len(t, node.Meshes, 1)
	mesh := node.Meshes[0]
	assert.Equal(t, []int{0, 1, 2}, mesh.Indices)
	assert.Equal(t, mathutil.Vec3{0, 1, 0}, mesh.Positions[2])
	assert.True(t, mesh.Material.Default)
	assert.InDelta(t, 1.0, mesh.Normals[0][2], 1e-9)
	assert.NotNil(t, res.Animations)
}

func TestDecodeBinaryTruncated(t *testing.T) {
	data := triangleBinary(t)
	_, err := Decode(data[:len(data)/2])
	assert.Error(t, err)

	_, _, err = decodeBinary([]byte("Kaydara"))
	assert.Error(t, err)
}

func TestDecodeBinaryEveryPrefix(t *testing.T) {
	data := triangleBinary(t)

	// Header only: magic, padding and version.
	_, err := Decode(data[:27])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Objects")

	r := resolverFor(t)
	for n := 0; n < len(data); n++ {
		assert.NotPanics(t, func() {
			_, _ = Parse(context.Background(), "tri.fbx", data[:n], r)
		}, "prefix of %d bytes", n)
	}
}

func TestModelTransformRotation(t *testing.T) {
	m := modelTransform(map[string][]any{"Lcl Rotation": {0.0, 0.0, 90.0}})
	p := m.MulPoint(mathutil.Vec3{1, 0, 0})
	assert.InDelta(t, 0, p[0], 1e-9)
	assert.InDelta(t, 1, p[1], 1e-9)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "Cube", objectName("Cube\x00\x01Model"))
	assert.Equal(t, "Cube", objectName("Model::Cube"))
	assert.Equal(t, "Cube", objectName("Cube"))
}
