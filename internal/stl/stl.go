// Package stl parses binary and ASCII STL files. STL carries geometry only.
package stl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"dropview/internal/mathutil"
	"dropview/internal/scene"
)

const (
	headerSize = 80
	facetSize  = 50
)

// Triangle is one facet. Normal may be zero when the file leaves it blank.
type Triangle struct {
	Normal mathutil.Vec3
	V      [3]mathutil.Vec3
}

// Geometry is a parsed STL file.
type Geometry struct {
	Name      string
	Binary    bool
	Triangles []Triangle
}

// IsBinary reports whether data should be read as binary STL. A file whose
// length matches its facet count is binary even when its header starts with
// "solid", which some exporters write.
func IsBinary(data []byte) bool {
	if len(data) >= headerSize+4 {
		n := binary.LittleEndian.Uint32(data[headerSize:])
		if uint64(headerSize+4)+uint64(n)*facetSize == uint64(len(data)) {
			return true
		}
	}
	return !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid"))
}

// Parse decodes an STL file in either encoding.
func Parse(ctx context.Context, name string, data []byte) (*Geometry, error) {
	var (
		g   *Geometry
		err error
	)
	if IsBinary(data) {
		g, err = parseBinary(ctx, data)
	} else {
		g, err = parseASCII(ctx, data)
	}
	if err != nil {
		return nil, fmt.Errorf("stl: %s: %w", name, err)
	}
	if g.Name == "" {
		g.Name = name
	}
	return g, nil
}

func parseBinary(ctx context.Context, data []byte) (*Geometry, error) {
	if len(data) < headerSize+4 {
		return nil, fmt.Errorf("binary: %d bytes is shorter than the header", len(data))
	}
	n := int(binary.LittleEndian.Uint32(data[headerSize:]))
	if need := headerSize + 4 + n*facetSize; need > len(data) || n < 0 {
		return nil, fmt.Errorf("binary: %d facets need %d bytes, have %d", n, need, len(data))
	}
	g := &Geometry{Binary: true, Triangles: make([]Triangle, n)}
	off := headerSize + 4
	for i := 0; i < n; i++ {
		if i%65536 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		t := &g.Triangles[i]
		t.Normal = readVec3(data[off:])
		for k := 0; k < 3; k++ {
			t.V[k] = readVec3(data[off+12+12*k:])
		}
		off += facetSize // 2 trailing attribute bytes ignored
	}
	return g, nil
}

func readVec3(b []byte) mathutil.Vec3 {
	return mathutil.Vec3{
		float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:]))),
		float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))),
		float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))),
	}
}

// parseASCII reads solid/facet normal/outer loop/vertex/endloop/endfacet/endsolid.
// Several solids in one file are concatenated.
func parseASCII(ctx context.Context, data []byte) (*Geometry, error) {
	g := &Geometry{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		cur     Triangle
		nVerts  int
		inFacet bool
		lineNo  int
	)
	for sc.Scan() {
		lineNo++
		if lineNo%65536 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "solid":
			if g.Name == "" && len(fields) > 1 {
				g.Name = strings.Join(fields[1:], " ")
			}
		case "facet":
			if inFacet {
				return nil, fmt.Errorf("line %d: facet inside facet", lineNo)
			}
			inFacet, nVerts, cur = true, 0, Triangle{}
			if len(fields) >= 5 && fields[1] == "normal" {
				v, err := parseVec3(fields[2:5])
				if err != nil {
					return nil, fmt.Errorf("line %d: normal: %w", lineNo, err)
				}
				cur.Normal = v
			}
		case "vertex":
			if !inFacet {
				return nil, fmt.Errorf("line %d: vertex outside facet", lineNo)
			}
			if nVerts == 3 {
				return nil, fmt.Errorf("line %d: more than 3 vertices in facet", lineNo)
			}
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: vertex needs 3 coordinates", lineNo)
			}
			v, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("line %d: vertex: %w", lineNo, err)
			}
			cur.V[nVerts] = v
			nVerts++
		case "endfacet":
			if !inFacet || nVerts != 3 {
				return nil, fmt.Errorf("line %d: facet with %d vertices", lineNo, nVerts)
			}
			g.Triangles = append(g.Triangles, cur)
			inFacet = false
		case "outer", "endloop", "endsolid":
		default:
			return nil, fmt.Errorf("line %d: unexpected %q", lineNo, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if inFacet {
		return nil, fmt.Errorf("unterminated facet")
	}
	return g, nil
}

func parseVec3(fields []string) (mathutil.Vec3, error) {
	var v mathutil.Vec3
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

// Mesh converts the geometry to an unindexed triangle mesh with flat normals.
// Facets with a zero normal get one computed from their winding.
func (g *Geometry) Mesh() *scene.Mesh {
	m := &scene.Mesh{
		Name:      g.Name,
		Positions: make([]mathutil.Vec3, 0, 3*len(g.Triangles)),
		Normals:   make([]mathutil.Vec3, 0, 3*len(g.Triangles)),
		Indices:   make([]int, 0, 3*len(g.Triangles)),
	}
	for _, t := range g.Triangles {
		n := t.Normal
		if n.Len() < 1e-12 {
			n = t.V[1].Sub(t.V[0]).Cross(t.V[2].Sub(t.V[0])).Normalize()
		}
		for k := 0; k < 3; k++ {
			m.Indices = append(m.Indices, len(m.Positions))
			m.Positions = append(m.Positions, t.V[k])
			m.Normals = append(m.Normals, n)
		}
	}
	return m
}
