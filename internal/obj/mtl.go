package obj

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"dropview/internal/mathutil"
	"dropview/internal/scene"
	"dropview/internal/texture"
)

// Library is a parsed material library with its textures loaded.
type Library struct {
	Name      string
	Materials map[string]*scene.Material
	Order     []string // material names in declaration order
	Warnings  []string
}

// Get returns the named material.
func (l *Library) Get(name string) (*scene.Material, bool) {
	if l == nil {
		return nil, false
	}
	m, ok := l.Materials[name]
	return m, ok
}

// mtlDef is a material as written in the file, before binding.
type mtlDef struct {
	name      string
	ambient   [3]float64
	diffuse   [3]float64
	specular  [3]float64
	emissive  [3]float64
	shininess float64
	opacity   float64
	ior       float64
	illum     int
	mapKd     string
}

func newMtlDef(name string) *mtlDef {
	return &mtlDef{name: name, diffuse: [3]float64{1, 1, 1}, opacity: 1, shininess: 30}
}

// ParseMaterials parses a .mtl file. Every map_Kd is fetched and decoded
// through f before returning; a texture that fails to load is recorded as a
// warning and the material keeps its flat colour.
func ParseMaterials(ctx context.Context, name string, data []byte, f texture.Fetcher) (*Library, error) {
	p := &mtlParser{lib: &Library{Name: name, Materials: make(map[string]*scene.Material)}}
	if err := scanLines(ctx, data, p.parseLine); err != nil {
		return nil, fmt.Errorf("mtl: %s: %w", name, err)
	}

	cache := texture.NewCache(f)
	for _, d := range p.defs {
		m := d.material()
		if d.mapKd != "" {
			tex, err := cache.Load(ctx, d.mapKd)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				p.warnf("material %s: texture %s: %v", d.name, d.mapKd, err)
			} else {
				m.DiffuseMap = tex
			}
		}
		p.lib.Materials[d.name] = m
		p.lib.Order = append(p.lib.Order, d.name)
	}
	return p.lib, nil
}

func (d *mtlDef) material() *scene.Material {
	return &scene.Material{
		Name:      d.name,
		Diffuse:   toNRGBA(d.diffuse, d.opacity),
		Opacity:   d.opacity,
		Shininess: d.shininess,
	}
}

func toNRGBA(c [3]float64, opacity float64) color.NRGBA {
	return color.NRGBA{
		R: uint8(mathutil.Clamp01(c[0])*255 + 0.5),
		G: uint8(mathutil.Clamp01(c[1])*255 + 0.5),
		B: uint8(mathutil.Clamp01(c[2])*255 + 0.5),
		A: uint8(mathutil.Clamp01(opacity)*255 + 0.5),
	}
}

type mtlParser struct {
	lib     *Library
	defs    []*mtlDef
	current *mtlDef
	line    int
	skipped map[string]bool
}

func (p *mtlParser) warnf(format string, args ...any) {
	p.lib.Warnings = append(p.lib.Warnings, fmt.Sprintf(format, args...))
}

func (p *mtlParser) parseLine(lineNo int, line string) error {
	p.line = lineNo
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	key, args := fields[0], fields[1:]
	if key == "newmtl" {
		if len(args) < 1 {
			return p.errorf("newmtl with no name")
		}
		p.current = newMtlDef(strings.Join(args, " "))
		p.defs = append(p.defs, p.current)
		return nil
	}
	if p.current == nil {
		return p.errorf("%s before newmtl", key)
	}

	var err error
	switch key {
	case "Ka":
		p.current.ambient, err = parseRGB(args)
	case "Kd":
		p.current.diffuse, err = parseRGB(args)
	case "Ks":
		p.current.specular, err = parseRGB(args)
	case "Ke":
		p.current.emissive, err = parseRGB(args)
	case "Ns":
		p.current.shininess, err = parseScalar(args)
	case "Ni":
		p.current.ior, err = parseScalar(args)
	case "d":
		p.current.opacity, err = parseScalar(args)
	case "Tr":
		var tr float64
		tr, err = parseScalar(args)
		p.current.opacity = 1 - tr
	case "illum":
		var v float64
		v, err = parseScalar(args)
		p.current.illum = int(v)
	case "map_Kd":
		p.current.mapKd, err = mapFilename(args)
	default:
		if p.skipped == nil {
			p.skipped = make(map[string]bool)
		}
		if !p.skipped[key] {
			p.skipped[key] = true
			p.warnf("mtl: statement not supported: %s", key)
		}
	}
	if err != nil {
		return p.errorf("%s: %v", key, err)
	}
	return nil
}

func (p *mtlParser) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", p.line, fmt.Sprintf(format, args...))
}

func parseRGB(args []string) ([3]float64, error) {
	var c [3]float64
	if len(args) == 0 {
		return c, fmt.Errorf("missing colour")
	}
	// "Kd spectral ..." and "Kd xyz ..." are not supported
	if _, err := strconv.ParseFloat(args[0], 64); err != nil {
		return c, fmt.Errorf("unsupported colour %q", args[0])
	}
	for i := 0; i < 3; i++ {
		s := args[0]
		if i < len(args) {
			s = args[i]
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return c, err
		}
		c[i] = v
	}
	return c, nil
}

func parseScalar(args []string) (float64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing value")
	}
	return strconv.ParseFloat(args[0], 64)
}

// mapFilename returns the filename of a map_* statement, skipping options
// such as "-s 1 1 1" or "-clamp on". Filenames may contain spaces.
func mapFilename(args []string) (string, error) {
	i := 0
	for i < len(args) && strings.HasPrefix(args[i], "-") {
		i += 1 + optionArgs(args[i])
	}
	if i >= len(args) {
		return "", fmt.Errorf("missing filename")
	}
	return strings.Join(args[i:], " "), nil
}

func optionArgs(opt string) int {
	switch opt {
	case "-o", "-s", "-t":
		return 3
	case "-mm":
		return 2
	case "-blendu", "-blendv", "-cc", "-clamp", "-texres", "-bm", "-boost", "-imfchan", "-type":
		return 1
	}
	return 0
}

// scanLines calls fn for every line of data, 1-based, trimmed. Lines ending in
// a backslash continue on the next line.
func scanLines(ctx context.Context, data []byte, fn func(lineNo int, line string) error) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	var pending strings.Builder
	start := 0
	for sc.Scan() {
		lineNo++
		if lineNo%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		line := strings.TrimSpace(sc.Text())
		if strings.HasSuffix(line, `\`) {
			if pending.Len() == 0 {
				start = lineNo
			}
			pending.WriteString(strings.TrimSuffix(line, `\`))
			pending.WriteByte(' ')
			continue
		}
		n := lineNo
		if pending.Len() > 0 {
			pending.WriteString(line)
			line = pending.String()
			pending.Reset()
			n = start
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if pending.Len() > 0 {
		return fn(start, pending.String())
	}
	return nil
}
