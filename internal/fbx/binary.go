package fbx

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// binaryMagic opens every binary FBX file, followed by 0x1A 0x00 and a
// uint32 version.
const binaryMagic = "Kaydara FBX Binary  \x00"

const binaryHeaderLen = len(binaryMagic) + 2 + 4

var errTruncated = errors.New("unexpected end of data")

// IsBinary reports whether data starts with the binary FBX magic.
func IsBinary(data []byte) bool {
	return bytes.HasPrefix(data, []byte(binaryMagic))
}

// reader is a bounded little-endian reader. The first overrun sets err and
// every later read returns zero.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = errTruncated
		r.off = len(r.data)
		return false
	}
	return true
}

func (r *reader) readBytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) readByte() byte {
	if !r.need(1) {
		return 0
	}
	b := r.data[r.off]
	r.off++
	return b
}

func (r *reader) readI16() int16 {
	if !r.need(2) {
		return 0
	}
	v := int16(binary.LittleEndian.Uint16(r.data[r.off:]))
	r.off += 2
	return v
}

func (r *reader) readU32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *reader) readU64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

func (r *reader) readF32() float32 {
	return math.Float32frombits(r.readU32())
}

func (r *reader) readF64() float64 {
	return math.Float64frombits(r.readU64())
}

// decodeBinary parses a binary FBX file into a root node holding the
// top-level records.
func decodeBinary(data []byte) (*Node, uint32, error) {
	if len(data) < binaryHeaderLen || !IsBinary(data) {
		return nil, 0, errors.New("binary: bad header")
	}
	r := &reader{data: data, off: len(binaryMagic) + 2}
	version := r.readU32()
	wide := version >= 7500

	root := &Node{}
	for r.off < len(r.data) {
		n, end, err := r.readNode(wide)
		if err != nil {
			return nil, 0, err
		}
		if end {
			break
		}
		root.Children = append(root.Children, n)
	}
	return root, version, nil
}

// readNode reads one record and its children. end is true for the null
// record that closes a list.
func (r *reader) readNode(wide bool) (*Node, bool, error) {
	var endOffset, numProps uint64
	if wide {
		endOffset = r.readU64()
		numProps = r.readU64()
		r.readU64() // property list length
	} else {
		endOffset = uint64(r.readU32())
		numProps = uint64(r.readU32())
		r.readU32()
	}
	nameLen := int(r.readByte())
	if r.err != nil {
		return nil, false, fmt.Errorf("binary: record header at %d: %w", r.off, r.err)
	}
	if endOffset == 0 {
		return nil, true, nil
	}
	if endOffset > uint64(len(r.data)) || endOffset < uint64(r.off) {
		return nil, false, fmt.Errorf("binary: record end offset %d out of range", endOffset)
	}

	n := &Node{Name: string(r.readBytes(nameLen))}
	if numProps > uint64(len(r.data)) {
		return nil, false, fmt.Errorf("binary: %s: %d properties", n.Name, numProps)
	}
	n.Props = make([]any, 0, numProps)
	for i := uint64(0); i < numProps; i++ {
		v, err := r.readProperty()
		if err != nil {
			return nil, false, fmt.Errorf("binary: %s property %d: %w", n.Name, i, err)
		}
		n.Props = append(n.Props, v)
	}

	for uint64(r.off) < endOffset {
		c, end, err := r.readNode(wide)
		if err != nil {
			return nil, false, err
		}
		if end {
			break
		}
		n.Children = append(n.Children, c)
	}
	if uint64(r.off) > endOffset {
		return nil, false, fmt.Errorf("binary: %s overruns its end offset", n.Name)
	}
	r.off = int(endOffset)
	return n, false, nil
}

func (r *reader) readProperty() (any, error) {
	typ := r.readByte()
	var v any
	switch typ {
	case 'Y':
		v = int64(r.readI16())
	case 'C':
		v = r.readByte() != 0
	case 'I':
		v = int64(int32(r.readU32()))
	case 'F':
		v = float64(r.readF32())
	case 'D':
		v = r.readF64()
	case 'L':
		v = int64(r.readU64())
	case 'S':
		v = string(r.readBytes(int(r.readU32())))
	case 'R':
		b := r.readBytes(int(r.readU32()))
		v = append([]byte(nil), b...)
	case 'f', 'd', 'l', 'i', 'b':
		return r.readArray(typ)
	default:
		if r.err == nil {
			return nil, fmt.Errorf("unknown property type %q", typ)
		}
	}
	return v, r.err
}

// readArray reads an array property, inflating it when zlib-encoded.
func (r *reader) readArray(typ byte) (any, error) {
	count := int(r.readU32())
	encoding := r.readU32()
	size := int(r.readU32())
	raw := r.readBytes(size)
	if r.err != nil {
		return nil, r.err
	}

	elem := map[byte]int{'f': 4, 'd': 8, 'l': 8, 'i': 4, 'b': 1}[typ]
	if count < 0 || count > math.MaxInt32/elem {
		return nil, fmt.Errorf("array of %d elements", count)
	}
	want := count * elem
	switch encoding {
	case 0:
	case 1:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("array: %w", err)
		}
		buf := make([]byte, want)
		if _, err := io.ReadFull(zr, buf); err != nil {
			return nil, fmt.Errorf("array: inflate: %w", err)
		}
		raw = buf
	default:
		return nil, fmt.Errorf("array: unknown encoding %d", encoding)
	}
	if len(raw) < want {
		return nil, fmt.Errorf("array: %d bytes for %d elements", len(raw), count)
	}

	le := binary.LittleEndian
	switch typ {
	case 'f':
		out := make([]float64, count)
		for i := range out {
			out[i] = float64(math.Float32frombits(le.Uint32(raw[i*4:])))
		}
		return out, nil
	case 'd':
		out := make([]float64, count)
		for i := range out {
			out[i] = math.Float64frombits(le.Uint64(raw[i*8:]))
		}
		return out, nil
	case 'i':
		out := make([]int64, count)
		for i := range out {
			out[i] = int64(int32(le.Uint32(raw[i*4:])))
		}
		return out, nil
	case 'l':
		out := make([]int64, count)
		for i := range out {
			out[i] = int64(le.Uint64(raw[i*8:]))
		}
		return out, nil
	default:
		out := make([]bool, count)
		for i := range out {
			out[i] = raw[i] != 0
		}
		return out, nil
	}
}
