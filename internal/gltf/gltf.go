// Package gltf loads glTF 2.0 scenes, both .gltf (JSON with external or
// embedded buffers) and .glb (binary container).
//
// Documents are decoded into github.com/qmuntal/gltf types and vertex data is
// read with its modeler package. Every external buffer and image goes through
// the caller's Fetcher, so references resolve against dropped files.
package gltf

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	gltflib "github.com/qmuntal/gltf"

	"dropview/internal/texture"
)

const (
	glbMagic     = 0x46546C67 // "glTF"
	chunkJSON    = 0x4E4F534A // "JSON"
	chunkBIN     = 0x004E4942 // "BIN\0"
	glbHeaderLen = 12
)

// IsBinary reports whether data is a GLB container.
func IsBinary(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == glbMagic
}

// splitGLB returns the JSON and BIN chunks of a GLB container. bin is nil
// when the container has no BIN chunk.
func splitGLB(data []byte) (jsonChunk, bin []byte, err error) {
	if len(data) < glbHeaderLen+8 {
		return nil, nil, errors.New("glb: truncated header")
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != 2 {
		return nil, nil, fmt.Errorf("glb: unsupported container version %d", v)
	}
	total := int(binary.LittleEndian.Uint32(data[8:]))
	if total > len(data) {
		return nil, nil, fmt.Errorf("glb: header declares %d bytes, have %d", total, len(data))
	}
	off := glbHeaderLen
	for off+8 <= total {
		n := int(binary.LittleEndian.Uint32(data[off:]))
		typ := binary.LittleEndian.Uint32(data[off+4:])
		off += 8
		if n < 0 || off+n > total {
			return nil, nil, fmt.Errorf("glb: chunk of %d bytes overruns container", n)
		}
		switch typ {
		case chunkJSON:
			if jsonChunk == nil {
				jsonChunk = data[off : off+n]
			}
		case chunkBIN:
			if bin == nil {
				bin = data[off : off+n]
			}
		}
		off += n
	}
	if jsonChunk == nil {
		return nil, nil, errors.New("glb: missing JSON chunk")
	}
	return jsonChunk, bin, nil
}

// decodeDocument parses the JSON part of a glTF file and loads every buffer.
func decodeDocument(ctx context.Context, data []byte, f texture.Fetcher) (*gltflib.Document, error) {
	raw := data
	var bin []byte
	if IsBinary(data) {
		var err error
		if raw, bin, err = splitGLB(data); err != nil {
			return nil, err
		}
	}

	doc := new(gltflib.Document)
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(doc); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2") {
		return nil, fmt.Errorf("unsupported asset version %q", doc.Asset.Version)
	}
	if err := checkDocument(doc); err != nil {
		return nil, err
	}

	for i, b := range doc.Buffers {
		if len(b.Data) > 0 {
			continue
		}
		switch {
		case b.URI == "":
			if i != 0 || bin == nil {
				return nil, fmt.Errorf("buffer %d has no uri and no GLB binary chunk", i)
			}
			b.Data = bin
		case isDataURI(b.URI):
			d, err := decodeDataURI(b.URI)
			if err != nil {
				return nil, fmt.Errorf("buffer %d: %w", i, err)
			}
			b.Data = d
		default:
			// Fetch errors are already typed as missing references.
			d, err := f.Fetch(ctx, unescape(b.URI))
			if err != nil {
				return nil, err
			}
			b.Data = d
		}
		if len(b.Data) < int(b.ByteLength) {
			return nil, fmt.Errorf("buffer %d: %d bytes, byteLength is %d", i, len(b.Data), b.ByteLength)
		}
	}
	return doc, nil
}

func isDataURI(uri string) bool {
	return strings.HasPrefix(uri, "data:")
}

// decodeDataURI decodes a base64 data URI.
func decodeDataURI(uri string) ([]byte, error) {
	head, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasSuffix(head, ";base64") {
		return nil, errors.New("data uri is not base64")
	}
	d, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("data uri: %w", err)
	}
	return d, nil
}

func unescape(uri string) string {
	if u, err := url.PathUnescape(uri); err == nil {
		return u
	}
	return uri
}

// bufferViewBytes returns the bytes a buffer view covers.
func bufferViewBytes(doc *gltflib.Document, index int) ([]byte, error) {
	if index < 0 || index >= len(doc.BufferViews) {
		return nil, fmt.Errorf("bufferView %d out of range", index)
	}
	bv := doc.BufferViews[index]
	if int(bv.Buffer) < 0 || int(bv.Buffer) >= len(doc.Buffers) {
		return nil, fmt.Errorf("bufferView %d: buffer %d out of range", index, bv.Buffer)
	}
	data := doc.Buffers[bv.Buffer].Data
	start, end := int(bv.ByteOffset), int(bv.ByteOffset)+int(bv.ByteLength)
	if start < 0 || end > len(data) {
		return nil, fmt.Errorf("bufferView %d overruns buffer %d", index, bv.Buffer)
	}
	return data[start:end], nil
}
