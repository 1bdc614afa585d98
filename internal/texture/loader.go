package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"github.com/h2non/filetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// decoders maps a sniffed file type to its decoder. TGA has no magic
// number, so it is chosen by name or as the last resort.
var decoders = map[string]func(io.Reader) (image.Image, error){
	"png":  png.Decode,
	"jpg":  jpeg.Decode,
	"gif":  gif.Decode,
	"bmp":  bmp.Decode,
	"tif":  tiff.Decode,
	"webp": webp.Decode,
}

// Decode decodes texture bytes (PNG, JPEG, GIF, BMP, TIFF, WebP or TGA) and
// returns an NRGBA image. The format is sniffed from the content; name only
// decides TGA and labels errors.
func Decode(name string, data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("texture: %s: empty", name)
	}
	img, err := decode(name, data)
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", name, err)
	}
	return toNRGBA(img), nil
}

func decode(name string, data []byte) (image.Image, error) {
	if strings.HasSuffix(strings.ToLower(name), ".tga") {
		return tga.Decode(bytes.NewReader(data))
	}
	kind, _ := filetype.Match(data)
	if dec, ok := decoders[kind.Extension]; ok {
		return dec(bytes.NewReader(data))
	}
	// Unrecognised content may still be a TGA under another name.
	img, err := tga.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Join(image.ErrFormat, err)
	}
	return img, nil
}

// toNRGBA converts any image to NRGBA format.
func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	switch src.(type) {
	case *image.YCbCr, *image.Gray:
		// No alpha: draw and force opaque
		draw.Draw(dst, b, src, b.Min, draw.Src)
		for i := 3; i < len(dst.Pix); i += 4 {
			dst.Pix[i] = 255
		}
	default:
		draw.Draw(dst, b, src, b.Min, draw.Src)
	}
	return dst
}
