// Package capture produces still images of loaded scenes: the offline
// counterpart of the viewer's high-resolution capture.
package capture

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"

	"dropview/internal/config"
	"dropview/internal/postprocess"
	"dropview/internal/raster"
	"dropview/internal/scene"
	"dropview/internal/viewmatrix"
)

// Format is an output image encoding.
type Format string

const (
	WebP Format = "webp"
	PNG  Format = "png"
)

// Ext is the file extension for f, with the dot.
func (f Format) Ext() string {
	if f == PNG {
		return ".png"
	}
	return ".webp"
}

// Options controls one capture.
type Options struct {
	Size        int
	Supersample int
	Margin      float64 // fraction of Size left clear around the model
	Format      Format
	Camera      viewmatrix.Camera
	Light       raster.LightConfig

	// Background is painted behind the model when Opaque is set; otherwise
	// the image keeps its alpha channel.
	Background color.NRGBA
	Opaque     bool
}

// DefaultOptions is a size×size WebP from the viewer's starting camera in
// the studio environment.
func DefaultOptions(size int) Options {
	return Options{
		Size:        size,
		Supersample: 1,
		Format:      WebP,
		Camera:      viewmatrix.Default(viewmatrix.DefaultFOV),
		Light:       raster.DefaultLightConfig(),
	}
}

// OptionsFrom derives capture options from resolved configuration.
func OptionsFrom(cfg config.Config) (Options, error) {
	light, err := raster.Preset(cfg.Viewer.Environment)
	if err != nil {
		return Options{}, fmt.Errorf("capture: %w", err)
	}
	light.Exposure *= cfg.Viewer.Exposure

	bg, opaque, err := postprocess.ParseBackground(cfg.Capture.Background)
	if err != nil {
		return Options{}, fmt.Errorf("capture: %w", err)
	}

	opts := Options{
		Size:        cfg.Capture.Size,
		Supersample: cfg.Capture.Supersample,
		Margin:      float64(cfg.Capture.Margin) / 100,
		Format:      Format(strings.ToLower(cfg.Capture.Format)),
		Camera:      viewmatrix.Default(cfg.Viewer.FOV),
		Light:       light,
		Background:  bg,
		Opaque:      opaque,
	}
	if opts.Format != PNG {
		opts.Format = WebP
	}
	return opts, nil
}

// Image renders res to a finished Size×Size image.
func Image(res *scene.Result, opts Options) *image.NRGBA {
	ss := max(opts.Supersample, 1)
	img := raster.Render(res, raster.Options{
		Size:        opts.Size,
		Supersample: ss,
		Camera:      opts.Camera,
		Light:       opts.Light,
	})
	if ss > 1 {
		img = postprocess.Downsample(img, opts.Size)
	}
	img = postprocess.Frame(img, opts.Size, opts.Margin)
	if opts.Opaque {
		img = postprocess.Flatten(img, opts.Background)
	}
	return img
}

// Encode writes img in format f. WebP output is lossless.
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case PNG:
		return png.Encode(w, img)
	case WebP, "":
		return nativewebp.Encode(w, img, nil)
	}
	return fmt.Errorf("capture: unknown format %q", f)
}

// WriteFile renders res and writes it to path, creating parent directories.
func WriteFile(path string, res *scene.Result, opts Options) error {
	img := Image(res, opts)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := Encode(w, img, opts.Format); err != nil {
		f.Close()
		return fmt.Errorf("capture: encode %s: %w", filepath.Base(path), err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("capture: %w", err)
	}
	return f.Close()
}
