package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Quality is the viewer's render quality setting.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Environments lists the lighting presets the viewer offers.
var Environments = []string{"studio", "sunset", "city", "night", "forest"}

// Viewer holds the interactive viewer settings, used here for stills.
type Viewer struct {
	Quality     Quality `toml:"quality"`
	Environment string  `toml:"environment"`
	Grid        bool    `toml:"grid"`
	AutoRotate  bool    `toml:"auto_rotate"`
	FOV         float64 `toml:"fov"`
	Exposure    float64 `toml:"exposure"`
	EnergySaver bool    `toml:"energy_saver"`
}

// PixelRatio is the device pixel ratio the viewer renders at.
func (v Viewer) PixelRatio() float64 {
	switch {
	case v.EnergySaver:
		return 1
	case v.Quality == QualityHigh:
		return 2
	}
	return 1.5
}

// Capture holds still-capture output settings.
type Capture struct {
	Size        int    `toml:"size"`
	Format      string `toml:"format"` // webp or png
	Supersample int    `toml:"supersample"`
	Margin      int    `toml:"margin"` // percent of the edge left clear, 0-45
	Background  string `toml:"background"` // "transparent" or #rrggbb
}

// Loading holds resource resolution settings.
type Loading struct {
	// AssetDir is searched for references missing from a drop. Empty means
	// such references fail.
	AssetDir string `toml:"asset_dir"`
	Workers  int    `toml:"workers"`
}

// Watch holds drop-directory settings.
type Watch struct {
	Dir        string `toml:"dir"`
	DebounceMS int    `toml:"debounce_ms"`
}

// Debounce is how long the directory must stay quiet before a drop fires.
func (w Watch) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

type Log struct {
	Level string `toml:"level"`
}

// Config holds all configurable paths and settings.
type Config struct {
	Viewer    Viewer  `toml:"viewer"`
	Capture   Capture `toml:"capture"`
	Loading   Loading `toml:"loading"`
	Watch     Watch   `toml:"watch"`
	Log       Log     `toml:"log"`
	OutputDir string  `toml:"output_dir"`

	// BaseDir is the directory relative paths are resolved against: the
	// config file's directory, or the working directory.
	BaseDir string `toml:"-"`
}

// Load reads a TOML config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.BaseDir = filepath.Dir(path)
	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	OutputDir   string
	AssetDir    string
	Environment string
	Quality     string
	Format      string
	Size        int
	Workers     int
	LogLevel    string
}

// Resolve fills in any empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.AssetDir != "" {
		c.Loading.AssetDir = flags.AssetDir
	}
	if flags.Environment != "" {
		c.Viewer.Environment = flags.Environment
	}
	if flags.Quality != "" {
		c.Viewer.Quality = Quality(strings.ToLower(flags.Quality))
	}
	if flags.Format != "" {
		c.Capture.Format = strings.ToLower(flags.Format)
	}
	if flags.Size > 0 {
		c.Capture.Size = flags.Size
	}
	if flags.Workers > 0 {
		c.Loading.Workers = flags.Workers
	}
	if flags.LogLevel != "" {
		c.Log.Level = flags.LogLevel
	}

	if c.BaseDir == "" {
		c.BaseDir, _ = os.Getwd()
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(c.BaseDir, "renders")
	} else if !filepath.IsAbs(c.OutputDir) {
		c.OutputDir = filepath.Join(c.BaseDir, c.OutputDir)
	}
	if c.Loading.AssetDir != "" && !filepath.IsAbs(c.Loading.AssetDir) {
		c.Loading.AssetDir = filepath.Join(c.BaseDir, c.Loading.AssetDir)
	}
	if c.Watch.Dir != "" && !filepath.IsAbs(c.Watch.Dir) {
		c.Watch.Dir = filepath.Join(c.BaseDir, c.Watch.Dir)
	}

	// Viewer defaults
	switch c.Viewer.Quality {
	case QualityLow, QualityMedium, QualityHigh:
	default:
		c.Viewer.Quality = QualityHigh
	}
	if !validEnvironment(c.Viewer.Environment) {
		c.Viewer.Environment = "studio"
	}
	if c.Viewer.FOV <= 0 || c.Viewer.FOV >= 180 {
		c.Viewer.FOV = 45
	}
	if c.Viewer.Exposure <= 0 {
		c.Viewer.Exposure = 1
	}

	// Capture defaults
	if c.Capture.Size <= 0 {
		c.Capture.Size = 512
	}
	c.Capture.Format = strings.ToLower(c.Capture.Format)
	if c.Capture.Format != "png" {
		c.Capture.Format = "webp"
	}
	if c.Capture.Supersample <= 0 {
		c.Capture.Supersample = int(c.Viewer.PixelRatio() + 0.5)
	}
	if c.Capture.Margin < 0 {
		c.Capture.Margin = 0
	}
	if c.Capture.Background == "" {
		c.Capture.Background = "transparent"
	}

	if c.Loading.Workers <= 0 {
		c.Loading.Workers = runtime.NumCPU()
	}
	if c.Watch.DebounceMS <= 0 {
		c.Watch.DebounceMS = 300
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func validEnvironment(name string) bool {
	for _, e := range Environments {
		if e == name {
			return true
		}
	}
	return false
}
