package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by RendererConfig.Backend.
const (
	BackendWGPU     = "wgpu"
	BackendSoftware = "software"
)

// Log formats accepted by LogConfig.Format.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// MaxLodLevels caps scene.lod_levels. The LOD 0 patch resolution doubles per level.
const MaxLodLevels = 8

// maxConfigSize caps the size of a configuration file read by Load.
const maxConfigSize = 1024 * 1024

var (
	// ErrUnsupportedFormat is returned by Load for a file extension it cannot parse.
	ErrUnsupportedFormat = errors.New("unsupported config format")

	// ErrInvalid wraps every Validate failure.
	ErrInvalid = errors.New("invalid config")
)

// Config is the full application configuration. Every field has a default (see Default)
// so a file only needs to name what it changes.
type Config struct {
	Window   WindowConfig   `yaml:"window" toml:"window"`
	Renderer RendererConfig `yaml:"renderer" toml:"renderer"`
	Culling  CullingConfig  `yaml:"culling" toml:"culling"`
	Lod      LodConfig      `yaml:"lod" toml:"lod"`
	Camera   CameraConfig   `yaml:"camera" toml:"camera"`
	Scene    SceneConfig    `yaml:"scene" toml:"scene"`
	Log      LogConfig      `yaml:"log" toml:"log"`
	Debug    DebugConfig    `yaml:"debug" toml:"debug"`
}

// WindowConfig sizes the GLFW window.
type WindowConfig struct {
	Title  string `yaml:"title" toml:"title"`
	Width  int    `yaml:"width" toml:"width"`
	Height int    `yaml:"height" toml:"height"`
	VSync  bool   `yaml:"vsync" toml:"vsync"`
}

// RendererConfig picks the device backend.
type RendererConfig struct {
	Backend       string `yaml:"backend" toml:"backend"`
	ForceFallback bool   `yaml:"force_fallback" toml:"force_fallback"`
}

// CullingConfig controls the frustum-culling pass and its bounding-box workers.
type CullingConfig struct {
	Enabled   bool `yaml:"enabled" toml:"enabled"`
	Workers   int  `yaml:"workers" toml:"workers"`
	QueueSize int  `yaml:"queue_size" toml:"queue_size"`
}

// LodConfig controls the LOD-selection pass.
type LodConfig struct {
	Enabled    bool `yaml:"enabled" toml:"enabled"`
	BaseVertex bool `yaml:"base_vertex" toml:"base_vertex"`
}

// CameraConfig places the perspective camera. Fov is in degrees.
type CameraConfig struct {
	Fov      float32    `yaml:"fov" toml:"fov"`
	Near     float32    `yaml:"near" toml:"near"`
	Far      float32    `yaml:"far" toml:"far"`
	Position [3]float32 `yaml:"position" toml:"position"`
	Target   [3]float32 `yaml:"target" toml:"target"`
	Orbit    bool       `yaml:"orbit" toml:"orbit"`
}

// SceneConfig shapes the demo grid of meshes.
type SceneConfig struct {
	GridSize     int     `yaml:"grid_size" toml:"grid_size"`
	Spacing      float32 `yaml:"spacing" toml:"spacing"`
	LodThreshold float32 `yaml:"lod_threshold" toml:"lod_threshold"`
	LodLevels    int     `yaml:"lod_levels" toml:"lod_levels"`
}

// LogConfig selects the slog handler installed by the CLI.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DebugConfig binds the diagnostic keys.
type DebugConfig struct {
	ReadbackKey string `yaml:"readback_key" toml:"readback_key"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:  "oxy-draw",
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Renderer: RendererConfig{Backend: BackendWGPU},
		Culling: CullingConfig{
			Enabled:   true,
			Workers:   4,
			QueueSize: 256,
		},
		Lod: LodConfig{Enabled: true},
		Camera: CameraConfig{
			Fov:      60,
			Near:     0.1,
			Far:      500,
			Position: [3]float32{0, 20, 60},
			Orbit:    true,
		},
		Scene: SceneConfig{
			GridSize:     16,
			Spacing:      6,
			LodThreshold: 20,
			LodLevels:    3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatText,
		},
		Debug: DebugConfig{ReadbackKey: "r"},
	}
}

// Load reads path on top of Default. The parser is picked by extension: .yaml and .yml
// are YAML, .toml is TOML. The result is validated before it is returned.
//
// Parameters:
//   - path: the configuration file
//
// Returns:
//   - Config: the loaded configuration
//   - error: a read, parse or validation error, or ErrUnsupportedFormat
func Load(path string) (Config, error) {
	cfg := Default()

	info, err := os.Stat(path)
	if err != nil {
		return cfg, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > maxConfigSize {
		return cfg, fmt.Errorf("config %s is %d bytes, limit is %d", path, info.Size(), maxConfigSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, filepath.Ext(path), &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes data into cfg using the parser for ext. Fields absent from data keep
// the values already in cfg.
//
// Parameters:
//   - data: the raw file contents
//   - ext: the file extension including the dot
//   - cfg: the configuration to decode into
//
// Returns:
//   - error: the decoder's error or ErrUnsupportedFormat
func Parse(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		return toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w %q", ErrUnsupportedFormat, ext)
	}
}

// Validate rejects values the engine cannot run with.
//
// Returns:
//   - error: nil, or an error wrapping ErrInvalid naming the first bad field
func (c Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	case c.Renderer.Backend != BackendWGPU && c.Renderer.Backend != BackendSoftware:
		return fmt.Errorf("%w: renderer.backend %q", ErrInvalid, c.Renderer.Backend)
	case c.Culling.Workers <= 0:
		return fmt.Errorf("%w: culling.workers %d", ErrInvalid, c.Culling.Workers)
	case c.Culling.QueueSize <= 0:
		return fmt.Errorf("%w: culling.queue_size %d", ErrInvalid, c.Culling.QueueSize)
	case c.Camera.Fov <= 0 || c.Camera.Fov >= 180:
		return fmt.Errorf("%w: camera.fov %g", ErrInvalid, c.Camera.Fov)
	case c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near:
		return fmt.Errorf("%w: camera near %g far %g", ErrInvalid, c.Camera.Near, c.Camera.Far)
	case c.Scene.GridSize <= 0:
		return fmt.Errorf("%w: scene.grid_size %d", ErrInvalid, c.Scene.GridSize)
	case c.Scene.LodThreshold <= 0:
		return fmt.Errorf("%w: scene.lod_threshold %g", ErrInvalid, c.Scene.LodThreshold)
	case c.Scene.Spacing <= 0:
		return fmt.Errorf("%w: scene.spacing %g", ErrInvalid, c.Scene.Spacing)
	case c.Scene.LodLevels <= 0 || c.Scene.LodLevels > MaxLodLevels:
		return fmt.Errorf("%w: scene.lod_levels %d (1..%d)", ErrInvalid, c.Scene.LodLevels, MaxLodLevels)
	case c.Log.Format != LogFormatText && c.Log.Format != LogFormatJSON:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, ok := common.KeyByName[strings.ToLower(c.Debug.ReadbackKey)]; !ok {
		return fmt.Errorf("%w: debug.readback_key %q", ErrInvalid, c.Debug.ReadbackKey)
	}
	return nil
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
//
// Returns:
//   - slog.Level: the parsed level
//   - error: the parse error for an unknown name
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return level, nil
}

// ReadbackKeyCode returns the key code bound to the indirect-buffer dump.
func (d DebugConfig) ReadbackKeyCode() int {
	return common.KeyByName[strings.ToLower(d.ReadbackKey)]
}
