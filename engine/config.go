package engine

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

type WindowConfig struct {
	Name   string `toml:"name"`
	X      uint32 `toml:"x"`
	Y      uint32 `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	VSync      bool `toml:"vsync"`
	Validation bool `toml:"validation"`
	// Shader paths are asset names, relative to the asset directory.
	ShaderVertex     string     `toml:"shader_vertex"`
	ShaderFragment   string     `toml:"shader_fragment"`
	RequiredFeatures []string   `toml:"required_features"`
	Extensions       []string   `toml:"extensions"`
	ClearColor       [4]float32 `toml:"clear_color"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type AssetsConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

// Config is the content of purrfect.toml.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Log      LogConfig      `toml:"log"`
	Assets   AssetsConfig   `toml:"assets"`
}

func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Name:   "Purrfect",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			VSync:            true,
			ShaderVertex:     "shaders/present.vert.spv",
			ShaderFragment:   "shaders/present.frag.spv",
			RequiredFeatures: []string{"samplerAnisotropy"},
			ClearColor:       [4]float32{0, 0, 0, 1},
		},
		Log: LogConfig{
			Level: "info",
		},
		Assets: AssetsConfig{
			Dir:   "assets",
			Watch: true,
		},
	}
}

// LoadConfig reads path over DefaultConfig, so missing keys keep their
// default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config '%s'", path)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config '%s'", path)
	}
	if cfg.Window.Width == 0 || cfg.Window.Height == 0 {
		return nil, errors.Newf("window size %dx%d is empty", cfg.Window.Width, cfg.Window.Height)
	}
	if _, err := cfg.Renderer.Features(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) LogLevel() core.LogLevel {
	return core.ParseLogLevel(c.Log.Level)
}

// Features maps the configured feature names onto driver.DeviceFeatures.
func (c RendererConfig) Features() (driver.DeviceFeatures, error) {
	var f driver.DeviceFeatures
	for _, name := range c.RequiredFeatures {
		switch name {
		case "geometryShader":
			f.GeometryShader = true
		case "samplerAnisotropy":
			f.SamplerAnisotropy = true
		case "fillModeNonSolid":
			f.FillModeNonSolid = true
		case "sampleRateShading":
			f.SampleRateShading = true
		default:
			return f, errors.Newf("unknown device feature '%s'", name)
		}
	}
	return f, nil
}
