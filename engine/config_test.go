package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/purrfect/engine/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "purrfect.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
[window]
name = "Sandbox"
width = 800

[renderer]
vsync = false
clear_color = [0.1, 0.2, 0.3, 1.0]

[log]
level = "debug"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	def := DefaultConfig()

	if cfg.Window.Name != "Sandbox" || cfg.Window.Width != 800 {
		t.Errorf("window = %+v", cfg.Window)
	}
	if cfg.Window.Height != def.Window.Height {
		t.Errorf("height = %d, want default %d", cfg.Window.Height, def.Window.Height)
	}
	if cfg.Renderer.VSync {
		t.Error("vsync still on")
	}
	if cfg.Renderer.ShaderVertex != def.Renderer.ShaderVertex {
		t.Errorf("vertex shader = %q, want default", cfg.Renderer.ShaderVertex)
	}
	if cfg.Renderer.ClearColor != [4]float32{0.1, 0.2, 0.3, 1.0} {
		t.Errorf("clear color = %v", cfg.Renderer.ClearColor)
	}
	if cfg.LogLevel() != core.DebugLevel {
		t.Errorf("log level = %v, want debug", cfg.LogLevel())
	}
	if !cfg.Assets.Watch || cfg.Assets.Dir != "assets" {
		t.Errorf("assets = %+v", cfg.Assets)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty window", "[window]\nheight = 0\n"},
		{"unknown feature", "[renderer]\nrequired_features = [\"rayTracing\"]\n"},
		{"bad toml", "[window\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("LoadConfig succeeded")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("LoadConfig of a missing file succeeded")
	}
}

func TestRendererFeatures(t *testing.T) {
	c := RendererConfig{RequiredFeatures: []string{"samplerAnisotropy", "fillModeNonSolid"}}
	f, err := c.Features()
	if err != nil {
		t.Fatal(err)
	}
	if !f.SamplerAnisotropy || !f.FillModeNonSolid || f.GeometryShader {
		t.Errorf("features = %+v", f)
	}
}

func TestRendererOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Renderer.Extensions = []string{"VK_KHR_maintenance1"}
	opts, err := cfg.rendererOptions(func(string) ([]byte, error) { return nil, nil })
	if err != nil {
		t.Fatal(err)
	}
	if opts.Context.AppName != cfg.Window.Name || !opts.VSync {
		t.Errorf("options = %+v", opts)
	}
	if !opts.Context.Device.Features.SamplerAnisotropy {
		t.Error("samplerAnisotropy not requested")
	}
	if len(opts.Context.Device.Extensions) != 1 || opts.Shaders == nil {
		t.Errorf("device = %+v", opts.Context.Device)
	}
	if !cfg.usesShader("shaders/present.frag.spv") || cfg.usesShader("shaders/skybox.frag.spv") {
		t.Error("usesShader mismatch")
	}
}
