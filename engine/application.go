package engine

import (
	"github.com/spaghettifunk/purrfect/engine/renderer"
)

// rendererOptions turns the configuration into renderer.Options. Shader
// names are resolved through shaders.
func (c *Config) rendererOptions(shaders renderer.ShaderSource) (renderer.Options, error) {
	features, err := c.Renderer.Features()
	if err != nil {
		return renderer.Options{}, err
	}
	return renderer.Options{
		Context: renderer.ContextOptions{
			AppName:    c.Window.Name,
			Validation: c.Renderer.Validation,
			Device: renderer.DeviceRequirements{
				Features:   features,
				Extensions: c.Renderer.Extensions,
			},
		},
		VSync:          c.Renderer.VSync,
		VertexShader:   c.Renderer.ShaderVertex,
		FragmentShader: c.Renderer.ShaderFragment,
		Shaders:        shaders,
		ClearColor:     c.Renderer.ClearColor,
	}, nil
}

// usesShader reports whether name is one of the main pass shaders.
func (c *Config) usesShader(name string) bool {
	return name == c.Renderer.ShaderVertex || name == c.Renderer.ShaderFragment
}
