package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

// ShaderSource returns compiled SPIR-V for a shader path. Blobs are opaque:
// nothing is validated beyond a successful load.
type ShaderSource func(path string) ([]byte, error)

// PipelineDesc describes a graphics pipeline without vertex input. Geometry
// comes from the vertex index, so a fullscreen quad is Draw(6).
type PipelineDesc struct {
	VertexShader   string
	FragmentShader string
	Shaders        ShaderSource

	RenderPass    driver.RenderPass
	SetLayouts    []driver.DescriptorSetLayout
	PushConstants []driver.PushConstantRange

	Samples     driver.SampleCount
	CullMode    driver.CullMode
	DepthTest   bool
	DepthWrite  bool
	BlendEnable bool
}

type Pipeline struct {
	ctx    *Context
	handle driver.Pipeline
	layout driver.PipelineLayout
}

func NewPipeline(ctx *Context, desc PipelineDesc) (*Pipeline, error) {
	if desc.Shaders == nil {
		return nil, errors.New("pipeline needs a shader source")
	}
	drv := ctx.drv

	var modules []driver.ShaderModule
	defer func() {
		// Modules are only needed while the pipeline is built.
		for _, m := range modules {
			drv.DestroyShaderModule(m)
		}
	}()

	stages := []struct {
		stage driver.ShaderStage
		path  string
	}{
		{driver.ShaderStageVertex, desc.VertexShader},
		{driver.ShaderStageFragment, desc.FragmentShader},
	}
	infos := make([]driver.ShaderStageInfo, 0, len(stages))
	for _, s := range stages {
		code, err := desc.Shaders(s.path)
		if err != nil {
			return nil, errors.Wrapf(err, "load shader '%s'", s.path)
		}
		module, err := drv.CreateShaderModule(code)
		if err != nil {
			return nil, errors.Wrapf(err, "create shader module '%s'", s.path)
		}
		modules = append(modules, module)
		infos = append(infos, driver.ShaderStageInfo{Stage: s.stage, Module: module, Entry: "main"})
	}

	layout, err := drv.CreatePipelineLayout(driver.PipelineLayoutInfo{
		SetLayouts:    desc.SetLayouts,
		PushConstants: desc.PushConstants,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline layout")
	}

	samples := desc.Samples
	if samples == 0 {
		samples = driver.SampleCount1
	}
	handle, err := drv.CreateGraphicsPipeline(driver.PipelineInfo{
		Stages:      infos,
		Layout:      layout,
		RenderPass:  desc.RenderPass,
		Samples:     samples,
		CullMode:    desc.CullMode,
		DepthTest:   desc.DepthTest,
		DepthWrite:  desc.DepthWrite,
		BlendEnable: desc.BlendEnable,
	})
	if err != nil {
		drv.DestroyPipelineLayout(layout)
		return nil, errors.Wrap(err, "create graphics pipeline")
	}

	return &Pipeline{ctx: ctx, handle: handle, layout: layout}, nil
}

func (p *Pipeline) Bind(cb driver.CommandBuffer) {
	p.ctx.drv.CmdBindPipeline(cb, p.handle)
}

func (p *Pipeline) Handle() driver.Pipeline {
	return p.handle
}

func (p *Pipeline) Layout() driver.PipelineLayout {
	return p.layout
}

func (p *Pipeline) Destroy() {
	if p.handle != 0 {
		p.ctx.drv.DestroyPipeline(p.handle)
		p.handle = 0
	}
	if p.layout != 0 {
		p.ctx.drv.DestroyPipelineLayout(p.layout)
		p.layout = 0
	}
}
