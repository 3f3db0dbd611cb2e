package vulkan

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

const spirvMagic = 0x07230203

// CreateShaderModule takes a SPIR-V binary as read from disk.
func (d *Driver) CreateShaderModule(code []byte) (driver.ShaderModule, error) {
	createInfo, err := shaderModuleInfo(code)
	if err != nil {
		return 0, err
	}
	var module vk.ShaderModule
	if err := check(vk.CreateShaderModule(d.device, &createInfo, d.allocator, &module), "vkCreateShaderModule"); err != nil {
		return 0, err
	}
	return driver.ShaderModule(d.shaders.put(module)), nil
}

// shaderModuleInfo repacks code into words. CodeSize stays in bytes.
func shaderModuleInfo(code []byte) (vk.ShaderModuleCreateInfo, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return vk.ShaderModuleCreateInfo{}, errors.Newf("shader code size %d is not a multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return vk.ShaderModuleCreateInfo{}, errors.New("shader code is not little endian SPIR-V")
	}
	return vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}, nil
}

func (d *Driver) DestroyShaderModule(id driver.ShaderModule) {
	if module, ok := d.shaders.take(uint64(id)); ok {
		vk.DestroyShaderModule(d.device, module, d.allocator)
	}
}

func (d *Driver) CreatePipelineLayout(info driver.PipelineLayoutInfo) (driver.PipelineLayout, error) {
	// NOTE: 128 bytes is all the push constant space a device must offer.
	const maxPushConstantRanges = 32
	if len(info.PushConstants) > maxPushConstantRanges {
		return 0, errors.Newf("cannot have more than %d push constant ranges, got %d", maxPushConstantRanges, len(info.PushConstants))
	}

	setLayouts := make([]vk.DescriptorSetLayout, len(info.SetLayouts))
	for i, l := range info.SetLayouts {
		setLayouts[i] = d.setLayouts.get(uint64(l))
	}
	ranges := make([]vk.PushConstantRange, len(info.PushConstants))
	for i, r := range info.PushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}

	createInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var layout vk.PipelineLayout
	if err := check(vk.CreatePipelineLayout(d.device, &createInfo, d.allocator, &layout), "vkCreatePipelineLayout"); err != nil {
		return 0, err
	}
	return driver.PipelineLayout(d.pipelineLayouts.put(layout)), nil
}

func (d *Driver) DestroyPipelineLayout(id driver.PipelineLayout) {
	if layout, ok := d.pipelineLayouts.take(uint64(id)); ok {
		vk.DestroyPipelineLayout(d.device, layout, d.allocator)
	}
}

// CreateGraphicsPipeline builds a pipeline with no vertex input and a dynamic
// viewport and scissor.
func (d *Driver) CreateGraphicsPipeline(info driver.PipelineInfo) (driver.Pipeline, error) {
	stages := make([]vk.PipelineShaderStageCreateInfo, len(info.Stages))
	for i, s := range info.Stages {
		entry := s.Entry
		if entry == "" {
			entry = "main"
		}
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(s.Stage),
			Module: d.shaders.get(uint64(s.Module)),
			PName:  safeString(entry),
		}
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	switch info.CullMode {
	case driver.CullModeNone:
		rasterizer.CullMode = vk.CullModeFlags(vk.CullModeNone)
	case driver.CullModeFront:
		rasterizer.CullMode = vk.CullModeFlags(vk.CullModeFrontBit)
	default:
		rasterizer.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCountFlagBits(max(info.Samples, driver.SampleCount1)),
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   boolean(info.DepthTest),
		DepthWriteEnable:  boolean(info.DepthWrite),
		StencilTestEnable: vk.False,
	}
	if info.DepthTest {
		depthStencil.DepthCompareOp = vk.CompareOpLessOrEqual
	}

	blendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         boolean(info.BlendEnable),
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              d.pipelineLayouts.get(uint64(info.Layout)),
		RenderPass:          d.renderPasses.get(uint64(info.RenderPass)),
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := check(vk.CreateGraphicsPipelines(d.device, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{createInfo}, d.allocator, pipelines), "vkCreateGraphicsPipelines"); err != nil {
		return 0, err
	}
	if pipelines[0] == nil {
		return 0, errors.New("vulkan pipeline handle is nil")
	}
	core.LogDebug("Graphics pipeline created.")
	return driver.Pipeline(d.pipelines.put(pipelines[0])), nil
}

func (d *Driver) DestroyPipeline(id driver.Pipeline) {
	if pipeline, ok := d.pipelines.take(uint64(id)); ok {
		vk.DestroyPipeline(d.device, pipeline, d.allocator)
	}
}

func (d *Driver) CmdBindPipeline(cb driver.CommandBuffer, pipeline driver.Pipeline) {
	vk.CmdBindPipeline(d.commandBuffers.get(uint64(cb)).handle, vk.PipelineBindPointGraphics, d.pipelines.get(uint64(pipeline)))
}

func (d *Driver) CmdPushConstants(cb driver.CommandBuffer, layout driver.PipelineLayout, stages driver.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(d.commandBuffers.get(uint64(cb)).handle, d.pipelineLayouts.get(uint64(layout)),
		vk.ShaderStageFlags(stages), offset, uint32(len(data)), unsafePointer(data))
}
