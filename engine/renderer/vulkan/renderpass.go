package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

func attachment(info driver.AttachmentInfo) vk.AttachmentDescription {
	return vk.AttachmentDescription{
		Format:         vk.Format(info.Format),
		Samples:        vk.SampleCountFlagBits(max(info.Samples, driver.SampleCount1)),
		LoadOp:         vk.AttachmentLoadOp(info.Load),
		StoreOp:        vk.AttachmentStoreOp(info.Store),
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayout(info.InitialLayout),
		FinalLayout:    vk.ImageLayout(info.FinalLayout),
	}
}

// CreateRenderPass builds a single subpass pass. Attachment 0 is color, 1 is
// depth when present.
func (d *Driver) CreateRenderPass(info driver.RenderPassInfo) (driver.RenderPass, error) {
	attachments := []vk.AttachmentDescription{attachment(info.Color)}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
	}

	srcStage := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	dstStage := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	dstAccess := vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit)

	if info.Depth != nil {
		attachments = append(attachments, attachment(*info.Depth))
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		srcStage |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		dstStage |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		dstAccess |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  srcStage,
		DstStageMask:  dstStage,
		DstAccessMask: dstAccess,
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pass vk.RenderPass
	if err := check(vk.CreateRenderPass(d.device, &createInfo, d.allocator, &pass), "vkCreateRenderPass"); err != nil {
		return 0, err
	}
	return driver.RenderPass(d.renderPasses.put(pass)), nil
}

func (d *Driver) DestroyRenderPass(id driver.RenderPass) {
	if pass, ok := d.renderPasses.take(uint64(id)); ok {
		vk.DestroyRenderPass(d.device, pass, d.allocator)
	}
}

func (d *Driver) CreateFramebuffer(info driver.FramebufferInfo) (driver.Framebuffer, error) {
	views := make([]vk.ImageView, len(info.Attachments))
	for i, v := range info.Attachments {
		views[i] = d.views.get(uint64(v))
	}
	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      d.renderPasses.get(uint64(info.RenderPass)),
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           info.Width,
		Height:          info.Height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if err := check(vk.CreateFramebuffer(d.device, &createInfo, d.allocator, &fb), "vkCreateFramebuffer"); err != nil {
		return 0, err
	}
	return driver.Framebuffer(d.framebuffers.put(fb)), nil
}

func (d *Driver) DestroyFramebuffer(id driver.Framebuffer) {
	if fb, ok := d.framebuffers.take(uint64(id)); ok {
		vk.DestroyFramebuffer(d.device, fb, d.allocator)
	}
}

func (d *Driver) CmdBeginRenderPass(cb driver.CommandBuffer, begin driver.RenderPassBegin) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  d.renderPasses.get(uint64(begin.RenderPass)),
		Framebuffer: d.framebuffers.get(uint64(begin.Framebuffer)),
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: begin.Area.X, Y: begin.Area.Y},
			Extent: vk.Extent2D{Width: begin.Area.Width, Height: begin.Area.Height},
		},
	}

	// Index 0 clears color, any further value clears depth and stencil.
	clearValues := make([]vk.ClearValue, len(begin.ClearValues))
	for i, c := range begin.ClearValues {
		if i == 0 {
			clearValues[i].SetColor(c.Color[:])
			continue
		}
		clearValues[i].SetDepthStencil(c.Depth, c.Stencil)
	}
	beginInfo.ClearValueCount = uint32(len(clearValues))
	beginInfo.PClearValues = clearValues

	vk.CmdBeginRenderPass(d.commandBuffers.get(uint64(cb)).handle, &beginInfo, vk.SubpassContentsInline)
}

func (d *Driver) CmdEndRenderPass(cb driver.CommandBuffer) {
	vk.CmdEndRenderPass(d.commandBuffers.get(uint64(cb)).handle)
}
