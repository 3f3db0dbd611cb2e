package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

func (d *Driver) CreateCommandPool(family uint32, transient bool) (driver.CommandPool, error) {
	createInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if transient {
		createInfo.Flags |= vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit)
	}
	var pool vk.CommandPool
	if err := check(vk.CreateCommandPool(d.device, &createInfo, d.allocator, &pool), "vkCreateCommandPool"); err != nil {
		return 0, err
	}
	return driver.CommandPool(d.commandPools.put(pool)), nil
}

// DestroyCommandPool frees every command buffer still allocated from it.
func (d *Driver) DestroyCommandPool(id driver.CommandPool) {
	pool, ok := d.commandPools.take(uint64(id))
	if !ok {
		return
	}
	for cbID, cb := range d.commandBuffers.items {
		if cb.pool == pool {
			delete(d.commandBuffers.items, cbID)
		}
	}
	vk.DestroyCommandPool(d.device, pool, d.allocator)
}

func (d *Driver) AllocateCommandBuffers(id driver.CommandPool, count uint32) ([]driver.CommandBuffer, error) {
	pool, ok := d.commandPools.lookup(uint64(id))
	if !ok {
		return nil, errors.Wrapf(driver.ErrInvalidHandle, "command pool %d", id)
	}
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}
	handles := make([]vk.CommandBuffer, count)
	if err := check(vk.AllocateCommandBuffers(d.device, &allocateInfo, handles), "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}
	out := make([]driver.CommandBuffer, count)
	for i, h := range handles {
		out[i] = driver.CommandBuffer(d.commandBuffers.put(commandBuffer{handle: h, pool: pool}))
	}
	return out, nil
}

func (d *Driver) FreeCommandBuffers(id driver.CommandPool, buffers []driver.CommandBuffer) {
	pool, ok := d.commandPools.lookup(uint64(id))
	if !ok {
		return
	}
	handles := make([]vk.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		if cb, ok := d.commandBuffers.take(uint64(b)); ok {
			handles = append(handles, cb.handle)
		}
	}
	if len(handles) == 0 {
		return
	}
	vk.FreeCommandBuffers(d.device, pool, uint32(len(handles)), handles)
}

func (d *Driver) commandBuffer(id driver.CommandBuffer) (vk.CommandBuffer, error) {
	cb, ok := d.commandBuffers.lookup(uint64(id))
	if !ok {
		return nil, errors.Wrapf(driver.ErrInvalidHandle, "command buffer %d", id)
	}
	return cb.handle, nil
}

func (d *Driver) ResetCommandBuffer(id driver.CommandBuffer) error {
	cb, err := d.commandBuffer(id)
	if err != nil {
		return err
	}
	return check(vk.ResetCommandBuffer(cb, 0), "vkResetCommandBuffer")
}

func (d *Driver) BeginCommandBuffer(id driver.CommandBuffer, oneTimeSubmit bool) error {
	cb, err := d.commandBuffer(id)
	if err != nil {
		return err
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTimeSubmit {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return check(vk.BeginCommandBuffer(cb, &beginInfo), "vkBeginCommandBuffer")
}

func (d *Driver) EndCommandBuffer(id driver.CommandBuffer) error {
	cb, err := d.commandBuffer(id)
	if err != nil {
		return err
	}
	return check(vk.EndCommandBuffer(cb), "vkEndCommandBuffer")
}

func (d *Driver) CmdSetViewport(cb driver.CommandBuffer, viewport driver.Viewport) {
	vk.CmdSetViewport(d.commandBuffers.get(uint64(cb)).handle, 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

func (d *Driver) CmdSetScissor(cb driver.CommandBuffer, scissor driver.Rect) {
	vk.CmdSetScissor(d.commandBuffers.get(uint64(cb)).handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: scissor.X, Y: scissor.Y},
		Extent: vk.Extent2D{Width: scissor.Width, Height: scissor.Height},
	}})
}

func (d *Driver) CmdDraw(cb driver.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(d.commandBuffers.get(uint64(cb)).handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (d *Driver) CmdPipelineBarrier(cb driver.CommandBuffer, barrier driver.ImageBarrier) {
	barriers := []vk.ImageMemoryBarrier{{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(barrier.SrcAccess),
		DstAccessMask:       vk.AccessFlags(barrier.DstAccess),
		OldLayout:           vk.ImageLayout(barrier.OldLayout),
		NewLayout:           vk.ImageLayout(barrier.NewLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               d.imageHandle(barrier.Image),
		SubresourceRange:    subresourceRange(barrier.Range),
	}}
	vk.CmdPipelineBarrier(d.commandBuffers.get(uint64(cb)).handle,
		vk.PipelineStageFlags(barrier.SrcStage), vk.PipelineStageFlags(barrier.DstStage),
		0, 0, nil, 0, nil, 1, barriers)
}

func (d *Driver) imageHandle(id driver.Image) vk.Image {
	if img, ok := d.images.lookup(uint64(id)); ok {
		return img.handle
	}
	return nil
}

func (d *Driver) bufferHandle(id driver.Buffer) vk.Buffer {
	if buf, ok := d.buffers.lookup(uint64(id)); ok {
		return buf.handle
	}
	return nil
}

func bufferImageCopies(regions []driver.BufferImageCopy) []vk.BufferImageCopy {
	out := make([]vk.BufferImageCopy, len(regions))
	for i, r := range regions {
		out[i] = vk.BufferImageCopy{
			BufferOffset:      vk.DeviceSize(r.BufferOffset),
			BufferRowLength:   0,
			BufferImageHeight: 0,
			ImageSubresource:  subresourceLayers(r.Subresource),
			ImageOffset:       vk.Offset3D{X: r.Offset.X, Y: r.Offset.Y, Z: r.Offset.Z},
			ImageExtent:       vk.Extent3D{Width: r.Extent.Width, Height: r.Extent.Height, Depth: 1},
		}
	}
	return out
}

// CmdCopyBufferToImage expects dst in TRANSFER_DST_OPTIMAL.
func (d *Driver) CmdCopyBufferToImage(cb driver.CommandBuffer, src driver.Buffer, dst driver.Image, regions []driver.BufferImageCopy) {
	copies := bufferImageCopies(regions)
	vk.CmdCopyBufferToImage(d.commandBuffers.get(uint64(cb)).handle, d.bufferHandle(src), d.imageHandle(dst),
		vk.ImageLayoutTransferDstOptimal, uint32(len(copies)), copies)
}

// CmdCopyImageToBuffer expects src in TRANSFER_SRC_OPTIMAL.
func (d *Driver) CmdCopyImageToBuffer(cb driver.CommandBuffer, src driver.Image, dst driver.Buffer, regions []driver.BufferImageCopy) {
	copies := bufferImageCopies(regions)
	vk.CmdCopyImageToBuffer(d.commandBuffers.get(uint64(cb)).handle, d.imageHandle(src),
		vk.ImageLayoutTransferSrcOptimal, d.bufferHandle(dst), uint32(len(copies)), copies)
}

func (d *Driver) CmdCopyImage(cb driver.CommandBuffer, src, dst driver.Image, region driver.ImageCopy) {
	regions := []vk.ImageCopy{{
		SrcSubresource: subresourceLayers(region.Src),
		SrcOffset:      vk.Offset3D{},
		DstSubresource: subresourceLayers(region.Dst),
		DstOffset:      vk.Offset3D{},
		Extent:         vk.Extent3D{Width: region.Extent.Width, Height: region.Extent.Height, Depth: 1},
	}}
	vk.CmdCopyImage(d.commandBuffers.get(uint64(cb)).handle,
		d.imageHandle(src), vk.ImageLayoutTransferSrcOptimal,
		d.imageHandle(dst), vk.ImageLayoutTransferDstOptimal,
		1, regions)
}

func offsets(o [2]driver.Offset) [2]vk.Offset3D {
	return [2]vk.Offset3D{
		{X: o[0].X, Y: o[0].Y, Z: o[0].Z},
		{X: o[1].X, Y: o[1].Y, Z: o[1].Z},
	}
}

func (d *Driver) CmdBlitImage(cb driver.CommandBuffer, src, dst driver.Image, blit driver.ImageBlit) {
	blits := []vk.ImageBlit{{
		SrcSubresource: subresourceLayers(blit.Src),
		SrcOffsets:     offsets(blit.SrcOffset),
		DstSubresource: subresourceLayers(blit.Dst),
		DstOffsets:     offsets(blit.DstOffset),
	}}
	vk.CmdBlitImage(d.commandBuffers.get(uint64(cb)).handle,
		d.imageHandle(src), vk.ImageLayoutTransferSrcOptimal,
		d.imageHandle(dst), vk.ImageLayoutTransferDstOptimal,
		1, blits, vk.Filter(blit.Filter))
}

func (d *Driver) QueueSubmit(id driver.Queue, submit driver.Submit, fence driver.Fence) error {
	q, ok := d.queues.lookup(uint64(id))
	if !ok {
		return errors.Wrapf(driver.ErrInvalidHandle, "queue %d", id)
	}

	buffers := make([]vk.CommandBuffer, len(submit.CommandBuffers))
	for i, b := range submit.CommandBuffers {
		buffers[i] = d.commandBuffers.get(uint64(b)).handle
	}
	var stages []vk.PipelineStageFlags
	for _, s := range submit.WaitStages {
		stages = append(stages, vk.PipelineStageFlags(s))
	}
	waits := d.semaphoreList(submit.WaitSemaphores)
	signals := d.semaphoreList(submit.SignalSemaphores)

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waits)),
		PWaitSemaphores:      waits,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(buffers)),
		PCommandBuffers:      buffers,
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}

	vkFence := vk.NullFence
	if f, ok := d.fences.lookup(uint64(fence)); ok {
		vkFence = f
	}
	return d.locks.SafeQueueCall(q.family, func() error {
		return check(vk.QueueSubmit(q.handle, 1, []vk.SubmitInfo{submitInfo}, vkFence), "vkQueueSubmit")
	})
}

func (d *Driver) QueueWaitIdle(id driver.Queue) error {
	q, ok := d.queues.lookup(uint64(id))
	if !ok {
		return errors.Wrapf(driver.ErrInvalidHandle, "queue %d", id)
	}
	return d.locks.SafeQueueCall(q.family, func() error {
		return check(vk.QueueWaitIdle(q.handle), "vkQueueWaitIdle")
	})
}
