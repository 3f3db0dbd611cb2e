// Package driver is the API-neutral boundary between the renderer's
// orchestration logic and a concrete graphics binding.
//
// A Driver owns at most one instance, one surface and one logical device at a
// time. Every other object is addressed through a typed uint64 handle. All
// methods are called from the render thread only.
package driver

import "github.com/cockroachdb/errors"

var (
	// ErrNoMemoryType is returned when no memory type satisfies an allocation.
	ErrNoMemoryType = errors.New("no memory type matches the required properties")
	// ErrDeviceLost is returned once the device can no longer accept work.
	ErrDeviceLost = errors.New("device lost")
	// ErrInvalidHandle is returned for a handle the driver never issued or already released.
	ErrInvalidHandle = errors.New("invalid handle")
)

// InfiniteTimeout waits forever on fences and image acquisition.
const InfiniteTimeout = ^uint64(0)

// SwapchainExtension must be enabled on every device that presents.
const SwapchainExtension = "VK_KHR_swapchain"

type Driver interface {
	// Instance and surface.
	CreateInstance(info InstanceInfo) error
	DestroyInstance()
	CreateSurface() error
	DestroySurface()

	// Physical devices and the logical device.
	Adapters() ([]Adapter, error)
	CreateDevice(info DeviceInfo) error
	DestroyDevice()
	GetQueue(family uint32) (Queue, error)
	DeviceWaitIdle() error
	FormatSupported(format Format, tiling ImageTiling, features FormatFeature) bool

	// Surface queries for the selected adapter.
	SurfaceCapabilities() (SurfaceCapabilities, error)
	SurfaceFormats() ([]SurfaceFormat, error)
	PresentModes() ([]PresentMode, error)

	CreateSwapchain(info SwapchainInfo) (Swapchain, error)
	SwapchainImages(swapchain Swapchain) ([]Image, error)
	DestroySwapchain(swapchain Swapchain)

	// CreateImage allocates and binds device memory for the image.
	CreateImage(info ImageInfo) (Image, error)
	DestroyImage(image Image)
	CreateImageView(info ImageViewInfo) (ImageView, error)
	DestroyImageView(view ImageView)

	CreateBuffer(info BufferInfo) (Buffer, error)
	WriteBuffer(buffer Buffer, offset uint64, data []byte) error
	ReadBuffer(buffer Buffer, offset, size uint64) ([]byte, error)
	DestroyBuffer(buffer Buffer)

	CreateSampler(info SamplerInfo) (Sampler, error)
	DestroySampler(sampler Sampler)

	CreateRenderPass(info RenderPassInfo) (RenderPass, error)
	DestroyRenderPass(pass RenderPass)
	CreateFramebuffer(info FramebufferInfo) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	CreateShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(module ShaderModule)
	CreatePipelineLayout(info PipelineLayoutInfo) (PipelineLayout, error)
	DestroyPipelineLayout(layout PipelineLayout)
	CreateGraphicsPipeline(info PipelineInfo) (Pipeline, error)
	DestroyPipeline(pipeline Pipeline)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)
	CreateDescriptorPool(info DescriptorPoolInfo) (DescriptorPool, error)
	DestroyDescriptorPool(pool DescriptorPool)
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error)
	FreeDescriptorSet(pool DescriptorPool, set DescriptorSet)
	UpdateDescriptorImage(set DescriptorSet, binding uint32, sampler Sampler, view ImageView, layout ImageLayout)
	UpdateDescriptorBuffer(set DescriptorSet, binding uint32, typ DescriptorType, buffer Buffer, offset, size uint64)

	// Synchronization primitives.
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(semaphore Semaphore)
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(fence Fence)
	WaitForFence(fence Fence, timeout uint64) error
	ResetFence(fence Fence) error

	// Command pools and buffers.
	CreateCommandPool(family uint32, transient bool) (CommandPool, error)
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffers(pool CommandPool, count uint32) ([]CommandBuffer, error)
	FreeCommandBuffers(pool CommandPool, buffers []CommandBuffer)
	ResetCommandBuffer(cb CommandBuffer) error
	BeginCommandBuffer(cb CommandBuffer, oneTimeSubmit bool) error
	EndCommandBuffer(cb CommandBuffer) error

	// Recording.
	CmdBeginRenderPass(cb CommandBuffer, begin RenderPassBegin)
	CmdEndRenderPass(cb CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, pipeline Pipeline)
	CmdBindDescriptorSet(cb CommandBuffer, layout PipelineLayout, index uint32, set DescriptorSet, dynamicOffsets []uint32)
	CmdPushConstants(cb CommandBuffer, layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
	CmdSetViewport(cb CommandBuffer, viewport Viewport)
	CmdSetScissor(cb CommandBuffer, scissor Rect)
	CmdDraw(cb CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdPipelineBarrier(cb CommandBuffer, barrier ImageBarrier)
	CmdCopyBufferToImage(cb CommandBuffer, src Buffer, dst Image, regions []BufferImageCopy)
	CmdCopyImageToBuffer(cb CommandBuffer, src Image, dst Buffer, regions []BufferImageCopy)
	CmdCopyImage(cb CommandBuffer, src, dst Image, region ImageCopy)
	CmdBlitImage(cb CommandBuffer, src, dst Image, blit ImageBlit)

	// Queue operations. AcquireNextImage and QueuePresent report staleness
	// through Status; only real failures come back as errors.
	AcquireNextImage(swapchain Swapchain, semaphore Semaphore, timeout uint64) (uint32, Status, error)
	QueueSubmit(queue Queue, submit Submit, fence Fence) error
	QueuePresent(queue Queue, present Present) (Status, error)
	QueueWaitIdle(queue Queue) error
}
