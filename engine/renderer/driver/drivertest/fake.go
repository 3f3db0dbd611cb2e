// Package drivertest provides an in-memory driver.Driver for exercising the
// renderer without a GPU. It counts every call, tracks live objects and
// records the commands written into each command buffer.
package drivertest

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

// Driver is a scriptable fake. The exported fields may be changed between
// calls to steer the renderer through specific paths.
type Driver struct {
	AdapterList  []driver.Adapter
	Capabilities driver.SurfaceCapabilities
	Formats      []driver.SurfaceFormat
	Modes        []driver.PresentMode
	// Unsupported formats fail every FormatSupported query.
	Unsupported map[driver.Format]bool
	// AcquireStatuses and PresentStatuses are consumed one per call; once
	// empty, calls report StatusSuccess.
	AcquireStatuses []driver.Status
	PresentStatuses []driver.Status
	// Fail makes the named method return the given error.
	Fail map[string]error
	// OnDeviceWaitIdle runs inside DeviceWaitIdle, e.g. to change the
	// capabilities a recreation will observe.
	OnDeviceWaitIdle func()

	Calls []string
	// Misuse collects destroy calls on handles that were never live.
	Misuse []string

	counts     map[string]int
	live       map[uint64]string
	next       uint64
	instance   uint64
	surface    uint64
	device     uint64
	swapImages map[driver.Swapchain][]driver.Image
	swapNext   map[driver.Swapchain]uint32
	buffers    map[driver.Buffer][]byte
	commands   map[driver.CommandBuffer][]string
	images     map[driver.Image]driver.ImageInfo
}

// New returns a fake with one discrete adapter, a single graphics+present
// queue family, an 800x600 surface yielding two swapchain images and both FIFO and
// MAILBOX present modes.
func New() *Driver {
	return &Driver{
		AdapterList: []driver.Adapter{{
			Index:      0,
			Name:       "Fake Discrete",
			Type:       driver.DeviceTypeDiscreteGPU,
			Features:   driver.DeviceFeatures{GeometryShader: true, SamplerAnisotropy: true},
			Extensions: []string{driver.SwapchainExtension},
			QueueFamilies: []driver.QueueFamily{
				{Flags: driver.QueueGraphics | driver.QueueTransfer, Count: 1, Present: true},
			},
			MaxAnisotropy: 16,
		}},
		Capabilities: driver.SurfaceCapabilities{
			MinImageCount:  1,
			MaxImageCount:  2,
			CurrentExtent:  driver.Extent{Width: 800, Height: 600},
			MinImageExtent: driver.Extent{Width: 1, Height: 1},
			MaxImageExtent: driver.Extent{Width: 4096, Height: 4096},
		},
		Formats: []driver.SurfaceFormat{
			{Format: driver.FormatB8G8R8A8Srgb, ColorSpace: driver.ColorSpaceSrgbNonlinear},
		},
		Modes:       []driver.PresentMode{driver.PresentModeFifo, driver.PresentModeMailbox},
		Unsupported: map[driver.Format]bool{},
		Fail:        map[string]error{},
		counts:      map[string]int{},
		live:        map[uint64]string{},
		swapImages:  map[driver.Swapchain][]driver.Image{},
		swapNext:    map[driver.Swapchain]uint32{},
		buffers:     map[driver.Buffer][]byte{},
		commands:    map[driver.CommandBuffer][]string{},
		images:      map[driver.Image]driver.ImageInfo{},
	}
}

// Count returns how many times method was called.
func (d *Driver) Count(method string) int {
	return d.counts[method]
}

// Live returns the number of objects created and not yet destroyed.
func (d *Driver) Live() int {
	return len(d.live)
}

// LiveByKind groups live objects by kind, for readable test failures.
func (d *Driver) LiveByKind() map[string]int {
	out := map[string]int{}
	for _, kind := range d.live {
		out[kind]++
	}
	return out
}

// LiveKinds lists the kinds of the objects still alive, sorted.
func (d *Driver) LiveKinds() []string {
	var out []string
	for _, kind := range d.live {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}

// Commands returns what was recorded into cb since its last reset.
func (d *Driver) Commands(cb driver.CommandBuffer) []string {
	return d.commands[cb]
}

// ImageInfo returns the creation parameters of a live image.
func (d *Driver) ImageInfo(image driver.Image) (driver.ImageInfo, bool) {
	info, ok := d.images[image]
	return info, ok
}

// Index returns the position of the first call to method in Calls, or -1.
func (d *Driver) Index(method string) int {
	for i, c := range d.Calls {
		if c == method {
			return i
		}
	}
	return -1
}

// LastIndex returns the position of the last call to method in Calls, or -1.
func (d *Driver) LastIndex(method string) int {
	for i := len(d.Calls) - 1; i >= 0; i-- {
		if d.Calls[i] == method {
			return i
		}
	}
	return -1
}

func (d *Driver) call(method string) error {
	d.counts[method]++
	d.Calls = append(d.Calls, method)
	if err, ok := d.Fail[method]; ok {
		return err
	}
	return nil
}

func (d *Driver) alloc(kind string) uint64 {
	d.next++
	d.live[d.next] = kind
	return d.next
}

func (d *Driver) release(kind string, id uint64) {
	if id == 0 {
		return
	}
	if got, ok := d.live[id]; !ok || got != kind {
		d.Misuse = append(d.Misuse, fmt.Sprintf("destroy %s %d", kind, id))
		return
	}
	delete(d.live, id)
}

func (d *Driver) record(cb driver.CommandBuffer, cmd string) {
	d.commands[cb] = append(d.commands[cb], cmd)
}

func (d *Driver) CreateInstance(info driver.InstanceInfo) error {
	if err := d.call("CreateInstance"); err != nil {
		return err
	}
	d.instance = d.alloc("instance")
	return nil
}

func (d *Driver) DestroyInstance() {
	d.call("DestroyInstance")
	d.release("instance", d.instance)
	d.instance = 0
}

func (d *Driver) CreateSurface() error {
	if err := d.call("CreateSurface"); err != nil {
		return err
	}
	if d.instance == 0 {
		return errors.New("surface requires an instance")
	}
	d.surface = d.alloc("surface")
	return nil
}

func (d *Driver) DestroySurface() {
	d.call("DestroySurface")
	d.release("surface", d.surface)
	d.surface = 0
}

func (d *Driver) Adapters() ([]driver.Adapter, error) {
	if err := d.call("Adapters"); err != nil {
		return nil, err
	}
	return d.AdapterList, nil
}

func (d *Driver) CreateDevice(info driver.DeviceInfo) error {
	if err := d.call("CreateDevice"); err != nil {
		return err
	}
	d.device = d.alloc("device")
	return nil
}

func (d *Driver) DestroyDevice() {
	d.call("DestroyDevice")
	d.release("device", d.device)
	d.device = 0
}

func (d *Driver) GetQueue(family uint32) (driver.Queue, error) {
	if err := d.call("GetQueue"); err != nil {
		return 0, err
	}
	return driver.Queue(1000 + family), nil
}

func (d *Driver) DeviceWaitIdle() error {
	if err := d.call("DeviceWaitIdle"); err != nil {
		return err
	}
	if d.OnDeviceWaitIdle != nil {
		d.OnDeviceWaitIdle()
	}
	return nil
}

func (d *Driver) FormatSupported(format driver.Format, tiling driver.ImageTiling, features driver.FormatFeature) bool {
	d.call("FormatSupported")
	return !d.Unsupported[format]
}

func (d *Driver) SurfaceCapabilities() (driver.SurfaceCapabilities, error) {
	if err := d.call("SurfaceCapabilities"); err != nil {
		return driver.SurfaceCapabilities{}, err
	}
	return d.Capabilities, nil
}

func (d *Driver) SurfaceFormats() ([]driver.SurfaceFormat, error) {
	if err := d.call("SurfaceFormats"); err != nil {
		return nil, err
	}
	return d.Formats, nil
}

func (d *Driver) PresentModes() ([]driver.PresentMode, error) {
	if err := d.call("PresentModes"); err != nil {
		return nil, err
	}
	return d.Modes, nil
}

func (d *Driver) CreateSwapchain(info driver.SwapchainInfo) (driver.Swapchain, error) {
	if err := d.call("CreateSwapchain"); err != nil {
		return 0, err
	}
	sc := driver.Swapchain(d.alloc("swapchain"))
	images := make([]driver.Image, info.MinImageCount)
	for i := range images {
		d.next++
		images[i] = driver.Image(d.next)
	}
	d.swapImages[sc] = images
	return sc, nil
}

func (d *Driver) SwapchainImages(swapchain driver.Swapchain) ([]driver.Image, error) {
	if err := d.call("SwapchainImages"); err != nil {
		return nil, err
	}
	images, ok := d.swapImages[swapchain]
	if !ok {
		return nil, driver.ErrInvalidHandle
	}
	return images, nil
}

func (d *Driver) DestroySwapchain(swapchain driver.Swapchain) {
	d.call("DestroySwapchain")
	d.release("swapchain", uint64(swapchain))
	delete(d.swapImages, swapchain)
	delete(d.swapNext, swapchain)
}

func (d *Driver) CreateImage(info driver.ImageInfo) (driver.Image, error) {
	if err := d.call("CreateImage"); err != nil {
		return 0, err
	}
	img := driver.Image(d.alloc("image"))
	d.images[img] = info
	return img, nil
}

func (d *Driver) DestroyImage(image driver.Image) {
	d.call("DestroyImage")
	d.release("image", uint64(image))
	delete(d.images, image)
}

func (d *Driver) CreateImageView(info driver.ImageViewInfo) (driver.ImageView, error) {
	if err := d.call("CreateImageView"); err != nil {
		return 0, err
	}
	return driver.ImageView(d.alloc("imageview")), nil
}

func (d *Driver) DestroyImageView(view driver.ImageView) {
	d.call("DestroyImageView")
	d.release("imageview", uint64(view))
}

func (d *Driver) CreateBuffer(info driver.BufferInfo) (driver.Buffer, error) {
	if err := d.call("CreateBuffer"); err != nil {
		return 0, err
	}
	buf := driver.Buffer(d.alloc("buffer"))
	d.buffers[buf] = make([]byte, info.Size)
	return buf, nil
}

func (d *Driver) WriteBuffer(buffer driver.Buffer, offset uint64, data []byte) error {
	if err := d.call("WriteBuffer"); err != nil {
		return err
	}
	mem, ok := d.buffers[buffer]
	if !ok {
		return driver.ErrInvalidHandle
	}
	if offset+uint64(len(data)) > uint64(len(mem)) {
		return errors.Newf("write of %d bytes at %d overflows buffer of %d", len(data), offset, len(mem))
	}
	copy(mem[offset:], data)
	return nil
}

func (d *Driver) ReadBuffer(buffer driver.Buffer, offset, size uint64) ([]byte, error) {
	if err := d.call("ReadBuffer"); err != nil {
		return nil, err
	}
	mem, ok := d.buffers[buffer]
	if !ok {
		return nil, driver.ErrInvalidHandle
	}
	if offset+size > uint64(len(mem)) {
		return nil, errors.Newf("read of %d bytes at %d overflows buffer of %d", size, offset, len(mem))
	}
	out := make([]byte, size)
	copy(out, mem[offset:offset+size])
	return out, nil
}

func (d *Driver) DestroyBuffer(buffer driver.Buffer) {
	d.call("DestroyBuffer")
	d.release("buffer", uint64(buffer))
	delete(d.buffers, buffer)
}

func (d *Driver) CreateSampler(info driver.SamplerInfo) (driver.Sampler, error) {
	if err := d.call("CreateSampler"); err != nil {
		return 0, err
	}
	return driver.Sampler(d.alloc("sampler")), nil
}

func (d *Driver) DestroySampler(sampler driver.Sampler) {
	d.call("DestroySampler")
	d.release("sampler", uint64(sampler))
}

func (d *Driver) CreateRenderPass(info driver.RenderPassInfo) (driver.RenderPass, error) {
	if err := d.call("CreateRenderPass"); err != nil {
		return 0, err
	}
	return driver.RenderPass(d.alloc("renderpass")), nil
}

func (d *Driver) DestroyRenderPass(pass driver.RenderPass) {
	d.call("DestroyRenderPass")
	d.release("renderpass", uint64(pass))
}

func (d *Driver) CreateFramebuffer(info driver.FramebufferInfo) (driver.Framebuffer, error) {
	if err := d.call("CreateFramebuffer"); err != nil {
		return 0, err
	}
	return driver.Framebuffer(d.alloc("framebuffer")), nil
}

func (d *Driver) DestroyFramebuffer(fb driver.Framebuffer) {
	d.call("DestroyFramebuffer")
	d.release("framebuffer", uint64(fb))
}

func (d *Driver) CreateShaderModule(code []byte) (driver.ShaderModule, error) {
	if err := d.call("CreateShaderModule"); err != nil {
		return 0, err
	}
	return driver.ShaderModule(d.alloc("shadermodule")), nil
}

func (d *Driver) DestroyShaderModule(module driver.ShaderModule) {
	d.call("DestroyShaderModule")
	d.release("shadermodule", uint64(module))
}

func (d *Driver) CreatePipelineLayout(info driver.PipelineLayoutInfo) (driver.PipelineLayout, error) {
	if err := d.call("CreatePipelineLayout"); err != nil {
		return 0, err
	}
	return driver.PipelineLayout(d.alloc("pipelinelayout")), nil
}

func (d *Driver) DestroyPipelineLayout(layout driver.PipelineLayout) {
	d.call("DestroyPipelineLayout")
	d.release("pipelinelayout", uint64(layout))
}

func (d *Driver) CreateGraphicsPipeline(info driver.PipelineInfo) (driver.Pipeline, error) {
	if err := d.call("CreateGraphicsPipeline"); err != nil {
		return 0, err
	}
	return driver.Pipeline(d.alloc("pipeline")), nil
}

func (d *Driver) DestroyPipeline(pipeline driver.Pipeline) {
	d.call("DestroyPipeline")
	d.release("pipeline", uint64(pipeline))
}

func (d *Driver) CreateDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	if err := d.call("CreateDescriptorSetLayout"); err != nil {
		return 0, err
	}
	return driver.DescriptorSetLayout(d.alloc("setlayout")), nil
}

func (d *Driver) DestroyDescriptorSetLayout(layout driver.DescriptorSetLayout) {
	d.call("DestroyDescriptorSetLayout")
	d.release("setlayout", uint64(layout))
}

func (d *Driver) CreateDescriptorPool(info driver.DescriptorPoolInfo) (driver.DescriptorPool, error) {
	if err := d.call("CreateDescriptorPool"); err != nil {
		return 0, err
	}
	return driver.DescriptorPool(d.alloc("descriptorpool")), nil
}

func (d *Driver) DestroyDescriptorPool(pool driver.DescriptorPool) {
	d.call("DestroyDescriptorPool")
	d.release("descriptorpool", uint64(pool))
}

func (d *Driver) AllocateDescriptorSet(pool driver.DescriptorPool, layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	if err := d.call("AllocateDescriptorSet"); err != nil {
		return 0, err
	}
	return driver.DescriptorSet(d.alloc("descriptorset")), nil
}

func (d *Driver) FreeDescriptorSet(pool driver.DescriptorPool, set driver.DescriptorSet) {
	d.call("FreeDescriptorSet")
	d.release("descriptorset", uint64(set))
}

func (d *Driver) UpdateDescriptorImage(set driver.DescriptorSet, binding uint32, sampler driver.Sampler, view driver.ImageView, layout driver.ImageLayout) {
	d.call("UpdateDescriptorImage")
}

func (d *Driver) UpdateDescriptorBuffer(set driver.DescriptorSet, binding uint32, typ driver.DescriptorType, buffer driver.Buffer, offset, size uint64) {
	d.call("UpdateDescriptorBuffer")
}

func (d *Driver) CreateSemaphore() (driver.Semaphore, error) {
	if err := d.call("CreateSemaphore"); err != nil {
		return 0, err
	}
	return driver.Semaphore(d.alloc("semaphore")), nil
}

func (d *Driver) DestroySemaphore(semaphore driver.Semaphore) {
	d.call("DestroySemaphore")
	d.release("semaphore", uint64(semaphore))
}

func (d *Driver) CreateFence(signaled bool) (driver.Fence, error) {
	if err := d.call("CreateFence"); err != nil {
		return 0, err
	}
	return driver.Fence(d.alloc("fence")), nil
}

func (d *Driver) DestroyFence(fence driver.Fence) {
	d.call("DestroyFence")
	d.release("fence", uint64(fence))
}

func (d *Driver) WaitForFence(fence driver.Fence, timeout uint64) error {
	if err := d.call("WaitForFence"); err != nil {
		return err
	}
	if _, ok := d.live[uint64(fence)]; !ok {
		return driver.ErrInvalidHandle
	}
	return nil
}

func (d *Driver) ResetFence(fence driver.Fence) error {
	return d.call("ResetFence")
}

func (d *Driver) CreateCommandPool(family uint32, transient bool) (driver.CommandPool, error) {
	if err := d.call("CreateCommandPool"); err != nil {
		return 0, err
	}
	return driver.CommandPool(d.alloc("commandpool")), nil
}

func (d *Driver) DestroyCommandPool(pool driver.CommandPool) {
	d.call("DestroyCommandPool")
	d.release("commandpool", uint64(pool))
}

func (d *Driver) AllocateCommandBuffers(pool driver.CommandPool, count uint32) ([]driver.CommandBuffer, error) {
	if err := d.call("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	out := make([]driver.CommandBuffer, count)
	for i := range out {
		out[i] = driver.CommandBuffer(d.alloc("commandbuffer"))
	}
	return out, nil
}

func (d *Driver) FreeCommandBuffers(pool driver.CommandPool, buffers []driver.CommandBuffer) {
	d.call("FreeCommandBuffers")
	for _, cb := range buffers {
		d.release("commandbuffer", uint64(cb))
		delete(d.commands, cb)
	}
}

func (d *Driver) ResetCommandBuffer(cb driver.CommandBuffer) error {
	if err := d.call("ResetCommandBuffer"); err != nil {
		return err
	}
	d.commands[cb] = nil
	return nil
}

func (d *Driver) BeginCommandBuffer(cb driver.CommandBuffer, oneTimeSubmit bool) error {
	if err := d.call("BeginCommandBuffer"); err != nil {
		return err
	}
	d.record(cb, "Begin")
	return nil
}

func (d *Driver) EndCommandBuffer(cb driver.CommandBuffer) error {
	if err := d.call("EndCommandBuffer"); err != nil {
		return err
	}
	d.record(cb, "End")
	return nil
}

func (d *Driver) CmdBeginRenderPass(cb driver.CommandBuffer, begin driver.RenderPassBegin) {
	d.call("CmdBeginRenderPass")
	d.record(cb, fmt.Sprintf("BeginRenderPass %dx%d", begin.Area.Width, begin.Area.Height))
}

func (d *Driver) CmdEndRenderPass(cb driver.CommandBuffer) {
	d.call("CmdEndRenderPass")
	d.record(cb, "EndRenderPass")
}

func (d *Driver) CmdBindPipeline(cb driver.CommandBuffer, pipeline driver.Pipeline) {
	d.call("CmdBindPipeline")
	d.record(cb, "BindPipeline")
}

func (d *Driver) CmdBindDescriptorSet(cb driver.CommandBuffer, layout driver.PipelineLayout, index uint32, set driver.DescriptorSet, dynamicOffsets []uint32) {
	d.call("CmdBindDescriptorSet")
	d.record(cb, fmt.Sprintf("BindDescriptorSet %d", index))
}

func (d *Driver) CmdPushConstants(cb driver.CommandBuffer, layout driver.PipelineLayout, stages driver.ShaderStage, offset uint32, data []byte) {
	d.call("CmdPushConstants")
	d.record(cb, fmt.Sprintf("PushConstants %d", len(data)))
}

func (d *Driver) CmdSetViewport(cb driver.CommandBuffer, viewport driver.Viewport) {
	d.call("CmdSetViewport")
	d.record(cb, fmt.Sprintf("SetViewport %gx%g", viewport.Width, viewport.Height))
}

func (d *Driver) CmdSetScissor(cb driver.CommandBuffer, scissor driver.Rect) {
	d.call("CmdSetScissor")
	d.record(cb, fmt.Sprintf("SetScissor %dx%d", scissor.Width, scissor.Height))
}

func (d *Driver) CmdDraw(cb driver.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.call("CmdDraw")
	d.record(cb, fmt.Sprintf("Draw %d", vertexCount))
}

func (d *Driver) CmdPipelineBarrier(cb driver.CommandBuffer, barrier driver.ImageBarrier) {
	d.call("CmdPipelineBarrier")
	d.record(cb, fmt.Sprintf("Barrier %d->%d", barrier.OldLayout, barrier.NewLayout))
}

func (d *Driver) CmdCopyBufferToImage(cb driver.CommandBuffer, src driver.Buffer, dst driver.Image, regions []driver.BufferImageCopy) {
	d.call("CmdCopyBufferToImage")
	d.record(cb, fmt.Sprintf("CopyBufferToImage %d", len(regions)))
}

func (d *Driver) CmdCopyImageToBuffer(cb driver.CommandBuffer, src driver.Image, dst driver.Buffer, regions []driver.BufferImageCopy) {
	d.call("CmdCopyImageToBuffer")
	d.record(cb, fmt.Sprintf("CopyImageToBuffer %d", len(regions)))
}

func (d *Driver) CmdCopyImage(cb driver.CommandBuffer, src, dst driver.Image, region driver.ImageCopy) {
	d.call("CmdCopyImage")
	d.record(cb, "CopyImage")
}

func (d *Driver) CmdBlitImage(cb driver.CommandBuffer, src, dst driver.Image, blit driver.ImageBlit) {
	d.call("CmdBlitImage")
	d.record(cb, fmt.Sprintf("Blit mip %d->%d", blit.Src.Mip, blit.Dst.Mip))
}

func (d *Driver) AcquireNextImage(swapchain driver.Swapchain, semaphore driver.Semaphore, timeout uint64) (uint32, driver.Status, error) {
	if err := d.call("AcquireNextImage"); err != nil {
		return 0, driver.StatusSuccess, err
	}
	status := driver.StatusSuccess
	if len(d.AcquireStatuses) > 0 {
		status = d.AcquireStatuses[0]
		d.AcquireStatuses = d.AcquireStatuses[1:]
	}
	if status == driver.StatusOutOfDate {
		return 0, status, nil
	}
	images, ok := d.swapImages[swapchain]
	if !ok || len(images) == 0 {
		return 0, driver.StatusSuccess, driver.ErrInvalidHandle
	}
	idx := d.swapNext[swapchain]
	d.swapNext[swapchain] = (idx + 1) % uint32(len(images))
	return idx, status, nil
}

func (d *Driver) QueueSubmit(queue driver.Queue, submit driver.Submit, fence driver.Fence) error {
	return d.call("QueueSubmit")
}

func (d *Driver) QueuePresent(queue driver.Queue, present driver.Present) (driver.Status, error) {
	if err := d.call("QueuePresent"); err != nil {
		return driver.StatusSuccess, err
	}
	status := driver.StatusSuccess
	if len(d.PresentStatuses) > 0 {
		status = d.PresentStatuses[0]
		d.PresentStatuses = d.PresentStatuses[1:]
	}
	return status, nil
}

func (d *Driver) QueueWaitIdle(queue driver.Queue) error {
	return d.call("QueueWaitIdle")
}

var _ driver.Driver = (*Driver)(nil)
