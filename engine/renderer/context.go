package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

const (
	apiVersion1_1 uint32 = 1<<22 | 1<<12

	maxDescriptorSets      = 512
	maxSampledDescriptors  = 512
	maxUniformDescriptors  = 32
	textureSamplerBinding  = 0
	validationLayerKhronos = "VK_LAYER_KHRONOS_validation"
)

// ContextOptions configures instance and device creation.
type ContextOptions struct {
	AppName string
	// InstanceExtensions are requested on top of what the window needs.
	InstanceExtensions []string
	// Validation enables the Khronos validation layer and debug reporting.
	Validation bool
	Device     DeviceRequirements
}

// Context owns the instance, surface, logical device, queues and the pools
// every other GPU object is carved from. It must outlive all of them.
type Context struct {
	drv    driver.Driver
	window Window

	adapter     driver.Adapter
	families    QueueFamilies
	graphics    driver.Queue
	present     driver.Queue
	depthFormat driver.Format

	commandPool    driver.CommandPool
	transientPool  driver.CommandPool
	descriptorPool driver.DescriptorPool
	textureLayout  driver.DescriptorSetLayout

	defaultSampler *Sampler
	decoder        ImageDecoder

	releases    releaseStack
	initialized bool
}

func NewContext(drv driver.Driver, window Window) *Context {
	return &Context{drv: drv, window: window}
}

// Initialize runs every setup step in order. On failure everything acquired
// so far is released and an *InitializationError is returned.
func (c *Context) Initialize(opts ContextOptions) (err error) {
	if c.initialized {
		return nil
	}
	defer func() {
		if err != nil {
			c.releases.unwind()
			core.LogError(err.Error())
		}
	}()

	var layers []string
	if opts.Validation {
		layers = []string{validationLayerKhronos}
	}
	if err := c.drv.CreateInstance(driver.InstanceInfo{
		AppName:    opts.AppName,
		EngineName: "Purrfect Engine",
		APIVersion: apiVersion1_1,
		Extensions: opts.InstanceExtensions,
		Layers:     layers,
		Debug:      opts.Validation,
	}); err != nil {
		return initError("instance", err)
	}
	c.releases.push(c.drv.DestroyInstance)
	core.LogInfo("Instance created.")

	if err := c.drv.CreateSurface(); err != nil {
		return initError("surface", err)
	}
	c.releases.push(c.drv.DestroySurface)

	adapters, err := c.drv.Adapters()
	if err != nil {
		return initError("adapter enumeration", err)
	}
	adapter, err := SelectAdapter(adapters, opts.Device)
	if err != nil {
		return initError("device selection", err)
	}
	families, err := ResolveQueueFamilies(adapter.QueueFamilies)
	if err != nil {
		return initError("queue families", errors.Wrapf(err, "device '%s'", adapter.Name))
	}
	c.adapter = adapter
	c.families = families
	core.LogInfo("Selected device: '%s' (%s). Graphics family %d, present family %d.",
		adapter.Name, adapter.Type, families.Graphics, families.Present)

	if err := c.drv.CreateDevice(driver.DeviceInfo{
		Adapter:       adapter.Index,
		QueueFamilies: families.Unique(),
		Extensions:    opts.Device.extensions(),
		Features:      opts.Device.Features,
		Layers:        layers,
	}); err != nil {
		return initError("logical device", err)
	}
	c.releases.push(c.drv.DestroyDevice)

	if c.graphics, err = c.drv.GetQueue(families.Graphics); err != nil {
		return initError("graphics queue", err)
	}
	if c.present, err = c.drv.GetQueue(families.Present); err != nil {
		return initError("present queue", err)
	}

	if c.depthFormat, err = SelectDepthFormat(c.drv); err != nil {
		return initError("depth format", err)
	}

	if c.commandPool, err = c.drv.CreateCommandPool(families.Graphics, false); err != nil {
		return initError("command pool", err)
	}
	c.releases.push(func() { c.drv.DestroyCommandPool(c.commandPool) })

	if c.transientPool, err = c.drv.CreateCommandPool(families.Graphics, true); err != nil {
		return initError("transient command pool", err)
	}
	c.releases.push(func() { c.drv.DestroyCommandPool(c.transientPool) })

	if c.descriptorPool, err = c.drv.CreateDescriptorPool(driver.DescriptorPoolInfo{
		MaxSets: maxDescriptorSets,
		Sizes: []driver.DescriptorPoolSize{
			{Type: driver.DescriptorTypeCombinedImageSampler, Count: maxSampledDescriptors},
			{Type: driver.DescriptorTypeUniformBufferDynamic, Count: maxUniformDescriptors},
		},
	}); err != nil {
		return initError("descriptor pool", err)
	}
	c.releases.push(func() { c.drv.DestroyDescriptorPool(c.descriptorPool) })

	if c.textureLayout, err = c.drv.CreateDescriptorSetLayout([]driver.DescriptorBinding{{
		Binding: textureSamplerBinding,
		Type:    driver.DescriptorTypeCombinedImageSampler,
		Count:   1,
		Stages:  driver.ShaderStageFragment,
	}}); err != nil {
		return initError("texture set layout", err)
	}
	c.releases.push(func() { c.drv.DestroyDescriptorSetLayout(c.textureLayout) })

	c.initialized = true
	return nil
}

// Close releases the default sampler and then everything Initialize acquired,
// newest first: pools, device, surface, instance.
func (c *Context) Close() {
	if c.defaultSampler != nil {
		c.defaultSampler.Destroy()
		c.defaultSampler = nil
	}
	c.releases.unwind()
	c.initialized = false
}

func (c *Context) Driver() driver.Driver { return c.drv }
func (c *Context) Window() Window { return c.window }
func (c *Context) Adapter() driver.Adapter { return c.adapter }
func (c *Context) QueueFamilies() QueueFamilies { return c.families }
func (c *Context) GraphicsQueue() driver.Queue { return c.graphics }
func (c *Context) PresentQueue() driver.Queue { return c.present }
func (c *Context) DepthFormat() driver.Format { return c.depthFormat }
func (c *Context) CommandPool() driver.CommandPool { return c.commandPool }
func (c *Context) TextureLayout() driver.DescriptorSetLayout { return c.textureLayout }
func (c *Context) Initialized() bool { return c.initialized }

// SetImageDecoder installs the collaborator used by file-backed textures.
func (c *Context) SetImageDecoder(decoder ImageDecoder) {
	c.decoder = decoder
}

// SubmitOnce records fn into a one-time command buffer, submits it on the
// graphics queue and blocks until the queue is idle.
func (c *Context) SubmitOnce(fn func(cb driver.CommandBuffer) error) error {
	buffers, err := c.drv.AllocateCommandBuffers(c.transientPool, 1)
	if err != nil {
		return errors.Wrap(err, "allocate single use command buffer")
	}
	cb := buffers[0]
	defer c.drv.FreeCommandBuffers(c.transientPool, buffers)

	if err := c.drv.BeginCommandBuffer(cb, true); err != nil {
		return errors.Wrap(err, "begin single use command buffer")
	}
	if err := fn(cb); err != nil {
		return err
	}
	if err := c.drv.EndCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "end single use command buffer")
	}
	if err := c.drv.QueueSubmit(c.graphics, driver.Submit{CommandBuffers: buffers}, 0); err != nil {
		return errors.Wrap(err, "submit single use command buffer")
	}
	if err := c.drv.QueueWaitIdle(c.graphics); err != nil {
		return errors.Wrap(err, "wait for single use command buffer")
	}
	return nil
}

// DefaultSampler returns the context-wide sampler, creating it on first use.
func (c *Context) DefaultSampler() (*Sampler, error) {
	if c.defaultSampler != nil {
		return c.defaultSampler, nil
	}
	s, err := c.NewSampler(DefaultSamplerInfo(c.adapter))
	if err != nil {
		return nil, err
	}
	c.defaultSampler = s
	return s, nil
}

// allocateImageDescriptor binds view and sampler into a fresh set built
// from the texture layout.
func (c *Context) allocateImageDescriptor(view driver.ImageView, sampler *Sampler) (driver.DescriptorSet, error) {
	set, err := c.drv.AllocateDescriptorSet(c.descriptorPool, c.textureLayout)
	if err != nil {
		return 0, errors.Wrap(err, "allocate texture descriptor")
	}
	c.drv.UpdateDescriptorImage(set, textureSamplerBinding, sampler.Handle(), view, driver.ImageLayoutShaderReadOnlyOptimal)
	return set, nil
}

func (c *Context) freeDescriptor(set driver.DescriptorSet) {
	if set != 0 {
		c.drv.FreeDescriptorSet(c.descriptorPool, set)
	}
}

// newStagingBuffer creates a host-visible transfer buffer of size bytes and
// fills it with data when data is not nil.
func (c *Context) newStagingBuffer(size uint64, data []byte) (driver.Buffer, error) {
	buf, err := c.drv.CreateBuffer(driver.BufferInfo{
		Size:   size,
		Usage:  driver.BufferUsageTransferSrc | driver.BufferUsageTransferDst,
		Memory: driver.MemoryPropertyHostVisible | driver.MemoryPropertyHostCoherent,
	})
	if err != nil {
		return 0, errors.Wrap(err, "create staging buffer")
	}
	if data != nil {
		if err := c.drv.WriteBuffer(buf, 0, data); err != nil {
			c.drv.DestroyBuffer(buf)
			return 0, errors.Wrap(err, "fill staging buffer")
		}
	}
	return buf, nil
}
