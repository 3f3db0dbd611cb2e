// Package vulkan implements driver.Driver on top of goki/vulkan.
package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

// SurfaceSource is the window system side of instance and surface creation.
// A glfw window satisfies the last two methods directly.
type SurfaceSource interface {
	InstanceProcAddr() unsafe.Pointer
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

type queue struct {
	handle vk.Queue
	family uint32
}

type image struct {
	handle vk.Image
	memory vk.DeviceMemory
}

type buffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	size   uint64
}

type swapchain struct {
	handle vk.Swapchain
	images []driver.Image
}

type descriptorSet struct {
	handle vk.DescriptorSet
	pool   vk.DescriptorPool
}

type commandBuffer struct {
	handle vk.CommandBuffer
	pool   vk.CommandPool
}

type Driver struct {
	source    SurfaceSource
	allocator *vk.AllocationCallbacks
	locks     *lockPool

	instance vk.Instance
	debug    vk.DebugReportCallback
	surface  vk.Surface

	gpus   []vk.PhysicalDevice
	gpu    vk.PhysicalDevice
	memory vk.PhysicalDeviceMemoryProperties
	device vk.Device

	next            uint64
	queues          table[queue]
	swapchains      table[*swapchain]
	images          table[*image]
	views           table[vk.ImageView]
	buffers         table[*buffer]
	samplers        table[vk.Sampler]
	renderPasses    table[vk.RenderPass]
	framebuffers    table[vk.Framebuffer]
	shaders         table[vk.ShaderModule]
	pipelineLayouts table[vk.PipelineLayout]
	pipelines       table[vk.Pipeline]
	setLayouts      table[vk.DescriptorSetLayout]
	descriptorPools table[vk.DescriptorPool]
	descriptorSets  table[descriptorSet]
	semaphores      table[vk.Semaphore]
	fences          table[vk.Fence]
	commandPools    table[vk.CommandPool]
	commandBuffers  table[commandBuffer]
}

var _ driver.Driver = (*Driver)(nil)

func New(source SurfaceSource) *Driver {
	d := &Driver{
		source:    source,
		allocator: nil,
		locks:     newLockPool(),
	}
	d.queues = newTable[queue](&d.next)
	d.swapchains = newTable[*swapchain](&d.next)
	d.images = newTable[*image](&d.next)
	d.views = newTable[vk.ImageView](&d.next)
	d.buffers = newTable[*buffer](&d.next)
	d.samplers = newTable[vk.Sampler](&d.next)
	d.renderPasses = newTable[vk.RenderPass](&d.next)
	d.framebuffers = newTable[vk.Framebuffer](&d.next)
	d.shaders = newTable[vk.ShaderModule](&d.next)
	d.pipelineLayouts = newTable[vk.PipelineLayout](&d.next)
	d.pipelines = newTable[vk.Pipeline](&d.next)
	d.setLayouts = newTable[vk.DescriptorSetLayout](&d.next)
	d.descriptorPools = newTable[vk.DescriptorPool](&d.next)
	d.descriptorSets = newTable[descriptorSet](&d.next)
	d.semaphores = newTable[vk.Semaphore](&d.next)
	d.fences = newTable[vk.Fence](&d.next)
	d.commandPools = newTable[vk.CommandPool](&d.next)
	d.commandBuffers = newTable[commandBuffer](&d.next)
	return d
}

func (d *Driver) CreateInstance(info driver.InstanceInfo) error {
	procAddr := d.source.InstanceProcAddr()
	if procAddr == nil {
		return errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize vk")
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         info.APIVersion,
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(info.AppName),
		PEngineName:        safeString(info.EngineName),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Window system extensions first, then what the caller asked for.
	extensions := append([]string{}, d.source.GetRequiredInstanceExtensions()...)
	for _, ext := range info.Extensions {
		if !slices.Contains(extensions, ext) {
			extensions = append(extensions, ext)
		}
	}
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	if info.Debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
	}
	core.LogDebug("Required extensions: %v", extensions)
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = safeStrings(extensions)

	layers := d.availableLayers(info.Layers)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = safeStrings(layers)

	if err := check(vk.CreateInstance(&createInfo, d.allocator, &d.instance), "vkCreateInstance"); err != nil {
		return err
	}
	if err := vk.InitInstance(d.instance); err != nil {
		vk.DestroyInstance(d.instance, d.allocator)
		d.instance = nil
		return errors.Wrap(err, "failed to load instance functions")
	}

	if info.Debug {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := check(vk.CreateDebugReportCallback(d.instance, &debugCreateInfo, d.allocator, &dbg), "vkCreateDebugReportCallback"); err != nil {
			core.LogWarn("%s", err)
		} else {
			d.debug = dbg
			core.LogDebug("Vulkan debugger created.")
		}
	}
	return nil
}

// availableLayers keeps the requested layers the loader knows about. A
// missing layer is logged and skipped.
func (d *Driver) availableLayers(requested []string) []string {
	if len(requested) == 0 {
		return nil
	}
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		core.LogWarn("Cannot enumerate instance layers: %s", resultString(res))
		return nil
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		core.LogWarn("Cannot enumerate instance layers: %s", resultString(res))
		return nil
	}
	names := make([]string, 0, count)
	for i := range available {
		available[i].Deref()
		names = append(names, cString(available[i].LayerName[:]))
	}

	var out []string
	for _, layer := range requested {
		if slices.Contains(names, layer) {
			core.LogInfo("Layer %s enabled.", layer)
			out = append(out, layer)
			continue
		}
		core.LogWarn("Layer %s is not available, continuing without it.", layer)
	}
	return out
}

func (d *Driver) DestroyInstance() {
	if d.debug != nil {
		vk.DestroyDebugReportCallback(d.instance, d.debug, d.allocator)
		d.debug = nil
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, d.allocator)
		d.instance = nil
	}
	d.gpus = nil
}

func (d *Driver) CreateSurface() error {
	if d.instance == nil {
		return errors.New("surface requires an instance")
	}
	surface, err := d.source.CreateWindowSurface(d.instance, nil)
	if err != nil {
		return errors.Wrap(err, "vulkan surface creation failed")
	}
	d.surface = vk.SurfaceFromPointer(surface)
	return nil
}

func (d *Driver) DestroySurface() {
	if d.surface != nil {
		vk.DestroySurface(d.instance, d.surface, d.allocator)
		d.surface = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
