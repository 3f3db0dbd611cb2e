package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

const portabilitySubset = "VK_KHR_portability_subset"

// Adapters describes every physical device. Present support is reported
// against the current surface, so the surface must exist first.
func (d *Driver) Adapters() ([]driver.Adapter, error) {
	if d.instance == nil || d.surface == nil {
		return nil, errors.New("adapters require an instance and a surface")
	}
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}
	if count == 0 {
		core.LogWarn("No devices which support Vulkan were found.")
		return nil, nil
	}
	d.gpus = make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, d.gpus), "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}

	adapters := make([]driver.Adapter, 0, count)
	for i, gpu := range d.gpus {
		a, err := d.describe(i, gpu)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

func (d *Driver) describe(index int, gpu vk.PhysicalDevice) (driver.Adapter, error) {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &properties)
	properties.Deref()
	properties.Limits.Deref()

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(gpu, &features)
	features.Deref()

	extensions, err := deviceExtensions(gpu)
	if err != nil {
		return driver.Adapter{}, err
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &familyCount, nil)
	props := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &familyCount, props)

	families := make([]driver.QueueFamily, familyCount)
	for i := range props {
		props[i].Deref()
		var supportsPresent vk.Bool32
		if err := check(vk.GetPhysicalDeviceSurfaceSupport(gpu, uint32(i), d.surface, &supportsPresent), "vkGetPhysicalDeviceSurfaceSupport"); err != nil {
			return driver.Adapter{}, err
		}
		families[i] = driver.QueueFamily{
			Flags:   driver.QueueFlags(props[i].QueueFlags),
			Count:   props[i].QueueCount,
			Present: supportsPresent == vk.True,
		}
	}

	a := driver.Adapter{
		Index:         index,
		Name:          cString(properties.DeviceName[:]),
		Type:          driver.DeviceType(properties.DeviceType),
		APIVersion:    properties.ApiVersion,
		DriverVersion: properties.DriverVersion,
		Features: driver.DeviceFeatures{
			GeometryShader:    features.GeometryShader == vk.True,
			SamplerAnisotropy: features.SamplerAnisotropy == vk.True,
			FillModeNonSolid:  features.FillModeNonSolid == vk.True,
			SampleRateShading: features.SampleRateShading == vk.True,
		},
		Extensions:    extensions,
		QueueFamilies: families,
		MaxAnisotropy: properties.Limits.MaxSamplerAnisotropy,
	}
	core.LogDebug("Adapter %d: '%s' (%s), API %d.%d.%d", index, a.Name, a.Type,
		vk.Version(a.APIVersion).Major(), vk.Version(a.APIVersion).Minor(), vk.Version(a.APIVersion).Patch())
	return a, nil
}

func deviceExtensions(gpu vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := check(vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	available := make([]vk.ExtensionProperties, count)
	if err := check(vk.EnumerateDeviceExtensionProperties(gpu, "", &count, available), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := range available {
		available[i].Deref()
		names = append(names, cString(available[i].ExtensionName[:]))
	}
	return names, nil
}

func (d *Driver) CreateDevice(info driver.DeviceInfo) error {
	if info.Adapter < 0 || info.Adapter >= len(d.gpus) {
		return errors.Newf("adapter %d was never enumerated", info.Adapter)
	}
	gpu := d.gpus[info.Adapter]

	// NOTE: one queue per unique family, shared indices get no extra queue.
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(info.QueueFamilies))
	for i, family := range info.QueueFamilies {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{
		GeometryShader:    boolean(info.Features.GeometryShader),
		SamplerAnisotropy: boolean(info.Features.SamplerAnisotropy),
		FillModeNonSolid:  boolean(info.Features.FillModeNonSolid),
		SampleRateShading: boolean(info.Features.SampleRateShading),
	}

	extensions := append([]string{}, info.Extensions...)
	available, err := deviceExtensions(gpu)
	if err != nil {
		return err
	}
	if slices.Contains(available, portabilitySubset) && !slices.Contains(extensions, portabilitySubset) {
		core.LogInfo("Adding required extension '%s'.", portabilitySubset)
		extensions = append(extensions, portabilitySubset)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		// Device layers are deprecated but older loaders still honor them.
		EnabledLayerCount:   uint32(len(info.Layers)),
		PpEnabledLayerNames: safeStrings(info.Layers),
	}

	var device vk.Device
	if err := check(vk.CreateDevice(gpu, &deviceCreateInfo, d.allocator, &device), "vkCreateDevice"); err != nil {
		return err
	}
	d.device = device
	d.gpu = gpu

	vk.GetPhysicalDeviceMemoryProperties(gpu, &d.memory)
	d.memory.Deref()

	core.LogInfo("Logical device created.")
	return nil
}

func (d *Driver) DestroyDevice() {
	if d.device == nil {
		return
	}
	if leaked := d.liveObjects(); leaked > 0 {
		core.LogWarn("Destroying device with %d objects still alive.", leaked)
	}
	vk.DestroyDevice(d.device, d.allocator)
	d.device = nil
	d.gpu = nil
	d.queues = newTable[queue](&d.next)
	d.locks.reset()
	core.LogInfo("Logical device destroyed.")
}

func (d *Driver) liveObjects() int {
	return d.swapchains.len() + d.images.len() + d.views.len() + d.buffers.len() +
		d.samplers.len() + d.renderPasses.len() + d.framebuffers.len() + d.shaders.len() +
		d.pipelineLayouts.len() + d.pipelines.len() + d.setLayouts.len() + d.descriptorPools.len() +
		d.semaphores.len() + d.fences.len() + d.commandPools.len()
}

func (d *Driver) GetQueue(family uint32) (driver.Queue, error) {
	if d.device == nil {
		return 0, errors.New("queue requires a device")
	}
	var q vk.Queue
	vk.GetDeviceQueue(d.device, family, 0, &q)
	if q == nil {
		return 0, errors.Newf("no queue in family %d", family)
	}
	return driver.Queue(d.queues.put(queue{handle: q, family: family})), nil
}

func (d *Driver) DeviceWaitIdle() error {
	if d.device == nil {
		return nil
	}
	return check(vk.DeviceWaitIdle(d.device), "vkDeviceWaitIdle")
}

func (d *Driver) FormatSupported(format driver.Format, tiling driver.ImageTiling, features driver.FormatFeature) bool {
	gpu := d.gpu
	if gpu == nil && len(d.gpus) > 0 {
		gpu = d.gpus[0]
	}
	if gpu == nil {
		return false
	}
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(gpu, vk.Format(format), &properties)
	properties.Deref()

	want := vk.FormatFeatureFlags(features)
	if tiling == driver.ImageTilingLinear {
		return properties.LinearTilingFeatures&want == want
	}
	return properties.OptimalTilingFeatures&want == want
}

func (d *Driver) surfaceCapabilities() (vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(d.gpu, d.surface, &caps), "vkGetPhysicalDeviceSurfaceCapabilities"); err != nil {
		return caps, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, nil
}

func (d *Driver) SurfaceCapabilities() (driver.SurfaceCapabilities, error) {
	caps, err := d.surfaceCapabilities()
	if err != nil {
		return driver.SurfaceCapabilities{}, err
	}
	return driver.SurfaceCapabilities{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  driver.Extent{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinImageExtent: driver.Extent{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxImageExtent: driver.Extent{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
	}, nil
}

func (d *Driver) SurfaceFormats() ([]driver.SurfaceFormat, error) {
	var count uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(d.gpu, d.surface, &count, nil), "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, count)
	if count > 0 {
		if err := check(vk.GetPhysicalDeviceSurfaceFormats(d.gpu, d.surface, &count, formats), "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
			return nil, err
		}
	}
	out := make([]driver.SurfaceFormat, len(formats))
	for i := range formats {
		formats[i].Deref()
		out[i] = driver.SurfaceFormat{
			Format:     driver.Format(formats[i].Format),
			ColorSpace: driver.ColorSpace(formats[i].ColorSpace),
		}
	}
	return out, nil
}

func (d *Driver) PresentModes() ([]driver.PresentMode, error) {
	var count uint32
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(d.gpu, d.surface, &count, nil), "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, count)
	if count > 0 {
		if err := check(vk.GetPhysicalDeviceSurfacePresentModes(d.gpu, d.surface, &count, modes), "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
			return nil, err
		}
	}
	out := make([]driver.PresentMode, len(modes))
	for i, m := range modes {
		out[i] = driver.PresentMode(m)
	}
	return out, nil
}

// findMemoryIndex picks the first memory type allowed by typeFilter that has
// every requested property.
func (d *Driver) findMemoryIndex(typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		d.memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && d.memory.MemoryTypes[i].PropertyFlags&properties == properties {
			return i, nil
		}
	}
	return 0, driver.ErrNoMemoryType
}
