package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

func (d *Driver) CreateImage(info driver.ImageInfo) (driver.Image, error) {
	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  1,
		},
		MipLevels:     max(info.MipLevels, 1),
		ArrayLayers:   max(info.ArrayLayers, 1),
		Format:        vk.Format(info.Format),
		Tiling:        vk.ImageTiling(info.Tiling),
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(info.Usage),
		Samples:       vk.SampleCountFlagBits(max(info.Samples, driver.SampleCount1)),
		SharingMode:   vk.SharingModeExclusive,
	}
	if info.CubeCompatible {
		createInfo.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}

	var handle vk.Image
	if err := check(vk.CreateImage(d.device, &createInfo, d.allocator, &handle), "vkCreateImage"); err != nil {
		return 0, err
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, handle, &requirements)
	requirements.Deref()

	memory, err := d.allocate(requirements, info.Memory)
	if err != nil {
		vk.DestroyImage(d.device, handle, d.allocator)
		return 0, errors.Wrap(err, "image memory")
	}
	if err := check(vk.BindImageMemory(d.device, handle, memory, 0), "vkBindImageMemory"); err != nil {
		vk.FreeMemory(d.device, memory, d.allocator)
		vk.DestroyImage(d.device, handle, d.allocator)
		return 0, err
	}
	return driver.Image(d.images.put(&image{handle: handle, memory: memory})), nil
}

func (d *Driver) allocate(requirements vk.MemoryRequirements, properties driver.MemoryProperty) (vk.DeviceMemory, error) {
	index, err := d.findMemoryIndex(requirements.MemoryTypeBits, vk.MemoryPropertyFlags(properties))
	if err != nil {
		return nil, err
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: index,
	}
	var memory vk.DeviceMemory
	if err := check(vk.AllocateMemory(d.device, &allocateInfo, d.allocator, &memory), "vkAllocateMemory"); err != nil {
		return nil, err
	}
	return memory, nil
}

func (d *Driver) DestroyImage(id driver.Image) {
	img, ok := d.images.take(uint64(id))
	if !ok {
		return
	}
	// Swapchain images have no memory of their own and belong to the swapchain.
	if img.memory == nil {
		d.images.items[uint64(id)] = img
		return
	}
	vk.DestroyImage(d.device, img.handle, d.allocator)
	vk.FreeMemory(d.device, img.memory, d.allocator)
}

func (d *Driver) CreateImageView(info driver.ImageViewInfo) (driver.ImageView, error) {
	img, ok := d.images.lookup(uint64(info.Image))
	if !ok {
		return 0, errors.Wrapf(driver.ErrInvalidHandle, "image %d", info.Image)
	}
	createInfo := vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            img.handle,
		ViewType:         vk.ImageViewType(info.ViewType),
		Format:           vk.Format(info.Format),
		SubresourceRange: subresourceRange(info.Range),
	}
	var view vk.ImageView
	if err := check(vk.CreateImageView(d.device, &createInfo, d.allocator, &view), "vkCreateImageView"); err != nil {
		return 0, err
	}
	return driver.ImageView(d.views.put(view)), nil
}

func (d *Driver) DestroyImageView(id driver.ImageView) {
	if view, ok := d.views.take(uint64(id)); ok {
		vk.DestroyImageView(d.device, view, d.allocator)
	}
}

func subresourceRange(r driver.SubresourceRange) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(r.Aspect),
		BaseMipLevel:   r.BaseMip,
		LevelCount:     r.MipCount,
		BaseArrayLayer: r.BaseLayer,
		LayerCount:     r.LayerCount,
	}
}

func subresourceLayers(l driver.ImageSubresourceLayers) vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask:     vk.ImageAspectFlags(l.Aspect),
		MipLevel:       l.Mip,
		BaseArrayLayer: l.BaseLayer,
		LayerCount:     l.LayerCount,
	}
}

func (d *Driver) CreateBuffer(info driver.BufferInfo) (driver.Buffer, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(info.Size),
		Usage:       vk.BufferUsageFlags(info.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if err := check(vk.CreateBuffer(d.device, &createInfo, d.allocator, &handle), "vkCreateBuffer"); err != nil {
		return 0, err
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, handle, &requirements)
	requirements.Deref()

	memory, err := d.allocate(requirements, info.Memory)
	if err != nil {
		vk.DestroyBuffer(d.device, handle, d.allocator)
		return 0, errors.Wrap(err, "buffer memory")
	}
	if err := check(vk.BindBufferMemory(d.device, handle, memory, 0), "vkBindBufferMemory"); err != nil {
		vk.FreeMemory(d.device, memory, d.allocator)
		vk.DestroyBuffer(d.device, handle, d.allocator)
		return 0, err
	}
	return driver.Buffer(d.buffers.put(&buffer{handle: handle, memory: memory, size: info.Size})), nil
}

func (d *Driver) bufferRange(id driver.Buffer, offset, size uint64) (*buffer, error) {
	buf, ok := d.buffers.lookup(uint64(id))
	if !ok {
		return nil, errors.Wrapf(driver.ErrInvalidHandle, "buffer %d", id)
	}
	if offset+size > buf.size {
		return nil, errors.Newf("range [%d, %d) exceeds buffer size %d", offset, offset+size, buf.size)
	}
	return buf, nil
}

// WriteBuffer copies data into host visible memory. The memory is expected
// to be host coherent, so no flush follows.
func (d *Driver) WriteBuffer(id driver.Buffer, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	buf, err := d.bufferRange(id, offset, uint64(len(data)))
	if err != nil {
		return err
	}
	var mapped unsafe.Pointer
	if err := check(vk.MapMemory(d.device, buf.memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &mapped), "vkMapMemory"); err != nil {
		return err
	}
	vk.Memcopy(mapped, data)
	vk.UnmapMemory(d.device, buf.memory)
	return nil
}

func (d *Driver) ReadBuffer(id driver.Buffer, offset, size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	buf, err := d.bufferRange(id, offset, size)
	if err != nil {
		return nil, err
	}
	var mapped unsafe.Pointer
	if err := check(vk.MapMemory(d.device, buf.memory, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &mapped), "vkMapMemory"); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(mapped), size))
	vk.UnmapMemory(d.device, buf.memory)
	return out, nil
}

func (d *Driver) DestroyBuffer(id driver.Buffer) {
	buf, ok := d.buffers.take(uint64(id))
	if !ok {
		return
	}
	vk.DestroyBuffer(d.device, buf.handle, d.allocator)
	vk.FreeMemory(d.device, buf.memory, d.allocator)
}
