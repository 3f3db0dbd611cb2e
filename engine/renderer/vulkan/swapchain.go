package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

func (d *Driver) CreateSwapchain(info driver.SwapchainInfo) (driver.Swapchain, error) {
	caps, err := d.surfaceCapabilities()
	if err != nil {
		return 0, err
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    info.MinImageCount,
		ImageFormat:      vk.Format(info.Format.Format),
		ImageColorSpace:  vk.ColorSpace(info.Format.ColorSpace),
		ImageExtent:      vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentMode(info.PresentMode),
		Clipped:          vk.True,
	}

	if len(info.QueueFamilies) > 1 {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = uint32(len(info.QueueFamilies))
		createInfo.PQueueFamilyIndices = info.QueueFamilies
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	if old, ok := d.swapchains.lookup(uint64(info.Old)); ok {
		createInfo.OldSwapchain = old.handle
	}

	var handle vk.Swapchain
	if err := check(vk.CreateSwapchain(d.device, &createInfo, d.allocator, &handle), "vkCreateSwapchain"); err != nil {
		return 0, err
	}
	core.LogDebug("Swapchain created: %dx%d, %d images minimum, %s.",
		info.Extent.Width, info.Extent.Height, info.MinImageCount, info.PresentMode)
	return driver.Swapchain(d.swapchains.put(&swapchain{handle: handle})), nil
}

// SwapchainImages registers the presentable images once; repeated calls
// return the same handles. They carry no memory and are released with the
// swapchain.
func (d *Driver) SwapchainImages(id driver.Swapchain) ([]driver.Image, error) {
	sc, ok := d.swapchains.lookup(uint64(id))
	if !ok {
		return nil, errors.Wrapf(driver.ErrInvalidHandle, "swapchain %d", id)
	}
	if sc.images != nil {
		return sc.images, nil
	}

	var count uint32
	if err := check(vk.GetSwapchainImages(d.device, sc.handle, &count, nil), "vkGetSwapchainImages"); err != nil {
		return nil, err
	}
	handles := make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(d.device, sc.handle, &count, handles), "vkGetSwapchainImages"); err != nil {
		return nil, err
	}
	sc.images = make([]driver.Image, count)
	for i, h := range handles {
		sc.images[i] = driver.Image(d.images.put(&image{handle: h}))
	}
	return sc.images, nil
}

func (d *Driver) DestroySwapchain(id driver.Swapchain) {
	sc, ok := d.swapchains.take(uint64(id))
	if !ok {
		return
	}
	for _, img := range sc.images {
		d.images.take(uint64(img))
	}
	vk.DestroySwapchain(d.device, sc.handle, d.allocator)
}

func (d *Driver) AcquireNextImage(id driver.Swapchain, semaphore driver.Semaphore, timeout uint64) (uint32, driver.Status, error) {
	sc, ok := d.swapchains.lookup(uint64(id))
	if !ok {
		return 0, driver.StatusSuccess, errors.Wrapf(driver.ErrInvalidHandle, "swapchain %d", id)
	}
	var index uint32
	result := vk.AcquireNextImage(d.device, sc.handle, timeout, d.semaphores.get(uint64(semaphore)), vk.NullFence, &index)
	st, err := status(result, "vkAcquireNextImage")
	return index, st, err
}

func (d *Driver) QueuePresent(id driver.Queue, present driver.Present) (driver.Status, error) {
	q, ok := d.queues.lookup(uint64(id))
	if !ok {
		return driver.StatusSuccess, errors.Wrapf(driver.ErrInvalidHandle, "queue %d", id)
	}
	sc, ok := d.swapchains.lookup(uint64(present.Swapchain))
	if !ok {
		return driver.StatusSuccess, errors.Wrapf(driver.ErrInvalidHandle, "swapchain %d", present.Swapchain)
	}

	waits := d.semaphoreList(present.WaitSemaphores)
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.handle},
		PImageIndices:      []uint32{present.ImageIndex},
	}

	var st driver.Status
	err := d.locks.SafeQueueCall(q.family, func() error {
		var err error
		st, err = status(vk.QueuePresent(q.handle, &presentInfo), "vkQueuePresent")
		return err
	})
	return st, err
}
