package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

func (d *Driver) CreateSemaphore() (driver.Semaphore, error) {
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := check(vk.CreateSemaphore(d.device, &createInfo, d.allocator, &semaphore), "vkCreateSemaphore"); err != nil {
		return 0, err
	}
	return driver.Semaphore(d.semaphores.put(semaphore)), nil
}

func (d *Driver) DestroySemaphore(id driver.Semaphore) {
	if semaphore, ok := d.semaphores.take(uint64(id)); ok {
		vk.DestroySemaphore(d.device, semaphore, d.allocator)
	}
}

func (d *Driver) semaphoreList(ids []driver.Semaphore) []vk.Semaphore {
	if len(ids) == 0 {
		return nil
	}
	out := make([]vk.Semaphore, len(ids))
	for i, id := range ids {
		out[i] = d.semaphores.get(uint64(id))
	}
	return out
}

func (d *Driver) CreateFence(signaled bool) (driver.Fence, error) {
	createInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		createInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := check(vk.CreateFence(d.device, &createInfo, d.allocator, &fence), "vkCreateFence"); err != nil {
		return 0, err
	}
	return driver.Fence(d.fences.put(fence)), nil
}

func (d *Driver) DestroyFence(id driver.Fence) {
	if fence, ok := d.fences.take(uint64(id)); ok {
		vk.DestroyFence(d.device, fence, d.allocator)
	}
}

func (d *Driver) WaitForFence(id driver.Fence, timeout uint64) error {
	fence, ok := d.fences.lookup(uint64(id))
	if !ok {
		return errors.Wrapf(driver.ErrInvalidHandle, "fence %d", id)
	}
	result := vk.WaitForFences(d.device, 1, []vk.Fence{fence}, vk.True, timeout)
	switch result {
	case vk.Success:
		return nil
	case vk.Timeout:
		core.LogWarn("Fence %d timed out.", id)
		return errors.Newf("fence %d timed out after %dns", id, timeout)
	}
	return check(result, "vkWaitForFences")
}

func (d *Driver) ResetFence(id driver.Fence) error {
	fence, ok := d.fences.lookup(uint64(id))
	if !ok {
		return errors.Wrapf(driver.ErrInvalidHandle, "fence %d", id)
	}
	return check(vk.ResetFences(d.device, 1, []vk.Fence{fence}), "vkResetFences")
}
