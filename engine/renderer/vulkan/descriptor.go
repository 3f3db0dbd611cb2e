package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

func (d *Driver) CreateDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: max(b.Count, 1),
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var layout vk.DescriptorSetLayout
	if err := check(vk.CreateDescriptorSetLayout(d.device, &createInfo, d.allocator, &layout), "vkCreateDescriptorSetLayout"); err != nil {
		return 0, err
	}
	return driver.DescriptorSetLayout(d.setLayouts.put(layout)), nil
}

func (d *Driver) DestroyDescriptorSetLayout(id driver.DescriptorSetLayout) {
	if layout, ok := d.setLayouts.take(uint64(id)); ok {
		vk.DestroyDescriptorSetLayout(d.device, layout, d.allocator)
	}
}

// CreateDescriptorPool creates a pool whose sets may be freed one by one.
func (d *Driver) CreateDescriptorPool(info driver.DescriptorPoolInfo) (driver.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, len(info.Sizes))
	for i, s := range info.Sizes {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       info.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if err := check(vk.CreateDescriptorPool(d.device, &createInfo, d.allocator, &pool), "vkCreateDescriptorPool"); err != nil {
		return 0, err
	}
	return driver.DescriptorPool(d.descriptorPools.put(pool)), nil
}

// DestroyDescriptorPool also forgets every set allocated from the pool.
func (d *Driver) DestroyDescriptorPool(id driver.DescriptorPool) {
	pool, ok := d.descriptorPools.take(uint64(id))
	if !ok {
		return
	}
	for setID, set := range d.descriptorSets.items {
		if set.pool == pool {
			delete(d.descriptorSets.items, setID)
		}
	}
	vk.DestroyDescriptorPool(d.device, pool, d.allocator)
}

func (d *Driver) AllocateDescriptorSet(poolID driver.DescriptorPool, layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	pool, ok := d.descriptorPools.lookup(uint64(poolID))
	if !ok {
		return 0, errors.Wrapf(driver.ErrInvalidHandle, "descriptor pool %d", poolID)
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{d.setLayouts.get(uint64(layout))},
	}
	var set vk.DescriptorSet
	if err := check(vk.AllocateDescriptorSets(d.device, &allocInfo, &set), "vkAllocateDescriptorSets"); err != nil {
		return 0, err
	}
	return driver.DescriptorSet(d.descriptorSets.put(descriptorSet{handle: set, pool: pool})), nil
}

func (d *Driver) FreeDescriptorSet(poolID driver.DescriptorPool, id driver.DescriptorSet) {
	set, ok := d.descriptorSets.take(uint64(id))
	if !ok {
		return
	}
	pool := d.descriptorPools.get(uint64(poolID))
	if pool == nil {
		pool = set.pool
	}
	vk.FreeDescriptorSets(d.device, pool, 1, &set.handle)
}

func (d *Driver) UpdateDescriptorImage(id driver.DescriptorSet, binding uint32, sampler driver.Sampler, view driver.ImageView, layout driver.ImageLayout) {
	set, ok := d.descriptorSets.lookup(uint64(id))
	if !ok {
		return
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set.handle,
		DstBinding:      binding,
		DstArrayElement: 0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     d.samplers.get(uint64(sampler)),
			ImageView:   d.views.get(uint64(view)),
			ImageLayout: vk.ImageLayout(layout),
		}},
	}
	vk.UpdateDescriptorSets(d.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func (d *Driver) UpdateDescriptorBuffer(id driver.DescriptorSet, binding uint32, typ driver.DescriptorType, buf driver.Buffer, offset, size uint64) {
	set, ok := d.descriptorSets.lookup(uint64(id))
	if !ok {
		return
	}
	var handle vk.Buffer
	if b, ok := d.buffers.lookup(uint64(buf)); ok {
		handle = b.handle
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set.handle,
		DstBinding:      binding,
		DstArrayElement: 0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorType(typ),
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: handle,
			Offset: vk.DeviceSize(offset),
			Range:  vk.DeviceSize(size),
		}},
	}
	vk.UpdateDescriptorSets(d.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func (d *Driver) CmdBindDescriptorSet(cb driver.CommandBuffer, layout driver.PipelineLayout, index uint32, id driver.DescriptorSet, dynamicOffsets []uint32) {
	set := d.descriptorSets.get(uint64(id))
	vk.CmdBindDescriptorSets(d.commandBuffers.get(uint64(cb)).handle, vk.PipelineBindPointGraphics,
		d.pipelineLayouts.get(uint64(layout)), index, 1, []vk.DescriptorSet{set.handle},
		uint32(len(dynamicOffsets)), dynamicOffsets)
}
