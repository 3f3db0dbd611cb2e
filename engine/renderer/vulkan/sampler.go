package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

func (d *Driver) CreateSampler(info driver.SamplerInfo) (driver.Sampler, error) {
	createInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.Filter(info.MagFilter),
		MinFilter:               vk.Filter(info.MinFilter),
		MipmapMode:              vk.SamplerMipmapMode(info.MipmapMode),
		AddressModeU:            vk.SamplerAddressMode(info.AddressU),
		AddressModeV:            vk.SamplerAddressMode(info.AddressV),
		AddressModeW:            vk.SamplerAddressMode(info.AddressW),
		AnisotropyEnable:        boolean(info.Anisotropy),
		MaxAnisotropy:           info.MaxAnisotropy,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  info.MinLod,
		MaxLod:                  info.MaxLod,
	}
	if !info.Anisotropy {
		createInfo.MaxAnisotropy = 1
	}
	var sampler vk.Sampler
	if err := check(vk.CreateSampler(d.device, &createInfo, d.allocator, &sampler), "vkCreateSampler"); err != nil {
		return 0, err
	}
	return driver.Sampler(d.samplers.put(sampler)), nil
}

func (d *Driver) DestroySampler(id driver.Sampler) {
	if sampler, ok := d.samplers.take(uint64(id)); ok {
		vk.DestroySampler(d.device, sampler, d.allocator)
	}
}
