package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

// Sampler wraps a filtering configuration. Samplers are shared between
// textures by convention: whoever created one destroys it, after every
// texture using it is gone.
type Sampler struct {
	ctx    *Context
	handle driver.Sampler
	info   driver.SamplerInfo
}

// DefaultSamplerInfo is trilinear with repeat addressing. Anisotropy is on
// whenever the adapter supports it.
func DefaultSamplerInfo(adapter driver.Adapter) driver.SamplerInfo {
	info := driver.SamplerInfo{
		MagFilter:  driver.FilterLinear,
		MinFilter:  driver.FilterLinear,
		MipmapMode: driver.MipmapModeLinear,
		AddressU:   driver.AddressModeRepeat,
		AddressV:   driver.AddressModeRepeat,
		AddressW:   driver.AddressModeRepeat,
		MinLod:     0,
		MaxLod:     1000,
	}
	if adapter.Features.SamplerAnisotropy && adapter.MaxAnisotropy > 1 {
		info.Anisotropy = true
		info.MaxAnisotropy = adapter.MaxAnisotropy
	}
	return info
}

// ClampSamplerInfo samples edge texels outside [0,1]. Cubemap faces and
// render target outputs use it to avoid seams.
func ClampSamplerInfo(adapter driver.Adapter) driver.SamplerInfo {
	info := DefaultSamplerInfo(adapter)
	info.AddressU = driver.AddressModeClampToEdge
	info.AddressV = driver.AddressModeClampToEdge
	info.AddressW = driver.AddressModeClampToEdge
	return info
}

func (c *Context) NewSampler(info driver.SamplerInfo) (*Sampler, error) {
	if !c.initialized {
		return nil, ErrNotInitialized
	}
	if info.Anisotropy && !c.adapter.Features.SamplerAnisotropy {
		info.Anisotropy = false
		info.MaxAnisotropy = 0
	}
	h, err := c.drv.CreateSampler(info)
	if err != nil {
		return nil, errors.Wrap(err, "create sampler")
	}
	return &Sampler{ctx: c, handle: h, info: info}, nil
}

func (s *Sampler) Handle() driver.Sampler {
	return s.handle
}

func (s *Sampler) Info() driver.SamplerInfo {
	return s.info
}

func (s *Sampler) Destroy() {
	if s.handle == 0 {
		return
	}
	s.ctx.drv.DestroySampler(s.handle)
	s.handle = 0
}
