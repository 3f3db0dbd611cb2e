package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

// CubeFaces is the number of layers of a cube image, in +X, -X, +Y, -Y, +Z,
// -Z order.
const CubeFaces = 6

// Cubemap is one cube-compatible image with six layers, its cube view and a
// descriptor set.
type Cubemap struct {
	ctx  *Context
	name string

	image      *Image
	descriptor driver.DescriptorSet
}

func NewCubemap(ctx *Context) *Cubemap {
	return &Cubemap{ctx: ctx, name: uuid.NewString()}
}

// Initialize combines six equally sized faces of one format into the cube.
// Faces are staged through one host buffer: they are first copied into it
// back to back and then copied into all six layers at once. Each face is
// returned to the layout it was in, SHADER_READ if that was undefined.
// A nil sampler selects the context default. On failure a previously
// initialized cube is left untouched.
func (c *Cubemap) Initialize(faces [CubeFaces]*Image, sampler *Sampler) error {
	if !c.ctx.initialized {
		return ErrNotInitialized
	}
	for i, f := range faces {
		if f == nil {
			return errors.Newf("cubemap face %d is missing", i)
		}
		if f.Width() != faces[0].Width() || f.Height() != faces[0].Height() {
			return errors.Wrapf(ErrFaceSizeMismatch, "face %d is %dx%d, face 0 is %dx%d",
				i, f.Width(), f.Height(), faces[0].Width(), faces[0].Height())
		}
		if f.Format() != faces[0].Format() {
			return errors.Wrapf(ErrFaceFormatMismatch, "face %d", i)
		}
	}

	faceSize := faces[0].LayerSize()
	staging, err := c.ctx.newStagingBuffer(faceSize*CubeFaces, nil)
	if err != nil {
		return err
	}
	defer c.ctx.drv.DestroyBuffer(staging)

	err = c.ctx.SubmitOnce(func(cb driver.CommandBuffer) error {
		for i, f := range faces {
			restore := f.Layout()
			if restore == driver.ImageLayoutUndefined {
				restore = driver.ImageLayoutShaderReadOnlyOptimal
			}
			if err := f.Transition(cb, driver.ImageLayoutTransferSrcOptimal); err != nil {
				return err
			}
			f.CopyToBuffer(cb, staging, uint64(i)*faceSize, 0)
			if err := f.Transition(cb, restore); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "cubemap %s: stage faces", c.name)
	}

	image, err := NewImage(c.ctx, ImageSpec{
		Width:  faces[0].Width(),
		Height: faces[0].Height(),
		Layers: CubeFaces,
		Format: faces[0].Format(),
		Usage:  driver.ImageUsageSampled | driver.ImageUsageTransferDst | driver.ImageUsageTransferSrc,
		Cube:   true,
	})
	if err != nil {
		return errors.Wrapf(err, "cubemap %s", c.name)
	}

	err = c.ctx.SubmitOnce(func(cb driver.CommandBuffer) error {
		if err := image.Transition(cb, driver.ImageLayoutTransferDstOptimal); err != nil {
			return err
		}
		image.CopyFromBuffer(cb, staging, 0, 0, CubeFaces)
		return image.Transition(cb, driver.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		image.Destroy()
		return errors.Wrapf(err, "cubemap %s: fill layers", c.name)
	}

	if sampler == nil {
		if sampler, err = c.ctx.DefaultSampler(); err != nil {
			image.Destroy()
			return err
		}
	}
	set, err := c.ctx.allocateImageDescriptor(image.View(), sampler)
	if err != nil {
		image.Destroy()
		return errors.Wrapf(err, "cubemap %s", c.name)
	}

	// The previous cube stays usable until its replacement is complete.
	c.Cleanup()
	c.image = image
	c.descriptor = set
	core.LogDebug("Cubemap %s created: %dx%d per face.", c.name, image.Width(), image.Height())
	return nil
}

func (c *Cubemap) Image() *Image {
	return c.image
}

func (c *Cubemap) Descriptor() driver.DescriptorSet {
	return c.descriptor
}

func (c *Cubemap) Name() string {
	return c.name
}

func (c *Cubemap) Size() uint32 {
	if c.image == nil {
		return 0
	}
	return c.image.Width()
}

func (c *Cubemap) Cleanup() {
	c.ctx.freeDescriptor(c.descriptor)
	c.descriptor = 0
	if c.image != nil {
		c.image.Destroy()
		c.image = nil
	}
}
