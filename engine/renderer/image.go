package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

// ImageSpec describes a device-local image and the view created with it.
type ImageSpec struct {
	Width     uint32
	Height    uint32
	MipLevels uint32
	// Layers is 1 for plain images and 6 for cubemaps.
	Layers  uint32
	Format  driver.Format
	Usage   driver.ImageUsage
	Samples driver.SampleCount
	Cube    bool
}

// Image owns a GPU image, its memory and one view covering every mip and
// layer. The layout it was last transitioned to is tracked so callers can
// chain transitions without repeating it.
type Image struct {
	ctx    *Context
	handle driver.Image
	view   driver.ImageView
	spec   ImageSpec
	layout driver.ImageLayout
}

func NewImage(ctx *Context, spec ImageSpec) (*Image, error) {
	if !ctx.initialized {
		return nil, ErrNotInitialized
	}
	if spec.Width == 0 || spec.Height == 0 {
		return nil, errors.Newf("invalid image size %dx%d", spec.Width, spec.Height)
	}
	if spec.MipLevels == 0 {
		spec.MipLevels = 1
	}
	if spec.Layers == 0 {
		spec.Layers = 1
	}
	if spec.Samples == 0 {
		spec.Samples = driver.SampleCount1
	}

	handle, err := ctx.drv.CreateImage(driver.ImageInfo{
		Width:          spec.Width,
		Height:         spec.Height,
		MipLevels:      spec.MipLevels,
		ArrayLayers:    spec.Layers,
		Format:         spec.Format,
		Tiling:         driver.ImageTilingOptimal,
		Usage:          spec.Usage,
		Samples:        spec.Samples,
		Memory:         driver.MemoryPropertyDeviceLocal,
		CubeCompatible: spec.Cube,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create image")
	}

	viewType := driver.ImageViewType2D
	if spec.Cube {
		viewType = driver.ImageViewTypeCube
	}
	view, err := ctx.drv.CreateImageView(driver.ImageViewInfo{
		Image:    handle,
		ViewType: viewType,
		Format:   spec.Format,
		Range:    fullRange(spec),
	})
	if err != nil {
		ctx.drv.DestroyImage(handle)
		return nil, errors.Wrap(err, "create image view")
	}

	return &Image{
		ctx:    ctx,
		handle: handle,
		view:   view,
		spec:   spec,
		layout: driver.ImageLayoutUndefined,
	}, nil
}

func fullRange(spec ImageSpec) driver.SubresourceRange {
	return driver.SubresourceRange{
		Aspect:     driver.AspectFor(spec.Format),
		BaseMip:    0,
		MipCount:   spec.MipLevels,
		BaseLayer:  0,
		LayerCount: spec.Layers,
	}
}

func (i *Image) Handle() driver.Image { return i.handle }
func (i *Image) View() driver.ImageView { return i.view }
func (i *Image) Spec() ImageSpec { return i.spec }
func (i *Image) Width() uint32 { return i.spec.Width }
func (i *Image) Height() uint32 { return i.spec.Height }
func (i *Image) Format() driver.Format { return i.spec.Format }
func (i *Image) Layout() driver.ImageLayout { return i.layout }
func (i *Image) Extent() driver.Extent { return driver.Extent{Width: i.spec.Width, Height: i.spec.Height} }
func (i *Image) FullRange() driver.SubresourceRange { return fullRange(i.spec) }

// LayerSize is the byte size of mip 0 of one layer.
func (i *Image) LayerSize() uint64 {
	return uint64(i.spec.Width) * uint64(i.spec.Height) * uint64(driver.TexelSize(i.spec.Format))
}

// setLayout records a layout change performed outside TransitionLayout,
// e.g. by a render pass final layout.
func (i *Image) setLayout(layout driver.ImageLayout) {
	i.layout = layout
}

func (i *Image) Destroy() {
	if i.view != 0 {
		i.ctx.drv.DestroyImageView(i.view)
		i.view = 0
	}
	if i.handle != 0 {
		i.ctx.drv.DestroyImage(i.handle)
		i.handle = 0
	}
}

// layoutAccess returns the access mask and pipeline stage through which an
// image in layout is used.
func layoutAccess(layout driver.ImageLayout) (driver.Access, driver.PipelineStage, bool) {
	switch layout {
	case driver.ImageLayoutUndefined:
		return 0, driver.PipelineStageTopOfPipe, true
	case driver.ImageLayoutTransferDstOptimal:
		return driver.AccessTransferWrite, driver.PipelineStageTransfer, true
	case driver.ImageLayoutTransferSrcOptimal:
		return driver.AccessTransferRead, driver.PipelineStageTransfer, true
	case driver.ImageLayoutShaderReadOnlyOptimal:
		return driver.AccessShaderRead, driver.PipelineStageFragmentShader, true
	case driver.ImageLayoutColorAttachmentOptimal:
		return driver.AccessColorAttachmentRead | driver.AccessColorAttachmentWrite,
			driver.PipelineStageColorAttachmentOutput, true
	case driver.ImageLayoutDepthStencilAttachmentOptimal:
		return driver.AccessDepthStencilAttachmentRead | driver.AccessDepthStencilAttachmentWrite,
			driver.PipelineStageEarlyFragmentTests | driver.PipelineStageLateFragmentTests, true
	case driver.ImageLayoutPresentSrc:
		return 0, driver.PipelineStageBottomOfPipe, true
	}
	return 0, 0, false
}

// barrierFor builds the barrier moving r of image between two layouts.
// Nothing may transition into UNDEFINED.
func barrierFor(image driver.Image, from, to driver.ImageLayout, r driver.SubresourceRange) (driver.ImageBarrier, error) {
	srcAccess, srcStage, okSrc := layoutAccess(from)
	dstAccess, dstStage, okDst := layoutAccess(to)
	if !okSrc || !okDst || to == driver.ImageLayoutUndefined {
		return driver.ImageBarrier{}, errors.Newf("unsupported layout transition %d -> %d", from, to)
	}
	return driver.ImageBarrier{
		Image:     image,
		OldLayout: from,
		NewLayout: to,
		SrcAccess: srcAccess,
		DstAccess: dstAccess,
		SrcStage:  srcStage,
		DstStage:  dstStage,
		Range:     r,
	}, nil
}

// TransitionLayout records a barrier moving r from one layout to another.
// When r spans the whole image the tracked layout follows.
func (i *Image) TransitionLayout(cb driver.CommandBuffer, from, to driver.ImageLayout, r driver.SubresourceRange) error {
	barrier, err := barrierFor(i.handle, from, to, r)
	if err != nil {
		return err
	}
	i.ctx.drv.CmdPipelineBarrier(cb, barrier)
	if r == i.FullRange() {
		i.layout = to
	}
	return nil
}

// Transition moves the whole image from its tracked layout to layout.
func (i *Image) Transition(cb driver.CommandBuffer, layout driver.ImageLayout) error {
	if i.layout == layout {
		return nil
	}
	return i.TransitionLayout(cb, i.layout, layout, i.FullRange())
}

// CopyFromBuffer fills mip 0 of layers [baseLayer, baseLayer+layerCount)
// from tightly packed texels starting at offset. The image must be in
// TRANSFER_DST.
func (i *Image) CopyFromBuffer(cb driver.CommandBuffer, buf driver.Buffer, offset uint64, baseLayer, layerCount uint32) {
	i.ctx.drv.CmdCopyBufferToImage(cb, buf, i.handle, []driver.BufferImageCopy{{
		BufferOffset: offset,
		Subresource: driver.ImageSubresourceLayers{
			Aspect:     driver.AspectFor(i.spec.Format),
			Mip:        0,
			BaseLayer:  baseLayer,
			LayerCount: layerCount,
		},
		Extent: i.Extent(),
	}})
}

// CopyToBuffer writes mip 0 of layer into buf at offset. The image must be
// in TRANSFER_SRC.
func (i *Image) CopyToBuffer(cb driver.CommandBuffer, buf driver.Buffer, offset uint64, layer uint32) {
	i.ctx.drv.CmdCopyImageToBuffer(cb, i.handle, buf, []driver.BufferImageCopy{{
		BufferOffset: offset,
		Subresource: driver.ImageSubresourceLayers{
			Aspect:     driver.AspectFor(i.spec.Format),
			Mip:        0,
			BaseLayer:  layer,
			LayerCount: 1,
		},
		Extent: i.Extent(),
	}})
}

// CopyFromImage copies mip 0 of src into layer of i. src must be in
// TRANSFER_SRC and i in TRANSFER_DST, and both must share size and format.
func (i *Image) CopyFromImage(cb driver.CommandBuffer, src *Image, layer uint32) error {
	if src.spec.Width != i.spec.Width || src.spec.Height != i.spec.Height {
		return errors.Wrapf(ErrFaceSizeMismatch, "%dx%d into %dx%d", src.spec.Width, src.spec.Height, i.spec.Width, i.spec.Height)
	}
	if src.spec.Format != i.spec.Format {
		return errors.Wrapf(ErrFaceFormatMismatch, "%d into %d", src.spec.Format, i.spec.Format)
	}
	aspect := driver.AspectFor(i.spec.Format)
	i.ctx.drv.CmdCopyImage(cb, src.handle, i.handle, driver.ImageCopy{
		Src:    driver.ImageSubresourceLayers{Aspect: aspect, LayerCount: 1},
		Dst:    driver.ImageSubresourceLayers{Aspect: aspect, BaseLayer: layer, LayerCount: 1},
		Extent: i.Extent(),
	})
	return nil
}

// GenerateMipmaps blits every level from the one above it. All levels must
// be in TRANSFER_DST with mip 0 filled; afterwards all are SHADER_READ.
func (i *Image) GenerateMipmaps(cb driver.CommandBuffer) error {
	if !i.ctx.drv.FormatSupported(i.spec.Format, driver.ImageTilingOptimal, driver.FormatFeatureSampledImageFilterLinear) {
		return errors.Newf("format %d does not support linear blitting", i.spec.Format)
	}

	aspect := driver.AspectFor(i.spec.Format)
	mipRange := func(level uint32) driver.SubresourceRange {
		return driver.SubresourceRange{Aspect: aspect, BaseMip: level, MipCount: 1, LayerCount: i.spec.Layers}
	}

	w, h := int32(i.spec.Width), int32(i.spec.Height)
	for level := uint32(1); level < i.spec.MipLevels; level++ {
		if err := i.TransitionLayout(cb, driver.ImageLayoutTransferDstOptimal, driver.ImageLayoutTransferSrcOptimal, mipRange(level-1)); err != nil {
			return err
		}

		nw, nh := max(w/2, 1), max(h/2, 1)
		i.ctx.drv.CmdBlitImage(cb, i.handle, i.handle, driver.ImageBlit{
			Src:       driver.ImageSubresourceLayers{Aspect: aspect, Mip: level - 1, LayerCount: i.spec.Layers},
			SrcOffset: [2]driver.Offset{{}, {X: w, Y: h, Z: 1}},
			Dst:       driver.ImageSubresourceLayers{Aspect: aspect, Mip: level, LayerCount: i.spec.Layers},
			DstOffset: [2]driver.Offset{{}, {X: nw, Y: nh, Z: 1}},
			Filter:    driver.FilterLinear,
		})

		if err := i.TransitionLayout(cb, driver.ImageLayoutTransferSrcOptimal, driver.ImageLayoutShaderReadOnlyOptimal, mipRange(level-1)); err != nil {
			return err
		}
		w, h = nw, nh
	}

	if err := i.TransitionLayout(cb, driver.ImageLayoutTransferDstOptimal, driver.ImageLayoutShaderReadOnlyOptimal, mipRange(i.spec.MipLevels-1)); err != nil {
		return err
	}
	i.layout = driver.ImageLayoutShaderReadOnlyOptimal
	return nil
}

// upload replaces mip 0 of every layer with data through a staging buffer
// and leaves the image shader-readable, with mips regenerated when the image
// has more than one level.
func (i *Image) upload(data []byte) error {
	staging, err := i.ctx.newStagingBuffer(uint64(len(data)), data)
	if err != nil {
		return err
	}
	defer i.ctx.drv.DestroyBuffer(staging)

	return i.ctx.SubmitOnce(func(cb driver.CommandBuffer) error {
		if err := i.TransitionLayout(cb, i.layout, driver.ImageLayoutTransferDstOptimal, i.FullRange()); err != nil {
			return err
		}
		i.CopyFromBuffer(cb, staging, 0, 0, i.spec.Layers)
		if i.spec.MipLevels > 1 {
			return i.GenerateMipmaps(cb)
		}
		return i.Transition(cb, driver.ImageLayoutShaderReadOnlyOptimal)
	})
}
