package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

// RenderTargetInfo describes an offscreen target. Color and Depth, when set,
// are borrowed: the target renders into them but never destroys them.
type RenderTargetInfo struct {
	Width  uint32
	Height uint32
	// Format of an owned color image. Defaults to R8G8B8A8_UNORM.
	Format    driver.Format
	Color     *Image
	Depth     *Image
	WantDepth bool
	Clear     [4]float32
}

// RenderTarget is a color image, an optional depth image, a render pass
// ending in SHADER_READ and the framebuffer binding them.
type RenderTarget struct {
	ctx  *Context
	name string

	color     *Image
	depth     *Image
	ownsColor bool
	ownsDepth bool

	pass        driver.RenderPass
	framebuffer driver.Framebuffer
	extent      driver.Extent
	clear       [4]float32
	active      bool
}

func NewRenderTarget(ctx *Context) *RenderTarget {
	return &RenderTarget{ctx: ctx, name: uuid.NewString()}
}

func (rt *RenderTarget) Initialize(info RenderTargetInfo) (err error) {
	if !rt.ctx.initialized {
		return ErrNotInitialized
	}
	if rt.framebuffer != 0 {
		rt.Destroy()
	}

	var acquired releaseStack
	defer func() {
		if err != nil {
			acquired.unwind()
			rt.reset()
		}
	}()

	if info.Color != nil {
		rt.color, rt.ownsColor = info.Color, false
		if info.Width == 0 || info.Height == 0 {
			info.Width, info.Height = info.Color.Width(), info.Color.Height()
		}
	} else {
		format := info.Format
		if format == driver.FormatUndefined {
			format = driver.FormatR8G8B8A8Unorm
		}
		img, err := NewImage(rt.ctx, ImageSpec{
			Width:  info.Width,
			Height: info.Height,
			Format: format,
			Usage: driver.ImageUsageColorAttachment | driver.ImageUsageSampled |
				driver.ImageUsageTransferSrc | driver.ImageUsageTransferDst,
		})
		if err != nil {
			return errors.Wrapf(err, "render target %s color", rt.name)
		}
		acquired.push(img.Destroy)
		rt.color, rt.ownsColor = img, true
	}

	switch {
	case info.Depth != nil:
		rt.depth, rt.ownsDepth = info.Depth, false
	case info.WantDepth:
		img, err := NewImage(rt.ctx, ImageSpec{
			Width:  info.Width,
			Height: info.Height,
			Format: rt.ctx.depthFormat,
			Usage:  driver.ImageUsageDepthStencilAttachment,
		})
		if err != nil {
			return errors.Wrapf(err, "render target %s depth", rt.name)
		}
		acquired.push(img.Destroy)
		rt.depth, rt.ownsDepth = img, true
	}

	passInfo := driver.RenderPassInfo{
		Color: driver.AttachmentInfo{
			Format:        rt.color.Format(),
			Samples:       driver.SampleCount1,
			Load:          driver.LoadOpClear,
			Store:         driver.StoreOpStore,
			InitialLayout: driver.ImageLayoutUndefined,
			FinalLayout:   driver.ImageLayoutShaderReadOnlyOptimal,
		},
	}
	if rt.depth != nil {
		passInfo.Depth = &driver.AttachmentInfo{
			Format:        rt.depth.Format(),
			Samples:       driver.SampleCount1,
			Load:          driver.LoadOpClear,
			Store:         driver.StoreOpDontCare,
			InitialLayout: driver.ImageLayoutUndefined,
			FinalLayout:   driver.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}
	pass, err := rt.ctx.drv.CreateRenderPass(passInfo)
	if err != nil {
		return errors.Wrapf(err, "render target %s render pass", rt.name)
	}
	acquired.push(func() { rt.ctx.drv.DestroyRenderPass(pass) })

	attachments := []driver.ImageView{rt.color.View()}
	if rt.depth != nil {
		attachments = append(attachments, rt.depth.View())
	}
	fb, err := rt.ctx.drv.CreateFramebuffer(driver.FramebufferInfo{
		RenderPass:  pass,
		Attachments: attachments,
		Width:       info.Width,
		Height:      info.Height,
	})
	if err != nil {
		return errors.Wrapf(err, "render target %s framebuffer", rt.name)
	}

	rt.pass = pass
	rt.framebuffer = fb
	rt.extent = driver.Extent{Width: info.Width, Height: info.Height}
	rt.clear = info.Clear
	core.LogDebug("Render target %s created: %dx%d, depth=%t", rt.name, info.Width, info.Height, rt.depth != nil)
	return nil
}

// Begin opens the target's render pass on cb and sets a viewport and scissor
// covering the whole target. Every Begin must be matched by End.
func (rt *RenderTarget) Begin(cb driver.CommandBuffer) error {
	if rt.framebuffer == 0 {
		return ErrNotInitialized
	}
	if rt.active {
		return errors.Wrapf(ErrRenderPassActive, "render target %s", rt.name)
	}
	clears := []driver.ClearValue{{Color: rt.clear}}
	if rt.depth != nil {
		clears = append(clears, driver.ClearValue{Depth: 1})
	}
	drv := rt.ctx.drv
	drv.CmdBeginRenderPass(cb, driver.RenderPassBegin{
		RenderPass:  rt.pass,
		Framebuffer: rt.framebuffer,
		Area:        driver.Rect{Width: rt.extent.Width, Height: rt.extent.Height},
		ClearValues: clears,
	})
	drv.CmdSetViewport(cb, driver.Viewport{
		Width:    float32(rt.extent.Width),
		Height:   float32(rt.extent.Height),
		MaxDepth: 1,
	})
	drv.CmdSetScissor(cb, driver.Rect{Width: rt.extent.Width, Height: rt.extent.Height})
	rt.active = true
	return nil
}

// End closes the render pass. The color image is left shader-readable.
func (rt *RenderTarget) End(cb driver.CommandBuffer) error {
	if !rt.active {
		return errors.Wrapf(ErrRenderPassInactive, "render target %s", rt.name)
	}
	rt.ctx.drv.CmdEndRenderPass(cb)
	rt.color.setLayout(driver.ImageLayoutShaderReadOnlyOptimal)
	if rt.depth != nil {
		rt.depth.setLayout(driver.ImageLayoutDepthStencilAttachmentOptimal)
	}
	rt.active = false
	return nil
}

func (rt *RenderTarget) Name() string {
	return rt.name
}

func (rt *RenderTarget) Color() *Image {
	return rt.color
}

func (rt *RenderTarget) Depth() *Image {
	return rt.depth
}

func (rt *RenderTarget) RenderPass() driver.RenderPass {
	return rt.pass
}

func (rt *RenderTarget) Framebuffer() driver.Framebuffer {
	return rt.framebuffer
}

func (rt *RenderTarget) Extent() driver.Extent {
	return rt.extent
}

func (rt *RenderTarget) Active() bool {
	return rt.active
}

// Destroy releases the framebuffer, the render pass and the images the
// target allocated itself. Borrowed images are left alone.
func (rt *RenderTarget) Destroy() {
	drv := rt.ctx.drv
	if rt.framebuffer != 0 {
		drv.DestroyFramebuffer(rt.framebuffer)
	}
	if rt.pass != 0 {
		drv.DestroyRenderPass(rt.pass)
	}
	if rt.ownsDepth && rt.depth != nil {
		rt.depth.Destroy()
	}
	if rt.ownsColor && rt.color != nil {
		rt.color.Destroy()
	}
	rt.reset()
}

func (rt *RenderTarget) reset() {
	rt.color, rt.depth = nil, nil
	rt.ownsColor, rt.ownsDepth = false, false
	rt.pass, rt.framebuffer = 0, 0
	rt.extent = driver.Extent{}
	rt.active = false
}
