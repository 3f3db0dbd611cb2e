package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/math"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

// SwapchainOptions carries the caller's preferences. Width and Height are the
// window framebuffer size, used only when the surface lets us choose.
type SwapchainOptions struct {
	VSync  bool
	Width  uint32
	Height uint32
}

// Swapchain owns the presentation swapchain, one view per image and, once a
// render pass is known, one framebuffer per image. Images, views and
// framebuffers are always parallel.
type Swapchain struct {
	ctx *Context

	handle       driver.Swapchain
	format       driver.SurfaceFormat
	presentMode  driver.PresentMode
	extent       driver.Extent
	images       []driver.Image
	views        []driver.ImageView
	framebuffers []driver.Framebuffer
}

// ChooseSurfaceFormat prefers 8-bit BGRA sRGB with a non-linear sRGB color
// space and otherwise takes whatever the surface lists first.
func ChooseSurfaceFormat(formats []driver.SurfaceFormat) (driver.SurfaceFormat, error) {
	if len(formats) == 0 {
		return driver.SurfaceFormat{}, ErrNoSurfaceFormat
	}
	for _, f := range formats {
		if f.Format == driver.FormatB8G8R8A8Srgb && f.ColorSpace == driver.ColorSpaceSrgbNonlinear {
			return f, nil
		}
	}
	return formats[0], nil
}

// ChoosePresentMode picks MAILBOX only when vsync is off and the surface
// supports it. FIFO is always available.
func ChoosePresentMode(modes []driver.PresentMode, vsync bool) driver.PresentMode {
	if !vsync {
		for _, m := range modes {
			if m == driver.PresentModeMailbox {
				return m
			}
		}
	}
	return driver.PresentModeFifo
}

// ChooseExtent uses the surface's current extent unless it reports
// AnyExtent, in which case the window size is used. The result is always
// clamped into the surface limits.
func ChooseExtent(caps driver.SurfaceCapabilities, width, height uint32) driver.Extent {
	extent := caps.CurrentExtent
	if extent.Width == driver.AnyExtent {
		extent = driver.Extent{Width: width, Height: height}
	}
	extent.Width = math.Clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	extent.Height = math.Clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	return extent
}

// ChooseImageCount asks for one image more than the minimum, capped by the
// maximum when the surface declares one.
func ChooseImageCount(caps driver.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func NewSwapchain(ctx *Context, opts SwapchainOptions) (*Swapchain, error) {
	if !ctx.initialized {
		return nil, ErrNotInitialized
	}
	drv := ctx.drv

	caps, err := drv.SurfaceCapabilities()
	if err != nil {
		return nil, errors.Wrap(err, "query surface capabilities")
	}
	formats, err := drv.SurfaceFormats()
	if err != nil {
		return nil, errors.Wrap(err, "query surface formats")
	}
	modes, err := drv.PresentModes()
	if err != nil {
		return nil, errors.Wrap(err, "query present modes")
	}

	format, err := ChooseSurfaceFormat(formats)
	if err != nil {
		return nil, err
	}

	sc := &Swapchain{
		ctx:         ctx,
		format:      format,
		presentMode: ChoosePresentMode(modes, opts.VSync),
		extent:      ChooseExtent(caps, opts.Width, opts.Height),
	}

	sc.handle, err = drv.CreateSwapchain(driver.SwapchainInfo{
		MinImageCount: ChooseImageCount(caps),
		Format:        sc.format,
		Extent:        sc.extent,
		PresentMode:   sc.presentMode,
		QueueFamilies: ctx.families.Unique(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}

	if sc.images, err = drv.SwapchainImages(sc.handle); err != nil {
		sc.Destroy()
		return nil, errors.Wrap(err, "get swapchain images")
	}

	sc.views = make([]driver.ImageView, 0, len(sc.images))
	for i, img := range sc.images {
		view, err := drv.CreateImageView(driver.ImageViewInfo{
			Image:    img,
			ViewType: driver.ImageViewType2D,
			Format:   sc.format.Format,
			Range:    driver.SubresourceRange{Aspect: driver.ImageAspectColor, MipCount: 1, LayerCount: 1},
		})
		if err != nil {
			sc.Destroy()
			return nil, errors.Wrapf(err, "create swapchain image view %d", i)
		}
		sc.views = append(sc.views, view)
	}

	core.LogInfo("Swapchain created: %dx%d, %d images, %s.", sc.extent.Width, sc.extent.Height, len(sc.images), sc.presentMode)
	return sc, nil
}

// CreateFramebuffers binds one framebuffer per image to pass. Existing
// framebuffers are destroyed first.
func (sc *Swapchain) CreateFramebuffers(pass driver.RenderPass) error {
	sc.destroyFramebuffers()
	sc.framebuffers = make([]driver.Framebuffer, 0, len(sc.views))
	for i, view := range sc.views {
		fb, err := sc.ctx.drv.CreateFramebuffer(driver.FramebufferInfo{
			RenderPass:  pass,
			Attachments: []driver.ImageView{view},
			Width:       sc.extent.Width,
			Height:      sc.extent.Height,
		})
		if err != nil {
			sc.destroyFramebuffers()
			return errors.Wrapf(err, "create swapchain framebuffer %d", i)
		}
		sc.framebuffers = append(sc.framebuffers, fb)
	}
	return nil
}

func (sc *Swapchain) destroyFramebuffers() {
	for _, fb := range sc.framebuffers {
		sc.ctx.drv.DestroyFramebuffer(fb)
	}
	sc.framebuffers = nil
}

// Destroy releases framebuffers, views and the swapchain, in that order.
// Images belong to the presentation engine.
func (sc *Swapchain) Destroy() {
	sc.destroyFramebuffers()
	for _, view := range sc.views {
		sc.ctx.drv.DestroyImageView(view)
	}
	sc.views = nil
	if sc.handle != 0 {
		sc.ctx.drv.DestroySwapchain(sc.handle)
		sc.handle = 0
	}
	sc.images = nil
}

func (sc *Swapchain) Handle() driver.Swapchain {
	return sc.handle
}

func (sc *Swapchain) Format() driver.SurfaceFormat {
	return sc.format
}

func (sc *Swapchain) PresentMode() driver.PresentMode {
	return sc.presentMode
}

func (sc *Swapchain) Extent() driver.Extent {
	return sc.extent
}

func (sc *Swapchain) ImageCount() uint32 {
	return uint32(len(sc.images))
}

func (sc *Swapchain) Images() []driver.Image {
	return sc.images
}

func (sc *Swapchain) Views() []driver.ImageView {
	return sc.views
}

func (sc *Swapchain) Framebuffer(index uint32) driver.Framebuffer {
	return sc.framebuffers[index]
}
