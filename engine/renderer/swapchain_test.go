package renderer

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := driver.SurfaceFormat{Format: driver.FormatB8G8R8A8Srgb, ColorSpace: driver.ColorSpaceSrgbNonlinear}
	unorm := driver.SurfaceFormat{Format: driver.FormatB8G8R8A8Unorm, ColorSpace: driver.ColorSpaceSrgbNonlinear}
	rgba := driver.SurfaceFormat{Format: driver.FormatR8G8B8A8Unorm, ColorSpace: driver.ColorSpaceSrgbNonlinear}

	if got, _ := ChooseSurfaceFormat([]driver.SurfaceFormat{unorm, preferred}); got != preferred {
		t.Errorf("got %+v, want BGRA sRGB", got)
	}
	if got, _ := ChooseSurfaceFormat([]driver.SurfaceFormat{rgba, unorm}); got != rgba {
		t.Errorf("got %+v, want the first listed format", got)
	}
	if _, err := ChooseSurfaceFormat(nil); !errors.Is(err, ErrNoSurfaceFormat) {
		t.Errorf("err = %v, want ErrNoSurfaceFormat", err)
	}
}

func TestChoosePresentMode(t *testing.T) {
	all := []driver.PresentMode{driver.PresentModeImmediate, driver.PresentModeFifo, driver.PresentModeMailbox}
	fifoOnly := []driver.PresentMode{driver.PresentModeFifo}

	tests := []struct {
		name  string
		modes []driver.PresentMode
		vsync bool
		want  driver.PresentMode
	}{
		{"no vsync with mailbox", all, false, driver.PresentModeMailbox},
		{"vsync with mailbox", all, true, driver.PresentModeFifo},
		{"no vsync without mailbox", fifoOnly, false, driver.PresentModeFifo},
		{"vsync without mailbox", fifoOnly, true, driver.PresentModeFifo},
		{"nothing reported", nil, false, driver.PresentModeFifo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChoosePresentMode(tt.modes, tt.vsync); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestChooseExtentIsAlwaysClamped(t *testing.T) {
	caps := driver.SurfaceCapabilities{
		CurrentExtent:  driver.Extent{Width: driver.AnyExtent, Height: driver.AnyExtent},
		MinImageExtent: driver.Extent{Width: 64, Height: 32},
		MaxImageExtent: driver.Extent{Width: 1920, Height: 1080},
	}
	sizes := []uint32{0, 1, 31, 32, 64, 500, 1080, 1920, 4000, 1 << 20}
	for _, w := range sizes {
		for _, h := range sizes {
			got := ChooseExtent(caps, w, h)
			if got.Width < 64 || got.Width > 1920 || got.Height < 32 || got.Height > 1080 {
				t.Fatalf("ChooseExtent(%d, %d) = %v escapes the surface limits", w, h, got)
			}
		}
	}

	if got := ChooseExtent(caps, 800, 600); got != (driver.Extent{Width: 800, Height: 600}) {
		t.Errorf("window size inside limits changed: %v", got)
	}

	caps.CurrentExtent = driver.Extent{Width: 1280, Height: 720}
	if got := ChooseExtent(caps, 800, 600); got != caps.CurrentExtent {
		t.Errorf("current extent ignored: %v", got)
	}
	caps.CurrentExtent = driver.Extent{Width: 2560, Height: 10}
	if got := ChooseExtent(caps, 800, 600); got != (driver.Extent{Width: 1920, Height: 32}) {
		t.Errorf("current extent not clamped: %v", got)
	}
}

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		min, max, want uint32
	}{
		{1, 2, 2},
		{2, 3, 3},
		{2, 8, 3},
		{3, 3, 3},
		{2, 0, 3},
	}
	for _, tt := range tests {
		caps := driver.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max}
		if got := ChooseImageCount(caps); got != tt.want {
			t.Errorf("min %d max %d: got %d, want %d", tt.min, tt.max, got, tt.want)
		}
	}
}

func TestSwapchainViewsAndFramebuffersAreParallel(t *testing.T) {
	ctx, drv := newTestContext(t)
	defer ctx.Close()

	drv.Capabilities.MinImageCount = 2
	drv.Capabilities.MaxImageCount = 4
	sc, err := NewSwapchain(ctx, SwapchainOptions{VSync: true})
	if err != nil {
		t.Fatal(err)
	}
	if sc.PresentMode() != driver.PresentModeFifo {
		t.Errorf("vsync swapchain uses %s", sc.PresentMode())
	}
	pass, err := drv.CreateRenderPass(driver.RenderPassInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if err := sc.CreateFramebuffers(pass); err != nil {
		t.Fatal(err)
	}
	if sc.ImageCount() != 3 || len(sc.Views()) != 3 || len(sc.framebuffers) != 3 {
		t.Errorf("images/views/framebuffers = %d/%d/%d, want 3 each", sc.ImageCount(), len(sc.Views()), len(sc.framebuffers))
	}

	sc.Destroy()
	drv.DestroyRenderPass(pass)
	kinds := drv.LiveByKind()
	if kinds["framebuffer"] != 0 || kinds["imageview"] != 0 || kinds["swapchain"] != 0 {
		t.Errorf("swapchain objects left: %v", kinds)
	}
}
