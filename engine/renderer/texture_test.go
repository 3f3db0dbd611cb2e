package renderer

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

type stubDecoder struct {
	width, height int
	err           error
}

func (d stubDecoder) Decode(path string) (*ImageData, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &ImageData{Width: d.width, Height: d.height, Pixels: make([]byte, d.width*d.height*4)}, nil
}

func (d stubDecoder) DecodeHDR(path string) (*ImageDataHDR, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &ImageDataHDR{Width: d.width, Height: d.height, Pixels: make([]float32, d.width*d.height*4)}, nil
}

func TestTextureInitializeEmpty(t *testing.T) {
	ctx, drv := newTestContext(t)
	defer ctx.Close()

	for _, size := range [][2]uint32{{1, 1}, {7, 3}, {256, 128}, {4096, 1}} {
		t.Run(fmt.Sprintf("%dx%d", size[0], size[1]), func(t *testing.T) {
			tex := NewTexture(ctx, size[0], size[1])
			if tex.IsValid() || tex.State() != TextureUninitialized {
				t.Fatal("texture valid before Initialize")
			}
			if err := tex.Initialize(""); err != nil {
				t.Fatal(err)
			}
			defer tex.Cleanup()

			if !tex.IsValid() {
				t.Error("texture not valid after Initialize")
			}
			if w, h := tex.Size(); w != size[0] || h != size[1] {
				t.Errorf("size = %dx%d, want %dx%d", w, h, size[0], size[1])
			}
			if tex.Image().Layout() != driver.ImageLayoutShaderReadOnlyOptimal {
				t.Errorf("layout = %d, want shader read", tex.Image().Layout())
			}
			if tex.Descriptor() == 0 {
				t.Error("no descriptor set")
			}
		})
	}
	if drv.LiveByKind()["image"] != 0 {
		t.Error("textures leaked images")
	}
}

func TestTextureResizeFromAnyState(t *testing.T) {
	ctx, drv := newTestContext(t)
	defer ctx.Close()

	tex := NewTexture(ctx, 16, 16, WithColor(false))
	if err := tex.Resize(64, 32); err != nil {
		t.Fatalf("resize from uninitialized: %v", err)
	}
	if w, h := tex.Size(); !tex.IsValid() || w != 64 || h != 32 {
		t.Fatalf("after resize: valid=%t size=%dx%d", tex.IsValid(), w, h)
	}
	if tex.Format() != driver.FormatR8G8B8A8Unorm {
		t.Errorf("color setting lost, format = %d", tex.Format())
	}

	drv.Fail["CreateImage"] = errors.New("out of memory")
	if err := tex.Resize(128, 128); err == nil {
		t.Fatal("resize succeeded without an image")
	}
	if tex.State() != TextureInvalidated || tex.IsValid() {
		t.Fatalf("state = %s, want invalidated", tex.State())
	}

	delete(drv.Fail, "CreateImage")
	if err := tex.Resize(8, 4); err != nil {
		t.Fatalf("resize from invalidated: %v", err)
	}
	if w, h := tex.Size(); !tex.IsValid() || w != 8 || h != 4 {
		t.Errorf("after resize: valid=%t size=%dx%d", tex.IsValid(), w, h)
	}
	if tex.Format() != driver.FormatR8G8B8A8Unorm {
		t.Errorf("color setting lost, format = %d", tex.Format())
	}

	tex.Cleanup()
	if tex.State() != TextureUninitialized {
		t.Errorf("state after cleanup = %s", tex.State())
	}
	kinds := drv.LiveByKind()
	if kinds["image"] != 0 || kinds["imageview"] != 0 || kinds["descriptorset"] != 0 {
		t.Errorf("texture objects left: %v", kinds)
	}
}

func TestTextureKeepsCustomSampler(t *testing.T) {
	ctx, drv := newTestContext(t)
	defer ctx.Close()

	sampler, err := ctx.NewSampler(ClampSamplerInfo(ctx.Adapter()))
	if err != nil {
		t.Fatal(err)
	}
	defer sampler.Destroy()

	tex := NewTexture(ctx, 4, 4, WithSampler(sampler))
	if err := tex.Initialize(""); err != nil {
		t.Fatal(err)
	}
	if err := tex.Resize(8, 8); err != nil {
		t.Fatal(err)
	}
	tex.Cleanup()
	if drv.Count("CreateSampler") != 1 {
		t.Errorf("CreateSampler = %d, the default sampler should not be needed", drv.Count("CreateSampler"))
	}
}

func TestTextureSetPixels(t *testing.T) {
	ctx, drv := newTestContext(t)
	defer ctx.Close()

	tex := NewTexture(ctx, 4, 4)
	if err := tex.SetPixels(make([]byte, 4)); !errors.Is(err, ErrTextureInvalid) {
		t.Fatalf("SetPixels before Initialize: %v", err)
	}
	if err := tex.Initialize(""); err != nil {
		t.Fatal(err)
	}
	defer tex.Cleanup()

	if err := tex.SetPixels(make([]byte, 4*4*4+1)); !errors.Is(err, ErrPixelOverflow) {
		t.Errorf("overflow: err = %v, want ErrPixelOverflow", err)
	}
	writes := drv.Count("WriteBuffer")
	if err := tex.SetPixels(make([]byte, 4*4*4)); err != nil {
		t.Errorf("exact fit: %v", err)
	}
	if err := tex.SetPixels([]byte{1, 2, 3, 4}); err != nil {
		t.Errorf("short data: %v", err)
	}
	if drv.Count("WriteBuffer") != writes+2 {
		t.Errorf("each SetPixels should fill a fresh staging buffer")
	}
	if drv.LiveByKind()["buffer"] != 0 {
		t.Error("staging buffers leaked")
	}
	if !tex.IsValid() {
		t.Error("texture invalid after SetPixels")
	}
}

func TestTextureInitializeFromFile(t *testing.T) {
	ctx, drv := newTestContext(t)
	defer ctx.Close()

	tex := NewTexture(ctx, 1, 1, WithMipmaps(true))
	if err := tex.Initialize("albedo.png"); !errors.Is(err, ErrNoImageDecoder) {
		t.Fatalf("err = %v, want ErrNoImageDecoder", err)
	}

	ctx.SetImageDecoder(stubDecoder{width: 8, height: 4})
	if err := tex.Initialize("albedo.png"); err != nil {
		t.Fatal(err)
	}
	defer tex.Cleanup()

	if w, h := tex.Size(); w != 8 || h != 4 {
		t.Errorf("size = %dx%d, want the decoded 8x4", w, h)
	}
	info, _ := drv.ImageInfo(tex.Image().Handle())
	if info.MipLevels != 4 {
		t.Errorf("mip levels = %d, want 4", info.MipLevels)
	}
	if drv.Count("CmdBlitImage") != 3 {
		t.Errorf("blits = %d, want 3", drv.Count("CmdBlitImage"))
	}
	if tex.Format() != driver.FormatR8G8B8A8Srgb {
		t.Errorf("color texture format = %d", tex.Format())
	}
	if tex.Image().Layout() != driver.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("layout after upload = %d", tex.Image().Layout())
	}

	hdr := NewTexture(ctx, 1, 1)
	if err := hdr.InitializeHDR("sky.hdr"); err != nil {
		t.Fatal(err)
	}
	defer hdr.Cleanup()
	if hdr.Format() != driver.FormatR32G32B32A32Sfloat {
		t.Errorf("hdr format = %d", hdr.Format())
	}

	ctx.SetImageDecoder(stubDecoder{err: errors.New("corrupt")})
	broken := NewTexture(ctx, 1, 1)
	if err := broken.Initialize("broken.png"); err == nil {
		t.Error("decode failure not reported")
	}
	if broken.IsValid() {
		t.Error("texture valid after failed decode")
	}
}

func TestTextureFailedReinitializeInvalidates(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"image creation", "CreateImage", ""},
		{"upload", "WriteBuffer", "albedo.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, drv := newTestContext(t)
			defer ctx.Close()
			ctx.SetImageDecoder(stubDecoder{width: 4, height: 4})

			tex := NewTexture(ctx, 4, 4)
			if err := tex.Initialize(""); err != nil {
				t.Fatal(err)
			}
			defer tex.Cleanup()

			drv.Fail[tt.method] = errors.New("oom")
			if err := tex.Initialize(tt.path); err == nil {
				t.Fatal("re-initialize succeeded with a failing driver")
			}
			if tex.IsValid() || tex.State() != TextureInvalidated {
				t.Errorf("state = %s after failed re-initialize, want invalidated", tex.State())
			}
			if tex.Image() != nil || tex.Descriptor() != 0 {
				t.Error("GPU objects kept after failed re-initialize")
			}
			if err := tex.SetPixels(make([]byte, 4)); !errors.Is(err, ErrTextureInvalid) {
				t.Errorf("SetPixels err = %v, want ErrTextureInvalid", err)
			}

			delete(drv.Fail, tt.method)
			if err := tex.Initialize(""); err != nil {
				t.Fatal(err)
			}
			if !tex.IsValid() {
				t.Error("texture not valid after recovering")
			}
		})
	}
}
