package renderer

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

type TextureState int

const (
	TextureUninitialized TextureState = iota
	TextureValid
	// TextureInvalidated marks a texture whose GPU objects were released and
	// not yet rebuilt, by Resize or by a failed re-initialize.
	TextureInvalidated
)

func (s TextureState) String() string {
	switch s {
	case TextureValid:
		return "valid"
	case TextureInvalidated:
		return "invalidated"
	}
	return "uninitialized"
}

// ImageData is decoded 8-bit RGBA, row-major, tightly packed.
type ImageData struct {
	Width  int
	Height int
	Pixels []byte
}

// ImageDataHDR is decoded float RGBA, row-major, tightly packed.
type ImageDataHDR struct {
	Width  int
	Height int
	Pixels []float32
}

// ImageDecoder turns image files into pixel buffers.
type ImageDecoder interface {
	Decode(path string) (*ImageData, error)
	DecodeHDR(path string) (*ImageDataHDR, error)
}

type textureConfig struct {
	sampler *Sampler
	mipmaps bool
	color   bool
	format  driver.Format
}

type TextureOption func(*textureConfig)

// WithSampler samples the texture through s instead of the context default.
// The caller keeps ownership of s.
func WithSampler(s *Sampler) TextureOption {
	return func(c *textureConfig) { c.sampler = s }
}

// WithMipmaps generates a full mip chain for file-backed textures.
func WithMipmaps(enabled bool) TextureOption {
	return func(c *textureConfig) { c.mipmaps = enabled }
}

// WithColor treats 8-bit data as sRGB encoded color.
func WithColor(enabled bool) TextureOption {
	return func(c *textureConfig) { c.color = enabled }
}

// WithFormat overrides the format picked from the color setting.
func WithFormat(f driver.Format) TextureOption {
	return func(c *textureConfig) { c.format = f }
}

// Texture is a sampleable image with its descriptor set. Its settings
// survive Resize; only the GPU objects are rebuilt.
type Texture struct {
	ctx  *Context
	name string
	cfg  textureConfig

	state  TextureState
	width  uint32
	height uint32
	format driver.Format
	hdr    bool

	image      *Image
	descriptor driver.DescriptorSet
}

// NewTexture prepares an uninitialized texture of the given size. Nothing is
// allocated until Initialize.
func NewTexture(ctx *Context, width, height uint32, opts ...TextureOption) *Texture {
	cfg := textureConfig{color: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Texture{
		ctx:    ctx,
		name:   uuid.NewString(),
		cfg:    cfg,
		width:  width,
		height: height,
	}
}

func (t *Texture) pickFormat() driver.Format {
	switch {
	case t.cfg.format != driver.FormatUndefined:
		return t.cfg.format
	case t.hdr:
		return driver.FormatR32G32B32A32Sfloat
	case t.cfg.color:
		return driver.FormatR8G8B8A8Srgb
	}
	return driver.FormatR8G8B8A8Unorm
}

// Initialize builds the texture. With an empty path the image is left empty
// and shader-readable, ready to back a render target. Otherwise the file is
// decoded, uploaded, and its size replaces the constructed one.
func (t *Texture) Initialize(path string) error {
	t.hdr = false
	if path == "" {
		return t.initializeEmpty()
	}
	if t.ctx.decoder == nil {
		return ErrNoImageDecoder
	}
	data, err := t.ctx.decoder.Decode(path)
	if err != nil {
		return errors.Wrapf(err, "decode texture '%s'", path)
	}
	return t.initializeWith(path, uint32(data.Width), uint32(data.Height), data.Pixels)
}

// InitializeHDR is Initialize for floating point images.
func (t *Texture) InitializeHDR(path string) error {
	t.hdr = true
	if path == "" {
		return t.initializeEmpty()
	}
	if t.ctx.decoder == nil {
		return ErrNoImageDecoder
	}
	data, err := t.ctx.decoder.DecodeHDR(path)
	if err != nil {
		return errors.Wrapf(err, "decode hdr texture '%s'", path)
	}
	return t.initializeWith(path, uint32(data.Width), uint32(data.Height), floatBytes(data.Pixels))
}

func (t *Texture) initializeEmpty() error {
	if err := t.allocate(1); err != nil {
		return err
	}
	err := t.ctx.SubmitOnce(func(cb driver.CommandBuffer) error {
		return t.image.Transition(cb, driver.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		t.release()
		return errors.Wrapf(err, "texture %s", t.name)
	}
	t.state = TextureValid
	return nil
}

func (t *Texture) initializeWith(path string, width, height uint32, pixels []byte) error {
	t.width, t.height = width, height
	mips := uint32(1)
	if t.cfg.mipmaps {
		mips = driver.MipLevels(width, height)
	}
	if err := t.allocate(mips); err != nil {
		return err
	}
	if err := t.upload(pixels); err != nil {
		t.release()
		return errors.Wrapf(err, "upload texture '%s'", path)
	}
	t.state = TextureValid
	core.LogDebug("Texture '%s' uploaded: %dx%d, %d mips.", path, width, height, mips)
	return nil
}

// allocate creates the image and its descriptor set, replacing any previous
// GPU objects.
func (t *Texture) allocate(mips uint32) error {
	if !t.ctx.initialized {
		return ErrNotInitialized
	}
	t.release()
	if t.width == 0 || t.height == 0 {
		return errors.Wrapf(ErrTextureInvalid, "size %dx%d", t.width, t.height)
	}

	t.format = t.pickFormat()
	img, err := NewImage(t.ctx, ImageSpec{
		Width:     t.width,
		Height:    t.height,
		MipLevels: mips,
		Format:    t.format,
		Usage: driver.ImageUsageSampled | driver.ImageUsageTransferDst |
			driver.ImageUsageTransferSrc | driver.ImageUsageColorAttachment,
	})
	if err != nil {
		return errors.Wrapf(err, "texture %s", t.name)
	}

	sampler := t.cfg.sampler
	if sampler == nil {
		if sampler, err = t.ctx.DefaultSampler(); err != nil {
			img.Destroy()
			return errors.Wrapf(err, "texture %s", t.name)
		}
	}
	set, err := t.ctx.allocateImageDescriptor(img.View(), sampler)
	if err != nil {
		img.Destroy()
		return errors.Wrapf(err, "texture %s", t.name)
	}
	t.image = img
	t.descriptor = set
	return nil
}

func (t *Texture) upload(pixels []byte) error {
	return t.image.upload(pixels)
}

// release drops the GPU objects. A valid texture becomes invalidated until
// the next successful initialize.
func (t *Texture) release() {
	if t.state == TextureValid {
		t.state = TextureInvalidated
	}
	t.ctx.freeDescriptor(t.descriptor)
	t.descriptor = 0
	if t.image != nil {
		t.image.Destroy()
		t.image = nil
	}
}

// Resize discards the GPU objects and rebuilds an empty texture of the new
// size, keeping sampler, mipmap and color settings.
func (t *Texture) Resize(width, height uint32) error {
	t.state = TextureInvalidated
	t.release()
	t.width, t.height = width, height
	return t.initializeEmpty()
}

// SetPixels replaces the whole image. data may be shorter than the image,
// the rest is zeroed, but never longer.
func (t *Texture) SetPixels(data []byte) error {
	if t.state != TextureValid {
		return ErrTextureInvalid
	}
	capacity := uint64(t.width) * uint64(t.height) * uint64(driver.TexelSize(t.format))
	if uint64(len(data)) > capacity {
		return errors.Wrapf(ErrPixelOverflow, "%d bytes for a %dx%d texture holding %d", len(data), t.width, t.height, capacity)
	}
	pixels := data
	if uint64(len(data)) < capacity {
		pixels = make([]byte, capacity)
		copy(pixels, data)
	}
	return t.upload(pixels)
}

func (t *Texture) IsValid() bool {
	return t.state == TextureValid
}

func (t *Texture) Size() (uint32, uint32) {
	return t.width, t.height
}

func (t *Texture) State() TextureState {
	return t.state
}

func (t *Texture) Format() driver.Format {
	return t.format
}

func (t *Texture) Image() *Image {
	return t.image
}

func (t *Texture) Descriptor() driver.DescriptorSet {
	return t.descriptor
}

func (t *Texture) Name() string {
	return t.name
}

// Cleanup releases the GPU objects. The texture can be initialized again.
func (t *Texture) Cleanup() {
	t.release()
	t.state = TextureUninitialized
}

func floatBytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
