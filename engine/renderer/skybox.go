package renderer

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

const (
	// faceUniformStride keeps every face's matrices at an offset valid for
	// any minUniformBufferOffsetAlignment.
	faceUniformStride = 256
	faceUniformSize   = 2 * 16 * 4
	cubeVertexCount   = 36
)

// faceRotations are the Euler angles, in degrees, that point the capture
// camera at each cube face.
var faceRotations = [CubeFaces][3]float32{
	{0, 90, 0},
	{0, 270, 0},
	{-90, 0, 0},
	{90, 0, 0},
	{0, 0, 0},
	{0, 180, 0},
}

// EquirectPass names the shaders projecting an equirectangular texture onto
// a unit cube. The vertex shader reads proj and view from a dynamic uniform
// buffer at set 0; the texture is bound at set 1.
type EquirectPass struct {
	VertexShader   string
	FragmentShader string
	Shaders        ShaderSource
}

// Skybox wraps the cubemap drawn behind the scene.
type Skybox struct {
	ctx         *Context
	cubemap     *Cubemap
	ownsCubemap bool
}

func NewSkybox(ctx *Context) *Skybox {
	return &Skybox{ctx: ctx}
}

// InitializeFromCubemap borrows c. The caller keeps ownership.
func (s *Skybox) InitializeFromCubemap(c *Cubemap) error {
	if c == nil || c.Image() == nil {
		return errors.New("skybox needs an initialized cubemap")
	}
	s.Cleanup()
	s.cubemap = c
	s.ownsCubemap = false
	return nil
}

// faceMatrices returns proj and view for every face, packed at
// faceUniformStride intervals.
func faceMatrices() ([]byte, error) {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 10)
	proj[5] *= -1

	data := make([]byte, 0, faceUniformStride*CubeFaces)
	for _, rot := range faceRotations {
		view := mgl32.HomogRotate3DX(mgl32.DegToRad(rot[0])).
			Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(rot[1]))).
			Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(rot[2])))

		buf := &bytes.Buffer{}
		if err := binary.Write(buf, binary.LittleEndian, proj); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.LittleEndian, view); err != nil {
			return nil, err
		}
		face := make([]byte, faceUniformStride)
		copy(face, buf.Bytes())
		data = append(data, face...)
	}
	return data, nil
}

// InitializeFromTexture renders tex, an equirectangular panorama, into six
// size x size targets and combines them into a cubemap the skybox owns.
func (s *Skybox) InitializeFromTexture(tex *Texture, size uint32, pass EquirectPass) error {
	if tex == nil || !tex.IsValid() {
		return ErrTextureInvalid
	}
	if size == 0 {
		return errors.New("skybox face size must be positive")
	}
	drv := s.ctx.drv

	var targets [CubeFaces]*RenderTarget
	defer func() {
		for _, t := range targets {
			if t != nil {
				t.Destroy()
			}
		}
	}()
	for i := range targets {
		t := NewRenderTarget(s.ctx)
		if err := t.Initialize(RenderTargetInfo{Width: size, Height: size, Format: SceneFormat}); err != nil {
			return errors.Wrapf(err, "skybox face %d", i)
		}
		targets[i] = t
	}

	matrices, err := faceMatrices()
	if err != nil {
		return errors.Wrap(err, "skybox face matrices")
	}
	ubo, err := drv.CreateBuffer(driver.BufferInfo{
		Size:   uint64(len(matrices)),
		Usage:  driver.BufferUsageUniform,
		Memory: driver.MemoryPropertyHostVisible | driver.MemoryPropertyHostCoherent,
	})
	if err != nil {
		return errors.Wrap(err, "skybox uniform buffer")
	}
	defer drv.DestroyBuffer(ubo)
	if err := drv.WriteBuffer(ubo, 0, matrices); err != nil {
		return errors.Wrap(err, "skybox uniform buffer")
	}

	layout, err := drv.CreateDescriptorSetLayout([]driver.DescriptorBinding{{
		Binding: 0,
		Type:    driver.DescriptorTypeUniformBufferDynamic,
		Count:   1,
		Stages:  driver.ShaderStageVertex,
	}})
	if err != nil {
		return errors.Wrap(err, "skybox uniform layout")
	}
	defer drv.DestroyDescriptorSetLayout(layout)

	set, err := drv.AllocateDescriptorSet(s.ctx.descriptorPool, layout)
	if err != nil {
		return errors.Wrap(err, "skybox uniform set")
	}
	defer s.ctx.freeDescriptor(set)
	drv.UpdateDescriptorBuffer(set, 0, driver.DescriptorTypeUniformBufferDynamic, ubo, 0, faceUniformSize)

	pipeline, err := NewPipeline(s.ctx, PipelineDesc{
		VertexShader:   pass.VertexShader,
		FragmentShader: pass.FragmentShader,
		Shaders:        pass.Shaders,
		RenderPass:     targets[0].RenderPass(),
		SetLayouts:     []driver.DescriptorSetLayout{layout, s.ctx.textureLayout},
		CullMode:       driver.CullModeNone,
	})
	if err != nil {
		return errors.Wrap(err, "skybox capture pipeline")
	}
	defer pipeline.Destroy()

	err = s.ctx.SubmitOnce(func(cb driver.CommandBuffer) error {
		for i, t := range targets {
			if err := t.Begin(cb); err != nil {
				return err
			}
			pipeline.Bind(cb)
			drv.CmdBindDescriptorSet(cb, pipeline.Layout(), 0, set, []uint32{uint32(i * faceUniformStride)})
			drv.CmdBindDescriptorSet(cb, pipeline.Layout(), 1, tex.Descriptor(), nil)
			drv.CmdDraw(cb, cubeVertexCount, 1, 0, 0)
			if err := t.End(cb); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "skybox capture")
	}

	var faces [CubeFaces]*Image
	for i, t := range targets {
		faces[i] = t.Color()
	}
	cubemap := NewCubemap(s.ctx)
	if err := cubemap.Initialize(faces, nil); err != nil {
		return err
	}

	s.Cleanup()
	s.cubemap = cubemap
	s.ownsCubemap = true
	core.LogInfo("Skybox captured from texture %s at %dx%d per face.", tex.Name(), size, size)
	return nil
}

// Bind binds the cubemap at set index of layout.
func (s *Skybox) Bind(cb driver.CommandBuffer, layout driver.PipelineLayout, index uint32) error {
	if s.cubemap == nil {
		return ErrNotInitialized
	}
	s.ctx.drv.CmdBindDescriptorSet(cb, layout, index, s.cubemap.Descriptor(), nil)
	return nil
}

func (s *Skybox) Cubemap() *Cubemap {
	return s.cubemap
}

// Cleanup releases the cubemap if the skybox built it.
func (s *Skybox) Cleanup() {
	if s.ownsCubemap && s.cubemap != nil {
		s.cubemap.Cleanup()
	}
	s.cubemap = nil
	s.ownsCubemap = false
}
