package testbed

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/purrfect/engine"
	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/renderer"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

const (
	skyboxTexture  = "textures/skybox.hdr"
	skyboxFaceSize = 512

	skyVertexShader     = "shaders/skybox.vert.spv"
	skyFragmentShader   = "shaders/skybox.frag.spv"
	equirectVertShader  = "shaders/equirect.vert.spv"
	equirectFragShader  = "shaders/equirect.frag.spv"
	cubeVertexCount     = 36
	viewProjPushSize    = 16 * 4
	cameraTurnPerSecond = 0.25
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	engine *engine.Engine
	scene  *renderer.Renderer3D

	skybox   *renderer.Skybox
	pipeline *renderer.Pipeline
	// pass is the scene render pass the pipeline was built for. The scene
	// target is rebuilt on resize, so the pipeline follows it.
	pass driver.RenderPass

	yaw    float32
	width  uint32
	height uint32
}

func NewTestGame(cfg *engine.Config) *TestGame {
	state := &gameState{}
	tg := &TestGame{
		Game: &engine.Game{
			Config: cfg,
			State:  state,
		},
	}
	state.scene = renderer.NewRenderer3D(tg.recordScene)
	tg.Specialization = state.scene

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogDebug("TestGame Initialize fn....")
	state := g.State.(*gameState)
	state.engine = e

	path, err := e.Assets().Resolve(skyboxTexture)
	if err != nil {
		core.LogWarn("No skybox texture found, drawing the clear color only.")
		return nil
	}

	ctx := e.Renderer().Context()
	tex := renderer.NewTexture(ctx, 1, 1)
	if err := tex.InitializeHDR(path); err != nil {
		return errors.Wrap(err, "load skybox texture")
	}
	defer tex.Cleanup()

	state.skybox = renderer.NewSkybox(ctx)
	if err := state.skybox.InitializeFromTexture(tex, skyboxFaceSize, renderer.EquirectPass{
		VertexShader:   equirectVertShader,
		FragmentShader: equirectFragShader,
		Shaders:        e.Assets().ReadShader,
	}); err != nil {
		return errors.Wrap(err, "capture skybox")
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.yaw += float32(cameraTurnPerSecond * deltaTime)
	return nil
}

func (g *TestGame) Render(deltaTime float64) error {
	state := g.State.(*gameState)
	if m := state.engine.Metrics(); m.FPS() > 0 {
		core.LogDebug("FPS: %5.1f (%4.1fms)", m.FPS(), m.FrameTime())
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	if state.pipeline != nil {
		state.pipeline.Destroy()
		state.pipeline = nil
	}
	if state.skybox != nil {
		state.skybox.Cleanup()
		state.skybox = nil
	}
	return nil
}

// recordScene draws the skybox into the scene target's open render pass.
func (g *TestGame) recordScene(r *renderer.Renderer, target *renderer.RenderTarget, cb driver.CommandBuffer, frame uint32) error {
	state := g.State.(*gameState)
	if state.skybox == nil {
		return nil
	}
	if err := g.ensurePipeline(r, target); err != nil {
		return err
	}

	drv := r.Context().Driver()
	extent := target.Extent()
	state.pipeline.Bind(cb)
	drv.CmdSetViewport(cb, driver.Viewport{Width: float32(extent.Width), Height: float32(extent.Height), MaxDepth: 1})
	drv.CmdSetScissor(cb, driver.Rect{Width: extent.Width, Height: extent.Height})

	viewProj, err := skyViewProjection(state.yaw, extent)
	if err != nil {
		return err
	}
	drv.CmdPushConstants(cb, state.pipeline.Layout(), driver.ShaderStageVertex, 0, viewProj)
	if err := state.skybox.Bind(cb, state.pipeline.Layout(), 0); err != nil {
		return err
	}
	drv.CmdDraw(cb, cubeVertexCount, 1, 0, 0)
	return nil
}

func (g *TestGame) ensurePipeline(r *renderer.Renderer, target *renderer.RenderTarget) error {
	state := g.State.(*gameState)
	if state.pipeline != nil && state.pass == target.RenderPass() {
		return nil
	}
	if state.pipeline != nil {
		state.pipeline.Destroy()
		state.pipeline = nil
	}
	p, err := r.NewPipeline(renderer.PipelineDesc{
		VertexShader:   skyVertexShader,
		FragmentShader: skyFragmentShader,
		Shaders:        state.engine.Assets().ReadShader,
		RenderPass:     target.RenderPass(),
		SetLayouts:     []driver.DescriptorSetLayout{r.Context().TextureLayout()},
		PushConstants: []driver.PushConstantRange{
			{Stages: driver.ShaderStageVertex, Offset: 0, Size: viewProjPushSize},
		},
		Samples:   driver.SampleCount1,
		CullMode:  driver.CullModeFront,
		DepthTest: true,
	})
	if err != nil {
		return errors.Wrap(err, "skybox pipeline")
	}
	state.pipeline = p
	state.pass = target.RenderPass()
	return nil
}

// skyViewProjection is a rotation-only camera, so the cube stays centered
// on the viewer.
func skyViewProjection(yaw float32, extent driver.Extent) ([]byte, error) {
	aspect := float32(extent.Width) / float32(max(extent.Height, 1))
	proj := mgl32.Perspective(mgl32.DegToRad(70), aspect, 0.1, 10)
	view := mgl32.HomogRotate3DY(yaw)
	m := proj.Mul4(view)

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
