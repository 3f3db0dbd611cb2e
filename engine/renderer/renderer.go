package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

// Specialization plugs extra work into the base renderer, e.g. offscreen
// passes whose output the main pass samples.
type Specialization interface {
	// Initialize runs once the swapchain and frame resources exist.
	Initialize(r *Renderer) error
	// Record adds commands to cb before the main render pass begins.
	Record(r *Renderer, cb driver.CommandBuffer, frame uint32) error
	// Resized runs after every swapchain recreation.
	Resized(r *Renderer) error
	Cleanup(r *Renderer)
}

// PresentSource is implemented by specializations that want the main pass
// to sample one of their images. The set is bound at index 0.
type PresentSource interface {
	PresentDescriptor() driver.DescriptorSet
}

type Options struct {
	Context ContextOptions
	VSync   bool
	// VertexShader and FragmentShader build the main pass pipeline, which
	// draws one fullscreen quad.
	VertexShader   string
	FragmentShader string
	Shaders        ShaderSource
	ClearColor     [4]float32
}

// FrameState is where Render currently is.
type FrameState int

const (
	FrameIdle FrameState = iota
	FrameAcquiring
	FrameRecording
	FrameSubmitted
	FramePresenting
)

func (s FrameState) String() string {
	switch s {
	case FrameAcquiring:
		return "acquiring"
	case FrameRecording:
		return "recording"
	case FrameSubmitted:
		return "submitted"
	case FramePresenting:
		return "presenting"
	}
	return "idle"
}

// Renderer composes the context, swapchain, frame synchronization and
// command submission into Initialize, Render and Cleanup. It is driven from
// a single goroutine.
type Renderer struct {
	ctx    *Context
	window Window
	spec   Specialization
	opts   Options

	swapchain *Swapchain
	pass      driver.RenderPass
	pipeline  *Pipeline
	sync      *FrameSync
	commands  *FrameCommands

	state       FrameState
	resized     bool
	recreating  bool
	initialized bool
	// lost is set when a recreation failed half way or a submission failed
	// after its fence was reset. Nothing can be rendered until the renderer
	// is rebuilt.
	lost error
	err  error

	releases releaseStack
}

// New creates a renderer over drv presenting to window. spec may be nil.
func New(drv driver.Driver, window Window, spec Specialization) *Renderer {
	return &Renderer{
		ctx:    NewContext(drv, window),
		window: window,
		spec:   spec,
	}
}

// Initialize brings up every GPU object the renderer needs. On failure
// everything acquired so far is released, Err reports the reason and the
// returned error is an *InitializationError.
func (r *Renderer) Initialize(opts Options) (err error) {
	if r.initialized {
		return nil
	}
	r.opts = opts
	r.err = nil
	r.lost = nil

	defer func() {
		if err != nil {
			r.releases.unwind()
			r.err = err
		}
	}()

	if err := r.ctx.Initialize(opts.Context); err != nil {
		return err
	}
	r.releases.push(r.ctx.Close)

	w, h := r.window.FramebufferSize()
	if r.swapchain, err = NewSwapchain(r.ctx, SwapchainOptions{VSync: opts.VSync, Width: uint32(w), Height: uint32(h)}); err != nil {
		return initError("swapchain", err)
	}
	r.releases.push(func() { r.swapchain.Destroy() })

	if r.pass, err = r.createPresentPass(r.swapchain.Format().Format); err != nil {
		return initError("render pass", err)
	}
	r.releases.push(func() { r.ctx.drv.DestroyRenderPass(r.pass) })

	if err := r.swapchain.CreateFramebuffers(r.pass); err != nil {
		return initError("framebuffers", err)
	}

	if r.sync, err = NewFrameSync(r.ctx.drv, r.swapchain.ImageCount()); err != nil {
		return initError("frame sync", err)
	}
	r.releases.push(func() { r.sync.Destroy() })

	if r.commands, err = NewFrameCommands(r.ctx, r.swapchain.ImageCount()); err != nil {
		return initError("command buffers", err)
	}
	r.releases.push(func() { r.commands.Destroy() })

	if r.pipeline, err = r.buildMainPipeline(); err != nil {
		return initError("pipeline", err)
	}
	r.releases.push(func() { r.pipeline.Destroy() })

	if r.spec != nil {
		if err := r.spec.Initialize(r); err != nil {
			return initError("specialization", err)
		}
		r.releases.push(func() { r.spec.Cleanup(r) })
	}

	r.initialized = true
	r.state = FrameIdle
	core.LogInfo("Renderer initialized.")
	return nil
}

func (r *Renderer) createPresentPass(format driver.Format) (driver.RenderPass, error) {
	return r.ctx.drv.CreateRenderPass(driver.RenderPassInfo{
		Color: driver.AttachmentInfo{
			Format:        format,
			Samples:       driver.SampleCount1,
			Load:          driver.LoadOpClear,
			Store:         driver.StoreOpStore,
			InitialLayout: driver.ImageLayoutUndefined,
			FinalLayout:   driver.ImageLayoutPresentSrc,
		},
	})
}

func (r *Renderer) buildMainPipeline() (*Pipeline, error) {
	return NewPipeline(r.ctx, PipelineDesc{
		VertexShader:   r.opts.VertexShader,
		FragmentShader: r.opts.FragmentShader,
		Shaders:        r.opts.Shaders,
		RenderPass:     r.pass,
		SetLayouts:     []driver.DescriptorSetLayout{r.ctx.textureLayout},
		CullMode:       driver.CullModeNone,
	})
}

// Render draws one frame. A stale swapchain is rebuilt and the frame is
// skipped without error. The frame index advances on every call.
func (r *Renderer) Render() error {
	if !r.initialized {
		return ErrNotInitialized
	}
	if r.lost != nil {
		return r.lost
	}
	defer func() {
		if r.sync.Count() > 0 {
			r.sync.Advance()
		}
		r.state = FrameIdle
	}()

	drv := r.ctx.drv
	frame := r.sync.Index()
	slot := r.sync.Current()

	r.state = FrameAcquiring
	if err := drv.WaitForFence(slot.InFlight, driver.InfiniteTimeout); err != nil {
		return errors.Wrapf(err, "wait for frame %d", frame)
	}
	imageIndex, status, err := drv.AcquireNextImage(r.swapchain.Handle(), slot.ImageAvailable, driver.InfiniteTimeout)
	if err != nil {
		return errors.Wrapf(err, "acquire image for frame %d", frame)
	}
	if status == driver.StatusOutOfDate {
		core.LogDebug("Swapchain out of date, frame %d skipped.", frame)
		return r.recreateSwapchain()
	}

	r.state = FrameRecording
	cb, err := r.commands.Begin(frame)
	if err != nil {
		return err
	}
	if err := r.record(cb, frame, imageIndex); err != nil {
		return err
	}
	if err := drv.EndCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "end command buffer")
	}

	// The fence is only reset once a submission that signals it is certain.
	if err := drv.ResetFence(slot.InFlight); err != nil {
		return errors.Wrapf(err, "reset fence of frame %d", frame)
	}
	r.state = FrameSubmitted
	if err := drv.QueueSubmit(r.ctx.graphics, driver.Submit{
		WaitSemaphores:   []driver.Semaphore{slot.ImageAvailable},
		WaitStages:       []driver.PipelineStage{driver.PipelineStageColorAttachmentOutput},
		CommandBuffers:   []driver.CommandBuffer{cb},
		SignalSemaphores: []driver.Semaphore{slot.RenderFinished},
	}, slot.InFlight); err != nil {
		// The fence is reset and nothing will signal it, so the next wait on
		// this slot would never return.
		return r.fail(errors.Wrapf(err, "submit frame %d", frame))
	}

	r.state = FramePresenting
	status, err = drv.QueuePresent(r.ctx.present, driver.Present{
		WaitSemaphores: []driver.Semaphore{slot.RenderFinished},
		Swapchain:      r.swapchain.Handle(),
		ImageIndex:     imageIndex,
	})
	if err != nil {
		return errors.Wrapf(err, "present frame %d", frame)
	}
	if status != driver.StatusSuccess || r.resized {
		r.resized = false
		return r.recreateSwapchain()
	}
	return nil
}

func (r *Renderer) record(cb driver.CommandBuffer, frame, imageIndex uint32) error {
	if r.spec != nil {
		if err := r.spec.Record(r, cb, frame); err != nil {
			return errors.Wrapf(err, "record frame %d", frame)
		}
	}

	drv := r.ctx.drv
	extent := r.swapchain.Extent()
	drv.CmdBeginRenderPass(cb, driver.RenderPassBegin{
		RenderPass:  r.pass,
		Framebuffer: r.swapchain.Framebuffer(imageIndex),
		Area:        driver.Rect{Width: extent.Width, Height: extent.Height},
		ClearValues: []driver.ClearValue{{Color: r.opts.ClearColor}},
	})
	r.pipeline.Bind(cb)
	drv.CmdSetViewport(cb, driver.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MaxDepth: 1,
	})
	drv.CmdSetScissor(cb, driver.Rect{Width: extent.Width, Height: extent.Height})
	if ps, ok := r.spec.(PresentSource); ok {
		if set := ps.PresentDescriptor(); set != 0 {
			drv.CmdBindDescriptorSet(cb, r.pipeline.Layout(), 0, set, nil)
		}
	}
	drv.CmdDraw(cb, 6, 1, 0, 0)
	drv.CmdEndRenderPass(cb)
	return nil
}

// NotifyResized asks for a recreation after the next present.
func (r *Renderer) NotifyResized() {
	r.resized = true
}

// Resize rebuilds the swapchain right away.
func (r *Renderer) Resize() error {
	if !r.initialized {
		return ErrNotInitialized
	}
	return r.recreateSwapchain()
}

// recreateSwapchain waits for the GPU, waits out a minimized window and
// rebuilds everything derived from the swapchain. Frame sync and command
// buffers are rebuilt too since the image count may change. Nested calls
// are no-ops.
func (r *Renderer) recreateSwapchain() error {
	if r.recreating {
		return nil
	}
	r.recreating = true
	defer func() { r.recreating = false }()

	drv := r.ctx.drv
	if err := drv.DeviceWaitIdle(); err != nil {
		return errors.Wrap(err, "wait for device idle")
	}

	w, h := r.window.FramebufferSize()
	for w == 0 || h == 0 {
		r.window.WaitEvents()
		w, h = r.window.FramebufferSize()
	}

	frame := r.sync.Index()
	oldFormat := r.swapchain.Format().Format

	r.commands.Destroy()
	r.sync.Destroy()
	r.swapchain.Destroy()

	sc, err := NewSwapchain(r.ctx, SwapchainOptions{VSync: r.opts.VSync, Width: uint32(w), Height: uint32(h)})
	if err != nil {
		return r.fail(errors.Wrap(err, "recreate swapchain"))
	}
	r.swapchain = sc

	if sc.Format().Format != oldFormat {
		core.LogInfo("Swapchain format changed, rebuilding the main pass.")
		r.pipeline.Destroy()
		drv.DestroyRenderPass(r.pass)
		r.pass = 0
		if r.pass, err = r.createPresentPass(sc.Format().Format); err != nil {
			return r.fail(errors.Wrap(err, "recreate render pass"))
		}
		if r.pipeline, err = r.buildMainPipeline(); err != nil {
			r.pipeline = &Pipeline{ctx: r.ctx}
			return r.fail(errors.Wrap(err, "recreate pipeline"))
		}
	}
	if err := sc.CreateFramebuffers(r.pass); err != nil {
		return r.fail(err)
	}

	if r.sync, err = NewFrameSync(drv, sc.ImageCount()); err != nil {
		r.sync = &FrameSync{drv: drv}
		return r.fail(err)
	}
	r.sync.SetIndex(frame)
	if r.commands, err = NewFrameCommands(r.ctx, sc.ImageCount()); err != nil {
		r.commands = &FrameCommands{drv: drv}
		return r.fail(err)
	}

	if r.spec != nil {
		if err := r.spec.Resized(r); err != nil {
			return r.fail(errors.Wrap(err, "resize specialization"))
		}
	}

	core.LogInfo("Swapchain recreated: %dx%d, %d images.", sc.Extent().Width, sc.Extent().Height, sc.ImageCount())
	return nil
}

func (r *Renderer) fail(err error) error {
	r.lost = err
	core.LogError(err.Error())
	return err
}

// Cleanup waits for the GPU and releases everything in reverse order of
// creation, ending with the device and the instance.
func (r *Renderer) Cleanup() {
	if !r.initialized {
		return
	}
	if err := r.ctx.drv.DeviceWaitIdle(); err != nil {
		core.LogWarn("device wait idle before cleanup: %s", err)
	}
	r.releases.unwind()
	r.initialized = false
	r.state = FrameIdle
	core.LogInfo("Renderer shut down.")
}

// ReloadShaders rebuilds the main pipeline from its shader paths. The old
// pipeline is kept when the new one fails to build.
func (r *Renderer) ReloadShaders() error {
	if !r.initialized {
		return ErrNotInitialized
	}
	if err := r.ctx.drv.DeviceWaitIdle(); err != nil {
		return errors.Wrap(err, "wait for device idle")
	}
	p, err := r.buildMainPipeline()
	if err != nil {
		return errors.Wrap(err, "reload shaders")
	}
	r.pipeline.Destroy()
	r.pipeline = p
	core.LogInfo("Shaders reloaded.")
	return nil
}

// NewRenderTarget creates and initializes an offscreen target.
func (r *Renderer) NewRenderTarget(info RenderTargetInfo) (*RenderTarget, error) {
	rt := NewRenderTarget(r.ctx)
	if err := rt.Initialize(info); err != nil {
		return nil, err
	}
	return rt, nil
}

// NewPipeline builds a pipeline, defaulting to the main render pass and the
// renderer's shader source.
func (r *Renderer) NewPipeline(desc PipelineDesc) (*Pipeline, error) {
	if desc.RenderPass == 0 {
		desc.RenderPass = r.pass
	}
	if desc.Shaders == nil {
		desc.Shaders = r.opts.Shaders
	}
	return NewPipeline(r.ctx, desc)
}

// FrameIndex is the slot the next Render call uses.
func (r *Renderer) FrameIndex() uint32 {
	if r.sync == nil {
		return 0
	}
	return r.sync.Index()
}

func (r *Renderer) State() FrameState {
	return r.state
}

// Err returns the reason of the last failed Initialize, or nil.
func (r *Renderer) Err() error {
	return r.err
}

func (r *Renderer) Context() *Context {
	return r.ctx
}

func (r *Renderer) Swapchain() *Swapchain {
	return r.swapchain
}

func (r *Renderer) Extent() driver.Extent {
	if r.swapchain == nil {
		return driver.Extent{}
	}
	return r.swapchain.Extent()
}

func (r *Renderer) RenderPass() driver.RenderPass {
	return r.pass
}

func (r *Renderer) Pipeline() *Pipeline {
	return r.pipeline
}

func (r *Renderer) Initialized() bool {
	return r.initialized
}
