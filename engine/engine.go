package engine

import (
	"path"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/assets"
	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/platform"
	"github.com/spaghettifunk/purrfect/engine/renderer"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
	"github.com/spaghettifunk/purrfect/engine/renderer/vulkan"
)

// Window is the OS window the engine pumps and draws into. platform.Window
// is the desktop implementation.
type Window interface {
	renderer.Window
	Startup(applicationName string, x, y, width, height uint32) error
	Shutdown() error
	// PumpMessages processes pending events and reports whether the window
	// is still open.
	PumpMessages() bool
}

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *Config

	running     atomic.Bool
	isSuspended bool

	bus          *core.EventBus
	window       Window
	driver       driver.Driver
	assetManager *assets.AssetManager
	renderer     *renderer.Renderer
	clock        *core.Clock
	metrics      *core.Metrics

	width    uint32
	height   uint32
	lastTime float64
}

func New(g *Game) (*Engine, error) {
	bus := core.NewEventBus()
	win := platform.New(bus)
	return newEngine(g, bus, win, vulkan.New(win))
}

// newEngine wires the engine to a window and the driver that draws into it.
// The window fires its events on bus.
func newEngine(g *Game, bus *core.EventBus, win Window, drv driver.Driver) (*Engine, error) {
	cfg := g.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		config:       cfg,
		bus:          bus,
		window:       win,
		driver:       drv,
		assetManager: am,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		width:        cfg.Window.Width,
		height:       cfg.Window.Height,
	}
	e.running.Store(true)
	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	e.bus.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onQuit)
	e.bus.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.bus.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.bus.Register(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetChanged)

	w := e.config.Window
	if err := e.window.Startup(w.Name, w.X, w.Y, w.Width, w.Height); err != nil {
		return err
	}

	if err := e.assetManager.Initialize(e.config.Assets.Dir, e.config.Assets.Watch); err != nil {
		return err
	}

	opts, err := e.config.rendererOptions(e.assetManager.ReadShader)
	if err != nil {
		return err
	}
	e.renderer = renderer.New(e.driver, e.window, e.gameInstance.Specialization)
	e.renderer.Context().SetImageDecoder(&assets.ImageLoader{})
	if err := e.renderer.Initialize(opts); err != nil {
		core.LogError("Renderer failed to initialize: %s", err)
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}

	extent := e.renderer.Extent()
	e.width, e.height = extent.Width, extent.Height
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.running.Load() {
		if !e.window.PumpMessages() {
			e.running.Store(false)
			break
		}
		e.dispatchAssetChanges()

		if e.isSuspended {
			// Nothing to draw into; block until the window changes.
			e.window.WaitEvents()
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := core.Now()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("Game update failed, shutting down.")
				return errors.Wrap(err, "game update")
			}
		}
		if e.gameInstance.FnRender != nil {
			if err := e.gameInstance.FnRender(delta); err != nil {
				core.LogError("Game render failed, shutting down.")
				return errors.Wrap(err, "game render")
			}
		}

		if err := e.drawFrame(); err != nil {
			if errors.Is(err, core.ErrSwapchainBooting) {
				continue
			}
			core.LogError("Frame failed, shutting down: %s", err)
			return err
		}

		e.metrics.Update(core.Now() - frameStartTime)
		e.lastTime = currentTime
	}
	return nil
}

// drawFrame skips frames while the framebuffer has no area.
func (e *Engine) drawFrame() error {
	if w, h := e.window.FramebufferSize(); w == 0 || h == 0 {
		return core.ErrSwapchainBooting
	}
	return e.renderer.Render()
}

// dispatchAssetChanges forwards pending watcher events to the bus on the
// main thread, where the renderer may be touched.
func (e *Engine) dispatchAssetChanges() {
	for {
		select {
		case ev := <-e.assetManager.Changes():
			e.bus.Fire(core.EventContext{Code: core.EVENT_CODE_ASSET_CHANGED, Sender: e.assetManager, Data: &ev})
		default:
			return
		}
	}
}

// Quit stops the loop at the next frame. Safe to call from any goroutine.
func (e *Engine) Quit() {
	e.running.Store(false)
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	var err error
	if e.gameInstance.FnShutdown != nil {
		err = errors.CombineErrors(err, e.gameInstance.FnShutdown())
	}
	if e.renderer != nil {
		e.renderer.Cleanup()
	}
	err = errors.CombineErrors(err, e.assetManager.Shutdown())
	err = errors.CombineErrors(err, e.window.Shutdown())
	e.bus.Shutdown()

	e.currentStage = EngineStageUninitialized
	return err
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

func (e *Engine) Assets() *assets.AssetManager {
	return e.assetManager
}

func (e *Engine) Events() *core.EventBus {
	return e.bus
}

func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// GetFramebufferSize returns the width and height (in this order) of the
// last framebuffer the engine saw.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onQuit(ctx core.EventContext) bool {
	core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
	e.running.Store(false)
	return true
}

func (e *Engine) onKey(ctx core.EventContext) bool {
	ke, ok := ctx.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event code `%d`", ctx.Code)
		return false
	}
	if ke.Key == platform.KeyEscape {
		// Other listeners may care about quitting too.
		e.bus.Fire(core.EventContext{Code: core.EVENT_CODE_APPLICATION_QUIT, Sender: e})
		return true
	}
	return false
}

func (e *Engine) onResized(ctx core.EventContext) bool {
	re, ok := ctx.Data.(*core.ResizeEvent)
	if !ok {
		core.LogError("wrong event associated with the event code `%d`", ctx.Code)
		return false
	}
	width, height := uint32(re.Width), uint32(re.Height)
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.renderer != nil {
		e.renderer.NotifyResized()
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}

func (e *Engine) onAssetChanged(ctx core.EventContext) bool {
	ae, ok := ctx.Data.(*core.AssetEvent)
	if !ok {
		core.LogError("wrong event associated with the event code `%d`", ctx.Code)
		return false
	}
	if ae.Removed || path.Ext(ae.Path) != ".spv" || !e.config.usesShader(ae.Path) {
		return false
	}
	core.LogInfo("Shader '%s' changed, reloading.", ae.Path)
	if err := e.renderer.ReloadShaders(); err != nil {
		// The previous pipeline stays in use.
		core.LogError(err.Error())
	}
	return false
}
