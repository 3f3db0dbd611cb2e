package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/platform"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver/drivertest"
)

// fakeWindow runs one scripted step per PumpMessages call and closes once
// the steps run out.
type fakeWindow struct {
	bus           *core.EventBus
	width, height int
	steps         []func(w *fakeWindow)
	pumps         int
	waits         int
	closed        bool
}

func (w *fakeWindow) Startup(applicationName string, x, y, width, height uint32) error {
	return nil
}

func (w *fakeWindow) Shutdown() error {
	w.closed = true
	return nil
}

func (w *fakeWindow) PumpMessages() bool {
	if w.pumps >= len(w.steps) {
		return false
	}
	step := w.steps[w.pumps]
	w.pumps++
	if step != nil {
		step(w)
	}
	return true
}

func (w *fakeWindow) FramebufferSize() (int, int) {
	return w.width, w.height
}

func (w *fakeWindow) WaitEvents() {
	w.waits++
}

// resize changes the framebuffer and fires the event like the OS callback.
func (w *fakeWindow) resize(width, height int) {
	w.width, w.height = width, height
	w.bus.Fire(core.EventContext{Code: core.EVENT_CODE_RESIZED, Sender: w, Data: &core.ResizeEvent{Width: width, Height: height}})
}

type gameRecord struct {
	updates  int
	renders  int
	resizes  [][2]uint32
	shutdown bool
}

func newTestEngine(t *testing.T, steps ...func(w *fakeWindow)) (*Engine, *fakeWindow, *drivertest.Driver, *gameRecord) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "shaders"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"present.vert.spv", "present.frag.spv"} {
		if err := os.WriteFile(filepath.Join(dir, "shaders", name), []byte{0x03, 0x02, 0x23, 0x07}, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := DefaultConfig()
	cfg.Assets.Dir = dir
	cfg.Assets.Watch = false
	cfg.Window.Width, cfg.Window.Height = 800, 600

	rec := &gameRecord{}
	g := &Game{
		Config:   cfg,
		FnUpdate: func(float64) error { rec.updates++; return nil },
		FnRender: func(float64) error { rec.renders++; return nil },
		FnOnResize: func(width, height uint32) error {
			rec.resizes = append(rec.resizes, [2]uint32{width, height})
			return nil
		},
		FnShutdown: func() error { rec.shutdown = true; return nil },
	}

	bus := core.NewEventBus()
	win := &fakeWindow{bus: bus, width: 800, height: 600, steps: steps}
	drv := drivertest.New()
	e, err := newEngine(g, bus, win, drv)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		t.Fatalf("Initialize: %+v", err)
	}
	return e, win, drv, rec
}

func TestEngineSkipsFramesWithoutFramebuffer(t *testing.T) {
	e, _, drv, rec := newTestEngine(t,
		nil,
		func(w *fakeWindow) { w.width, w.height = 0, 0 },
		func(w *fakeWindow) { w.width, w.height = 800, 600 },
	)
	defer e.Shutdown()

	submits := drv.Count("QueueSubmit")
	presents := drv.Count("QueuePresent")
	if err := e.Run(); err != nil {
		t.Fatalf("Run: %+v", err)
	}
	if got := drv.Count("QueueSubmit") - submits; got != 2 {
		t.Errorf("submitted %d frames, want 2", got)
	}
	if got := drv.Count("QueuePresent") - presents; got != 2 {
		t.Errorf("presented %d frames, want 2", got)
	}
	if rec.renders != 3 {
		t.Errorf("game rendered %d times, want 3", rec.renders)
	}
}

func TestEngineDrawFrameWithEmptyFramebuffer(t *testing.T) {
	e, win, drv, _ := newTestEngine(t)
	defer e.Shutdown()

	win.width, win.height = 1024, 0
	submits := drv.Count("QueueSubmit")
	if err := e.drawFrame(); !errors.Is(err, core.ErrSwapchainBooting) {
		t.Fatalf("drawFrame = %v, want ErrSwapchainBooting", err)
	}
	if drv.Count("QueueSubmit") != submits {
		t.Error("frame submitted without a framebuffer")
	}

	win.width, win.height = 1024, 768
	if err := e.drawFrame(); err != nil {
		t.Fatalf("drawFrame after restore: %+v", err)
	}
	if drv.Count("QueueSubmit") != submits+1 {
		t.Error("restored frame was not submitted")
	}
}

func TestEngineSuspendsWhileMinimized(t *testing.T) {
	e, win, drv, rec := newTestEngine(t,
		func(w *fakeWindow) { w.resize(0, 0) },
		nil,
		func(w *fakeWindow) { w.resize(1024, 768) },
		nil,
	)
	defer e.Shutdown()

	resizes := len(rec.resizes)
	submits := drv.Count("QueueSubmit")
	swapchains := drv.Count("CreateSwapchain")
	if err := e.Run(); err != nil {
		t.Fatalf("Run: %+v", err)
	}

	if win.waits != 2 {
		t.Errorf("waited for events %d times, want 2", win.waits)
	}
	if rec.updates != 2 {
		t.Errorf("game updated %d times while running, want 2", rec.updates)
	}
	if got := drv.Count("QueueSubmit") - submits; got != 2 {
		t.Errorf("submitted %d frames, want 2", got)
	}
	if got := drv.Count("CreateSwapchain") - swapchains; got != 1 {
		t.Errorf("recreated the swapchain %d times, want 1", got)
	}
	if len(rec.resizes) != resizes+1 || rec.resizes[len(rec.resizes)-1] != [2]uint32{1024, 768} {
		t.Errorf("resizes = %v, want one more ending in 1024x768", rec.resizes)
	}
	if w, h := e.GetFramebufferSize(); w != 1024 || h != 768 {
		t.Errorf("framebuffer = %dx%d, want 1024x768", w, h)
	}
}

func TestEngineStops(t *testing.T) {
	tests := []struct {
		name string
		stop func(e *Engine, w *fakeWindow)
	}{
		{"escape key", func(e *Engine, w *fakeWindow) {
			w.bus.Fire(core.EventContext{Code: core.EVENT_CODE_KEY_PRESSED, Sender: w, Data: &core.KeyEvent{Key: platform.KeyEscape}})
		}},
		{"quit", func(e *Engine, w *fakeWindow) { e.Quit() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e *Engine
			reached := false
			e, win, drv, rec := newTestEngine(t,
				func(w *fakeWindow) { tt.stop(e, w) },
				func(w *fakeWindow) { reached = true },
			)
			if err := e.Run(); err != nil {
				t.Fatalf("Run: %+v", err)
			}
			if reached || win.pumps != 1 {
				t.Errorf("loop ran %d iterations after stopping", win.pumps-1)
			}

			if err := e.Shutdown(); err != nil {
				t.Fatalf("Shutdown: %+v", err)
			}
			if !rec.shutdown || !win.closed {
				t.Error("game or window not shut down")
			}
			if drv.Live() != 0 {
				t.Errorf("%d driver objects alive after Shutdown: %v", drv.Live(), drv.LiveKinds())
			}
			if e.Stage() != EngineStageUninitialized {
				t.Errorf("stage = %d after Shutdown", e.Stage())
			}
		})
	}
}
