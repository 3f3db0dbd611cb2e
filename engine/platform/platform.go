package platform

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/purrfect/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// KeyEscape is the key code carried by core.KeyEvent for the escape key.
const KeyEscape = int(glfw.KeyEscape)

// Window is the glfw window the renderer presents to. It satisfies
// renderer.Window and vulkan.SurfaceSource.
type Window struct {
	handle *glfw.Window
	bus    *core.EventBus
}

// New returns an unopened window. Events are fired on bus, which may be nil.
func New(bus *core.EventBus) *Window {
	return &Window{bus: bus}
}

func (w *Window) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		err = errors.Wrap(err, "failed to initialize glfw")
		core.LogError(err.Error())
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw reports no Vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	handle, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		err = errors.Wrap(err, "failed to create window")
		core.LogError(err.Error())
		return err
	}
	w.handle = handle

	w.handle.SetKeyCallback(w.keyCallback)
	w.handle.SetFramebufferSizeCallback(w.framebufferSizeCallback)
	w.handle.SetCloseCallback(w.closeCallback)
	w.handle.SetPos(int(x), int(y))
	w.handle.Show()

	core.LogInfo("Window '%s' opened at %dx%d.", applicationName, width, height)
	return nil
}

func (w *Window) Shutdown() error {
	if w.handle != nil {
		w.handle.Destroy()
		w.handle = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events and reports whether the
// window is still open.
func (w *Window) PumpMessages() bool {
	glfw.PollEvents()
	return !w.handle.ShouldClose()
}

func (w *Window) FramebufferSize() (int, int) {
	return w.handle.GetFramebufferSize()
}

func (w *Window) WaitEvents() {
	glfw.WaitEvents()
}

func (w *Window) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (w *Window) GetRequiredInstanceExtensions() []string {
	return w.handle.GetRequiredInstanceExtensions()
}

func (w *Window) CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error) {
	return w.handle.CreateWindowSurface(instance, allocCallbacks)
}

// GetAbsoluteTime is the glfw timer in seconds.
func GetAbsoluteTime() float64 {
	return glfw.GetTime()
}

func (w *Window) fire(code core.SystemEventCode, data interface{}) {
	if w.bus == nil {
		return
	}
	w.bus.Fire(core.EventContext{Code: code, Sender: w, Data: data})
}

func (w *Window) keyCallback(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	switch action {
	case glfw.Press:
		w.fire(core.EVENT_CODE_KEY_PRESSED, &core.KeyEvent{Key: int(key)})
	case glfw.Release:
		w.fire(core.EVENT_CODE_KEY_RELEASED, &core.KeyEvent{Key: int(key)})
	}
}

func (w *Window) framebufferSizeCallback(_ *glfw.Window, width, height int) {
	w.fire(core.EVENT_CODE_RESIZED, &core.ResizeEvent{Width: width, Height: height})
}

func (w *Window) closeCallback(_ *glfw.Window) {
	w.fire(core.EVENT_CODE_APPLICATION_QUIT, nil)
}
