package renderer

import (
	"testing"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver/drivertest"
)

// fakeWindow reports queued sizes one per FramebufferSize call and then
// sticks to the last one.
type fakeWindow struct {
	width, height int
	queue         [][2]int
	waits         int
}

func (w *fakeWindow) FramebufferSize() (int, int) {
	if len(w.queue) > 0 {
		w.width, w.height = w.queue[0][0], w.queue[0][1]
		w.queue = w.queue[1:]
	}
	return w.width, w.height
}

func (w *fakeWindow) WaitEvents() {
	w.waits++
}

func testShaders(path string) ([]byte, error) {
	return []byte{0x03, 0x02, 0x23, 0x07}, nil
}

func testOptions() Options {
	return Options{
		Context:        ContextOptions{AppName: "test"},
		VertexShader:   "present.vert.spv",
		FragmentShader: "present.frag.spv",
		Shaders:        testShaders,
	}
}

func newTestRenderer(t *testing.T, spec Specialization) (*Renderer, *drivertest.Driver, *fakeWindow) {
	t.Helper()
	drv := drivertest.New()
	win := &fakeWindow{width: 800, height: 600}
	r := New(drv, win, spec)
	if err := r.Initialize(testOptions()); err != nil {
		t.Fatalf("Initialize: %+v", err)
	}
	return r, drv, win
}

func newTestContext(t *testing.T) (*Context, *drivertest.Driver) {
	t.Helper()
	drv := drivertest.New()
	ctx := NewContext(drv, &fakeWindow{width: 800, height: 600})
	if err := ctx.Initialize(ContextOptions{AppName: "test"}); err != nil {
		t.Fatalf("Initialize: %+v", err)
	}
	return ctx, drv
}
