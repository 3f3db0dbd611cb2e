package renderer

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver/drivertest"
)

func TestRenderFrameSequence(t *testing.T) {
	r, drv, _ := newTestRenderer(t, nil)
	defer r.Cleanup()

	if got := r.Swapchain().ImageCount(); got != 2 {
		t.Fatalf("image count = %d, want 2", got)
	}

	var seq []uint32
	for i := 0; i < 5; i++ {
		if err := r.Render(); err != nil {
			t.Fatalf("Render %d: %+v", i, err)
		}
		seq = append(seq, r.FrameIndex())
		if r.State() != FrameIdle {
			t.Fatalf("state after render = %s, want idle", r.State())
		}
	}

	if want := []uint32{1, 0, 1, 0, 1}; !reflect.DeepEqual(seq, want) {
		t.Errorf("frame index sequence = %v, want %v", seq, want)
	}
	for _, m := range []string{"WaitForFence", "AcquireNextImage", "QueueSubmit", "QueuePresent"} {
		if got := drv.Count(m); got != 5 {
			t.Errorf("%s called %d times, want 5", m, got)
		}
	}
	if drv.Count("CreateSwapchain") != 1 {
		t.Errorf("swapchain recreated without staleness")
	}
}

func TestRenderRecordsMainPass(t *testing.T) {
	r, drv, _ := newTestRenderer(t, nil)
	defer r.Cleanup()

	if err := r.Render(); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"Begin",
		"BeginRenderPass 800x600",
		"BindPipeline",
		"SetViewport 800x600",
		"SetScissor 800x600",
		"Draw 6",
		"EndRenderPass",
		"End",
	}
	if got := drv.Commands(r.commands.Buffer(0)); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v\nwant %v", got, want)
	}
}

func TestFenceResetOnlyAfterAcquire(t *testing.T) {
	r, drv, _ := newTestRenderer(t, nil)
	defer r.Cleanup()

	if err := r.Render(); err != nil {
		t.Fatal(err)
	}
	acquire, reset, submit := drv.Index("AcquireNextImage"), drv.Index("ResetFence"), drv.Index("QueueSubmit")
	if !(drv.Index("WaitForFence") < acquire && acquire < reset && reset < submit) {
		t.Errorf("order wait/acquire/reset/submit = %d/%d/%d/%d", drv.Index("WaitForFence"), acquire, reset, submit)
	}

	drv.AcquireStatuses = []driver.Status{driver.StatusOutOfDate}
	resets := drv.Count("ResetFence")
	if err := r.Render(); err != nil {
		t.Fatal(err)
	}
	if drv.Count("ResetFence") != resets {
		t.Error("fence reset although acquire reported a stale swapchain")
	}
}

func TestRenderOutOfDateSkipsFrame(t *testing.T) {
	r, drv, _ := newTestRenderer(t, nil)
	defer r.Cleanup()

	drv.AcquireStatuses = []driver.Status{driver.StatusOutOfDate}
	if err := r.Render(); err != nil {
		t.Fatalf("stale acquire must not fail the frame: %+v", err)
	}
	if drv.Count("QueueSubmit") != 0 || drv.Count("QueuePresent") != 0 {
		t.Error("skipped frame was submitted")
	}
	if drv.Count("CreateSwapchain") != 2 {
		t.Errorf("CreateSwapchain = %d, want 2", drv.Count("CreateSwapchain"))
	}
	if r.FrameIndex() != 1 {
		t.Errorf("frame index = %d, want 1", r.FrameIndex())
	}

	if err := r.Render(); err != nil {
		t.Fatal(err)
	}
	if drv.Count("QueuePresent") != 1 {
		t.Error("frame after recreation was not presented")
	}
	if len(drv.Misuse) > 0 {
		t.Errorf("misuse: %v", drv.Misuse)
	}
}

func TestRenderSuboptimalPresentRecreates(t *testing.T) {
	r, drv, _ := newTestRenderer(t, nil)
	defer r.Cleanup()

	drv.PresentStatuses = []driver.Status{driver.StatusSuboptimal}
	if err := r.Render(); err != nil {
		t.Fatal(err)
	}
	if drv.Count("CreateSwapchain") != 2 {
		t.Errorf("CreateSwapchain = %d, want 2", drv.Count("CreateSwapchain"))
	}
	if drv.Count("QueuePresent") != 1 {
		t.Errorf("QueuePresent = %d, want 1", drv.Count("QueuePresent"))
	}
}

func TestNotifyResizedRecreatesAfterPresent(t *testing.T) {
	r, drv, _ := newTestRenderer(t, nil)
	defer r.Cleanup()

	r.NotifyResized()
	if err := r.Render(); err != nil {
		t.Fatal(err)
	}
	if drv.LastIndex("CreateSwapchain") < drv.Index("QueuePresent") {
		t.Error("swapchain was not recreated after the present")
	}
	if err := r.Render(); err != nil {
		t.Fatal(err)
	}
	if drv.Count("CreateSwapchain") != 2 {
		t.Errorf("resize flag not cleared, CreateSwapchain = %d", drv.Count("CreateSwapchain"))
	}
}

func TestRecreateWaitsOutMinimizedWindow(t *testing.T) {
	r, drv, win := newTestRenderer(t, nil)
	defer r.Cleanup()

	drv.Capabilities.CurrentExtent = driver.Extent{Width: driver.AnyExtent, Height: driver.AnyExtent}
	win.queue = [][2]int{{0, 0}, {0, 5}, {5, 5}}

	if err := r.Resize(); err != nil {
		t.Fatal(err)
	}
	if win.waits != 2 {
		t.Errorf("WaitEvents = %d, want 2", win.waits)
	}
	if got := r.Extent(); got != (driver.Extent{Width: 5, Height: 5}) {
		t.Errorf("extent = %v, want 5x5", got)
	}
	if drv.Index("DeviceWaitIdle") > drv.LastIndex("CreateSwapchain") {
		t.Error("device was not idle before recreation")
	}
}

func TestRecreateRebuildsFrameSyncForNewImageCount(t *testing.T) {
	r, drv, _ := newTestRenderer(t, nil)
	defer r.Cleanup()

	if err := r.Render(); err != nil {
		t.Fatal(err)
	}
	drv.OnDeviceWaitIdle = func() {
		drv.Capabilities.MinImageCount = 2
		drv.Capabilities.MaxImageCount = 0
	}
	if err := r.Resize(); err != nil {
		t.Fatal(err)
	}
	if got := r.Swapchain().ImageCount(); got != 3 {
		t.Fatalf("image count = %d, want 3", got)
	}
	if got := drv.LiveByKind()["fence"]; got != 3 {
		t.Errorf("live fences = %d, want 3", got)
	}
	if r.FrameIndex() != 1 {
		t.Errorf("frame index = %d, want 1", r.FrameIndex())
	}

	var seq []uint32
	for i := 0; i < 3; i++ {
		if err := r.Render(); err != nil {
			t.Fatal(err)
		}
		seq = append(seq, r.FrameIndex())
	}
	if want := []uint32{2, 0, 1}; !reflect.DeepEqual(seq, want) {
		t.Errorf("sequence = %v, want %v", seq, want)
	}
}

func TestInitializeRollsBackOnFailure(t *testing.T) {
	stages := []string{
		"CreateSurface",
		"CreateDevice",
		"GetQueue",
		"CreateCommandPool",
		"CreateDescriptorPool",
		"CreateDescriptorSetLayout",
		"CreateSwapchain",
		"CreateImageView",
		"CreateRenderPass",
		"CreateFramebuffer",
		"CreateSemaphore",
		"CreateFence",
		"AllocateCommandBuffers",
		"CreateShaderModule",
		"CreateGraphicsPipeline",
	}
	for _, stage := range stages {
		t.Run(stage, func(t *testing.T) {
			drv := drivertest.New()
			drv.Fail[stage] = errors.New("boom")
			r := New(drv, &fakeWindow{width: 800, height: 600}, nil)

			err := r.Initialize(testOptions())
			if err == nil {
				t.Fatal("Initialize succeeded")
			}
			var ie *InitializationError
			if !errors.As(err, &ie) {
				t.Fatalf("error %v is not an InitializationError", err)
			}
			if r.Err() == nil || ie.Reason == "" {
				t.Error("failure reason not kept")
			}
			if drv.Live() != 0 {
				t.Errorf("leaked objects: %v", drv.LiveKinds())
			}
			if len(drv.Misuse) > 0 {
				t.Errorf("misuse: %v", drv.Misuse)
			}
			if err := r.Render(); !errors.Is(err, ErrNotInitialized) {
				t.Errorf("Render after failed init = %v", err)
			}
		})
	}
}

func TestInitializeNoSuitableDevice(t *testing.T) {
	drv := drivertest.New()
	drv.AdapterList = []driver.Adapter{
		{Name: "no swapchain", Type: driver.DeviceTypeDiscreteGPU},
		{Name: "unknown type", Type: driver.DeviceTypeOther, Extensions: []string{driver.SwapchainExtension}},
	}
	r := New(drv, &fakeWindow{width: 800, height: 600}, nil)

	err := r.Initialize(testOptions())
	if !errors.Is(err, ErrNoSuitableDevice) {
		t.Fatalf("err = %v, want ErrNoSuitableDevice", err)
	}
	if drv.Live() != 0 {
		t.Errorf("leaked objects: %v", drv.LiveKinds())
	}
}

func TestCleanupReleasesInDependencyOrder(t *testing.T) {
	r, drv, _ := newTestRenderer(t, nil)
	for i := 0; i < 3; i++ {
		if err := r.Render(); err != nil {
			t.Fatal(err)
		}
	}
	r.Cleanup()

	if drv.Live() != 0 {
		t.Fatalf("leaked objects: %v", drv.LiveKinds())
	}
	if len(drv.Misuse) > 0 {
		t.Fatalf("misuse: %v", drv.Misuse)
	}
	fence, pool := drv.LastIndex("DestroyFence"), drv.Index("DestroyCommandPool")
	device, instance := drv.Index("DestroyDevice"), drv.Index("DestroyInstance")
	if !(fence < pool && pool < device && device < instance) {
		t.Errorf("release order fence/pool/device/instance = %d/%d/%d/%d", fence, pool, device, instance)
	}
	if drv.LastIndex("DestroySwapchain") > device {
		t.Error("swapchain outlived the device")
	}

	// A second cleanup is a no-op.
	calls := len(drv.Calls)
	r.Cleanup()
	if len(drv.Calls) != calls {
		t.Error("second Cleanup touched the driver")
	}
}

func TestReloadShadersKeepsPipelineOnFailure(t *testing.T) {
	r, drv, _ := newTestRenderer(t, nil)
	defer r.Cleanup()

	old := r.Pipeline().Handle()
	drv.Fail["CreateGraphicsPipeline"] = errors.New("bad spirv")
	if err := r.ReloadShaders(); err == nil {
		t.Fatal("ReloadShaders succeeded with a failing pipeline")
	}
	if r.Pipeline().Handle() != old {
		t.Error("working pipeline replaced by a failed reload")
	}

	delete(drv.Fail, "CreateGraphicsPipeline")
	if err := r.ReloadShaders(); err != nil {
		t.Fatal(err)
	}
	if r.Pipeline().Handle() == old {
		t.Error("pipeline not replaced")
	}
	if err := r.Render(); err != nil {
		t.Fatal(err)
	}
}

func TestRenderer3DPresentsSceneTarget(t *testing.T) {
	var frames []uint32
	scene := NewRenderer3D(func(r *Renderer, target *RenderTarget, cb driver.CommandBuffer, frame uint32) error {
		frames = append(frames, frame)
		r.Context().Driver().CmdDraw(cb, 3, 1, 0, 0)
		return nil
	})
	r, drv, _ := newTestRenderer(t, scene)

	if err := r.Render(); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"Begin",
		"BeginRenderPass 800x600",
		"SetViewport 800x600",
		"SetScissor 800x600",
		"Draw 3",
		"EndRenderPass",
		"BeginRenderPass 800x600",
		"BindPipeline",
		"SetViewport 800x600",
		"SetScissor 800x600",
		"BindDescriptorSet 0",
		"Draw 6",
		"EndRenderPass",
		"End",
	}
	if got := drv.Commands(r.commands.Buffer(0)); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v\nwant %v", got, want)
	}
	if info, ok := drv.ImageInfo(scene.Target().Color().Handle()); !ok || info.Format != SceneFormat {
		t.Errorf("scene target format = %v", info.Format)
	}
	if scene.Target().Depth() == nil {
		t.Error("scene target has no depth")
	}

	drv.OnDeviceWaitIdle = func() {
		drv.Capabilities.CurrentExtent = driver.Extent{Width: 1024, Height: 768}
	}
	if err := r.Resize(); err != nil {
		t.Fatal(err)
	}
	if got := scene.Target().Extent(); got != (driver.Extent{Width: 1024, Height: 768}) {
		t.Errorf("scene target extent = %v after resize", got)
	}
	if err := r.Render(); err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 || frames[0] != 0 || frames[1] != 1 {
		t.Errorf("record frames = %v, want [0 1]", frames)
	}

	r.Cleanup()
	if drv.Live() != 0 {
		t.Errorf("leaked objects: %v", drv.LiveKinds())
	}
	if len(drv.Misuse) > 0 {
		t.Errorf("misuse: %v", drv.Misuse)
	}
}

func TestFailedSubmitStopsRendering(t *testing.T) {
	r, drv, _ := newTestRenderer(t, nil)
	defer r.Cleanup()

	drv.Fail["QueueSubmit"] = errors.New("device busy")
	if err := r.Render(); err == nil {
		t.Fatal("Render succeeded with a failing submit")
	}
	delete(drv.Fail, "QueueSubmit")

	waits := drv.Count("WaitForFence")
	for i := 0; i < 3; i++ {
		if err := r.Render(); err == nil {
			t.Fatal("Render succeeded after a lost submission")
		}
	}
	if drv.Count("WaitForFence") != waits {
		t.Error("Render waited on a fence nothing will signal")
	}
	if drv.Count("QueuePresent") != 0 {
		t.Errorf("presented %d frames", drv.Count("QueuePresent"))
	}
}
