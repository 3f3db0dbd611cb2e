package renderer

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver/drivertest"
)

func adapter(name string, typ driver.DeviceType) driver.Adapter {
	return driver.Adapter{
		Name:       name,
		Type:       typ,
		Features:   driver.DeviceFeatures{SamplerAnisotropy: true},
		Extensions: []string{driver.SwapchainExtension},
	}
}

func TestScoreAdapter(t *testing.T) {
	tests := []struct {
		typ   driver.DeviceType
		score int
	}{
		{driver.DeviceTypeDiscreteGPU, 50},
		{driver.DeviceTypeIntegratedGPU, 25},
		{driver.DeviceTypeVirtualGPU, 10},
		{driver.DeviceTypeCPU, 5},
		{driver.DeviceTypeOther, 0},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			score, ok := ScoreAdapter(adapter("gpu", tt.typ), DeviceRequirements{})
			if !ok || score != tt.score {
				t.Errorf("score = %d, %t, want %d, true", score, ok, tt.score)
			}
		})
	}
}

func TestScoreAdapterExcludesMissingRequirements(t *testing.T) {
	a := adapter("gpu", driver.DeviceTypeDiscreteGPU)

	if _, ok := ScoreAdapter(a, DeviceRequirements{Features: driver.DeviceFeatures{GeometryShader: true}}); ok {
		t.Error("adapter without geometry shaders accepted")
	}
	if _, ok := ScoreAdapter(a, DeviceRequirements{Extensions: []string{"VK_KHR_ray_query"}}); ok {
		t.Error("adapter without a required extension accepted")
	}
	a.Extensions = nil
	if _, ok := ScoreAdapter(a, DeviceRequirements{}); ok {
		t.Error("adapter without swapchain support accepted")
	}
}

func TestSelectAdapter(t *testing.T) {
	integrated := adapter("integrated", driver.DeviceTypeIntegratedGPU)
	discrete := adapter("discrete", driver.DeviceTypeDiscreteGPU)
	broken := adapter("broken discrete", driver.DeviceTypeDiscreteGPU)
	broken.Extensions = nil

	got, err := SelectAdapter([]driver.Adapter{integrated, broken, discrete}, DeviceRequirements{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "discrete" {
		t.Errorf("selected %q, want discrete", got.Name)
	}

	other := adapter("second discrete", driver.DeviceTypeDiscreteGPU)
	got, _ = SelectAdapter([]driver.Adapter{discrete, other}, DeviceRequirements{})
	if got.Name != "discrete" {
		t.Errorf("tie resolved to %q, want the first adapter", got.Name)
	}

	_, err = SelectAdapter([]driver.Adapter{adapter("other", driver.DeviceTypeOther), broken}, DeviceRequirements{})
	if !errors.Is(err, ErrNoSuitableDevice) {
		t.Errorf("err = %v, want ErrNoSuitableDevice", err)
	}
	if _, err := SelectAdapter(nil, DeviceRequirements{}); !errors.Is(err, ErrNoSuitableDevice) {
		t.Errorf("no adapters: err = %v", err)
	}
}

func TestResolveQueueFamilies(t *testing.T) {
	tests := []struct {
		name     string
		families []driver.QueueFamily
		want     QueueFamilies
		err      error
	}{
		{
			name: "shared family preferred",
			families: []driver.QueueFamily{
				{Flags: driver.QueueGraphics},
				{Flags: driver.QueueTransfer, Present: true},
				{Flags: driver.QueueGraphics | driver.QueueCompute, Present: true},
			},
			want: QueueFamilies{Graphics: 2, Present: 2},
		},
		{
			name: "split families",
			families: []driver.QueueFamily{
				{Flags: driver.QueueCompute, Present: true},
				{Flags: driver.QueueGraphics},
				{Flags: driver.QueueGraphics},
			},
			want: QueueFamilies{Graphics: 1, Present: 0},
		},
		{
			name:     "no present",
			families: []driver.QueueFamily{{Flags: driver.QueueGraphics}},
			err:      ErrNoQueueFamily,
		},
		{
			name:     "no graphics",
			families: []driver.QueueFamily{{Flags: driver.QueueCompute, Present: true}},
			err:      ErrNoQueueFamily,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveQueueFamilies(tt.families)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if err == nil && got != tt.want {
				t.Errorf("families = %+v, want %+v", got, tt.want)
			}
		})
	}

	if u := (QueueFamilies{Graphics: 1, Present: 1}).Unique(); len(u) != 1 {
		t.Errorf("Unique = %v, want one family", u)
	}
	if u := (QueueFamilies{Graphics: 1, Present: 0}).Unique(); len(u) != 2 || u[0] != 1 {
		t.Errorf("Unique = %v, want [1 0]", u)
	}
}

func TestSelectDepthFormat(t *testing.T) {
	drv := drivertest.New()
	if f, _ := SelectDepthFormat(drv); f != driver.FormatD32Sfloat {
		t.Errorf("depth format = %d, want D32", f)
	}

	drv.Unsupported[driver.FormatD32Sfloat] = true
	if f, _ := SelectDepthFormat(drv); f != driver.FormatD32SfloatS8Uint {
		t.Errorf("depth format = %d, want D32S8", f)
	}

	drv.Unsupported[driver.FormatD32SfloatS8Uint] = true
	drv.Unsupported[driver.FormatD24UnormS8Uint] = true
	if _, err := SelectDepthFormat(drv); !errors.Is(err, ErrNoDepthFormat) {
		t.Errorf("err = %v, want ErrNoDepthFormat", err)
	}
}

func TestContextPicksSharedQueueAndCreatesDefaultSamplerLazily(t *testing.T) {
	ctx, drv := newTestContext(t)

	if ctx.GraphicsQueue() != ctx.PresentQueue() {
		t.Error("single family should back both queues")
	}
	if drv.Count("CreateSampler") != 0 {
		t.Error("default sampler created eagerly")
	}
	s1, err := ctx.DefaultSampler()
	if err != nil {
		t.Fatal(err)
	}
	s2, _ := ctx.DefaultSampler()
	if s1 != s2 || drv.Count("CreateSampler") != 1 {
		t.Error("default sampler not shared")
	}
	if !s1.Info().Anisotropy || s1.Info().MaxAnisotropy != 16 {
		t.Errorf("anisotropy not enabled: %+v", s1.Info())
	}

	ctx.Close()
	if drv.Live() != 0 {
		t.Errorf("leaked objects: %v", drv.LiveKinds())
	}
	if drv.Index("DestroySampler") > drv.Index("DestroyDevice") {
		t.Error("sampler destroyed after the device")
	}
}

func TestSubmitOnceWaitsForQueue(t *testing.T) {
	ctx, drv := newTestContext(t)
	defer ctx.Close()

	var recorded driver.CommandBuffer
	err := ctx.SubmitOnce(func(cb driver.CommandBuffer) error {
		recorded = cb
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if drv.Index("QueueSubmit") > drv.Index("QueueWaitIdle") {
		t.Error("queue not waited on after submit")
	}
	if drv.Commands(recorded) != nil {
		t.Error("single use buffer not freed")
	}

	wantErr := errors.New("record failed")
	if err := ctx.SubmitOnce(func(driver.CommandBuffer) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("err = %v", err)
	}
	if drv.Count("QueueSubmit") != 1 {
		t.Error("failed recording was submitted")
	}
	if got := drv.LiveByKind()["commandbuffer"]; got != 0 {
		t.Errorf("%d command buffers leaked", got)
	}
}
