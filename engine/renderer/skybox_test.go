package renderer

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/cockroachdb/errors"
)

var equirect = EquirectPass{
	VertexShader:   "skybox.vert.spv",
	FragmentShader: "equirect.frag.spv",
	Shaders:        testShaders,
}

func TestFaceMatrices(t *testing.T) {
	data, err := faceMatrices()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != faceUniformStride*CubeFaces {
		t.Fatalf("len = %d, want %d", len(data), faceUniformStride*CubeFaces)
	}

	var proj [16]float32
	if err := binary.Read(bytes.NewReader(data[:64]), binary.LittleEndian, &proj); err != nil {
		t.Fatal(err)
	}
	if proj[5] >= 0 {
		t.Errorf("proj[5] = %g, Y must be flipped", proj[5])
	}
	for i := 0; i < CubeFaces; i++ {
		padding := data[i*faceUniformStride+faceUniformSize : (i+1)*faceUniformStride]
		if !bytes.Equal(padding, make([]byte, len(padding))) {
			t.Errorf("face %d padding not zeroed", i)
		}
		if !bytes.Equal(data[i*faceUniformStride:i*faceUniformStride+64], data[:64]) {
			t.Errorf("face %d projection differs", i)
		}
	}
}

func TestSkyboxFromEquirectangularTexture(t *testing.T) {
	ctx, drv := newTestContext(t)

	tex := NewTexture(ctx, 64, 32, WithFormat(SceneFormat))
	if err := tex.Initialize(""); err != nil {
		t.Fatal(err)
	}

	sky := NewSkybox(ctx)
	if err := sky.InitializeFromTexture(tex, 16, equirect); err != nil {
		t.Fatalf("%+v", err)
	}
	cube := sky.Cubemap()
	if cube.Size() != 16 || cube.Image().Format() != SceneFormat {
		t.Errorf("cubemap %d px, format %d", cube.Size(), cube.Image().Format())
	}
	if drv.Count("CmdDraw") != CubeFaces {
		t.Errorf("draws = %d, want one per face", drv.Count("CmdDraw"))
	}
	if drv.Count("CmdBindDescriptorSet") != 2*CubeFaces {
		t.Errorf("descriptor binds = %d", drv.Count("CmdBindDescriptorSet"))
	}
	if drv.Count("CmdBeginRenderPass") != CubeFaces {
		t.Errorf("render passes = %d", drv.Count("CmdBeginRenderPass"))
	}

	kinds := drv.LiveByKind()
	if kinds["framebuffer"] != 0 || kinds["pipeline"] != 0 || kinds["buffer"] != 0 || kinds["renderpass"] != 0 {
		t.Errorf("capture resources left: %v", kinds)
	}

	cb, err := drv.AllocateCommandBuffers(ctx.CommandPool(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := sky.Bind(cb[0], 0, 2); err != nil {
		t.Fatal(err)
	}
	if got := drv.Commands(cb[0]); len(got) != 1 || got[0] != "BindDescriptorSet 2" {
		t.Errorf("bind recorded %v", got)
	}
	drv.FreeCommandBuffers(ctx.CommandPool(), cb)

	sky.Cleanup()
	if sky.Cubemap() != nil {
		t.Error("cubemap kept after cleanup")
	}
	if err := sky.Bind(cb[0], 0, 2); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("bind after cleanup: %v", err)
	}
	tex.Cleanup()
	ctx.Close()
	if drv.Live() != 0 || len(drv.Misuse) != 0 {
		t.Errorf("live %v, misuse %v", drv.LiveKinds(), drv.Misuse)
	}
}

func TestSkyboxBorrowsCubemap(t *testing.T) {
	ctx, _ := newTestContext(t)
	defer ctx.Close()

	faces := cubeFaces(t, ctx, 4)
	defer func() {
		for _, f := range faces {
			f.Cleanup()
		}
	}()
	cube := NewCubemap(ctx)
	if err := cube.Initialize(images(faces), nil); err != nil {
		t.Fatal(err)
	}
	defer cube.Cleanup()

	sky := NewSkybox(ctx)
	if err := sky.InitializeFromCubemap(cube); err != nil {
		t.Fatal(err)
	}
	sky.Cleanup()
	if cube.Image() == nil {
		t.Error("skybox released a borrowed cubemap")
	}
	if err := sky.InitializeFromCubemap(NewCubemap(ctx)); err == nil {
		t.Error("empty cubemap accepted")
	}
}

func TestSkyboxRejectsInvalidTexture(t *testing.T) {
	ctx, drv := newTestContext(t)
	defer ctx.Close()

	sky := NewSkybox(ctx)
	if err := sky.InitializeFromTexture(NewTexture(ctx, 8, 8), 16, equirect); !errors.Is(err, ErrTextureInvalid) {
		t.Errorf("err = %v, want ErrTextureInvalid", err)
	}
	if err := sky.InitializeFromTexture(nil, 16, equirect); !errors.Is(err, ErrTextureInvalid) {
		t.Errorf("nil texture: %v", err)
	}
	if drv.Count("CreateRenderPass") != 0 {
		t.Error("render targets created for an invalid texture")
	}
}
