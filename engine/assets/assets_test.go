package assets

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func TestDetermineAssetType(t *testing.T) {
	tests := []struct {
		path string
		want ResourceType
	}{
		{"shaders/main.vert.spv", ResourceTypeShader},
		{"textures/wall.png", ResourceTypeImage},
		{"textures/wall.jpeg", ResourceTypeImage},
		{"textures/wall.webp", ResourceTypeImage},
		{"skies/noon.tiff", ResourceTypeImageHDR},
		{"skies/dusk.hdr", ResourceTypeImageHDR},
		{"shaders/main.vert", ResourceTypeNone},
		{"README", ResourceTypeNone},
	}
	for _, tt := range tests {
		if got := determineAssetType(tt.path); got != tt.want {
			t.Errorf("determineAssetType(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func seedAssets(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "shaders"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "textures"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "shaders", "main.vert.spv"), []byte{0x03, 0x02, 0x23, 0x07}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(dir, "textures", "wall.png"), image.NewNRGBA(image.Rect(0, 0, 4, 2)))
	return dir
}

func TestAssetManagerIndexesAndLoads(t *testing.T) {
	dir := seedAssets(t)

	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	defer am.Shutdown()
	if err := am.Initialize(dir, false); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if am.Len() != 2 {
		t.Fatalf("Len = %d, want 2", am.Len())
	}
	if names := am.Names(ResourceTypeShader); len(names) != 1 || names[0] != "shaders/main.vert.spv" {
		t.Errorf("shader names = %v", names)
	}

	code, err := am.ReadShader("shaders/main.vert.spv")
	if err != nil {
		t.Fatalf("ReadShader: %v", err)
	}
	if len(code) != 4 {
		t.Errorf("len(code) = %d, want 4", len(code))
	}

	res, err := am.LoadAsset("textures/wall.png")
	if err != nil {
		t.Fatalf("LoadAsset: %v", err)
	}
	if res.Type != ResourceTypeImage || res.DataSize != 4*2*4 {
		t.Errorf("resource = %s with %d bytes", res.Type, res.DataSize)
	}
	if _, err := am.ReadShader("textures/wall.png"); err == nil {
		t.Error("ReadShader accepted an image")
	}

	if _, err := am.Resolve("notes.txt"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("Resolve(notes.txt) error = %v, want ErrAssetNotFound", err)
	}
}

func TestAssetManagerReportsChanges(t *testing.T) {
	dir := seedAssets(t)

	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	defer am.Shutdown()
	if err := am.Initialize(dir, true); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "shaders", "main.frag.spv"), []byte{1, 2, 3, 4}, 0o644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-am.Changes():
			if e.Path != "shaders/main.frag.spv" {
				continue
			}
			if e.Removed {
				t.Fatalf("event = %+v, want a write", e)
			}
			if _, err := am.Resolve(e.Path); err != nil {
				t.Fatalf("Resolve after change: %v", err)
			}
			return
		case <-timeout:
			t.Fatal("no change reported for the new shader")
		}
	}
}

func TestAssetManagerShutdownTwice(t *testing.T) {
	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	if err := am.Initialize(t.TempDir(), true); err != nil {
		t.Fatal(err)
	}
	if err := am.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := am.Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
