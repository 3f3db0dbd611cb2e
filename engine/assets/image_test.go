package assets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// gradient is 2x2: red, green on top; blue, white below.
func gradient() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{G: 255, A: 255})
	img.Set(0, 1, color.NRGBA{B: 255, A: 255})
	img.Set(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}

func TestImageLoaderDecode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.png")
	writePNG(t, path, gradient())

	tests := []struct {
		name  string
		flipY bool
		first [4]byte
	}{
		{"top row first", false, [4]byte{255, 0, 0, 255}},
		{"flipped", true, [4]byte{0, 0, 255, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &ImageLoader{FlipY: tt.flipY}
			data, err := l.Decode(path)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if data.Width != 2 || data.Height != 2 {
				t.Fatalf("size = %dx%d, want 2x2", data.Width, data.Height)
			}
			if len(data.Pixels) != 16 {
				t.Fatalf("len(Pixels) = %d, want 16", len(data.Pixels))
			}
			var got [4]byte
			copy(got[:], data.Pixels[:4])
			if got != tt.first {
				t.Errorf("first pixel = %v, want %v", got, tt.first)
			}
		})
	}
}

func TestImageLoaderDecodeHDR(t *testing.T) {
	img := image.NewNRGBA64(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.NRGBA64{R: 0xffff, G: 0x8000, B: 0, A: 0xffff})
	path := filepath.Join(t.TempDir(), "sky.png")
	writePNG(t, path, img)

	data, err := (&ImageLoader{}).DecodeHDR(path)
	if err != nil {
		t.Fatalf("DecodeHDR: %v", err)
	}
	if len(data.Pixels) != 4 {
		t.Fatalf("len(Pixels) = %d, want 4", len(data.Pixels))
	}
	if data.Pixels[0] != 1 || data.Pixels[2] != 0 || data.Pixels[3] != 1 {
		t.Errorf("pixels = %v", data.Pixels)
	}
	if g := data.Pixels[1]; g < 0.49 || g > 0.51 {
		t.Errorf("green = %f, want about 0.5", g)
	}
}

// writeRadiance writes a 1x2 uncompressed RGBE file: a bright pixel on top
// of a black one.
func writeRadiance(t *testing.T, path string) {
	t.Helper()
	var b []byte
	b = append(b, "#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n-Y 2 +X 1\n"...)
	b = append(b, 128, 64, 32, 130) // about (2, 1, 0.5)
	b = append(b, 0, 0, 0, 0)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestImageLoaderDecodeRadiance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sky.hdr")
	writeRadiance(t, path)

	near := func(got, want float32) bool { return got > want-0.05 && got < want+0.05 }
	tests := []struct {
		name   string
		flipY  bool
		bright int
	}{
		{"top down", false, 0},
		{"flipped", true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := (&ImageLoader{FlipY: tt.flipY}).DecodeHDR(path)
			if err != nil {
				t.Fatalf("DecodeHDR: %v", err)
			}
			if data.Width != 1 || data.Height != 2 || len(data.Pixels) != 8 {
				t.Fatalf("got %dx%d with %d floats", data.Width, data.Height, len(data.Pixels))
			}
			px := data.Pixels[tt.bright*4 : tt.bright*4+4]
			if !near(px[0], 2) || !near(px[1], 1) || !near(px[2], 0.5) || px[3] != 1 {
				t.Errorf("bright pixel = %v, want about [2 1 0.5 1]", px)
			}
			dark := data.Pixels[(1-tt.bright)*4 : (1-tt.bright)*4+4]
			if dark[0] != 0 || dark[1] != 0 || dark[2] != 0 || dark[3] != 1 {
				t.Errorf("dark pixel = %v, want [0 0 0 1]", dark)
			}
		})
	}
}

func TestImageLoaderDecodeAllKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 1; i <= 6; i++ {
		path := filepath.Join(dir, string(rune('a'+i))+".png")
		writePNG(t, path, image.NewNRGBA(image.Rect(0, 0, i, 1)))
		paths = append(paths, path)
	}

	out, err := (&ImageLoader{}).DecodeAll(paths)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	for i, data := range out {
		if data.Width != i+1 {
			t.Errorf("out[%d].Width = %d, want %d", i, data.Width, i+1)
		}
	}

	if _, err := (&ImageLoader{}).DecodeAll(append(paths, filepath.Join(dir, "missing.png"))); err == nil {
		t.Error("DecodeAll with a missing file succeeded")
	}
}

func TestImageLoaderRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (&ImageLoader{}).Decode(path); err == nil {
		t.Error("Decode of garbage succeeded")
	}
}
