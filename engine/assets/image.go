package assets

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/mdouchement/hdr"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	_ "github.com/mdouchement/hdr/codec/rgbe"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/purrfect/engine/renderer"
)

// ImageLoader decodes image files into tightly packed RGBA. It implements
// renderer.ImageDecoder.
type ImageLoader struct {
	// FlipY stores rows bottom to top.
	FlipY bool
}

var _ renderer.ImageDecoder = (*ImageLoader)(nil)

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode '%s'", path)
	}
	if img.Bounds().Empty() {
		return nil, errors.Newf("'%s' (%s) has no pixels", path, format)
	}
	return img, nil
}

func (l *ImageLoader) Decode(path string) (*renderer.ImageData, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	if l.FlipY {
		flipRows(dst.Pix, dst.Stride, b.Dy())
	}
	return &renderer.ImageData{Width: b.Dx(), Height: b.Dy(), Pixels: dst.Pix}, nil
}

// DecodeHDR returns float RGBA. Radiance files keep their full range, other
// formats are widened to 16 bits per channel and normalized to [0, 1].
func (l *ImageLoader) DecodeHDR(path string) (*renderer.ImageDataHDR, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	if m, ok := img.(hdr.Image); ok {
		return l.radiance(m), nil
	}

	b := img.Bounds()
	dst := image.NewNRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	if l.FlipY {
		flipRows(dst.Pix, dst.Stride, b.Dy())
	}

	pixels := make([]float32, b.Dx()*b.Dy()*4)
	for i := range pixels {
		v := uint16(dst.Pix[i*2])<<8 | uint16(dst.Pix[i*2+1])
		pixels[i] = float32(v) / 0xffff
	}
	return &renderer.ImageDataHDR{Width: b.Dx(), Height: b.Dy(), Pixels: pixels}, nil
}

// radiance copies unclamped RGB out of m. Alpha is always 1.
func (l *ImageLoader) radiance(m hdr.Image) *renderer.ImageDataHDR {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	pixels := make([]float32, w*h*4)
	for y := 0; y < h; y++ {
		row := y
		if l.FlipY {
			row = h - 1 - y
		}
		for x := 0; x < w; x++ {
			r, g, bl, _ := m.HDRAt(b.Min.X+x, b.Min.Y+y).HDRRGBA()
			i := (row*w + x) * 4
			pixels[i] = float32(r)
			pixels[i+1] = float32(g)
			pixels[i+2] = float32(bl)
			pixels[i+3] = 1
		}
	}
	return &renderer.ImageDataHDR{Width: w, Height: h, Pixels: pixels}
}

// DecodeAll decodes paths concurrently. Results keep the order of paths.
func (l *ImageLoader) DecodeAll(paths []string) ([]*renderer.ImageData, error) {
	out := make([]*renderer.ImageData, len(paths))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			data, err := l.Decode(path)
			if err != nil {
				return err
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *ImageLoader) Load(path string) (*Resource, error) {
	res := &Resource{FullPath: path, Type: determineAssetType(path)}
	if res.Type == ResourceTypeImageHDR {
		data, err := l.DecodeHDR(path)
		if err != nil {
			return nil, err
		}
		res.Data = data
		res.DataSize = uint64(len(data.Pixels) * 4)
		return res, nil
	}

	data, err := l.Decode(path)
	if err != nil {
		return nil, err
	}
	res.Type = ResourceTypeImage
	res.Data = data
	res.DataSize = uint64(len(data.Pixels))
	return res, nil
}

func flipRows(pix []byte, stride, rows int) {
	tmp := make([]byte, stride)
	for top, bottom := 0, rows-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pix[top*stride : (top+1)*stride]
		b := pix[bottom*stride : (bottom+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}
