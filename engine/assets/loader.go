package assets

import "path/filepath"

type ResourceType int

const (
	ResourceTypeNone ResourceType = iota
	// Compiled SPIR-V.
	ResourceTypeShader
	// 8-bit images decoded to RGBA.
	ResourceTypeImage
	// 16-bit images decoded to float RGBA.
	ResourceTypeImageHDR
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeImageHDR:
		return "image-hdr"
	}
	return "none"
}

// Resource is what every loader returns. Data holds the loader specific
// payload: []byte for shaders, *renderer.ImageData or *renderer.ImageDataHDR
// for images.
type Resource struct {
	Name     string
	FullPath string
	Type     ResourceType
	DataSize uint64
	Data     interface{}
}

type Loader interface {
	Load(path string) (*Resource, error)
}

func determineAssetType(path string) ResourceType {
	switch filepath.Ext(path) {
	case ".spv":
		return ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".bmp", ".webp":
		return ResourceTypeImage
	case ".hdr", ".tif", ".tiff":
		return ResourceTypeImageHDR
	default:
		return ResourceTypeNone
	}
}
