package driver

// TexelSize returns the size in bytes of one texel of format, or 0 when the
// format is unknown.
func TexelSize(format Format) uint32 {
	switch format {
	case FormatR8Unorm:
		return 1
	case FormatR8G8Unorm:
		return 2
	case FormatR8G8B8A8Unorm, FormatR8G8B8A8Srgb, FormatB8G8R8A8Unorm, FormatB8G8R8A8Srgb:
		return 4
	case FormatR16G16B16A16Sfloat:
		return 8
	case FormatR32G32B32A32Sfloat:
		return 16
	case FormatD32Sfloat, FormatD24UnormS8Uint:
		return 4
	case FormatD32SfloatS8Uint:
		return 8
	}
	return 0
}

// IsDepthFormat reports whether format carries a depth component.
func IsDepthFormat(format Format) bool {
	switch format {
	case FormatD32Sfloat, FormatD24UnormS8Uint, FormatD32SfloatS8Uint:
		return true
	}
	return false
}

// HasStencil reports whether format carries a stencil component.
func HasStencil(format Format) bool {
	return format == FormatD24UnormS8Uint || format == FormatD32SfloatS8Uint
}

// AspectFor returns the image aspect a view of format must use.
func AspectFor(format Format) ImageAspect {
	if !IsDepthFormat(format) {
		return ImageAspectColor
	}
	if HasStencil(format) {
		return ImageAspectDepth | ImageAspectStencil
	}
	return ImageAspectDepth
}

// MemoryType mirrors one entry of a device's memory type table.
type MemoryType struct {
	Properties MemoryProperty
	HeapIndex  uint32
}

// FindMemoryType returns the first type index allowed by typeFilter whose
// properties include all of want.
func FindMemoryType(types []MemoryType, typeFilter uint32, want MemoryProperty) (uint32, error) {
	for i, t := range types {
		if i >= 32 {
			break
		}
		if typeFilter&(1<<uint(i)) != 0 && t.Properties&want == want {
			return uint32(i), nil
		}
	}
	return 0, ErrNoMemoryType
}

// MipLevels returns the length of a full mip chain for the given size.
func MipLevels(width, height uint32) uint32 {
	size := width
	if height > size {
		size = height
	}
	levels := uint32(1)
	for size > 1 {
		size >>= 1
		levels++
	}
	return levels
}
