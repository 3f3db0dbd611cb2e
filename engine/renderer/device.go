package renderer

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

// DeviceRequirements are hard requirements: an adapter lacking any of them is
// never a candidate.
type DeviceRequirements struct {
	Features   driver.DeviceFeatures
	Extensions []string
}

// extensions returns the required device extensions, always including the swapchain.
func (r DeviceRequirements) extensions() []string {
	out := []string{driver.SwapchainExtension}
	for _, ext := range r.Extensions {
		if ext != driver.SwapchainExtension {
			out = append(out, ext)
		}
	}
	return out
}

// ScoreAdapter rates an adapter by type. The second result is false when the
// adapter misses a required feature or extension.
func ScoreAdapter(adapter driver.Adapter, req DeviceRequirements) (int, bool) {
	if missing := adapter.Features.Missing(req.Features); len(missing) > 0 {
		core.LogInfo("Device '%s' skipped, missing features: %s", adapter.Name, strings.Join(missing, ", "))
		return 0, false
	}

	available := make(map[string]struct{}, len(adapter.Extensions))
	for _, ext := range adapter.Extensions {
		available[ext] = struct{}{}
	}
	for _, ext := range req.extensions() {
		if _, ok := available[ext]; !ok {
			core.LogInfo("Device '%s' skipped, missing extension: %s", adapter.Name, ext)
			return 0, false
		}
	}

	switch adapter.Type {
	case driver.DeviceTypeDiscreteGPU:
		return 50, true
	case driver.DeviceTypeIntegratedGPU:
		return 25, true
	case driver.DeviceTypeVirtualGPU:
		return 10, true
	case driver.DeviceTypeCPU:
		return 5, true
	}
	return 0, true
}

// SelectAdapter picks the best scoring candidate. Ties go to the adapter
// enumerated first.
func SelectAdapter(adapters []driver.Adapter, req DeviceRequirements) (driver.Adapter, error) {
	best, bestScore := -1, 0
	for i, a := range adapters {
		score, ok := ScoreAdapter(a, req)
		if !ok {
			continue
		}
		core.LogDebug("Device '%s' (%s) scored %d", a.Name, a.Type, score)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return driver.Adapter{}, errors.Wrapf(ErrNoSuitableDevice, "%d adapters enumerated", len(adapters))
	}
	return adapters[best], nil
}

// QueueFamilies holds the queue family indices resolved for a device.
type QueueFamilies struct {
	Graphics uint32
	Present  uint32
}

// Unique returns the distinct family indices, graphics first.
func (q QueueFamilies) Unique() []uint32 {
	if q.Graphics == q.Present {
		return []uint32{q.Graphics}
	}
	return []uint32{q.Graphics, q.Present}
}

// ResolveQueueFamilies prefers one family that can both draw and present,
// then falls back to the first graphics family and the first present family.
func ResolveQueueFamilies(families []driver.QueueFamily) (QueueFamilies, error) {
	graphics, present := -1, -1
	for i, f := range families {
		if f.Flags&driver.QueueGraphics != 0 && f.Present {
			return QueueFamilies{Graphics: uint32(i), Present: uint32(i)}, nil
		}
		if graphics < 0 && f.Flags&driver.QueueGraphics != 0 {
			graphics = i
		}
		if present < 0 && f.Present {
			present = i
		}
	}
	if graphics < 0 || present < 0 {
		return QueueFamilies{}, ErrNoQueueFamily
	}
	return QueueFamilies{Graphics: uint32(graphics), Present: uint32(present)}, nil
}

var depthFormatCandidates = []driver.Format{
	driver.FormatD32Sfloat,
	driver.FormatD32SfloatS8Uint,
	driver.FormatD24UnormS8Uint,
}

// SelectDepthFormat returns the most precise depth format usable as an
// optimal-tiling depth attachment.
func SelectDepthFormat(drv driver.Driver) (driver.Format, error) {
	for _, f := range depthFormatCandidates {
		if drv.FormatSupported(f, driver.ImageTilingOptimal, driver.FormatFeatureDepthStencilAttachment) {
			return f, nil
		}
	}
	return driver.FormatUndefined, ErrNoDepthFormat
}
