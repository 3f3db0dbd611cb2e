package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

// SceneFormat is the HDR color format the 3D renderer draws into before the
// main pass resolves it to the swapchain.
const SceneFormat = driver.FormatR16G16B16A16Sfloat

// RecordFunc draws into an open render pass of target.
type RecordFunc func(r *Renderer, target *RenderTarget, cb driver.CommandBuffer, frame uint32) error

// Renderer3D renders the scene into an offscreen float target with depth,
// sized to the swapchain, and hands it to the main pass for presentation.
type Renderer3D struct {
	// OnRecord is called between the begin and end of the scene pass.
	OnRecord RecordFunc
	Clear    [4]float32

	target  *RenderTarget
	present driver.DescriptorSet
}

func NewRenderer3D(onRecord RecordFunc) *Renderer3D {
	return &Renderer3D{OnRecord: onRecord, Clear: [4]float32{0, 0, 0, 1}}
}

func (s *Renderer3D) Initialize(r *Renderer) error {
	extent := r.Extent()
	target, err := r.NewRenderTarget(RenderTargetInfo{
		Width:     extent.Width,
		Height:    extent.Height,
		Format:    SceneFormat,
		WantDepth: true,
		Clear:     s.Clear,
	})
	if err != nil {
		return errors.Wrap(err, "scene target")
	}

	sampler, err := r.Context().DefaultSampler()
	if err != nil {
		target.Destroy()
		return err
	}
	set, err := r.Context().allocateImageDescriptor(target.Color().View(), sampler)
	if err != nil {
		target.Destroy()
		return errors.Wrap(err, "scene descriptor")
	}
	s.target = target
	s.present = set
	return nil
}

func (s *Renderer3D) Record(r *Renderer, cb driver.CommandBuffer, frame uint32) error {
	if err := s.target.Begin(cb); err != nil {
		return err
	}
	if s.OnRecord != nil {
		if err := s.OnRecord(r, s.target, cb, frame); err != nil {
			// Close the pass so the target can be reused next frame.
			s.target.End(cb)
			return err
		}
	}
	return s.target.End(cb)
}

// Resized rebuilds the scene target at the new swapchain extent.
func (s *Renderer3D) Resized(r *Renderer) error {
	s.Cleanup(r)
	return s.Initialize(r)
}

func (s *Renderer3D) Cleanup(r *Renderer) {
	r.Context().freeDescriptor(s.present)
	s.present = 0
	if s.target != nil {
		s.target.Destroy()
		s.target = nil
	}
}

func (s *Renderer3D) PresentDescriptor() driver.DescriptorSet {
	return s.present
}

func (s *Renderer3D) Target() *RenderTarget {
	return s.target
}
