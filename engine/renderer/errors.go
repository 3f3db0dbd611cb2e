package renderer

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrNotInitialized     = errors.New("renderer not initialized")
	ErrNoSuitableDevice   = errors.New("no suitable physical device")
	ErrNoQueueFamily      = errors.New("no queue family supports graphics and presentation")
	ErrNoSurfaceFormat    = errors.New("surface reports no formats")
	ErrNoDepthFormat      = errors.New("no supported depth format")
	ErrPixelOverflow      = errors.New("pixel data exceeds texture capacity")
	ErrTextureInvalid     = errors.New("texture is not valid")
	ErrFaceSizeMismatch   = errors.New("cubemap faces differ in size")
	ErrFaceFormatMismatch = errors.New("cubemap faces differ in format")
	ErrRenderPassActive   = errors.New("render pass already active")
	ErrRenderPassInactive = errors.New("render pass not active")
	ErrNoImageDecoder     = errors.New("no image decoder configured")
)

// InitializationError reports which setup stage failed. Reason is the
// human-readable cause kept by the renderer after a failed Initialize.
type InitializationError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialization failed at %s: %s", e.Stage, e.Reason)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

func initError(stage string, err error) error {
	var ie *InitializationError
	if errors.As(err, &ie) {
		return err
	}
	return &InitializationError{Stage: stage, Reason: err.Error(), Err: err}
}
