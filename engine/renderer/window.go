package renderer

// Window is what the renderer needs from the OS window. Surface creation
// itself is the driver's concern.
type Window interface {
	// FramebufferSize returns the drawable size in pixels. Either dimension
	// is zero while the window is minimized.
	FramebufferSize() (width, height int)
	// WaitEvents blocks until at least one window event was processed.
	WaitEvents()
}
