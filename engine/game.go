package engine

import (
	"github.com/spaghettifunk/purrfect/engine/renderer"
)

type Game struct {
	Config *Config
	// Specialization is installed on the renderer. Nil draws the main pass only.
	Specialization renderer.Specialization
	State          interface{}
	FnInitialize   Initialize
	FnUpdate       Update
	FnRender       Render
	FnOnResize     OnResize
	FnShutdown     Shutdown
}

// Initialize runs once the renderer and the asset manager are up.
type Initialize func(e *Engine) error
type Update func(deltaTime float64) error

// Render runs right before the renderer draws the frame.
type Render func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
