package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

// FrameCommands holds one resettable command buffer per frame slot,
// allocated from the context's per-frame pool.
type FrameCommands struct {
	drv     driver.Driver
	pool    driver.CommandPool
	buffers []driver.CommandBuffer
}

func NewFrameCommands(ctx *Context, count uint32) (*FrameCommands, error) {
	buffers, err := ctx.drv.AllocateCommandBuffers(ctx.commandPool, count)
	if err != nil {
		return nil, errors.Wrap(err, "allocate frame command buffers")
	}
	return &FrameCommands{drv: ctx.drv, pool: ctx.commandPool, buffers: buffers}, nil
}

func (fc *FrameCommands) Buffer(slot uint32) driver.CommandBuffer {
	return fc.buffers[slot]
}

func (fc *FrameCommands) Count() uint32 {
	return uint32(len(fc.buffers))
}

// Begin resets the slot buffer and opens it for recording.
func (fc *FrameCommands) Begin(slot uint32) (driver.CommandBuffer, error) {
	cb := fc.buffers[slot]
	if err := fc.drv.ResetCommandBuffer(cb); err != nil {
		return 0, errors.Wrap(err, "reset command buffer")
	}
	if err := fc.drv.BeginCommandBuffer(cb, false); err != nil {
		return 0, errors.Wrap(err, "begin command buffer")
	}
	return cb, nil
}

func (fc *FrameCommands) Destroy() {
	if len(fc.buffers) > 0 {
		fc.drv.FreeCommandBuffers(fc.pool, fc.buffers)
	}
	fc.buffers = nil
}
